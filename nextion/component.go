package nextion

import (
	"fmt"
)

// Component is a widget instance on the display: page id, component id and
// name, bound to a shared Panel. The identity cannot change after binding.
type Component struct {
	pageID      uint8
	componentID uint8
	name        string
	kind        string
	panel       *Panel
}

// PageID returns the page the component lives on
func (c *Component) PageID() uint8 { return c.pageID }

// ComponentID returns the id of the component on its page
func (c *Component) ComponentID() uint8 { return c.componentID }

// Name returns the object name used in commands
func (c *Component) Name() string { return c.name }

// Kind returns the widget kind for components bound with BindKind
func (c *Component) Kind() string { return c.kind }

// Key returns the registry key of the component
func (c *Component) Key() Key { return Key{Page: c.pageID, Component: c.componentID} }

func (c *Component) String() string {
	if c.kind == "" {
		return fmt.Sprintf("%s(%d/%d)", c.name, c.pageID, c.componentID)
	}
	return fmt.Sprintf("%s %s(%d/%d)", c.kind, c.name, c.pageID, c.componentID)
}

// Spec looks up the attribute key of the component's widget kind
func (c *Component) Spec(key string) (AttributeSpec, error) {
	if c.kind == "" {
		return AttributeSpec{}, fmt.Errorf("%w: %s.%s: component has no widget kind", ErrUnknownAttribute, c.name, key)
	}
	spec, ok := c.panel.Widgets.Lookup(c.kind, key)
	if !ok {
		return AttributeSpec{}, fmt.Errorf("%w: %s has no attribute %s", ErrUnknownAttribute, c.kind, key)
	}
	return spec, nil
}

// Set writes an attribute of the component's widget kind
func (c *Component) Set(key string, v interface{}) error {
	spec, err := c.Spec(key)
	if err != nil {
		return err
	}
	return Set(c, spec, v)
}

// Get reads an attribute of the component's widget kind
func (c *Component) Get(key string) (interface{}, error) {
	spec, err := c.Spec(key)
	if err != nil {
		return nil, err
	}
	return Get(c, spec)
}

// GetInt reads an Integer attribute
func (c *Component) GetInt(key string) (int64, error) {
	v, err := c.Get(key)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s is %T, not an integer", ErrInvalidValue, c.name, key, v)
	}
	return n, nil
}

// GetText reads a Text attribute. A truncated text is returned along with ErrTruncated.
func (c *Component) GetText(key string) (string, error) {
	v, err := c.Get(key)
	s, ok := v.(string)
	if err != nil {
		return s, err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s.%s is %T, not text", ErrInvalidValue, c.name, key, v)
	}
	return s, nil
}

// GetBool reads a Bool attribute
func (c *Component) GetBool(key string) (bool, error) {
	v, err := c.Get(key)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s.%s is %T, not a bool", ErrInvalidValue, c.name, key, v)
	}
	return b, nil
}

// AddData appends value to a channel (0 to 4) of this waveform
func (c *Component) AddData(channel, value uint8) error {
	return c.panel.AddData(c.componentID, channel, value)
}

// ClearChannel clears a channel (0 to 4) of this waveform
func (c *Component) ClearChannel(channel uint8) error {
	return c.panel.ClearChannel(c.componentID, channel)
}

// SetOnClick replaces the click handler of the component. A nil fn clears the slot.
func (c *Component) SetOnClick(fn func()) { c.panel.Handlers.SetOnClick(c.Key(), fn) }

// SetOnRelease replaces the release handler of the component. A nil fn clears the slot.
func (c *Component) SetOnRelease(fn func()) { c.panel.Handlers.SetOnRelease(c.Key(), fn) }

// ClearOnClick removes the click handler
func (c *Component) ClearOnClick() { c.panel.Handlers.SetOnClick(c.Key(), nil) }

// ClearOnRelease removes the release handler
func (c *Component) ClearOnRelease() { c.panel.Handlers.SetOnRelease(c.Key(), nil) }

// CallOnClick invokes the click handler, if any
func (c *Component) CallOnClick() { c.panel.Handlers.CallOnClick(c.Key()) }

// CallOnRelease invokes the release handler, if any
func (c *Component) CallOnRelease() { c.panel.Handlers.CallOnRelease(c.Key()) }

// Unbind drops both handlers, so that nothing they captured outlives the component.
func (c *Component) Unbind() { c.panel.Handlers.Remove(c.Key()) }
