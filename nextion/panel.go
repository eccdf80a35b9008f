package nextion

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Panel is the shared access point to one display. Components bound to the
// same Panel share its Transport; every exchange (command plus reply) holds
// the Panel for its whole duration, so frames of different callers never interleave.
type Panel struct {
	mu  sync.Mutex
	t   Transport
	buf [MaxCommandLen + len(terminator)]byte

	Handlers *Handlers
	Widgets  Table
}

// NewPanel returns a Panel using t and the built-in widget table.
// A nil Transport is a programming error and panics.
func NewPanel(t Transport) *Panel {
	if t == nil {
		panic("nextion: nil Transport")
	}
	return &Panel{t: t, Handlers: NewHandlers(), Widgets: DefaultTable()}
}

// exchange runs fn with exclusive use of the transport and the command buffer
func (p *Panel) exchange(fn func(t Transport, buf []byte) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(p.t, p.buf[:])
}

// Bind returns a Component for the widget with the given ids and name.
// The name must be 1 to MaxNameLen characters of [A-Za-z0-9_.].
func (p *Panel) Bind(pid, cid uint8, name string) (*Component, error) {
	if p == nil {
		panic("nextion: Bind on nil Panel")
	}
	if err := validName(name); err != nil {
		return nil, err
	}
	log.Debugf("Bound component %s (page %d, id %d)", name, pid, cid)
	return &Component{pageID: pid, componentID: cid, name: name, panel: p}, nil
}

// BindKind is Bind for a widget kind of the panel's table. It fails with
// ErrCommandTooLong if a command for any attribute of the kind would not fit.
func (p *Panel) BindKind(kind string, pid, cid uint8, name string) (*Component, error) {
	w, ok := p.Widgets[kind]
	if !ok {
		return nil, fmt.Errorf("%w: widget kind %q", ErrUnknownAttribute, kind)
	}
	for _, spec := range w.Attributes {
		if err := spec.Fits(name); err != nil {
			return nil, fmt.Errorf("bind %s as %s: %w", name, kind, err)
		}
	}
	c, err := p.Bind(pid, cid, name)
	if err != nil {
		return nil, err
	}
	c.kind = kind
	return c, nil
}

func validName(name string) error {
	if len(name) == 0 || len(name) > MaxNameLen {
		return fmt.Errorf("%w: component name %q must have 1 to %d characters", ErrInvalidValue, name, MaxNameLen)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '.':
		default:
			return fmt.Errorf("%w: component name %q contains %q", ErrInvalidValue, name, c)
		}
	}
	return nil
}

// AddData appends value to channel of the waveform with component id cid.
func (p *Panel) AddData(cid, channel, value uint8) error {
	if err := checkChannel(channel); err != nil {
		return fmt.Errorf("add %d: %w", cid, err)
	}
	return p.exchange(func(t Transport, buf []byte) error {
		frame, err := EncodeAdd(buf[:0], cid, channel, value)
		if err != nil {
			return err
		}
		return send(t, frame)
	})
}

// ClearChannel removes all data of channel from the waveform with component id cid.
func (p *Panel) ClearChannel(cid, channel uint8) error {
	if err := checkChannel(channel); err != nil {
		return fmt.Errorf("cle %d: %w", cid, err)
	}
	return p.exchange(func(t Transport, buf []byte) error {
		frame, err := EncodeClear(buf[:0], cid, channel)
		if err != nil {
			return err
		}
		return send(t, frame)
	})
}

// Command sends a raw instruction, e.g. "page 1" or "bkcmd=3". The caller is
// responsible for reading any reply.
func (p *Panel) Command(cmd string) error {
	if len(cmd) > MaxCommandLen {
		return tooLong(cmd, len(cmd), MaxCommandLen)
	}
	return p.exchange(func(t Transport, buf []byte) error {
		frame := append(buf[:0], cmd...)
		return send(t, append(frame, terminator[:]...))
	})
}

// ReadFrame reads the next inbound frame, typically an unsolicited event.
// It must not be called while a query is expected to be answered.
func (p *Panel) ReadFrame() (Frame, error) {
	var f Frame
	err := p.exchange(func(t Transport, buf []byte) error {
		var err error
		f, err = ReadFrame(t, buf)
		// buf is reused by the next exchange
		f.Payload = append([]byte(nil), f.Payload...)
		return err
	})
	return f, err
}

// ReadStatus reads one status frame. It returns nil for an acknowledge
// and a *DeviceError for a rejection code.
func (p *Panel) ReadStatus() error {
	f, err := p.ReadFrame()
	if err != nil {
		return err
	}
	return f.Status()
}

// Dispatch routes a touch event to the handler registered for its component.
// It reports whether a handler was invoked.
func (p *Panel) Dispatch(ev TouchEvent) bool {
	return p.Handlers.Dispatch(ev)
}
