package nextion

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Key identifies a component on the display
type Key struct {
	Page      uint8 `json:"page"`
	Component uint8 `json:"component"`
}

type slots struct {
	click, release func()
}

// Handlers holds at most one click and one release handler per component.
// Handlers run only when called explicitly or through Dispatch.
type Handlers struct {
	mu sync.Mutex
	m  map[Key]*slots
}

func NewHandlers() *Handlers {
	return &Handlers{m: make(map[Key]*slots)}
}

func (h *Handlers) set(k Key, fn func(), release bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.m[k]
	if !ok {
		if fn == nil {
			return
		}
		s = &slots{}
		h.m[k] = s
	}
	if release {
		s.release = fn
	} else {
		s.click = fn
	}
	if s.click == nil && s.release == nil {
		delete(h.m, k)
	}
}

func (h *Handlers) get(k Key, release bool) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.m[k]
	if !ok {
		return nil
	}
	if release {
		return s.release
	}
	return s.click
}

// SetOnClick replaces the click handler for k; nil clears it
func (h *Handlers) SetOnClick(k Key, fn func()) { h.set(k, fn, false) }

// SetOnRelease replaces the release handler for k; nil clears it
func (h *Handlers) SetOnRelease(k Key, fn func()) { h.set(k, fn, true) }

// CallOnClick runs the click handler for k and reports whether there was one
func (h *Handlers) CallOnClick(k Key) bool {
	// run outside the lock, handlers may register handlers
	fn := h.get(k, false)
	if fn == nil {
		return false
	}
	fn()
	return true
}

// CallOnRelease runs the release handler for k and reports whether there was one
func (h *Handlers) CallOnRelease(k Key) bool {
	fn := h.get(k, true)
	if fn == nil {
		return false
	}
	fn()
	return true
}

// Remove drops all handlers of k
func (h *Handlers) Remove(k Key) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.m, k)
}

// Len returns the number of components with at least one handler
func (h *Handlers) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.m)
}

// Dispatch calls the click handler for a press and the release handler for a release
func (h *Handlers) Dispatch(ev TouchEvent) bool {
	k := Key{Page: ev.Page, Component: ev.Component}
	var called bool
	if ev.Pressed {
		called = h.CallOnClick(k)
	} else {
		called = h.CallOnRelease(k)
	}
	if !called {
		log.Debugf("No handler for %v", ev)
	}
	return called
}
