package nextion

import (
	"fmt"
)

// Frame is an inbound frame with its tag and the payload before the terminator
type Frame struct {
	Tag     byte
	Payload []byte
}

func (f Frame) String() string {
	return fmt.Sprintf("%s[% X]", TagName(f.Tag), f.Payload)
}

// IsEvent reports whether the frame is an unsolicited event or status notification
func (f Frame) IsEvent() bool {
	return IsEventTag(f.Tag)
}

// Status returns nil for an acknowledge frame and a *DeviceError for a rejection code
func (f Frame) Status() error {
	switch {
	case f.Tag == TagOK:
		return nil
	case IsRejection(f.Tag):
		return &DeviceError{Code: f.Tag}
	}
	return fmt.Errorf("%w: expected status, received %v", ErrMalformedFrame, f)
}

// IsEventTag reports whether tag starts an asynchronous notification
func IsEventTag(tag byte) bool {
	switch tag {
	case TagTouch, TagCurrentPage, TagTouchPosition, TagSleepPosition, TagLaunched, TagUpgraded:
		return true
	}
	return false
}

// TagName returns a readable name of an inbound tag
func TagName(tag byte) string {
	switch tag {
	case TagOK:
		return "ok"
	case TagTouch:
		return "touch"
	case TagCurrentPage:
		return "page"
	case TagTouchPosition:
		return "position"
	case TagSleepPosition:
		return "sleep-position"
	case TagString:
		return "string"
	case TagNumber:
		return "number"
	case TagLaunched:
		return "launched"
	case TagUpgraded:
		return "upgraded"
	}
	if IsRejection(tag) {
		return statusName(tag)
	}
	return fmt.Sprintf("0x%02X", tag)
}

// ReadFrame reads one complete frame of any kind into buf. Number frames are
// read by length, all others up to the terminator run. The returned payload
// aliases buf.
func ReadFrame(t Transport, buf []byte) (Frame, error) {
	tag, err := readByte(t)
	if err != nil {
		return Frame{}, err
	}
	f := Frame{Tag: tag}
	if tag == TagNumber {
		if len(buf) < 4 {
			return f, fmt.Errorf("%w: number frame needs a 4 byte buffer", ErrTruncated)
		}
		if err := readNumber(t, buf); err != nil {
			return f, err
		}
		f.Payload = buf[:4]
		return f, nil
	}
	n, dropped, err := readContent(t, buf)
	f.Payload = buf[:n]
	if err != nil {
		return f, err
	}
	if dropped > 0 {
		return f, fmt.Errorf("%w: %s frame dropped %d bytes", ErrTruncated, TagName(tag), dropped)
	}
	return f, nil
}

// TouchEvent is a press or release on a component
type TouchEvent struct {
	Page      uint8 `json:"page"`
	Component uint8 `json:"component"`
	Pressed   bool  `json:"pressed"`
}

func (ev TouchEvent) String() string {
	state := "release"
	if ev.Pressed {
		state = "press"
	}
	return fmt.Sprintf("%s %d/%d", state, ev.Page, ev.Component)
}

// ParseTouch decodes the payload of a touch frame: page, component, state
func ParseTouch(f Frame) (TouchEvent, error) {
	if f.Tag != TagTouch {
		return TouchEvent{}, fmt.Errorf("%w: %v is not a touch event", ErrMalformedFrame, f)
	}
	if len(f.Payload) != 3 {
		return TouchEvent{}, fmt.Errorf("%w: touch event with %d payload bytes", ErrMalformedFrame, len(f.Payload))
	}
	ev := TouchEvent{Page: f.Payload[0], Component: f.Payload[1]}
	switch f.Payload[2] {
	case 0x01:
		ev.Pressed = true
	case 0x00:
	default:
		return ev, fmt.Errorf("%w: touch state 0x%02X", ErrInvalidValue, f.Payload[2])
	}
	return ev, nil
}
