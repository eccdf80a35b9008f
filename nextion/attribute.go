package nextion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// WireKind tells how an attribute travels over the wire
type WireKind byte

const (
	Integer WireKind = iota // decimal in commands, number frame in replies
	Text                    // raw text in commands, string frame in replies
	Enum                    // code of a named variant, number frame in replies
	Bool                    // 0 or 1, number frame in replies
)

func (k WireKind) String() string {
	switch k {
	case Integer:
		return "integer"
	case Text:
		return "text"
	case Enum:
		return "enum"
	case Bool:
		return "bool"
	}
	return fmt.Sprintf("WireKind(%d)", byte(k))
}

// IntWidth is the logical width of an Integer attribute. The wire always carries 32 bits.
type IntWidth byte

const (
	U16 IntWidth = iota
	U8
	U32
	I32
)

func (w IntWidth) String() string {
	switch w {
	case U8:
		return "u8"
	case U16:
		return "u16"
	case U32:
		return "u32"
	case I32:
		return "i32"
	}
	return fmt.Sprintf("IntWidth(%d)", byte(w))
}

// Bounds returns the smallest and largest value of w
func (w IntWidth) Bounds() (int64, int64) {
	switch w {
	case U8:
		return 0, math.MaxUint8
	case U32:
		return 0, math.MaxUint32
	case I32:
		return math.MinInt32, math.MaxInt32
	}
	return 0, math.MaxUint16
}

// digits is the longest decimal rendering of a value of w
func (w IntWidth) digits() int {
	switch w {
	case U8:
		return 3
	case U32:
		return 10
	case I32:
		return 11
	}
	return 5
}

func (w IntWidth) narrow(raw uint32) (int64, error) {
	var v int64
	if w == I32 {
		v = int64(int32(raw))
	} else {
		v = int64(raw)
	}
	if lo, hi := w.Bounds(); v < lo || v > hi {
		return 0, fmt.Errorf("%w: %d does not fit %v", ErrUnrepresentable, v, w)
	}
	return v, nil
}

// Range is an inclusive domain of valid values
type Range struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// Contains reports whether v lies within r
func (r Range) Contains(v int64) bool {
	return v >= r.Min && v <= r.Max
}

// EnumCode maps a wire code to a named variant
type EnumCode struct {
	Code uint8  `json:"code"`
	Name string `json:"name"`
}

// Sizes of the fixed buffers
const (
	MaxNameLen    = 16  // longest component name accepted by Bind
	MaxCommandLen = 265 // largest command capacity, terminator excluded
	MaxTextLen    = 255 // largest string reply
	textSetCap    = 265
)

// AttributeSpec describes how one widget attribute is encoded and which values it accepts.
type AttributeSpec struct {
	Key    string     `json:"key"`
	Kind   WireKind   `json:"-"`
	Width  IntWidth   `json:"-"`
	Enum   []EnumCode `json:"enum,omitempty"`
	Range  *Range     `json:"range,omitempty"`
	MaxLen int        `json:"max_len,omitempty"` // Text only, 0 means MaxTextLen
	SetCap int        `json:"set_cap,omitempty"` // 0 means derived from the key and width
	GetCap int        `json:"get_cap,omitempty"`
}

// MarshalJSON renders kind and width as names
func (s AttributeSpec) MarshalJSON() ([]byte, error) {
	type plain AttributeSpec
	typ := s.Kind.String()
	if s.Kind == Integer {
		typ = s.Width.String()
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
		SetCap int `json:"set_cap"`
		GetCap int `json:"get_cap"`
	}{typ, plain(s), s.SetCapacity(), s.GetCapacity()})
}

// SetCapacity returns the command buffer capacity for assignments
func (s AttributeSpec) SetCapacity() int {
	if s.SetCap > 0 {
		return s.SetCap
	}
	switch s.Kind {
	case Text:
		return textSetCap
	case Enum, Bool:
		return MaxNameLen + 1 + len(s.Key) + 1 + 3
	}
	return MaxNameLen + 1 + len(s.Key) + 1 + s.Width.digits()
}

// GetCapacity returns the command buffer capacity for queries
func (s AttributeSpec) GetCapacity() int {
	if s.GetCap > 0 {
		return s.GetCap
	}
	return 4 + MaxNameLen + 1 + len(s.Key)
}

func (s AttributeSpec) maxLen() int {
	if s.MaxLen > 0 && s.MaxLen < MaxTextLen {
		return s.MaxLen
	}
	return MaxTextLen
}

// longestValue is the length of the longest value an assignment may carry
func (s AttributeSpec) longestValue() int {
	switch s.Kind {
	case Text:
		return 0 // text is bounded by the capacity itself
	case Enum, Bool:
		return 3
	}
	return s.Width.digits()
}

// Fits checks that the longest legal commands for name fit the capacities of s
func (s AttributeSpec) Fits(name string) error {
	if n := len(name) + 1 + len(s.Key) + 1 + s.longestValue(); n > s.SetCapacity() {
		return tooLong(name+"."+s.Key+"=", n, s.SetCapacity())
	}
	if n := 4 + len(name) + 1 + len(s.Key); n > s.GetCapacity() {
		return tooLong("get "+name+"."+s.Key, n, s.GetCapacity())
	}
	return nil
}

// Validate checks that s is usable as a table entry
func (s AttributeSpec) Validate() error {
	if s.Key == "" || strings.ContainsAny(s.Key, " =.") || strings.IndexByte(s.Key, TagEnd) >= 0 {
		return fmt.Errorf("%w: attribute key %q", ErrInvalidValue, s.Key)
	}
	if s.SetCapacity() > MaxCommandLen || s.GetCapacity() > MaxCommandLen {
		return fmt.Errorf("%w: %s capacity larger than %d", ErrCommandTooLong, s.Key, MaxCommandLen)
	}
	switch s.Kind {
	case Integer:
		if s.Range != nil {
			lo, hi := s.Width.Bounds()
			if s.Range.Min > s.Range.Max || s.Range.Min < lo || s.Range.Max > hi {
				return fmt.Errorf("%w: %s range %d..%d outside %v", ErrInvalidValue, s.Key, s.Range.Min, s.Range.Max, s.Width)
			}
		}
	case Enum:
		if len(s.Enum) == 0 {
			return fmt.Errorf("%w: enum %s without variants", ErrInvalidValue, s.Key)
		}
		seen := map[uint8]bool{}
		for _, e := range s.Enum {
			if seen[e.Code] {
				return fmt.Errorf("%w: enum %s repeats code %d", ErrInvalidValue, s.Key, e.Code)
			}
			seen[e.Code] = true
		}
	case Text, Bool:
	default:
		return fmt.Errorf("%w: %s has unknown kind %v", ErrInvalidValue, s.Key, s.Kind)
	}
	return nil
}

// Code looks up the wire code of an enum variant
func (s AttributeSpec) Code(name string) (uint8, bool) {
	for _, e := range s.Enum {
		if strings.EqualFold(e.Name, name) {
			return e.Code, true
		}
	}
	return 0, false
}

// Variant looks up the variant name of an enum wire code
func (s AttributeSpec) Variant(code int64) (string, bool) {
	for _, e := range s.Enum {
		if int64(e.Code) == code {
			return e.Name, true
		}
	}
	return "", false
}

// toInt64 accepts the Go numeric types, and whole floats as produced by encoding/json
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return toInt64(float64(n))
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// appendValue validates v and appends its wire form to dst
func (s AttributeSpec) appendValue(dst []byte, v interface{}) ([]byte, error) {
	switch s.Kind {
	case Text:
		var b []byte
		switch t := v.(type) {
		case string:
			b = []byte(t)
		case []byte:
			b = t
		default:
			return dst, fmt.Errorf("%w: %s expects text, got %T", ErrInvalidValue, s.Key, v)
		}
		if bytes.IndexByte(b, TagEnd) >= 0 {
			return dst, fmt.Errorf("%w: %s text contains 0xFF", ErrInvalidValue, s.Key)
		}
		if s.MaxLen > 0 && len(b) > s.MaxLen {
			return dst, fmt.Errorf("%w: %s text of %d bytes, maximum is %d", ErrValueOutOfRange, s.Key, len(b), s.MaxLen)
		}
		return append(dst, b...), nil
	case Bool:
		if b, ok := v.(bool); ok {
			if b {
				return append(dst, '1'), nil
			}
			return append(dst, '0'), nil
		}
		n, ok := toInt64(v)
		if !ok {
			return dst, fmt.Errorf("%w: %s expects a bool, got %T", ErrInvalidValue, s.Key, v)
		}
		if n != 0 && n != 1 {
			return dst, fmt.Errorf("%w: %s=%d, expected 0 or 1", ErrValueOutOfRange, s.Key, n)
		}
		return strconv.AppendInt(dst, n, 10), nil
	case Enum:
		switch t := v.(type) {
		case EnumCode:
			v = t.Code
		case string:
			code, ok := s.Code(t)
			if !ok {
				return dst, fmt.Errorf("%w: %s has no variant %q", ErrInvalidValue, s.Key, t)
			}
			return strconv.AppendUint(dst, uint64(code), 10), nil
		}
		n, ok := toInt64(v)
		if !ok {
			return dst, fmt.Errorf("%w: %s expects a variant name, got %T", ErrInvalidValue, s.Key, v)
		}
		if _, ok := s.Variant(n); !ok {
			return dst, fmt.Errorf("%w: %s has no code %d", ErrInvalidValue, s.Key, n)
		}
		return strconv.AppendInt(dst, n, 10), nil
	}

	n, ok := toInt64(v)
	if !ok {
		return dst, fmt.Errorf("%w: %s expects an integer, got %T(%v)", ErrInvalidValue, s.Key, v, v)
	}
	if lo, hi := s.Width.Bounds(); n < lo || n > hi {
		return dst, fmt.Errorf("%w: %s=%d outside %v", ErrValueOutOfRange, s.Key, n, s.Width)
	}
	if s.Range != nil && !s.Range.Contains(n) {
		return dst, fmt.Errorf("%w: %s=%d outside %d..%d", ErrValueOutOfRange, s.Key, n, s.Range.Min, s.Range.Max)
	}
	return strconv.AppendInt(dst, n, 10), nil
}

// fromWire converts a decoded number to the logical value of s
func (s AttributeSpec) fromWire(raw int64) (interface{}, error) {
	switch s.Kind {
	case Bool:
		switch raw {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return nil, fmt.Errorf("%w: %s returned %d, expected 0 or 1", ErrInvalidValue, s.Key, raw)
	case Enum:
		name, ok := s.Variant(raw)
		if !ok {
			return nil, fmt.Errorf("%w: %s returned unmapped code %d", ErrInvalidValue, s.Key, raw)
		}
		return name, nil
	}
	return raw, nil
}

func (s AttributeSpec) wireWidth() IntWidth {
	if s.Kind == Integer {
		return s.Width
	}
	return U32
}

// Set validates v against spec and writes it to the attribute of c.
// Nothing is written if validation fails.
func Set(c *Component, spec AttributeSpec, v interface{}) error {
	var val [MaxCommandLen]byte
	value, err := spec.appendValue(val[:0], v)
	if err != nil {
		return fmt.Errorf("set %s.%s: %w", c.name, spec.Key, err)
	}
	err = c.panel.exchange(func(t Transport, buf []byte) error {
		frame, err := EncodeSet(buf[:0], c.name, spec.Key, value, spec.SetCapacity())
		if err != nil {
			return err
		}
		return send(t, frame)
	})
	if err != nil {
		return fmt.Errorf("set %s.%s: %w", c.name, spec.Key, err)
	}
	return nil
}

// Get queries the attribute of c and decodes the reply according to spec.
// Integer attributes yield an int64, Text a string, Enum the variant name
// and Bool a bool. A truncated text is returned together with ErrTruncated.
func Get(c *Component, spec AttributeSpec) (interface{}, error) {
	var v interface{}
	err := c.panel.exchange(func(t Transport, buf []byte) error {
		frame, err := EncodeGet(buf[:0], c.name, spec.Key, spec.GetCapacity())
		if err != nil {
			return err
		}
		if err := send(t, frame); err != nil {
			return err
		}
		if spec.Kind == Text {
			n, err := DecodeString(t, buf[:spec.maxLen()])
			if err == nil || errors.Is(err, ErrTruncated) {
				v = string(buf[:n])
			}
			return err
		}
		raw, err := DecodeNumber(t, spec.wireWidth())
		if err != nil {
			return err
		}
		v, err = spec.fromWire(raw)
		return err
	})
	if err != nil {
		return v, fmt.Errorf("get %s.%s: %w", c.name, spec.Key, err)
	}
	return v, nil
}
