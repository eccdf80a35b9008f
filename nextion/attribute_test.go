package nextion

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

var (
	flagSpec  = AttributeSpec{Key: "en", Kind: Integer, Width: U8, Range: &Range{0, 1}}
	alignSpec = AttributeSpec{Key: "xcen", Kind: Enum, Enum: []EnumCode{{0, "left"}, {1, "center"}, {2, "right"}}}
	boolSpec  = AttributeSpec{Key: "val", Kind: Bool}
	txtSpec   = AttributeSpec{Key: "txt", Kind: Text}
	valSpec   = AttributeSpec{Key: "val", Kind: Integer, Width: I32}
)

func bindT0(t *testing.T, replies ...[]byte) (*Component, *fakeLink) {
	t.Helper()
	link := newFakeLink(replies...)
	c, err := NewPanel(link).Bind(0, 1, "t0")
	if err != nil {
		t.Fatal(err)
	}
	return c, link
}

func TestSetText(t *testing.T) {
	c, link := bindT0(t)
	if err := Set(c, txtSpec, "Hello"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	want := []byte{0x74, 0x30, 0x2E, 0x74, 0x78, 0x74, 0x3D, 0x48, 0x65, 0x6C, 0x6C, 0x6F, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(link.tx.Bytes(), want) {
		t.Errorf("Set() wrote % X, want % X", link.tx.Bytes(), want)
	}
}

func TestSetValues(t *testing.T) {
	tests := []struct {
		spec AttributeSpec
		v    interface{}
		want string
	}{
		{flagSpec, 1, "t0.en=1"},
		{flagSpec, uint8(0), "t0.en=0"},
		{valSpec, -7, "t0.val=-7"},
		{valSpec, json.Number("2147483647"), "t0.val=2147483647"},
		{valSpec, 12.0, "t0.val=12"},
		{alignSpec, "center", "t0.xcen=1"},
		{alignSpec, "RIGHT", "t0.xcen=2"},
		{alignSpec, 0, "t0.xcen=0"},
		{alignSpec, EnumCode{2, "right"}, "t0.xcen=2"},
		{boolSpec, true, "t0.val=1"},
		{boolSpec, false, "t0.val=0"},
		{boolSpec, 1, "t0.val=1"},
		{txtSpec, []byte("a\xfeb"), "t0.txt=a\xfeb"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			c, link := bindT0(t)
			if err := Set(c, tt.spec, tt.v); err != nil {
				t.Fatalf("Set(%v) error = %v", tt.v, err)
			}
			if !bytes.Equal(link.tx.Bytes(), frame(tt.want)) {
				t.Errorf("Set(%v) wrote %q, want %q", tt.v, link.tx.Bytes(), tt.want)
			}
		})
	}
}

func TestSetRejectsBeforeWriting(t *testing.T) {
	tests := []struct {
		name string
		spec AttributeSpec
		v    interface{}
		want error
	}{
		{"range", flagSpec, 2, ErrValueOutOfRange},
		{"width", AttributeSpec{Key: "bco", Kind: Integer, Width: U16}, 65536, ErrValueOutOfRange},
		{"negative unsigned", AttributeSpec{Key: "bco", Kind: Integer, Width: U16}, -1, ErrValueOutOfRange},
		{"fraction", valSpec, 1.5, ErrInvalidValue},
		{"type", valSpec, "12", ErrInvalidValue},
		{"bool 2", boolSpec, 2, ErrValueOutOfRange},
		{"bool type", boolSpec, "yes", ErrInvalidValue},
		{"enum name", alignSpec, "justify", ErrInvalidValue},
		{"enum code", alignSpec, 3, ErrInvalidValue},
		{"text 0xFF", txtSpec, "a\xffb", ErrInvalidValue},
		{"text type", txtSpec, 3, ErrInvalidValue},
		{"text length", AttributeSpec{Key: "txt", Kind: Text, MaxLen: 4}, "Hello", ErrValueOutOfRange},
		{"capacity", AttributeSpec{Key: "txt", Kind: Text, SetCap: 10}, "Hello", ErrCommandTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, link := bindT0(t)
			err := Set(c, tt.spec, tt.v)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if k := KindOf(err); tt.want != ErrCommandTooLong && k != KindValidation {
				t.Errorf("KindOf() = %v, want validation", k)
			}
			if link.tx.Len() != 0 {
				t.Errorf("rejected value was written: %q", link.tx.Bytes())
			}
			if !strings.Contains(err.Error(), "t0."+tt.spec.Key) {
				t.Errorf("error %q does not name the attribute", err)
			}
		})
	}
}

func TestSetFlagZeroWrites(t *testing.T) {
	c, link := bindT0(t)
	err := Set(c, flagSpec, 2)
	if KindOf(err) != KindValidation {
		t.Fatalf("KindOf() = %v, want validation", KindOf(err))
	}
	if link.writes != 0 {
		t.Errorf("transport saw %d writes", link.writes)
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name  string
		spec  AttributeSpec
		reply []byte
		want  interface{}
	}{
		{"text", txtSpec, stringReply("Hello"), "Hello"},
		{"empty text", txtSpec, stringReply(""), ""},
		{"integer", valSpec, numberReply(uint32(0xFFFFFFFE)), int64(-2)},
		{"flag", flagSpec, numberReply(1), int64(1)},
		{"enum", alignSpec, numberReply(2), "right"},
		{"bool", boolSpec, numberReply(1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, link := bindT0(t, tt.reply)
			got, err := Get(c, tt.spec)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Get() = %#v, want %#v", got, tt.want)
			}
			if !bytes.Equal(link.tx.Bytes(), frame("get t0."+tt.spec.Key)) {
				t.Errorf("Get() wrote %q", link.tx.Bytes())
			}
		})
	}
}

func TestGetErrors(t *testing.T) {
	tests := []struct {
		name  string
		spec  AttributeSpec
		reply []byte
		want  error
		kind  Kind
	}{
		{"unmapped enum", alignSpec, numberReply(7), ErrInvalidValue, KindValidation},
		{"bool 2", boolSpec, numberReply(2), ErrInvalidValue, KindValidation},
		{"u8 overflow", flagSpec, numberReply(300), ErrUnrepresentable, KindValidation},
		{"number for text", txtSpec, numberReply(1), ErrMalformedFrame, KindFraming},
		{"rejected", valSpec, []byte{TagInvalidVariable, 0xFF, 0xFF, 0xFF}, ErrMalformedFrame, KindSemantic},
		{"silent", valSpec, nil, ErrTransportRead, KindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := bindT0(t, tt.reply)
			_, err := Get(c, tt.spec)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if KindOf(err) != tt.kind {
				t.Errorf("KindOf() = %v, want %v", KindOf(err), tt.kind)
			}
		})
	}
}

func TestGetTruncatedText(t *testing.T) {
	spec := AttributeSpec{Key: "txt", Kind: Text, MaxLen: 3}
	c, link := bindT0(t, stringReply("Hello"), numberReply(5))
	v, err := Get(c, spec)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if v != "Hel" {
		t.Errorf("Get() = %q, want Hel", v)
	}
	// the stream stays in sync for the next exchange
	n, err := Get(c, valSpec)
	if err != nil || n != int64(5) {
		t.Errorf("next Get() = %v, %v", n, err)
	}
	if link.remaining() != 0 {
		t.Errorf("%d bytes left", link.remaining())
	}
}

func TestSetTransportError(t *testing.T) {
	c, link := bindT0(t)
	link.writeErr = errors.New("broken pipe")
	err := Set(c, valSpec, 1)
	if !errors.Is(err, ErrTransportWrite) {
		t.Fatalf("expected ErrTransportWrite, got %v", err)
	}
	if KindOf(err) != KindTransport {
		t.Errorf("KindOf() = %v", KindOf(err))
	}
}

func TestSpecCapacities(t *testing.T) {
	bco := AttributeSpec{Key: "bco", Kind: Integer, Width: U16}
	if got, want := bco.SetCapacity(), 16+1+3+1+5; got != want {
		t.Errorf("SetCapacity() = %d, want %d", got, want)
	}
	if got, want := bco.GetCapacity(), 4+16+1+3; got != want {
		t.Errorf("GetCapacity() = %d, want %d", got, want)
	}
	if got := txtSpec.SetCapacity(); got != MaxCommandLen {
		t.Errorf("text SetCapacity() = %d", got)
	}
	if err := bco.Fits(strings.Repeat("n", MaxNameLen)); err != nil {
		t.Errorf("Fits(16 chars) error = %v", err)
	}
	small := AttributeSpec{Key: "bco", Kind: Integer, Width: U16, SetCap: 10}
	if err := small.Fits("t0"); !errors.Is(err, ErrCommandTooLong) {
		t.Errorf("expected ErrCommandTooLong, got %v", err)
	}
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name string
		spec AttributeSpec
		ok   bool
	}{
		{"integer", valSpec, true},
		{"enum", alignSpec, true},
		{"empty key", AttributeSpec{Kind: Text}, false},
		{"dotted key", AttributeSpec{Key: "a.b", Kind: Text}, false},
		{"range beyond width", AttributeSpec{Key: "v", Kind: Integer, Width: U8, Range: &Range{0, 256}}, false},
		{"inverted range", AttributeSpec{Key: "v", Kind: Integer, Width: U8, Range: &Range{5, 1}}, false},
		{"enum without variants", AttributeSpec{Key: "v", Kind: Enum}, false},
		{"enum repeats code", AttributeSpec{Key: "v", Kind: Enum, Enum: []EnumCode{{0, "a"}, {0, "b"}}}, false},
		{"capacity", AttributeSpec{Key: "v", Kind: Text, SetCap: MaxCommandLen + 1}, false},
		{"kind", AttributeSpec{Key: "v", Kind: WireKind(9)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, ok %v", err, tt.ok)
			}
		})
	}
}

func TestSpecMarshalJSON(t *testing.T) {
	b, err := json.Marshal(flagSpec)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got["type"] != "u8" || got["key"] != "en" {
		t.Errorf("MarshalJSON() = %s", b)
	}
	if got["set_cap"] != float64(flagSpec.SetCapacity()) {
		t.Errorf("set_cap = %v", got["set_cap"])
	}
}
