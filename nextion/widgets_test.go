package nextion

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()
	for _, kind := range []string{"Text", "Number", "Button", "ProgressBar", "Gauge", "WaveForm", "Slider", "Checkbox", "Timer", "Hotspot"} {
		if _, ok := table[kind]; !ok {
			t.Errorf("missing widget kind %s", kind)
		}
	}
	for _, kind := range table.Kinds() {
		for _, spec := range table[kind].Attributes {
			if err := spec.Validate(); err != nil {
				t.Errorf("%s.%s: %v", kind, spec.Key, err)
			}
			if err := spec.Fits(strings.Repeat("n", MaxNameLen)); err != nil {
				t.Errorf("%s.%s: %v", kind, spec.Key, err)
			}
		}
	}
}

func TestDefaultTableOverrides(t *testing.T) {
	table := DefaultTable()
	tests := []struct {
		kind, key string
		kindOf    WireKind
		width     IntWidth
		rng       *Range
	}{
		{"Text", "txt", Text, U16, nil},
		{"Number", "val", Integer, I32, nil},
		{"ProgressBar", "val", Integer, U8, &Range{0, 100}},
		{"Gauge", "val", Integer, U16, &Range{0, 360}},
		{"Timer", "tim", Integer, U16, &Range{50, 65535}},
		{"ScrollingText", "tim", Integer, U16, &Range{80, 65535}},
		{"WaveForm", "pco4", Integer, U16, nil},
		{"Checkbox", "val", Bool, U16, nil},
		{"Text", "xcen", Enum, U16, nil},
	}
	for _, tt := range tests {
		t.Run(tt.kind+"."+tt.key, func(t *testing.T) {
			spec, ok := table.Lookup(tt.kind, tt.key)
			if !ok {
				t.Fatalf("Lookup(%s, %s) failed", tt.kind, tt.key)
			}
			if spec.Kind != tt.kindOf || (spec.Kind == Integer && spec.Width != tt.width) {
				t.Errorf("spec = %v %v, want %v %v", spec.Kind, spec.Width, tt.kindOf, tt.width)
			}
			if (spec.Range == nil) != (tt.rng == nil) || (spec.Range != nil && *spec.Range != *tt.rng) {
				t.Errorf("range = %v, want %v", spec.Range, tt.rng)
			}
		})
	}
	if _, ok := table.Lookup("Gauge", "txt"); ok {
		t.Error("Gauge has no txt")
	}
	if _, ok := table.Lookup("Hologram", "txt"); ok {
		t.Error("Lookup of unknown kind succeeded")
	}
}

const yamlTable = `
attribute:
  val:
    type: u16
  mode:
    type: enum
    enum: [off, auto, manual]
widget:
  - kind: Thermostat
    touch: true
    attributes: [val, mode]
    override:
      - key: val
        type: u8
        range: [5, 30]
`

func TestParseTableYAML(t *testing.T) {
	table, err := ParseTable(strings.NewReader(yamlTable), "yaml")
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}
	w := table["Thermostat"]
	if !w.Touch || len(w.Attributes) != 2 {
		t.Fatalf("Thermostat = %+v", w)
	}
	val, _ := table.Lookup("Thermostat", "val")
	if val.Width != U8 || val.Range == nil || val.Range.Min != 5 || val.Range.Max != 30 {
		t.Errorf("val = %+v", val)
	}
	mode, _ := table.Lookup("Thermostat", "mode")
	if code, ok := mode.Code("manual"); !ok || code != 2 {
		t.Errorf("Code(manual) = %d, %v", code, ok)
	}
}

func TestParseTableErrors(t *testing.T) {
	tests := []struct {
		name, format, src string
		want              error
	}{
		{"undefined attribute", "toml", "[[widget]]\nkind = \"A\"\nattributes = [\"nope\"]\n", ErrUnknownAttribute},
		{"unknown type", "toml", "[attribute.v]\ntype = \"float\"\n", ErrInvalidValue},
		{"bad range", "toml", "[attribute.v]\ntype = \"u8\"\nrange = [1]\n", ErrInvalidValue},
		{"range beyond width", "toml", "[attribute.v]\ntype = \"u8\"\nrange = [0, 300]\n", ErrInvalidValue},
		{"duplicate kind", "toml", "[[widget]]\nkind = \"A\"\n[[widget]]\nkind = \"A\"\n", ErrInvalidValue},
		{"missing kind", "yaml", "widget:\n  - touch: true\n", ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTable(strings.NewReader(tt.src), tt.format)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if _, err := ParseTable(strings.NewReader(""), "xml"); err == nil {
		t.Error("unknown format accepted")
	}
	if _, err := ParseTable(strings.NewReader("[[widget"), "toml"); err == nil {
		t.Error("broken toml accepted")
	}
}

func TestTableMerge(t *testing.T) {
	base := DefaultTable()
	extra := Table{
		"Text":  Widget{Kind: "Text"},
		"Extra": Widget{Kind: "Extra"},
	}
	m := base.Merge(extra)
	if len(m["Text"].Attributes) != 0 {
		t.Error("Merge did not replace Text")
	}
	if _, ok := m["Extra"]; !ok {
		t.Error("Merge did not add Extra")
	}
	if len(base["Text"].Attributes) == 0 {
		t.Error("Merge modified its receiver")
	}
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]string{"a/widgets.yaml": "yaml", "w.toml": "toml", "table": ""} {
		if got := FormatOf(path); got != want {
			t.Errorf("FormatOf(%q) = %q, want %q", path, got, want)
		}
	}
}
