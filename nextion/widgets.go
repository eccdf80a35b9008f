package nextion

import (
	_ "embed"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

//go:embed widgets.toml
var defaultTable []byte

// Widget is one widget kind with its attributes in table order
type Widget struct {
	Kind       string          `json:"kind"`
	Touch      bool            `json:"touch"`
	Attributes []AttributeSpec `json:"attributes"`
}

// Table maps widget kinds to their attributes
type Table map[string]Widget

// Lookup finds attribute key of widget kind
func (t Table) Lookup(kind, key string) (AttributeSpec, bool) {
	w, ok := t[kind]
	if !ok {
		return AttributeSpec{}, false
	}
	for _, spec := range w.Attributes {
		if spec.Key == key {
			return spec, true
		}
	}
	return AttributeSpec{}, false
}

// Kinds returns the widget kinds in alphabetical order
func (t Table) Kinds() []string {
	kinds := make([]string, 0, len(t))
	for k := range t {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// xAttribute holds an attribute definition as written in a table file
type xAttribute struct {
	Key    string   `toml:"key" yaml:"key"`
	Type   string   `toml:"type" yaml:"type"`
	Enum   []string `toml:"enum" yaml:"enum"`
	Range  []int64  `toml:"range" yaml:"range"`
	MaxLen int      `toml:"max_len" yaml:"max_len"`
	SetCap int      `toml:"set_cap" yaml:"set_cap"`
	GetCap int      `toml:"get_cap" yaml:"get_cap"`
}

// xWidget holds a widget definition as written in a table file
type xWidget struct {
	Kind       string       `toml:"kind" yaml:"kind"`
	Touch      bool         `toml:"touch" yaml:"touch"`
	Attributes []string     `toml:"attributes" yaml:"attributes"`
	Override   []xAttribute `toml:"override" yaml:"override"`
}

type xTable struct {
	Attribute map[string]xAttribute `toml:"attribute" yaml:"attribute"`
	Widget    []xWidget             `toml:"widget" yaml:"widget"`
}

func validatexAttribute(key string, xa xAttribute) (AttributeSpec, error) {
	spec := AttributeSpec{Key: key, MaxLen: xa.MaxLen, SetCap: xa.SetCap, GetCap: xa.GetCap}
	switch strings.ToLower(xa.Type) {
	case "u8":
		spec.Kind, spec.Width = Integer, U8
	case "u16":
		spec.Kind, spec.Width = Integer, U16
	case "u32":
		spec.Kind, spec.Width = Integer, U32
	case "i32", "int":
		spec.Kind, spec.Width = Integer, I32
	case "text", "string":
		spec.Kind = Text
	case "bool":
		spec.Kind = Bool
	case "enum":
		spec.Kind = Enum
		for i, name := range xa.Enum {
			spec.Enum = append(spec.Enum, EnumCode{Code: uint8(i), Name: name})
		}
		if len(xa.Enum) > 256 {
			return spec, fmt.Errorf("%w: enum %s has more than 256 variants", ErrInvalidValue, key)
		}
	default:
		return spec, fmt.Errorf("%w: attribute %s has unknown type %q", ErrInvalidValue, key, xa.Type)
	}
	switch len(xa.Range) {
	case 0:
	case 2:
		spec.Range = &Range{Min: xa.Range[0], Max: xa.Range[1]}
	default:
		return spec, fmt.Errorf("%w: attribute %s range needs [min, max]", ErrInvalidValue, key)
	}
	return spec, spec.Validate()
}

func (xt xTable) table() (Table, error) {
	shared := make(map[string]AttributeSpec, len(xt.Attribute))
	for key, xa := range xt.Attribute {
		if xa.Key != "" && xa.Key != key {
			return nil, fmt.Errorf("%w: attribute %s declares key %s", ErrInvalidValue, key, xa.Key)
		}
		spec, err := validatexAttribute(key, xa)
		if err != nil {
			return nil, err
		}
		shared[key] = spec
	}

	t := make(Table, len(xt.Widget))
	for _, xw := range xt.Widget {
		if xw.Kind == "" {
			return nil, fmt.Errorf("%w: widget without kind", ErrInvalidValue)
		}
		if _, dup := t[xw.Kind]; dup {
			return nil, fmt.Errorf("%w: widget %s defined twice", ErrInvalidValue, xw.Kind)
		}
		w := Widget{Kind: xw.Kind, Touch: xw.Touch}
		for _, key := range xw.Attributes {
			spec, ok := shared[key]
			if !ok {
				// may be supplied by an override
				spec = AttributeSpec{Key: key, Kind: WireKind(255)}
			}
			w.Attributes = append(w.Attributes, spec)
		}
	overrides:
		for _, xa := range xw.Override {
			spec, err := validatexAttribute(xa.Key, xa)
			if err != nil {
				return nil, fmt.Errorf("widget %s: %w", xw.Kind, err)
			}
			for i := range w.Attributes {
				if w.Attributes[i].Key == spec.Key {
					w.Attributes[i] = spec
					continue overrides
				}
			}
			w.Attributes = append(w.Attributes, spec)
		}
		for _, spec := range w.Attributes {
			if spec.Kind == WireKind(255) {
				return nil, fmt.Errorf("%w: widget %s lists undefined attribute %s", ErrUnknownAttribute, xw.Kind, spec.Key)
			}
		}
		t[xw.Kind] = w
	}
	return t, nil
}

// ParseTable reads a widget table in TOML, or in YAML if format is "yaml" or "yml".
func ParseTable(r io.Reader, format string) (Table, error) {
	var xt xTable
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&xt); err != nil {
			return nil, fmt.Errorf("widget table: %w", err)
		}
	case "toml", "":
		if _, err := toml.NewDecoder(r).Decode(&xt); err != nil {
			return nil, fmt.Errorf("widget table: %w", err)
		}
	default:
		return nil, fmt.Errorf("widget table: unknown format %q", format)
	}
	t, err := xt.table()
	if err != nil {
		return nil, fmt.Errorf("widget table: %w", err)
	}
	log.Debugf("Loaded %d widget kinds", len(t))
	return t, nil
}

// FormatOf guesses the table format from a file name
func FormatOf(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

// DefaultTable returns the built-in table of the standard widget kinds
func DefaultTable() Table {
	t, err := ParseTable(strings.NewReader(string(defaultTable)), "toml")
	if err != nil {
		panic(err)
	}
	return t
}

// Merge returns a table with the kinds of o added to, or replacing, those of t
func (t Table) Merge(o Table) Table {
	m := make(Table, len(t)+len(o))
	for k, w := range t {
		m[k] = w
	}
	for k, w := range o {
		m[k] = w
	}
	return m
}
