// Package load reads schema sources: YAML documents declaring the record
// types of one flat file family, its version and header, and the other
// sources it includes.
package load

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/syssam/flatgraph"
	"github.com/syssam/flatgraph/schema"
	"github.com/syssam/flatgraph/schema/field"
)

// Source represents a schema source loaded from YAML.
type Source struct {
	Name     string          `yaml:"name"`
	File     schema.FileType `yaml:"file,omitempty"`
	Version  string          `yaml:"version,omitempty"`
	Header   string          `yaml:"header,omitempty"`
	Includes []*Include      `yaml:"includes,omitempty"`
	Types    []*Type         `yaml:"types,omitempty"`
	Path     string          `yaml:"-"`
}

// Include is an inclusion directive: the types of another source, minus
// the excluded names.
type Include struct {
	Source  string   `yaml:"source"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// Type represents a record type entry. An entry without fields and without
// an extensible group refers to a type defined by another source, or
// declares a type without fields if no other source defines it.
type Type struct {
	Name       string      `yaml:"name"`
	Group      string      `yaml:"group,omitempty"`
	Memo       string      `yaml:"memo,omitempty"`
	Unique     bool        `yaml:"unique,omitempty"`
	Required   bool        `yaml:"required,omitempty"`
	Fields     []*Field    `yaml:"fields,omitempty"`
	Extensible *Extensible `yaml:"extensible,omitempty"`
}

// Extensible represents the extensible group of a record type entry.
type Extensible struct {
	Max    int      `yaml:"max,omitempty"`
	Fields []*Field `yaml:"fields"`
}

// Field represents a field entry.
type Field struct {
	Name             string   `yaml:"name"`
	Kind             string   `yaml:"kind"`
	Required         bool     `yaml:"required,omitempty"`
	Default          any      `yaml:"default,omitempty"`
	Min              *float64 `yaml:"min,omitempty"`
	Max              *float64 `yaml:"max,omitempty"`
	ExclusiveMin     bool     `yaml:"exclusive_min,omitempty"`
	ExclusiveMax     bool     `yaml:"exclusive_max,omitempty"`
	Autosizable      bool     `yaml:"autosizable,omitempty"`
	Autocalculatable bool     `yaml:"autocalculatable,omitempty"`
	Choices          []string `yaml:"choices,omitempty"`
	Refs             []string `yaml:"refs,omitempty"`
	Port             string   `yaml:"port,omitempty"`
	Dir              string   `yaml:"dir,omitempty"`
	Comment          string   `yaml:"comment,omitempty"`
}

// Pair is one (record type name, group label) entry of a source.
type Pair struct {
	Name, Group string
}

// Pairs returns the ordered (name, group) entries of the source.
func (s *Source) Pairs() []Pair {
	pairs := make([]Pair, len(s.Types))
	for i, t := range s.Types {
		pairs[i] = Pair{Name: t.Name, Group: t.Group}
	}
	return pairs
}

// Defines reports if the entry carries a definition rather than a reference.
func (t *Type) Defines() bool {
	return len(t.Fields) > 0 || t.Extensible != nil
}

// RecordType builds the record type described by the entry.
func (t *Type) RecordType() (*schema.RecordType, error) {
	opts := []schema.Option{
		schema.WithGroup(t.Group),
		schema.WithMemo(t.Memo),
	}
	fields := make([]field.Field, 0, len(t.Fields))
	for _, f := range t.Fields {
		fd, err := f.Descriptor()
		if err != nil {
			return nil, fmt.Errorf("record type %q: %w", t.Name, err)
		}
		fields = append(fields, fd)
	}
	opts = append(opts, schema.Fields(fields...))
	if ext := t.Extensible; ext != nil {
		efs := make([]field.Field, 0, len(ext.Fields))
		for _, f := range ext.Fields {
			fd, err := f.Descriptor()
			if err != nil {
				return nil, fmt.Errorf("record type %q: %w", t.Name, err)
			}
			efs = append(efs, fd)
		}
		opts = append(opts, schema.Extensible(ext.Max, efs...))
	}
	if t.Required {
		opts = append(opts, schema.Required())
	}
	if t.Unique {
		opts = append(opts, schema.Unique())
	}
	return schema.New(t.Name, opts...)
}

// Descriptor converts the entry into a field descriptor.
func (f *Field) Descriptor() (*field.Descriptor, error) {
	kind, err := field.ParseKind(f.Kind)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.Name, err)
	}
	fd := &field.Descriptor{
		Name:             f.Name,
		Kind:             kind,
		Required:         f.Required,
		Min:              f.Min,
		Max:              f.Max,
		ExclusiveMin:     f.ExclusiveMin,
		ExclusiveMax:     f.ExclusiveMax,
		Autosizable:      f.Autosizable,
		Autocalculatable: f.Autocalculatable,
		Choices:          f.Choices,
		RefTypes:         f.Refs,
		Port:             f.Port,
		Comment:          f.Comment,
	}
	switch strings.ToLower(f.Dir) {
	case "":
	case "in", "inlet":
		fd.Dir = field.In
	case "out", "outlet":
		fd.Dir = field.Out
	default:
		return nil, fmt.Errorf("field %q: unknown port direction %q", f.Name, f.Dir)
	}
	if f.Default != nil {
		// Defaults come from YAML scalars; sentinels and numbers written
		// as strings go through the text decoder.
		switch v := f.Default.(type) {
		case string:
			fd.Default, err = fd.Decode(v)
		case int, float64:
			if !kind.Numeric() {
				fd.Default, err = fd.Decode(fmt.Sprint(v))
				break
			}
			fd.Default, err = field.ValueOf(v)
			if err == nil {
				fd.Default, err = fd.Normalize(fd.Default)
			}
		default:
			err = fmt.Errorf("unsupported default %T", v)
		}
		if err != nil {
			return nil, fmt.Errorf("field %q: invalid default: %w", f.Name, err)
		}
	}
	return fd, fd.Validate()
}

// NewField creates a field entry from a field descriptor.
// It returns an error if the descriptor contains an error.
func NewField(fd *field.Descriptor) (*Field, error) {
	if fd.Err != nil {
		return nil, fmt.Errorf("field %q: %w", fd.Name, fd.Err)
	}
	f := &Field{
		Name:             fd.Name,
		Kind:             fd.Kind.String(),
		Required:         fd.Required,
		ExclusiveMin:     fd.ExclusiveMin,
		ExclusiveMax:     fd.ExclusiveMax,
		Autosizable:      fd.Autosizable,
		Autocalculatable: fd.Autocalculatable,
		Choices:          fd.Choices,
		Refs:             fd.RefTypes,
		Port:             fd.Port,
		Dir:              fd.Dir.String(),
		Comment:          fd.Comment,
	}
	if fd.Min != nil {
		v := *fd.Min
		f.Min = &v
	}
	if fd.Max != nil {
		v := *fd.Max
		f.Max = &v
	}
	if fd.HasDefault() {
		f.Default = fd.Encode(fd.Default)
		if n, ok := fd.Default.Float(); ok {
			f.Default = n
		}
	}
	return f, nil
}

// NewType creates a type entry from a record type.
func NewType(t *schema.RecordType) (*Type, error) {
	nt := &Type{
		Name:     t.Name,
		Group:    t.Group,
		Memo:     t.Memo,
		Unique:   t.Unique,
		Required: t.Required,
	}
	for _, fd := range t.Fields {
		f, err := NewField(fd)
		if err != nil {
			return nil, err
		}
		nt.Fields = append(nt.Fields, f)
	}
	if g := t.Extensible; g != nil {
		nt.Extensible = &Extensible{Max: g.MaxRows}
		for _, fd := range g.Fields {
			f, err := NewField(fd)
			if err != nil {
				return nil, err
			}
			nt.Extensible.Fields = append(nt.Extensible.Fields, f)
		}
	}
	return nt, nil
}

// Parse decodes and checks a schema source.
func Parse(data []byte) (*Source, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	s := &Source{}
	if err := dec.Decode(s); err != nil {
		return nil, flatgraph.NewConfigurationError("", "malformed schema source", err)
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	return s, nil
}

// Marshal encodes the source back into YAML.
func (s *Source) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// File loads the schema source at the given path.
func File(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, flatgraph.NewConfigurationError(path, "read schema source", err)
	}
	s, err := Parse(data)
	if err != nil {
		var ce *flatgraph.ConfigurationError
		if errors.As(err, &ce) && ce.Source == "" {
			ce.Source = path
		}
		return nil, err
	}
	s.Path = path
	return s, nil
}

// Dir loads all schema sources (*.yaml, *.yml) of a directory, in file
// name order.
func Dir(dir string) ([]*Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, flatgraph.NewConfigurationError(dir, "read schema directory", err)
	}
	var sources []*Source
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
		default:
			continue
		}
		s, err := File(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	if len(sources) == 0 {
		return nil, flatgraph.NewConfigurationError(dir, "no schema sources found", nil)
	}
	return sources, nil
}

func (s *Source) check() error {
	if strings.TrimSpace(s.Name) == "" {
		return flatgraph.NewConfigurationError("", "source name cannot be empty", nil)
	}
	if s.File == "" {
		s.File = schema.FileType(s.Name)
	}
	if s.File.Pseudo() {
		return flatgraph.NewConfigurationError(s.Name, fmt.Sprintf("pseudo file type %q cannot be declared", s.File), nil)
	}
	for _, inc := range s.Includes {
		if strings.TrimSpace(inc.Source) == "" {
			return flatgraph.NewConfigurationError(s.Name, "include without a source name", nil)
		}
	}
	seen := make(map[string]struct{}, len(s.Types))
	for _, t := range s.Types {
		if strings.TrimSpace(t.Name) == "" {
			return flatgraph.NewConfigurationError(s.Name, "record type name cannot be empty", nil)
		}
		k := schema.Key(t.Name)
		if _, ok := seen[k]; ok {
			return flatgraph.NewConfigurationError(s.Name, fmt.Sprintf("record type %q listed twice", t.Name), nil)
		}
		seen[k] = struct{}{}
		if !t.Defines() {
			continue
		}
		if _, err := t.RecordType(); err != nil {
			return flatgraph.NewConfigurationError(s.Name, "invalid record type", err)
		}
	}
	return nil
}
