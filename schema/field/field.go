package field

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Kind is the value kind of a field.
type Kind uint8

// List of field kinds.
const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindInteger
	KindReference
)

var kindNames = [...]string{
	KindInvalid:   "invalid",
	KindString:    "string",
	KindNumber:    "number",
	KindInteger:   "integer",
	KindReference: "reference",
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Numeric reports if the kind holds numbers.
func (k Kind) Numeric() bool { return k == KindNumber || k == KindInteger }

// ParseKind returns the kind with the given name. Besides the canonical
// names it accepts the aliases used by schema sources ("alpha", "real",
// "int", "object-list", "node").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "alpha", "choice":
		return KindString, nil
	case "number", "real":
		return KindNumber, nil
	case "integer", "int":
		return KindInteger, nil
	case "reference", "object-list", "node":
		return KindReference, nil
	default:
		return KindInvalid, fmt.Errorf("unknown field kind %q", s)
	}
}

// Direction of a port field in a topology chain.
type Direction uint8

// List of port directions.
const (
	NoPort Direction = iota
	In
	Out
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	default:
		return ""
	}
}

// A Field is implemented by all field builders.
type Field interface {
	Descriptor() *Descriptor
}

// Descriptor is the static definition of one field in a record type.
type Descriptor struct {
	Index            int       // position in the record, assigned by the record type.
	Name             string    // field name.
	Kind             Kind      // value kind.
	Required         bool      // field must hold a value.
	Default          Value     // default value, unset if none.
	Min, Max         *float64  // numeric bounds.
	ExclusiveMin     bool      // Min is exclusive.
	ExclusiveMax     bool      // Max is exclusive.
	Autosizable      bool      // accepts the Autosize sentinel.
	Autocalculatable bool      // accepts the Autocalculate sentinel.
	Choices          []string  // allowed keys for string fields.
	RefTypes         []string  // allowed record types for reference fields.
	Port             string    // port role for node fields.
	Dir              Direction // port direction for node fields.
	Comment          string    // field comment.
	Err              error     // builder error.
}

// Descriptor implements the Field interface for descriptors built by hand,
// as the schema loader does.
func (d *Descriptor) Descriptor() *Descriptor { return d }

// HasDefault reports if the field declares a default value.
func (d *Descriptor) HasDefault() bool { return d.Default.IsSet() }

// IsPort reports if the field names a topology connection point.
func (d *Descriptor) IsPort() bool { return d.Kind == KindReference && d.Dir != NoPort }

// IsRef reports if the field references another record by name.
func (d *Descriptor) IsRef() bool { return d.Kind == KindReference && d.Dir == NoPort }

// AcceptsRef reports if a record of the given type may be referenced by the field.
// Type names are compared case-insensitively.
func (d *Descriptor) AcceptsRef(typeName string) bool {
	if len(d.RefTypes) == 0 {
		return true
	}
	for _, t := range d.RefTypes {
		if strings.EqualFold(t, typeName) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the descriptor.
func (d *Descriptor) Clone() *Descriptor {
	c := *d
	if d.Min != nil {
		v := *d.Min
		c.Min = &v
	}
	if d.Max != nil {
		v := *d.Max
		c.Max = &v
	}
	c.Choices = append([]string(nil), d.Choices...)
	c.RefTypes = append([]string(nil), d.RefTypes...)
	return &c
}

// Validate checks the descriptor definition itself: its name, kind, bounds
// and default value.
func (d *Descriptor) Validate() error {
	if d.Err != nil {
		return d.Err
	}
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("field name cannot be empty")
	}
	if d.Kind == KindInvalid || d.Kind > KindReference {
		return fmt.Errorf("field %q: invalid kind %s", d.Name, d.Kind)
	}
	if !d.Kind.Numeric() {
		if d.Min != nil || d.Max != nil {
			return fmt.Errorf("field %q: bounds on a %s field", d.Name, d.Kind)
		}
		if d.Autosizable || d.Autocalculatable {
			return fmt.Errorf("field %q: sentinels on a %s field", d.Name, d.Kind)
		}
	}
	if d.Min != nil && d.Max != nil && *d.Min > *d.Max {
		return fmt.Errorf("field %q: min %v greater than max %v", d.Name, *d.Min, *d.Max)
	}
	if len(d.Choices) > 0 && d.Kind != KindString {
		return fmt.Errorf("field %q: choices on a %s field", d.Name, d.Kind)
	}
	if d.Dir != NoPort && d.Port == "" {
		return fmt.Errorf("field %q: port field without a port role", d.Name)
	}
	if d.HasDefault() {
		if _, err := d.Normalize(d.Default); err != nil {
			return fmt.Errorf("field %q: invalid default: %w", d.Name, err)
		}
	}
	return nil
}

// String returns a field builder for a string field.
func String(name string) *stringBuilder {
	return &stringBuilder{&Descriptor{Name: name, Kind: KindString}}
}

// Number returns a field builder for a real-valued field.
func Number(name string) *numberBuilder {
	return &numberBuilder{&Descriptor{Name: name, Kind: KindNumber}}
}

// Integer returns a field builder for an integer field.
func Integer(name string) *numberBuilder {
	return &numberBuilder{&Descriptor{Name: name, Kind: KindInteger}}
}

// Ref returns a field builder for a field referencing another record by name.
// An empty types list accepts any named record.
func Ref(name string, types ...string) *refBuilder {
	return &refBuilder{&Descriptor{Name: name, Kind: KindReference, RefTypes: types}}
}

// Inlet returns a field builder for the inbound connection point of a
// topology chain. The port names the role of the connection on the owner.
func Inlet(name, port string) *refBuilder {
	return &refBuilder{&Descriptor{Name: name, Kind: KindReference, Port: port, Dir: In}}
}

// Outlet returns a field builder for the outbound connection point of a
// topology chain.
func Outlet(name, port string) *refBuilder {
	return &refBuilder{&Descriptor{Name: name, Kind: KindReference, Port: port, Dir: Out}}
}

// stringBuilder is the builder for string fields.
type stringBuilder struct {
	desc *Descriptor
}

// Required marks the field as required.
func (b *stringBuilder) Required() *stringBuilder {
	b.desc.Required = true
	return b
}

// Default sets the default value of the field.
func (b *stringBuilder) Default(s string) *stringBuilder {
	b.desc.Default = StringValue(s)
	return b
}

// Choices restricts the field to the given keys. Keys are matched case-insensitively.
func (b *stringBuilder) Choices(keys ...string) *stringBuilder {
	b.desc.Choices = append(b.desc.Choices, keys...)
	return b
}

// Comment sets the comment of the field.
func (b *stringBuilder) Comment(c string) *stringBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Field interface by returning its descriptor.
func (b *stringBuilder) Descriptor() *Descriptor {
	if b.desc.Err == nil {
		b.desc.Err = b.desc.Validate()
	}
	return b.desc
}

// numberBuilder is the builder for number and integer fields.
type numberBuilder struct {
	desc *Descriptor
}

// Required marks the field as required.
func (b *numberBuilder) Required() *numberBuilder {
	b.desc.Required = true
	return b
}

// Default sets the default value of the field.
func (b *numberBuilder) Default(f float64) *numberBuilder {
	if b.desc.Kind == KindInteger {
		if f != math.Trunc(f) {
			b.desc.Err = fmt.Errorf("field %q: default %v is not an integer", b.desc.Name, f)
			return b
		}
		b.desc.Default = IntegerValue(int64(f))
		return b
	}
	b.desc.Default = NumberValue(f)
	return b
}

// DefaultAutosize makes Autosize the default value and allows the sentinel.
func (b *numberBuilder) DefaultAutosize() *numberBuilder {
	b.desc.Autosizable = true
	b.desc.Default = SentinelValue(Autosize)
	return b
}

// DefaultAutocalculate makes Autocalculate the default value and allows the sentinel.
func (b *numberBuilder) DefaultAutocalculate() *numberBuilder {
	b.desc.Autocalculatable = true
	b.desc.Default = SentinelValue(Autocalculate)
	return b
}

// Min sets the inclusive lower bound.
func (b *numberBuilder) Min(v float64) *numberBuilder {
	b.desc.Min = &v
	b.desc.ExclusiveMin = false
	return b
}

// Max sets the inclusive upper bound.
func (b *numberBuilder) Max(v float64) *numberBuilder {
	b.desc.Max = &v
	b.desc.ExclusiveMax = false
	return b
}

// Above sets an exclusive lower bound.
func (b *numberBuilder) Above(v float64) *numberBuilder {
	b.desc.Min = &v
	b.desc.ExclusiveMin = true
	return b
}

// Below sets an exclusive upper bound.
func (b *numberBuilder) Below(v float64) *numberBuilder {
	b.desc.Max = &v
	b.desc.ExclusiveMax = true
	return b
}

// Range sets inclusive lower and upper bounds.
func (b *numberBuilder) Range(lo, hi float64) *numberBuilder {
	return b.Min(lo).Max(hi)
}

// Autosizable allows the Autosize sentinel.
func (b *numberBuilder) Autosizable() *numberBuilder {
	b.desc.Autosizable = true
	return b
}

// Autocalculatable allows the Autocalculate sentinel.
func (b *numberBuilder) Autocalculatable() *numberBuilder {
	b.desc.Autocalculatable = true
	return b
}

// Comment sets the comment of the field.
func (b *numberBuilder) Comment(c string) *numberBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Field interface by returning its descriptor.
func (b *numberBuilder) Descriptor() *Descriptor {
	if b.desc.Err == nil {
		b.desc.Err = b.desc.Validate()
	}
	return b.desc
}

// refBuilder is the builder for reference and port fields.
type refBuilder struct {
	desc *Descriptor
}

// Required marks the field as required.
func (b *refBuilder) Required() *refBuilder {
	b.desc.Required = true
	return b
}

// Comment sets the comment of the field.
func (b *refBuilder) Comment(c string) *refBuilder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the Field interface by returning its descriptor.
func (b *refBuilder) Descriptor() *Descriptor {
	if b.desc.Err == nil {
		b.desc.Err = b.desc.Validate()
	}
	return b.desc
}

var (
	_ Field = (*stringBuilder)(nil)
	_ Field = (*numberBuilder)(nil)
	_ Field = (*refBuilder)(nil)
	_ Field = (*Descriptor)(nil)
)
