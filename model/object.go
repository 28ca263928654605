package model

import (
	"fmt"
	"slices"

	"github.com/syssam/flatgraph"
	"github.com/syssam/flatgraph/schema"
	"github.com/syssam/flatgraph/schema/field"
)

// valueSlot holds a field value, or the target of a reference field.
// A reference slot may also hold a literal name that resolved to nothing.
type valueSlot struct {
	v      field.Value
	target Handle
}

func (s valueSlot) empty() bool { return !s.v.IsSet() && s.target.IsNil() }

// Object is one node of the object graph.
type Object struct {
	model   *Model
	handle  Handle
	typ     *schema.RecordType
	tag     string
	name    string
	values  map[int]valueSlot
	rows    [][]valueSlot
	active  int // -1 means all rows.
	conns   []*Connection
	raw     []string
	comment string
}

// Handle returns the stable handle of the object.
func (o *Object) Handle() Handle { return o.handle }

// Model returns the model holding the object.
func (o *Object) Model() *Model { return o.model }

// Type returns the record type the object is bound to.
func (o *Object) Type() *schema.RecordType { return o.typ }

// TypeName returns the type tag of the object. For objects of types unknown
// to the registry it is the original type name, not the catch-all name.
func (o *Object) TypeName() string { return o.tag }

// Opaque reports if the object is bound to the catch-all type.
func (o *Object) Opaque() bool { return o.typ.ID == schema.TypeCatchAll }

// IsComment reports if the object is a free-standing comment.
func (o *Object) IsComment() bool { return o.typ.ID == schema.TypeComment }

// Name returns the explicit name of the object, or "" if it has none.
func (o *Object) Name() string { return o.name }

// SetName sets the explicit name. Names are unique per type,
// case-insensitively; an empty name clears it.
func (o *Object) SetName(name string) error {
	if name == o.name {
		return nil
	}
	if name == "" {
		delete(o.model.names, o.nameKey(o.name))
		o.name = ""
		return nil
	}
	if err := o.model.claim(o, name); err != nil {
		return err
	}
	o.name = name
	return nil
}

func (o *Object) nameKey(name string) nameKey {
	if o.Opaque() {
		return nameKey{typ: schema.TypeCatchAll, name: schema.Key(o.tag) + "\x00" + schema.Key(name)}
	}
	return nameKey{typ: o.typ.ID, name: schema.Key(name)}
}

// Comment returns the comment attached to the object.
func (o *Object) Comment() string { return o.comment }

// SetComment attaches a comment to the object.
func (o *Object) SetComment(text string) { o.comment = text }

// Raw returns the verbatim values of an opaque object.
func (o *Object) Raw() []string { return slices.Clone(o.raw) }

// SetRaw sets the verbatim values of an opaque object.
func (o *Object) SetRaw(values ...string) error {
	if !o.Opaque() {
		return flatgraph.NewValidationError(o.TypeName(), o.name, "", "raw values on a typed object")
	}
	for _, v := range values {
		if err := field.CheckText(v); err != nil {
			verr := flatgraph.NewValidationError(o.TypeName(), o.name, "", "raw value rejected")
			verr.Cause = err
			return verr
		}
	}
	o.raw = slices.Clone(values)
	return nil
}

func (o *Object) field(name string) (*field.Descriptor, error) {
	fd, ok := o.typ.Field(name)
	if !ok {
		return nil, flatgraph.NewValidationError(o.TypeName(), o.name, name, "unknown field")
	}
	return fd, nil
}

func (o *Object) reject(fd *field.Descriptor, v any, cause error) error {
	err := flatgraph.NewValidationError(o.TypeName(), o.name, fd.Name, "value rejected")
	err.Value = v
	err.Cause = cause
	return err
}

// Set sets a fixed field from a Go value (string, number, field.Sentinel
// or field.Value). Invalid values are rejected and the prior value kept.
// Setting the name field renames the object.
func (o *Object) Set(name string, v any) error {
	fd, err := o.field(name)
	if err != nil {
		return err
	}
	if nf, ok := o.typ.NameField(); ok && nf == fd {
		s, ok := v.(string)
		if !ok {
			return o.reject(fd, v, fmt.Errorf("name must be a string"))
		}
		return o.SetName(s)
	}
	if t, ok := v.(*Object); ok {
		return o.SetRef(name, t)
	}
	val, err := field.ValueOf(v)
	if err != nil {
		return o.reject(fd, v, err)
	}
	val, err = fd.Normalize(val)
	if err != nil {
		return o.reject(fd, v, err)
	}
	o.setSlot(fd.Index, valueSlot{v: val})
	return nil
}

func (o *Object) setSlot(index int, s valueSlot) {
	if prev, ok := o.values[index]; ok && !prev.target.IsNil() {
		o.model.release(prev.target)
	}
	if s.empty() {
		delete(o.values, index)
		return
	}
	o.values[index] = s
}

// SetString sets a string field.
func (o *Object) SetString(name, s string) error { return o.Set(name, s) }

// SetNumber sets a real field. Any sentinel state is cleared.
func (o *Object) SetNumber(name string, f float64) error { return o.Set(name, f) }

// SetInteger sets an integer field. Any sentinel state is cleared.
func (o *Object) SetInteger(name string, i int64) error { return o.Set(name, i) }

// Autosize puts a field in the Autosize state.
func (o *Object) Autosize(name string) error { return o.Set(name, field.Autosize) }

// Autocalculate puts a field in the Autocalculate state.
func (o *Object) Autocalculate(name string) error { return o.Set(name, field.Autocalculate) }

// IsAutosized reports if the field is in the Autosize state.
func (o *Object) IsAutosized(name string) bool {
	v, _ := o.Get(name)
	return v.IsSentinel(field.Autosize)
}

// Reset clears a field, so it falls back to its default.
func (o *Object) Reset(name string) error {
	fd, err := o.field(name)
	if err != nil {
		return err
	}
	if nf, ok := o.typ.NameField(); ok && nf == fd {
		return o.SetName("")
	}
	o.setSlot(fd.Index, valueSlot{})
	return nil
}

// Get returns the explicit value of a fixed field. Reference fields
// holding a target report the target name.
func (o *Object) Get(name string) (field.Value, bool) {
	fd, ok := o.typ.Field(name)
	if !ok {
		return field.Value{}, false
	}
	v := o.Value(fd.Index)
	return v, v.IsSet()
}

// Effective returns the explicit value of a fixed field, or its default.
func (o *Object) Effective(name string) field.Value {
	fd, ok := o.typ.Field(name)
	if !ok {
		return field.Value{}
	}
	if v := o.Value(fd.Index); v.IsSet() {
		return v
	}
	return fd.Default
}

// Value returns the explicit value held at a fixed field index.
func (o *Object) Value(index int) field.Value {
	if nf, ok := o.typ.NameField(); ok && nf.Index == index {
		if o.name == "" {
			return field.Value{}
		}
		return field.StringValue(o.name)
	}
	s := o.values[index]
	if t, ok := o.model.Lookup(s.target); ok && !s.target.IsNil() {
		return field.StringValue(t.name)
	}
	return s.v
}

// SetRef points a reference field at another object of the same model.
// A nil target clears the field.
func (o *Object) SetRef(name string, target *Object) error {
	fd, err := o.field(name)
	if err != nil {
		return err
	}
	if !fd.IsRef() {
		return o.reject(fd, target, fmt.Errorf("not a reference field"))
	}
	if target == nil {
		o.setSlot(fd.Index, valueSlot{})
		return nil
	}
	if err := o.checkTarget(fd, target); err != nil {
		return err
	}
	o.model.retain(target.handle)
	o.setSlot(fd.Index, valueSlot{target: target.handle})
	return nil
}

func (o *Object) checkTarget(fd *field.Descriptor, target *Object) error {
	if target.model != o.model || o.model.objects[target.handle] != target {
		return o.reject(fd, target.name, fmt.Errorf("target belongs to another model"))
	}
	if !fd.AcceptsRef(target.TypeName()) {
		return o.reject(fd, target.name, fmt.Errorf("type %s not accepted", target.TypeName()))
	}
	return nil
}

// Ref returns the target of a reference field.
func (o *Object) Ref(name string) (*Object, bool) {
	fd, ok := o.typ.Field(name)
	if !ok {
		return nil, false
	}
	return o.RefAt(fd.Index)
}

// RefAt returns the target of the reference field at a fixed index.
func (o *Object) RefAt(index int) (*Object, bool) {
	s, ok := o.values[index]
	if !ok || s.target.IsNil() {
		return nil, false
	}
	return o.model.Lookup(s.target)
}

// RowCount returns the number of stored extensible rows.
func (o *Object) RowCount() int { return len(o.rows) }

// ActiveRows returns the number of rows the object declares. It defaults
// to all stored rows.
func (o *Object) ActiveRows() int {
	if o.active < 0 || o.active > len(o.rows) {
		return len(o.rows)
	}
	return o.active
}

// SetActiveRows declares how many of the stored rows are in use.
func (o *Object) SetActiveRows(n int) error {
	if n < 0 || n > len(o.rows) {
		return flatgraph.NewValidationError(o.TypeName(), o.name, "", fmt.Sprintf("active rows %d outside [0, %d]", n, len(o.rows)))
	}
	o.active = n
	return nil
}

// AppendRow appends an extensible row. Values are positional; missing
// trailing values stay unset and *Object values set reference fields.
func (o *Object) AppendRow(values ...any) (int, error) {
	g := o.typ.Extensible
	if g == nil {
		return -1, flatgraph.NewValidationError(o.TypeName(), o.name, "", "type has no extensible group")
	}
	if g.MaxRows > 0 && len(o.rows) >= g.MaxRows {
		return -1, flatgraph.NewValidationError(o.TypeName(), o.name, "", fmt.Sprintf("maximum of %d rows reached", g.MaxRows))
	}
	if len(values) > len(g.Fields) {
		return -1, flatgraph.NewValidationError(o.TypeName(), o.name, "", fmt.Sprintf("%d values for a group of %d fields", len(values), len(g.Fields)))
	}
	row := make([]valueSlot, len(g.Fields))
	for i, v := range values {
		s, err := o.rowSlot(g.Fields[i], v)
		if err != nil {
			return -1, err
		}
		row[i] = s
	}
	for _, s := range row {
		if !s.target.IsNil() {
			o.model.retain(s.target)
		}
	}
	o.rows = append(o.rows, row)
	return len(o.rows) - 1, nil
}

func (o *Object) rowSlot(fd *field.Descriptor, v any) (valueSlot, error) {
	if t, ok := v.(*Object); ok {
		if !fd.IsRef() {
			return valueSlot{}, o.reject(fd, v, fmt.Errorf("not a reference field"))
		}
		if t == nil {
			return valueSlot{}, nil
		}
		if err := o.checkTarget(fd, t); err != nil {
			return valueSlot{}, err
		}
		return valueSlot{target: t.handle}, nil
	}
	val, err := field.ValueOf(v)
	if err != nil {
		return valueSlot{}, o.reject(fd, v, err)
	}
	val, err = fd.Normalize(val)
	if err != nil {
		return valueSlot{}, o.reject(fd, v, err)
	}
	return valueSlot{v: val}, nil
}

// SetRowValue sets one field of a stored row. Invalid values are rejected
// and the prior value kept.
func (o *Object) SetRowValue(row int, name string, v any) error {
	if row < 0 || row >= len(o.rows) {
		return flatgraph.NewValidationError(o.TypeName(), o.name, name, fmt.Sprintf("row %d out of range", row))
	}
	fd, pos, ok := o.typ.ExtensibleField(name)
	if !ok {
		return flatgraph.NewValidationError(o.TypeName(), o.name, name, "unknown extensible field")
	}
	s, err := o.rowSlot(fd, v)
	if err != nil {
		return err
	}
	prev := o.rows[row][pos]
	if !prev.target.IsNil() {
		o.model.release(prev.target)
	}
	if !s.target.IsNil() {
		o.model.retain(s.target)
	}
	o.rows[row][pos] = s
	return nil
}

// RowValue returns the value at a row position. Reference slots holding
// a target report the target name.
func (o *Object) RowValue(row, pos int) field.Value {
	if row < 0 || row >= len(o.rows) || pos < 0 || pos >= len(o.rows[row]) {
		return field.Value{}
	}
	s := o.rows[row][pos]
	if t, ok := o.model.Lookup(s.target); ok && !s.target.IsNil() {
		return field.StringValue(t.name)
	}
	return s.v
}

// RowRef returns the target of a reference slot in a row.
func (o *Object) RowRef(row, pos int) (*Object, bool) {
	if row < 0 || row >= len(o.rows) || pos < 0 || pos >= len(o.rows[row]) {
		return nil, false
	}
	s := o.rows[row][pos]
	if s.target.IsNil() {
		return nil, false
	}
	return o.model.Lookup(s.target)
}

// dropRefsTo clears every reference slot of o pointing at h.
func (o *Object) dropRefsTo(h Handle) {
	for i, s := range o.values {
		if s.target == h {
			o.model.release(h)
			delete(o.values, i)
		}
	}
	for _, row := range o.rows {
		for i := range row {
			if row[i].target == h {
				o.model.release(h)
				row[i] = valueSlot{}
			}
		}
	}
}

// String implements fmt.Stringer.
func (o *Object) String() string {
	if o.name == "" {
		return fmt.Sprintf("%s(%s)", o.tag, o.handle)
	}
	return fmt.Sprintf("%s %q", o.tag, o.name)
}
