// Package model provides the object graph: typed objects held in an arena
// indexed by stable handles, with ownership references between objects
// and directed port-to-port topology connections.
//
// Objects are bound to record types of a registry. Field values are set
// through validating setters that keep the prior value when a new value is
// rejected:
//
//	m := model.New(reg)
//	meter, _ := m.Add("Meter", "")
//	_ = meter.SetString("Key Name", "NaturalGas:Facility")
//	err := meter.SetString("Reporting Frequency", "Fortnightly") // rejected, value unchanged
//
// Shared sub-objects are referenced, never copied. Reference counts exist
// only to find orphans for garbage collection (Orphans, Purge).
package model

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/syssam/flatgraph"
	"github.com/syssam/flatgraph/registry"
	"github.com/syssam/flatgraph/schema"
	"github.com/syssam/flatgraph/schema/field"
)

// Handle is the stable identifier of an object within a model.
type Handle uuid.UUID

// Nil is the zero handle.
var Nil Handle

// NewHandle returns a new random handle.
func NewHandle() Handle { return Handle(uuid.New()) }

// ParseHandle parses the string form of a handle.
func ParseHandle(s string) (Handle, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Nil, err
	}
	return Handle(id), nil
}

// String returns the canonical string form of the handle.
func (h Handle) String() string { return uuid.UUID(h).String() }

// IsNil reports if h is the zero handle.
func (h Handle) IsNil() bool { return h == Nil }

type nameKey struct {
	typ  schema.TypeID
	name string
}

// Model is an arena of objects.
type Model struct {
	reg     *registry.Registry
	objects map[Handle]*Object
	order   []*Object
	names   map[nameKey]*Object
	refs    map[Handle]int
	conns   []*Connection
}

// New creates an empty model bound to a registry.
func New(reg *registry.Registry) *Model {
	return &Model{
		reg:     reg,
		objects: make(map[Handle]*Object),
		names:   make(map[nameKey]*Object),
		refs:    make(map[Handle]int),
	}
}

// Registry returns the registry the model is bound to.
func (m *Model) Registry() *registry.Registry { return m.reg }

// Add creates an object of the named record type. A type name unknown to
// the registry binds the object to the catch-all type and keeps the name
// as its tag. An empty name leaves the object unnamed.
func (m *Model) Add(typeName, name string) (*Object, error) {
	t, ok := m.reg.LookupName(typeName)
	if !ok {
		t = m.reg.CatchAll()
	} else {
		typeName = t.Name
	}
	return m.add(t, typeName, name, NewHandle())
}

// AddWithHandle is like Add but uses the given handle.
func (m *Model) AddWithHandle(h Handle, typeName, name string) (*Object, error) {
	if h.IsNil() {
		return nil, fmt.Errorf("model: nil handle")
	}
	if _, ok := m.objects[h]; ok {
		return nil, fmt.Errorf("model: handle %s already in use", h)
	}
	t, ok := m.reg.LookupName(typeName)
	if !ok {
		t = m.reg.CatchAll()
	} else {
		typeName = t.Name
	}
	return m.add(t, typeName, name, h)
}

// MustAdd is like Add but panics on error.
func (m *Model) MustAdd(typeName, name string) *Object {
	o, err := m.Add(typeName, name)
	if err != nil {
		panic(err)
	}
	return o
}

// AddComment creates a comment object holding free-standing comment text.
func (m *Model) AddComment(text string) *Object {
	o, _ := m.add(m.reg.Comment(), schema.CommentName, "", NewHandle())
	o.comment = text
	return o
}

func (m *Model) add(t *schema.RecordType, tag, name string, h Handle) (*Object, error) {
	o := &Object{
		model:  m,
		handle: h,
		typ:    t,
		tag:    tag,
		values: make(map[int]valueSlot),
		active: -1,
	}
	if name != "" {
		if err := m.claim(o, name); err != nil {
			return nil, err
		}
		o.name = name
	}
	m.objects[h] = o
	m.order = append(m.order, o)
	return o, nil
}

// claim registers name for o, rejecting duplicates within the same type.
// Objects of the catch-all type are keyed by their tag.
func (m *Model) claim(o *Object, name string) error {
	if err := field.CheckText(name); err != nil {
		verr := flatgraph.NewValidationError(o.TypeName(), name, "Name", "name rejected")
		verr.Cause = err
		return verr
	}
	k := o.nameKey(name)
	if other, ok := m.names[k]; ok && other != o {
		return flatgraph.NewValidationError(o.TypeName(), name, "Name", "name already used by another object of the same type")
	}
	if o.name != "" {
		delete(m.names, o.nameKey(o.name))
	}
	m.names[k] = o
	return nil
}

// Lookup returns the object with the given handle.
func (m *Model) Lookup(h Handle) (*Object, bool) {
	o, ok := m.objects[h]
	return o, ok
}

// ByName returns the object of the given type with the given name,
// case-insensitively.
func (m *Model) ByName(typeName, name string) (*Object, bool) {
	t, ok := m.reg.LookupName(typeName)
	if !ok {
		k := nameKey{typ: schema.TypeCatchAll, name: schema.Key(typeName) + "\x00" + schema.Key(name)}
		o, ok := m.names[k]
		return o, ok
	}
	o, ok := m.names[nameKey{typ: t.ID, name: schema.Key(name)}]
	return o, ok
}

// Objects returns all objects in declaration order.
func (m *Model) Objects() []*Object {
	return slices.Clone(m.order)
}

// OfType returns the objects of the named type in declaration order.
func (m *Model) OfType(typeName string) []*Object {
	var objs []*Object
	k := schema.Key(typeName)
	for _, o := range m.order {
		if schema.Key(o.TypeName()) == k {
			objs = append(objs, o)
		}
	}
	return objs
}

// Len returns the number of objects.
func (m *Model) Len() int { return len(m.order) }

// Remove deletes an object together with its connections and the
// references it holds. References held by other objects to the removed
// object are cleared.
func (m *Model) Remove(o *Object) {
	if o == nil || m.objects[o.handle] != o {
		return
	}
	for _, c := range slices.Clone(o.conns) {
		m.Disconnect(c)
	}
	for slot, v := range o.values {
		if !v.target.IsNil() {
			m.release(v.target)
			delete(o.values, slot)
		}
	}
	for _, row := range o.rows {
		for i := range row {
			if !row[i].target.IsNil() {
				m.release(row[i].target)
				row[i] = valueSlot{}
			}
		}
	}
	for _, other := range m.order {
		if other != o && m.refs[o.handle] > 0 {
			other.dropRefsTo(o.handle)
		}
	}
	if o.name != "" {
		delete(m.names, o.nameKey(o.name))
	}
	delete(m.objects, o.handle)
	delete(m.refs, o.handle)
	m.order = slices.DeleteFunc(m.order, func(x *Object) bool { return x == o })
}

func (m *Model) retain(h Handle) { m.refs[h]++ }

func (m *Model) release(h Handle) {
	if m.refs[h] > 0 {
		m.refs[h]--
	}
}
