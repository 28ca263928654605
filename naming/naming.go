// Package naming synthesizes deterministic, collision-free names for
// records and topology nodes during one translation pass.
//
// Explicit names always win. Synthesized names are derived from the record
// type ("Fan 1") or from the owning object and the port role
// ("Supply Fan Outlet Node"), and take " 2", " 3", ... suffixes on
// collision. All comparisons are case-insensitive.
package naming

import (
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/syssam/flatgraph/model"
	"github.com/syssam/flatgraph/schema"
	"github.com/syssam/flatgraph/schema/field"
)

// NodeScope is the scope shared by all node names.
const NodeScope = "node"

type portKey struct {
	h     model.Handle
	index int
}

// Resolver hands out names for one translation pass. It is not safe for
// concurrent use.
type Resolver struct {
	used    map[string]map[string]bool
	objects map[model.Handle]string
	ports   map[portKey]string
	conns   map[*model.Connection]string
}

// New returns an empty resolver.
func New() *Resolver {
	return &Resolver{
		used:    make(map[string]map[string]bool),
		objects: make(map[model.Handle]string),
		ports:   make(map[portKey]string),
		conns:   make(map[*model.Connection]string),
	}
}

// Prepare reserves every explicit object name and every literal node name
// on an unconnected port, then assigns explicit connection node names.
// A node name already taken is suffixed so that no two nodes share it.
func (r *Resolver) Prepare(m *model.Model) {
	for _, o := range m.Objects() {
		if o.Name() != "" {
			r.Reserve(o.TypeName(), o.Name())
		}
		for _, fd := range o.Type().Fields {
			if !fd.IsPort() {
				continue
			}
			if _, ok := o.ConnectionAt(fd.Name); ok {
				continue
			}
			if v := o.Value(fd.Index); v.IsSet() {
				r.Reserve(NodeScope, v.String())
			}
		}
	}
	for _, c := range m.Connections() {
		if c.Node != "" {
			r.Connection(c)
		}
	}
}

// Reserve marks a name as taken within a scope. It reports false if the
// name was already taken.
func (r *Resolver) Reserve(scope, name string) bool {
	s := r.scope(scope)
	k := schema.Key(name)
	if s[k] {
		return false
	}
	s[k] = true
	return true
}

// Taken reports if a name is taken within a scope.
func (r *Resolver) Taken(scope, name string) bool {
	return r.scope(scope)[schema.Key(name)]
}

// Unique reserves and returns base, or base with the first free numeric
// suffix.
func (r *Resolver) Unique(scope, base string) string {
	if r.Reserve(scope, base) {
		return base
	}
	for i := 2; ; i++ {
		if name := fmt.Sprintf("%s %d", base, i); r.Reserve(scope, name) {
			return name
		}
	}
}

func (r *Resolver) scope(name string) map[string]bool {
	k := schema.Key(name)
	s, ok := r.used[k]
	if !ok {
		s = make(map[string]bool)
		r.used[k] = s
	}
	return s
}

// Object returns the record name of an object: its explicit name, or a
// name synthesized from its type. Objects of types without a name field
// have no record name.
func (r *Resolver) Object(o *model.Object) string {
	if o.Name() != "" {
		return o.Name()
	}
	if !o.Type().Named() {
		return ""
	}
	if name, ok := r.objects[o.Handle()]; ok {
		return name
	}
	var name string
	for i := 1; ; i++ {
		if name = fmt.Sprintf("%s %d", o.TypeName(), i); r.Reserve(o.TypeName(), name) {
			break
		}
	}
	r.objects[o.Handle()] = name
	return name
}

// Port returns the node name of a port field of o. A connected port takes
// the name of its connection. An unconnected port gets
// "<owner> <Role> Node".
func (r *Resolver) Port(o *model.Object, fd *field.Descriptor) string {
	if c, ok := o.ConnectionAt(fd.Name); ok {
		return r.Connection(c)
	}
	k := portKey{h: o.Handle(), index: fd.Index}
	if name, ok := r.ports[k]; ok {
		return name
	}
	name := r.Unique(NodeScope, r.portBase(o, fd))
	r.ports[k] = name
	return name
}

// Connection returns the node name shared by both ends of a connection:
// the explicit node name, or the name derived from the upstream outlet,
// suffixed when another node already took it.
func (r *Resolver) Connection(c *model.Connection) string {
	if name, ok := r.conns[c]; ok {
		return name
	}
	base := c.Node
	if base == "" {
		base = r.portBase(c.From, c.FromPort)
	}
	name := r.Unique(NodeScope, base)
	r.conns[c] = name
	return name
}

func (r *Resolver) portBase(o *model.Object, fd *field.Descriptor) string {
	role := fd.Port
	if role == "" {
		role = strings.TrimSuffix(fd.Name, " Name")
	}
	base := r.Object(o)
	if base == "" {
		base = o.TypeName()
	}
	base += " " + inflect.Titleize(role)
	if !strings.HasSuffix(schema.Key(base), "node") {
		base += " Node"
	}
	return base
}
