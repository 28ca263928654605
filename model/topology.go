package model

import (
	"fmt"
	"slices"

	"github.com/syssam/flatgraph"
	"github.com/syssam/flatgraph/schema"
	"github.com/syssam/flatgraph/schema/field"
)

// Connection is a directed port-to-port edge: the outlet port of From
// feeds the inlet port of To. Both ends share one node.
type Connection struct {
	From     *Object
	FromPort *field.Descriptor
	To       *Object
	ToPort   *field.Descriptor
	// Node is the explicit node name, or "" to let the naming pass derive one.
	Node string
}

// String implements fmt.Stringer.
func (c *Connection) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", c.From, c.FromPort.Name, c.To, c.ToPort.Name)
}

// ConnectOption configures a connection.
type ConnectOption func(*Connection)

// WithNode sets the explicit node name of a connection.
func WithNode(name string) ConnectOption {
	return func(c *Connection) {
		c.Node = name
	}
}

// RelationshipKind distinguishes ownership references from topology edges.
type RelationshipKind uint8

// Relationship kinds.
const (
	Ownership RelationshipKind = iota + 1
	Topology
)

// String returns the name of the kind.
func (k RelationshipKind) String() string {
	switch k {
	case Ownership:
		return "ownership"
	case Topology:
		return "topology"
	default:
		return "invalid"
	}
}

// Relationship is one entry of an object's relationship list.
type Relationship struct {
	Kind RelationshipKind
	// Role is the field holding the relationship on this object.
	Role string
	// Row is the extensible row of the role field, or -1 for fixed fields.
	Row    int
	Target *Object
	// TargetRole is the port field on the target, for topology edges.
	TargetRole string
	// Outbound reports if a topology edge leaves this object.
	Outbound bool
}

// port resolves a port of o by port role or by field name.
func (o *Object) port(name string, dir field.Direction) (*field.Descriptor, error) {
	var match *field.Descriptor
	k := schema.Key(name)
	for _, fd := range o.typ.Fields {
		if fd.Dir != dir {
			continue
		}
		if schema.Key(fd.Port) == k || schema.Key(fd.Name) == k {
			match = fd
			break
		}
	}
	if match == nil {
		return nil, flatgraph.NewValidationError(o.TypeName(), o.name, name, fmt.Sprintf("no %s port", dir))
	}
	return match, nil
}

// Connect joins the outlet port of src to the inlet port of dst. Ports are
// named by port role or field name. A port carries at most one connection.
func (m *Model) Connect(src *Object, outPort string, dst *Object, inPort string, opts ...ConnectOption) (*Connection, error) {
	if src == nil || dst == nil || m.objects[src.handle] != src || m.objects[dst.handle] != dst {
		return nil, fmt.Errorf("model: connect objects of another model")
	}
	from, err := src.port(outPort, field.Out)
	if err != nil {
		return nil, err
	}
	to, err := dst.port(inPort, field.In)
	if err != nil {
		return nil, err
	}
	if c := src.connectionAt(from); c != nil {
		return nil, flatgraph.NewValidationError(src.TypeName(), src.name, from.Name, "port already connected to "+c.To.String())
	}
	if c := dst.connectionAt(to); c != nil {
		return nil, flatgraph.NewValidationError(dst.TypeName(), dst.name, to.Name, "port already connected to "+c.From.String())
	}
	c := &Connection{From: src, FromPort: from, To: dst, ToPort: to}
	for _, opt := range opts {
		opt(c)
	}
	if err := m.checkNode(c); err != nil {
		return nil, err
	}
	src.conns = append(src.conns, c)
	if dst != src {
		dst.conns = append(dst.conns, c)
	}
	m.conns = append(m.conns, c)
	return c, nil
}

// checkNode rejects an explicit node name that cannot be written or that
// another connection already uses.
func (m *Model) checkNode(c *Connection) error {
	if c.Node == "" {
		return nil
	}
	if err := field.CheckText(c.Node); err != nil {
		verr := flatgraph.NewValidationError(c.From.TypeName(), c.From.name, c.FromPort.Name, "node name rejected")
		verr.Value = c.Node
		verr.Cause = err
		return verr
	}
	k := schema.Key(c.Node)
	for _, other := range m.conns {
		if schema.Key(other.Node) == k {
			verr := flatgraph.NewValidationError(c.From.TypeName(), c.From.name, c.FromPort.Name, "node name already used by "+other.String())
			verr.Value = c.Node
			return verr
		}
	}
	return nil
}

// Disconnect removes a connection from both ends.
func (m *Model) Disconnect(c *Connection) {
	drop := func(cs []*Connection) []*Connection {
		return slices.DeleteFunc(cs, func(x *Connection) bool { return x == c })
	}
	c.From.conns = drop(c.From.conns)
	c.To.conns = drop(c.To.conns)
	m.conns = drop(m.conns)
}

// Connections returns all connections in creation order.
func (m *Model) Connections() []*Connection {
	return slices.Clone(m.conns)
}

func (o *Object) connectionAt(fd *field.Descriptor) *Connection {
	for _, c := range o.conns {
		if (c.From == o && c.FromPort == fd) || (c.To == o && c.ToPort == fd) {
			return c
		}
	}
	return nil
}

// ConnectionAt returns the connection attached to a port field.
func (o *Object) ConnectionAt(name string) (*Connection, bool) {
	fd, ok := o.typ.Field(name)
	if !ok || !fd.IsPort() {
		return nil, false
	}
	c := o.connectionAt(fd)
	return c, c != nil
}

// Outbound returns the connections leaving o, in port declaration order.
func (o *Object) Outbound() []*Connection {
	return o.connections(func(c *Connection) bool { return c.From == o }, func(c *Connection) int { return c.FromPort.Index })
}

// Inbound returns the connections entering o, in port declaration order.
func (o *Object) Inbound() []*Connection {
	return o.connections(func(c *Connection) bool { return c.To == o }, func(c *Connection) int { return c.ToPort.Index })
}

func (o *Object) connections(keep func(*Connection) bool, index func(*Connection) int) []*Connection {
	var cs []*Connection
	for _, c := range o.conns {
		if keep(c) {
			cs = append(cs, c)
		}
	}
	slices.SortStableFunc(cs, func(a, b *Connection) int { return index(a) - index(b) })
	return cs
}

// Relationships returns the ownership references held by o, in field
// order, followed by its topology edges.
func (o *Object) Relationships() []*Relationship {
	var rels []*Relationship
	for _, fd := range o.typ.Fields {
		if t, ok := o.RefAt(fd.Index); ok {
			rels = append(rels, &Relationship{Kind: Ownership, Role: fd.Name, Row: -1, Target: t})
		}
	}
	if g := o.typ.Extensible; g != nil {
		for r := range o.rows {
			for pos, fd := range g.Fields {
				if t, ok := o.RowRef(r, pos); ok {
					rels = append(rels, &Relationship{Kind: Ownership, Role: fd.Name, Row: r, Target: t})
				}
			}
		}
	}
	for _, c := range o.conns {
		if c.From == o {
			rels = append(rels, &Relationship{Kind: Topology, Role: c.FromPort.Name, Row: -1, Target: c.To, TargetRole: c.ToPort.Name, Outbound: true})
		}
		if c.To == o {
			rels = append(rels, &Relationship{Kind: Topology, Role: c.ToPort.Name, Row: -1, Target: c.From, TargetRole: c.FromPort.Name})
		}
	}
	return rels
}
