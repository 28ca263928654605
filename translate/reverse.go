package translate

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/syssam/flatgraph"
	"github.com/syssam/flatgraph/model"
	"github.com/syssam/flatgraph/registry"
	"github.com/syssam/flatgraph/schema"
	"github.com/syssam/flatgraph/schema/field"
	"github.com/syssam/flatgraph/workspace"
)

// ReverseFunc constructs the object of one record. A nil object drops the
// record. Implementations typically start from the generic construction
// of Object.
type ReverseFunc func(p *ReversePass, r *workspace.Record) (*model.Object, error)

// Reverse rebuilds models from workspaces.
type Reverse struct {
	reg *registry.Registry
	cfg *config
}

// NewReverse creates a reverse engine for workspaces bound to reg.
func NewReverse(reg *registry.Registry, opts ...Option) *Reverse {
	return &Reverse{reg: reg, cfg: newConfig(opts)}
}

// ReverseResult is the outcome of a reverse translation.
type ReverseResult struct {
	Model *model.Model
	Issues
}

// Translate constructs a model from a workspace. Every record yields one
// object unless its construction fails; unresolved references are left
// empty and reported as warnings.
func (rv *Reverse) Translate(ws *workspace.Workspace) (*ReverseResult, error) {
	if ws.Registry() != rv.reg {
		return nil, flatgraph.NewConfigurationError("", "workspace is bound to another registry", nil)
	}
	res := &ReverseResult{Model: model.New(rv.reg)}
	p := &ReversePass{
		cfg:     rv.cfg,
		ws:      ws,
		m:       res.Model,
		objects: make(map[*workspace.Record]*model.Object),
		issues:  &res.Issues,
	}
	for _, r := range ws.Records() {
		fn, ok := p.cfg.reverse[schema.Key(r.TypeName())]
		if !ok {
			fn = (*ReversePass).Object
		}
		o, err := fn(p, r)
		if err != nil {
			p.cfg.logger.Warn("record skipped", "type", r.TypeName(), "record", r.Name(), "error", err)
			p.issues.fail(err)
			continue
		}
		if o != nil {
			p.objects[r] = o
		}
	}
	p.resolve()
	p.connect()
	return res, nil
}

type pendingRef struct {
	o    *model.Object
	fd   *field.Descriptor
	row  int // -1 for fixed fields.
	name string
}

type pendingPort struct {
	o    *model.Object
	fd   *field.Descriptor
	node string
}

// ReversePass is the state of one reverse translation.
type ReversePass struct {
	cfg     *config
	ws      *workspace.Workspace
	m       *model.Model
	objects map[*workspace.Record]*model.Object
	refs    []pendingRef
	ports   []pendingPort
	issues  *Issues
}

// Model returns the model being built.
func (p *ReversePass) Model() *model.Model { return p.m }

// Workspace returns the workspace being read.
func (p *ReversePass) Workspace() *workspace.Workspace { return p.ws }

// Logger returns the logger of the pass.
func (p *ReversePass) Logger() *slog.Logger { return p.cfg.logger }

// ObjectOf returns the object constructed for a record.
func (p *ReversePass) ObjectOf(r *workspace.Record) (*model.Object, bool) {
	o, ok := p.objects[r]
	return o, ok
}

// Object is the generic construction of the object of a record. Scalar
// values are decoded and set; reference and port values are kept as
// literal names until the resolution pass.
func (p *ReversePass) Object(r *workspace.Record) (*model.Object, error) {
	switch {
	case r.IsComment():
		return p.m.AddComment(r.Comment), nil
	case r.Opaque():
		p.cfg.logger.Info("unknown record type preserved", "type", r.TypeName())
		p.issues.warn(flatgraph.NewUnknownTypeError(r.TypeName()))
		o, err := p.m.Add(r.TypeName(), "")
		if err != nil {
			return nil, err
		}
		o.SetComment(r.Comment)
		return o, o.SetRaw(r.Values...)
	}
	o, err := p.m.Add(r.Type.Name, r.Name())
	if err != nil && r.Name() != "" {
		if _, taken := p.m.ByName(r.Type.Name, r.Name()); taken {
			o, err = p.rename(r)
		}
	}
	if err != nil {
		return nil, err
	}
	o.SetComment(r.Comment)
	nf, named := r.Type.NameField()
	for _, fd := range r.Type.Fields {
		if fd.Index >= len(r.Values) {
			break
		}
		s := strings.TrimSpace(r.Values[fd.Index])
		if s == "" || (named && fd == nf) {
			continue
		}
		switch {
		case fd.IsPort():
			p.ports = append(p.ports, pendingPort{o: o, fd: fd, node: s})
		case fd.IsRef():
			p.refs = append(p.refs, pendingRef{o: o, fd: fd, row: -1, name: s})
		}
		v, err := fd.Decode(s)
		if err == nil {
			err = o.Set(fd.Name, v)
		}
		if err != nil {
			p.invalid(r, fd.Name, s, err)
		}
	}
	for i, row := range r.Rows {
		values := make([]any, len(row))
		var refs []pendingRef
		for pos, s := range row {
			fd := r.Type.Extensible.Fields[pos]
			if s = strings.TrimSpace(s); s == "" {
				continue
			}
			v, err := fd.Decode(s)
			if err != nil {
				p.invalid(r, fmt.Sprintf("%s (row %d)", fd.Name, i+1), s, err)
				continue
			}
			values[pos] = v
			if fd.IsRef() {
				refs = append(refs, pendingRef{o: o, fd: fd, name: s})
			}
		}
		idx, err := o.AppendRow(values...)
		if err != nil {
			p.cfg.logger.Warn("row dropped", "type", r.TypeName(), "record", r.Name(), "row", i+1, "error", err)
			p.issues.warn(err)
			continue
		}
		for _, ref := range refs {
			ref.row = idx
			p.refs = append(p.refs, ref)
		}
	}
	return o, nil
}

// rename constructs the object of a record whose name an earlier record of
// the same type already took, under the first free suffixed name.
func (p *ReversePass) rename(r *workspace.Record) (*model.Object, error) {
	for i := 2; ; i++ {
		name := fmt.Sprintf("%s %d", r.Name(), i)
		if _, taken := p.m.ByName(r.Type.Name, name); taken {
			continue
		}
		o, err := p.m.Add(r.Type.Name, name)
		if err != nil {
			return nil, err
		}
		p.cfg.logger.Warn("duplicate record name", "type", r.TypeName(), "record", r.Name(), "renamed", name)
		err = flatgraph.NewValidationError(r.TypeName(), r.Name(), "Name", "name already used by another record of the same type, renamed to "+name)
		p.issues.warn(err)
		return o, nil
	}
}

// invalid reports a value that could not be set; the field stays unset.
func (p *ReversePass) invalid(r *workspace.Record, fieldName, s string, cause error) {
	e := flatgraph.NewValidationError(r.TypeName(), r.Name(), fieldName, "value dropped")
	e.Value, e.Cause = s, cause
	p.cfg.logger.Warn("value dropped", "type", r.TypeName(), "record", r.Name(), "field", fieldName, "error", cause)
	p.issues.warn(e)
}

// resolve points the pending references at their targets. Unresolved
// references keep their literal name.
func (p *ReversePass) resolve() {
	for _, ref := range p.refs {
		var target *model.Object
		if rec, ok := p.ws.Lookup(ref.name, ref.fd.RefTypes...); ok {
			target = p.objects[rec]
			p.ambiguous(ref, rec)
		}
		if target == nil {
			err := flatgraph.NewReferenceError(ref.o.TypeName(), ref.o.Name(), ref.fd.Name, ref.name)
			p.cfg.logger.Warn("unresolved reference", "type", ref.o.TypeName(), "object", ref.o.Name(), "field", ref.fd.Name, "target", ref.name)
			p.issues.warn(err)
			continue
		}
		var err error
		if ref.row < 0 {
			err = ref.o.SetRef(ref.fd.Name, target)
		} else {
			err = ref.o.SetRowValue(ref.row, ref.fd.Name, target)
		}
		if err != nil {
			p.cfg.logger.Warn("reference rejected", "type", ref.o.TypeName(), "object", ref.o.Name(), "field", ref.fd.Name, "error", err)
			p.issues.warn(err)
		}
	}
}

// ambiguous warns when records of several types carry the name a
// reference was bound by.
func (p *ReversePass) ambiguous(ref pendingRef, bound *workspace.Record) {
	types := make(map[schema.TypeID]bool)
	for _, r := range p.ws.Matches(ref.name, ref.fd.RefTypes...) {
		types[r.Type.ID] = true
	}
	if len(types) < 2 {
		return
	}
	p.cfg.logger.Warn("ambiguous reference", "type", ref.o.TypeName(), "object", ref.o.Name(), "field", ref.fd.Name, "target", ref.name, "bound", bound.TypeName())
	err := flatgraph.NewValidationError(ref.o.TypeName(), ref.o.Name(), ref.fd.Name, fmt.Sprintf("%d record types named %q, bound to %s", len(types), ref.name, bound.TypeName()))
	err.Value = ref.name
	p.issues.warn(err)
}

type node struct {
	name    string
	in, out []pendingPort
}

// connect joins the outlet and the inlet naming the same node. Ports left
// unjoined keep their literal node name.
func (p *ReversePass) connect() {
	var (
		nodes = make(map[string]*node)
		order []*node
	)
	for _, pp := range p.ports {
		k := schema.Key(pp.node)
		n, ok := nodes[k]
		if !ok {
			n = &node{name: pp.node}
			nodes[k] = n
			order = append(order, n)
		}
		if pp.fd.Dir == field.Out {
			n.out = append(n.out, pp)
		} else {
			n.in = append(n.in, pp)
		}
	}
	for _, n := range order {
		if len(n.out) == 0 || len(n.in) == 0 {
			continue
		}
		if len(n.out) > 1 || len(n.in) > 1 {
			err := flatgraph.NewValidationError("", n.name, "", fmt.Sprintf("node shared by %d outlets and %d inlets, joining the first pair", len(n.out), len(n.in)))
			p.cfg.logger.Warn("ambiguous node", "node", n.name, "outlets", len(n.out), "inlets", len(n.in))
			p.issues.warn(err)
		}
		src, dst := n.out[0], n.in[0]
		if _, err := p.m.Connect(src.o, src.fd.Name, dst.o, dst.fd.Name, model.WithNode(n.name)); err != nil {
			p.cfg.logger.Warn("connection rejected", "node", n.name, "error", err)
			p.issues.warn(err)
			continue
		}
		_ = src.o.Reset(src.fd.Name)
		_ = dst.o.Reset(dst.fd.Name)
	}
}
