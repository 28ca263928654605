package translate

import (
	"log/slog"

	"github.com/syssam/flatgraph"
	"github.com/syssam/flatgraph/model"
	"github.com/syssam/flatgraph/naming"
	"github.com/syssam/flatgraph/registry"
	"github.com/syssam/flatgraph/schema"
	"github.com/syssam/flatgraph/schema/field"
	"github.com/syssam/flatgraph/workspace"
)

// ForwardFunc translates one object into a record. A nil record emits
// nothing for the object. Implementations may call back into the pass,
// typically to start from the generic mapping of Record.
type ForwardFunc func(p *ForwardPass, o *model.Object) (*workspace.Record, error)

// Forward translates models into workspaces.
type Forward struct {
	reg *registry.Registry
	cfg *config
}

// NewForward creates a forward engine for models bound to reg.
func NewForward(reg *registry.Registry, opts ...Option) *Forward {
	return &Forward{reg: reg, cfg: newConfig(opts)}
}

// Result is the outcome of a forward translation.
type Result struct {
	Workspace *workspace.Workspace
	Issues
}

// Translate emits the records of a model into a new workspace. The
// returned error is only non-nil when the model is bound to another
// registry; per-object failures are reported in the result.
func (f *Forward) Translate(m *model.Model) (*Result, error) {
	if m.Registry() != f.reg {
		return nil, flatgraph.NewConfigurationError("", "model is bound to another registry", nil)
	}
	res := &Result{
		Workspace: workspace.New(f.reg, workspace.WithFileType(f.cfg.file), workspace.WithLogger(f.cfg.logger)),
	}
	p := &ForwardPass{
		cfg:    f.cfg,
		m:      m,
		ws:     res.Workspace,
		names:  naming.New(),
		cache:  make(map[model.Handle]*entry),
		issues: &res.Issues,
	}
	p.names.Prepare(m)
	chained, heads := p.chains()
	walked := make(map[model.Handle]bool)
	for _, o := range p.order() {
		if chained[o.Handle()] && !heads[o.Handle()] {
			continue
		}
		_, _ = p.Translate(o)
		if heads[o.Handle()] {
			p.walk(o, walked)
		}
	}
	for _, o := range m.Objects() {
		_, _ = p.Translate(o)
	}
	if _, err := res.Workspace.UniqueTypes(); err != nil {
		f.cfg.logger.Warn("duplicate unique records", "error", err)
		res.warn(err)
	}
	return res, nil
}

type entry struct {
	rec      *workspace.Record
	err      error
	visiting bool
}

// ForwardPass is the state of one forward translation: the translation
// cache and the name resolver. It is not shared between translations.
type ForwardPass struct {
	cfg    *config
	m      *model.Model
	ws     *workspace.Workspace
	names  *naming.Resolver
	cache  map[model.Handle]*entry
	issues *Issues
}

// Model returns the model being translated.
func (p *ForwardPass) Model() *model.Model { return p.m }

// Workspace returns the workspace being filled.
func (p *ForwardPass) Workspace() *workspace.Workspace { return p.ws }

// Logger returns the logger of the pass.
func (p *ForwardPass) Logger() *slog.Logger { return p.cfg.logger }

// Name returns the record name of an object.
func (p *ForwardPass) Name(o *model.Object) string { return p.names.Object(o) }

// Port returns the node name of a port of an object.
func (p *ForwardPass) Port(o *model.Object, fd *field.Descriptor) string { return p.names.Port(o, fd) }

// order returns the objects with precedence types first. Without explicit
// precedence, unique types come first.
func (p *ForwardPass) order() []*model.Object {
	prec := p.cfg.precedence
	if len(prec) == 0 {
		for _, t := range p.m.Registry().Unique(p.cfg.file) {
			prec = append(prec, t.Name)
		}
	}
	var (
		objs []*model.Object
		seen = make(map[model.Handle]bool)
	)
	for _, tn := range prec {
		for _, o := range p.m.OfType(tn) {
			if !seen[o.Handle()] {
				seen[o.Handle()] = true
				objs = append(objs, o)
			}
		}
	}
	for _, o := range p.m.Objects() {
		if !seen[o.Handle()] {
			objs = append(objs, o)
		}
	}
	return objs
}

// chains returns the objects reachable from a chain head, and the heads.
func (p *ForwardPass) chains() (chained, heads map[model.Handle]bool) {
	chained = make(map[model.Handle]bool)
	heads = make(map[model.Handle]bool)
	entry := make(map[string]bool)
	for _, tn := range p.cfg.entry {
		entry[schema.Key(tn)] = true
	}
	var queue []*model.Object
	for _, o := range p.m.Objects() {
		isHead := len(o.Outbound()) > 0 && len(o.Inbound()) == 0
		if len(entry) > 0 {
			isHead = entry[schema.Key(o.TypeName())]
		}
		if isHead {
			heads[o.Handle()] = true
			queue = append(queue, o)
		}
	}
	for len(queue) > 0 {
		o := queue[0]
		queue = queue[1:]
		for _, c := range o.Outbound() {
			if !chained[c.To.Handle()] {
				chained[c.To.Handle()] = true
				queue = append(queue, c.To)
			}
		}
	}
	return chained, heads
}

// walk translates the chain downstream of o in connection order.
func (p *ForwardPass) walk(o *model.Object, walked map[model.Handle]bool) {
	if walked[o.Handle()] {
		return
	}
	walked[o.Handle()] = true
	for _, c := range o.Outbound() {
		_, _ = p.Translate(c.To)
		p.walk(c.To, walked)
	}
}

// Translate emits the record of an object, once. Later calls return the
// cached outcome. A nil record without error means the object was
// translated to nothing.
func (p *ForwardPass) Translate(o *model.Object) (*workspace.Record, error) {
	if e, ok := p.cache[o.Handle()]; ok {
		return e.rec, e.err
	}
	e := &entry{visiting: true}
	p.cache[o.Handle()] = e
	e.rec, e.err = p.translate(o)
	e.visiting = false
	return e.rec, e.err
}

func (p *ForwardPass) translate(o *model.Object) (*workspace.Record, error) {
	log := p.cfg.logger
	if !o.Type().InFile(p.cfg.file) {
		log.Debug("object outside file", "type", o.TypeName(), "file", p.cfg.file)
		return nil, nil
	}
	if p.cfg.precheck != nil {
		if err := p.cfg.precheck(o); err != nil {
			log.Info("object skipped by precheck", "type", o.TypeName(), "object", p.Name(o), "reason", err)
			return nil, nil
		}
	}
	fn, ok := p.cfg.forward[schema.Key(o.TypeName())]
	if !ok {
		fn = (*ForwardPass).Record
	}
	rec, err := fn(p, o)
	if err == nil && rec != nil {
		err = p.ws.Add(rec)
	}
	if err != nil {
		log.Warn("object skipped", "type", o.TypeName(), "object", p.Name(o), "error", err)
		p.issues.fail(err)
		return nil, err
	}
	return rec, nil
}

// Record is the generic mapping of an object to its record. Referenced
// objects are translated first.
func (p *ForwardPass) Record(o *model.Object) (*workspace.Record, error) {
	t := o.Type()
	switch {
	case o.IsComment():
		return &workspace.Record{Type: t, RawType: t.Name, Comment: o.Comment()}, nil
	case o.Opaque():
		return &workspace.Record{Type: t, RawType: o.TypeName(), Values: o.Raw(), Comment: o.Comment()}, nil
	}
	rec := &workspace.Record{
		Type:    t,
		RawType: t.Name,
		Values:  make([]string, len(t.Fields)),
		Comment: o.Comment(),
	}
	for _, fd := range t.Fields {
		s, err := p.fixed(o, fd)
		if err != nil {
			return nil, err
		}
		rec.Values[fd.Index] = s
	}
	for r := range o.ActiveRows() {
		row := make([]string, len(t.Extensible.Fields))
		for pos, fd := range t.Extensible.Fields {
			s, err := p.rowValue(o, r, pos, fd)
			if err != nil {
				return nil, err
			}
			row[pos] = s
		}
		rec.Rows = append(rec.Rows, row)
	}
	if len(rec.Rows) == 0 {
		n := len(rec.Values)
		for n > 0 && rec.Values[n-1] == "" {
			n--
		}
		rec.Values = rec.Values[:n]
	}
	return rec, nil
}

func (p *ForwardPass) fixed(o *model.Object, fd *field.Descriptor) (string, error) {
	if nf, ok := o.Type().NameField(); ok && nf == fd {
		return p.Name(o), nil
	}
	if fd.IsPort() {
		if _, ok := o.ConnectionAt(fd.Name); ok {
			return p.Port(o, fd), nil
		}
		if v := o.Value(fd.Index); v.IsSet() {
			return v.String(), nil
		}
		if fd.Required {
			return p.Port(o, fd), nil
		}
		return "", nil
	}
	if target, ok := o.RefAt(fd.Index); ok {
		return p.reference(o, fd, target)
	}
	return p.encode(o, fd, o.Value(fd.Index))
}

func (p *ForwardPass) rowValue(o *model.Object, row, pos int, fd *field.Descriptor) (string, error) {
	if target, ok := o.RowRef(row, pos); ok {
		return p.reference(o, fd, target)
	}
	return p.encode(o, fd, o.RowValue(row, pos))
}

// encode returns the explicit value, else the default. A required field
// with neither fails the object.
func (p *ForwardPass) encode(o *model.Object, fd *field.Descriptor, v field.Value) (string, error) {
	switch {
	case v.IsSet():
		return fd.Encode(v), nil
	case fd.HasDefault():
		return fd.Encode(fd.Default), nil
	case fd.Required:
		return "", flatgraph.NewValidationError(o.TypeName(), p.Name(o), fd.Name, "required field has no value")
	default:
		return "", nil
	}
}

// reference translates the target of a reference and returns the name to
// encode. A target that produced no record leaves the field empty, which
// fails the object when the field is required.
func (p *ForwardPass) reference(o *model.Object, fd *field.Descriptor, target *model.Object) (string, error) {
	rec, _ := p.Translate(target)
	if e := p.cache[target.Handle()]; e.visiting {
		if name := p.Name(target); name != "" {
			return name, nil
		}
	}
	name := p.Name(target)
	if rec != nil && rec.Name() != "" {
		name = rec.Name()
	}
	if rec != nil && name != "" {
		return name, nil
	}
	refErr := flatgraph.NewReferenceError(o.TypeName(), p.Name(o), fd.Name, target.String())
	if fd.Required {
		ve := flatgraph.NewValidationError(o.TypeName(), p.Name(o), fd.Name, "required reference has no record")
		ve.Cause = refErr
		return "", ve
	}
	p.cfg.logger.Warn("reference left empty", "type", o.TypeName(), "object", p.Name(o), "field", fd.Name, "target", target.String())
	p.issues.warn(refErr)
	return "", nil
}
