// Package workspace provides the flat record store: an ordered list of
// flat records with indexes by record type and by name.
//
// A workspace lives for one translation pass. Adding a record checks its
// shape against the record type; uniqueness and required constraints are
// checked on demand by UniqueTypes and Validate.
package workspace

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/syssam/flatgraph"
	"github.com/syssam/flatgraph/registry"
	"github.com/syssam/flatgraph/schema"
)

// Workspace is an ordered store of flat records.
type Workspace struct {
	reg     *registry.Registry
	file    schema.FileType
	logger  *slog.Logger
	records []*Record
	byType  map[schema.TypeID][]*Record
	byName  map[string][]*Record
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithFileType scopes the workspace to one file type. Records of types
// outside the file are rejected. The default is schema.FileAll.
func WithFileType(ft schema.FileType) Option {
	return func(w *Workspace) {
		w.file = ft
	}
}

// WithLogger sets the logger used for opportunistic warnings.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workspace) {
		w.logger = l
	}
}

// New creates an empty workspace.
func New(reg *registry.Registry, opts ...Option) *Workspace {
	w := &Workspace{
		reg:    reg,
		file:   schema.FileAll,
		logger: slog.Default(),
		byType: make(map[schema.TypeID][]*Record),
		byName: make(map[string][]*Record),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Registry returns the registry of the workspace.
func (w *Workspace) Registry() *registry.Registry { return w.reg }

// FileType returns the file type the workspace is scoped to.
func (w *Workspace) FileType() schema.FileType { return w.file }

// Add appends a record. The number of values and rows must fit the
// record type. A second record of a unique type is accepted and logged.
func (w *Workspace) Add(r *Record) error {
	if r == nil || r.Type == nil {
		return flatgraph.NewValidationError("", "", "", "record without type")
	}
	if err := r.Type.CheckShape(len(r.Values), r.Rows); err != nil {
		e := flatgraph.NewValidationError(r.TypeName(), r.Name(), "", "record shape")
		e.Cause = err
		return e
	}
	if !r.Type.InFile(w.file) {
		return flatgraph.NewValidationError(r.TypeName(), r.Name(), "", fmt.Sprintf("record type not in file %q", w.file))
	}
	w.records = append(w.records, r)
	w.byType[r.Type.ID] = append(w.byType[r.Type.ID], r)
	if name := r.Name(); name != "" {
		k := schema.Key(name)
		w.byName[k] = append(w.byName[k], r)
	}
	if n := len(w.byType[r.Type.ID]); r.Type.Unique && n > 1 {
		w.logger.Warn("duplicate unique record", "type", r.Type.Name, "count", n)
	}
	return nil
}

// AddValues appends a record given its type name and its values in
// encoding order. Values past the fixed fields are split into rows. A type
// name unknown to the registry yields a catch-all record keeping every
// value.
func (w *Workspace) AddValues(typeName string, values []string) (*Record, error) {
	t, ok := w.reg.LookupName(typeName)
	if !ok {
		r := &Record{Type: w.reg.CatchAll(), RawType: typeName, Values: slices.Clone(values)}
		return r, w.Add(r)
	}
	r := &Record{Type: t, RawType: t.Name}
	n := min(len(values), len(t.Fields))
	r.Values = slices.Clone(values[:n])
	rest := values[n:]
	if size := t.RowSize(); size > 0 {
		for len(rest) > 0 {
			k := min(size, len(rest))
			r.Rows = append(r.Rows, slices.Clone(rest[:k]))
			rest = rest[k:]
		}
	}
	if len(rest) > 0 {
		return nil, flatgraph.NewValidationError(t.Name, r.Name(), "", fmt.Sprintf("%d values exceed %d fields", len(values), len(t.Fields)))
	}
	return r, w.Add(r)
}

// AddComment appends a comment-only record.
func (w *Workspace) AddComment(text string) *Record {
	r := &Record{Type: w.reg.Comment(), RawType: schema.CommentName, Comment: text}
	w.records = append(w.records, r)
	w.byType[r.Type.ID] = append(w.byType[r.Type.ID], r)
	return r
}

// Records returns all records in order.
func (w *Workspace) Records() []*Record { return slices.Clone(w.records) }

// Len returns the number of records.
func (w *Workspace) Len() int { return len(w.records) }

// OfType returns the records of a record type in order.
func (w *Workspace) OfType(id schema.TypeID) []*Record {
	return slices.Clone(w.byType[id])
}

// Lookup returns the record with the given name, case-insensitively.
// With record types given, they are tried in order and the first record of
// the first type holding the name wins. Without types, the first record of
// any type wins; Matches tells if that choice is ambiguous.
func (w *Workspace) Lookup(name string, typeNames ...string) (*Record, bool) {
	recs := w.byName[schema.Key(name)]
	if len(typeNames) == 0 {
		if len(recs) == 0 {
			return nil, false
		}
		return recs[0], true
	}
	for _, tn := range typeNames {
		k := schema.Key(tn)
		for _, r := range recs {
			if schema.Key(r.TypeName()) == k {
				return r, true
			}
		}
	}
	return nil, false
}

// Matches returns the records with the given name in record order,
// restricted to the given record types if any.
func (w *Workspace) Matches(name string, typeNames ...string) []*Record {
	var recs []*Record
	for _, r := range w.byName[schema.Key(name)] {
		if len(typeNames) == 0 || slices.ContainsFunc(typeNames, func(tn string) bool {
			return schema.Key(tn) == schema.Key(r.TypeName())
		}) {
			recs = append(recs, r)
		}
	}
	return recs
}

// Named returns the record of a record type with the given name.
func (w *Workspace) Named(id schema.TypeID, name string) (*Record, bool) {
	for _, r := range w.byName[schema.Key(name)] {
		if r.Type.ID == id {
			return r, true
		}
	}
	return nil, false
}

// Opaque returns the catch-all records.
func (w *Workspace) Opaque() []*Record {
	return w.OfType(schema.TypeCatchAll)
}

// UniqueTypes returns the unique record types of the workspace file that
// are present. Every unique type present more than once yields a
// DuplicateUniqueError; the errors are joined.
func (w *Workspace) UniqueTypes() ([]*schema.RecordType, error) {
	var (
		types []*schema.RecordType
		errs  []error
	)
	for _, t := range w.reg.Unique(w.file) {
		n := len(w.byType[t.ID])
		if n == 0 {
			continue
		}
		types = append(types, t)
		if n > 1 {
			errs = append(errs, flatgraph.NewDuplicateUniqueError(t.Name, n))
		}
	}
	return types, flatgraph.NewAggregateError(errs...)
}

// Validate checks every record against its type: required fields must be
// populated and values must decode. For a concrete file type, every
// required record type must be present. Unique types must not repeat.
func (w *Workspace) Validate() error {
	var errs []error
	for _, r := range w.records {
		if r.Type.Synthetic() {
			continue
		}
		errs = append(errs, w.validate(r)...)
	}
	if !w.file.Pseudo() {
		for _, t := range w.reg.Required(w.file) {
			if len(w.byType[t.ID]) == 0 {
				errs = append(errs, flatgraph.NewValidationError(t.Name, "", "", "required record type missing"))
			}
		}
	}
	if _, err := w.UniqueTypes(); err != nil {
		errs = append(errs, err)
	}
	return flatgraph.NewAggregateError(errs...)
}

func (w *Workspace) validate(r *Record) []error {
	var errs []error
	for _, fd := range r.Type.Fields {
		var s string
		if fd.Index < len(r.Values) {
			s = r.Values[fd.Index]
		}
		v, err := fd.Decode(s)
		switch {
		case err != nil:
			e := flatgraph.NewValidationError(r.TypeName(), r.Name(), fd.Name, "invalid value")
			e.Value, e.Cause = s, err
			errs = append(errs, e)
		case !v.IsSet() && fd.Required && !fd.HasDefault():
			errs = append(errs, flatgraph.NewValidationError(r.TypeName(), r.Name(), fd.Name, "required field is empty"))
		}
	}
	for i, row := range r.Rows {
		for pos, s := range row {
			fd := r.Type.Extensible.Fields[pos]
			if _, err := fd.Decode(s); err != nil {
				e := flatgraph.NewValidationError(r.TypeName(), r.Name(), fmt.Sprintf("%s (row %d)", fd.Name, i+1), "invalid value")
				e.Value, e.Cause = s, err
				errs = append(errs, e)
			}
		}
	}
	return errs
}
