// Package registry provides the schema registry: the catalogue of record
// types built once from schema sources and read concurrently thereafter.
//
// A Registry is immutable after Build. It is passed explicitly to the
// translation engines and codecs; generated catalogue packages expose a
// lazily built process-wide instance through sync.OnceValue.
package registry

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"

	"github.com/syssam/flatgraph"
	"github.com/syssam/flatgraph/compiler/load"
	"github.com/syssam/flatgraph/schema"
)

// Registry is the catalogue of record types.
type Registry struct {
	types    []*schema.RecordType // indexed by TypeID.
	names    map[string]*schema.RecordType
	files    []schema.FileType
	meta     map[schema.FileType]*fileMeta
	warnings []error
}

type fileMeta struct {
	source  string
	version string
	header  string
}

// Option configures Build.
type Option func(*builder)

// WithLogger sets the logger receiving configuration warnings.
// It defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *builder) {
		if l != nil {
			b.log = l
		}
	}
}

// Build creates a registry from schema sources. Record types are numbered
// from schema.FirstTypeID in the order they first appear across sources.
// Configuration errors (malformed sources, unknown or cyclic includes,
// conflicting definitions) are fatal; an excluded name missing from the
// included source is reported as a warning.
func Build(sources []*load.Source, opts ...Option) (*Registry, error) {
	b := &builder{
		log:     slog.Default(),
		sources: make(map[string]*load.Source, len(sources)),
		members: make(map[string][]string),
		state:   make(map[string]visit),
		reg: &Registry{
			names: make(map[string]*schema.RecordType),
			meta:  make(map[schema.FileType]*fileMeta),
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := b.build(sources); err != nil {
		return nil, err
	}
	return b.reg, nil
}

// MustBuild is like Build but panics on error.
func MustBuild(sources []*load.Source, opts ...Option) *Registry {
	r, err := Build(sources, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the record type with the given id.
func (r *Registry) Lookup(id schema.TypeID) (*schema.RecordType, bool) {
	if id < 0 || int(id) >= len(r.types) {
		return nil, false
	}
	return r.types[id], true
}

// LookupName returns the record type with the given name, case-insensitively.
func (r *Registry) LookupName(name string) (*schema.RecordType, bool) {
	t, ok := r.names[schema.Key(name)]
	return t, ok
}

// CatchAll returns the synthetic catch-all record type.
func (r *Registry) CatchAll() *schema.RecordType { return r.types[schema.TypeCatchAll] }

// Comment returns the synthetic comment-only record type.
func (r *Registry) Comment() *schema.RecordType { return r.types[schema.TypeComment] }

// Len returns the number of record types, synthetic types included.
func (r *Registry) Len() int { return len(r.types) }

// All returns all record types in id order.
func (r *Registry) All() []*schema.RecordType {
	return slices.Clone(r.types)
}

// InFile returns the record types belonging to a file, in id order.
// FileAll yields every type. FileUser stands for files unknown to the
// registry and yields the synthetic types only.
func (r *Registry) InFile(ft schema.FileType) []*schema.RecordType {
	return r.filter(func(t *schema.RecordType) bool { return t.InFile(ft) })
}

// Matching returns the record types whose name matches re.
func (r *Registry) Matching(re *regexp.Regexp) []*schema.RecordType {
	return r.filter(func(t *schema.RecordType) bool { return re.MatchString(t.Name) })
}

// Required returns the required record types, restricted to the given
// files if any.
func (r *Registry) Required(files ...schema.FileType) []*schema.RecordType {
	return r.filter(func(t *schema.RecordType) bool { return t.Required && inAny(t, files) })
}

// Unique returns the unique record types, restricted to the given files
// if any.
func (r *Registry) Unique(files ...schema.FileType) []*schema.RecordType {
	return r.filter(func(t *schema.RecordType) bool { return t.Unique && inAny(t, files) })
}

// IsTypeInFile reports if the record type with the given id belongs to a file.
func (r *Registry) IsTypeInFile(id schema.TypeID, ft schema.FileType) bool {
	t, ok := r.Lookup(id)
	return ok && t.InFile(ft)
}

// Files returns the declared file types in source order.
func (r *Registry) Files() []schema.FileType {
	return slices.Clone(r.files)
}

// Version returns the version string of a file. Asking for the version of
// a pseudo file type is a configuration error.
func (r *Registry) Version(ft schema.FileType) (string, error) {
	m, err := r.fileMeta(ft)
	if err != nil {
		return "", err
	}
	return m.version, nil
}

// Header returns the free-text header of a file. Asking for the header of
// a pseudo file type is a configuration error.
func (r *Registry) Header(ft schema.FileType) (string, error) {
	m, err := r.fileMeta(ft)
	if err != nil {
		return "", err
	}
	return m.header, nil
}

// Warnings returns the non-fatal configuration warnings raised by Build.
func (r *Registry) Warnings() []error {
	return slices.Clone(r.warnings)
}

func (r *Registry) fileMeta(ft schema.FileType) (*fileMeta, error) {
	if ft.Pseudo() {
		return nil, flatgraph.NewConfigurationError("", fmt.Sprintf("pseudo file type %q has no version or header", ft), nil)
	}
	m, ok := r.meta[ft]
	if !ok {
		return nil, flatgraph.NewConfigurationError("", fmt.Sprintf("unknown file type %q", ft), nil)
	}
	return m, nil
}

func (r *Registry) filter(pred func(*schema.RecordType) bool) []*schema.RecordType {
	var types []*schema.RecordType
	for _, t := range r.types {
		if pred(t) {
			types = append(types, t)
		}
	}
	return types
}

func inAny(t *schema.RecordType, files []schema.FileType) bool {
	if len(files) == 0 {
		return true
	}
	for _, f := range files {
		if t.InFile(f) {
			return true
		}
	}
	return false
}
