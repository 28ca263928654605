// Package translate converts between the object graph and the flat record
// store.
//
// The forward engine walks a model and emits one record per object,
// translating referenced objects first and every shared object at most
// once. The reverse engine rebuilds a model from a workspace in two
// passes: it constructs every object, then resolves name references and
// joins ports into topology connections.
//
// Per-object failures never abort a pass. They are logged and collected in
// Issues; only a registry mismatch fails a whole translation.
package translate

import (
	"log/slog"
	"strings"

	"github.com/syssam/flatgraph"
	"github.com/syssam/flatgraph/model"
	"github.com/syssam/flatgraph/schema"
)

// Issues collects the recovered errors of a translation pass. Errors name
// skipped objects or records; warnings name fields left empty and records
// kept in degraded form.
type Issues struct {
	Errors   []error
	Warnings []error
}

// HasErrors reports if any object or record was skipped.
func (i *Issues) HasErrors() bool { return len(i.Errors) > 0 }

// HasWarnings reports if any warning was raised.
func (i *Issues) HasWarnings() bool { return len(i.Warnings) > 0 }

// Err returns the errors as one error, or nil.
func (i *Issues) Err() error { return flatgraph.NewAggregateError(i.Errors...) }

// String returns a human-readable summary.
func (i *Issues) String() string {
	var sb strings.Builder
	write := func(title string, errs []error) {
		if len(errs) == 0 {
			return
		}
		sb.WriteString(title)
		sb.WriteString(":\n")
		for _, err := range errs {
			sb.WriteString("  - ")
			sb.WriteString(err.Error())
			sb.WriteString("\n")
		}
	}
	write("Errors", i.Errors)
	write("Warnings", i.Warnings)
	if sb.Len() == 0 {
		return "No issues."
	}
	return sb.String()
}

func (i *Issues) warn(err error) { i.Warnings = append(i.Warnings, err) }

func (i *Issues) fail(err error) { i.Errors = append(i.Errors, err) }

// config holds the options shared by both engines.
type config struct {
	forward    map[string]ForwardFunc
	reverse    map[string]ReverseFunc
	precedence []string
	entry      []string
	precheck   func(*model.Object) error
	file       schema.FileType
	logger     *slog.Logger
}

// Option configures an engine.
type Option func(*config)

// WithForwardFunc overrides the forward translation of one record type.
func WithForwardFunc(typeName string, fn ForwardFunc) Option {
	return func(c *config) {
		c.forward[schema.Key(typeName)] = fn
	}
}

// WithReverseFunc overrides the reverse translation of one record type.
func WithReverseFunc(typeName string, fn ReverseFunc) Option {
	return func(c *config) {
		c.reverse[schema.Key(typeName)] = fn
	}
}

// WithPrecedence lists record types whose objects are translated before
// all others, in the given order.
func WithPrecedence(typeNames ...string) Option {
	return func(c *config) {
		c.precedence = append(c.precedence, typeNames...)
	}
}

// WithEntryPoints lists the record types topology chains start from. By
// default chains start at every object with outbound and no inbound
// connections.
func WithEntryPoints(typeNames ...string) Option {
	return func(c *config) {
		c.entry = append(c.entry, typeNames...)
	}
}

// WithPrecheck sets a check run before an object is translated. An object
// failing the check is skipped without being reported as an error.
func WithPrecheck(fn func(*model.Object) error) Option {
	return func(c *config) {
		c.precheck = fn
	}
}

// WithFileType restricts translation to the record types of one file.
func WithFileType(ft schema.FileType) Option {
	return func(c *config) {
		c.file = ft
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

func newConfig(opts []Option) *config {
	c := &config{
		forward: make(map[string]ForwardFunc),
		reverse: make(map[string]ReverseFunc),
		file:    schema.FileAll,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
