package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/syssam/flatgraph/schema/field"
)

// TypeID identifies a record type inside a registry.
type TypeID int

// Synthetic record types present in every registry.
const (
	TypeCatchAll TypeID = iota
	TypeComment
	// FirstTypeID is the first id handed out to schema-defined types.
	FirstTypeID
)

// Names of the synthetic record types.
const (
	CatchAllName = "Catchall"
	CommentName  = "CommentOnly"
)

// FileType identifies a schema file (a family of flat record files).
type FileType string

// Pseudo file types. They aggregate other files and have no version or header.
const (
	FileAll  FileType = "*"
	FileUser FileType = "user"
)

// Pseudo reports if f is an aggregate or user-defined pseudo file type.
func (f FileType) Pseudo() bool { return f == FileAll || f == FileUser }

// Key returns the case-folded form of a name. All record type, record and
// field name comparisons go through Key.
func Key(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Group is the extensible field group of a record type, repeated once per row.
type Group struct {
	Fields  []*field.Descriptor
	MaxRows int // 0 means unbounded.
}

// RecordType is the descriptor of one flat record shape.
type RecordType struct {
	ID         TypeID
	Name       string
	Group      string // group label from the schema source.
	Memo       string
	Fields     []*field.Descriptor
	Extensible *Group
	Required   bool // must appear in every file it belongs to.
	Unique     bool // may appear at most once per file.
	Files      []FileType

	index     map[string]*field.Descriptor
	nameField int
}

// Option configures a RecordType.
type Option func(*RecordType) error

// Fields appends fixed fields.
func Fields(fs ...field.Field) Option {
	return func(t *RecordType) error {
		for _, f := range fs {
			t.Fields = append(t.Fields, f.Descriptor())
		}
		return nil
	}
}

// Extensible sets the extensible group. maxRows of 0 means unbounded.
func Extensible(maxRows int, fs ...field.Field) Option {
	return func(t *RecordType) error {
		if maxRows < 0 {
			return fmt.Errorf("negative max rows %d", maxRows)
		}
		if len(fs) == 0 {
			return errors.New("extensible group without fields")
		}
		g := &Group{MaxRows: maxRows}
		for _, f := range fs {
			g.Fields = append(g.Fields, f.Descriptor())
		}
		t.Extensible = g
		return nil
	}
}

// WithGroup sets the group label.
func WithGroup(label string) Option {
	return func(t *RecordType) error {
		t.Group = label
		return nil
	}
}

// WithMemo sets the memo text.
func WithMemo(memo string) Option {
	return func(t *RecordType) error {
		t.Memo = memo
		return nil
	}
}

// Required marks the type as required in its files.
func Required() Option {
	return func(t *RecordType) error {
		t.Required = true
		return nil
	}
}

// Unique marks the type as unique in its files.
func Unique() Option {
	return func(t *RecordType) error {
		t.Unique = true
		return nil
	}
}

// New creates a record type. Field descriptors are copied and indexed in
// declaration order; extensible fields continue the numbering of the first row.
func New(name string, opts ...Option) (*RecordType, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("record type name cannot be empty")
	}
	t := &RecordType{Name: name}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, fmt.Errorf("record type %q: %w", name, err)
		}
	}
	if err := t.init(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustNew is like New but panics on error.
func MustNew(name string, opts ...Option) *RecordType {
	t, err := New(name, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// CatchAll returns the synthetic type that carries records of unknown types.
func CatchAll() *RecordType {
	t := &RecordType{ID: TypeCatchAll, Name: CatchAllName, Memo: "opaque record of an unregistered type"}
	_ = t.init()
	return t
}

// CommentOnly returns the synthetic type for comment-only pseudo-records.
func CommentOnly() *RecordType {
	t := &RecordType{ID: TypeComment, Name: CommentName, Memo: "comment lines kept for round-trip fidelity"}
	_ = t.init()
	return t
}

func (t *RecordType) init() error {
	t.index = make(map[string]*field.Descriptor, len(t.Fields))
	t.nameField = -1
	fixed := make([]*field.Descriptor, len(t.Fields))
	for i, fd := range t.Fields {
		if err := fd.Validate(); err != nil {
			return fmt.Errorf("record type %q: %w", t.Name, err)
		}
		c := fd.Clone()
		c.Index = i
		k := Key(c.Name)
		if _, ok := t.index[k]; ok {
			return fmt.Errorf("field %q redeclared for record type %q", c.Name, t.Name)
		}
		t.index[k] = c
		fixed[i] = c
		if t.nameField < 0 && k == Key("Name") && c.Kind == field.KindString {
			t.nameField = i
		}
	}
	t.Fields = fixed
	if g := t.Extensible; g != nil {
		ext := make([]*field.Descriptor, len(g.Fields))
		seen := make(map[string]struct{}, len(g.Fields))
		for j, fd := range g.Fields {
			if err := fd.Validate(); err != nil {
				return fmt.Errorf("record type %q: extensible %w", t.Name, err)
			}
			c := fd.Clone()
			c.Index = len(fixed) + j
			k := Key(c.Name)
			if _, ok := seen[k]; ok {
				return fmt.Errorf("extensible field %q redeclared for record type %q", c.Name, t.Name)
			}
			seen[k] = struct{}{}
			ext[j] = c
		}
		t.Extensible = &Group{Fields: ext, MaxRows: g.MaxRows}
	}
	return nil
}

// Field returns the fixed field with the given name, case-insensitively.
func (t *RecordType) Field(name string) (*field.Descriptor, bool) {
	fd, ok := t.index[Key(name)]
	return fd, ok
}

// ExtensibleField returns the extensible field with the given name and its
// position inside a row.
func (t *RecordType) ExtensibleField(name string) (*field.Descriptor, int, bool) {
	if t.Extensible == nil {
		return nil, -1, false
	}
	k := Key(name)
	for j, fd := range t.Extensible.Fields {
		if Key(fd.Name) == k {
			return fd, j, true
		}
	}
	return nil, -1, false
}

// NameField returns the field holding the record name, if the type has one.
func (t *RecordType) NameField() (*field.Descriptor, bool) {
	if t.nameField < 0 {
		return nil, false
	}
	return t.Fields[t.nameField], true
}

// Named reports if records of this type carry a name.
func (t *RecordType) Named() bool { return t.nameField >= 0 }

// Synthetic reports if t is the catch-all or the comment type.
func (t *RecordType) Synthetic() bool { return t.ID == TypeCatchAll || t.ID == TypeComment }

// RowSize returns the number of fields in one extensible row.
func (t *RecordType) RowSize() int {
	if t.Extensible == nil {
		return 0
	}
	return len(t.Extensible.Fields)
}

// MaxFieldCount returns the maximum number of encoded values for a record
// holding the given number of extensible rows.
func (t *RecordType) MaxFieldCount(rows int) int {
	return len(t.Fields) + t.RowSize()*rows
}

// CheckShape verifies that a record with the given number of fixed values
// and rows fits the type.
func (t *RecordType) CheckShape(values int, rows [][]string) error {
	if t.ID == TypeCatchAll {
		return nil
	}
	if values > len(t.Fields) {
		return fmt.Errorf("record type %q: %d values exceed %d fields", t.Name, values, len(t.Fields))
	}
	if len(rows) == 0 {
		return nil
	}
	if t.Extensible == nil {
		return fmt.Errorf("record type %q: extensible rows on a non-extensible type", t.Name)
	}
	if t.Extensible.MaxRows > 0 && len(rows) > t.Extensible.MaxRows {
		return fmt.Errorf("record type %q: %d rows exceed maximum %d", t.Name, len(rows), t.Extensible.MaxRows)
	}
	for i, r := range rows {
		if len(r) > t.RowSize() {
			return fmt.Errorf("record type %q: row %d has %d values, group has %d fields", t.Name, i, len(r), t.RowSize())
		}
	}
	return nil
}

// InFile reports if the type belongs to the given file. Synthetic types
// belong to every file; FileAll matches every type.
func (t *RecordType) InFile(f FileType) bool {
	if f == FileAll || t.Synthetic() {
		return true
	}
	return slices.Contains(t.Files, f)
}

// String implements fmt.Stringer.
func (t *RecordType) String() string { return t.Name }
