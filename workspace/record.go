package workspace

import (
	"slices"
	"strings"

	"github.com/syssam/flatgraph/schema"
)

// Record is one flat record: a type tag, positional field values in their
// encoded text form and the extensible rows.
type Record struct {
	Type *schema.RecordType
	// RawType is the type name as written. For catch-all records it is the
	// unknown type name.
	RawType string
	// Values holds the fixed field values. Catch-all records hold every
	// value verbatim here.
	Values []string
	Rows   [][]string
	// Comment is the comment attached to the record, or the text of a
	// comment-only record.
	Comment string
}

// TypeName returns the name the record is tagged with.
func (r *Record) TypeName() string {
	if r.RawType != "" {
		return r.RawType
	}
	return r.Type.Name
}

// Opaque reports if the record is bound to the catch-all type.
func (r *Record) Opaque() bool { return r.Type.ID == schema.TypeCatchAll }

// IsComment reports if the record is a comment-only record.
func (r *Record) IsComment() bool { return r.Type.ID == schema.TypeComment }

// Name returns the value of the name field, or "".
func (r *Record) Name() string {
	nf, ok := r.Type.NameField()
	if !ok || nf.Index >= len(r.Values) {
		return ""
	}
	return strings.TrimSpace(r.Values[nf.Index])
}

// Value returns the encoded value of a fixed field by name.
func (r *Record) Value(name string) (string, bool) {
	fd, ok := r.Type.Field(name)
	if !ok || fd.Index >= len(r.Values) {
		return "", false
	}
	return r.Values[fd.Index], r.Values[fd.Index] != ""
}

// Flat returns all values in encoding order. When rows follow, the fixed
// values are padded so that row values keep their positions.
func (r *Record) Flat() []string {
	if len(r.Rows) == 0 {
		return slices.Clone(r.Values)
	}
	flat := make([]string, len(r.Type.Fields), r.Type.MaxFieldCount(len(r.Rows)))
	copy(flat, r.Values)
	for _, row := range r.Rows {
		padded := make([]string, r.Type.RowSize())
		copy(padded, row)
		flat = append(flat, padded...)
	}
	return flat
}

// String returns the compact form of the record, Type,v1,v2.
func (r *Record) String() string {
	if r.IsComment() {
		return "!" + r.Comment
	}
	return strings.Join(append([]string{r.TypeName()}, r.Flat()...), ",")
}
