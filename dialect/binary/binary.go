// Package binary implements a compact msgpack snapshot of a workspace.
// Records keep their stored shape, so a snapshot restores exactly what was
// encoded, opaque records and comments included.
package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/flatgraph/dialect"
	"github.com/syssam/flatgraph/registry"
	"github.com/syssam/flatgraph/schema"
	"github.com/syssam/flatgraph/workspace"
)

// Name is the codec name.
const Name = "binary"

// Format is the snapshot format version written by Encode.
const Format = 1

func init() {
	dialect.Register(Codec{})
}

type snapshot struct {
	Format  int        `msgpack:"format"`
	File    string     `msgpack:"file,omitempty"`
	Records []*element `msgpack:"records"`
}

type element struct {
	Payload
	Type    string `msgpack:"type"`
	Comment string `msgpack:"comment,omitempty"`
	Note    bool   `msgpack:"note,omitempty"`
}

// Payload is the stored form of the values of one record.
type Payload struct {
	Values []string   `msgpack:"values,omitempty"`
	Rows   [][]string `msgpack:"rows,omitempty"`
}

// PayloadOf returns the payload of a record.
func PayloadOf(r *workspace.Record) Payload {
	return Payload{Values: r.Values, Rows: r.Rows}
}

// MarshalPayload encodes the values of a record.
func MarshalPayload(r *workspace.Record) ([]byte, error) {
	return msgpack.Marshal(PayloadOf(r))
}

// UnmarshalPayload decodes a payload written by MarshalPayload.
func UnmarshalPayload(data []byte) (Payload, error) {
	var p Payload
	if len(data) == 0 {
		return p, nil
	}
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("binary: payload: %w", err)
	}
	return p, nil
}

// Restore appends a record to ws. A note restores a comment-only record
// holding comment; otherwise the record is bound to the named type, or to
// the catch-all type when the registry does not know the name.
func Restore(ws *workspace.Workspace, typeName string, p Payload, comment string, note bool) (*workspace.Record, error) {
	if note {
		return ws.AddComment(comment), nil
	}
	reg := ws.Registry()
	r := &workspace.Record{RawType: typeName, Values: p.Values, Rows: p.Rows, Comment: comment}
	if t, ok := reg.LookupName(typeName); ok && !t.Synthetic() {
		r.Type, r.RawType = t, t.Name
	} else {
		r.Type = reg.CatchAll()
	}
	if err := ws.Add(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Codec encodes workspaces as msgpack snapshots.
type Codec struct{}

// Name implements dialect.Codec.
func (Codec) Name() string { return Name }

// Encode implements dialect.Codec.
func (Codec) Encode(w io.Writer, ws *workspace.Workspace) error {
	s := snapshot{Format: Format, File: string(ws.FileType())}
	for _, r := range ws.Records() {
		e := &element{Type: r.TypeName(), Comment: r.Comment, Note: r.IsComment()}
		if !e.Note {
			e.Payload = PayloadOf(r)
		}
		s.Records = append(s.Records, e)
	}
	if err := msgpack.NewEncoder(w).Encode(&s); err != nil {
		return fmt.Errorf("binary: encode: %w", err)
	}
	return nil
}

// Decode implements dialect.Codec.
func (Codec) Decode(r io.Reader, reg *registry.Registry) (*workspace.Workspace, error) {
	var s snapshot
	if err := msgpack.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("binary: decode: %w", err)
	}
	if s.Format != Format {
		return nil, fmt.Errorf("binary: unsupported format %d", s.Format)
	}
	ft := schema.FileType(s.File)
	if ft == "" {
		ft = schema.FileAll
	}
	ws := workspace.New(reg, workspace.WithFileType(ft))
	for i, e := range s.Records {
		if _, err := Restore(ws, e.Type, e.Payload, e.Comment, e.Note); err != nil {
			return nil, fmt.Errorf("binary: record %d: %w", i, err)
		}
	}
	return ws, nil
}

// Marshal returns the snapshot of ws.
func Marshal(ws *workspace.Workspace) ([]byte, error) {
	var buf bytes.Buffer
	if err := (Codec{}).Encode(&buf, ws); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal restores a snapshot.
func Unmarshal(data []byte, reg *registry.Registry) (*workspace.Workspace, error) {
	return Codec{}.Decode(bytes.NewReader(data), reg)
}
