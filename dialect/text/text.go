// Package text implements the line-oriented flat text encoding.
//
// A record is its type name followed by comma separated values and a
// terminating semicolon. Lines starting with "!" are comments and decode
// to comment-only records; "!-" notes after a value are ignored. Numeric
// sentinels are kept as literal tokens.
//
//	! Facility meters
//	Meter,
//	    NaturalGas:Facility,     !- Key Name
//	    Hourly;                  !- Reporting Frequency
package text

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/syssam/flatgraph"
	"github.com/syssam/flatgraph/dialect"
	"github.com/syssam/flatgraph/registry"
	"github.com/syssam/flatgraph/schema"
	"github.com/syssam/flatgraph/schema/field"
	"github.com/syssam/flatgraph/workspace"
)

// Name is the codec name.
const Name = "text"

func init() {
	dialect.Register(New(Pretty()))
}

// Codec encodes workspaces as flat text.
type Codec struct {
	pretty bool
	file   schema.FileType
	logger *slog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// Pretty writes one value per line with field name notes.
func Pretty() Option {
	return func(c *Codec) {
		c.pretty = true
	}
}

// WithFileType sets the file type of decoded workspaces.
func WithFileType(ft schema.FileType) Option {
	return func(c *Codec) {
		c.file = ft
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Codec) {
		c.logger = l
	}
}

// New returns a text codec. By default records are written compactly,
// one per line.
func New(opts ...Option) *Codec {
	c := &Codec{file: schema.FileAll, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements dialect.Codec.
func (*Codec) Name() string { return Name }

// Encode writes the records of ws in order. Fields follow the declaration
// order of their record type and only the stored rows are written.
func (c *Codec) Encode(w io.Writer, ws *workspace.Workspace) error {
	bw := bufio.NewWriter(w)
	for i, r := range ws.Records() {
		if c.pretty && i > 0 && !r.IsComment() {
			bw.WriteString("\n")
		}
		if err := c.encode(bw, r); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (c *Codec) encode(w *bufio.Writer, r *workspace.Record) error {
	if r.IsComment() {
		for _, line := range strings.Split(r.Comment, "\n") {
			fmt.Fprintf(w, "!%s\n", line)
		}
		return nil
	}
	values := r.Flat()
	if err := check(r, values); err != nil {
		return err
	}
	if r.Comment != "" {
		for _, line := range strings.Split(r.Comment, "\n") {
			fmt.Fprintf(w, "!%s\n", line)
		}
	}
	if !c.pretty {
		fmt.Fprintf(w, "%s;\n", strings.Join(append([]string{r.TypeName()}, values...), ","))
		return nil
	}
	if len(values) == 0 {
		fmt.Fprintf(w, "%s;\n", r.TypeName())
		return nil
	}
	fmt.Fprintf(w, "%s,\n", r.TypeName())
	notes := notes(r)
	for i, v := range values {
		end := ","
		if i == len(values)-1 {
			end = ";"
		}
		cell := "    " + v + end
		if notes[i] == "" {
			fmt.Fprintf(w, "%s\n", cell)
			continue
		}
		fmt.Fprintf(w, "%-29s!- %s\n", cell, notes[i])
	}
	return nil
}

// check rejects records whose type name or values would be split or cut
// when decoded again.
func check(r *workspace.Record, values []string) error {
	if err := field.CheckText(r.TypeName()); err != nil {
		verr := flatgraph.NewValidationError(r.TypeName(), r.Name(), "", "type name cannot be encoded")
		verr.Cause = err
		return verr
	}
	notes := notes(r)
	for i, v := range values {
		if err := field.CheckText(v); err != nil {
			verr := flatgraph.NewValidationError(r.TypeName(), r.Name(), notes[i], "value cannot be encoded")
			verr.Value = v
			verr.Cause = err
			return verr
		}
	}
	return nil
}

// notes returns the field name note of every flat position of r.
func notes(r *workspace.Record) []string {
	notes := make([]string, len(r.Flat()))
	if r.Opaque() {
		return notes
	}
	for i, fd := range r.Type.Fields {
		if i < len(notes) {
			notes[i] = fd.Name
		}
	}
	if g := r.Type.Extensible; g != nil {
		for row := range r.Rows {
			for pos, fd := range g.Fields {
				if i := len(r.Type.Fields) + row*len(g.Fields) + pos; i < len(notes) {
					notes[i] = fmt.Sprintf("%s %d", fd.Name, row+1)
				}
			}
		}
	}
	return notes
}

// Decode parses flat text into a workspace. Records of unknown types are
// kept as catch-all records. Records that do not fit their type are
// logged and dropped.
func (c *Codec) Decode(r io.Reader, reg *registry.Registry) (*workspace.Workspace, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("text: read: %w", err)
	}
	ast, err := parse("", src)
	if err != nil {
		return nil, fmt.Errorf("text: %w", err)
	}
	ws := workspace.New(reg, workspace.WithFileType(c.file), workspace.WithLogger(c.logger))
	for _, e := range ast.Entries {
		if e.Comment != nil {
			ws.AddComment(strings.TrimRight(strings.TrimPrefix(*e.Comment, "!"), "\r"))
			continue
		}
		values, err := e.Record.values()
		if err != nil {
			return nil, fmt.Errorf("text: %w", err)
		}
		typeName := strings.TrimSpace(e.Record.Type)
		if _, ok := reg.LookupName(typeName); !ok {
			c.logger.Info("unknown record type", "type", typeName, "pos", e.Record.Pos.String())
		}
		if _, err := ws.AddValues(typeName, values); err != nil {
			c.logger.Warn("record dropped", "type", typeName, "pos", e.Record.Pos.String(), "error", err)
		}
	}
	return ws, nil
}

// Marshal returns the compact encoding of ws.
func Marshal(ws *workspace.Workspace) ([]byte, error) {
	var buf bytes.Buffer
	if err := New().Encode(&buf, ws); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes flat text.
func Unmarshal(data []byte, reg *registry.Registry) (*workspace.Workspace, error) {
	return New().Decode(bytes.NewReader(data), reg)
}
