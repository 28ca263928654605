package dialect

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/syssam/flatgraph/registry"
	"github.com/syssam/flatgraph/workspace"
)

// SQL dialect names.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the Exec and Query methods. args must be a []any;
// Exec takes a nil or *sql.Result destination and Query a rows destination.
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is a database connection.
type Driver interface {
	ExecQuerier
	Tx(ctx context.Context) (Tx, error)
	Close() error
	Dialect() string
}

// Tx is a transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// Codec encodes workspaces to a byte stream and decodes them back.
type Codec interface {
	Name() string
	Encode(w io.Writer, ws *workspace.Workspace) error
	Decode(r io.Reader, reg *registry.Registry) (*workspace.Workspace, error)
}

var codecs sync.Map

// Register makes a codec available by name. Registering a name twice
// panics.
func Register(c Codec) {
	if _, dup := codecs.LoadOrStore(c.Name(), c); dup {
		panic(fmt.Sprintf("dialect: codec %q registered twice", c.Name()))
	}
}

// Lookup returns the codec registered under name.
func Lookup(name string) (Codec, bool) {
	c, ok := codecs.Load(name)
	if !ok {
		return nil, false
	}
	return c.(Codec), true
}

// Codecs returns the names of the registered codecs, sorted.
func Codecs() []string {
	var names []string
	codecs.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	slices.Sort(names)
	return names
}
