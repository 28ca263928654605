// Package dialect holds the encodings of flat record stores.
//
// A Codec turns a workspace into bytes and back. Codecs register
// themselves by name, so front ends pick them from configuration:
//
//	codec, ok := dialect.Lookup("text")
//	ws, err := codec.Decode(r, reg)
//
// # Codecs
//
//   - dialect/text: the line-oriented flat text format
//   - dialect/binary: a msgpack snapshot of a workspace
//
// # SQL persistence
//
// dialect/sql persists workspaces in a relational database. The package
// defines the driver interfaces it is written against and the names of the
// supported SQL dialects:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
package dialect
