// Package schema provides the narrow contract tanuki uses to talk to
// the databases it indexes: connect, snapshot the structure, sample a
// few rows. Concrete drivers exist for MySQL, PostgreSQL and MongoDB;
// everything above this package consumes the Source interface only.
package schema

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrConnection indicates the schema source is unreachable.
	ErrConnection = errors.New("schema source connection failed")

	// ErrSchema indicates the snapshot is malformed or empty where a
	// table was expected.
	ErrSchema = errors.New("invalid schema snapshot")

	// ErrUnsupportedKind indicates no driver exists for the requested
	// source kind.
	ErrUnsupportedKind = errors.New("unsupported data source kind")
)

// Key role constants for Column.Key. Drivers normalize their native
// key markers to these values.
const (
	KeyPrimary = "primary"
	KeyUnique  = "unique"
	KeyIndex   = "index"
)

// Column describes one column (or document field) of a table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Key      string // one of the Key* constants, or empty
	Comment  string
}

// Table describes one table or collection. Columns are in the order
// the source declares them (ordinal position).
type Table struct {
	Name    string
	Comment string
	Columns []Column
}

// Snapshot is a point-in-time structural description of a source.
// Tables are ordered by name for deterministic iteration.
type Snapshot struct {
	Tables []Table
}

// Table returns the named table, if present.
func (s *Snapshot) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// TableNames returns the snapshot's table names in order.
func (s *Snapshot) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// Row is one sampled record, keyed by column name.
type Row = map[string]any

// Source is the contract a schema source driver fulfils. All methods
// block; callers impose deadlines through ctx.
type Source interface {
	// Connect establishes the underlying connection.
	Connect(ctx context.Context) error

	// Close releases the connection. Safe to call after a failed
	// Connect.
	Close(ctx context.Context) error

	// Snapshot returns the structural description of the source.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// SampleRows returns at most limit rows from the named table.
	// Row ordering is whatever the source returns first; callers
	// must not assume determinism across runs.
	SampleRows(ctx context.Context, table string, limit int) ([]Row, error)
}

// Open creates a driver for the given source kind. Connection
// parameters are the descriptor's opaque connection map; each driver
// documents the keys it reads.
func Open(kind string, params map[string]any) (Source, error) {
	switch strings.ToLower(kind) {
	case "mysql":
		return newMySQLSource(params), nil
	case "postgres", "postgresql":
		return newPostgresSource(params), nil
	case "mongodb":
		return newMongoSource(params), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
}

// identifierPattern matches the table names we are willing to
// interpolate into a sample query. Anything else is rejected rather
// than quoted.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// validIdentifier reports whether name is a plain SQL identifier.
// Table names reach SampleRows from the live snapshot, but the check
// keeps a hostile information_schema from smuggling SQL into the
// sample query.
func validIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// stringParam reads a string connection parameter with a fallback.
func stringParam(params map[string]any, key, fallback string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

// intParam reads an integer connection parameter with a fallback.
// YAML decodes numbers as int; strings are tolerated for env-var
// substituted values.
func intParam(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
