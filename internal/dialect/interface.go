package dialect

import (
	"context"
	"database/sql"
)

// Adapter abstracts engine-specific connection, binding and catalog behavior.
type Adapter interface {
	Dialect() Dialect
	DriverName() string

	// Open returns a pinged handle limited to a single connection.
	Open(ctx context.Context, connStr string) (*sql.DB, error)

	// Bind rewrites @name / :name placeholders into the driver's syntax.
	Bind(query string) Binding

	// Schema-only probe of a query's result columns.
	ProbeColumns(ctx context.Context, db *sql.DB, query string) ([]string, error)

	// Catalog queries. TablesQuery selects (schema, name).
	TablesQuery() string
	// ColumnsQuery selects (name, data_type, nullable, is_pk, max_length, precision, scale).
	ColumnsQuery(table string) (string, []any, error)

	PreviewQuery(query string, maxRows int) string
}

// Binding is a query rewritten for one driver plus the parameter name behind each argument.
type Binding struct {
	SQL   string
	Names []string
	Named bool // arguments are passed as sql.Named
}

// Args builds the argument list for one row. Missing names bind nil.
func (b Binding) Args(values map[string]any) []any {
	args := make([]any, len(b.Names))
	for i, name := range b.Names {
		v := values[name]
		if b.Named {
			args[i] = sql.Named(name, v)
		} else {
			args[i] = v
		}
	}
	return args
}
