package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/lib/pq"
)

type PostgresAdapter struct{}

func (a *PostgresAdapter) Dialect() Dialect   { return Postgres }
func (a *PostgresAdapter) DriverName() string { return "postgres" }

func (a *PostgresAdapter) Open(ctx context.Context, connStr string) (*sql.DB, error) {
	return openDB(ctx, a.DriverName(), connStr)
}

// Bind numbers each distinct name once; repeated names reuse their $n.
func (a *PostgresAdapter) Bind(query string) Binding {
	index := make(map[string]int)
	var names []string
	out := rewritePlaceholders(query, func(p Placeholder) string {
		n, ok := index[p.Name]
		if !ok {
			names = append(names, p.Name)
			n = len(names)
			index[p.Name] = n
		}
		return "$" + strconv.Itoa(n)
	})
	return Binding{SQL: out, Names: names}
}

func (a *PostgresAdapter) ProbeColumns(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	probe := fmt.Sprintf("SELECT * FROM %s AS %s LIMIT 0", nest(query), pq.QuoteIdentifier("probe_"))
	return probeInTx(ctx, db, probe, nil)
}

func (a *PostgresAdapter) TablesQuery() string {
	return `SELECT table_schema, table_name FROM information_schema.tables WHERE table_type = 'BASE TABLE' AND table_schema NOT IN ('pg_catalog', 'information_schema') ORDER BY table_schema, table_name`
}

func (a *PostgresAdapter) ColumnsQuery(table string) (string, []any, error) {
	schema, name := splitTable(table)
	if schema == "" {
		schema = "public"
	}
	return `SELECT
    c.column_name,
    c.data_type,
    c.is_nullable = 'YES' AS nullable,
    EXISTS (SELECT 1 FROM information_schema.table_constraints tc
        JOIN information_schema.key_column_usage kcu
            ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
        WHERE tc.constraint_type = 'PRIMARY KEY'
        AND kcu.table_schema = c.table_schema AND kcu.table_name = c.table_name AND kcu.column_name = c.column_name) AS is_pk,
    c.character_maximum_length,
    c.numeric_precision,
    c.numeric_scale
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`, []any{schema, name}, nil
}

func (a *PostgresAdapter) PreviewQuery(query string, maxRows int) string {
	if !isSelect(query) || maxRows <= 0 {
		return query
	}
	return fmt.Sprintf("SELECT * FROM %s AS %s LIMIT %d", nest(query), pq.QuoteIdentifier("preview_"), maxRows)
}
