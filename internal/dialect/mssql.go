package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

type MSSQLAdapter struct{}

func (a *MSSQLAdapter) Dialect() Dialect   { return SQLServer }
func (a *MSSQLAdapter) DriverName() string { return "sqlserver" }

func (a *MSSQLAdapter) Open(ctx context.Context, connStr string) (*sql.DB, error) {
	return openDB(ctx, a.DriverName(), connStr)
}

// Bind keeps @name, rewrites :name to @name, and passes arguments as sql.Named.
func (a *MSSQLAdapter) Bind(query string) Binding {
	seen := make(map[string]bool)
	var names []string
	out := rewritePlaceholders(query, func(p Placeholder) string {
		if !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
		return "@" + p.Name
	})
	return Binding{SQL: out, Names: names, Named: true}
}

// ProbeColumns asks the server for the first result set's shape without executing the query.
func (a *MSSQLAdapter) ProbeColumns(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sys.dm_exec_describe_first_result_set(@tsql, NULL, 0) WHERE is_hidden = 0 ORDER BY column_ordinal`,
		sql.Named("tsql", query))
	if err != nil {
		return nil, fmt.Errorf("failed to probe query: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan probe column: %w", err)
		}
		cols = append(cols, name.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating probe columns: %w", err)
	}
	return cols, nil
}

func (a *MSSQLAdapter) TablesQuery() string {
	return `SELECT TABLE_SCHEMA, TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_SCHEMA, TABLE_NAME`
}

// ColumnsQuery is not offered for SQL Server; tables are listed without column detail.
func (a *MSSQLAdapter) ColumnsQuery(table string) (string, []any, error) {
	return "", nil, ErrColumnsUnavailable
}

var selectHead = regexp.MustCompile(`(?i)^\s*SELECT(\s+DISTINCT)?\s`)

// PreviewQuery injects TOP into a leading SELECT unless one is present or the
// query pages with OFFSET, which SQL Server does not allow together with TOP.
func (a *MSSQLAdapter) PreviewQuery(query string, maxRows int) string {
	if maxRows <= 0 || topClause.MatchString(query) || offsetClause.MatchString(query) {
		return query
	}
	loc := selectHead.FindStringIndex(query)
	if loc == nil {
		return query
	}
	return query[:loc[1]] + fmt.Sprintf("TOP %d ", maxRows) + query[loc[1]:]
}

var (
	topClause    = regexp.MustCompile(`(?i)^\s*SELECT(\s+DISTINCT)?\s+TOP\b`)
	offsetClause = regexp.MustCompile(`(?i)\bOFFSET\s+\S+\s+ROWS?\b`)
)
