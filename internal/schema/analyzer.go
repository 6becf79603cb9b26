package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"db-relay/internal/convert"
	"db-relay/internal/dialect"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultMaxRows = 100
)

// ErrColumnsUnavailable is returned by ListColumns for SQL Server.
var ErrColumnsUnavailable = dialect.ErrColumnsUnavailable

// Introspector reads catalogs and previews query results.
type Introspector struct {
	Connector dialect.Connector
	Timeout   time.Duration
}

func NewIntrospector(conn dialect.Connector) *Introspector {
	return &Introspector{Connector: conn, Timeout: DefaultTimeout}
}

func (in *Introspector) connector() dialect.Connector {
	if in.Connector == nil {
		return dialect.DriverConnector{}
	}
	return in.Connector
}

// open resolves the dialect before any I/O and applies the interactive timeout.
func (in *Introspector) open(ctx context.Context, databaseType, connStr string) (dialect.Adapter, *sql.DB, context.CancelFunc, error) {
	a, err := dialect.Resolve(databaseType)
	if err != nil {
		return nil, nil, nil, err
	}
	timeout := in.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	db, err := in.connector().Open(ctx, a.Dialect(), connStr)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return a, db, cancel, nil
}

func (in *Introspector) ListTables(ctx context.Context, databaseType, connStr string) ([]*Table, error) {
	a, db, cancel, err := in.open(ctx, databaseType, connStr)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer db.Close()
	return listTables(ctx, db, a)
}

func (in *Introspector) ListColumns(ctx context.Context, databaseType, connStr, table string) ([]*Column, error) {
	a, err := dialect.Resolve(databaseType)
	if err != nil {
		return nil, err
	}
	if _, _, err := a.ColumnsQuery(table); err != nil {
		return nil, err
	}
	_, db, cancel, err := in.open(ctx, databaseType, connStr)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer db.Close()
	return listColumns(ctx, db, a, table)
}

// Describe returns every table with its columns. SQL Server tables carry no columns.
func (in *Introspector) Describe(ctx context.Context, databaseType, connStr string) ([]*Table, error) {
	a, db, cancel, err := in.open(ctx, databaseType, connStr)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer db.Close()

	tables, err := listTables(ctx, db, a)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		cols, err := listColumns(ctx, db, a, t.QualifiedName())
		if errors.Is(err, ErrColumnsUnavailable) {
			return tables, nil
		}
		if err != nil {
			return nil, err
		}
		t.Columns = cols
	}
	return tables, nil
}

// PreviewRows runs query inside a transaction that is always rolled back and
// returns at most maxRows rows.
func (in *Introspector) PreviewRows(ctx context.Context, databaseType, connStr, query string, maxRows int) (*Preview, error) {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	a, db, cancel, err := in.open(ctx, databaseType, connStr)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin preview transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, a.PreviewQuery(query, maxRows))
	if err != nil {
		return nil, fmt.Errorf("failed to run preview query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read preview columns: %w", err)
	}
	types := columnTypeNames(rows, len(cols))

	p := &Preview{Columns: cols, Rows: [][]any{}}
	for len(p.Rows) < maxRows && rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan preview row: %w", err)
		}
		for i := range vals {
			vals[i] = convert.Normalize(vals[i], types[i], a.Dialect())
		}
		p.Rows = append(p.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating preview rows: %w", err)
	}
	p.RowCount = len(p.Rows)
	return p, nil
}

func listTables(ctx context.Context, db *sql.DB, a dialect.Adapter) ([]*Table, error) {
	rows, err := db.QueryContext(ctx, a.TablesQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []*Table
	for rows.Next() {
		var schemaName, name sql.NullString
		if err := rows.Scan(&schemaName, &name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		if !name.Valid {
			continue
		}
		tables = append(tables, &Table{Schema: schemaName.String, Name: name.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return tables, nil
}

func listColumns(ctx context.Context, db *sql.DB, a dialect.Adapter, table string) ([]*Column, error) {
	query, args, err := a.ColumnsQuery(table)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns (table: %s): %w", table, err)
	}
	defer rows.Close()

	var cols []*Column
	for rows.Next() {
		var name, dataType sql.NullString
		var nullable, isPK any
		var maxLen, precision, scale sql.NullInt64
		if err := rows.Scan(&name, &dataType, &nullable, &isPK, &maxLen, &precision, &scale); err != nil {
			return nil, fmt.Errorf("failed to scan column (table: %s): %w", table, err)
		}
		if !name.Valid {
			continue
		}
		cols = append(cols, &Column{
			Name:         name.String,
			DataType:     dataType.String,
			Nullable:     flag(nullable),
			IsPrimaryKey: flag(isPK),
			MaxLength:    maxLen.Int64,
			Precision:    precision.Int64,
			Scale:        scale.Int64,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	return cols, nil
}

// flag normalises catalog flags that arrive as bool, integer or 'YES'/'NO' text.
func flag(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case int32:
		return x != 0
	case int:
		return x != 0
	case []byte:
		return textFlag(string(x))
	case string:
		return textFlag(x)
	}
	return false
}

func textFlag(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES", "Y", "TRUE", "T":
		return true
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return err == nil && n != 0
}

func columnTypeNames(rows *sql.Rows, n int) []string {
	names := make([]string, n)
	types, err := rows.ColumnTypes()
	if err != nil {
		return names
	}
	for i, ct := range types {
		if i < n {
			names[i] = ct.DatabaseTypeName()
		}
	}
	return names
}
