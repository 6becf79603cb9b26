package dialect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

type MysqlAdapter struct{}

func (a *MysqlAdapter) Dialect() Dialect   { return MySQL }
func (a *MysqlAdapter) DriverName() string { return "mysql" }

// Open forces parseTime so DATETIME columns scan as time.Time.
func (a *MysqlAdapter) Open(ctx context.Context, connStr string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return openDB(ctx, a.DriverName(), cfg.FormatDSN())
}

// Bind emits one ? per occurrence.
func (a *MysqlAdapter) Bind(query string) Binding {
	var names []string
	out := rewritePlaceholders(query, func(p Placeholder) string {
		names = append(names, p.Name)
		return "?"
	})
	return Binding{SQL: out, Names: names}
}

// errDupFieldName is ER_DUP_FIELDNAME: a derived table selecting the same column name twice.
const errDupFieldName = 1060

// ProbeColumns wraps query in a LIMIT 0 derived table. Joins that repeat a column
// name cannot be wrapped, so those are run as written inside the same rolled-back
// transaction and only their column list is read.
func (a *MysqlAdapter) ProbeColumns(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	wrapped := fmt.Sprintf("SELECT * FROM %s AS probe_ LIMIT 0", nest(query))
	return probeInTx(ctx, db, wrapped, func(err error) (string, bool) {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == errDupFieldName {
			return stripTerminator(query), true
		}
		return "", false
	})
}

func (a *MysqlAdapter) TablesQuery() string {
	return `SELECT TABLE_SCHEMA, TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
}

func (a *MysqlAdapter) ColumnsQuery(table string) (string, []any, error) {
	const cols = `SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, IF(COLUMN_KEY = 'PRI', 1, 0) AS IS_PK, CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, NUMERIC_SCALE FROM information_schema.COLUMNS`
	schema, name := splitTable(table)
	if schema == "" {
		return cols + ` WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`, []any{name}, nil
	}
	return cols + ` WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`, []any{schema, name}, nil
}

// PreviewQuery leaves the query as written. A derived table would reject joins
// that repeat a column name; the caller stops reading at maxRows.
func (a *MysqlAdapter) PreviewQuery(query string, maxRows int) string {
	return query
}
