package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// rewritePlaceholders replaces every placeholder token with the text returned by fn.
func rewritePlaceholders(query string, fn func(p Placeholder) string) string {
	found := Placeholders(query)
	if len(found) == 0 {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	last := 0
	for _, p := range found {
		b.WriteString(query[last:p.Start])
		b.WriteString(fn(p))
		last = p.End
	}
	b.WriteString(query[last:])
	return b.String()
}

// nest wraps query as a derived table body. The query sits on its own lines so a
// trailing line comment cannot swallow the closing parenthesis.
func nest(query string) string {
	return "(\n" + stripTerminator(query) + "\n)"
}

// stripTerminator drops trailing whitespace and semicolons so a query can be nested.
func stripTerminator(query string) string {
	return strings.TrimRight(strings.TrimSpace(query), "; \t\r\n")
}

func isSelect(query string) bool {
	head := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(head, "SELECT")
}

// openDB opens driver/dsn with a single-connection pool and pings it.
func openDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	return db, nil
}

// retryFunc inspects a failed probe and may return a second statement to try
// in the same transaction.
type retryFunc func(err error) (string, bool)

// probeInTx runs a zero-row wrapper of query inside a transaction that is always rolled back.
func probeInTx(ctx context.Context, db *sql.DB, probe string, retry retryFunc) ([]string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin probe transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, probe)
	if err != nil && retry != nil {
		if next, ok := retry(err); ok {
			rows, err = tx.QueryContext(ctx, next)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to probe query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read probe columns: %w", err)
	}
	return cols, nil
}

// splitTable splits "schema.table" into its parts. Quoting characters are trimmed.
func splitTable(table string) (schema, name string) {
	trim := func(s string) string { return strings.Trim(strings.TrimSpace(s), "`\"[]") }
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		return trim(table[:i]), trim(table[i+1:])
	}
	return "", trim(table)
}
