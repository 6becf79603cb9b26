package params

import (
	"context"
	"fmt"
	"time"

	"db-relay/internal/dialect"
)

// DefaultProbeTimeout bounds schema-only probes when the caller sets no deadline.
const DefaultProbeTimeout = 30 * time.Second

// ExtractParameters returns the distinct placeholder names in query, case-sensitive,
// in first-seen order.
func ExtractParameters(query string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range dialect.Placeholders(query) {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		out = append(out, p.Name)
	}
	return out
}

// ExtractSourceColumns asks the database for the result columns of query without
// returning any rows. Names are reported as the driver returns them.
func ExtractSourceColumns(ctx context.Context, conn dialect.Connector, databaseType, connStr, query string) ([]string, error) {
	a, err := dialect.Resolve(databaseType)
	if err != nil {
		return nil, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultProbeTimeout)
		defer cancel()
	}

	db, err := conn.Open(ctx, a.Dialect(), connStr)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	cols, err := a.ProbeColumns(ctx, db, query)
	if err != nil {
		return nil, fmt.Errorf("failed to extract source columns: %w", err)
	}
	return cols, nil
}
