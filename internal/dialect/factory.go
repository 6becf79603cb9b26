package dialect

import (
	"context"
	"database/sql"
	"fmt"
)

// Lookup returns the adapter for d.
func Lookup(d Dialect) (Adapter, error) {
	switch d {
	case Postgres:
		return &PostgresAdapter{}, nil
	case MySQL:
		return &MysqlAdapter{}, nil
	case SQLServer:
		return &MSSQLAdapter{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDialect, d)
	}
}

// Resolve parses a database type tag and returns its adapter.
func Resolve(databaseType string) (Adapter, error) {
	d, err := Parse(databaseType)
	if err != nil {
		return nil, err
	}
	return Lookup(d)
}

// Connector opens database handles. Tests substitute it to avoid real drivers.
type Connector interface {
	Open(ctx context.Context, d Dialect, connStr string) (*sql.DB, error)
}

// DriverConnector opens real connections through the dialect's adapter.
type DriverConnector struct{}

func (DriverConnector) Open(ctx context.Context, d Dialect, connStr string) (*sql.DB, error) {
	a, err := Lookup(d)
	if err != nil {
		return nil, err
	}
	return a.Open(ctx, connStr)
}

// Ensure interface implementation
var _ Adapter = (*PostgresAdapter)(nil)
var _ Adapter = (*MysqlAdapter)(nil)
var _ Adapter = (*MSSQLAdapter)(nil)
var _ Connector = DriverConnector{}
