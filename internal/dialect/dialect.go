package dialect

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedDialect is returned when a database type does not resolve to an adapter.
var ErrUnsupportedDialect = errors.New("unsupported dialect")

// ErrColumnsUnavailable is returned by adapters that do not expose column catalogs.
var ErrColumnsUnavailable = errors.New("column introspection is not available for this dialect")

// Dialect is one of the supported relational engines.
type Dialect int

const (
	Postgres Dialect = iota + 1
	MySQL
	SQLServer
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgresql"
	case MySQL:
		return "mysql"
	case SQLServer:
		return "sqlserver"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// Valid reports whether d is one of the supported engines.
func (d Dialect) Valid() bool {
	return d == Postgres || d == MySQL || d == SQLServer
}

// Parse resolves a database type tag, case-insensitively.
func Parse(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgresql", "postgres", "pg":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "sqlserver", "mssql":
		return SQLServer, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedDialect, s)
	}
}

// MarshalText renders the canonical tag.
func (d Dialect) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDialect, int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText parses a tag with Parse.
func (d *Dialect) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
