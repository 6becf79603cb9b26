package convert

import (
	"strings"

	"db-relay/internal/dialect"

	"github.com/google/uuid"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/shopspring/decimal"
)

// Normalize turns a driver's raw scan value into a typed Go value using the
// column's database type name. Unknown shapes are returned unchanged.
func Normalize(value any, dbType string, src dialect.Dialect) any {
	b, ok := value.([]byte)
	if !ok {
		return value
	}
	t := strings.ToUpper(dbType)
	switch t {
	case "UNIQUEIDENTIFIER":
		if len(b) == 16 {
			var u mssql.UniqueIdentifier
			if err := u.Scan(b); err == nil {
				return uuid.UUID(u)
			}
		}
	case "UUID":
		if u, err := uuid.ParseBytes(b); err == nil {
			return u
		}
	case "DECIMAL", "NUMERIC", "NEWDECIMAL", "MONEY", "SMALLMONEY":
		if d, err := decimal.NewFromString(string(b)); err == nil {
			return d
		}
	case "BYTEA", "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY", "IMAGE", "GEOMETRY", "BIT":
		return b
	case "":
		if src == dialect.MySQL {
			return string(b)
		}
		return b
	}
	return string(b)
}
