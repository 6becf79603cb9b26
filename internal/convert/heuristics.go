package convert

import (
	"encoding/base64"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"db-relay/internal/dialect"

	"github.com/google/uuid"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/shopspring/decimal"
)

// TimeFormat is the layout used when a time is rendered as text. Times are
// rendered in UTC and parsed back as UTC.
const TimeFormat = "2006-01-02 15:04:05.000"

// timeLayouts are tried in order before the generic fallbacks.
var timeLayouts = []string{
	TimeFormat,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	time.RFC3339Nano,
}

var fallbackLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05-07",
	time.RFC1123Z,
	time.RFC1123,
	time.ANSIC,
	"15:04:05",
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	bytesType   = reflect.TypeOf([]byte(nil))

	truthThreshold = decimal.New(1, -4)
)

// heuristic dispatches on the target type. errNoPath means no typed path applies.
func heuristic(value any, target reflect.Type, src, dst dialect.Dialect) (any, error) {
	switch target {
	case timeType:
		return toTime(value)
	case decimalType:
		return toDecimal(value)
	case uuidType:
		return toUUID(value, src)
	case bytesType:
		return toBytes(value, dst)
	}

	switch target.Kind() {
	case reflect.String:
		return reflect.ValueOf(toString(value)).Convert(target).Interface(), nil
	case reflect.Bool:
		b, err := toBool(value)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(b).Convert(target).Interface(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		out := reflect.New(target).Elem()
		if out.OverflowInt(n) {
			return nil, fmt.Errorf("%d overflows %v", n, target)
		}
		out.SetInt(n)
		return out.Interface(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		out := reflect.New(target).Elem()
		if n < 0 || out.OverflowUint(uint64(n)) {
			return nil, fmt.Errorf("%d overflows %v", n, target)
		}
		out.SetUint(uint64(n))
		return out.Interface(), nil
	case reflect.Float32, reflect.Float64:
		f, err := toFloat64(value)
		if err != nil {
			return nil, err
		}
		out := reflect.New(target).Elem()
		if out.OverflowFloat(f) {
			return nil, fmt.Errorf("%g overflows %v", f, target)
		}
		out.SetFloat(f)
		return out.Interface(), nil
	}
	return nil, errNoPath
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(TimeFormat)
	case *time.Time:
		return v.UTC().Format(TimeFormat)
	case decimal.Decimal:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case mssql.UniqueIdentifier:
		return uuid.UUID(v).String()
	default:
		return fmt.Sprint(value)
	}
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return parseBool(v), nil
	case []byte:
		return parseBool(string(v)), nil
	case decimal.Decimal:
		return v.Abs().GreaterThan(truthThreshold), nil
	}
	if f, ok := numeric(value); ok {
		return math.Abs(f) > 0.0001, nil
	}
	return false, errNoPath
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true
	}
	return false
}

// numeric returns the float value of any Go numeric kind.
func numeric(value any) (float64, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return parseInt(v)
	case []byte:
		return parseInt(string(v))
	case decimal.Decimal:
		if !v.IsInteger() {
			return 0, fmt.Errorf("%s is not an integer", v)
		}
		return v.IntPart(), nil
	case time.Time:
		return v.Unix(), nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, fmt.Errorf("%g is not an integer", f)
		}
		return int64(f), nil
	}
	return 0, errNoPath
}

func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse %q as integer: %w", s, err)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return d.IntPart(), nil
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	case decimal.Decimal:
		return v.InexactFloat64(), nil
	case time.Time:
		return float64(v.UnixNano()) / float64(time.Second), nil
	}
	if f, ok := numeric(value); ok {
		return f, nil
	}
	return 0, errNoPath
}

func toDecimal(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case []byte:
		return decimal.NewFromString(strings.TrimSpace(string(v)))
	case bool:
		if v {
			return decimal.NewFromInt(1), nil
		}
		return decimal.Zero, nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return decimal.NewFromString(strconv.FormatUint(rv.Uint(), 10))
	}
	return nil, errNoPath
}

// toTime parses text through the layout list; numbers are Unix epoch seconds.
func toTime(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return ParseTime(v)
	case []byte:
		return ParseTime(string(v))
	case decimal.Decimal:
		sec := v.IntPart()
		nsec := v.Sub(decimal.NewFromInt(sec)).Shift(9).IntPart()
		return time.Unix(sec, nsec).UTC(), nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Unix(rv.Int(), 0).UTC(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return time.Unix(int64(rv.Uint()), 0).UTC(), nil
	case reflect.Float32, reflect.Float64:
		sec, frac := math.Modf(rv.Float())
		return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC(), nil
	}
	return nil, errNoPath
}

// ParseTime tries the ordered layout list, then the generic fallbacks.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

func toUUID(value any, src dialect.Dialect) (any, error) {
	switch v := value.(type) {
	case string:
		return uuid.Parse(strings.TrimSpace(v))
	case []byte:
		if len(v) == 16 {
			if src == dialect.SQLServer {
				var u mssql.UniqueIdentifier
				if err := u.Scan(v); err != nil {
					return nil, err
				}
				return uuid.UUID(u), nil
			}
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	case [16]byte:
		return uuid.UUID(v), nil
	case mssql.UniqueIdentifier:
		return uuid.UUID(v), nil
	}
	return nil, errNoPath
}

// toBytes accepts raw bytes, base64 text and 16-byte identifiers. Identifiers
// bound for SQL Server use its mixed-endian layout.
func toBytes(value any, dst dialect.Dialect) (any, error) {
	switch v := value.(type) {
	case []byte:
		return append([]byte(nil), v...), nil
	case string:
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
		return b, nil
	case uuid.UUID:
		if dst == dialect.SQLServer {
			return uniqueIdentifierBytes(mssql.UniqueIdentifier(v))
		}
		return append([]byte(nil), v[:]...), nil
	case mssql.UniqueIdentifier:
		return uniqueIdentifierBytes(v)
	case [16]byte:
		return append([]byte(nil), v[:]...), nil
	}
	return nil, errNoPath
}

func uniqueIdentifierBytes(u mssql.UniqueIdentifier) ([]byte, error) {
	v, err := u.Value()
	if err != nil {
		return nil, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected identifier value %T", v)
	}
	return b, nil
}
