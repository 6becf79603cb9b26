package convert

import (
	"database/sql/driver"
	"encoding"
	"fmt"
	"reflect"

	"db-relay/internal/dialect"
)

// Engine converts source values into values the target driver can bind.
type Engine struct {
	reg *Registry
}

// New returns an engine consulting reg for overrides. A nil reg gets an empty registry.
func New(reg *Registry) *Engine {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Engine{reg: reg}
}

func (e *Engine) Registry() *Registry { return e.reg }

// Coerce converts value using its own runtime type as the target. Without an
// override this is identity for every non-null value.
func (e *Engine) Coerce(value any, src, dst dialect.Dialect) (any, error) {
	if IsNull(value) {
		return nil, nil
	}
	return e.Convert(value, reflect.TypeOf(value), src, dst)
}

// Convert converts value to target. Null values return nil. Overrides win
// over identity, target heuristics and the generic fallback.
func (e *Engine) Convert(value any, target reflect.Type, src, dst dialect.Dialect) (out any, err error) {
	if IsNull(value) {
		return nil, nil
	}
	from := reflect.TypeOf(value)
	fail := func(cause error) error {
		return &ConversionError{Value: value, SourceType: from, TargetType: target, Source: src, Target: dst, Err: cause}
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fail(fmt.Errorf("panic: %v", r))
		}
	}()

	if target == nil {
		return nil, fail(fmt.Errorf("nil target type"))
	}

	if fn, ok := e.reg.Lookup(from, target); ok {
		v, err := fn(value, src, dst)
		if err != nil {
			return nil, fail(err)
		}
		return v, nil
	}

	if from == target {
		return value, nil
	}

	v, err := heuristic(value, target, src, dst)
	if err == nil {
		return v, nil
	}
	if err != errNoPath {
		return nil, fail(err)
	}

	v, err = generic(value, target, src, dst)
	if err != nil {
		return nil, fail(err)
	}
	return v, nil
}

// IsNull reports nil, typed nil pointers and Valuers that yield nil (invalid sql.Null*).
func IsNull(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return true
		}
	}
	if v, ok := value.(driver.Valuer); ok {
		dv, err := v.Value()
		return err == nil && dv == nil
	}
	return false
}

func generic(value any, target reflect.Type, src, dst dialect.Dialect) (any, error) {
	if v, ok := value.(driver.Valuer); ok {
		dv, err := v.Value()
		if err != nil {
			return nil, fmt.Errorf("valuer: %w", err)
		}
		if dv == nil {
			return nil, nil
		}
		if reflect.TypeOf(dv) == target {
			return dv, nil
		}
		if out, err := heuristic(dv, target, src, dst); err == nil {
			return out, nil
		}
		value = dv
	}

	rv := reflect.ValueOf(value)
	if rv.Type().ConvertibleTo(target) && rv.Kind() != reflect.String && target.Kind() != reflect.String {
		return rv.Convert(target).Interface(), nil
	}

	s := toString(value)
	if reflect.PointerTo(target).Implements(textUnmarshalerType) {
		ptr := reflect.New(target)
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return nil, fmt.Errorf("reparse %q: %w", s, err)
		}
		return ptr.Elem().Interface(), nil
	}
	out, err := heuristic(s, target, src, dst)
	if err == errNoPath {
		return nil, fmt.Errorf("unsupported target type %v", target)
	}
	return out, err
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
