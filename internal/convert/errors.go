package convert

import (
	"errors"
	"fmt"
	"reflect"

	"db-relay/internal/dialect"
)

var errNoPath = errors.New("no conversion path")

// ConversionError reports a value that could not be converted for binding.
type ConversionError struct {
	Value      any
	SourceType reflect.Type
	TargetType reflect.Type
	Source     dialect.Dialect
	Target     dialect.Dialect
	Err        error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %v (%v) to %v [%s -> %s]: %v",
		e.Value, e.SourceType, e.TargetType, e.Source, e.Target, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }
