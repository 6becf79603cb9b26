package convert

import (
	"reflect"
	"sync"

	"db-relay/internal/dialect"
)

// Func converts value to a registered target type.
type Func func(value any, src, dst dialect.Dialect) (any, error)

type pair struct {
	from, to reflect.Type
}

// Registry holds caller-registered conversions keyed by (source type, target type).
// It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	fns map[pair]Func
}

func NewRegistry() *Registry {
	return &Registry{fns: make(map[pair]Func)}
}

// Register installs fn for values of type from converted to type to, replacing any previous entry.
func (r *Registry) Register(from, to reflect.Type, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[pair{from, to}] = fn
}

func (r *Registry) Lookup(from, to reflect.Type) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[pair{from, to}]
	return fn, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fns)
}
