// Package registry maps message keys to handlers for the command and query buses.
package registry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
)

var ErrMessageType = errors.New("registry: message type does not match handler")

// Func handles one message of the bus message type M.
type Func[M any] func(ctx context.Context, msg M) (any, error)

// Table is filled while wiring and only read afterwards, so lookups take no lock.
type Table[M any] struct {
	kind     string
	handlers map[string]Func[M]
}

// New returns an empty table; kind prefixes wiring panics, e.g. "commands".
func New[M any](kind string) *Table[M] {
	return &Table[M]{kind: kind, handlers: make(map[string]Func[M])}
}

// Add binds fn to key. An empty key, a nil handler or a second handler for the
// same key is a wiring mistake and panics.
func (t *Table[M]) Add(key string, fn Func[M]) {
	switch {
	case key == "":
		panic(fmt.Sprintf("%s: empty key registration", t.kind))
	case fn == nil:
		panic(fmt.Sprintf("%s: nil handler for %q", t.kind, key))
	}
	if _, dup := t.handlers[key]; dup {
		panic(fmt.Sprintf("%s: handler for %q registered twice", t.kind, key))
	}
	t.handlers[key] = fn
}

func (t *Table[M]) Lookup(key string) (Func[M], bool) {
	fn, ok := t.handlers[key]
	return fn, ok
}

// Keys lists registered keys in sorted order.
func (t *Table[M]) Keys() []string {
	keys := make([]string, 0, len(t.handlers))
	for k := range t.handlers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Typed adapts a handler for the concrete message T to the bus message type M.
func Typed[M, T, R any](key string, handle func(ctx context.Context, msg T) (R, error)) Func[M] {
	return func(ctx context.Context, msg M) (any, error) {
		typed, ok := any(msg).(T)
		if !ok {
			return nil, fmt.Errorf("%w: %q expects %s, got %T", ErrMessageType, key, reflect.TypeFor[T](), msg)
		}
		return handle(ctx, typed)
	}
}
