package queries

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"villabook/internal/app/registry"
)

var (
	ErrHandlerNotFound = errors.New("queries: handler not found")
	ErrResultType      = errors.New("queries: result type mismatch")
	ErrNilBus          = errors.New("queries: nil bus")
)

// Query is a read request.
type Query interface {
	Key() string
}

type Handler[Q Query, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}

type HandlerFunc[Q Query, R any] func(ctx context.Context, query Q) (R, error)

func (f HandlerFunc[Q, R]) Handle(ctx context.Context, query Q) (R, error) {
	return f(ctx, query)
}

type Bus interface {
	Ask(ctx context.Context, query Query) (any, error)
}

type InMemoryBus struct {
	table *registry.Table[Query]
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{table: registry.New[Query]("queries")}
}

func (b *InMemoryBus) Ask(ctx context.Context, query Query) (any, error) {
	fn, ok := b.table.Lookup(query.Key())
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrHandlerNotFound, query.Key())
	}
	return fn(ctx, query)
}

func (b *InMemoryBus) Keys() []string { return b.table.Keys() }

// RegisterHandler binds a typed handler to key. Registering a key twice panics.
func RegisterHandler[Q Query, R any](bus *InMemoryBus, key string, handler Handler[Q, R]) {
	if bus == nil {
		panic("queries: nil bus")
	}
	bus.table.Add(key, registry.Typed[Query](key, handler.Handle))
}

// Ask runs query through bus and asserts the handler's result type.
func Ask[Q Query, R any](ctx context.Context, bus Bus, query Q) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Ask(ctx, query)
	if err != nil || res == nil {
		return zero, err
	}
	value, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("%w: %q returned %T, want %s", ErrResultType, query.Key(), res, reflect.TypeFor[R]())
	}
	return value, nil
}
