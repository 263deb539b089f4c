package commands

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"villabook/internal/app/registry"
)

var (
	ErrHandlerNotFound = errors.New("commands: handler not found")
	ErrResultType      = errors.New("commands: result type mismatch")
	ErrNilBus          = errors.New("commands: nil bus")
)

// Command is a write request. Its key selects the handler.
type Command interface {
	Key() string
}

type Handler[C Command, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

// HandlerFunc lets a plain function serve as a Handler.
type HandlerFunc[C Command, R any] func(ctx context.Context, cmd C) (R, error)

func (f HandlerFunc[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	return f(ctx, cmd)
}

// Bus is what middleware wraps and HTTP handlers dispatch to.
type Bus interface {
	Dispatch(ctx context.Context, cmd Command) (any, error)
}

// InMemoryBus routes commands to handlers registered at startup.
type InMemoryBus struct {
	table *registry.Table[Command]
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{table: registry.New[Command]("commands")}
}

func (b *InMemoryBus) Dispatch(ctx context.Context, cmd Command) (any, error) {
	fn, ok := b.table.Lookup(cmd.Key())
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrHandlerNotFound, cmd.Key())
	}
	return fn(ctx, cmd)
}

// Keys lists every registered command key.
func (b *InMemoryBus) Keys() []string { return b.table.Keys() }

// RegisterHandler binds a typed handler to key. Registering a key twice panics.
func RegisterHandler[C Command, R any](bus *InMemoryBus, key string, handler Handler[C, R]) {
	if bus == nil {
		panic("commands: nil bus")
	}
	bus.table.Add(key, registry.Typed[Command](key, handler.Handle))
}

// Dispatch sends cmd through bus and asserts the handler's result type.
func Dispatch[C Command, R any](ctx context.Context, bus Bus, cmd C) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Dispatch(ctx, cmd)
	if err != nil || res == nil {
		return zero, err
	}
	value, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("%w: %q returned %T, want %s", ErrResultType, cmd.Key(), res, reflect.TypeFor[R]())
	}
	return value, nil
}
