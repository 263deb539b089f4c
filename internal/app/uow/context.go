package uow

import (
	"context"
	"errors"
)

var ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")

type ctxKey struct{}

// ContextWithUnitOfWork stores the provided unit of work in context.
func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

// FromContext retrieves a unit of work from context if present.
func FromContext(ctx context.Context) (UnitOfWork, bool) {
	val := ctx.Value(ctxKey{})
	if val == nil {
		return nil, false
	}
	unit, ok := val.(UnitOfWork)
	return unit, ok
}

// Begin starts a unit and returns a context carrying it, with the store session
// injected when the unit supports it.
func Begin(ctx context.Context, factory UoWFactory, opts TxOptions) (UnitOfWork, context.Context, error) {
	if factory == nil {
		return nil, ctx, ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, ctx, err
	}
	execCtx := ctx
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		execCtx = injector.InjectContext(ctx)
	}
	return unit, ContextWithUnitOfWork(execCtx, unit), nil
}

// Run executes fn inside a fresh unit, committing on success and rolling back otherwise.
func Run(ctx context.Context, factory UoWFactory, fn func(ctx context.Context, unit UnitOfWork) error) error {
	unit, execCtx, err := Begin(ctx, factory, TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(execCtx, unit); err != nil {
		_ = unit.Rollback(execCtx)
		return err
	}
	return unit.Commit(execCtx)
}

// Acquire returns the unit already in ctx or begins a managed one. done must be called
// with the handler's final error; it commits or rolls back managed units only.
func Acquire(ctx context.Context, factory UoWFactory, opts TxOptions) (UnitOfWork, context.Context, func(error) error, error) {
	if unit, ok := FromContext(ctx); ok {
		return unit, ctx, func(err error) error { return err }, nil
	}
	unit, execCtx, err := Begin(ctx, factory, opts)
	if err != nil {
		return nil, ctx, nil, err
	}
	done := func(err error) error {
		if err != nil || opts.ReadOnly {
			_ = unit.Rollback(execCtx)
			return err
		}
		return unit.Commit(execCtx)
	}
	return unit, execCtx, done, nil
}
