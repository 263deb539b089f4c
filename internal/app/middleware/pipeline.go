package middleware

import (
	"context"
	"log/slog"

	"villabook/internal/app/commands"
	"villabook/internal/app/outbox"
	"villabook/internal/app/queries"
	"villabook/internal/app/uow"
)

type CommandMiddleware func(next commands.Bus) commands.Bus

type QueryMiddleware func(next queries.Bus) queries.Bus

// Pipeline assembles both buses in the order the handlers depend on:
//
//	validation -> authorization -> idempotency -> outbox flush -> transaction -> handler
//
// Idempotency sits outside the flush so a replayed key never republishes, and the
// flush sits outside the transaction so records leave only after commit.
type Pipeline struct {
	Validator   Validator
	Authorizer  Authorizer
	Idempotency IdempotencyStore
	Outbox      outbox.Outbox
	Units       uow.UoWFactory
	Logger      *slog.Logger
}

func (p Pipeline) Commands(base commands.Bus) commands.Bus {
	var mws []CommandMiddleware
	if p.Validator != nil {
		mws = append(mws, Validation(p.Validator))
	}
	if p.Authorizer != nil {
		mws = append(mws, Authorization(p.Authorizer))
	}
	if p.Idempotency != nil {
		mws = append(mws, Idempotency(p.Idempotency, nil))
	}
	if p.Outbox != nil {
		mws = append(mws, OutboxFlush(p.Outbox, p.Logger))
	}
	if p.Units != nil {
		mws = append(mws, Transaction(p.Units, nil))
	}
	return ChainCommands(base, mws...)
}

func (p Pipeline) Queries(base queries.Bus) queries.Bus {
	var mws []QueryMiddleware
	if p.Validator != nil {
		mws = append(mws, QueryValidation(p.Validator))
	}
	if p.Authorizer != nil {
		mws = append(mws, QueryAuthorization(p.Authorizer))
	}
	return ChainQueries(base, mws...)
}

// ChainCommands wraps base so the first middleware runs outermost.
func ChainCommands(base commands.Bus, mws ...CommandMiddleware) commands.Bus {
	return chain(base, mws)
}

func ChainQueries(base queries.Bus, mws ...QueryMiddleware) queries.Bus {
	return chain(base, mws)
}

func chain[B any, M ~func(B) B](base B, mws []M) B {
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}

type dispatchFunc func(ctx context.Context, cmd commands.Command) (any, error)

func (f dispatchFunc) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	return f(ctx, cmd)
}

type askFunc func(ctx context.Context, q queries.Query) (any, error)

func (f askFunc) Ask(ctx context.Context, q queries.Query) (any, error) {
	return f(ctx, q)
}
