package middleware

import (
	"context"

	"villabook/internal/app/commands"
	"villabook/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// SelfManagedCommand is implemented by commands whose handlers open their own units,
// typically because a step must not run inside a store transaction.
type SelfManagedCommand interface {
	commands.Command
	ManagesUnits() bool
}

func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return dispatchFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if managesUnits(cmd) {
				return next.Dispatch(ctx, cmd)
			}
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			unit, execCtx, err := uow.Begin(ctx, factory, opts)
			if err != nil {
				return nil, err
			}
			committed := false
			defer func() {
				if !committed {
					_ = unit.Rollback(execCtx)
				}
			}()

			res, err := next.Dispatch(execCtx, cmd)
			if err != nil {
				return nil, err
			}
			if err := unit.Commit(execCtx); err != nil {
				return nil, err
			}
			committed = true
			return res, nil
		})
	}
}
