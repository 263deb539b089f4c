package middleware

import (
	"context"
	"log/slog"

	"villabook/internal/app/commands"
	"villabook/internal/app/outbox"
)

// OutboxFlush publishes queued records once the command's units have committed.
// A failed command normally leaves nothing to publish, but a self-managed command
// may have committed compensation units before failing, so those are flushed too.
// Flush errors are logged and not returned: the command's writes are already durable
// and the records stay queued for the next flush.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(next commands.Bus) commands.Bus {
		return dispatchFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil && !managesUnits(cmd) {
				return nil, err
			}
			if ferr := box.Flush(ctx); ferr != nil {
				logger.Warn("outbox flush failed", "command", cmd.Key(), "err", ferr)
			}
			return res, err
		})
	}
}

func managesUnits(cmd commands.Command) bool {
	sm, ok := cmd.(SelfManagedCommand)
	return ok && sm.ManagesUnits()
}
