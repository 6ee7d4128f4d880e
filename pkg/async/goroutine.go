package async

import (
	"context"
	"time"

	"github.com/conductorhq/conductor/pkg/observability"
)

// SafeGo executes fn in a goroutine with context cancellation, panic
// recovery, a timeout and error logging. Use instead of a bare `go func()`
// for fire-and-forget work launched from request handlers.
//
//	async.SafeGo(r.Context(), logger, 5*time.Second, "publish push event", func(ctx context.Context) error {
//		return publisher.Publish(ctx, subject, payload)
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(withoutCancel(parentCtx), timeout)
		defer cancel()

		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Error("Background task failed")
		}
	}()
}

// withoutCancel detaches the task from the parent's cancellation while
// keeping its values. Handlers return (and their request context is
// cancelled) before the background publish completes.
func withoutCancel(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
