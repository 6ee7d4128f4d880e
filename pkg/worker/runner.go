package worker

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conductorhq/conductor/pkg/bus"
	"github.com/conductorhq/conductor/pkg/observability"
	"github.com/conductorhq/conductor/pkg/registry"
)

// Ack-wait bounds enforced on every subscription. Anything shorter than
// the floor redelivers while a handler is still running; anything longer
// than the ceiling stalls redelivery after a crash.
const (
	MinAckWait = 3 * time.Second
	MaxAckWait = 300 * time.Second
)

// ClampAckWait forces d into the supported ack-wait range
func ClampAckWait(d time.Duration) time.Duration {
	if d < MinAckWait {
		return MinAckWait
	}
	if d > MaxAckWait {
		return MaxAckWait
	}
	return d
}

// Subscriber is the consuming side of the bus
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler bus.Handler, opts bus.SubscribeOptions) error
}

// RunnerConfig tunes the runner's subscriptions
type RunnerConfig struct {
	// ConfigAckWait applies to configuration change events
	ConfigAckWait time.Duration
	// ImageAckWait applies to image push events
	ImageAckWait time.Duration
}

// Runner owns the worker's durable subscriptions
type Runner struct {
	config     RunnerConfig
	subscriber Subscriber
	reconciler *Reconciler
	logger     *observability.Logger
}

// NewRunner creates a runner over the given subscriber
func NewRunner(config RunnerConfig, subscriber Subscriber, reconciler *Reconciler, logger *observability.Logger) *Runner {
	config.ConfigAckWait = ClampAckWait(config.ConfigAckWait)
	config.ImageAckWait = ClampAckWait(config.ImageAckWait)
	return &Runner{
		config:     config,
		subscriber: subscriber,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Run blocks consuming both subscriptions until ctx is cancelled or a
// subscription fails
func (r *Runner) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		r.logger.WithField("subject", SubjectConfigChanged).Info("Starting subscription")
		return r.subscriber.Subscribe(ctx, SubjectConfigChanged, r.reconciler.HandleConfigChanged, bus.SubscribeOptions{
			AckWait: r.config.ConfigAckWait,
		})
	})

	group.Go(func() error {
		r.logger.WithField("subject", registry.SubjectImagePushed).Info("Starting subscription")
		return r.subscriber.Subscribe(ctx, registry.SubjectImagePushed, r.reconciler.HandleImagePushed, bus.SubscribeOptions{
			AckWait: r.config.ImageAckWait,
		})
	})

	return group.Wait()
}
