package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/conductorhq/conductor/pkg/observability"
)

// DefaultAckWait is the redelivery timeout used when a subscription does
// not override it
const DefaultAckWait = 30 * time.Second

// Message is a single delivery handed to a Handler
type Message struct {
	Subject string
	Data    []byte
	// Attempt is the delivery attempt, starting at 1. Values above 1
	// mean an earlier delivery went unacknowledged.
	Attempt uint64
}

// Handler processes one message. Returning nil acknowledges the message;
// returning an error leaves it unacknowledged so the bus redelivers it
// after the subscription's ack-wait.
type Handler func(ctx context.Context, msg *Message) error

// Publisher is the publishing side of the bus, split out so workers can be
// tested against a fake.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// SubscribeOptions tunes a durable subscription
type SubscribeOptions struct {
	// AckWait is how long the bus waits for an acknowledgment before
	// redelivering. Fast paths run a few seconds; slow reconciliation
	// paths run minutes.
	AckWait time.Duration
}

// Bus is a JetStream connection shared by publishers and subscribers
type Bus struct {
	nc       *nats.Conn
	js       nats.JetStreamContext
	clientID string
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// Connect establishes the JetStream connection. Callers treat an error as
// fatal at process start. metrics may be nil.
func Connect(url, clientID string, logger *observability.Logger, metrics *observability.Metrics) (*Bus, error) {
	nc, err := nats.Connect(url,
		nats.Name(clientID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bus at %s: %w", url, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to open JetStream context: %w", err)
	}

	return &Bus{
		nc:       nc,
		js:       js,
		clientID: clientID,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// EnsureStream creates the stream holding the given subjects if it does
// not exist yet
func (b *Bus) EnsureStream(name string, subjects []string) error {
	_, err := b.js.StreamInfo(name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", name, err)
	}

	_, err = b.js.AddStream(&nats.StreamConfig{
		Name:      name,
		Subjects:  subjects,
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", name, err)
	}
	return nil
}

// Publish sends a message on a subject
func (b *Bus) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := b.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", subject, err)
	}
	return nil
}

// DurableName derives the durable consumer name for a subject. One durable
// per (clientID, subject) pair keeps the consumer position stable across
// restarts.
func (b *Bus) DurableName(subject string) string {
	return b.clientID + "-" + strings.ReplaceAll(subject, ".", "-")
}

// Subscribe runs a blocking receive-handle-ack loop for one durable
// subscription until ctx is cancelled. Messages are fetched one at a time;
// redelivery after ack-wait is the only retry mechanism.
func (b *Bus) Subscribe(ctx context.Context, subject string, handler Handler, opts SubscribeOptions) error {
	if opts.AckWait <= 0 {
		opts.AckWait = DefaultAckWait
	}

	durable := b.DurableName(subject)
	sub, err := b.js.PullSubscribe(subject, durable,
		nats.AckWait(opts.AckWait),
		nats.DeliverAll(),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s as %s: %w", subject, durable, err)
	}
	defer sub.Unsubscribe()

	b.logger.WithFields(map[string]interface{}{
		"subject":  subject,
		"durable":  durable,
		"ack_wait": opts.AckWait.String(),
	}).Info("Subscription started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := sub.Fetch(1, nats.MaxWait(5*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			b.logger.WithError(err).WithField("subject", subject).Error("Fetch failed")
			continue
		}

		for _, msg := range msgs {
			b.dispatch(ctx, subject, msg, handler)
		}
	}
}

// dispatch runs the handler for one delivery and acknowledges on success.
// Handler panics are contained here so a poison message cannot take down
// the consumer loop; the message is left unacked like any other failure.
func (b *Bus) dispatch(ctx context.Context, subject string, msg *nats.Msg, handler Handler) {
	defer observability.RecoverPanic(b.logger, "bus handler "+subject)

	attempt := uint64(1)
	if meta, err := msg.Metadata(); err == nil {
		attempt = meta.NumDelivered
	}
	if attempt > 1 && b.metrics != nil {
		b.metrics.BusRedeliveriesTotal.WithLabelValues(subject).Inc()
	}

	start := time.Now()
	err := handler(ctx, &Message{
		Subject: subject,
		Data:    msg.Data,
		Attempt: attempt,
	})
	if b.metrics != nil {
		b.metrics.HandlerDuration.WithLabelValues(subject).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		if b.metrics != nil {
			b.metrics.BusMessagesTotal.WithLabelValues(subject, "unacked").Inc()
		}
		b.logger.WithError(err).WithFields(map[string]interface{}{
			"subject": subject,
			"attempt": attempt,
		}).Error("Handler failed, leaving message for redelivery")
		return
	}

	if err := msg.Ack(); err != nil {
		b.logger.WithError(err).WithField("subject", subject).Error("Ack failed")
		return
	}
	if b.metrics != nil {
		b.metrics.BusMessagesTotal.WithLabelValues(subject, "acked").Inc()
	}
}

// Ping verifies the connection for readiness probes
func (b *Bus) Ping(ctx context.Context) error {
	if !b.nc.IsConnected() {
		return errors.New("bus connection lost")
	}
	return b.nc.FlushWithContext(ctx)
}

// Close drains the connection
func (b *Bus) Close() {
	if err := b.nc.Drain(); err != nil {
		b.logger.WithError(err).Warn("Bus drain failed")
	}
}
