// Package bus wraps NATS JetStream with the durable, manually-acknowledged
// subscription shape the reconciliation workers depend on.
//
// # Delivery semantics
//
// Each subscription is a durable pull consumer named after the worker's
// client id and the subject, so a restarted process resumes from its last
// unacknowledged position instead of re-subscribing as a new consumer.
// Delivery starts from all available messages, acknowledgment is always
// explicit, and a message that is not acknowledged within the configured
// ack-wait is redelivered, possibly to a different process instance.
// Handlers therefore see at-least-once delivery and must be idempotent.
//
// # Handler contract
//
// A handler returning nil acknowledges the message. A handler returning an
// error leaves it unacknowledged for redelivery. Handlers decide per
// message: malformed payloads are logged and acknowledged (retrying them
// can never succeed), transient downstream failures are left unacked.
package bus
