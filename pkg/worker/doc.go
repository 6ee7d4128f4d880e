// Package worker reconciles deployment state change events against the
// orchestration API.
//
// # Overview
//
// Two durable subscriptions feed the worker: configuration change
// notifications published by the control plane and image push metadata
// published by the registry webhook. Each event is turned into a
// desired-state apply request and sent to the orchestration API. A
// completion event is published only after the orchestration call
// succeeds, so downstream consumers never observe a completion for work
// that did not happen.
//
// Handlers are written to be redelivery-safe. The apply request is built
// deterministically from the stored deployment record and the event
// payload, so a redelivered event produces a byte-identical request and
// the orchestration API converges on the same state. Malformed payloads
// are acknowledged and logged since redelivering them can never succeed;
// transient failures are left unacknowledged so the bus redelivers after
// the ack-wait.
package worker
