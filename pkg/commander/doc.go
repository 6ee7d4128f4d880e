// Package commander is the HTTP client for the orchestration API that
// applies deployment configuration to the underlying infrastructure. The
// API is treated as an opaque, idempotent-ish remote call: the worker
// builds requests deterministically from current state so replays converge.
package commander
