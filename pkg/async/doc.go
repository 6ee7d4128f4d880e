// Package async provides safe fire-and-forget goroutine execution for
// background work such as publishing bus events from request handlers.
// SafeGo adds panic recovery, a per-task timeout and error logging on top
// of a bare goroutine.
package async
