// Package registry receives container-registry webhook notifications and
// gates which image pushes are allowed to trigger deployment updates.
//
// The validator is a pure predicate: only tagged pushes (excluding the
// floating "latest" tag) of well-formed, non-reserved repository names pass.
// A rejected event is a silent no-op rather than an error. The webhook endpoint
// always answers the registry with a success status so the registry does
// not retry.
package registry
