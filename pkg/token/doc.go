// Package token mints and verifies the short-lived scoped bearer tokens the
// authorization gateway attaches to allowed requests.
//
// Tokens are signed JWTs (go-jose, HS256). The audience claim is the
// composite "<hostname>/<releaseName>", which pins a token to a single
// deployment: verification against any other audience fails. Tokens are
// never persisted; the default lifetime is five minutes.
//
// The signing key is loaded once at process start and a missing key is
// fatal. An optional fsnotify watcher picks up key rotation on disk without
// a restart.
package token
