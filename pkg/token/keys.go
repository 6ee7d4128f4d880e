package token

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conductorhq/conductor/pkg/observability"
)

// LoadKeyFile reads a signing key from disk. Trailing whitespace is
// stripped so keys written with a final newline work unchanged.
func LoadKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key %s: %w", path, err)
	}
	key := bytes.TrimSpace(data)
	if len(key) == 0 {
		return nil, fmt.Errorf("signing key %s is empty", path)
	}
	return key, nil
}

// NewIssuerFromFile loads the signing key from a file and creates an
// issuer. Intended for process startup: a missing or unusable key is
// returned as an error so the caller can fail fast.
func NewIssuerFromFile(path string, ttl time.Duration) (*Issuer, error) {
	key, err := LoadKeyFile(path)
	if err != nil {
		return nil, err
	}
	return NewIssuer(key, ttl)
}

// WatchKeyFile watches the signing key file and rotates the issuer's key
// when the file changes. Watch failures are logged and never fatal: the
// issuer keeps using the last good key. Blocks until ctx is cancelled.
func WatchKeyFile(ctx context.Context, issuer *Issuer, path string, logger *observability.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create key watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors and secret mounts replace the file,
	// which drops a watch set on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch key directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			key, err := LoadKeyFile(path)
			if err != nil {
				logger.WithError(err).Warn("Signing key reload failed, keeping current key")
				continue
			}
			if err := issuer.rotate(key); err != nil {
				logger.WithError(err).Warn("Signing key rotation rejected")
				continue
			}
			logger.Info("Signing key rotated")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("Signing key watcher error")
		}
	}
}
