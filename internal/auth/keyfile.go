package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/CristianUrbainski/teammate-android/internal/logging"
)

// reloadDelay coalesces the bursts of events editors produce on save.
const reloadDelay = 200 * time.Millisecond

// keyFile is the YAML layout of MCP_API_KEYS_FILE:
//
//	keys:
//	  - user: alex
//	    hash: $2a$10$...
type keyFile struct {
	Keys []struct {
		User string `yaml:"user"`
		Hash string `yaml:"hash"`
	} `yaml:"keys"`
}

// LoadKeyFile reads API keys from a YAML file.
func LoadKeyFile(path string) ([]APIKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	var kf keyFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parsing key file: %w", err)
	}

	seen := make(map[string]struct{}, len(kf.Keys))
	keys := make([]APIKey, 0, len(kf.Keys))

	for i, k := range kf.Keys {
		if k.User == "" || k.Hash == "" {
			return nil, fmt.Errorf("key file entry %d: user and hash are required", i+1)
		}

		if _, err := bcrypt.Cost([]byte(k.Hash)); err != nil {
			return nil, fmt.Errorf("key file entry %d is not a bcrypt hash: %w", i+1, err)
		}

		if _, dup := seen[k.User]; dup {
			return nil, fmt.Errorf("duplicate user %q in key file", k.User)
		}

		seen[k.User] = struct{}{}
		keys = append(keys, APIKey{UserID: k.User, Hash: k.Hash})
	}

	return keys, nil
}

// WatchKeyFile reloads path into v whenever it changes, merged after the
// fixed keys. A file that fails to load leaves the current keys in place.
// It blocks until ctx is cancelled.
func WatchKeyFile(ctx context.Context, path string, fixed []APIKey, v *Verifier, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	logger = logging.Component(logger, "auth")

	// Watch the directory: editors replace files by rename, which drops a
	// watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching key file directory: %w", err)
	}

	name := filepath.Clean(path)

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}

			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed")
			}

			if filepath.Clean(event.Name) != name || event.Has(fsnotify.Chmod) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}

			reload = timer.C

		case <-reload:
			reload = nil

			keys, err := LoadKeyFile(path)
			if err != nil {
				logger.Warn("key file reload failed, keeping current keys",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)

				continue
			}

			v.SetKeys(append(append([]APIKey(nil), fixed...), keys...))

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed")
			}

			logger.Warn("key file watcher", slog.String("error", err.Error()))
		}
	}
}
