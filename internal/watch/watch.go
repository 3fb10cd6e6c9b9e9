// Package watch follows external edits to vault documents and asks the
// tracker to re-check the sessions of every changed document.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/storage"
)

// DefaultInclude matches every Markdown document in the vault.
const DefaultInclude = "**/*.md"

const defaultDebounce = 200 * time.Millisecond

// Reconciler re-checks the sessions of one document.
type Reconciler interface {
	Reconcile(ctx context.Context, key string) ([]models.WorkSession, error)
}

// EventCallback is called after a watched document was reconciled.
// kind is "changed" or "deleted".
type EventCallback func(kind string, key string)

// Config selects which files are watched.
type Config struct {
	// Include is a doublestar pattern over slash-separated paths relative
	// to the vault root.
	Include  string
	Debounce time.Duration
}

// Watch starts an fsnotify watcher on the vault root and reconciles changed
// documents until ctx is cancelled. Bursts of events for the same document
// (the atomic write of FS.Replace produces several) collapse into one
// reconciliation after cfg.Debounce.
func Watch(ctx context.Context, store *storage.FS, rec Reconciler, cfg Config, logger *slog.Logger, cb EventCallback) error {
	if cfg.Include == "" {
		cfg.Include = DefaultInclude
	}
	if !doublestar.ValidatePattern(cfg.Include) {
		return &PatternError{Pattern: cfg.Include}
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := store.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root), slog.String("include", cfg.Include))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func(key string) {
		pending[key] = struct{}{}
		if timer == nil {
			timer = time.NewTimer(cfg.Debounce)
			timerCh = timer.C
		} else {
			timer.Reset(cfg.Debounce)
		}
	}

	flush := func() {
		for key := range pending {
			kind := "changed"
			if _, statErr := os.Stat(filepath.Join(root, filepath.FromSlash(key)+".md")); statErr != nil {
				kind = "deleted"
			}
			orphans, recErr := rec.Reconcile(ctx, key)
			if recErr != nil {
				logger.Warn("watcher: reconcile failed", slog.String("key", key), slog.String("error", recErr.Error()))
				continue
			}
			logger.Debug("watcher: reconciled",
				slog.String("key", key),
				slog.String("op", kind),
				slog.Int("orphaned", len(orphans)),
			)
			if cb != nil {
				cb(kind, key)
			}
		}
		clear(pending)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			flush()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					continue
				}
			}

			key, ok := store.KeyForPath(absPath)
			if !ok || !matches(cfg.Include, key) {
				continue
			}

			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule(key)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// PatternError reports an invalid include pattern.
type PatternError struct {
	Pattern string
}

func (e *PatternError) Error() string {
	return "watch: invalid include pattern " + strconv.Quote(e.Pattern)
}

func matches(pattern, key string) bool {
	ok, err := doublestar.Match(pattern, key+".md")
	return err == nil && ok
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
