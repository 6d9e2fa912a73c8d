package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last file event before a
// change is reported.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports changes of a single configuration file. The parent
// directory is watched so that editors replacing the file atomically are
// still noticed.
type Watcher struct {
	path     string
	debounce time.Duration
	log      *slog.Logger
	fsw      *fsnotify.Watcher
	changes  chan struct{}
}

func NewWatcher(path string, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		log:      log,
		fsw:      fsw,
		changes:  make(chan struct{}, 1),
	}, nil
}

// Changes receives one value per debounced burst of writes. Bursts that
// arrive while a previous change is still unread are coalesced.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Run processes file events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info("Config watcher started", "path", w.path, "debounce_ms", w.debounce.Milliseconds())

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug("Config file event", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case <-timer.C:
			select {
			case w.changes <- struct{}{}:
			default:
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				timer.Reset(w.debounce)
			}
			w.log.Error("Config watcher error", "err", err)
		}
	}
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return name == w.path
}
