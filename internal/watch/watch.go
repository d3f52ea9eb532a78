// Package watch re-runs a conversion whenever an input file changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/qr3d/internal/logger"
)

// DefaultDebounce groups the burst of events one save produces.
const DefaultDebounce = 250 * time.Millisecond

// Func handles one changed file.
type Func func(ctx context.Context, path string) error

// Watcher calls a Func for each settled change of its files. Directories
// are watched instead of the files so editors that save by rename are seen.
type Watcher struct {
	files    map[string]struct{}
	debounce time.Duration
	fn       Func
	fsnotify *fsnotify.Watcher
	log      *zap.Logger
}

// New watches paths. A non-positive debounce uses DefaultDebounce.
func New(paths []string, debounce time.Duration, fn Func) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("no files to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		files:    make(map[string]struct{}),
		debounce: debounce,
		fn:       fn,
		fsnotify: fsWatch,
		log:      logger.Named("watch"),
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsWatch.Close()
			return nil, err
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fsWatch.Add(dir); err != nil {
			fsWatch.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	return w, nil
}

// Run converts every file once, then on each change until ctx is done.
// Failed runs are logged and watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsnotify.Close()

	for path := range w.files {
		w.handle(ctx, path)
	}

	fire := make(chan string)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(e.Name)
			if err != nil {
				continue
			}
			if _, watched := w.files[name]; !watched {
				continue
			}
			if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				continue
			}
			w.log.Debug("change", zap.String("path", name), zap.String("op", e.Op.String()))
			if t, ok := timers[name]; ok {
				t.Reset(w.debounce)
				continue
			}
			timers[name] = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- name:
				case <-ctx.Done():
				}
			})

		case name := <-fire:
			delete(timers, name)
			w.handle(ctx, name)

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watch error", zap.Error(err))

		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	start := time.Now()
	if err := w.fn(ctx, path); err != nil {
		w.log.Error("conversion failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.log.Info("converted", zap.String("path", path), zap.Duration("took", time.Since(start)))
}
