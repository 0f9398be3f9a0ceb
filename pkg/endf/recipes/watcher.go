package recipes

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sambeau/endf/pkg/endf/logging"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 100 * time.Millisecond

// ReloadFunc receives the recompiled table after a change, together with
// the compile errors of the recipes that failed. table is nil when the
// directory could not be read.
type ReloadFunc func(table *Table, errs []error)

// Watcher monitors a recipe directory and recompiles it when a .recipe
// file changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	cache    *Cache
	onReload ReloadFunc
	log      logging.Logger
	Debounce time.Duration

	// pending reload, reset by every change
	mu        sync.Mutex
	timer     *time.Timer
	changeSeq uint64
}

// NewWatcher creates a watcher for dir. Compiled recipes go to a cache of
// their own.
func NewWatcher(dir string, onReload ReloadFunc, logger logging.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:  fsWatcher,
		dir:      dir,
		cache:    NewCache(),
		onReload: onReload,
		log:      logging.OrNull(logger),
		Debounce: DefaultDebounce,
	}, nil
}

// Start compiles the directory once and then watches it until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	w.log.Info("watching recipes: %s", w.dir)
	w.reload()
	go w.eventLoop(ctx)
	return nil
}

func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if strings.ToLower(filepath.Ext(event.Name)) != ".recipe" {
				continue
			}
			w.log.Debug("recipe changed: %s", event.Name)
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error: %v", err)
		}
	}
}

// schedule (re)starts the debounce timer so that a burst of changes leads
// to a single reload.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changeSeq++
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.Debounce, w.reload)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) reload() {
	w.cache.Purge()
	table, err := LoadDir(w.dir, w.cache)
	if err != nil {
		w.log.Error("failed to load recipes: %v", err)
		if w.onReload != nil {
			w.onReload(nil, []error{err})
		}
		return
	}
	errs := table.Compile()
	for _, err := range errs {
		w.log.Error("%v", err)
	}
	if len(errs) == 0 {
		w.log.Info("compiled %d recipes", table.Len())
	}
	if w.onReload != nil {
		w.onReload(table, errs)
	}
}

// ChangeSeq returns the number of changes seen so far.
func (w *Watcher) ChangeSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changeSeq
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.stopTimer()
	return w.watcher.Close()
}
