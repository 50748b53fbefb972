// Package watch reports candidate source files that change in a directory.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/signalnine/sandbench/internal/logging"
)

// DefaultDebounce absorbs the burst of events one editor save produces.
const DefaultDebounce = 200 * time.Millisecond

type Options struct {
	Dir      string
	Debounce time.Duration
	Logger   *log.Logger
}

// Run calls onChange with the path of every .go file written or created in
// opts.Dir, once per burst of events. Calls are serialized. Run returns when
// ctx is done.
func Run(ctx context.Context, opts Options, onChange func(path string)) error {
	logger := logging.Or(opts.Logger)
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(opts.Dir); err != nil {
		return fmt.Errorf("watching %s: %w", opts.Dir, err)
	}
	logger.Info("watching", "dir", opts.Dir)

	changed := make(chan string)
	var (
		mu     sync.Mutex
		timers = map[string]*time.Timer{}
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case path := <-changed:
			onChange(path)
		case ev, ok := <-w.Events:
			if !ok {
				return fmt.Errorf("watcher events closed")
			}
			if !relevant(ev) {
				continue
			}
			logger.Debug("file event", "path", ev.Name, "op", ev.Op.String())
			mu.Lock()
			if t, ok := timers[ev.Name]; ok {
				t.Reset(debounce)
			} else {
				path := ev.Name
				timers[path] = time.AfterFunc(debounce, func() {
					mu.Lock()
					delete(timers, path)
					mu.Unlock()
					select {
					case changed <- path:
					case <-ctx.Done():
					}
				})
			}
			mu.Unlock()
		case err, ok := <-w.Errors:
			if !ok {
				return fmt.Errorf("watcher errors closed")
			}
			logger.Error("watcher error", "err", err)
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return false
	}
	base := filepath.Base(ev.Name)
	return strings.HasSuffix(base, ".go") && !strings.HasPrefix(base, ".") && !strings.HasSuffix(base, "_test.go")
}
