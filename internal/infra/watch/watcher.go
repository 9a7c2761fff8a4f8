// Package watch follows a renderer's output directory and hands over each
// frame file once the renderer has stopped writing it.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/EbrithilNogare/frameconv/internal/domain/port"
	"github.com/EbrithilNogare/frameconv/internal/infra/fsenum"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type Watcher struct {
	settle time.Duration
	order  fsenum.Order
	ext    string
	logger *zap.Logger
}

// New returns a watcher that waits settle after the last write to a file
// before handling it.
func New(settle time.Duration, order fsenum.Order, logger *zap.Logger) *Watcher {
	return &Watcher{settle: settle, order: order, ext: fsenum.DefaultExtension, logger: logger}
}

// Run blocks until ctx is cancelled or handle returns an error. Files are
// handled one at a time; files that settle together go in the watcher's order.
func (w *Watcher) Run(ctx context.Context, dir string, handle port.FrameHandler) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("watching for frames", zap.String("dir", dir), zap.Duration("settle", w.settle))

	tick := w.settle / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	pending := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), w.ext) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				delete(pending, ev.Name)
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				pending[ev.Name] = time.Now()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", dir, err)

		case now := <-ticker.C:
			var ready []string
			for path, last := range pending {
				if now.Sub(last) >= w.settle {
					ready = append(ready, path)
				}
			}
			slices.SortFunc(ready, func(a, b string) int {
				return w.order.Compare(filepath.Base(a), filepath.Base(b))
			})
			for _, path := range ready {
				delete(pending, path)
				if err := handle(ctx, path); err != nil {
					return err
				}
			}
		}
	}
}
