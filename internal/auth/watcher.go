package auth

import (
	"context"
	"sync"
	"time"
)

// Watcher polls the dead-man's switch and tells observers when inheritance
// mode becomes due or stops being due. It only reads state and flips the
// session's advisory flag.
type Watcher struct {
	engine   *Engine
	interval time.Duration

	mu        sync.Mutex
	observers []func(due bool)
	last      *bool
}

func NewWatcher(e *Engine, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Watcher{engine: e, interval: interval}
}

// Subscribe registers fn to be called on every change.
func (w *Watcher) Subscribe(fn func(due bool)) {
	w.mu.Lock()
	w.observers = append(w.observers, fn)
	w.mu.Unlock()
}

// Run checks immediately and then every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	due, err := w.engine.CheckInheritanceModeDue(ctx)
	if err != nil {
		w.engine.log.Warn(ctx, "switch poll failed", "error", err)
		return
	}

	w.mu.Lock()
	changed := w.last == nil || *w.last != due
	w.last = &due
	observers := append([]func(bool){}, w.observers...)
	w.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range observers {
		fn(due)
	}
}
