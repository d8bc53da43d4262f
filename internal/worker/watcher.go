package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gw2trader/tradepost/internal/config"
	"github.com/gw2trader/tradepost/internal/domain"
	"github.com/gw2trader/tradepost/internal/ports"
)

// Watcher triggers refresh runs at regular intervals. Most ticks refresh
// prices only; every DeepEvery-th tick runs a deep refresh with history
// and order books. A tick that lands while a run is still active is
// skipped, ticks never queue up.
type Watcher struct {
	refresh ports.RefreshService
	cfg     config.WatchConfig
	deep    ports.RunOptions
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	ticks   int
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a new interval refresh watcher
func NewWatcher(refresh ports.RefreshService, cfg config.WatchConfig, deep ports.RunOptions, logger *slog.Logger) *Watcher {
	return &Watcher{
		refresh: refresh,
		cfg:     cfg,
		deep:    deep,
		logger:  logger.With("component", "watcher"),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins the watch loop
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("starting watcher",
		"interval", w.cfg.Interval.String(),
		"deep_every", w.cfg.DeepEvery,
	)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	// Initial tick
	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher context cancelled")
			close(w.doneCh)
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return ctx.Err()

		case <-w.stopCh:
			w.logger.Info("watcher stopped")
			close(w.doneCh)
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return nil

		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	if w.refresh.Active() {
		w.logger.Debug("run already active, skipping tick")
		return
	}

	w.mu.Lock()
	w.ticks++
	deepTick := w.cfg.DeepEvery > 0 && w.ticks%w.cfg.DeepEvery == 0
	w.mu.Unlock()

	opts := ports.RunOptions{Mode: domain.RunQuick}
	if deepTick {
		opts = w.deep
	}

	tickCtx, cancel := context.WithTimeout(ctx, w.cfg.Interval)
	defer cancel()

	if _, err := w.refresh.Run(tickCtx, opts); err != nil {
		if errors.Is(err, domain.ErrRunInProgress) {
			w.logger.Debug("run started elsewhere, skipping tick")
			return
		}
		w.logger.Error("watch refresh failed", "error", err, "deep", deepTick)
	}
}

// Stop gracefully stops the watcher
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	w.logger.Info("stopping watcher")
	close(w.stopCh)

	select {
	case <-w.doneCh:
		return nil
	case <-time.After(10 * time.Second):
		return context.DeadlineExceeded
	}
}

// IsRunning returns whether the watch loop is active
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
