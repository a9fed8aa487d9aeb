package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/duckhunt/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Spawner is the part of the hunt service the scheduler drives
type Spawner interface {
	SpawnCandidates() []domain.ChannelKey
	Deploy(ctx context.Context, key domain.ChannelKey) (bool, error)
	PruneCooldowns() int
}

// SpawnWorker ticks the duck scheduler. Each tick deploys a duck in every
// eligible channel, with at most Workers channels in flight, and prunes
// expired cooldowns. A failing channel never blocks the others.
type SpawnWorker struct {
	spawner  Spawner
	interval time.Duration
	workers  int
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewSpawnWorker creates a new spawn worker
func NewSpawnWorker(spawner Spawner, interval time.Duration, workers int, logger *slog.Logger) *SpawnWorker {
	if workers <= 0 {
		workers = 1
	}
	return &SpawnWorker{
		spawner:  spawner,
		interval: interval,
		workers:  workers,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins ticking
func (w *SpawnWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("spawn worker started", "interval", w.interval, "workers", w.workers)

	go w.run(ctx)
	return nil
}

// Stop stops ticking and waits for the current tick to finish
func (w *SpawnWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("spawn worker stopped")
	return nil
}

func (w *SpawnWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one scheduler pass and returns the number of ducks deployed
func (w *SpawnWorker) Tick(ctx context.Context) int {
	var (
		mu       sync.Mutex
		deployed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)
	for _, key := range w.spawner.SpawnCandidates() {
		g.Go(func() error {
			spawned, err := w.spawner.Deploy(gctx, key)
			if err != nil {
				w.logger.Error("failed to deploy duck",
					"network", key.Network,
					"channel", key.Channel,
					"error", err,
				)
				return nil
			}
			if spawned {
				mu.Lock()
				deployed++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if pruned := w.spawner.PruneCooldowns(); pruned > 0 {
		w.logger.Debug("expired cooldowns pruned", "count", pruned)
	}
	return deployed
}
