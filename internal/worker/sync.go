package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/duckhunt/internal/config"
	"github.com/duckhunt/internal/domain"
)

// ScoreSource lists ledger rows
type ScoreSource interface {
	ListScores(ctx context.Context, filter domain.ScoreFilter) ([]domain.ScoreRecord, error)
}

// RankingWriter replaces the cached rankings of one channel
type RankingWriter interface {
	Replace(ctx context.Context, network, channel string, records []domain.ScoreRecord) error
}

// SyncWorker periodically rebuilds the Redis ranking cache from PostgreSQL.
// Every cycle overwrites the cached rankings with the ledger rows.
type SyncWorker struct {
	ledger  ScoreSource
	cache   RankingWriter
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(
	ledger ScoreSource,
	cache RankingWriter,
	cfg *config.SyncConfig,
	logger *slog.Logger,
) *SyncWorker {
	return &SyncWorker{
		ledger: ledger,
		cache:  cache,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background sync process
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("ranking sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sync process
func (w *SyncWorker) Stop() error {
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

	w.logger.Info("ranking sync worker stopped")
	return nil
}

func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce rebuilds every channel ranking and reports how many channels were
// written and how many failed
func (w *SyncWorker) RunOnce(ctx context.Context) (synced, failed int) {
	startTime := time.Now()

	records, err := w.ledger.ListScores(ctx, domain.ScoreFilter{})
	if err != nil {
		w.logger.Error("failed to list scores for ranking sync", "error", err)
		return 0, 0
	}

	keys, byChannel := groupByChannel(records)
	for _, key := range keys {
		if err := w.cache.Replace(ctx, key.Network, key.Channel, byChannel[key]); err != nil {
			w.logger.Error("failed to sync channel ranking",
				"network", key.Network,
				"channel", key.Channel,
				"error", err,
			)
			failed++
			continue
		}
		synced++
	}

	w.logger.Info("ranking sync completed",
		"duration", time.Since(startTime),
		"synced", synced,
		"errors", failed,
	)
	return synced, failed
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// groupByChannel splits ledger rows per channel, keeping channels in order of
// first appearance
func groupByChannel(records []domain.ScoreRecord) ([]domain.ChannelKey, map[domain.ChannelKey][]domain.ScoreRecord) {
	var keys []domain.ChannelKey
	grouped := make(map[domain.ChannelKey][]domain.ScoreRecord)
	for _, r := range records {
		key := domain.ChannelKey{Network: r.Network, Channel: r.Channel}
		if _, ok := grouped[key]; !ok {
			keys = append(keys, key)
		}
		grouped[key] = append(grouped[key], r)
	}
	return keys, grouped
}
