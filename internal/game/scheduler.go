package game

import (
	"context"
	"fmt"
	"time"

	"github.com/duckhunt/internal/domain"
)

// AnnounceFunc posts the spawn announcement and returns its handle
type AnnounceFunc func(ctx context.Context) (domain.AnnouncementRef, error)

// SpawnCandidates returns the channels eligible for a spawn at the current
// time. The result is a hint; TrySpawn re-checks under the channel lock.
func (e *Engine) SpawnCandidates() []domain.ChannelKey {
	now := e.now()
	var keys []domain.ChannelKey
	for _, c := range e.all() {
		c.mu.Lock()
		if c.eligible(now, e.settings) {
			keys = append(keys, c.key)
		}
		c.mu.Unlock()
	}
	return keys
}

// TrySpawn spawns a duck in the channel if it is still eligible. The channel
// only moves to DuckPresent once announce has succeeded; on failure the
// channel stays idle and keeps its activity counters.
func (e *Engine) TrySpawn(ctx context.Context, key domain.ChannelKey, announce AnnounceFunc) (bool, error) {
	c := e.channel(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.eligible(e.now(), e.settings) {
		return false, nil
	}

	ref, err := announce(ctx)
	if err != nil {
		return false, fmt.Errorf("announcing duck: %w", err)
	}

	c.phase = domain.PhaseDuckPresent
	c.spawnedAt = e.now()
	c.resolvedAt = time.Time{}
	c.announcement = ref
	return true, nil
}

// ResetSpawnTimer starts a new spawn window for the channel
func (e *Engine) ResetSpawnTimer(key domain.ChannelKey) time.Time {
	c := e.channel(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	e.resetSpawnTimerLocked(c, e.now())
	return c.nextSpawnAt
}

// resetSpawnTimerLocked draws the next spawn time uniformly from the
// channel's delay range, returns the channel to Idle and clears activity.
// c.mu must be held.
func (e *Engine) resetSpawnTimerLocked(c *channel, now time.Time) {
	r := e.delayFor(c.key)
	delay := r.Min
	if span := r.Max - r.Min; span > 0 {
		delay += time.Duration(e.int64n(int64(span) + 1))
	}

	c.nextSpawnAt = now.Add(delay)
	c.phase = domain.PhaseIdle
	c.announcement = ""
	c.resetActivity()

	e.logger.Info("spawn timer set",
		"network", c.key.Network,
		"channel", c.key.Channel,
		"delay", delay.Round(time.Second),
	)
}

func (e *Engine) delayFor(key domain.ChannelKey) DelayRange {
	if r, ok := e.settings.Overrides[key]; ok {
		return r
	}
	return e.settings.SpawnDelay
}
