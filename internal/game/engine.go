package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/duckhunt/internal/config"
	"github.com/duckhunt/internal/domain"
)

// Rand is the randomness source used for spawn delays, hit rolls and duck art
type Rand interface {
	Float64() float64
	Int64N(n int64) int64
	IntN(n int) int
}

// DelayRange bounds the randomized delay before the next spawn
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// Settings holds the spawn thresholds
type Settings struct {
	MinMessages     int
	MinParticipants int
	SpawnDelay      DelayRange
	Overrides       map[domain.ChannelKey]DelayRange
}

// SettingsFromConfig converts the hunt configuration
func SettingsFromConfig(cfg *config.HuntConfig) (Settings, error) {
	s := Settings{
		MinMessages:     cfg.MinimumMessages,
		MinParticipants: cfg.MinimumUsers,
		SpawnDelay:      DelayRange{Min: cfg.SpawnDelay().Min(), Max: cfg.SpawnDelay().Max()},
		Overrides:       make(map[domain.ChannelKey]DelayRange, len(cfg.FastChannels)),
	}
	for raw, r := range cfg.FastChannels {
		key, err := domain.ParseChannelKey(raw)
		if err != nil {
			return Settings{}, fmt.Errorf("fast channel override: %w", err)
		}
		s.Overrides[key] = DelayRange{Min: r.Min(), Max: r.Max()}
	}
	return s, nil
}

// StatusCommit persists a channel status before it is applied in memory
type StatusCommit func(ctx context.Context, status domain.ChannelStatus) error

// Engine owns the per-channel game state. Each channel is guarded by its own
// lock; the engine lock only guards the channel map.
type Engine struct {
	settings  Settings
	cooldowns *Cooldowns
	logger    *slog.Logger

	mu       sync.RWMutex
	channels map[domain.ChannelKey]*channel

	clk   func() time.Time
	rngMu sync.Mutex
	rng   Rand
}

// NewEngine creates an engine with the wall clock and a random source
func NewEngine(settings Settings, logger *slog.Logger) *Engine {
	return &Engine{
		settings:  settings,
		cooldowns: NewCooldowns(),
		logger:    logger,
		channels:  make(map[domain.ChannelKey]*channel),
		clk:       time.Now,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6475636b)),
	}
}

// WithClock replaces the time source
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	if clock != nil {
		e.clk = clock
	}
	return e
}

// WithRand replaces the random source
func (e *Engine) WithRand(r Rand) *Engine {
	if r != nil {
		e.rng = r
	}
	return e
}

func (e *Engine) now() time.Time {
	return e.clk()
}

func (e *Engine) float64() float64 {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Float64()
}

func (e *Engine) int64n(n int64) int64 {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Int64N(n)
}

func (e *Engine) intn(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.IntN(n)
}

// channel returns the state for key, creating it on first reference
func (e *Engine) channel(key domain.ChannelKey) *channel {
	e.mu.RLock()
	c, ok := e.channels[key]
	e.mu.RUnlock()
	if ok {
		return c
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.channels[key]; ok {
		return c
	}
	c = newChannel(key)
	e.channels[key] = c
	return c
}

// all returns every known channel in key order
func (e *Engine) all() []*channel {
	e.mu.RLock()
	out := make([]*channel, 0, len(e.channels))
	for _, c := range e.channels {
		out = append(out, c)
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].key.Network != out[j].key.Network {
			return out[i].key.Network < out[j].key.Network
		}
		return out[i].key.Channel < out[j].key.Channel
	})
	return out
}

// Restore loads persisted channel status and opt-outs at startup. Active
// channels get a fresh spawn timer.
func (e *Engine) Restore(statuses []domain.ChannelStatus, optedOut []domain.ChannelKey) {
	now := e.now()
	for _, key := range optedOut {
		c := e.channel(key)
		c.mu.Lock()
		c.optedOut = true
		c.mu.Unlock()
	}
	for _, st := range statuses {
		c := e.channel(st.Key)
		c.mu.Lock()
		c.active = st.Active
		c.muteOnMiss = st.MuteOnMiss
		if c.active {
			e.resetSpawnTimerLocked(c, now)
		}
		c.mu.Unlock()
		e.logger.Info("restored channel status",
			"network", st.Key.Network,
			"channel", st.Key.Channel,
			"active", st.Active,
			"mute_on_miss", st.MuteOnMiss,
		)
	}
}

// OnMessage records channel activity from a user. It reports whether the
// message was counted.
func (e *Engine) OnMessage(key domain.ChannelKey, userID string) bool {
	c := e.channel(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordMessage(userID)
}

// StartHunt enables the hunt in a channel and starts the first spawn window
func (e *Engine) StartHunt(ctx context.Context, key domain.ChannelKey, commit StatusCommit) error {
	c := e.channel(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.optedOut {
		return domain.ErrOptedOut
	}
	if c.active {
		return domain.ErrAlreadyRunning
	}

	next := c.status()
	next.Active = true
	if err := runCommit(ctx, commit, next); err != nil {
		return err
	}

	c.active = true
	e.resetSpawnTimerLocked(c, e.now())
	return nil
}

// StopHunt disables the hunt in a channel. A duck on the loose is dropped.
func (e *Engine) StopHunt(ctx context.Context, key domain.ChannelKey, commit StatusCommit) error {
	c := e.channel(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.optedOut {
		return domain.ErrOptedOut
	}
	if !c.active {
		return domain.ErrNotRunning
	}

	next := c.status()
	next.Active = false
	if err := runCommit(ctx, commit, next); err != nil {
		return err
	}

	c.active = false
	c.phase = domain.PhaseIdle
	c.announcement = ""
	c.resetActivity()
	return nil
}

// SetMuteOnMiss toggles muting of users who act on a missing duck
func (e *Engine) SetMuteOnMiss(ctx context.Context, key domain.ChannelKey, enabled bool, commit StatusCommit) error {
	c := e.channel(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.optedOut {
		return domain.ErrOptedOut
	}

	next := c.status()
	next.MuteOnMiss = enabled
	if err := runCommit(ctx, commit, next); err != nil {
		return err
	}
	c.muteOnMiss = enabled
	return nil
}

// SetOptOut adds or removes a channel from the opt-out set. Opting out stops
// a running hunt in memory; the persisted status is left for the caller.
func (e *Engine) SetOptOut(ctx context.Context, key domain.ChannelKey, optedOut bool, commit func(ctx context.Context) error) error {
	c := e.channel(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	if commit != nil {
		if err := commit(ctx); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
		}
	}

	c.optedOut = optedOut
	if optedOut {
		c.active = false
		c.phase = domain.PhaseIdle
		c.announcement = ""
		c.resetActivity()
	}
	return nil
}

// IsOptedOut reports whether the channel is in the opt-out set
func (e *Engine) IsOptedOut(key domain.ChannelKey) bool {
	e.mu.RLock()
	c, ok := e.channels[key]
	e.mu.RUnlock()
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.optedOut
}

// OptedOut lists opted-out channels of a network
func (e *Engine) OptedOut(network string) []domain.ChannelKey {
	var keys []domain.ChannelKey
	for _, c := range e.all() {
		if c.key.Network != network {
			continue
		}
		c.mu.Lock()
		if c.optedOut {
			keys = append(keys, c.key)
		}
		c.mu.Unlock()
	}
	return keys
}

// Snapshot returns a copy of a channel's state
func (e *Engine) Snapshot(key domain.ChannelKey) domain.ChannelSnapshot {
	c := e.channel(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Snapshots returns copies of every known channel's state
func (e *Engine) Snapshots() []domain.ChannelSnapshot {
	channels := e.all()
	out := make([]domain.ChannelSnapshot, 0, len(channels))
	for _, c := range channels {
		c.mu.Lock()
		out = append(out, c.snapshot())
		c.mu.Unlock()
	}
	return out
}

// Forgive clears the pending cooldown of a user given by id or nick
func (e *Engine) Forgive(who string) (domain.Player, bool) {
	return e.cooldowns.Forgive(who, e.now())
}

// PruneCooldowns drops expired cooldown entries
func (e *Engine) PruneCooldowns() int {
	return e.cooldowns.Prune(e.now())
}

func runCommit(ctx context.Context, commit StatusCommit, status domain.ChannelStatus) error {
	if commit == nil {
		return nil
	}
	if err := commit(ctx, status); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}
