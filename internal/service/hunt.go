package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/duckhunt/internal/config"
	"github.com/duckhunt/internal/domain"
	"github.com/duckhunt/internal/game"
)

// HuntService runs the game for every channel. It owns the engine and
// connects it to the ledger, the status store and the chat adapter.
type HuntService struct {
	engine *game.Engine
	ledger Ledger
	status StatusStore
	chat   ChatAdapter
	cache  RankingCache
	config *config.HuntConfig
	logger *slog.Logger
}

// NewHuntService creates a new hunt service. cache may be nil.
func NewHuntService(
	engine *game.Engine,
	ledger Ledger,
	status StatusStore,
	chat ChatAdapter,
	cache RankingCache,
	cfg *config.HuntConfig,
	logger *slog.Logger,
) *HuntService {
	return &HuntService{
		engine: engine,
		ledger: ledger,
		status: status,
		chat:   chat,
		cache:  cache,
		config: cfg,
		logger: logger,
	}
}

// LoadState restores channel status and opt-outs from the store
func (s *HuntService) LoadState(ctx context.Context) error {
	statuses, err := s.status.LoadStatuses(ctx)
	if err != nil {
		return fmt.Errorf("loading channel status: %w", err)
	}
	optedOut, err := s.status.ListOptOuts(ctx)
	if err != nil {
		return fmt.Errorf("loading opt-outs: %w", err)
	}

	s.engine.Restore(statuses, optedOut)
	s.logger.Info("hunt state restored", "channels", len(statuses), "opted_out", len(optedOut))
	return nil
}

func (s *HuntService) saveStatus(ctx context.Context, st domain.ChannelStatus) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()
	return s.status.SaveStatus(ctx, st)
}

// RecordMessage counts channel activity. It reports whether the message
// counted towards the next spawn.
func (s *HuntService) RecordMessage(key domain.ChannelKey, userID string) bool {
	return s.engine.OnMessage(key, userID)
}

// StartHunt enables the hunt in a channel
func (s *HuntService) StartHunt(ctx context.Context, key domain.ChannelKey) error {
	if err := s.engine.StartHunt(ctx, key, s.saveStatus); err != nil {
		return err
	}
	s.logger.Info("hunt started", "network", key.Network, "channel", key.Channel)
	return nil
}

// StopHunt disables the hunt in a channel
func (s *HuntService) StopHunt(ctx context.Context, key domain.ChannelKey) error {
	if err := s.engine.StopHunt(ctx, key, s.saveStatus); err != nil {
		return err
	}
	s.logger.Info("hunt stopped", "network", key.Network, "channel", key.Channel)
	return nil
}

// SetMuteOnMiss toggles muting users who act on a missing duck
func (s *HuntService) SetMuteOnMiss(ctx context.Context, key domain.ChannelKey, enabled bool) error {
	return s.engine.SetMuteOnMiss(ctx, key, enabled, s.saveStatus)
}

// SetOptOut adds or removes a channel from the opt-out set. Opting out also
// persists the hunt as stopped.
func (s *HuntService) SetOptOut(ctx context.Context, key domain.ChannelKey, optedOut bool) error {
	muteOnMiss := s.engine.Snapshot(key).MuteOnMiss
	commit := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
		defer cancel()
		if !optedOut {
			return s.status.RemoveOptOut(ctx, key)
		}
		if err := s.status.AddOptOut(ctx, key); err != nil {
			return err
		}
		return s.status.SaveStatus(ctx, domain.ChannelStatus{Key: key, MuteOnMiss: muteOnMiss})
	}

	if err := s.engine.SetOptOut(ctx, key, optedOut, commit); err != nil {
		return err
	}
	s.logger.Info("channel opt-out changed",
		"network", key.Network,
		"channel", key.Channel,
		"opted_out", optedOut,
	)
	return nil
}

// IsOptedOut reports whether the channel is in the opt-out set
func (s *HuntService) IsOptedOut(key domain.ChannelKey) bool {
	return s.engine.IsOptedOut(key)
}

// OptedOut lists the opted-out channels of a network
func (s *HuntService) OptedOut(network string) []domain.ChannelKey {
	return s.engine.OptedOut(network)
}

// Forgive clears the cooldown of a user given by id or nick
func (s *HuntService) Forgive(who string) (domain.Player, bool) {
	player, forgiven := s.engine.Forgive(who)
	if forgiven {
		s.logger.Info("cooldown forgiven", "user_id", player.ID, "name", player.Name)
	}
	return player, forgiven
}

// Shoot resolves a shot at the channel's duck
func (s *HuntService) Shoot(ctx context.Context, key domain.ChannelKey, player domain.Player) (domain.Outcome, error) {
	return s.resolve(ctx, key, player, domain.ActionShoot)
}

// Befriend resolves a befriend attempt on the channel's duck
func (s *HuntService) Befriend(ctx context.Context, key domain.ChannelKey, player domain.Player) (domain.Outcome, error) {
	return s.resolve(ctx, key, player, domain.ActionBefriend)
}

func (s *HuntService) resolve(ctx context.Context, key domain.ChannelKey, player domain.Player, action domain.Action) (domain.Outcome, error) {
	if player.Name == "" {
		player.Name = player.ID
	}
	kind := action.ScoreKind()

	record := func(ctx context.Context) (int64, error) {
		ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
		defer cancel()
		return s.ledger.IncrementScore(ctx, key.Network, key.Channel, player.Name, kind)
	}

	out, err := s.engine.Resolve(ctx, key, player, action, record)
	if err != nil {
		if !domain.IsUserFacing(err) {
			s.logger.Error("failed to resolve action",
				"network", key.Network,
				"channel", key.Channel,
				"user_id", player.ID,
				"action", action,
				"error", err,
			)
		}
		return out, err
	}

	switch out.Kind {
	case domain.OutcomeSuccess:
		s.logger.Info("duck resolved",
			"network", key.Network,
			"channel", key.Channel,
			"user", player.Name,
			"action", action,
			"elapsed", out.Elapsed,
			"score", out.Score,
		)
		s.cacheIncrement(ctx, key, player.Name, kind)
		s.editAnnouncement(ctx, key, out)
	case domain.OutcomeNoDuck:
		if out.Mute {
			s.mute(ctx, key, player.ID)
		}
	}
	return out, nil
}

// cacheIncrement writes a success through to the ranking cache. Failures
// are logged; the sync worker repairs the cache from the ledger.
func (s *HuntService) cacheIncrement(ctx context.Context, key domain.ChannelKey, name string, kind domain.ScoreKind) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()
	if _, err := s.cache.Increment(ctx, key.Network, key.Channel, name, kind); err != nil {
		s.logger.Warn("failed to update ranking cache",
			"network", key.Network,
			"channel", key.Channel,
			"error", err,
		)
	}
}

func (s *HuntService) editAnnouncement(ctx context.Context, key domain.ChannelKey, out domain.Outcome) {
	if out.AnnouncementRef == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.ChatTimeout)
	defer cancel()
	if err := s.chat.EditAnnouncement(ctx, key, out.AnnouncementRef, ResolvedAnnouncement(out)); err != nil {
		s.logger.Warn("failed to edit announcement",
			"network", key.Network,
			"channel", key.Channel,
			"error", err,
		)
	}
}

func (s *HuntService) mute(ctx context.Context, key domain.ChannelKey, userID string) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ChatTimeout)
	defer cancel()
	if err := s.chat.MuteUser(ctx, key, userID); err != nil {
		s.logger.Warn("failed to mute user",
			"network", key.Network,
			"channel", key.Channel,
			"user_id", userID,
			"error", err,
		)
	}
}

// SpawnCandidates lists channels that may spawn a duck now
func (s *HuntService) SpawnCandidates() []domain.ChannelKey {
	return s.engine.SpawnCandidates()
}

// Deploy spawns a duck in the channel if it is still eligible
func (s *HuntService) Deploy(ctx context.Context, key domain.ChannelKey) (bool, error) {
	announce := func(ctx context.Context) (domain.AnnouncementRef, error) {
		ctx, cancel := context.WithTimeout(ctx, s.config.ChatTimeout)
		defer cancel()
		return s.chat.SendAnnouncement(ctx, key, SpawnAnnouncement(s.engine.GenerateDuck()))
	}

	spawned, err := s.engine.TrySpawn(ctx, key, announce)
	if err != nil {
		return false, err
	}
	if spawned {
		s.logger.Info("duck deployed", "network", key.Network, "channel", key.Channel)
	}
	return spawned, nil
}

// PruneCooldowns drops expired cooldowns
func (s *HuntService) PruneCooldowns() int {
	return s.engine.PruneCooldowns()
}

// Snapshot returns the state of one channel
func (s *HuntService) Snapshot(key domain.ChannelKey) domain.ChannelSnapshot {
	return s.engine.Snapshot(key)
}

// Snapshots returns the state of every known channel
func (s *HuntService) Snapshots() []domain.ChannelSnapshot {
	return s.engine.Snapshots()
}
