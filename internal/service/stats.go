package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/duckhunt/internal/config"
	"github.com/duckhunt/internal/domain"
	"github.com/duckhunt/internal/stats"
)

// StatsService answers leaderboard and summary queries and performs merges
type StatsService struct {
	ledger       Ledger
	cache        RankingCache
	config       *config.StatsConfig
	pager        stats.Pager
	storeTimeout time.Duration
	logger       *slog.Logger
}

// NewStatsService creates a new stats service. cache may be nil.
func NewStatsService(
	ledger Ledger,
	cache RankingCache,
	cfg *config.StatsConfig,
	storeTimeout time.Duration,
	logger *slog.Logger,
) *StatsService {
	return &StatsService{
		ledger:       ledger,
		cache:        cache,
		config:       cfg,
		pager:        stats.Pager{PageSize: cfg.PageSize, Columns: cfg.ColumnsPerPage},
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

func (s *StatsService) list(ctx context.Context, filter domain.ScoreFilter) ([]domain.ScoreRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	records, err := s.ledger.ListScores(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return records, nil
}

// ChannelRanking ranks the users of a channel by the selected counter
func (s *StatsService) ChannelRanking(ctx context.Context, key domain.ChannelKey, kind domain.ScoreKind) ([]domain.RankEntry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("score kind %q: %w", kind, domain.ErrInvalidRequest)
	}
	records, err := s.list(ctx, domain.ScoreFilter{Network: key.Network, Channel: key.Channel})
	if err != nil {
		return nil, err
	}
	return stats.Rank(stats.UserTotals(records, kind)), nil
}

// NetworkRanking ranks a network. RankingTotal ranks channels by their
// total and RankingPerUser ranks users by their total across channels.
// RankingAverage is a single figure per network, see NetworkAverage.
func (s *StatsService) NetworkRanking(ctx context.Context, network string, kind domain.ScoreKind, mode domain.RankingMode) ([]domain.RankEntry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("score kind %q: %w", kind, domain.ErrInvalidRequest)
	}
	records, err := s.list(ctx, domain.ScoreFilter{Network: network})
	if err != nil {
		return nil, err
	}

	switch mode {
	case domain.RankingTotal:
		return stats.Rank(stats.ChannelTotals(records, kind)), nil
	case domain.RankingPerUser:
		return stats.Rank(stats.UserTotals(records, kind)), nil
	default:
		return nil, fmt.Errorf("ranking mode %q: %w", mode, domain.ErrInvalidRequest)
	}
}

// NetworkAverage divides the network total of kind by the number of
// channels with a nonzero total
func (s *StatsService) NetworkAverage(ctx context.Context, network string, kind domain.ScoreKind) (domain.ChannelAverage, error) {
	if !kind.Valid() {
		return domain.ChannelAverage{}, fmt.Errorf("score kind %q: %w", kind, domain.ErrInvalidRequest)
	}
	records, err := s.list(ctx, domain.ScoreFilter{Network: network})
	if err != nil {
		return domain.ChannelAverage{}, err
	}
	return stats.ChannelAverage(records, kind), nil
}

// Page slices a ranking into the configured page layout
func (s *StatsService) Page(entries []domain.RankEntry, number int) (stats.Page, error) {
	return s.pager.Page(entries, number)
}

// LiveRanking returns the top of a channel ranking from the cache, falling
// back to the ledger when the cache is missing or failing
func (s *StatsService) LiveRanking(ctx context.Context, key domain.ChannelKey, kind domain.ScoreKind, limit int) ([]domain.RankEntry, error) {
	if limit <= 0 {
		limit = s.config.LiveLimit
	}
	if limit > s.config.MaxLiveLimit {
		limit = s.config.MaxLiveLimit
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("score kind %q: %w", kind, domain.ErrInvalidRequest)
	}

	if s.cache != nil {
		cctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		entries, err := s.cache.TopN(cctx, key.Network, key.Channel, kind, limit)
		cancel()
		if err == nil {
			return entries, nil
		}
		s.logger.Warn("ranking cache unavailable, reading ledger",
			"network", key.Network,
			"channel", key.Channel,
			"error", err,
		)
	}

	entries, err := s.ChannelRanking(ctx, key, kind)
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// PlayerStats summarises a user's scores. Averages follow the network rule
// over the user's own rows.
func (s *StatsService) PlayerStats(ctx context.Context, network, name, channel string) (*domain.PlayerStats, error) {
	records, err := s.list(ctx, domain.ScoreFilter{Network: network, Name: name})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrNoScores)
	}

	ps := &domain.PlayerStats{Network: network, Name: name, Channel: channel, Channels: len(records)}
	for _, r := range records {
		if r.Channel == channel {
			ps.ChannelShot = r.Shot
			ps.ChannelBefriend = r.Befriend
		}
	}
	shot := stats.ChannelAverage(records, domain.ScoreShot)
	befriend := stats.ChannelAverage(records, domain.ScoreBefriend)
	ps.Shot, ps.AverageShot = shot.Total, shot.Average
	ps.Befriend, ps.AverageBefriend = befriend.Total, befriend.Average
	return ps, nil
}

// NetworkStats summarises a network and one of its channels
func (s *StatsService) NetworkStats(ctx context.Context, network, channel string) (*domain.NetworkStats, error) {
	records, err := s.list(ctx, domain.ScoreFilter{Network: network})
	if err != nil {
		return nil, err
	}

	ns := &domain.NetworkStats{Network: network, Channel: channel}
	active := make(map[string]struct{})
	for _, r := range records {
		if r.Channel == channel {
			ns.ChannelShot += r.Shot
			ns.ChannelBefriend += r.Befriend
		}
		ns.Shot += r.Shot
		ns.Befriend += r.Befriend
		if r.Shot > 0 || r.Befriend > 0 {
			active[r.Channel] = struct{}{}
		}
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("%s: %w", network, domain.ErrNoScores)
	}
	ns.Channels = len(active)
	ns.AverageShot = stats.ChannelAverage(records, domain.ScoreShot).Average
	ns.AverageBefriend = stats.ChannelAverage(records, domain.ScoreBefriend).Average

	if top := stats.Rank(stats.ChannelTotals(records, domain.ScoreShot)); len(top) > 0 {
		ns.TopShotChannel = &top[0]
	}
	if top := stats.Rank(stats.ChannelTotals(records, domain.ScoreBefriend)); len(top) > 0 {
		ns.TopFriendChannel = &top[0]
	}
	return ns, nil
}

// Merge folds every score of oldName in the network into newName
func (s *StatsService) Merge(ctx context.Context, network, oldName, newName string) (domain.MergeResult, error) {
	oldName, newName = strings.TrimSpace(oldName), strings.TrimSpace(newName)
	if network == "" || oldName == "" || newName == "" {
		return domain.MergeResult{}, fmt.Errorf("merge needs two names: %w", domain.ErrInvalidRequest)
	}
	if oldName == newName {
		return domain.MergeResult{}, domain.ErrSameUser
	}

	mctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	result, err := s.ledger.MergeScores(mctx, network, oldName, newName)
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrNothingToMerge) {
			return result, err
		}
		return result, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	s.logger.Info("scores merged",
		"network", network,
		"old_name", oldName,
		"new_name", newName,
		"shot", result.Shot,
		"befriend", result.Befriend,
	)

	for _, channel := range result.Channels {
		s.RefreshChannel(ctx, domain.ChannelKey{Network: network, Channel: channel})
	}
	return result, nil
}

// RefreshChannel rebuilds a channel's cached ranking from the ledger.
// Failures are logged only.
func (s *StatsService) RefreshChannel(ctx context.Context, key domain.ChannelKey) {
	if s.cache == nil {
		return
	}
	records, err := s.list(ctx, domain.ScoreFilter{Network: key.Network, Channel: key.Channel})
	if err == nil {
		cctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		err = s.cache.Replace(cctx, key.Network, key.Channel, records)
		cancel()
	}
	if err != nil {
		s.logger.Warn("failed to refresh ranking cache",
			"network", key.Network,
			"channel", key.Channel,
			"error", err,
		)
	}
}
