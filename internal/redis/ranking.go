package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/duckhunt/internal/config"
	"github.com/duckhunt/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RankingCache keeps one sorted set per (network, channel, kind) so the
// live leaderboard can be served without touching PostgreSQL. PostgreSQL
// stays authoritative; the cache is written through and rebuilt by the
// ranking sync worker.
type RankingCache struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRankingCache creates a new Redis ranking cache
func NewRankingCache(cfg *config.RedisConfig, logger *slog.Logger) (*RankingCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RankingCache{
		client: client,
		prefix: cfg.KeyPrefix,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *RankingCache) Close() error {
	return c.client.Close()
}

// Ping checks the Redis connection
func (c *RankingCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// rankingKey returns the sorted set key for a channel ranking
func rankingKey(prefix, network, channel string, kind domain.ScoreKind) string {
	return strings.Join([]string{prefix, "ranking", network, channel, string(kind)}, ":")
}

func (c *RankingCache) key(network, channel string, kind domain.ScoreKind) string {
	return rankingKey(c.prefix, network, channel, kind)
}

// Increment adds one to a user's cached count
func (c *RankingCache) Increment(ctx context.Context, network, channel, name string, kind domain.ScoreKind) (int64, error) {
	score, err := c.client.ZIncrBy(ctx, c.key(network, channel, kind), 1, name).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing cached score: %w", err)
	}
	return int64(score), nil
}

// TopN returns the n highest counts of a channel ranking
func (c *RankingCache) TopN(ctx context.Context, network, channel string, kind domain.ScoreKind, n int) ([]domain.RankEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, c.key(network, channel, kind), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	entries := make([]domain.RankEntry, 0, len(results))
	for _, result := range results {
		member, ok := result.Member.(string)
		if !ok || result.Score <= 0 {
			continue
		}
		entries = append(entries, domain.RankEntry{
			Rank:  len(entries) + 1,
			Key:   member,
			Value: int64(result.Score),
		})
	}
	return entries, nil
}

// Replace rebuilds both rankings of a channel from ledger rows in one
// MULTI/EXEC so readers never observe a half-built set
func (c *RankingCache) Replace(ctx context.Context, network, channel string, records []domain.ScoreRecord) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, kind := range []domain.ScoreKind{domain.ScoreShot, domain.ScoreBefriend} {
			key := c.key(network, channel, kind)
			pipe.Del(ctx, key)

			members := make([]redis.Z, 0, len(records))
			for _, rec := range records {
				if n := rec.Count(kind); n > 0 {
					members = append(members, redis.Z{Score: float64(n), Member: rec.Name})
				}
			}
			if len(members) > 0 {
				pipe.ZAdd(ctx, key, members...)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replacing ranking %s/%s: %w", network, channel, err)
	}
	return nil
}
