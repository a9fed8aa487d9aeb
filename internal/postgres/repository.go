package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/duckhunt/internal/config"
	"github.com/duckhunt/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL-based data access for the score ledger,
// channel status and the opt-out set
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS duck_hunt (
			network VARCHAR(128) NOT NULL,
			chan VARCHAR(128) NOT NULL,
			name VARCHAR(255) NOT NULL,
			shot BIGINT NOT NULL DEFAULT 0 CHECK (shot >= 0),
			befriend BIGINT NOT NULL DEFAULT 0 CHECK (befriend >= 0),
			PRIMARY KEY (network, chan, name)
		)`,
		`CREATE TABLE IF NOT EXISTS nohunt (
			network VARCHAR(128) NOT NULL,
			chan VARCHAR(128) NOT NULL,
			PRIMARY KEY (network, chan)
		)`,
		`CREATE TABLE IF NOT EXISTS duck_status (
			network VARCHAR(128) NOT NULL,
			chan VARCHAR(128) NOT NULL,
			active BOOLEAN NOT NULL DEFAULT FALSE,
			duck_kick BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (network, chan)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_duck_hunt_name ON duck_hunt(network, name)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// scoreColumn maps a counter to its column. The result is only ever one of
// two constants and is safe to interpolate.
func scoreColumn(kind domain.ScoreKind) (string, error) {
	switch kind {
	case domain.ScoreShot:
		return "shot", nil
	case domain.ScoreBefriend:
		return "befriend", nil
	default:
		return "", fmt.Errorf("score kind %q: %w", kind, domain.ErrInvalidRequest)
	}
}

// IncrementScore adds one to a user's counter, creating the row if absent,
// and returns the new count
func (r *Repository) IncrementScore(ctx context.Context, network, channel, name string, kind domain.ScoreKind) (int64, error) {
	column, err := scoreColumn(kind)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
		INSERT INTO duck_hunt (network, chan, name, %[1]s)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (network, chan, name)
		DO UPDATE SET %[1]s = duck_hunt.%[1]s + 1
		RETURNING %[1]s
	`, column)

	var count int64
	err = r.pool.QueryRow(ctx, query, network, channel, name).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("incrementing %s score: %w", column, err)
	}
	return count, nil
}

// MergeScores folds every record of oldName in the network into newName and
// deletes the old records, in one transaction
func (r *Repository) MergeScores(ctx context.Context, network, oldName, newName string) (domain.MergeResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.MergeResult{Network: network, OldName: oldName, NewName: newName}, fmt.Errorf("beginning merge: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := mergeInTx(ctx, tx, network, oldName, newName)
	if err != nil {
		return result, err
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("committing merge: %w", err)
	}

	r.logger.Info("merged scores",
		"network", network,
		"old_name", oldName,
		"new_name", newName,
		"channels", len(result.Channels),
	)
	return result, nil
}

// mergeTx is the part of pgx.Tx a merge needs
type mergeTx interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// mergeInTx locks the old rows, folds them into newName and deletes exactly
// the rows it folded. A row for oldName inserted in another channel after the
// lock is left alone rather than deleted unmerged.
func mergeInTx(ctx context.Context, tx mergeTx, network, oldName, newName string) (domain.MergeResult, error) {
	result := domain.MergeResult{Network: network, OldName: oldName, NewName: newName}

	rows, err := tx.Query(ctx, `
		SELECT chan, shot, befriend
		FROM duck_hunt
		WHERE network = $1 AND name = $2
		ORDER BY chan
		FOR UPDATE
	`, network, oldName)
	if err != nil {
		return result, fmt.Errorf("selecting scores to merge: %w", err)
	}

	var old []domain.ScoreRecord
	for rows.Next() {
		rec := domain.ScoreRecord{Network: network, Name: oldName}
		if err := rows.Scan(&rec.Channel, &rec.Shot, &rec.Befriend); err != nil {
			rows.Close()
			return result, fmt.Errorf("scanning score: %w", err)
		}
		old = append(old, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("selecting scores to merge: %w", err)
	}

	if len(old) == 0 {
		return result, domain.ErrNothingToMerge
	}

	batch := &pgx.Batch{}
	for _, rec := range old {
		batch.Queue(foldScoreSQL, network, rec.Channel, newName, rec.Shot, rec.Befriend)
		result.Shot += rec.Shot
		result.Befriend += rec.Befriend
		result.Channels = append(result.Channels, rec.Channel)
	}

	br := tx.SendBatch(ctx, batch)
	for range old {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return result, fmt.Errorf("folding scores: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return result, fmt.Errorf("folding scores: %w", err)
	}

	if _, err := tx.Exec(ctx, deleteMergedSQL, network, oldName, result.Channels); err != nil {
		return result, fmt.Errorf("deleting merged scores: %w", err)
	}
	return result, nil
}

const foldScoreSQL = `
		INSERT INTO duck_hunt (network, chan, name, shot, befriend)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (network, chan, name)
		DO UPDATE SET shot = duck_hunt.shot + $4, befriend = duck_hunt.befriend + $5
	`

const deleteMergedSQL = `DELETE FROM duck_hunt WHERE network = $1 AND name = $2 AND chan = ANY($3)`

// scoreQuery builds the ledger select for a filter
func scoreQuery(filter domain.ScoreFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("network", filter.Network)
	add("chan", filter.Channel)
	add("name", filter.Name)

	var b strings.Builder
	b.WriteString("SELECT network, chan, name, shot, befriend FROM duck_hunt")
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY network, chan, name")
	return b.String(), args
}

// ListScores returns the ledger rows matching filter ordered by network,
// channel and name
func (r *Repository) ListScores(ctx context.Context, filter domain.ScoreFilter) ([]domain.ScoreRecord, error) {
	query, args := scoreQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing scores: %w", err)
	}
	defer rows.Close()

	var records []domain.ScoreRecord
	for rows.Next() {
		var rec domain.ScoreRecord
		if err := rows.Scan(&rec.Network, &rec.Channel, &rec.Name, &rec.Shot, &rec.Befriend); err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing scores: %w", err)
	}
	return records, nil
}

// SaveStatus upserts the durable part of a channel's state
func (r *Repository) SaveStatus(ctx context.Context, status domain.ChannelStatus) error {
	query := `
		INSERT INTO duck_status (network, chan, active, duck_kick)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (network, chan)
		DO UPDATE SET active = $3, duck_kick = $4
	`
	_, err := r.pool.Exec(ctx, query, status.Key.Network, status.Key.Channel, status.Active, status.MuteOnMiss)
	if err != nil {
		return fmt.Errorf("saving channel status: %w", err)
	}
	return nil
}

// LoadStatuses returns every persisted channel status
func (r *Repository) LoadStatuses(ctx context.Context) ([]domain.ChannelStatus, error) {
	rows, err := r.pool.Query(ctx, `SELECT network, chan, active, duck_kick FROM duck_status ORDER BY network, chan`)
	if err != nil {
		return nil, fmt.Errorf("loading channel status: %w", err)
	}
	defer rows.Close()

	var statuses []domain.ChannelStatus
	for rows.Next() {
		var st domain.ChannelStatus
		if err := rows.Scan(&st.Key.Network, &st.Key.Channel, &st.Active, &st.MuteOnMiss); err != nil {
			return nil, fmt.Errorf("scanning channel status: %w", err)
		}
		statuses = append(statuses, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading channel status: %w", err)
	}
	return statuses, nil
}

// AddOptOut adds a channel to the opt-out set
func (r *Repository) AddOptOut(ctx context.Context, key domain.ChannelKey) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO nohunt (network, chan) VALUES ($1, $2)
		ON CONFLICT (network, chan) DO NOTHING
	`, key.Network, key.Channel)
	if err != nil {
		return fmt.Errorf("adding opt-out: %w", err)
	}
	return nil
}

// RemoveOptOut removes a channel from the opt-out set
func (r *Repository) RemoveOptOut(ctx context.Context, key domain.ChannelKey) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM nohunt WHERE network = $1 AND chan = $2`, key.Network, key.Channel)
	if err != nil {
		return fmt.Errorf("removing opt-out: %w", err)
	}
	return nil
}

// ListOptOuts returns every opted-out channel
func (r *Repository) ListOptOuts(ctx context.Context) ([]domain.ChannelKey, error) {
	rows, err := r.pool.Query(ctx, `SELECT network, chan FROM nohunt ORDER BY network, chan`)
	if err != nil {
		return nil, fmt.Errorf("listing opt-outs: %w", err)
	}
	defer rows.Close()

	var keys []domain.ChannelKey
	for rows.Next() {
		var key domain.ChannelKey
		if err := rows.Scan(&key.Network, &key.Channel); err != nil {
			return nil, fmt.Errorf("scanning opt-out: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing opt-outs: %w", err)
	}
	return keys, nil
}
