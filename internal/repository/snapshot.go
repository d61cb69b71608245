package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/IvyChu/owstats/internal/domain"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type SnapshotRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSnapshotRepository(sqlDB *sql.DB, logger zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const snapshotColumns = `id, player_id, season, games_played, games_won, rating_avg, rating_tank, rating_damage, rating_support, ctime`

func (r *SnapshotRepository) Insert(ctx context.Context, snapshot *domain.Snapshot) error {
	if snapshot.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
		snapshot.ID = id
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO comp_stats (id, player_id, season, games_played, games_won, rating_avg, rating_tank, rating_damage, rating_support, ctime)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		snapshot.ID,
		snapshot.PlayerID,
		snapshot.Season,
		snapshot.GamesPlayed,
		snapshot.GamesWon,
		snapshot.RatingAvg,
		nullInt(snapshot.RatingTank),
		nullInt(snapshot.RatingDamage),
		nullInt(snapshot.RatingSupport),
		snapshot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot for player %d: %w", snapshot.PlayerID, err)
	}

	r.logger.Debug().
		Str("snapshot_id", snapshot.ID).
		Int64("player_id", snapshot.PlayerID).
		Int("season", snapshot.Season).
		Int("games", snapshot.GamesPlayed).
		Msg("snapshot recorded")
	return nil
}

// Latest returns the most recent snapshot for a player, or nil when none
// has been recorded yet.
func (r *SnapshotRepository) Latest(ctx context.Context, playerID int64) (*domain.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM comp_stats
		WHERE player_id = ?
		ORDER BY ctime DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, playerID)
	snapshot, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot for player %d: %w", playerID, err)
	}
	return snapshot, nil
}

func (r *SnapshotRepository) ListBySeason(ctx context.Context, playerID int64, season int) ([]domain.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM comp_stats
		WHERE player_id = ? AND season = ?
		ORDER BY ctime
	`

	rows, err := r.db.QueryContext(ctx, query, playerID, season)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots for player %d season %d: %w", playerID, season, err)
	}
	defer rows.Close()

	var snapshots []domain.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, *s)
	}
	return snapshots, rows.Err()
}

// Seasons lists the distinct seasons a player has snapshots in, newest first.
func (r *SnapshotRepository) Seasons(ctx context.Context, playerID int64) ([]int, error) {
	query := `
		SELECT DISTINCT season
		FROM comp_stats
		WHERE player_id = ?
		ORDER BY season DESC
	`

	rows, err := r.db.QueryContext(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seasons for player %d: %w", playerID, err)
	}
	defer rows.Close()

	var seasons []int
	for rows.Next() {
		var s int
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan season: %w", err)
		}
		seasons = append(seasons, s)
	}
	return seasons, rows.Err()
}

func scanSnapshot(row rowScanner) (*domain.Snapshot, error) {
	var s domain.Snapshot
	var tank, damage, support sql.NullInt64

	err := row.Scan(
		&s.ID,
		&s.PlayerID,
		&s.Season,
		&s.GamesPlayed,
		&s.GamesWon,
		&s.RatingAvg,
		&tank,
		&damage,
		&support,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.RatingTank = intPtr(tank)
	s.RatingDamage = intPtr(damage)
	s.RatingSupport = intPtr(support)
	return &s, nil
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
