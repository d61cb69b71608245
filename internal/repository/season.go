package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/IvyChu/owstats/internal/domain"
	"github.com/rs/zerolog"
)

type SeasonRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSeasonRepository(sqlDB *sql.DB, logger zerolog.Logger) *SeasonRepository {
	return &SeasonRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// Current returns the season with the latest update time, or nil when no
// season has been configured yet.
func (r *SeasonRepository) Current(ctx context.Context) (*domain.Season, error) {
	query := `
		SELECT id, season, next_switch_date, ctime, etime
		FROM seasons
		ORDER BY etime DESC, id DESC
		LIMIT 1
	`

	var s domain.Season
	var next sql.NullTime
	err := r.db.QueryRowContext(ctx, query).Scan(&s.ID, &s.Number, &next, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current season: %w", err)
	}

	if next.Valid {
		t := next.Time
		s.NextSwitchDate = &t
	}
	return &s, nil
}

// Insert creates a season and makes it current.
func (r *SeasonRepository) Insert(ctx context.Context, number int, nextSwitch *time.Time) (*domain.Season, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO seasons (season, next_switch_date, ctime, etime)
		VALUES (?, ?, ?, ?)
	`

	var next any
	if nextSwitch != nil {
		next = nextSwitch.UTC()
	}

	res, err := r.db.ExecContext(ctx, query, number, next, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert season %d: %w", number, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read new season id: %w", err)
	}

	r.logger.Info().Int("season", number).Msg("season created")
	return &domain.Season{
		ID:             id,
		Number:         number,
		NextSwitchDate: nextSwitch,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// SetNextSwitchDate stores the externally known date of the next season
// switch on the current season row.
func (r *SeasonRepository) SetNextSwitchDate(ctx context.Context, seasonID int64, next time.Time) error {
	query := `
		UPDATE seasons
		SET next_switch_date = ?, etime = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query, next.UTC(), time.Now().UTC(), seasonID)
	if err != nil {
		return fmt.Errorf("failed to set next switch date for season %d: %w", seasonID, err)
	}
	return nil
}
