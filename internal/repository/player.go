package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IvyChu/owstats/internal/domain"
	"github.com/rs/zerolog"
)

type PlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const playerColumns = `id, username, region, platform, battletag, icon, endorsement, games_played, activity_state, ctime, etime`

func (r *PlayerRepository) GetByIdentity(ctx context.Context, platform, region, username string) (*domain.Player, error) {
	query := `
		SELECT ` + playerColumns + `
		FROM players
		WHERE platform = ? AND region = ? AND username = ?
	`

	row := r.db.QueryRowContext(ctx, query, platform, region, username)
	player, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player %s/%s/%s: %w", platform, region, username, err)
	}
	return player, nil
}

func (r *PlayerRepository) GetByUsername(ctx context.Context, username string) (*domain.Player, error) {
	query := `
		SELECT ` + playerColumns + `
		FROM players
		WHERE username = ?
		ORDER BY ctime
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, username)
	player, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player %s: %w", username, err)
	}
	return player, nil
}

func (r *PlayerRepository) Create(ctx context.Context, player *domain.Player) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO players (username, region, platform, battletag, icon, endorsement, games_played, activity_state, ctime, etime)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := r.db.ExecContext(ctx, query,
		player.Username,
		player.Region,
		player.Platform,
		nullString(player.Battletag),
		nullString(player.Icon),
		player.Endorsement,
		player.GamesPlayed,
		string(player.State),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create player %s: %w", player.Username, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read new player id: %w", err)
	}
	player.ID = id
	player.CreatedAt = now
	player.UpdatedAt = now

	r.logger.Debug().Int64("player_id", id).Str("username", player.Username).Msg("player created")
	return nil
}

// UpdateStats records the freshly observed counters and returns the player
// to the active state.
func (r *PlayerRepository) UpdateStats(ctx context.Context, playerID int64, gamesPlayed, endorsement int, icon string) error {
	query := `
		UPDATE players
		SET games_played = ?, endorsement = ?, icon = ?, activity_state = ?, etime = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query,
		gamesPlayed, endorsement, nullString(icon), string(domain.StateActive), time.Now().UTC(), playerID)
	if err != nil {
		return fmt.Errorf("failed to update stats for player %d: %w", playerID, err)
	}
	return nil
}

func (r *PlayerRepository) SetState(ctx context.Context, playerID int64, state domain.ActivityState) error {
	query := `
		UPDATE players
		SET activity_state = ?, etime = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query, string(state), time.Now().UTC(), playerID)
	if err != nil {
		return fmt.Errorf("failed to set state %s for player %d: %w", state, playerID, err)
	}

	r.logger.Debug().Int64("player_id", playerID).Str("state", string(state)).Msg("player state changed")
	return nil
}

func (r *PlayerRepository) ListByStates(ctx context.Context, states ...domain.ActivityState) ([]domain.Player, error) {
	if len(states) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(states)), ",")
	query := `
		SELECT ` + playerColumns + `
		FROM players
		WHERE activity_state IN (` + placeholders + `)
		ORDER BY id
	`

	args := make([]any, len(states))
	for i, s := range states {
		args[i] = string(s)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list players by state: %w", err)
	}
	defer rows.Close()

	return collectPlayers(rows)
}

func (r *PlayerRepository) ListAll(ctx context.Context) ([]domain.Player, error) {
	query := `
		SELECT ` + playerColumns + `
		FROM players
		ORDER BY username
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	return collectPlayers(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*domain.Player, error) {
	var p domain.Player
	var battletag, icon sql.NullString
	var state string

	err := row.Scan(
		&p.ID,
		&p.Username,
		&p.Region,
		&p.Platform,
		&battletag,
		&icon,
		&p.Endorsement,
		&p.GamesPlayed,
		&state,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Battletag = battletag.String
	p.Icon = icon.String
	p.State = domain.ActivityState(state)
	return &p, nil
}

func collectPlayers(rows *sql.Rows) ([]domain.Player, error) {
	var players []domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
