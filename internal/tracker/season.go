package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/IvyChu/owstats/internal/domain"
	"github.com/rs/zerolog"
)

// SeasonStore is the slice of the season repository the tracker needs.
type SeasonStore interface {
	Current(ctx context.Context) (*domain.Season, error)
	Insert(ctx context.Context, number int, nextSwitch *time.Time) (*domain.Season, error)
}

// SeasonTracker owns the "which season is current" question. Callers must
// serialize Advance; the sequential poll loop satisfies that naturally.
type SeasonTracker struct {
	store  SeasonStore
	logger zerolog.Logger
}

func NewSeasonTracker(store SeasonStore, logger zerolog.Logger) *SeasonTracker {
	return &SeasonTracker{store: store, logger: logger}
}

// Current returns the current season, creating season 1 on a fresh
// database so polling can start before an operator runs seasonctl.
func (t *SeasonTracker) Current(ctx context.Context) (*domain.Season, error) {
	season, err := t.store.Current(ctx)
	if err != nil {
		return nil, err
	}
	if season == nil {
		t.logger.Warn().Msg("no season configured, bootstrapping season 1")
		return t.store.Insert(ctx, 1, nil)
	}
	return season, nil
}

// SwitchDue reports whether the current season's switch date is set and
// has passed. A freshly advanced season has no switch date, so a second
// rollover detection in the same cycle reads as an in-season anomaly.
func (t *SeasonTracker) SwitchDue(ctx context.Context, now time.Time) (bool, error) {
	season, err := t.Current(ctx)
	if err != nil {
		return false, err
	}
	return season.NextSwitchDate != nil && season.NextSwitchDate.Before(now), nil
}

// Advance mints season N+1 and makes it current. The new season's switch
// date is unset until an operator provides it.
func (t *SeasonTracker) Advance(ctx context.Context) (*domain.Season, error) {
	current, err := t.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read current season before advance: %w", err)
	}

	next, err := t.store.Insert(ctx, current.Number+1, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to advance season: %w", err)
	}

	t.logger.Info().
		Int("from", current.Number).
		Int("to", next.Number).
		Msg("season advanced")
	return next, nil
}
