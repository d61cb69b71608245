package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/IvyChu/owstats/internal/api"
	"github.com/IvyChu/owstats/internal/constants"
	"github.com/IvyChu/owstats/internal/domain"
	"github.com/rs/zerolog"
)

type StatsClient interface {
	FetchProfile(ctx context.Context, platform, region, username string) (*api.Profile, error)
}

type RosterSource interface {
	Roster(ctx context.Context, includeDormant bool) ([]domain.Player, error)
}

type PlayerStore interface {
	UpdateStats(ctx context.Context, playerID int64, gamesPlayed, endorsement int, icon string) error
	SetState(ctx context.Context, playerID int64, state domain.ActivityState) error
}

type SnapshotStore interface {
	Insert(ctx context.Context, snapshot *domain.Snapshot) error
	Latest(ctx context.Context, playerID int64) (*domain.Snapshot, error)
}

// Poller runs the poll-detect-record loop: one sequential pass over the
// roster per cycle, then a sleep. A transport failure aborts the rest of
// the cycle and stretches the sleep; a clean cycle resets it.
type Poller struct {
	client    StatsClient
	roster    RosterSource
	players   PlayerStore
	snapshots SnapshotStore
	seasons   *SeasonTracker
	logger    zerolog.Logger

	base     time.Duration
	interval time.Duration

	lastRecheck time.Time
	now         func() time.Time
}

func NewPoller(
	client StatsClient,
	roster RosterSource,
	players PlayerStore,
	snapshots SnapshotStore,
	seasons *SeasonTracker,
	baseInterval time.Duration,
	logger zerolog.Logger,
) *Poller {
	if baseInterval <= 0 {
		baseInterval = constants.BasePollInterval
	}
	return &Poller{
		client:    client,
		roster:    roster,
		players:   players,
		snapshots: snapshots,
		seasons:   seasons,
		logger:    logger,
		base:      baseInterval,
		interval:  baseInterval,
		now:       time.Now,
	}
}

// Interval is the current sleep between cycles, including any backoff.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Run loops cycles until the context is cancelled. Cancellation is
// honored between players and at the sleep boundary, never in the middle
// of a single player's update.
func (p *Poller) Run(ctx context.Context) {
	for {
		if err := p.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info().Msg("poller stopped")
				return
			}
			p.logger.Error().Err(err).Dur("interval", p.interval).Msg("poll cycle aborted")
		}

		p.logger.Info().Dur("interval", p.interval).Msg("sleeping until next cycle")
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("poller stopped")
			return
		case <-time.After(p.interval):
		}
	}
}

// RunCycle polls the roster once. On a transport failure it extends the
// sleep interval by the backoff step and stops early; after a full clean
// pass it resets the interval to the base.
func (p *Poller) RunCycle(ctx context.Context) error {
	now := p.now()
	expand := p.recheckDue(now)

	roster, err := p.roster.Roster(ctx, expand)
	if err != nil {
		p.extendBackoff()
		return err
	}
	if expand {
		p.lastRecheck = now
		p.logger.Info().Int("roster_size", len(roster)).Msg("weekly recheck: polling dormant players too")
	}

	p.logger.Info().Int("roster_size", len(roster)).Msg("poll cycle started")

	for i := range roster {
		if err := ctx.Err(); err != nil {
			return err
		}

		player := &roster[i]
		if err := p.pollPlayer(ctx, player); err != nil {
			p.extendBackoff()
			if errors.Is(err, api.ErrTransport) {
				p.logger.Warn().
					Err(err).
					Str("username", player.Username).
					Dur("interval", p.interval).
					Msg("transport failure, backing off")
			} else {
				p.logger.Error().
					Err(err).
					Str("username", player.Username).
					Dur("interval", p.interval).
					Msg("player update failed, backing off")
			}
			return err
		}
	}

	p.interval = p.base
	p.logger.Info().Msg("poll cycle completed")
	return nil
}

func (p *Poller) pollPlayer(ctx context.Context, player *domain.Player) error {
	fetchCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	profile, err := p.client.FetchProfile(fetchCtx, player.Platform, player.Region, player.Username)
	if err != nil {
		return err
	}

	// once fetched, the player's update runs to completion even if the
	// operator interrupts; cancellation is honored between players
	ctx = context.WithoutCancel(ctx)

	latest, err := p.snapshots.Latest(ctx, player.ID)
	if err != nil {
		return err
	}

	now := p.now()
	switchDue, err := p.seasons.SwitchDue(ctx, now)
	if err != nil {
		return err
	}

	verdict := Evaluate(player, latest, profile, now, switchDue)

	log := p.logger.With().
		Str("username", player.Username).
		Str("platform", player.Platform).
		Str("region", player.Region).
		Str("verdict", verdict.Kind.String()).
		Logger()

	switch verdict.Kind {
	case VerdictUnchanged:
		log.Debug().Int("games", player.GamesPlayed).Msg("no new games")
		return nil

	case VerdictStillInactive:
		log.Info().Msg("no change for over a week, marking inactive")
		return p.players.SetState(ctx, player.ID, domain.StateInactive)

	case VerdictBecamePrivate:
		log.Info().Msg("profile is private")
		return p.players.SetState(ctx, player.ID, domain.StatePrivate)

	case VerdictNotFound:
		log.Warn().Str("provider_error", profile.Error).Msg("player not found at provider")
		return p.players.SetState(ctx, player.ID, domain.StateError)

	case VerdictMalformedPayload:
		log.Warn().Msg("payload missing required fields, skipping player")
		return nil

	case VerdictNoPlacements:
		log.Info().Msg("games played but no placement rating yet, waiting")
		return nil

	case VerdictNewSnapshot:
		return p.recordSnapshot(ctx, player, profile, verdict, log)
	}

	return nil
}

func (p *Poller) recordSnapshot(ctx context.Context, player *domain.Player, profile *api.Profile, verdict Verdict, log zerolog.Logger) error {
	season, err := p.seasons.Current(ctx)
	if err != nil {
		return err
	}
	if verdict.Rollover {
		season, err = p.seasons.Advance(ctx)
		if err != nil {
			return err
		}
	}

	snapshot := verdict.Snapshot
	snapshot.PlayerID = player.ID
	snapshot.Season = season.Number

	if err := p.snapshots.Insert(ctx, snapshot); err != nil {
		return err
	}
	if err := p.players.UpdateStats(ctx, player.ID, snapshot.GamesPlayed, profile.Endorsement, profile.Icon); err != nil {
		return err
	}

	log.Info().
		Int("season", season.Number).
		Int("games", snapshot.GamesPlayed).
		Int("games_delta", snapshot.GamesPlayed-player.GamesPlayed).
		Int("rating", snapshot.RatingAvg).
		Bool("rollover", verdict.Rollover).
		Msg("snapshot recorded")
	return nil
}

func (p *Poller) extendBackoff() {
	p.interval += constants.BackoffStep
}

// recheckDue fires on the first cycle that starts on the recheck weekday
// before the cutoff hour, at most once per day regardless of how many
// cycles land inside the window.
func (p *Poller) recheckDue(now time.Time) bool {
	if now.Weekday() != constants.RecheckWeekday || now.Hour() >= constants.RecheckCutoffHour {
		return false
	}
	y1, m1, d1 := p.lastRecheck.Date()
	y2, m2, d2 := now.Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}
