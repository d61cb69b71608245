package tracker

import (
	"time"

	"github.com/IvyChu/owstats/internal/api"
	"github.com/IvyChu/owstats/internal/constants"
	"github.com/IvyChu/owstats/internal/domain"
)

type VerdictKind int

const (
	// VerdictUnchanged means the games-played count matches the stored
	// value; nothing is written.
	VerdictUnchanged VerdictKind = iota
	// VerdictStillInactive is Unchanged with the latest snapshot older
	// than the inactivity threshold; the player moves to the inactive
	// state.
	VerdictStillInactive
	// VerdictNewSnapshot means the games-played count changed and the
	// snapshot carried on the verdict should be recorded.
	VerdictNewSnapshot
	// VerdictNoPlacements means games were played but the aggregate
	// rating is still zero; nothing is written so the change is
	// re-detected once a real rating exists.
	VerdictNoPlacements
	// VerdictBecamePrivate means the provider reports the profile as
	// private.
	VerdictBecamePrivate
	// VerdictNotFound means the provider reports the account as gone.
	VerdictNotFound
	// VerdictMalformedPayload means required fields were missing from the
	// payload; the player's update is skipped with no partial writes.
	VerdictMalformedPayload
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictUnchanged:
		return "unchanged"
	case VerdictStillInactive:
		return "still_inactive"
	case VerdictNewSnapshot:
		return "new_snapshot"
	case VerdictNoPlacements:
		return "no_placements"
	case VerdictBecamePrivate:
		return "became_private"
	case VerdictNotFound:
		return "not_found"
	case VerdictMalformedPayload:
		return "malformed_payload"
	}
	return "unknown"
}

// Verdict classifies one fetch result. Snapshot is populated only for
// VerdictNewSnapshot, with PlayerID and Season left for the caller to
// attach once the season question is settled.
type Verdict struct {
	Kind     VerdictKind
	Rollover bool
	Snapshot *domain.Snapshot
}

// Evaluate decides what a freshly fetched profile means for a tracked
// player. It is a pure function of the stored state, the payload, the
// clock and the switch-due flag; season state is passed in, never read
// ambiently.
//
// A games-played counter that went backwards only counts as a season
// rollover when switchDue confirms the global switch date has passed.
// Season changes are global; a single player's drop without a due switch
// is recorded as an ordinary in-season update (a known provider quirk).
func Evaluate(player *domain.Player, latest *domain.Snapshot, profile *api.Profile, now time.Time, switchDue bool) Verdict {
	if profile.Error != "" {
		return Verdict{Kind: VerdictNotFound}
	}
	if profile.Private {
		return Verdict{Kind: VerdictBecamePrivate}
	}
	if profile.CompetitiveStats == nil || profile.CompetitiveStats.Games == nil {
		return Verdict{Kind: VerdictMalformedPayload}
	}

	games := profile.CompetitiveStats.Games.Played
	if games == player.GamesPlayed {
		if latest != nil && now.Sub(latest.CreatedAt) > constants.InactiveAfter {
			return Verdict{Kind: VerdictStillInactive}
		}
		return Verdict{Kind: VerdictUnchanged}
	}

	if profile.Rating == 0 {
		return Verdict{Kind: VerdictNoPlacements}
	}

	snapshot := &domain.Snapshot{
		GamesPlayed: games,
		GamesWon:    profile.CompetitiveStats.Games.Won,
		RatingAvg:   profile.Rating,
	}
	for _, rr := range profile.Ratings {
		level := rr.Level
		switch rr.Role {
		case "tank":
			snapshot.RatingTank = &level
		case "damage":
			snapshot.RatingDamage = &level
		case "support":
			snapshot.RatingSupport = &level
		}
	}

	return Verdict{
		Kind:     VerdictNewSnapshot,
		Rollover: games < player.GamesPlayed && switchDue,
		Snapshot: snapshot,
	}
}
