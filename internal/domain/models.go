package domain

import (
	"time"
)

// ActivityState classifies how a tracked player is polled.
type ActivityState string

const (
	// StateActive players are polled every cycle.
	StateActive ActivityState = "active"
	// StateInactive players showed no change for more than a week and are
	// only polled during the weekly recheck.
	StateInactive ActivityState = "inactive"
	// StatePrivate players have their profile hidden by the provider.
	StatePrivate ActivityState = "private"
	// StateError players could not be found at the provider.
	StateError ActivityState = "error"
)

type Player struct {
	ID          int64
	Username    string
	Region      string
	Platform    string
	Battletag   string
	Icon        string
	Endorsement int
	GamesPlayed int
	State       ActivityState
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Snapshot is one recorded observation of a player's competitive stats.
// Immutable once written. Role ratings are nil when the provider did not
// report that role, which is different from a rating of zero.
type Snapshot struct {
	ID            string // nanoid
	PlayerID      int64
	Season        int
	GamesPlayed   int
	GamesWon      int
	RatingAvg     int
	RatingTank    *int
	RatingDamage  *int
	RatingSupport *int
	CreatedAt     time.Time
}

type Season struct {
	ID             int64
	Number         int
	NextSwitchDate *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WinPercentage derives a win rate from the latest snapshot.
func WinPercentage(latest *Snapshot) float64 {
	if latest == nil || latest.GamesPlayed == 0 {
		return 0
	}
	return float64(latest.GamesWon) / float64(latest.GamesPlayed) * 100
}
