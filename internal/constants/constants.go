package constants

import "time"

const (
	// BasePollInterval is the sleep between clean poll cycles.
	BasePollInterval = 5 * time.Minute

	// BackoffStep is added to the sleep interval after a transport
	// failure. Linear, uncapped.
	BackoffStep = 15 * time.Minute

	// InactiveAfter is how old the latest snapshot must be, with no
	// games-played change, before a player is marked inactive.
	InactiveAfter = 7 * 24 * time.Hour
)

// Weekly expanded scan: the first cycle starting on RecheckWeekday before
// RecheckCutoffHour also polls inactive, private and errored players.
const (
	RecheckWeekday    = time.Monday
	RecheckCutoffHour = 3
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)
