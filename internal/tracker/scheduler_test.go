package tracker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/IvyChu/owstats/internal/api"
	"github.com/IvyChu/owstats/internal/constants"
	"github.com/IvyChu/owstats/internal/domain"
	"github.com/rs/zerolog"
)

type fakeClient struct {
	profiles map[string]*api.Profile
	errs     map[string]error
	calls    []string
}

func (c *fakeClient) FetchProfile(ctx context.Context, platform, region, username string) (*api.Profile, error) {
	c.calls = append(c.calls, username)
	if err, ok := c.errs[username]; ok {
		return nil, err
	}
	p, ok := c.profiles[username]
	if !ok {
		return nil, fmt.Errorf("%w: no fixture for %s", api.ErrTransport, username)
	}
	return p, nil
}

type fakeRoster struct {
	active        []domain.Player
	dormant       []domain.Player
	expandedCalls int
}

func (r *fakeRoster) Roster(ctx context.Context, includeDormant bool) ([]domain.Player, error) {
	if includeDormant {
		r.expandedCalls++
		return append(append([]domain.Player{}, r.active...), r.dormant...), nil
	}
	return r.active, nil
}

type fakePlayers struct {
	states map[int64]domain.ActivityState
	games  map[int64]int
}

func newFakePlayers() *fakePlayers {
	return &fakePlayers{
		states: make(map[int64]domain.ActivityState),
		games:  make(map[int64]int),
	}
}

func (p *fakePlayers) UpdateStats(ctx context.Context, playerID int64, gamesPlayed, endorsement int, icon string) error {
	p.games[playerID] = gamesPlayed
	p.states[playerID] = domain.StateActive
	return nil
}

func (p *fakePlayers) SetState(ctx context.Context, playerID int64, state domain.ActivityState) error {
	p.states[playerID] = state
	return nil
}

type fakeSnapshots struct {
	latest   map[int64]*domain.Snapshot
	inserted []domain.Snapshot
}

func (s *fakeSnapshots) Insert(ctx context.Context, snapshot *domain.Snapshot) error {
	s.inserted = append(s.inserted, *snapshot)
	return nil
}

func (s *fakeSnapshots) Latest(ctx context.Context, playerID int64) (*domain.Snapshot, error) {
	if s.latest == nil {
		return nil, nil
	}
	return s.latest[playerID], nil
}

type fakeSeasonStore struct {
	seasons []*domain.Season
}

func (s *fakeSeasonStore) Current(ctx context.Context) (*domain.Season, error) {
	if len(s.seasons) == 0 {
		return nil, nil
	}
	return s.seasons[len(s.seasons)-1], nil
}

func (s *fakeSeasonStore) Insert(ctx context.Context, number int, nextSwitch *time.Time) (*domain.Season, error) {
	season := &domain.Season{
		ID:             int64(len(s.seasons) + 1),
		Number:         number,
		NextSwitchDate: nextSwitch,
	}
	s.seasons = append(s.seasons, season)
	return season, nil
}

type pollerFixture struct {
	poller    *Poller
	client    *fakeClient
	roster    *fakeRoster
	players   *fakePlayers
	snapshots *fakeSnapshots
	seasons   *fakeSeasonStore
}

func newPollerFixture(t *testing.T, active ...domain.Player) *pollerFixture {
	t.Helper()
	f := &pollerFixture{
		client:    &fakeClient{profiles: map[string]*api.Profile{}, errs: map[string]error{}},
		roster:    &fakeRoster{active: active},
		players:   newFakePlayers(),
		snapshots: &fakeSnapshots{latest: map[int64]*domain.Snapshot{}},
		seasons:   &fakeSeasonStore{},
	}
	tracker := NewSeasonTracker(f.seasons, zerolog.Nop())
	f.poller = NewPoller(f.client, f.roster, f.players, f.snapshots, tracker, constants.BasePollInterval, zerolog.Nop())
	f.poller.now = func() time.Time { return evalNow }
	return f
}

func activePlayer(id int64, username string, gamesPlayed int) domain.Player {
	return domain.Player{
		ID:          id,
		Username:    username,
		Region:      "us",
		Platform:    "psn",
		GamesPlayed: gamesPlayed,
		State:       domain.StateActive,
	}
}

func TestRunCycleRecordsSnapshot(t *testing.T) {
	f := newPollerFixture(t, activePlayer(1, "ana", 100))
	f.seasons.Insert(context.Background(), 5, nil)
	f.client.profiles["ana"] = profileWith(105, 52, 2800, []api.RoleRating{{Role: "tank", Level: 2800}})

	if err := f.poller.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if len(f.snapshots.inserted) != 1 {
		t.Fatalf("inserted %d snapshots, want 1", len(f.snapshots.inserted))
	}
	snap := f.snapshots.inserted[0]
	if snap.Season != 5 || snap.PlayerID != 1 || snap.GamesPlayed != 105 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if f.players.games[1] != 105 {
		t.Fatalf("stored games = %d, want 105", f.players.games[1])
	}
	if got := f.poller.Interval(); got != constants.BasePollInterval {
		t.Fatalf("interval = %v, want base", got)
	}
}

func TestTransportFailureAbortsCycle(t *testing.T) {
	f := newPollerFixture(t,
		activePlayer(1, "ana", 100),
		activePlayer(2, "zen", 200),
	)
	f.client.errs["ana"] = fmt.Errorf("%w: dial tcp: lookup failed", api.ErrTransport)

	if err := f.poller.RunCycle(context.Background()); err == nil {
		t.Fatal("RunCycle returned nil, want transport error")
	}

	if len(f.client.calls) != 1 {
		t.Fatalf("fetched %d players after failure, want 1", len(f.client.calls))
	}
	if got := f.poller.Interval(); got != constants.BasePollInterval+constants.BackoffStep {
		t.Fatalf("interval = %v, want base+step", got)
	}

	// a second failing cycle keeps extending, no cap
	if err := f.poller.RunCycle(context.Background()); err == nil {
		t.Fatal("second RunCycle returned nil, want transport error")
	}
	if got := f.poller.Interval(); got != constants.BasePollInterval+2*constants.BackoffStep {
		t.Fatalf("interval = %v, want base+2*step", got)
	}

	// a clean cycle resets to the base interval
	delete(f.client.errs, "ana")
	f.seasons.Insert(context.Background(), 1, nil)
	f.client.profiles["ana"] = profileWith(100, 50, 2500, nil)
	f.client.profiles["zen"] = profileWith(200, 90, 3000, nil)
	if err := f.poller.RunCycle(context.Background()); err != nil {
		t.Fatalf("clean RunCycle: %v", err)
	}
	if got := f.poller.Interval(); got != constants.BasePollInterval {
		t.Fatalf("interval after clean cycle = %v, want base", got)
	}
}

func TestRolloverAdvancesSeasonOnce(t *testing.T) {
	f := newPollerFixture(t,
		activePlayer(1, "ana", 300),
		activePlayer(2, "zen", 250),
	)
	switchDate := evalNow.Add(-48 * time.Hour)
	f.seasons.Insert(context.Background(), 3, &switchDate)
	f.client.profiles["ana"] = profileWith(10, 5, 3000, nil)
	f.client.profiles["zen"] = profileWith(8, 4, 2700, nil)

	if err := f.poller.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if len(f.seasons.seasons) != 2 {
		t.Fatalf("seasons = %d, want 2 (one advance)", len(f.seasons.seasons))
	}
	current := f.seasons.seasons[len(f.seasons.seasons)-1]
	if current.Number != 4 {
		t.Fatalf("current season = %d, want 4", current.Number)
	}
	if current.NextSwitchDate != nil {
		t.Fatal("advanced season has a switch date, want unset")
	}
	if len(f.snapshots.inserted) != 2 {
		t.Fatalf("inserted %d snapshots, want 2", len(f.snapshots.inserted))
	}
	for _, snap := range f.snapshots.inserted {
		if snap.Season != 4 {
			t.Fatalf("snapshot season = %d, want 4", snap.Season)
		}
	}
}

func TestStillInactiveMarksPlayer(t *testing.T) {
	f := newPollerFixture(t, activePlayer(1, "ana", 100))
	f.seasons.Insert(context.Background(), 1, nil)
	f.snapshots.latest[1] = snapshotAgedDays(10)
	f.client.profiles["ana"] = profileWith(100, 50, 2500, nil)

	if err := f.poller.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if f.players.states[1] != domain.StateInactive {
		t.Fatalf("state = %s, want inactive", f.players.states[1])
	}
	if len(f.snapshots.inserted) != 0 {
		t.Fatalf("inserted %d snapshots, want 0", len(f.snapshots.inserted))
	}
}

func TestNoPlacementsWritesNothing(t *testing.T) {
	f := newPollerFixture(t, activePlayer(1, "ana", 100))
	f.seasons.Insert(context.Background(), 1, nil)
	f.client.profiles["ana"] = profileWith(105, 52, 0, nil)

	if err := f.poller.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if len(f.snapshots.inserted) != 0 {
		t.Fatalf("inserted %d snapshots, want 0", len(f.snapshots.inserted))
	}
	if _, ok := f.players.games[1]; ok {
		t.Fatal("stored games_played was updated, want untouched for re-detection")
	}
}

func TestProviderStatesTransitionPlayers(t *testing.T) {
	f := newPollerFixture(t,
		activePlayer(1, "gone", 100),
		activePlayer(2, "hidden", 100),
	)
	f.seasons.Insert(context.Background(), 1, nil)
	f.client.profiles["gone"] = &api.Profile{Error: "Player not found"}
	f.client.profiles["hidden"] = &api.Profile{Private: true}

	if err := f.poller.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if f.players.states[1] != domain.StateError {
		t.Fatalf("state = %s, want error", f.players.states[1])
	}
	if f.players.states[2] != domain.StatePrivate {
		t.Fatalf("state = %s, want private", f.players.states[2])
	}
}

func TestMalformedPayloadSkipsPlayerOnly(t *testing.T) {
	f := newPollerFixture(t,
		activePlayer(1, "broken", 100),
		activePlayer(2, "fine", 200),
	)
	f.seasons.Insert(context.Background(), 1, nil)
	f.client.profiles["broken"] = &api.Profile{Rating: 2500} // no competitiveStats
	f.client.profiles["fine"] = profileWith(205, 100, 3000, nil)

	if err := f.poller.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if len(f.snapshots.inserted) != 1 || f.snapshots.inserted[0].PlayerID != 2 {
		t.Fatalf("inserted = %+v, want one snapshot for player 2", f.snapshots.inserted)
	}
	if got := f.poller.Interval(); got != constants.BasePollInterval {
		t.Fatalf("interval = %v, want base (malformed payload is not a transport failure)", got)
	}
}

func TestWeeklyRecheckFiresOncePerWeek(t *testing.T) {
	f := newPollerFixture(t, activePlayer(1, "ana", 100))
	f.roster.dormant = []domain.Player{
		{ID: 2, Username: "idle", Region: "us", Platform: "psn", State: domain.StateInactive, GamesPlayed: 50},
	}
	f.seasons.Insert(context.Background(), 1, nil)
	f.client.profiles["ana"] = profileWith(100, 50, 2500, nil)
	f.client.profiles["idle"] = profileWith(50, 20, 2000, nil)

	// Monday 02:00, inside the recheck window
	monday := time.Date(2026, 8, 24, 2, 0, 0, 0, time.UTC)
	if monday.Weekday() != time.Monday {
		t.Fatal("fixture date is not a Monday")
	}
	f.poller.now = func() time.Time { return monday }

	if err := f.poller.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if f.roster.expandedCalls != 1 {
		t.Fatalf("expanded calls = %d, want 1", f.roster.expandedCalls)
	}

	// a second cycle in the same window must not expand again
	f.poller.now = func() time.Time { return monday.Add(30 * time.Minute) }
	if err := f.poller.RunCycle(context.Background()); err != nil {
		t.Fatalf("second RunCycle: %v", err)
	}
	if f.roster.expandedCalls != 1 {
		t.Fatalf("expanded calls = %d, want still 1", f.roster.expandedCalls)
	}

	// Monday after the cutoff hour never expands
	f2 := newPollerFixture(t, activePlayer(1, "ana", 100))
	f2.seasons.Insert(context.Background(), 1, nil)
	f2.client.profiles["ana"] = profileWith(100, 50, 2500, nil)
	f2.poller.now = func() time.Time { return monday.Add(4 * time.Hour) }
	if err := f2.poller.RunCycle(context.Background()); err != nil {
		t.Fatalf("after-cutoff RunCycle: %v", err)
	}
	if f2.roster.expandedCalls != 0 {
		t.Fatalf("expanded calls = %d, want 0", f2.roster.expandedCalls)
	}
}

func TestCancelledContextStopsCycle(t *testing.T) {
	f := newPollerFixture(t, activePlayer(1, "ana", 100))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.poller.RunCycle(ctx); err == nil {
		t.Fatal("RunCycle with cancelled context returned nil")
	}
	if len(f.snapshots.inserted) != 0 {
		t.Fatal("writes occurred after cancellation")
	}
}
