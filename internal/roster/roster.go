package roster

import (
	"context"
	"fmt"
	"os"

	"github.com/IvyChu/owstats/internal/domain"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// PlayerStore is the slice of the player repository the roster needs.
type PlayerStore interface {
	ListByStates(ctx context.Context, states ...domain.ActivityState) ([]domain.Player, error)
	GetByIdentity(ctx context.Context, platform, region, username string) (*domain.Player, error)
	Create(ctx context.Context, player *domain.Player) error
}

// Source supplies the ordered list of players a poll cycle should visit.
type Source struct {
	players PlayerStore
	logger  zerolog.Logger
}

func NewSource(players PlayerStore, logger zerolog.Logger) *Source {
	return &Source{players: players, logger: logger}
}

// Roster lists active players; with includeDormant it also returns the
// inactive, private and errored accounts for the weekly recheck.
func (s *Source) Roster(ctx context.Context, includeDormant bool) ([]domain.Player, error) {
	if includeDormant {
		return s.players.ListByStates(ctx,
			domain.StateActive,
			domain.StateInactive,
			domain.StatePrivate,
			domain.StateError,
		)
	}
	return s.players.ListByStates(ctx, domain.StateActive)
}

type seedFile struct {
	Players []seedEntry `yaml:"players"`
}

type seedEntry struct {
	Username  string `yaml:"username"`
	Region    string `yaml:"region"`
	Platform  string `yaml:"platform"`
	Battletag string `yaml:"battletag"`
}

// SeedFromFile inserts the accounts listed in a YAML file that are not
// tracked yet, so a fresh database starts with a roster.
func (s *Source) SeedFromFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read roster seed %s: %w", path, err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse roster seed %s: %w", path, err)
	}

	added := 0
	for _, entry := range seed.Players {
		if entry.Username == "" || entry.Region == "" || entry.Platform == "" {
			return fmt.Errorf("roster seed %s: entry missing username, region or platform", path)
		}

		existing, err := s.players.GetByIdentity(ctx, entry.Platform, entry.Region, entry.Username)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		player := &domain.Player{
			Username:  entry.Username,
			Region:    entry.Region,
			Platform:  entry.Platform,
			Battletag: entry.Battletag,
			State:     domain.StateActive,
		}
		if err := s.players.Create(ctx, player); err != nil {
			return err
		}
		added++
	}

	s.logger.Info().
		Str("path", path).
		Int("entries", len(seed.Players)).
		Int("added", added).
		Msg("roster seed applied")
	return nil
}
