package fx

import (
	"github.com/IvyChu/owstats/internal/api"
	"github.com/IvyChu/owstats/internal/chart"
	"github.com/IvyChu/owstats/internal/config"
	"github.com/IvyChu/owstats/internal/database"
	"github.com/IvyChu/owstats/internal/logger"
	"github.com/IvyChu/owstats/internal/repository"
	"github.com/IvyChu/owstats/internal/roster"
	"github.com/IvyChu/owstats/internal/server"
	"github.com/IvyChu/owstats/internal/tracker"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func provideSeasonTracker(seasons *repository.SeasonRepository, log zerolog.Logger) *tracker.SeasonTracker {
	return tracker.NewSeasonTracker(seasons, log)
}

func provideRosterSource(players *repository.PlayerRepository, log zerolog.Logger) *roster.Source {
	return roster.NewSource(players, log)
}

func providePoller(
	client *api.Client,
	source *roster.Source,
	players *repository.PlayerRepository,
	snapshots *repository.SnapshotRepository,
	seasons *tracker.SeasonTracker,
	cfg *config.Config,
	log zerolog.Logger,
) *tracker.Poller {
	return tracker.NewPoller(client, source, players, snapshots, seasons, cfg.PollInterval, log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewSnapshotRepository),
	fx.Provide(repository.NewSeasonRepository),
	// api client
	fx.Provide(api.NewClient),
	// core
	fx.Provide(provideSeasonTracker),
	fx.Provide(provideRosterSource),
	fx.Provide(providePoller),
	// presentation
	fx.Provide(chart.NewRenderer),
	fx.Provide(server.New),
)
