package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"

	"github.com/IvyChu/owstats/internal/config"
	"github.com/IvyChu/owstats/internal/constants"
	fxmodules "github.com/IvyChu/owstats/internal/fx"
	"github.com/IvyChu/owstats/internal/middleware"
	"github.com/IvyChu/owstats/internal/roster"
	"github.com/IvyChu/owstats/internal/server"
	"github.com/IvyChu/owstats/internal/tracker"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

type runOptions struct {
	Continuous bool
}

func main() {
	continuous := flag.Bool("c", false, "run the continuous poll loop instead of a single cycle")
	flag.Parse()

	fx.New(
		fxmodules.Module,
		fx.Supply(runOptions{Continuous: *continuous}),
		fx.Invoke(seedRoster),
		fx.Invoke(run),
	).Run()
}

func seedRoster(cfg *config.Config, source *roster.Source, logger zerolog.Logger) error {
	if cfg.RosterPath == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()
	if err := source.SeedFromFile(ctx, cfg.RosterPath); err != nil {
		logger.Error().Err(err).Str("path", cfg.RosterPath).Msg("roster seed failed")
		return err
	}
	return nil
}

func run(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	opts runOptions,
	webServer *server.Server,
	poller *tracker.Poller,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	if !opts.Continuous {
		runOnce(lc, shutdowner, poller, db, logger)
		return
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	requestID := middleware.RequestID(logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: requestID(c.Handler(webServer.Routes())),
	}

	pollCtx, cancelPoll := context.WithCancel(context.Background())
	g := new(errgroup.Group)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			g.Go(func() error {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})
			g.Go(func() error {
				poller.Run(pollCtx)
				return nil
			})
			go func() {
				if err := g.Wait(); err != nil {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down")
			cancelPoll()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			logger.Info().Msg("stopped gracefully")
			return nil
		},
	})
}

// runOnce executes exactly one poll cycle, then asks fx to shut down.
func runOnce(lc fx.Lifecycle, shutdowner fx.Shutdowner, poller *tracker.Poller, db *sql.DB, logger zerolog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := poller.RunCycle(context.Background()); err != nil {
					logger.Error().Err(err).Msg("poll cycle failed")
				}
				if err := shutdowner.Shutdown(); err != nil {
					logger.Error().Err(err).Msg("shutdown failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			return nil
		},
	})
}
