package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/IvyChu/owstats/internal/config"
	"github.com/IvyChu/owstats/internal/constants"
	"github.com/IvyChu/owstats/internal/database"
	"github.com/IvyChu/owstats/internal/logger"
	"github.com/IvyChu/owstats/internal/repository"
	"github.com/rs/zerolog"
)

const usage = `usage: seasonctl <command>

commands:
  current                 show the current season
  set-season <n>          make season n current
  set-next <YYYY/MM/DD>   set the next switch date on the current season
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	log := logger.SetLevel(zerolog.WarnLevel)

	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	seasons := repository.NewSeasonRepository(db, log)

	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	switch os.Args[1] {
	case "current":
		season, err := seasons.Current(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to read current season")
		}
		if season == nil {
			fmt.Println("no season configured")
			return
		}
		if season.NextSwitchDate != nil {
			fmt.Printf("season %d, next switch %s\n", season.Number, season.NextSwitchDate.Format("2006/01/02"))
		} else {
			fmt.Printf("season %d, next switch date not set\n", season.Number)
		}

	case "set-season":
		if len(os.Args) != 3 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		number, err := strconv.Atoi(os.Args[2])
		if err != nil || number < 1 {
			fmt.Fprintf(os.Stderr, "invalid season number %q\n", os.Args[2])
			os.Exit(2)
		}
		if _, err := seasons.Insert(ctx, number, nil); err != nil {
			log.Fatal().Err(err).Msg("failed to set season")
		}
		fmt.Printf("season %d is now current\n", number)

	case "set-next":
		if len(os.Args) != 3 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		next, err := time.Parse("2006/01/02", os.Args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid date %q, expected YYYY/MM/DD\n", os.Args[2])
			os.Exit(2)
		}
		current, err := seasons.Current(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to read current season")
		}
		if current == nil {
			fmt.Fprintln(os.Stderr, "no season configured, run set-season first")
			os.Exit(1)
		}
		if err := seasons.SetNextSwitchDate(ctx, current.ID, next); err != nil {
			log.Fatal().Err(err).Msg("failed to set next switch date")
		}
		fmt.Printf("season %d will switch after %s\n", current.Number, next.Format("2006/01/02"))

	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}
