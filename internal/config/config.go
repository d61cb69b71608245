package config

import (
	"os"
	"strconv"
	"time"

	"github.com/IvyChu/owstats/internal/constants"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	BaseURL      string
	DBPath       string
	ServerPort   string
	LogLevel     string
	PollInterval time.Duration
	RosterPath   string
	ChartDir     string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		BaseURL:      getEnv("OWSTATS_BASE_URL", "https://ow-api.com/v1/stats"),
		DBPath:       getEnv("DB_PATH", "owstats.db"),
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		PollInterval: getDurationMinutes("POLL_INTERVAL", constants.BasePollInterval),
		RosterPath:   getEnv("ROSTER_PATH", ""),
		ChartDir:     getEnv("CHART_DIR", "charts"),
	}

	logger.Info().
		Str("base_url", cfg.BaseURL).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Dur("poll_interval", cfg.PollInterval).
		Str("chart_dir", cfg.ChartDir).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDurationMinutes(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			return time.Duration(minutes) * time.Minute
		}
	}
	return fallback
}

var Module = fx.Provide(Load)
