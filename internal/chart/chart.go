package chart

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/IvyChu/owstats/internal/config"
	"github.com/IvyChu/owstats/internal/domain"
	"github.com/rs/zerolog"
	gochart "github.com/wcharczuk/go-chart/v2"
)

// Renderer draws a player's rating history for one season as a PNG at a
// path derived from (platform, region, username, season).
type Renderer struct {
	dir    string
	logger zerolog.Logger
}

func NewRenderer(cfg *config.Config, logger zerolog.Logger) (*Renderer, error) {
	if err := os.MkdirAll(cfg.ChartDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chart dir %s: %w", cfg.ChartDir, err)
	}
	return &Renderer{dir: cfg.ChartDir, logger: logger}, nil
}

func (r *Renderer) Path(platform, region, username string, season int) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s-%s-%s-season-%d.png", platform, region, username, season))
}

// Render writes the chart file and returns its path. Snapshots must be in
// creation order and non-empty.
func (r *Renderer) Render(player *domain.Player, season int, snapshots []domain.Snapshot) (string, error) {
	if len(snapshots) == 0 {
		return "", fmt.Errorf("no snapshots for %s season %d", player.Username, season)
	}

	series := []gochart.Series{
		ratingSeries("average", snapshots, func(s domain.Snapshot) *int { v := s.RatingAvg; return &v }),
	}
	roles := []struct {
		name string
		pick func(domain.Snapshot) *int
	}{
		{"tank", func(s domain.Snapshot) *int { return s.RatingTank }},
		{"damage", func(s domain.Snapshot) *int { return s.RatingDamage }},
		{"support", func(s domain.Snapshot) *int { return s.RatingSupport }},
	}
	for _, role := range roles {
		if s := ratingSeries(role.name, snapshots, role.pick); s != nil {
			series = append(series, s)
		}
	}

	graph := gochart.Chart{
		Title:  fmt.Sprintf("%s — season %d", player.Username, season),
		Width:  900,
		Height: 450,
		XAxis: gochart.XAxis{
			ValueFormatter: gochart.TimeDateValueFormatter,
		},
		Series: series,
	}

	path := r.Path(player.Platform, player.Region, player.Username, season)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create chart file %s: %w", path, err)
	}
	defer f.Close()

	if err := graph.Render(gochart.PNG, f); err != nil {
		return "", fmt.Errorf("failed to render chart %s: %w", path, err)
	}

	r.logger.Debug().
		Str("path", path).
		Str("username", player.Username).
		Int("season", season).
		Int("points", len(snapshots)).
		Msg("chart rendered")
	return path, nil
}

// ratingSeries builds a time series from the snapshots where pick yields a
// value; nil when no snapshot carries the rating at all.
func ratingSeries(name string, snapshots []domain.Snapshot, pick func(domain.Snapshot) *int) gochart.Series {
	var xs []time.Time
	var ys []float64
	for _, s := range snapshots {
		if v := pick(s); v != nil {
			xs = append(xs, s.CreatedAt)
			ys = append(ys, float64(*v))
		}
	}
	if len(xs) == 0 {
		return nil
	}
	// the chart package needs at least two points to compute a range
	if len(xs) == 1 {
		xs = append(xs, xs[0].Add(time.Minute))
		ys = append(ys, ys[0])
	}
	return gochart.TimeSeries{Name: name, XValues: xs, YValues: ys}
}
