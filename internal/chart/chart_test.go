package chart

import (
	"os"
	"testing"
	"time"

	"github.com/IvyChu/owstats/internal/config"
	"github.com/IvyChu/owstats/internal/domain"
	"github.com/rs/zerolog"
)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(&config.Config{ChartDir: t.TempDir()}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r
}

func ratingAt(daysAgo, avg int, tank *int) domain.Snapshot {
	return domain.Snapshot{
		RatingAvg:  avg,
		RatingTank: tank,
		CreatedAt:  time.Now().UTC().Add(-time.Duration(daysAgo) * 24 * time.Hour),
	}
}

func TestRender(t *testing.T) {
	player := &domain.Player{Username: "Cats-11111", Platform: "psn", Region: "us"}

	t.Run("PathIsDeterministic", func(t *testing.T) {
		r := testRenderer(t)
		a := r.Path("psn", "us", "Cats-11111", 22)
		b := r.Path("psn", "us", "Cats-11111", 22)
		if a != b {
			t.Fatalf("paths differ: %s vs %s", a, b)
		}
		if c := r.Path("psn", "us", "Cats-11111", 23); c == a {
			t.Fatal("different seasons share a chart path")
		}
	})

	t.Run("WritesPNG", func(t *testing.T) {
		r := testRenderer(t)
		tank := 2800
		snapshots := []domain.Snapshot{
			ratingAt(3, 2700, nil),
			ratingAt(2, 2750, &tank),
			ratingAt(1, 2800, &tank),
		}

		path, err := r.Render(player, 22, snapshots)
		if err != nil {
			t.Fatalf("Render: %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("chart file missing: %v", err)
		}
		if info.Size() == 0 {
			t.Fatal("chart file is empty")
		}
	})

	t.Run("SinglePointStillRenders", func(t *testing.T) {
		r := testRenderer(t)
		path, err := r.Render(player, 22, []domain.Snapshot{ratingAt(1, 2800, nil)})
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("chart file missing: %v", err)
		}
	})

	t.Run("NoSnapshotsFails", func(t *testing.T) {
		r := testRenderer(t)
		if _, err := r.Render(player, 22, nil); err == nil {
			t.Fatal("Render accepted an empty season")
		}
	})
}
