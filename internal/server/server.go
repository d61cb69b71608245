package server

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"strconv"

	"github.com/IvyChu/owstats/internal/api"
	"github.com/IvyChu/owstats/internal/chart"
	"github.com/IvyChu/owstats/internal/domain"
	"github.com/IvyChu/owstats/internal/repository"
	"github.com/IvyChu/owstats/internal/tracker"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

var regionChoices = map[string]string{
	"us":   "US",
	"eu":   "EU",
	"asia": "Asia",
}

var platformChoices = map[string]string{
	"pc":              "PC",
	"psn":             "Playstation",
	"xbl":             "XBox",
	"nintendo-switch": "Nintendo Switch",
}

// Server renders the web UI: player list, per-player stats with charts,
// the add-player form and the season admin view. It only ever reads
// committed snapshot history; the poller does all the writing.
type Server struct {
	players   *repository.PlayerRepository
	snapshots *repository.SnapshotRepository
	seasons   *tracker.SeasonTracker
	client    *api.Client
	charts    *chart.Renderer
	logger    zerolog.Logger
	templates *template.Template
}

func New(
	players *repository.PlayerRepository,
	snapshots *repository.SnapshotRepository,
	seasons *tracker.SeasonTracker,
	client *api.Client,
	charts *chart.Renderer,
	logger zerolog.Logger,
) (*Server, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Server{
		players:   players,
		snapshots: snapshots,
		seasons:   seasons,
		client:    client,
		charts:    charts,
		logger:    logger,
		templates: templates,
	}, nil
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /player/{username}", s.handlePlayer)
	mux.HandleFunc("GET /charts/{platform}/{region}/{username}/{season}", s.handleChart)
	mux.HandleFunc("GET /add", s.handleAddForm)
	mux.HandleFunc("POST /add", s.handleAdd)
	mux.HandleFunc("GET /seasons", s.handleSeasons)
	return mux
}

type playerRow struct {
	Player  domain.Player
	Rating  int
	WinPct  float64
	HasData bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	players, err := s.players.ListAll(ctx)
	if err != nil {
		s.renderError(w, err)
		return
	}

	rows := make([]playerRow, 0, len(players))
	for _, p := range players {
		row := playerRow{Player: p}
		latest, err := s.snapshots.Latest(ctx, p.ID)
		if err != nil {
			s.renderError(w, err)
			return
		}
		if latest != nil {
			row.HasData = true
			row.Rating = latest.RatingAvg
			row.WinPct = domain.WinPercentage(latest)
		}
		rows = append(rows, row)
	}

	s.render(w, "index.html", map[string]any{
		"Rows": rows,
	})
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := r.PathValue("username")

	player, err := s.players.GetByUsername(ctx, username)
	if err != nil {
		s.renderError(w, err)
		return
	}
	if player == nil {
		http.NotFound(w, r)
		return
	}

	seasons, err := s.snapshots.Seasons(ctx, player.ID)
	if err != nil {
		s.renderError(w, err)
		return
	}

	selected := 0
	if len(seasons) > 0 {
		selected = seasons[0]
	}
	if q := r.URL.Query().Get("season"); q != "" {
		if n, err := strconv.Atoi(q); err == nil {
			selected = n
		}
	}

	var snapshots []domain.Snapshot
	if selected > 0 {
		snapshots, err = s.snapshots.ListBySeason(ctx, player.ID, selected)
		if err != nil {
			s.renderError(w, err)
			return
		}
	}

	var latest *domain.Snapshot
	if len(snapshots) > 0 {
		latest = &snapshots[len(snapshots)-1]
	}

	s.render(w, "player.html", map[string]any{
		"Player":    player,
		"Seasons":   seasons,
		"Selected":  selected,
		"Snapshots": snapshots,
		"WinPct":    domain.WinPercentage(latest),
	})
}

// handleChart serves the season chart, regenerating it when snapshots
// newer than the rendered file exist.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	platform := r.PathValue("platform")
	region := r.PathValue("region")
	username := r.PathValue("username")

	season, err := strconv.Atoi(r.PathValue("season"))
	if err != nil {
		http.Error(w, "invalid season", http.StatusBadRequest)
		return
	}

	player, err := s.players.GetByIdentity(ctx, platform, region, username)
	if err != nil {
		s.renderError(w, err)
		return
	}
	if player == nil {
		http.NotFound(w, r)
		return
	}

	snapshots, err := s.snapshots.ListBySeason(ctx, player.ID, season)
	if err != nil {
		s.renderError(w, err)
		return
	}
	if len(snapshots) == 0 {
		http.NotFound(w, r)
		return
	}

	path := s.charts.Path(platform, region, username, season)
	if stale(path, snapshots) {
		if _, err := s.charts.Render(player, season, snapshots); err != nil {
			s.renderError(w, err)
			return
		}
	}

	http.ServeFile(w, r, path)
}

func stale(path string, snapshots []domain.Snapshot) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return snapshots[len(snapshots)-1].CreatedAt.After(info.ModTime())
}

func (s *Server) handleAddForm(w http.ResponseWriter, r *http.Request) {
	s.renderAddForm(w, "", nil)
}

// handleAdd validates the form and creates the player on the first
// successful, non-private lookup; the next poll cycle records the first
// snapshot.
func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	username := r.PostFormValue("username")
	region := r.PostFormValue("region")
	platform := r.PostFormValue("platform")

	if username == "" {
		s.renderAddForm(w, "Username is required.", r.PostForm)
		return
	}
	if _, ok := regionChoices[region]; !ok {
		s.renderAddForm(w, "Pick a region.", r.PostForm)
		return
	}
	if _, ok := platformChoices[platform]; !ok {
		s.renderAddForm(w, "Pick a platform.", r.PostForm)
		return
	}

	existing, err := s.players.GetByIdentity(ctx, platform, region, username)
	if err != nil {
		s.renderError(w, err)
		return
	}
	if existing != nil {
		http.Redirect(w, r, "/player/"+username, http.StatusSeeOther)
		return
	}

	profile, err := s.client.FetchProfile(ctx, platform, region, username)
	if err != nil {
		if errors.Is(err, api.ErrTransport) {
			s.renderAddForm(w, "Stats provider is unreachable, try again later.", r.PostForm)
			return
		}
		s.renderError(w, err)
		return
	}
	if profile.Error != "" {
		s.renderAddForm(w, "Player not found: "+profile.Error, r.PostForm)
		return
	}
	if profile.Private {
		s.renderAddForm(w, "That profile is private and cannot be tracked.", r.PostForm)
		return
	}

	player := &domain.Player{
		Username:    username,
		Region:      region,
		Platform:    platform,
		Icon:        profile.Icon,
		Endorsement: profile.Endorsement,
		State:       domain.StateActive,
	}
	if err := s.players.Create(ctx, player); err != nil {
		s.renderError(w, err)
		return
	}

	s.logger.Info().
		Str("username", username).
		Str("platform", platform).
		Str("region", region).
		Msg("player added")
	http.Redirect(w, r, "/player/"+username, http.StatusSeeOther)
}

func (s *Server) renderAddForm(w http.ResponseWriter, errMsg string, form map[string][]string) {
	value := func(key string) string {
		if form == nil {
			return ""
		}
		if v, ok := form[key]; ok && len(v) > 0 {
			return v[0]
		}
		return ""
	}
	s.render(w, "add.html", map[string]any{
		"Error":     errMsg,
		"Username":  value("username"),
		"Region":    value("region"),
		"Platform":  value("platform"),
		"Regions":   regionChoices,
		"Platforms": platformChoices,
	})
}

func (s *Server) handleSeasons(w http.ResponseWriter, r *http.Request) {
	season, err := s.seasons.Current(r.Context())
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.render(w, "seasons.html", map[string]any{
		"Season": season,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error().Err(err).Str("template", name).Msg("template render failed")
	}
}

func (s *Server) renderError(w http.ResponseWriter, err error) {
	s.logger.Error().Err(err).Msg("request failed")
	http.Error(w, "internal error", http.StatusInternalServerError)
}
