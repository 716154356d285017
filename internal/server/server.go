package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pauljones0/cph-deal-finder/internal/models"
	"github.com/pauljones0/cph-deal-finder/internal/pipeline"
	"github.com/pauljones0/cph-deal-finder/internal/processor"
	"github.com/pauljones0/cph-deal-finder/internal/storage"
)

const (
	loadFailedMessage = "Failed to load deals. Try refreshing."

	geoErrUnavailable = "Location unavailable. Share your location to sort by distance."
	geoErrInvalid     = "Invalid location coordinates."
)

// DealViewer builds ranked and map views for a set of criteria.
type DealViewer interface {
	View(ctx context.Context, c pipeline.Criteria) (processor.View, error)
	Map(ctx context.Context, c pipeline.Criteria) (processor.MapView, error)
}

// StatsSource provides catalog statistics.
type StatsSource interface {
	Stats(ctx context.Context) (models.StatsResponse, error)
}

// LocationResolver resolves single labels and drops all cached resolutions.
type LocationResolver interface {
	Resolve(ctx context.Context, label string) (models.Coordinate, bool)
	Clear(ctx context.Context) error
}

// CacheCounter reports the number of persisted resolutions.
type CacheCounter interface {
	Len(ctx context.Context) (int, error)
}

// ThemeStore persists the viewer's theme.
type ThemeStore interface {
	Theme(ctx context.Context, viewer string) string
	SetTheme(ctx context.Context, viewer, theme string) error
}

// Options configures a Server.
type Options struct {
	PageSize    int
	SessionIdle time.Duration
}

// Server exposes the deal pipeline over HTTP.
type Server struct {
	deals    DealViewer
	stats    StatsSource
	resolver LocationResolver
	cache    CacheCounter
	themes   ThemeStore
	sessions *sessions
	mux      *http.ServeMux
}

func New(deals DealViewer, stats StatsSource, resolver LocationResolver, cache CacheCounter, themes ThemeStore, opts Options) *Server {
	if opts.PageSize <= 0 {
		opts.PageSize = pipeline.PageSize
	}
	if opts.SessionIdle <= 0 {
		opts.SessionIdle = 30 * time.Minute
	}
	s := &Server{
		deals:    deals,
		stats:    stats,
		resolver: resolver,
		cache:    cache,
		themes:   themes,
		sessions: newSessions(opts.PageSize, opts.SessionIdle),
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /api/deals", s.handleDeals)
	s.mux.HandleFunc("GET /api/map", s.handleMap)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/geocode", s.handleGeocode)
	s.mux.HandleFunc("GET /api/geocode/cache", s.handleCacheSize)
	s.mux.HandleFunc("DELETE /api/geocode/cache", s.handleCacheClear)
	s.mux.HandleFunc("GET /api/preferences/theme", s.handleGetTheme)
	s.mux.HandleFunc("PUT /api/preferences/theme", s.handleSetTheme)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// RunSweeper evicts idle sessions until ctx is done.
func (s *Server) RunSweeper(ctx context.Context) {
	interval := s.sessions.idle / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	s.sessions.runSweeper(ctx, interval)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dealJSON is a deal annotated with its distance from the viewer.
type dealJSON struct {
	models.Deal
	DistanceKm *float64 `json:"distance_km"`
}

type dealsResponse struct {
	Deals     []dealJSON       `json:"deals"`
	Total     int              `json:"total"`
	Visible   int              `json:"visible"`
	HasMore   bool             `json:"has_more"`
	Remaining int              `json:"remaining"`
	Sort      pipeline.SortKey `json:"sort"`
	Source    string           `json:"source"`
	GeoError  string           `json:"geo_error,omitempty"`
}

func (s *Server) handleDeals(w http.ResponseWriter, r *http.Request) {
	params, err := parseViewParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess := s.sessions.get(w, r)
	c, geoErr := s.withPosition(sess, params)

	if sess.pager.Observe(c) {
		slog.Debug("Pager reset", "session", sess.id)
	}
	if params.more {
		sess.pager.ShowMore()
	}

	view, err := s.deals.View(r.Context(), c)
	if err != nil {
		slog.Error("Failed to build deal view", "source", c.Source.Kind().String(), "error", err)
		writeLoadFailed(w)
		return
	}

	page := pipeline.Paginate(view.Deals, sess.pager.Visible())
	out := dealsResponse{
		Deals:     make([]dealJSON, 0, len(page.Deals)),
		Total:     page.Total,
		Visible:   page.Visible,
		HasMore:   page.HasMore,
		Remaining: page.Remaining,
		Sort:      effectiveSort(c),
		Source:    c.Source.Kind().String(),
		GeoError:  geoErr,
	}
	for _, d := range page.Deals {
		item := dealJSON{Deal: d}
		if km, ok := view.Distances[d.ID]; ok {
			item.DistanceKm = &km
		}
		out.Deals = append(out.Deals, item)
	}
	writeJSON(w, http.StatusOK, out)
}

type mapResponse struct {
	processor.MapView
	GeoError string `json:"geo_error,omitempty"`
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	params, err := parseViewParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess := s.sessions.get(w, r)
	c, geoErr := s.withPosition(sess, params)

	view, err := s.deals.Map(r.Context(), c)
	if err != nil {
		slog.Error("Failed to build map view", "source", c.Source.Kind().String(), "error", err)
		writeLoadFailed(w)
		return
	}
	writeJSON(w, http.StatusOK, mapResponse{MapView: view, GeoError: geoErr})
}

// withPosition attaches the viewer's position to the criteria when near-me is on.
// A fresh lat/lng pair replaces the remembered one.
func (s *Server) withPosition(sess *session, p viewParams) (pipeline.Criteria, string) {
	c := p.criteria
	now := s.sessions.now()

	pos, given, err := p.position()
	if err != nil {
		if c.NearMe {
			return c, geoErrInvalid
		}
		return c, ""
	}
	if given {
		sess.setPosition(pos, now)
	}
	if !c.NearMe {
		return c, ""
	}
	if recent, ok := sess.recentPosition(now); ok {
		c.User = &recent
		return c, ""
	}
	return c, geoErrUnavailable
}

// effectiveSort is the order the ranker actually applies.
func effectiveSort(c pipeline.Criteria) pipeline.SortKey {
	if _, ok := c.UserPosition(); ok {
		return pipeline.SortNearest
	}
	if c.Source.Kind() == pipeline.SourceExpiring {
		return pipeline.SortExpiring
	}
	return c.Sort
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		slog.Error("Failed to load stats", "error", err)
		writeLoadFailed(w)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type geocodeResponse struct {
	Location string             `json:"location"`
	Found    bool               `json:"found"`
	Position *models.Coordinate `json:"position"`
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	label := strings.TrimSpace(r.URL.Query().Get("location"))
	if label == "" {
		writeError(w, http.StatusBadRequest, "location is required")
		return
	}
	out := geocodeResponse{Location: label}
	if c, ok := s.resolver.Resolve(r.Context(), label); ok {
		out.Found = true
		out.Position = &c
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCacheSize(w http.ResponseWriter, r *http.Request) {
	n, err := s.cache.Len(r.Context())
	if err != nil {
		slog.Warn("Failed to count cached locations", "error", err)
		writeError(w, http.StatusServiceUnavailable, "location cache unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"entries": n})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.resolver.Clear(r.Context()); err != nil {
		slog.Warn("Failed to clear location cache", "error", err)
		writeError(w, http.StatusServiceUnavailable, "location cache unavailable")
		return
	}
	slog.Info("Location cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

type themeBody struct {
	Theme string `json:"theme"`
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.get(w, r)
	writeJSON(w, http.StatusOK, themeBody{Theme: s.themes.Theme(r.Context(), sess.id)})
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var body themeBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := s.sessions.get(w, r)
	if err := s.themes.SetTheme(r.Context(), sess.id, body.Theme); err != nil {
		if errors.Is(err, storage.ErrInvalidTheme) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Warn("Failed to store theme preference", "session", sess.id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "preferences unavailable")
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

type errorBody struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: true, Message: msg})
}

func writeLoadFailed(w http.ResponseWriter) {
	writeError(w, http.StatusBadGateway, loadFailedMessage)
}
