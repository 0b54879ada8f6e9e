package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"famcal/internal/config"
	"famcal/internal/feed"
	"famcal/internal/layout"
	appLog "famcal/internal/log"
)

const (
	dateLayout = "2006-01-02"

	maxLayoutBody = 1 << 20
)

// Snapshotter supplies the current event snapshot.
type Snapshotter interface {
	Snapshot() feed.Snapshot
}

// Server exposes the event snapshot and its day-view layouts over HTTP.
type Server struct {
	cfg       *config.Config
	layoutCfg layout.Config
	loc       *time.Location
	store     Snapshotter
	now       func() time.Time
	mux       *http.ServeMux

	// Day views keyed by date, valid for one snapshot version.
	cacheMu sync.Mutex
	cache   dayCache
}

type dayCache struct {
	version uint64
	views   map[string]layout.DayView
}

// NewServer constructs a new Server. cfg must be normalized.
func NewServer(cfg *config.Config, store Snapshotter) *Server {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", cfg.Timezone)
	}
	s := &Server{
		cfg:       cfg,
		layoutCfg: cfg.LayoutConfig(),
		loc:       loc,
		store:     store,
		now:       time.Now,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="famcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/day", s.handleDay)
	s.mux.HandleFunc("GET /api/week", s.handleWeek)
	s.mux.HandleFunc("POST /api/layout", s.handleLayout)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

// handleDay returns the layout of one day.
//
// GET /api/day?date=2024-01-15 (default: today in the display timezone)
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	date, err := s.parseDate(r.URL.Query().Get("date"), s.today())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date; want YYYY-MM-DD")
		return
	}

	snap := s.store.Snapshot()
	view, err := s.dayView(snap, date)
	if err != nil {
		writeLayoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// weekResponse is the JSON response shape for /api/week.
type weekResponse struct {
	Version uint64           `json:"version"`
	Days    []layout.DayView `json:"days"`
}

// handleWeek returns seven consecutive day layouts, computed concurrently.
//
// GET /api/week?start=2024-01-15 (default: first day of the current week
// per week_start)
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	start, err := s.parseDate(r.URL.Query().Get("start"), s.weekStart(s.today()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start; want YYYY-MM-DD")
		return
	}

	snap := s.store.Snapshot()
	resp := weekResponse{Version: snap.Version, Days: make([]layout.DayView, 7)}

	var g errgroup.Group
	for i := range resp.Days {
		g.Go(func() error {
			view, err := s.dayView(snap, start.AddDate(0, 0, i))
			resp.Days[i] = view
			return err
		})
	}
	if err := g.Wait(); err != nil {
		writeLayoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLayout lays out caller-supplied events without touching the
// snapshot or the cache.
//
// POST /api/layout?date=2024-01-15 with a JSON array of events.
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	date, err := s.parseDate(r.URL.Query().Get("date"), s.today())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date; want YYYY-MM-DD")
		return
	}

	events, err := layout.DecodeEvents(http.MaxBytesReader(w, r.Body, maxLayoutBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeLayoutError(w, err)
		return
	}

	view, err := layout.LayoutDay(events, date, s.layoutCfg)
	if err != nil {
		writeLayoutError(w, err)
		return
	}
	logWarnings(view)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) dayView(snap feed.Snapshot, date time.Time) (layout.DayView, error) {
	key := date.Format(dateLayout)

	s.cacheMu.Lock()
	if s.cache.version != snap.Version || s.cache.views == nil {
		s.cache = dayCache{version: snap.Version, views: make(map[string]layout.DayView)}
	}
	view, ok := s.cache.views[key]
	s.cacheMu.Unlock()
	if ok {
		return view, nil
	}

	view, err := layout.LayoutDay(snap.Events, date, s.layoutCfg)
	if err != nil {
		return layout.DayView{}, err
	}
	logWarnings(view)

	s.cacheMu.Lock()
	if s.cache.version == snap.Version {
		s.cache.views[key] = view
	}
	s.cacheMu.Unlock()
	return view, nil
}

func (s *Server) today() time.Time {
	now := s.now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
}

func (s *Server) weekStart(day time.Time) time.Time {
	first := time.Monday
	if s.cfg.WeekStart == "sunday" {
		first = time.Sunday
	}
	back := (int(day.Weekday()) - int(first) + 7) % 7
	return day.AddDate(0, 0, -back)
}

func (s *Server) parseDate(v string, def time.Time) (time.Time, error) {
	if v == "" {
		return def, nil
	}
	return time.ParseInLocation(dateLayout, v, s.loc)
}

func logWarnings(view layout.DayView) {
	for _, w := range view.Warnings {
		appLog.Warn("layout warning", "date", view.Date, "code", w.Code, "event_id", w.EventID, "detail", w.Message)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errResp struct {
	Error string      `json:"error"`
	Code  layout.Code `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}

func writeLayoutError(w http.ResponseWriter, err error) {
	var le *layout.Error
	if errors.As(err, &le) {
		writeJSON(w, http.StatusBadRequest, errResp{Error: le.Message, Code: le.Code})
		return
	}
	appLog.Error("layout failed", err)
	writeError(w, http.StatusInternalServerError, "layout failed")
}
