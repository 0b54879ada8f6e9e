package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famcal/internal/config"
	"famcal/internal/feed"
	"famcal/internal/layout"
	"famcal/internal/model"
)

type fakeStore struct {
	snap  feed.Snapshot
	calls atomic.Int32
}

func (f *fakeStore) Snapshot() feed.Snapshot {
	f.calls.Add(1)
	return f.snap
}

func newTestServer(t *testing.T, events []model.CalendarEvent) (*Server, *fakeStore) {
	t.Helper()
	cfg := config.DefaultConfig()
	store := &fakeStore{snap: feed.Snapshot{Version: 1, Events: events}}
	s := NewServer(cfg, store)
	s.now = func() time.Time { return time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC) }
	return s, store
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var mondayEvents = []model.CalendarEvent{
	{ID: "A", Title: "Breakfast", Start: "2024-01-15T09:00", End: "10:00"},
	{ID: "B", Title: "School run", Start: "2024-01-15T09:30", End: "10:30"},
	{ID: "C", Title: "Groceries", Start: "2024-01-15T11:00", End: "12:00"},
	{ID: "D", Title: "Piano", Start: "2024-01-17T16:00"},
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestDay(t *testing.T) {
	s, _ := newTestServer(t, mondayEvents)

	rec := do(t, s.Handler(), http.MethodGet, "/api/day?date=2024-01-15", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view layout.DayView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "2024-01-15", view.Date)
	assert.Equal(t, 2, view.Columns)
	require.Len(t, view.Events, 3)
	assert.Equal(t, "School run", view.Events[1].Title)
	assert.InDelta(t, 50, view.Events[1].Layout.Left, 1e-9)
	assert.InDelta(t, 50, view.Events[2].Layout.Width, 1e-9)
}

func TestDay_DefaultsToToday(t *testing.T) {
	s, _ := newTestServer(t, mondayEvents)

	rec := do(t, s.Handler(), http.MethodGet, "/api/day", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view layout.DayView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "2024-01-17", view.Date)
	require.Len(t, view.Events, 1)
	assert.Equal(t, "D", view.Events[0].ID)
}

func TestDay_BadDate(t *testing.T) {
	s, _ := newTestServer(t, mondayEvents)
	rec := do(t, s.Handler(), http.MethodGet, "/api/day?date=15.01.2024", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDay_CachedPerVersion(t *testing.T) {
	s, store := newTestServer(t, mondayEvents)

	do(t, s.Handler(), http.MethodGet, "/api/day?date=2024-01-15", "")
	assert.Len(t, s.cache.views, 1)

	store.snap = feed.Snapshot{Version: 2, Events: mondayEvents[:1]}
	rec := do(t, s.Handler(), http.MethodGet, "/api/day?date=2024-01-15", "")

	var view layout.DayView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Len(t, view.Events, 1)
	assert.EqualValues(t, 2, s.cache.version)
}

func TestWeek(t *testing.T) {
	s, _ := newTestServer(t, mondayEvents)

	rec := do(t, s.Handler(), http.MethodGet, "/api/week", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp weekResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Days, 7)
	assert.EqualValues(t, 1, resp.Version)
	assert.Equal(t, "2024-01-15", resp.Days[0].Date)
	assert.Equal(t, "2024-01-21", resp.Days[6].Date)
	assert.Len(t, resp.Days[0].Events, 3)
	assert.Empty(t, resp.Days[1].Events)
	assert.Len(t, resp.Days[2].Events, 1)
}

func TestWeek_SundayStart(t *testing.T) {
	s, _ := newTestServer(t, mondayEvents)
	s.cfg.WeekStart = "sunday"

	rec := do(t, s.Handler(), http.MethodGet, "/api/week", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp weekResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-01-14", resp.Days[0].Date)
}

func TestLayout(t *testing.T) {
	s, store := newTestServer(t, nil)

	body := `[
		{"id": "x", "title": "Swim", "start": "2024-01-15T09:00", "end": "10:00"},
		{"id": "y", "title": "Broken", "start": "2024-01-15Tlater"}
	]`
	rec := do(t, s.Handler(), http.MethodPost, "/api/layout?date=2024-01-15", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var view layout.DayView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Len(t, view.Events, 2)
	require.Len(t, view.Warnings, 1)
	assert.Equal(t, layout.CodeMalformedTimeValue, view.Warnings[0].Code)
	assert.Zero(t, store.calls.Load())
}

func TestLayout_InvalidShape(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s.Handler(), http.MethodPost, "/api/layout?date=2024-01-15", `{"events": []}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, layout.CodeInvalidInputShape, resp.Code)
}

func TestLayout_BodyTooLarge(t *testing.T) {
	s, _ := newTestServer(t, nil)

	body := `[{"id": "x", "title": "` + strings.Repeat("a", maxLayoutBody) + `", "start": "2024-01-15T09:00"}]`
	rec := do(t, s.Handler(), http.MethodPost, "/api/layout?date=2024-01-15", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestLayout_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/layout", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	s, _ := newTestServer(t, mondayEvents)
	s.cfg.BasicAuth = &config.BasicAuthConfig{Username: "family", Password: "secret"}
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/events", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("family", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
