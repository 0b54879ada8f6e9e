// Package feed keeps the current snapshot of household events that the day
// view is computed from. A snapshot is replaced as a whole on every refresh
// and carries a version, so callers can key cached layouts on it.
package feed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"famcal/internal/ics"
	"famcal/internal/layout"
	appLog "famcal/internal/log"
	"famcal/internal/model"
)

// eventIDSpace namespaces derived IDs for events that arrive without one.
var eventIDSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("famcal:events"))

// Fetcher is the part of ics.Fetcher the store needs.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, []error)
}

// Options configures a Store.
type Options struct {
	// EventsFile is an optional JSON array of events.
	EventsFile string

	Sources []ics.Source
	Fetcher Fetcher

	// Location is the display zone for ICS occurrences.
	Location *time.Location

	// BackfillDays / HorizonDays bound the ICS expansion around now.
	BackfillDays int
	HorizonDays  int

	// Now defaults to time.Now.
	Now func() time.Time
}

// Snapshot is an immutable set of events.
type Snapshot struct {
	Version   uint64                `json:"version"`
	UpdatedAt time.Time             `json:"updated_at"`
	Events    []model.CalendarEvent `json:"events"`
}

// Store holds the latest Snapshot.
type Store struct {
	opts Options

	mu   sync.RWMutex
	snap Snapshot
}

// NewStore returns a Store with an empty version-0 snapshot.
func NewStore(opts Options) *Store {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		opts: opts,
		snap: Snapshot{Events: []model.CalendarEvent{}},
	}
}

// Snapshot returns the current snapshot. Its Events must not be modified.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Refresh reloads the events file and every ICS source and swaps in a new
// snapshot. A failing ICS source is logged and left out; a broken events
// file fails the refresh and keeps the previous snapshot.
func (s *Store) Refresh(ctx context.Context) error {
	events, err := s.loadFile()
	if err != nil {
		return err
	}

	icsEvents, err := s.loadICS(ctx)
	if err != nil {
		return err
	}
	events = append(events, icsEvents...)

	s.mu.Lock()
	s.snap = Snapshot{
		Version:   s.snap.Version + 1,
		UpdatedAt: s.opts.Now(),
		Events:    events,
	}
	version := s.snap.Version
	s.mu.Unlock()

	appLog.Info("feed refreshed", "version", version, "event_count", len(events))
	return nil
}

func (s *Store) loadFile() ([]model.CalendarEvent, error) {
	if s.opts.EventsFile == "" {
		return []model.CalendarEvent{}, nil
	}

	f, err := os.Open(s.opts.EventsFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			appLog.Warn("events file not found; skipping", "path", s.opts.EventsFile)
			return []model.CalendarEvent{}, nil
		}
		return nil, err
	}
	defer f.Close()

	events, err := layout.DecodeEvents(f)
	if err != nil {
		return nil, fmt.Errorf("events file %s: %w", s.opts.EventsFile, err)
	}
	kept := events[:0]
	for i, ev := range events {
		if ev.ID == "" {
			ev.ID = deriveID(i, ev)
		}
		// Undated events fit no day; report them once here rather than on
		// every day that is laid out.
		if err := layout.CheckDate(ev); err != nil {
			appLog.Warn("events file: event skipped", "path", s.opts.EventsFile, "event_id", ev.ID, "err", err)
			continue
		}
		kept = append(kept, ev)
	}
	return kept, nil
}

func (s *Store) loadICS(ctx context.Context) ([]model.CalendarEvent, error) {
	if len(s.opts.Sources) == 0 || s.opts.Fetcher == nil {
		return nil, nil
	}

	results, errs := s.opts.Fetcher.FetchAll(ctx, s.opts.Sources)
	if len(errs) > 0 {
		appLog.Warn("feed: some ICS sources failed", "error_count", len(errs), "err", errors.Join(errs...))
	}

	var parsed []ics.ParsedEvent
	for _, res := range results {
		events, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("feed: ICS parse failed", err, "source", res.Source.ID)
			continue
		}
		parsed = append(parsed, events...)
	}

	now := s.opts.Now().In(s.opts.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.opts.Location)
	expanded, err := ics.Expand(parsed, ics.ExpandConfig{
		DisplayLocation: s.opts.Location,
		RangeStart:      today.AddDate(0, 0, -s.opts.BackfillDays),
		RangeEnd:        today.AddDate(0, 0, s.opts.HorizonDays+1),
	})
	if err != nil {
		return nil, fmt.Errorf("expand ICS: %w", err)
	}
	if expanded.AllDay > 0 {
		appLog.Debug("feed: all-day occurrences left out of the timed view", "count", expanded.AllDay)
	}
	return expanded.Events, nil
}

// deriveID gives an event without an ID one that stays the same as long as
// its position and times in the file do.
func deriveID(i int, ev model.CalendarEvent) string {
	key := fmt.Sprintf("%d\x00%s\x00%s\x00%s", i, ev.Title, ev.Start, ev.End)
	return uuid.NewSHA1(eventIDSpace, []byte(key)).String()
}
