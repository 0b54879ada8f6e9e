package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famcal/internal/layout"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
timezone: Europe/Berlin
week_start: friday
ics:
  - id: school
    url: https://example.com/school.ics
layout:
  window_start: "06:30"
  window_end: "nope"
  width_mode: cluster
  match_mode: label
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
	assert.Equal(t, "monday", cfg.WeekStart)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Len(t, cfg.ICS, 1)
	assert.Equal(t, "06:30", cfg.Layout.WindowStart)
	assert.Equal(t, "22:00", cfg.Layout.WindowEnd)
	assert.Equal(t, "cluster", cfg.Layout.WidthMode)
	assert.Equal(t, "date", cfg.Layout.MatchMode)
	assert.Equal(t, 15, cfg.Layout.SlotCount)
	assert.Equal(t, 60, cfg.Layout.DefaultDurationMinutes)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestLayoutConfig(t *testing.T) {
	offset := 0.0
	cfg := DefaultConfig()
	cfg.Layout.WindowStart = "06:00"
	cfg.Layout.WindowEnd = "24:00"
	cfg.Layout.SlotOffsetPercent = &offset
	cfg.Layout.OmitHidden = true
	cfg.Normalize()

	got := cfg.LayoutConfig()
	assert.Equal(t, 360, got.WindowStartMinute)
	assert.Equal(t, 1440, got.WindowEndMinute)
	assert.Equal(t, 15, got.SlotCount)
	assert.Equal(t, 60, got.DefaultDurationMinutes)
	assert.Equal(t, layout.WidthDay, got.WidthMode)
	assert.Equal(t, layout.MatchDate, got.MatchMode)
	assert.True(t, got.OmitHidden)
	require.NotNil(t, got.SlotOffsetPercent)
	assert.Zero(t, *got.SlotOffsetPercent)
}

func TestDefaultLayoutMatchesEngine(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, layout.DefaultConfig(), cfg.LayoutConfig())
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Asia/Seoul"
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", loc.String())

	cfg.Timezone = "Mars/Olympus"
	loc, err = cfg.Location()
	assert.Error(t, err)
	assert.Equal(t, "UTC", loc.String())
}
