package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/awareness/internal/world"
)

const sampleSnapshot = `
version: 7
turn: 150
taken_at: 2026-03-01T12:00:00Z
sections:
  economic:
    fields:
      gdp: 45000
      unemployment_rate: 3.2
    areas: [capital_region]
  military:
    fields:
      threat_level: moderate
    events:
      recent_military_events:
        - id: mil-1
          title: Border skirmish
          impact: major
          classification: confidential
          areas: [outer_rim]
`

func TestParse_Snapshot(t *testing.T) {
	s, err := Parse([]byte(sampleSnapshot))
	require.NoError(t, err)

	assert.Equal(t, int64(7), s.Version)
	assert.Equal(t, 150, s.Turn)
	assert.Equal(t, 2026, s.TakenAt.Year())

	econ := s.Section(world.CategoryEconomic)
	require.NotNil(t, econ)
	assert.Equal(t, 45000, econ.Fields["gdp"])
	assert.Equal(t, 3.2, econ.Fields["unemployment_rate"])
	assert.Equal(t, []string{"capital_region"}, econ.Areas)

	mil := s.Section(world.CategoryMilitary)
	require.NotNil(t, mil)
	events := mil.Events["recent_military_events"]
	require.Len(t, events, 1)
	assert.Equal(t, "mil-1", events[0].ID)
	assert.Equal(t, "confidential", events[0].Classification)

	assert.Nil(t, s.Section(world.CategorySocial))
}

func TestParse_RejectsUnknownTopLevelKey(t *testing.T) {
	_, err := Parse([]byte("version: 1\nsectoins: {}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sectoins")
}

func TestParse_AcceptsJSON(t *testing.T) {
	s, err := Parse([]byte(`{"version": 3, "sections": {"social": {"fields": {"population_happiness": 78}}}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.Version)
	assert.Equal(t, 78, s.Section(world.CategorySocial).Fields["population_happiness"])
}

func TestLoadDir_OrdersByVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("version: 2\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("version: 9\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.json"), []byte(`{"version": 4}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	snaps, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, int64(2), snaps[0].Version)
	assert.Equal(t, int64(4), snaps[1].Version)
	assert.Equal(t, int64(9), snaps[2].Version)
}

func TestLoadDir_DuplicateVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("version: 2\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("version: 2\n"), 0644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate snapshot version 2")
}

func TestSliceSource_YieldsInOrderThenNil(t *testing.T) {
	src := NewSliceSource(snap(1, 1), snap(2, 2))
	ctx := context.Background()

	s, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Version)
	assert.Equal(t, 1, src.Remaining())

	s, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.Version)

	s, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
}
