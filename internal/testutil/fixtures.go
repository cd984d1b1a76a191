// Package testutil holds deterministic clocks and world fixtures shared by
// package tests.
package testutil

import (
	"io"
	"log/slog"
	"time"

	"github.com/roach88/awareness/internal/world"
)

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Fields maps a category to its scalar fields.
type Fields map[world.Category]map[string]any

// Snapshot builds a snapshot with one section per entry of fields.
// TakenAt is Epoch plus version minutes.
func Snapshot(version int64, fields Fields) *world.Snapshot {
	s := &world.Snapshot{
		Version:  version,
		Turn:     int(version),
		TakenAt:  Epoch.Add(time.Duration(version) * time.Minute),
		Sections: make(map[world.Category]*world.Section, len(fields)),
	}
	for cat, fs := range fields {
		sec := &world.Section{Fields: make(map[string]any, len(fs))}
		for k, v := range fs {
			sec.Fields[k] = v
		}
		s.Sections[cat] = sec
	}
	return s
}

// Military returns a snapshot whose only section is military with the
// given threat level.
func Military(version int64, threat string) *world.Snapshot {
	return Snapshot(version, Fields{
		world.CategoryMilitary: {"threat_level": threat},
	})
}

// Profile builds a subscriber profile. Capabilities are derived when the
// profile is registered.
func Profile(id string, clearance int, accessTags ...string) world.SubscriberProfile {
	return world.SubscriberProfile{
		ID:         id,
		Name:       id,
		Clearance:  clearance,
		AccessTags: accessTags,
	}
}
