// Package world provides the shared data model of the awareness engine.
//
// This package contains type definitions and small value helpers only. All
// other internal packages import world; world imports nothing internal.
//
// Key design constraints:
//   - Snapshots are immutable once pushed into history (see Snapshot.Clone)
//   - Categories are iterated in a fixed order (Categories) for determinism
//   - Ordered enums (ImpactLevel, Priority, Tier) compare with < and >
//   - All JSON/YAML tags use snake_case
package world
