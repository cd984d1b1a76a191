// Package harness runs YAML scenarios against the real engine.
//
// A scenario names a roster, then lists steps executed in order. Every
// cycle is triggered explicitly, clocks and run ids are fixed, so the
// same scenario always produces the same trace.
//
// # Scenario Format
//
//	name: military_escalation
//	description: "A critical threat reaches cleared officers only"
//	roster: roster.yaml
//	steps:
//	  - register: [gen-okafor, reporter-lin]
//	  - snapshot:
//	      version: 1
//	      sections:
//	        military: {fields: {threat_level: moderate}}
//	  - cycle: true
//	  - push: snapshots/v2.yaml
//	  - inject: {category: political, subcategory: beats, description: "...", impact_level: major}
//	  - unregister: [reporter-lin]
//	  - cycle: true
//	assertions:
//	  - type: notification_count
//	    subscriber: gen-okafor
//	    count: 1
//	  - type: notification_has
//	    subscriber: gen-okafor
//	    expect: {type: security_briefing, priority: urgent, tier: classified}
//	  - type: change_count
//	    cycle: 2
//	    count: 1
//
// Paths (roster, push) are relative to the scenario file. Rosters are
// validated against the CUE roster schema before any step runs.
//
// # Golden Traces
//
// RunWithGolden compares the scenario trace against
// testdata/scenarios/golden/<name>.golden, the same layout the
// `awareness test` command reads. Regenerate with:
//
//	go test ./internal/harness -update
package harness
