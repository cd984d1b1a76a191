// Package roster loads subscriber rosters.
//
// A roster is a YAML or CUE file listing subscribers. Both forms are
// validated against the embedded CUE schema (closed definitions, so
// unknown keys are rejected) before any profile reaches the registry.
// Entries that omit clearance or tags take their archetype's defaults.
package roster

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/awareness/internal/registry"
	"github.com/roach88/awareness/internal/world"
)

//go:embed schema.cue
var schemaCUE string

// Entry is one subscriber as written in a roster file.
type Entry struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Archetype   string   `json:"archetype,omitempty"`
	Clearance   *int     `json:"clearance_level,omitempty"`
	AccessTags  []string `json:"professional_access_tags,omitempty"`
	Location    string   `json:"location_tag,omitempty"`
	Specialties []string `json:"specialty_tags,omitempty"`
	Sources     []string `json:"information_source_tags,omitempty"`
}

// Roster is a validated list of entries.
type Roster struct {
	Subscribers []Entry `json:"subscribers"`
}

// ValidationError lists every schema violation found in a roster.
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("roster %s: %d problem(s): %s", e.Source, len(e.Problems), strings.Join(e.Problems, "; "))
}

// LoadFile reads and validates a roster. Files ending in .cue are
// compiled as CUE; everything else is parsed as YAML.
func LoadFile(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	if filepath.Ext(path) == ".cue" {
		return ParseCUE(path, data)
	}
	return ParseYAML(path, data)
}

// ParseYAML validates YAML roster data. name is used in error messages.
func ParseYAML(name string, data []byte) (*Roster, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", name, err)
	}
	if raw == nil {
		raw = map[string]any{"subscribers": []any{}}
	}
	ctx := cuecontext.New()
	return validate(ctx, name, ctx.Encode(raw))
}

// ParseCUE validates CUE roster source. name is used in error messages.
func ParseCUE(name string, data []byte) (*Roster, error) {
	ctx := cuecontext.New()
	return validate(ctx, name, ctx.CompileBytes(data, cue.Filename(name)))
}

func validate(ctx *cue.Context, name string, data cue.Value) (*Roster, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("roster schema: %w", err)
	}

	v := schema.Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, newValidationError(name, err)
	}

	var r Roster
	if err := v.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode roster %s: %w", name, err)
	}

	var problems []string
	seen := make(map[string]bool, len(r.Subscribers))
	for i, e := range r.Subscribers {
		if seen[e.ID] {
			problems = append(problems, fmt.Sprintf("subscribers.%d: duplicate id %q", i, e.ID))
		}
		seen[e.ID] = true
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Source: name, Problems: problems}
	}
	return &r, nil
}

func newValidationError(name string, err error) *ValidationError {
	ve := &ValidationError{Source: name}
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if path := e.Path(); len(path) > 0 {
			msg = strings.Join(path, ".") + ": " + msg
		}
		ve.Problems = append(ve.Problems, msg)
	}
	if len(ve.Problems) == 0 {
		ve.Problems = []string{err.Error()}
	}
	return ve
}

// Profiles converts entries into registry-ready profiles, applying
// archetype defaults where clearance or tags were omitted.
func (r *Roster) Profiles() []world.SubscriberProfile {
	out := make([]world.SubscriberProfile, 0, len(r.Subscribers))
	for _, e := range r.Subscribers {
		p := world.SubscriberProfile{
			ID:          e.ID,
			Name:        e.Name,
			Archetype:   e.Archetype,
			AccessTags:  e.AccessTags,
			Location:    e.Location,
			Specialties: e.Specialties,
			Sources:     e.Sources,
		}
		if e.Clearance != nil {
			p.Clearance = *e.Clearance
		}
		out = append(out, registry.ApplyArchetype(p, e.Clearance != nil))
	}
	return out
}

// Registrar accepts profiles. Satisfied by *registry.Registry and the engine.
type Registrar interface {
	Register(world.SubscriberProfile) error
}

// RegisterAll registers every profile, stopping at the first error.
// Returns how many were registered.
func RegisterAll(reg Registrar, r *Roster) (int, error) {
	for i, p := range r.Profiles() {
		if err := reg.Register(p); err != nil {
			return i, fmt.Errorf("register %s: %w", p.ID, err)
		}
	}
	return len(r.Subscribers), nil
}
