// Package registry owns subscriber profiles.
//
// Subscriber lifecycle: unregistered -> active (Register) -> unregistered
// (Unregister, terminal and idempotent). Capabilities are derived once when
// a profile enters the registry, so readers never interpret free text.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/awareness/internal/world"
)

// ErrInvalidProfile is returned for profiles that cannot be registered.
var ErrInvalidProfile = errors.New("registry: invalid profile")

// Registry is a concurrency-safe map of subscriber id to profile.
//
// Thread-safety: all methods are safe for concurrent use. Profiles are
// copied in and out so callers never share slices with the registry.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]world.SubscriberProfile
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{profiles: make(map[string]world.SubscriberProfile)}
}

// Register adds or replaces a profile. Tags are normalised and the
// capability set is computed here, once.
func (r *Registry) Register(p world.SubscriberProfile) error {
	prepared, err := prepare(p)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[prepared.ID] = prepared
	return nil
}

// Update replaces the profile of an active subscriber.
// Returns false (and changes nothing) for an unknown id.
func (r *Registry) Update(p world.SubscriberProfile) (bool, error) {
	prepared, err := prepare(p)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[prepared.ID]; !ok {
		return false, nil
	}
	r.profiles[prepared.ID] = prepared
	return true, nil
}

// Unregister removes a subscriber. Returns false if it was not active;
// that is a no-op, not an error.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[id]; !ok {
		return false
	}
	delete(r.profiles, id)
	return true
}

// Lookup returns a copy of the profile for id.
func (r *Registry) Lookup(id string) (world.SubscriberProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		return world.SubscriberProfile{}, false
	}
	return p.Clone(), true
}

// Contains reports whether id is currently active.
func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.profiles[id]
	return ok
}

// Active returns copies of all active profiles ordered by id.
func (r *Registry) Active() []world.SubscriberProfile {
	r.mu.RLock()
	out := make([]world.SubscriberProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of active subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

func prepare(p world.SubscriberProfile) (world.SubscriberProfile, error) {
	if p.ID == "" {
		return p, fmt.Errorf("%w: empty id", ErrInvalidProfile)
	}
	if p.Clearance < 0 || p.Clearance > 100 {
		return p, fmt.Errorf("%w: %s: clearance %d outside 0..100", ErrInvalidProfile, p.ID, p.Clearance)
	}

	out := p.Clone()
	out.AccessTags = NormalizeTags(p.AccessTags)
	out.Specialties = NormalizeTags(p.Specialties)
	out.Sources = NormalizeTags(p.Sources)
	out.Location = normalizeTag(p.Location)
	out.Archetype = normalizeTag(p.Archetype)
	out.Capabilities = DeriveCapabilities(out)
	return out, nil
}
