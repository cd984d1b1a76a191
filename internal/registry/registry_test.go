package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/awareness/internal/world"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := New()
	err := r.Register(world.SubscriberProfile{
		ID:         "general-vance",
		Clearance:  80,
		AccessTags: []string{"Military Intelligence", "military"},
		Location:   "Outer Rim",
	})
	require.NoError(t, err)

	p, ok := r.Lookup("general-vance")
	require.True(t, ok)
	assert.Equal(t, []string{"military", "military_intelligence"}, p.AccessTags)
	assert.Equal(t, "outer_rim", p.Location)
	assert.Equal(t, world.MatchDirect, p.Capabilities.MatchFor(world.CategoryMilitary))
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.Contains("general-vance"))
}

func TestRegistry_RejectsInvalidProfiles(t *testing.T) {
	r := New()

	err := r.Register(world.SubscriberProfile{Clearance: 10})
	assert.ErrorIs(t, err, ErrInvalidProfile)

	err = r.Register(world.SubscriberProfile{ID: "x", Clearance: 101})
	assert.ErrorIs(t, err, ErrInvalidProfile)

	err = r.Register(world.SubscriberProfile{ID: "y", Clearance: -1})
	assert.ErrorIs(t, err, ErrInvalidProfile)

	assert.Equal(t, 0, r.Len())
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(world.SubscriberProfile{ID: "a"}))

	assert.True(t, r.Unregister("a"))
	assert.False(t, r.Unregister("a"), "second unregister is a no-op")
	assert.False(t, r.Unregister("never-registered"))
	assert.False(t, r.Contains("a"))
}

func TestRegistry_UpdateUnknownIsNoOp(t *testing.T) {
	r := New()

	ok, err := r.Update(world.SubscriberProfile{ID: "ghost", Clearance: 50})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, r.Contains("ghost"), "update must not register")
}

func TestRegistry_UpdateRecomputesCapabilities(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(world.SubscriberProfile{ID: "a", Specialties: []string{"finance"}}))

	p, _ := r.Lookup("a")
	assert.Equal(t, world.MatchSpecialty, p.Capabilities.MatchFor(world.CategoryEconomic))

	ok, err := r.Update(world.SubscriberProfile{ID: "a", AccessTags: []string{"market_data"}})
	require.NoError(t, err)
	require.True(t, ok)

	p, _ = r.Lookup("a")
	assert.Equal(t, world.MatchDirect, p.Capabilities.MatchFor(world.CategoryEconomic))
}

func TestRegistry_ActiveSortedAndIsolated(t *testing.T) {
	r := New()
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, r.Register(world.SubscriberProfile{ID: id, AccessTags: []string{"social"}}))
	}

	active := r.Active()
	require.Len(t, active, 3)
	assert.Equal(t, "alpha", active[0].ID)
	assert.Equal(t, "bravo", active[1].ID)
	assert.Equal(t, "charlie", active[2].ID)

	active[0].AccessTags[0] = "tampered"
	p, _ := r.Lookup("alpha")
	assert.Equal(t, []string{"social"}, p.AccessTags)
}

func TestRegistry_ConcurrentRegisterUnregister(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("sub-%02d", i)
			_ = r.Register(world.SubscriberProfile{ID: id, AccessTags: []string{"economic"}})
			_ = r.Active()
			if i%2 == 0 {
				r.Unregister(id)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 25, r.Len())
}
