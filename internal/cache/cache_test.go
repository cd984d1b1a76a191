package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/awareness/internal/world"
)

func fixed(value string, version int64, cats ...world.Category) ComputeFunc[string] {
	return func(context.Context) (Computed[string], error) {
		return Computed[string]{Value: value, Version: version, Categories: cats}, nil
	}
}

func TestGetOrCompute_HitAfterMiss(t *testing.T) {
	c := New[string]()
	ctx := context.Background()

	v, err := c.GetOrCompute(ctx, "alice", fixed("view-1", 1, world.CategoryEconomic))
	require.NoError(t, err)
	assert.Equal(t, "view-1", v)

	v, err = c.GetOrCompute(ctx, "alice", fixed("never", 2))
	require.NoError(t, err)
	assert.Equal(t, "view-1", v)

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, int64(1), st.Computes)
	assert.Equal(t, 1, st.Entries)
}

func TestGetOrCompute_SingleFlight(t *testing.T) {
	c := New[string]()
	release := make(chan struct{})
	var calls atomic.Int32

	compute := func(context.Context) (Computed[string], error) {
		calls.Add(1)
		<-release
		return Computed[string]{Value: "shared", Version: 1}, nil
	}

	const callers = 32
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrCompute(context.Background(), "k", compute)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool { return c.Stats().Misses == callers }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "compute must run exactly once")
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestGetOrCompute_ErrorsAreNotCached(t *testing.T) {
	c := New[string]()
	boom := errors.New("boom")

	_, err := c.GetOrCompute(context.Background(), "k", func(context.Context) (Computed[string], error) {
		return Computed[string]{}, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())

	v, err := c.GetOrCompute(context.Background(), "k", fixed("ok", 1))
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestGetOrCompute_WaiterCancellation(t *testing.T) {
	c := New[string]()
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetOrCompute(ctx, "k", func(context.Context) (Computed[string], error) {
		<-release
		return Computed[string]{Value: "late"}, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvalidate_NeedsNewerVersionAndTouchedCategory(t *testing.T) {
	c := New[string]()
	ctx := context.Background()
	_, _ = c.GetOrCompute(ctx, "econ", fixed("e", 3, world.CategoryEconomic, world.CategorySocial))
	_, _ = c.GetOrCompute(ctx, "mil", fixed("m", 3, world.CategoryMilitary))

	assert.Zero(t, c.Invalidate(3, []world.Category{world.CategoryEconomic}), "same version keeps entries")
	assert.Zero(t, c.Invalidate(4, []world.Category{world.CategoryTechnological}), "untouched categories keep entries")
	assert.Zero(t, c.Invalidate(4, nil))
	assert.Equal(t, 2, c.Len())

	assert.Equal(t, 1, c.Invalidate(4, []world.Category{world.CategorySocial}))
	_, ok := c.Get("econ")
	assert.False(t, ok)
	_, ok = c.Get("mil")
	assert.True(t, ok)
}

func TestInvalidate_DuringComputeDiscardsResult(t *testing.T) {
	c := New[string]()
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan string)
	go func() {
		v, _ := c.GetOrCompute(context.Background(), "k", func(context.Context) (Computed[string], error) {
			close(started)
			<-release
			return Computed[string]{Value: "stale", Version: 1, Categories: []world.Category{world.CategoryMilitary}}, nil
		})
		done <- v
	}()

	<-started
	c.Invalidate(2, []world.Category{world.CategoryMilitary})
	close(release)

	assert.Equal(t, "stale", <-done, "the waiting caller still gets its value")
	assert.Zero(t, c.Len(), "but it is not cached")
}

func TestClearAll(t *testing.T) {
	c := New[string]()
	ctx := context.Background()
	_, _ = c.GetOrCompute(ctx, "a", fixed("a", 1))
	_, _ = c.GetOrCompute(ctx, "b", fixed("b", 1))

	assert.Equal(t, 2, c.ClearAll())
	assert.Zero(t, c.Len())

	v, err := c.GetOrCompute(ctx, "a", fixed("a2", 2))
	require.NoError(t, err)
	assert.Equal(t, "a2", v)
	assert.Equal(t, int64(3), c.Stats().Computes)
}

func TestDelete(t *testing.T) {
	c := New[string]()
	_, _ = c.GetOrCompute(context.Background(), "a", fixed("a", 1))
	c.Delete("a")
	c.Delete("missing")
	assert.Zero(t, c.Len())
	assert.Equal(t, int64(1), c.Stats().Evicted)
}
