package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/roach88/awareness/internal/journal"
	"github.com/roach88/awareness/internal/metrics"
	"github.com/roach88/awareness/internal/snapshot"
	"github.com/roach88/awareness/internal/testutil"
	"github.com/roach88/awareness/internal/textgen/mocks"
	"github.com/roach88/awareness/internal/world"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithLogger(testutil.QuietLogger()),
		WithNow(testutil.NewStepClock(testutil.Epoch, time.Second).Now),
		WithRunIDGenerator(NewFixedGenerator("run-test")),
	}
	e := New(append(base, opts...)...)
	t.Cleanup(e.Close)
	return e
}

func general() world.SubscriberProfile { return testutil.Profile("gen", 80, "military") }
func citizen() world.SubscriberProfile { return testutil.Profile("cit", 25) }

func drain(t *testing.T, e *Engine, id string) []world.Notification {
	t.Helper()
	box, ok := e.Outbox(id)
	require.True(t, ok, "outbox for %s", id)
	return box.Drain()
}

func incursion() world.Change {
	return world.Change{
		Category:    world.CategoryMilitary,
		Subcategory: "incidents",
		Description: "border incursion reported",
		Impact:      world.ImpactCritical,
	}
}

func TestEngine_FirstSnapshotOnlySetsBaseline(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.Register(general()))
	require.NoError(t, e.PushSnapshot(testutil.Military(1, "moderate")))

	sum, err := e.TriggerNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Cycle)
	assert.Equal(t, int64(1), sum.Version)
	assert.Zero(t, sum.ChangeCount)
	assert.Empty(t, drain(t, e, "gen"))
}

func TestEngine_CriticalMilitaryChangeReachesClearedOfficer(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.Register(general()))
	require.NoError(t, e.Register(citizen()))

	require.NoError(t, e.PushSnapshot(testutil.Military(1, "moderate")))
	_, err := e.TriggerNow(ctx)
	require.NoError(t, err)

	require.NoError(t, e.PushSnapshot(testutil.Military(2, "critical")))
	sum, err := e.TriggerNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.ChangeCount)
	assert.Equal(t, 1, sum.NotificationCount)
	assert.Equal(t, "run-test", sum.RunID)
	assert.Equal(t, TriggerManual, sum.Trigger)

	notes := drain(t, e, "gen")
	require.Len(t, notes, 1)
	n := notes[0]
	assert.Equal(t, world.TypeSecurityBriefing, n.Type)
	assert.Equal(t, world.PriorityUrgent, n.Priority)
	assert.Equal(t, world.TierClassified, n.Tier)
	assert.True(t, n.RequiresResponse)
	assert.Equal(t, int64(2), n.Cycle)
	assert.Contains(t, n.Content, "critical")

	assert.Empty(t, drain(t, e, "cit"), "low clearance citizen is not notified")
}

func TestEngine_NoNewSnapshotMeansNoChanges(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.PushSnapshot(testutil.Military(1, "moderate")))
	_, err := e.TriggerNow(ctx)
	require.NoError(t, err)

	sum, err := e.TriggerNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.ChangeCount)
	assert.Equal(t, int64(1), sum.Version)
}

func TestEngine_UnregisteredSubscriberReceivesNothing(t *testing.T) {
	ctx := context.Background()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	e := newTestEngine(t, WithRecorder(j))
	require.NoError(t, e.Register(general()))
	require.NoError(t, e.Register(testutil.Profile("analyst", 80, "military_intelligence")))
	require.NoError(t, e.PushSnapshot(testutil.Military(1, "moderate")))
	_, err = e.TriggerNow(ctx)
	require.NoError(t, err)

	assert.True(t, e.Unregister("gen"))
	require.NoError(t, e.PushSnapshot(testutil.Military(2, "critical")))
	sum, err := e.TriggerNow(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.NotificationCount, "only the analyst is notified")
	_, ok := e.Outbox("gen")
	assert.False(t, ok)

	delivered, err := j.Notifications(ctx, "gen", 10)
	require.NoError(t, err)
	assert.Empty(t, delivered)

	delivered, err = j.Notifications(ctx, "analyst", 10)
	require.NoError(t, err)
	assert.Len(t, delivered, 1)
}

func TestEngine_UnregisterMidCycleDropsStagedNotifications(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.Register(general()))
	require.NoError(t, e.PushSnapshot(testutil.Military(1, "moderate")))
	_, err := e.TriggerNow(ctx)
	require.NoError(t, err)

	e.cycleHook = func(context.Context, int64) { e.Unregister("gen") }
	require.NoError(t, e.PushSnapshot(testutil.Military(2, "critical")))
	sum, err := e.TriggerNow(ctx)
	require.NoError(t, err)

	assert.Zero(t, sum.NotificationCount)
	assert.Equal(t, 1, sum.DroppedCount)
}

func TestEngine_UnknownSubscriberIsNoOp(t *testing.T) {
	e := newTestEngine(t)
	assert.False(t, e.Unregister("ghost"))

	ok, err := e.UpdateProfile(testutil.Profile("ghost", 50))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, e.Status().SubscriberCount)
}

func TestEngine_UpdateProfileChangesRelevance(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.Register(citizen()))
	require.NoError(t, e.PushSnapshot(testutil.Military(1, "moderate")))
	_, err := e.TriggerNow(ctx)
	require.NoError(t, err)

	promoted := testutil.Profile("cit", 80, "military")
	ok, err := e.UpdateProfile(promoted)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, e.PushSnapshot(testutil.Military(2, "critical")))
	_, err = e.TriggerNow(ctx)
	require.NoError(t, err)
	assert.Len(t, drain(t, e, "cit"), 1)
}

func TestEngine_InjectedChangesFollowDetectedOnes(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.Register(general()))
	require.NoError(t, e.PushSnapshot(testutil.Military(1, "moderate")))
	_, err := e.TriggerNow(ctx)
	require.NoError(t, err)

	require.NoError(t, e.PushSnapshot(testutil.Military(2, "critical")))
	require.NoError(t, e.InjectChange(incursion()))
	sum, err := e.TriggerNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.ChangeCount)

	notes := drain(t, e, "gen")
	require.Len(t, notes, 2)
	assert.Contains(t, notes[0].ChangeKey, "threat_level")
	assert.Equal(t, "military/incidents/@2", notes[1].ChangeKey, "injected change is stamped with the pinned version")
	assert.Zero(t, e.Status().PendingInjected)
}

func TestEngine_InjectChangeValidation(t *testing.T) {
	e := newTestEngine(t)
	err := e.InjectChange(world.Change{Category: "navy"})
	assert.Error(t, err)

	e.Close()
	assert.ErrorIs(t, e.InjectChange(incursion()), ErrClosed)
}

func TestEngine_PanicIsRecoveredAndCounted(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.Register(general()))
	require.NoError(t, e.InjectChange(incursion()))

	e.cycleHook = func(_ context.Context, cycle int64) {
		if cycle == 1 {
			panic("boom")
		}
	}

	_, err := e.TriggerNow(ctx)
	require.Error(t, err)
	assert.True(t, IsCyclePanic(err))
	assert.True(t, IsCycleFailure(err))

	st := e.Status()
	assert.Equal(t, int64(1), st.ErrorCount)
	assert.Zero(t, st.LastCycle, "status reflects the last successful cycle")
	assert.Equal(t, 1, st.PendingInjected, "undelivered injected change is kept")
	assert.False(t, st.CycleInFlight)

	sum, err := e.TriggerNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.Cycle)
	assert.Equal(t, 1, sum.NotificationCount)
	assert.Equal(t, int64(2), e.Status().LastCycle)
}

func TestEngine_SourceFeedsCycles(t *testing.T) {
	ctx := context.Background()
	src := snapshot.NewSliceSource(testutil.Military(1, "moderate"), testutil.Military(2, "critical"))
	e := newTestEngine(t, WithSource(src))
	require.NoError(t, e.Register(general()))

	first, err := e.TriggerNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, first.ChangeCount)

	second, err := e.TriggerNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.ChangeCount)

	third, err := e.TriggerNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, third.ChangeCount, "exhausted source yields nothing new")
	assert.Equal(t, int64(2), third.Version)
	assert.Equal(t, 2, e.Status().HistoryDepth)
}

type failingSource struct{}

func (failingSource) Next(context.Context) (*world.Snapshot, error) {
	return nil, errors.New("simulation offline")
}

func TestEngine_SourceErrorIsCycleFailure(t *testing.T) {
	e := newTestEngine(t, WithSource(failingSource{}))
	_, err := e.TriggerNow(context.Background())
	require.Error(t, err)
	assert.True(t, IsCycleFailure(err))
	assert.False(t, IsCyclePanic(err))
	assert.Contains(t, err.Error(), "simulation offline")
	assert.Equal(t, int64(1), e.Status().ErrorCount)
}

type failingRecorder struct{ calls int }

func (r *failingRecorder) RecordCycle(context.Context, world.CycleSummary, []world.Notification) error {
	r.calls++
	return errors.New("disk full")
}

func TestEngine_JournalFailureDoesNotFailCycle(t *testing.T) {
	rec := &failingRecorder{}
	e := newTestEngine(t, WithRecorder(rec))
	_, err := e.TriggerNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.calls)
	assert.Zero(t, e.Status().ErrorCount)
}

func TestEngine_ViewIsCachedAndInvalidatedByTouchedCategories(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	require.NoError(t, e.Register(testutil.Profile("analyst", 70)))

	snap := func(version int64, gdp, research float64) *world.Snapshot {
		return testutil.Snapshot(version, testutil.Fields{
			world.CategoryPolitical:     {"game_phase": "early"},
			world.CategoryEconomic:      {"gdp": gdp},
			world.CategoryTechnological: {"research_level": research},
		})
	}

	_, err := e.View(ctx, "analyst")
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, e.PushSnapshot(snap(1, 1000, 10)))
	_, err = e.TriggerNow(ctx)
	require.NoError(t, err)

	v, err := e.View(ctx, "analyst")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Version)
	assert.Equal(t, []world.Category{world.CategoryPolitical, world.CategoryEconomic}, v.Visible)
	_, err = e.View(ctx, "analyst")
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.CacheStats().Computes)

	// Technological is not visible to the analyst; the view stays cached.
	require.NoError(t, e.PushSnapshot(snap(2, 1000, 30)))
	_, err = e.TriggerNow(ctx)
	require.NoError(t, err)
	v, err = e.View(ctx, "analyst")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Version)

	require.NoError(t, e.PushSnapshot(snap(3, 1200, 30)))
	_, err = e.TriggerNow(ctx)
	require.NoError(t, err)
	v, err = e.View(ctx, "analyst")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.Version)
	assert.Equal(t, int64(2), e.CacheStats().Computes)

	assert.Equal(t, 1, e.ClearCaches())
	assert.Zero(t, e.CacheStats().Entries)

	_, err = e.View(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUnknownSubscriber)
}

func TestEngine_MetricsRecorded(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	e := newTestEngine(t, WithMetrics(m))
	require.NoError(t, e.Register(general()))
	require.NoError(t, e.PushSnapshot(testutil.Military(1, "moderate")))
	_, err := e.TriggerNow(ctx)
	require.NoError(t, err)
	require.NoError(t, e.PushSnapshot(testutil.Military(2, "critical")))
	_, err = e.TriggerNow(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2.0, promtest.ToFloat64(m.Cycles.WithLabelValues(TriggerManual, metrics.OutcomeOK)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Changes.WithLabelValues("military", "detected")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Delivered.WithLabelValues(string(world.TypeSecurityBriefing))))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Subscribers))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.HistoryDepth))
}

func TestEngine_ConcurrentRegistrationDuringCycles(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, WithWorkers(4))
	for _, p := range []world.SubscriberProfile{general(), citizen()} {
		require.NoError(t, e.Register(p))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			p := testutil.Profile("churn", 80, "military")
			_ = e.Register(p)
			e.Unregister(p.ID)
		}
	}()

	for v := int64(1); v <= 20; v++ {
		threat := "moderate"
		if v%2 == 0 {
			threat = "critical"
		}
		require.NoError(t, e.PushSnapshot(testutil.Military(v, threat)))
		_, err := e.TriggerNow(ctx)
		require.NoError(t, err)
	}
	wg.Wait()

	assert.Len(t, drain(t, e, "gen"), 19, "one notification per threat change after the baseline")
	assert.Zero(t, e.Status().ErrorCount)
}

func TestEngine_SummariesSubscription(t *testing.T) {
	e := newTestEngine(t)
	sums, cancel := e.Summaries(2)

	_, err := e.TriggerNow(context.Background())
	require.NoError(t, err)
	sum := <-sums
	assert.Equal(t, int64(1), sum.Cycle)

	cancel()
	_, ok := <-sums
	assert.False(t, ok, "cancel closes the channel")
	cancel()
}

func TestEngine_SlowGeneratorBoundedByOneTimeout(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	gen.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}).
		AnyTimes()

	const (
		timeout     = 100 * time.Millisecond
		subscribers = 40
	)
	e := newTestEngine(t, WithGenerator(gen, timeout), WithWorkers(4))
	for i := 0; i < subscribers; i++ {
		require.NoError(t, e.Register(testutil.Profile(fmt.Sprintf("officer-%02d", i), 80, "military")))
	}
	require.NoError(t, e.PushSnapshot(testutil.Military(1, "moderate")))
	_, err := e.TriggerNow(ctx)
	require.NoError(t, err)

	require.NoError(t, e.PushSnapshot(testutil.Military(2, "critical")))
	start := time.Now()
	sum, err := e.TriggerNow(ctx)
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Equal(t, subscribers, sum.NotificationCount)
	assert.Less(t, elapsed, 3*timeout, "augmentation must share one deadline per cycle")
	for _, n := range drain(t, e, "officer-00") {
		assert.Contains(t, n.Content, "Threat level changed", "template kept when the deadline passes")
	}
}
