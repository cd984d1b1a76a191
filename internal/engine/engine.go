package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/awareness/internal/access"
	"github.com/roach88/awareness/internal/cache"
	"github.com/roach88/awareness/internal/detect"
	"github.com/roach88/awareness/internal/dispatch"
	"github.com/roach88/awareness/internal/metrics"
	"github.com/roach88/awareness/internal/registry"
	"github.com/roach88/awareness/internal/relevance"
	"github.com/roach88/awareness/internal/snapshot"
	"github.com/roach88/awareness/internal/textgen"
	"github.com/roach88/awareness/internal/world"
)

// DefaultWorkers bounds per-subscriber fan-out within one cycle.
const DefaultWorkers = 8

// Recorder persists completed cycles. Implemented by *journal.Journal.
type Recorder interface {
	RecordCycle(ctx context.Context, sum world.CycleSummary, delivered []world.Notification) error
}

// Engine owns every pipeline component and the scheduler driving them.
//
// Thread-safety model:
//   - Register, Unregister, UpdateProfile, PushSnapshot, InjectChange,
//     View, Status: safe from any goroutine
//   - cycles: at most one in flight, enforced by an atomic guard
//   - Start/Stop: safe from any goroutine; Stop waits for an in-flight
//     scheduled cycle to finish
type Engine struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	recorder Recorder
	source   snapshot.Source
	now      func() time.Time
	clock    *Clock
	runID    string
	workers  int

	snapshots  *snapshot.Store
	registry   *registry.Registry
	detector   *detect.Detector
	scorer     *relevance.Scorer
	dispatcher *dispatch.Dispatcher
	hub        *dispatch.Hub
	views      *cache.Cache[*access.View]
	injected   *changeQueue

	// lifecycle serializes outbox commits against Unregister, so a
	// subscriber removed before the commit receives nothing from it.
	lifecycle sync.Mutex

	// inFlight is the reentrancy guard.
	inFlight atomic.Bool

	// cycleHook runs between fan-out and commit. Tests use it to hold a
	// cycle open.
	cycleHook func(ctx context.Context, cycle int64)

	mu         sync.Mutex
	baseline   *world.Snapshot
	last       *world.CycleSummary
	errorCount int64
	skipCount  int64
	closed     bool
	sched      *scheduler

	subsMu  sync.Mutex
	subs    map[int]chan world.CycleSummary
	nextSub int
}

// Option configures an Engine.
type Option func(*settings)

type settings struct {
	logger       *slog.Logger
	metrics      *metrics.Metrics
	recorder     Recorder
	source       snapshot.Source
	now          func() time.Time
	clock        *Clock
	runIDs       RunIDGenerator
	workers      int
	historyDepth int
	weights      relevance.Weights
	rules        []detect.FieldRule
	dispatchOpts []dispatch.Option
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithMetrics records pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithRecorder journals every completed cycle.
func WithRecorder(r Recorder) Option {
	return func(s *settings) { s.recorder = r }
}

// WithSource makes each cycle pull the next snapshot from src before
// detecting changes.
func WithSource(src snapshot.Source) Option {
	return func(s *settings) { s.source = src }
}

// WithNow overrides the wall clock used for timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithClock sets the cycle sequence clock, e.g. NewClockAt to resume.
func WithClock(c *Clock) Option {
	return func(s *settings) { s.clock = c }
}

// WithRunIDGenerator sets the run id source. Defaults to UUIDv7.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(s *settings) { s.runIDs = g }
}

// WithWorkers bounds concurrent subscriber fan-out. Default: DefaultWorkers.
func WithWorkers(n int) Option {
	return func(s *settings) { s.workers = n }
}

// WithHistoryDepth sets how many snapshots are retained.
func WithHistoryDepth(n int) Option {
	return func(s *settings) { s.historyDepth = n }
}

// WithWeights overrides the relevance weights and threshold.
func WithWeights(w relevance.Weights) Option {
	return func(s *settings) { s.weights = w }
}

// WithRules replaces the detector's rule table.
func WithRules(rules ...detect.FieldRule) Option {
	return func(s *settings) { s.rules = rules }
}

// WithGenerator enables content augmentation after fan-out. Each cycle's
// augmentation step is bounded by timeout as a whole.
func WithGenerator(gen textgen.Generator, timeout time.Duration) Option {
	return func(s *settings) {
		s.dispatchOpts = append(s.dispatchOpts, dispatch.WithGenerator(gen, timeout))
	}
}

// WithAugmentMinPriority restricts augmentation to notifications at or
// above p.
func WithAugmentMinPriority(p world.Priority) Option {
	return func(s *settings) {
		s.dispatchOpts = append(s.dispatchOpts, dispatch.WithAugmentMinPriority(p))
	}
}

// New creates an engine. The scheduler is not started.
func New(opts ...Option) *Engine {
	s := settings{
		logger:       slog.Default(),
		now:          time.Now,
		runIDs:       UUIDv7Generator{},
		workers:      DefaultWorkers,
		historyDepth: snapshot.DefaultDepth,
		weights:      relevance.DefaultWeights(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.clock == nil {
		s.clock = NewClock()
	}
	if s.workers < 1 {
		s.workers = 1
	}

	dispatchOpts := append([]dispatch.Option{
		dispatch.WithLogger(s.logger),
		dispatch.WithMetrics(s.metrics),
	}, s.dispatchOpts...)

	e := &Engine{
		logger:     s.logger,
		metrics:    s.metrics,
		recorder:   s.recorder,
		source:     s.source,
		now:        s.now,
		clock:      s.clock,
		runID:      s.runIDs.Generate(),
		workers:    s.workers,
		snapshots:  snapshot.NewStore(s.historyDepth),
		registry:   registry.New(),
		detector:   detect.New(s.rules...),
		scorer:     relevance.NewScorer(s.weights),
		dispatcher: dispatch.New(dispatchOpts...),
		hub:        dispatch.NewHub(),
		views:      cache.New[*access.View](),
		injected:   newChangeQueue(),
		subs:       make(map[int]chan world.CycleSummary),
	}
	e.metrics.SetHistoryDepth(0)
	e.metrics.SetSubscribers(0)
	return e
}

// RunID identifies this engine instance in the journal.
func (e *Engine) RunID() string { return e.runID }

// Register adds a subscriber (or replaces its profile) and opens its
// outbox. Registering is idempotent.
func (e *Engine) Register(p world.SubscriberProfile) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if err := e.registry.Register(p); err != nil {
		return err
	}
	e.hub.Open(p.ID)
	e.views.Delete(p.ID)
	e.metrics.SetSubscribers(e.registry.Len())
	e.logger.Debug("subscriber registered", "subscriber_id", p.ID)
	return nil
}

// Unregister removes a subscriber and closes its outbox. Unknown ids
// are a no-op; the return value reports whether anything was removed.
func (e *Engine) Unregister(id string) bool {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	removed := e.registry.Unregister(id)
	e.hub.Close(id)
	e.views.Delete(id)
	if !removed {
		e.logger.Debug("unregister of unknown subscriber ignored", "subscriber_id", id)
		return false
	}
	e.metrics.SetSubscribers(e.registry.Len())
	e.logger.Debug("subscriber unregistered", "subscriber_id", id)
	return true
}

// UpdateProfile replaces an active subscriber's profile. Unknown ids are
// a no-op and return false.
func (e *Engine) UpdateProfile(p world.SubscriberProfile) (bool, error) {
	ok, err := e.registry.Update(p)
	if err != nil || !ok {
		if err == nil {
			e.logger.Debug("update of unknown subscriber ignored", "subscriber_id", p.ID)
		}
		return ok, err
	}
	e.views.Delete(p.ID)
	return true, nil
}

// Profile returns the registered profile for id.
func (e *Engine) Profile(id string) (world.SubscriberProfile, bool) {
	return e.registry.Lookup(id)
}

// Subscribers returns the active profiles ordered by id.
func (e *Engine) Subscribers() []world.SubscriberProfile {
	return e.registry.Active()
}

// PushSnapshot stores the next snapshot. Versions must strictly increase.
func (e *Engine) PushSnapshot(s *world.Snapshot) error {
	if err := e.snapshots.Push(s); err != nil {
		return err
	}
	e.metrics.SetHistoryDepth(e.snapshots.Depth())
	return nil
}

// Latest returns the newest stored snapshot, or nil.
func (e *Engine) Latest() *world.Snapshot {
	return e.snapshots.Latest()
}

// InjectChange queues an externally sourced change for the next cycle,
// bypassing detection. A running scheduler starts a cycle promptly.
func (e *Engine) InjectChange(c world.Change) error {
	if !c.Category.Valid() {
		return fmt.Errorf("inject change: unknown category %q", c.Category)
	}
	c.Source = world.SourceInjected
	c.AffectedAreas = world.AreaSet(c.AffectedAreas)
	c.Payload = append([]world.PayloadField(nil), c.Payload...)
	if !e.injected.Enqueue(c) {
		return ErrClosed
	}
	return nil
}

// Outbox returns the notification queue of a registered subscriber.
func (e *Engine) Outbox(id string) (*dispatch.Outbox, bool) {
	return e.hub.Get(id)
}

// View returns the subscriber's awareness view of the latest snapshot.
// Concurrent callers for the same subscriber share one computation.
func (e *Engine) View(ctx context.Context, id string) (*access.View, error) {
	if _, ok := e.registry.Lookup(id); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubscriber, id)
	}
	return e.views.GetOrCompute(ctx, id, func(ctx context.Context) (cache.Computed[*access.View], error) {
		profile, ok := e.registry.Lookup(id)
		if !ok {
			return cache.Computed[*access.View]{}, fmt.Errorf("%w: %s", ErrUnknownSubscriber, id)
		}
		snap := e.snapshots.Latest()
		if snap == nil {
			return cache.Computed[*access.View]{}, ErrNoSnapshot
		}
		view := access.BuildView(snap, profile)
		return cache.Computed[*access.View]{
			Value:      view,
			Version:    snap.Version,
			Categories: view.DependsOn(),
		}, nil
	})
}

// ClearCaches drops every cached view. Returns the number dropped.
func (e *Engine) ClearCaches() int {
	n := e.views.ClearAll()
	e.metrics.AddCacheInvalidations(n)
	e.logger.Info("caches cleared", "entries", n)
	return n
}

// CacheStats reports view cache counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.views.Stats()
}

// Status is a point-in-time view of the engine.
type Status struct {
	IsRunning          bool
	CycleInFlight      bool
	SubscriberCount    int
	HistoryDepth       int
	LastCycle          int64
	LastCycleTimestamp time.Time
	LastVersion        int64
	PendingInjected    int
	ErrorCount         int64
	SkippedCount       int64
}

// Status reflects the last successfully completed cycle; failures only
// show in ErrorCount.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		IsRunning:       e.sched != nil,
		CycleInFlight:   e.inFlight.Load(),
		SubscriberCount: e.registry.Len(),
		HistoryDepth:    e.snapshots.Depth(),
		PendingInjected: e.injected.Len(),
		ErrorCount:      e.errorCount,
		SkippedCount:    e.skipCount,
	}
	if e.last != nil {
		st.LastCycle = e.last.Cycle
		st.LastCycleTimestamp = e.last.CompletedAt
		st.LastVersion = e.last.Version
	}
	return st
}

// Summaries subscribes to cycle-complete summaries. A subscriber that
// falls behind by more than buffer summaries misses the overflow.
// The returned func cancels the subscription.
func (e *Engine) Summaries(buffer int) (<-chan world.CycleSummary, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan world.CycleSummary, buffer)

	e.subsMu.Lock()
	id := e.nextSub
	e.nextSub++
	if e.subs == nil {
		close(ch)
		e.subsMu.Unlock()
		return ch, func() {}
	}
	e.subs[id] = ch
	e.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subsMu.Lock()
			defer e.subsMu.Unlock()
			if c, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(c)
			}
		})
	}
}

func (e *Engine) publish(sum world.CycleSummary) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- sum:
		default:
			e.logger.Warn("summary subscriber lagging, summary dropped", "cycle", sum.Cycle)
		}
	}
}

// Close stops the scheduler, closes every outbox and summary
// subscription, and rejects further injected changes.
func (e *Engine) Close() {
	e.Stop()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.injected.Close()
	e.hub.CloseAll()

	e.subsMu.Lock()
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
	e.subs = nil
	e.subsMu.Unlock()
}
