package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/awareness/internal/access"
	"github.com/roach88/awareness/internal/dispatch"
	"github.com/roach88/awareness/internal/metrics"
	"github.com/roach88/awareness/internal/snapshot"
	"github.com/roach88/awareness/internal/world"
)

// Cycle triggers.
const (
	TriggerTick   = "tick"
	TriggerManual = "manual"
	TriggerInject = "inject"
)

// cycleState tracks one cycle for error reporting and recovery.
type cycleState struct {
	seq       int64
	trigger   string
	baseline  int64
	current   int64
	injected  []world.Change
	committed bool
}

// TriggerNow runs one cycle immediately on the calling goroutine.
// Returns ErrCycleInProgress, without running anything, when another
// cycle is in flight.
func (e *Engine) TriggerNow(ctx context.Context) (world.CycleSummary, error) {
	return e.runCycle(ctx, TriggerManual)
}

// runCycle is the scheduler boundary: it enforces the reentrancy guard
// and turns errors and panics into a counted CycleError.
func (e *Engine) runCycle(ctx context.Context, trigger string) (sum world.CycleSummary, err error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.mu.Lock()
		e.skipCount++
		e.mu.Unlock()
		e.metrics.ObserveCycle(trigger, metrics.OutcomeSkipped, 0)
		e.logger.Warn("cycle skipped: previous cycle still running", "trigger", trigger)
		return sum, ErrCycleInProgress
	}
	defer e.inFlight.Store(false)

	c := &cycleState{seq: e.clock.Next(), trigger: trigger}
	started := e.now()
	defer func() {
		if r := recover(); r != nil {
			err = c.panicError(r)
		}
		if err != nil {
			e.fail(c, err, started)
		}
	}()

	return e.execute(ctx, c, started)
}

func (c *cycleState) panicError(r any) *CycleError {
	return &CycleError{
		Code:     ErrCodeCyclePanic,
		Cycle:    c.seq,
		Trigger:  c.trigger,
		Baseline: c.baseline,
		Current:  c.current,
		Panic:    r,
	}
}

func (c *cycleState) failure(err error) *CycleError {
	return &CycleError{
		Code:     ErrCodeCycleFailure,
		Cycle:    c.seq,
		Trigger:  c.trigger,
		Baseline: c.baseline,
		Current:  c.current,
		Err:      err,
	}
}

func (e *Engine) fail(c *cycleState, err error, started time.Time) {
	e.mu.Lock()
	e.errorCount++
	e.mu.Unlock()

	if !c.committed {
		// Nothing was delivered; injected changes get another chance.
		e.injected.Requeue(c.injected)
	}

	attrs := []any{
		"cycle", c.seq,
		"trigger", c.trigger,
		"baseline_version", c.baseline,
		"current_version", c.current,
		"error", err,
	}
	var ce *CycleError
	if errors.As(err, &ce) && ce.Code == ErrCodeCyclePanic {
		attrs = append(attrs, "panic", fmt.Sprint(ce.Panic))
	}
	e.logger.Error("cycle failed", attrs...)
	e.metrics.ObserveCycle(c.trigger, metrics.OutcomeFailed, e.now().Sub(started))
}

func (e *Engine) execute(ctx context.Context, c *cycleState, started time.Time) (world.CycleSummary, error) {
	if e.source != nil {
		if err := e.pull(ctx); err != nil {
			return world.CycleSummary{}, c.failure(fmt.Errorf("pull snapshot: %w", err))
		}
	}

	// Pin both versions for the rest of the cycle.
	e.mu.Lock()
	baseline := e.baseline
	e.mu.Unlock()
	cur := e.snapshots.Latest()
	if baseline != nil {
		c.baseline = baseline.Version
	}
	if cur != nil {
		c.current = cur.Version
	}

	changes := e.detect(baseline, cur)
	c.injected = e.injected.Drain()
	changes = append(changes, stampInjected(c.injected, cur, started)...)
	for _, ch := range changes {
		e.metrics.IncChange(string(ch.Category), string(ch.Source))
	}

	batch, err := e.fanOut(c, dispatch.CycleInfo{Seq: c.seq, At: started}, changes)
	if err != nil {
		return world.CycleSummary{}, err
	}
	e.dispatcher.AugmentBatch(ctx, batch, e.workers)

	if e.cycleHook != nil {
		e.cycleHook(ctx, c.seq)
	}

	e.lifecycle.Lock()
	delivery := batch.Commit(e.hub, e.registry.Contains)
	e.lifecycle.Unlock()
	c.committed = true

	for _, n := range delivery.Delivered {
		e.metrics.IncDelivered(string(n.Type))
	}
	if delivery.Dropped > 0 {
		e.metrics.AddDropped(delivery.Dropped)
		e.logger.Warn("notifications dropped: subscribers no longer active",
			"cycle", c.seq, "dropped", delivery.Dropped, "subscribers", delivery.DroppedSubscribers)
	}

	if cur != nil {
		if n := e.views.Invalidate(cur.Version, touchedCategories(changes)); n > 0 {
			e.metrics.AddCacheInvalidations(n)
			e.logger.Debug("views invalidated", "cycle", c.seq, "entries", n)
		}
	}

	completed := e.now()
	sum := world.CycleSummary{
		Cycle:             c.seq,
		RunID:             e.runID,
		Trigger:           c.trigger,
		Version:           c.current,
		ChangeCount:       len(changes),
		NotificationCount: len(delivery.Delivered),
		DroppedCount:      delivery.Dropped,
		Duration:          completed.Sub(started),
		StartedAt:         started,
		CompletedAt:       completed,
	}

	if e.recorder != nil {
		if err := e.recorder.RecordCycle(ctx, sum, delivery.Delivered); err != nil {
			// The cycle already delivered; a journal gap is not a cycle failure.
			e.logger.Error("journal write failed", "cycle", c.seq, "error", err)
		}
	}

	e.mu.Lock()
	if cur != nil {
		e.baseline = cur
	}
	e.last = &sum
	e.mu.Unlock()

	e.metrics.ObserveCycle(c.trigger, metrics.OutcomeOK, sum.Duration)
	e.logger.Info("cycle complete",
		"cycle", sum.Cycle,
		"trigger", sum.Trigger,
		"version", sum.Version,
		"changes", sum.ChangeCount,
		"notifications", sum.NotificationCount,
		"dropped", sum.DroppedCount,
		"duration_ms", sum.CycleDurationMs(),
	)
	e.publish(sum)
	return sum, nil
}

// pull moves the source's next snapshot into the store. A stale version
// is logged and ignored.
func (e *Engine) pull(ctx context.Context) error {
	snap, err := e.source.Next(ctx)
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}
	if err := e.PushSnapshot(snap); err != nil {
		if errors.Is(err, snapshot.ErrStaleVersion) {
			e.logger.Warn("stale snapshot from source ignored", "version", snap.Version, "error", err)
			return nil
		}
		return err
	}
	return nil
}

// detect compares cur against the last processed snapshot. The first
// snapshot only establishes the baseline. Snapshots pushed between two
// cycles are compared end to end.
func (e *Engine) detect(baseline, cur *world.Snapshot) []world.Change {
	if baseline == nil || cur == nil || cur.Version == baseline.Version {
		return nil
	}
	res := e.detector.Detect(baseline, cur)
	for _, w := range res.Warnings {
		e.logger.Warn("malformed snapshot field skipped",
			"version", w.Version, "category", w.Category, "field", w.Field, "reason", w.Reason)
	}
	e.metrics.AddFieldWarnings(len(res.Warnings))
	return res.Changes
}

// stampInjected fills the version and timestamp of injected changes that
// did not carry their own.
func stampInjected(changes []world.Change, cur *world.Snapshot, at time.Time) []world.Change {
	out := make([]world.Change, len(changes))
	for i, ch := range changes {
		if ch.Version == 0 && cur != nil {
			ch.Version = cur.Version
		}
		if ch.Timestamp.IsZero() {
			ch.Timestamp = at
		}
		out[i] = ch
	}
	return out
}

func (e *Engine) fanOut(c *cycleState, info dispatch.CycleInfo, changes []world.Change) (*dispatch.Batch, error) {
	batch := dispatch.NewBatch()
	if len(changes) == 0 {
		return batch, nil
	}

	g := new(errgroup.Group)
	g.SetLimit(e.workers)
	for _, profile := range e.registry.Active() {
		profile := profile
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = c.panicError(r)
				}
			}()
			e.notify(info, batch, changes, profile)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batch, nil
}

// notify scores, filters and composes every change for one subscriber.
// A subscriber removed mid-cycle is simply skipped from then on.
func (e *Engine) notify(info dispatch.CycleInfo, batch *dispatch.Batch, changes []world.Change, profile world.SubscriberProfile) {
	for i, change := range changes {
		if !e.registry.Contains(profile.ID) {
			return
		}
		rel := e.scorer.Score(change, profile)
		if !rel.IsRelevant {
			continue
		}
		disc := access.Filter(change, profile)
		if n, ok := e.dispatcher.Dispatch(info, i, change, profile, rel, disc); ok {
			batch.Stage(n)
		}
	}
}

// touchedCategories returns the distinct categories of changes in
// category order.
func touchedCategories(changes []world.Change) []world.Category {
	seen := make(map[world.Category]bool, len(changes))
	for _, ch := range changes {
		seen[ch.Category] = true
	}
	var out []world.Category
	for _, cat := range world.Categories {
		if seen[cat] {
			out = append(out, cat)
		}
	}
	return out
}
