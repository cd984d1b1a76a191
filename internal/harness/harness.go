package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/awareness/internal/engine"
	"github.com/roach88/awareness/internal/roster"
	"github.com/roach88/awareness/internal/snapshot"
	"github.com/roach88/awareness/internal/testutil"
	"github.com/roach88/awareness/internal/world"
)

// Harness executes one scenario against a fresh engine.
type Harness struct {
	scenario *Scenario
	engine   *engine.Engine
	profiles map[string]world.SubscriberProfile
	logger   *slog.Logger
}

// Option configures a run.
type Option func(*Harness)

// WithLogger routes engine logs to l. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes scenario and evaluates its assertions.
//
// Each run uses a new engine with a stepping clock and a fixed run id,
// so traces are reproducible. A step that cannot be executed fails the
// result; it does not abort the run unless the roster cannot be loaded.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		scenario: scenario,
		profiles: make(map[string]world.SubscriberProfile),
		logger:   testutil.QuietLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}

	if scenario.Roster != "" {
		r, err := roster.LoadFile(scenario.resolve(scenario.Roster))
		if err != nil {
			return nil, fmt.Errorf("load roster: %w", err)
		}
		for _, p := range r.Profiles() {
			h.profiles[p.ID] = p
		}
	}

	h.engine = engine.New(
		engine.WithLogger(h.logger),
		engine.WithNow(testutil.NewStepClock(testutil.Epoch, time.Second).Now),
		engine.WithRunIDGenerator(engine.NewFixedGenerator("scenario-"+scenario.Name)),
		engine.WithWorkers(1),
	)
	defer h.engine.Close()

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i, step, result); err != nil {
			result.AddError(fmt.Sprintf("step %d: %v", i, err))
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) execute(ctx context.Context, i int, step Step, result *Result) error {
	kind, err := step.Kind()
	if err != nil {
		return err
	}

	switch kind {
	case StepPush:
		snap := step.Snapshot
		if step.Push != "" {
			snap, err = snapshot.LoadFile(h.scenario.resolve(step.Push))
			if err != nil {
				return err
			}
		}
		if err := h.engine.PushSnapshot(snap); err != nil {
			return err
		}
		result.trace(i, StepPush, map[string]any{"version": snap.Version})

	case StepInject:
		if err := h.engine.InjectChange(*step.Inject); err != nil {
			return err
		}
		result.trace(i, StepInject, map[string]any{
			"category":    string(step.Inject.Category),
			"description": step.Inject.Description,
		})

	case StepRegister:
		for _, id := range step.Register {
			p, ok := h.profiles[id]
			if !ok {
				return fmt.Errorf("subscriber %q is not in the roster", id)
			}
			if err := h.engine.Register(p); err != nil {
				return err
			}
			result.trace(i, StepRegister, map[string]any{"subscriber": id})
		}

	case StepUnregister:
		for _, id := range step.Unregister {
			removed := h.engine.Unregister(id)
			result.trace(i, StepUnregister, map[string]any{"subscriber": id, "removed": removed})
		}

	case StepCycle:
		sum, err := h.engine.TriggerNow(ctx)
		if err != nil {
			return fmt.Errorf("cycle failed: %w", err)
		}
		result.Summaries = append(result.Summaries, sum)
		result.trace(i, StepCycle, map[string]any{
			"cycle":         sum.Cycle,
			"version":       sum.Version,
			"changes":       sum.ChangeCount,
			"notifications": sum.NotificationCount,
			"dropped":       sum.DroppedCount,
		})
		h.collect(i, result)
	}
	return nil
}

// collect drains every outbox, subscribers in id order.
func (h *Harness) collect(i int, result *Result) {
	for _, p := range h.engine.Subscribers() {
		box, ok := h.engine.Outbox(p.ID)
		if !ok {
			continue
		}
		for _, n := range box.Drain() {
			result.Notifications = append(result.Notifications, n)
			result.trace(i, KindNotify, map[string]any{
				"subscriber":        n.SubscriberID,
				"cycle":             n.Cycle,
				"type":              string(n.Type),
				"priority":          n.Priority.String(),
				"tier":              n.Tier.String(),
				"category":          string(n.Category),
				"change_key":        n.ChangeKey,
				"requires_response": n.RequiresResponse,
			})
		}
	}
}
