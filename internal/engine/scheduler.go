package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// scheduler is the state of one Start..Stop run.
type scheduler struct {
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	// cycles tracks scheduled cycles still running.
	cycles sync.WaitGroup
}

// Start runs a cycle every interval, and promptly after each InjectChange,
// until Stop. Each scheduled cycle runs on its own goroutine, so a tick
// that fires while a cycle is in flight reaches the reentrancy guard and
// is skipped and logged.
func (e *Engine) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("engine: interval must be positive, got %s", interval)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.sched != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &scheduler{interval: interval, cancel: cancel, done: make(chan struct{})}
	e.sched = s
	go e.loop(ctx, s)

	e.logger.Info("scheduler started", "interval", interval, "run_id", e.runID)
	return nil
}

// Stop prevents any further cycle from being scheduled and waits for an
// in-flight scheduled cycle to finish. Calling Stop on a stopped engine is
// a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	s := e.sched
	e.sched = nil
	e.mu.Unlock()
	if s == nil {
		return
	}

	s.cancel()
	<-s.done
	s.cycles.Wait()
	e.logger.Info("scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is cancelled, then stops.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	if err := e.Start(interval); err != nil {
		return err
	}
	<-ctx.Done()
	e.Stop()
	return nil
}

func (e *Engine) loop(ctx context.Context, s *scheduler) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	wake := e.injected.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.launch(ctx, s, TriggerTick)
		case _, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			e.launch(ctx, s, TriggerInject)
		}
	}
}

// launch starts one scheduled cycle. Cycles outlive the loop context so
// Stop never interrupts one mid-write.
func (e *Engine) launch(ctx context.Context, s *scheduler, trigger string) {
	if ctx.Err() != nil {
		return
	}
	s.cycles.Add(1)
	go func() {
		defer s.cycles.Done()
		_, _ = e.runCycle(context.WithoutCancel(ctx), trigger)
	}()
}
