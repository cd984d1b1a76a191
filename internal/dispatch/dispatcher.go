package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/awareness/internal/metrics"
	"github.com/roach88/awareness/internal/textgen"
	"github.com/roach88/awareness/internal/world"
)

// ErrExternalServiceTimeout is returned by Augment when the text generator
// does not answer within the configured timeout.
var ErrExternalServiceTimeout = errors.New("dispatch: external text generation timed out")

// DefaultAugmentTimeout bounds the augmentation step of one cycle.
const DefaultAugmentTimeout = 2 * time.Second

// Dispatcher composes notifications and optionally augments their content
// after composition.
//
// Thread-safety: safe for concurrent use once constructed.
type Dispatcher struct {
	gen         textgen.Generator
	timeout     time.Duration
	minPriority world.Priority
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithGenerator enables content augmentation through gen. One batch of
// calls is bounded by timeout (DefaultAugmentTimeout when <= 0).
func WithGenerator(gen textgen.Generator, timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.gen = gen
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithAugmentMinPriority restricts augmentation to notifications at or
// above p. Defaults to high.
func WithAugmentMinPriority(p world.Priority) Option {
	return func(d *Dispatcher) { d.minPriority = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics records augmentation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New creates a dispatcher. Without WithGenerator content is template-only.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		timeout:     DefaultAugmentTimeout,
		minPriority: world.PriorityHigh,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch composes the template notification for a relevant change.
// Returns false for irrelevant changes. It never calls the generator;
// see AugmentBatch.
func (d *Dispatcher) Dispatch(cyc CycleInfo, index int, change world.Change, profile world.SubscriberProfile, rel world.RelevanceResult, disc world.Disclosure) (world.Notification, bool) {
	return Compose(cyc, index, change, profile, rel, disc)
}

// AugmentBatch rewrites the content of staged notifications at or above
// the minimum priority, with at most workers calls in flight. All calls
// share one deadline of the configured timeout, so the step never
// outlasts a single timeout however many notifications are staged. A
// notification not rewritten by the deadline keeps its template content.
func (d *Dispatcher) AugmentBatch(ctx context.Context, b *Batch, workers int) {
	if d.gen == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var pending []*world.Notification
	for _, list := range b.staged {
		for i := range list {
			if list[i].Priority >= d.minPriority {
				pending = append(pending, &list[i])
			}
		}
	}
	if len(pending) == 0 {
		return
	}

	dctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var timedOut atomic.Int64
	g := new(errgroup.Group)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, n := range pending {
		n := n
		g.Go(func() error {
			if d.augmentOne(ctx, dctx, n) {
				timedOut.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	if k := timedOut.Load(); k > 0 {
		d.logger.Warn("augmentation deadline reached, using templates",
			"notifications", k, "pending", len(pending), "timeout", d.timeout)
	}
}

// augmentOne rewrites n under the shared deadline dctx. Reports whether
// the deadline, rather than a generator error or cancellation of ctx,
// kept the template.
func (d *Dispatcher) augmentOne(ctx, dctx context.Context, n *world.Notification) bool {
	err := dctx.Err()
	if err == nil {
		var text string
		if text, err = d.Augment(dctx, *n); err == nil {
			d.metrics.IncAugmentation(metrics.AugmentOK)
			n.Content = text
			return false
		}
	}
	if ctx.Err() == nil && (errors.Is(err, ErrExternalServiceTimeout) || errors.Is(err, context.DeadlineExceeded)) {
		d.metrics.IncAugmentation(metrics.AugmentTimeout)
		return true
	}
	d.metrics.IncAugmentation(metrics.AugmentFallback)
	d.logger.Warn("augmentation failed, using template",
		"subscriber_id", n.SubscriberID, "change", n.ChangeKey, "error", err)
	return false
}

// Augment asks the generator to rewrite n's content. The call never
// outlives the timeout, even if the generator ignores its context.
func (d *Dispatcher) Augment(ctx context.Context, n world.Notification) (string, error) {
	if d.gen == nil {
		return "", errors.New("dispatch: no generator configured")
	}

	actx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := d.gen.Generate(actx, Prompt(n))
		ch <- result{text: text, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
				return "", ErrExternalServiceTimeout
			}
			return "", fmt.Errorf("dispatch: augment: %w", r.err)
		}
		if strings.TrimSpace(r.text) == "" {
			return "", textgen.ErrEmptyResponse
		}
		return r.text, nil
	case <-actx.Done():
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", ErrExternalServiceTimeout
	}
}

// Prompt builds the generator prompt from the notification's disclosed
// content only.
func Prompt(n world.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite this %s for the recipient in two sentences.\n", humanize(string(n.Type)))
	fmt.Fprintf(&b, "Priority: %s\nConfidentiality: %s\n", n.Priority, n.Tier)
	fmt.Fprintf(&b, "Title: %s\n", n.Title)
	fmt.Fprintf(&b, "Facts: %s\n", n.Content)
	return b.String()
}
