package harness

import "github.com/roach88/awareness/internal/world"

// Trace event kinds beyond the step kinds.
const (
	KindNotify = "notify"
)

// TraceEvent records one observable outcome of a step.
type TraceEvent struct {
	// Step is the index of the step that produced the event.
	Step   int            `json:"step"`
	Kind   string         `json:"kind"`
	Detail map[string]any `json:"detail,omitempty"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every step ran and every assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	Errors []string `json:"errors,omitempty"`

	// Notifications holds every delivered notification in delivery order.
	Notifications []world.Notification `json:"-"`

	// Summaries holds one summary per completed cycle.
	Summaries []world.CycleSummary `json:"-"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) trace(step int, kind string, detail map[string]any) {
	r.Trace = append(r.Trace, TraceEvent{Step: step, Kind: kind, Detail: detail})
}

// summary returns the summary of cycle, if it completed.
func (r *Result) summary(cycle int64) (world.CycleSummary, bool) {
	for _, s := range r.Summaries {
		if s.Cycle == cycle {
			return s, true
		}
	}
	return world.CycleSummary{}, false
}
