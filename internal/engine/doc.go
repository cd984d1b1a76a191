// Package engine runs the awareness pipeline.
//
// One cycle pulls the next snapshot, compares it against the last
// processed one, scores and filters every change for every active
// subscriber, and commits the resulting notifications to per-subscriber
// outboxes. The Scheduler drives cycles on an interval, on demand
// (TriggerNow), and when changes are injected.
//
// Cycle discipline:
//   - At most one cycle runs at a time. A tick or trigger that arrives
//     while a cycle is in flight is skipped and logged, never queued.
//   - Within a cycle, changes are handled in detection order followed by
//     injected changes in arrival order. Subscribers are fanned out
//     concurrently; per-subscriber notification order follows change order.
//   - Notifications are staged during fan-out and committed only at the
//     end of the cycle. A subscriber unregistered before the commit
//     receives nothing from that cycle.
//   - A failing or panicking cycle is recovered at the scheduler boundary,
//     counted in Status, and the next tick proceeds normally.
//
// Cycles are numbered by a logical Clock, never by wall time.
package engine
