// Package dispatch turns scored, filtered changes into notifications and
// delivers them to per-subscriber outboxes.
//
// Notification lifecycle:
//
//	generated -> filtered -> dispatched -> delivered
//	                         dispatched -> dropped   (subscriber gone)
//
// Within a cycle, notifications are staged in a Batch. Commit delivers
// them at cycle end, only to subscribers that are still registered and
// whose outbox is open. There is no replay: dropped notifications are
// gone.
//
// Content is built from deterministic templates over the disclosed
// payload. An optional text generator may rewrite it, bounded by a
// timeout; on any failure the template text stands.
package dispatch
