package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/awareness/internal/world"
)

// RecordCycle writes a cycle summary and the notifications it delivered
// in one transaction. Duplicate writes are silently ignored.
func (j *Journal) RecordCycle(ctx context.Context, sum world.CycleSummary, delivered []world.Notification) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record cycle: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cycles
		(run_id, cycle, trigger, version, change_count, notification_count, dropped_count, duration_ms, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		sum.RunID,
		sum.Cycle,
		sum.Trigger,
		sum.Version,
		sum.ChangeCount,
		sum.NotificationCount,
		sum.DroppedCount,
		sum.CycleDurationMs(),
		formatTime(sum.StartedAt),
		formatTime(sum.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("record cycle: %w", err)
	}

	for _, n := range delivered {
		payload, err := json.Marshal(n.Payload)
		if err != nil {
			return fmt.Errorf("record cycle: marshal payload: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO notifications
			(id, run_id, cycle, subscriber_id, type, priority, title, content, tier, requires_response, category, change_key, payload, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`,
			n.ID,
			sum.RunID,
			sum.Cycle,
			n.SubscriberID,
			string(n.Type),
			n.Priority.String(),
			n.Title,
			n.Content,
			n.Tier.String(),
			boolToInt(n.RequiresResponse),
			string(n.Category),
			n.ChangeKey,
			string(payload),
			formatTime(n.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("record notification %s: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record cycle: commit: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
