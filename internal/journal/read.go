package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/awareness/internal/world"
)

// RecentCycles returns up to limit cycles, oldest first among the most
// recently recorded.
//
// Returns an empty slice (not nil) if no cycles exist.
func (j *Journal) RecentCycles(ctx context.Context, limit int) ([]world.CycleSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, cycle, trigger, version, change_count, notification_count, dropped_count, duration_ms, started_at, completed_at
		FROM (
			SELECT rowid AS rid, * FROM cycles ORDER BY rid DESC LIMIT ?
		)
		ORDER BY rid ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	cycles := []world.CycleSummary{}
	for rows.Next() {
		var (
			s                  world.CycleSummary
			durMs              int64
			started, completed string
		)
		if err := rows.Scan(&s.RunID, &s.Cycle, &s.Trigger, &s.Version, &s.ChangeCount,
			&s.NotificationCount, &s.DroppedCount, &durMs, &started, &completed); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		s.Duration = time.Duration(durMs) * time.Millisecond
		if s.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if s.CompletedAt, err = parseTime(completed); err != nil {
			return nil, err
		}
		cycles = append(cycles, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	return cycles, nil
}

// Notifications returns up to limit notifications delivered to a
// subscriber, oldest first among the most recent.
//
// Returns an empty slice (not nil) if none exist.
func (j *Journal) Notifications(ctx context.Context, subscriberID string, limit int) ([]world.Notification, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, subscriber_id, type, priority, title, content, tier, requires_response, category, change_key, payload, timestamp, cycle
		FROM (
			SELECT rowid AS rid, * FROM notifications
			WHERE subscriber_id = ?
			ORDER BY rid DESC LIMIT ?
		)
		ORDER BY rid ASC
	`, subscriberID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := []world.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// CountNotifications returns how many notifications a cycle delivered.
func (j *Journal) CountNotifications(ctx context.Context, runID string, cycle int64) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE run_id = ? AND cycle = ?`, runID, cycle,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return n, nil
}

func scanNotification(rows *sql.Rows) (world.Notification, error) {
	var (
		n                        world.Notification
		typ, priority, tier, cat string
		requires                 int
		payload, ts              string
	)
	if err := rows.Scan(&n.ID, &n.SubscriberID, &typ, &priority, &n.Title, &n.Content, &tier,
		&requires, &cat, &n.ChangeKey, &payload, &ts, &n.Cycle); err != nil {
		return n, fmt.Errorf("scan notification: %w", err)
	}

	var err error
	n.Type = world.NotificationType(typ)
	n.Category = world.Category(cat)
	n.RequiresResponse = requires != 0
	if n.Priority, err = world.ParsePriority(priority); err != nil {
		return n, fmt.Errorf("notification %s: %w", n.ID, err)
	}
	if n.Tier, err = world.ParseTier(tier); err != nil {
		return n, fmt.Errorf("notification %s: %w", n.ID, err)
	}
	if err := json.Unmarshal([]byte(payload), &n.Payload); err != nil {
		return n, fmt.Errorf("notification %s: payload: %w", n.ID, err)
	}
	if n.Timestamp, err = parseTime(ts); err != nil {
		return n, err
	}
	return n, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
