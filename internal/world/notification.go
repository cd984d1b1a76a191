package world

import "time"

// RelevanceResult is the transient outcome of scoring one change for one
// subscriber. Recomputed every cycle, never persisted.
type RelevanceResult struct {
	IsRelevant bool     `json:"is_relevant"`
	Score      int      `json:"score"`
	Reasons    []string `json:"reasons"`
	Priority   Priority `json:"priority"`
}

// Disclosure is the access decision for one change and one subscriber.
type Disclosure struct {
	Tier     Tier           `json:"tier"`
	Payload  []PayloadField `json:"payload"`
	Redacted int            `json:"redacted"`
}

// NotificationType classifies a notification for the messaging layer.
type NotificationType string

const (
	TypeSecurityBriefing  NotificationType = "security_briefing"
	TypeProfessionalAlert NotificationType = "professional_alert"
	TypeRelevantEvent     NotificationType = "relevant_event"
	TypeInformationUpdate NotificationType = "information_update"
)

// Notification is delivered at most once per generation and never replayed.
type Notification struct {
	ID               string           `json:"id"`
	SubscriberID     string           `json:"subscriber_id"`
	Type             NotificationType `json:"notification_type"`
	Priority         Priority         `json:"priority"`
	Title            string           `json:"title"`
	Content          string           `json:"content"`
	Tier             Tier             `json:"confidentiality_level"`
	RequiresResponse bool             `json:"requires_response"`
	Timestamp        time.Time        `json:"timestamp"`
	Cycle            int64            `json:"cycle"`
	Category         Category         `json:"category"`
	ChangeKey        string           `json:"change_key"`
	Payload          []PayloadField   `json:"payload,omitempty"`
}

// CycleSummary is emitted once per completed cycle.
type CycleSummary struct {
	Cycle             int64         `json:"cycle"`
	RunID             string        `json:"run_id"`
	Trigger           string        `json:"trigger"`
	Version           int64         `json:"version"`
	ChangeCount       int           `json:"change_count"`
	NotificationCount int           `json:"notification_count"`
	DroppedCount      int           `json:"dropped_count"`
	Duration          time.Duration `json:"-"`
	StartedAt         time.Time     `json:"started_at"`
	CompletedAt       time.Time     `json:"completed_at"`
}

// CycleDurationMs reports the cycle duration in whole milliseconds.
func (s CycleSummary) CycleDurationMs() int64 {
	return s.Duration.Milliseconds()
}
