package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/awareness/internal/world"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// notificationFields maps an expect key to the notification value it
// reads. content matches as a substring; every other field exactly.
var notificationFields = map[string]func(world.Notification) string{
	"type":              func(n world.Notification) string { return string(n.Type) },
	"priority":          func(n world.Notification) string { return n.Priority.String() },
	"tier":              func(n world.Notification) string { return n.Tier.String() },
	"category":          func(n world.Notification) string { return string(n.Category) },
	"change_key":        func(n world.Notification) string { return n.ChangeKey },
	"title":             func(n world.Notification) string { return n.Title },
	"content":           func(n world.Notification) string { return n.Content },
	"requires_response": func(n world.Notification) string { return strconv.FormatBool(n.RequiresResponse) },
	"cycle":             func(n world.Notification) string { return strconv.FormatInt(n.Cycle, 10) },
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertNotificationCount:
		return assertNotificationCount(result, a)
	case AssertNotificationHas:
		return assertNotificationHas(result, a)
	case AssertChangeCount:
		return assertCycleCount(result, a, "changes", func(s world.CycleSummary) int { return s.ChangeCount })
	case AssertDroppedCount:
		return assertCycleCount(result, a, "dropped", func(s world.CycleSummary) int { return s.DroppedCount })
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func notificationsFor(result *Result, subscriber string) []world.Notification {
	if subscriber == "" {
		return result.Notifications
	}
	var out []world.Notification
	for _, n := range result.Notifications {
		if n.SubscriberID == subscriber {
			out = append(out, n)
		}
	}
	return out
}

func assertNotificationCount(result *Result, a Assertion) error {
	got := len(notificationsFor(result, a.Subscriber))
	if got == a.Count {
		return nil
	}
	who := a.Subscriber
	if who == "" {
		who = "all subscribers"
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d notifications for %s", a.Count, who),
		Actual:   fmt.Sprintf("%d notifications", got),
	}
}

func assertNotificationHas(result *Result, a Assertion) error {
	notes := notificationsFor(result, a.Subscriber)
	for _, n := range notes {
		if matchNotification(n, a.Expect) {
			return nil
		}
	}

	seen := make([]string, len(notes))
	for i, n := range notes {
		seen[i] = fmt.Sprintf("%s/%s/%s %q", n.Type, n.Priority, n.Tier, n.Title)
	}
	actual := "no notifications"
	if len(seen) > 0 {
		actual = strings.Join(seen, "; ")
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("notification for %s matching %v", a.Subscriber, a.Expect),
		Actual:   actual,
	}
}

func matchNotification(n world.Notification, expect map[string]string) bool {
	for field, want := range expect {
		get, ok := notificationFields[field]
		if !ok {
			return false
		}
		got := get(n)
		if field == "content" {
			if !strings.Contains(got, want) {
				return false
			}
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}

func assertCycleCount(result *Result, a Assertion, what string, get func(world.CycleSummary) int) error {
	sum, ok := result.summary(a.Cycle)
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("cycle %d to complete", a.Cycle),
			Actual:   "cycle not found",
		}
	}
	if got := get(sum); got != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d %s in cycle %d", a.Count, what, a.Cycle),
			Actual:   fmt.Sprintf("%d %s", got, what),
		}
	}
	return nil
}
