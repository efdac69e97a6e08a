package calendar

import (
	"fmt"
	"strings"
)

// FormatEvents renders events as plain text for the model to read back
// to the user.
func FormatEvents(events []Event) string {
	if len(events) == 0 {
		return "No upcoming events."
	}
	var b strings.Builder
	for _, ev := range events {
		if ev.AllDay {
			fmt.Fprintf(&b, "- %s: %s (all day)", ev.Start.Format("Mon Jan 2"), ev.Summary)
		} else {
			fmt.Fprintf(&b, "- %s: %s", ev.Start.Format("Mon Jan 2 15:04"), ev.Summary)
		}
		if ev.Location != "" {
			fmt.Fprintf(&b, " at %s", ev.Location)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
