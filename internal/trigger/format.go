package trigger

import (
	"strings"
	"time"
)

// TimeLayout is the report timestamp layout (YYYY-MM-DD HH:mm:ss).
const TimeLayout = "2006-01-02 15:04:05"

const (
	msgUninitialized = "Uninitialized trigger time. "
	msgNotDue        = "Not the time to prompt."
	msgPrompting     = "Prompting now for "
	msgGenerated     = "Generated trigger time: "
)

func FormatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(TimeLayout)
}

// FormatEntries renders entries as a comma separated list; consumed entries print as "-".
func FormatEntries(entries []Entry, loc *time.Location) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		if !e.Pending() {
			b.WriteString("-")
			continue
		}
		b.WriteString(FormatTime(e.At, loc))
	}
	return b.String()
}

func generatedMessage(s Set, loc *time.Location) string {
	return msgGenerated + FormatEntries(s.Entries, loc)
}
