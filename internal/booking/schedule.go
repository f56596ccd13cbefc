package booking

import (
	"strings"
	"time"

	"github.com/johnmichaeldizon211/apatech-sub001/internal/models"
)

// Sentinels shown when a booking has no usable schedule. The admin table uses
// SentinelDash, the user views use SentinelNotSet.
const (
	SentinelNotSet = "Not set"
	SentinelDash   = "-"
)

type ScheduleSource int

const (
	SourceNone ScheduleSource = iota
	SourceLabel
	SourceParts
	SourceScheduledAt
	SourceCreatedAt
)

// Schedule is the resolved appointment of a booking. HasDate is false when the
// only information available is text that could not be parsed.
type Schedule struct {
	Source  ScheduleSource
	Date    time.Time
	HasDate bool
	Label   string
}

const (
	labelDate     = "Jan 2, 2006"
	labelDateTime = "Jan 2, 2006 3:04 PM"
)

// ResolveSchedule picks the authoritative schedule in this order: explicit
// label, date and time parts, combined timestamp, creation time. Unparseable
// parts and timestamps fall through to the next source; if nothing parses,
// the first raw schedule text is kept as the label so it is not lost. An
// explicit label that does not parse is still what gets displayed, but the
// date comes from the next source that does.
func ResolveSchedule(b models.Booking) Schedule {
	label := strings.TrimSpace(b.ScheduleLabel)
	if label != "" {
		if t, ok := ParseTime(label); ok {
			return Schedule{Source: SourceLabel, Date: t, HasDate: true, Label: label}
		}
	}
	s := resolveDate(b)
	if label != "" {
		s.Label = label
	}
	return s
}

func resolveDate(b models.Booking) Schedule {
	var leftover string
	if date := strings.TrimSpace(b.ScheduleDate); date != "" {
		clock := strings.TrimSpace(b.ScheduleTime)
		combined := strings.TrimSpace(date + " " + clock)
		if t, ok := ParseTime(combined); ok && clock != "" {
			return Schedule{Source: SourceParts, Date: t, HasDate: true, Label: t.Format(labelDateTime)}
		}
		if t, ok := ParseTime(date); ok {
			label := t.Format(labelDate)
			if clock != "" {
				label += " " + clock
			}
			return Schedule{Source: SourceParts, Date: t, HasDate: true, Label: label}
		}
		leftover = combined
	}

	if at := strings.TrimSpace(b.ScheduledAt); at != "" {
		if t, ok := ParseTime(at); ok {
			return Schedule{Source: SourceScheduledAt, Date: t, HasDate: true, Label: t.Format(labelDateTime)}
		}
		if leftover == "" {
			leftover = at
		}
	}

	if t, ok := ParseTime(b.CreatedAt); ok {
		return Schedule{Source: SourceCreatedAt, Date: t, HasDate: true, Label: t.Format(labelDateTime)}
	}

	return Schedule{Source: SourceNone, Label: leftover}
}

// ScheduleLabel renders the schedule for display, falling back to sentinel.
func ScheduleLabel(b models.Booking, sentinel string) string {
	s := ResolveSchedule(b)
	if s.Label == "" {
		return sentinel
	}
	return s.Label
}

// CreatedTime parses the booking's creation timestamp.
func CreatedTime(b models.Booking) (time.Time, bool) {
	return ParseTime(b.CreatedAt)
}
