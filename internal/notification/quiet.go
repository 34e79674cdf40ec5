package notification

import (
	"time"

	"github.com/pondwatch/pondwatch-go/internal/datastore"
)

// parseClock parses "HH:MM" into minutes after midnight. Malformed values
// return -1.
func parseClock(s string) int {
	if len(s) != 5 || s[2] != ':' {
		return -1
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' ||
		s[3] < '0' || s[3] > '9' || s[4] < '0' || s[4] > '9' {
		return -1
	}
	if h > 23 || m > 59 {
		return -1
	}
	return h*60 + m
}

// ValidClock reports whether s is a well-formed "HH:MM" clock value.
func ValidClock(s string) bool {
	return parseClock(s) >= 0
}

// inQuietHours reports whether now falls inside the user's quiet window.
// Windows may wrap past midnight: 22:00 to 07:00 covers evening and early
// morning. A malformed window never suppresses anything.
func inQuietHours(pref *datastore.NotificationPreference, now time.Time) bool {
	if !pref.QuietHoursEnabled {
		return false
	}
	start := parseClock(pref.QuietHoursStart)
	end := parseClock(pref.QuietHoursEnd)
	if start < 0 || end < 0 || start == end {
		return false
	}

	minute := now.Hour()*60 + now.Minute()
	if start < end {
		return minute >= start && minute < end
	}
	// Overnight window.
	return minute >= start || minute < end
}

// suppressedByQuietHours applies the critical bypass: critical payloads go
// through regardless of the window.
func suppressedByQuietHours(pref *datastore.NotificationPreference, p *Payload, now time.Time) bool {
	if p.Severity == SeverityCritical {
		return false
	}
	return inQuietHours(pref, now)
}
