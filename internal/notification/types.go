// Package notification delivers alerts and system messages to the farmer
// through the configured channels: the bounded in-app log, push services,
// a webhook and MQTT. Delivery is gated by per-user preferences and quiet
// hours; every channel is attempted at most once per dispatch and failures
// in one channel never block another.
package notification

import "time"

// Severity levels, ordered info < warning < critical.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// severityRank orders severities for threshold comparison. Unknown values
// rank lowest.
func severityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 0
	default:
		return -1
	}
}

// ValidSeverity reports whether severity is one of the known levels.
func ValidSeverity(severity string) bool {
	return severityRank(severity) >= 0
}

// Channel names.
const (
	ChannelInApp   = "in-app"
	ChannelPush    = "push"
	ChannelWebhook = "webhook"
	ChannelMQTT    = "mqtt"
)

// Payload is one notification to deliver.
type Payload struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"` // alert type, or "test"
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	Severity        string    `json:"severity"`
	Recommendations []string  `json:"recommendations,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Delivery records the outcome of one channel attempt.
type Delivery struct {
	Channel  string `json:"channel"`
	Provider string `json:"provider,omitempty"`
	Err      error  `json:"-"`
	Skipped  string `json:"skipped,omitempty"` // reason, empty when attempted
}

// Sent reports whether the channel was attempted and succeeded.
func (d Delivery) Sent() bool {
	return d.Err == nil && d.Skipped == ""
}
