package assistant

import (
	"fmt"
	"strings"

	"github.com/pondwatch/pondwatch-go/internal/datastore"
)

// fallbackAnswer produces a canned but data-grounded answer when the
// language service is unavailable. It never returns an empty string.
func fallbackAnswer(query string, fc *farmContext) string {
	q := strings.ToLower(query)
	latest := fc.latest()

	switch {
	case containsAny(q, "alert", "warning", "problem", "wrong"):
		if fc == nil || len(fc.UnreadAlerts) == 0 {
			return "There are no unread alerts right now. The monitoring system will raise one if the fused water-quality score drops into the alert range or biodiversity falls too low."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "You have %d unread alert(s):\n", len(fc.UnreadAlerts))
		for i := range fc.UnreadAlerts {
			al := &fc.UnreadAlerts[i]
			fmt.Fprintf(&b, "- [%s] %s: %s\n", al.Severity, al.Title, al.Message)
		}
		return strings.TrimRight(b.String(), "\n")

	case containsAny(q, "frog", "call", "chorus", "croak"):
		if latest == nil {
			return "No recordings have been analyzed yet, so there is no frog call data to report. Upload a pond recording to get started."
		}
		return fmt.Sprintf(
			"The latest recording measured %.0f frog calls per minute (confidence %.2f). "+
				"A dense chorus above 50 calls per minute usually indicates healthy water; "+
				"below 30 the pond may be under stress.",
			latest.CallDensity, latest.CallConfidence)

	case containsAny(q, "biodiversity", "species", "wildlife", "ecosystem"):
		if latest == nil {
			return "No recordings have been analyzed yet, so there is no biodiversity data to report."
		}
		return fmt.Sprintf(
			"The latest biodiversity score is %.2f with the ecosystem assessed as %s and habitat quality %s. "+
				"Higher acoustic diversity generally means a richer, more resilient pond community.",
			latest.BiodiversityScore, latest.EcosystemHealth, latest.HabitatQuality)

	case containsAny(q, "noise", "quality of the recording", "recording quality"):
		if latest == nil {
			return "No recordings have been analyzed yet. Record near the pond edge at dusk, away from pumps and roads, for the cleanest audio."
		}
		return fmt.Sprintf(
			"The latest recording scored %.2f for audio quality with noise classified as %s. "+
				"Noise pollution in the call band was %.2f. Recording away from pumps, roads, and power lines improves analysis accuracy.",
			latest.QualityScore, latest.NoiseType, latest.NoisePollution)

	case containsAny(q, "record", "tip", "how do i", "improve", "advice"):
		return "For the best results, record 30 to 60 seconds at the pond edge around dusk when frogs are most active. " +
			"Keep the microphone away from pumps, roads, and wind, and upload WAV files when possible."

	case containsAny(q, "water quality", "water", "quality", "status", "score", "pond", "health"):
		if latest == nil {
			return "No recordings have been analyzed yet, so there is no water-quality assessment to report. Upload a pond recording to get your first reading."
		}
		answer := fmt.Sprintf(
			"The latest assessment scored %.2f overall with status %q. Frog call density was %.0f calls/min and biodiversity %.2f.",
			latest.OverallScore, latest.Status, latest.CallDensity, latest.BiodiversityScore)
		if len(latest.Recommendations) > 0 {
			answer += " Suggested next step: " + latest.Recommendations[0]
		}
		return answer

	default:
		if latest == nil {
			return "I can answer questions about your pond's water quality, frog activity, biodiversity, and alerts once a recording has been analyzed."
		}
		return fmt.Sprintf(
			"Your pond currently stands at an overall score of %.2f (%s). "+
				"Ask me about water quality, frog calls, biodiversity, alerts, or recording tips for more detail.",
			latest.OverallScore, latest.Status)
	}
}

// followUps suggests between one and four next questions based on the
// current monitoring state.
func followUps(fc *farmContext) []string {
	questions := make([]string, 0, 4)
	latest := fc.latest()

	if latest == nil {
		return []string{"How do I record my pond for analysis?"}
	}
	if fc != nil && len(fc.UnreadAlerts) > 0 {
		questions = append(questions, "What should I do about my unread alerts?")
	}
	if latest.Status != "good" {
		questions = append(questions, "Why is my water quality score low?")
	}
	if latest.CallDensity < 30 {
		questions = append(questions, "How can I encourage more frog activity?")
	}
	questions = append(questions,
		"How has my pond changed over recent recordings?",
		"What are good recording conditions?")
	if len(questions) > 4 {
		questions = questions[:4]
	}
	return questions
}

func (fc *farmContext) latest() *datastore.Assessment {
	if fc == nil {
		return nil
	}
	return fc.Latest
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
