package assistant

import (
	"fmt"
	"strings"

	"github.com/pondwatch/pondwatch-go/internal/datastore"
)

// farmContext is the monitoring snapshot embedded in each prompt. It is
// assembled from the datastore and cached for a short TTL so repeated
// questions do not hammer the database.
type farmContext struct {
	Latest       *datastore.Assessment
	Recent       []datastore.Assessment
	UnreadAlerts []datastore.Alert
}

const systemPersona = `You are PondWatch, an assistant for rice farmers who monitor ` +
	`paddy water quality through the sounds of their fields. Frogs are the ` +
	`indicator species: a loud, dense chorus means healthy water, a quiet pond ` +
	`is a warning sign. Answer in plain language a farmer can act on. Keep ` +
	`answers short and practical, mention specific numbers from the monitoring ` +
	`data when they support the answer, and never invent readings that are not ` +
	`in the data below. When you recommend actions, give them as numbered ` +
	`steps. For major interventions such as draining a paddy, applying ` +
	`chemicals or restocking, advise the farmer to consult a local ` +
	`agricultural extension officer before acting.`

// buildPrompt renders the persona, the monitoring snapshot, and the user's
// question into a single prompt string.
func buildPrompt(query string, fc *farmContext) string {
	var b strings.Builder
	b.WriteString(systemPersona)
	b.WriteString("\n\n## Monitoring data\n")

	if fc == nil || fc.Latest == nil {
		b.WriteString("No assessments recorded yet.\n")
	} else {
		writeAssessment(&b, "Latest assessment", fc.Latest)
		if len(fc.Recent) > 1 {
			b.WriteString("\nRecent history (newest first):\n")
			for i := range fc.Recent {
				a := &fc.Recent[i]
				fmt.Fprintf(&b, "- %s: score %.2f (%s), call density %.0f/min, biodiversity %.2f\n",
					a.CreatedAt.Format("2006-01-02 15:04"), a.OverallScore, a.Status,
					a.CallDensity, a.BiodiversityScore)
			}
		}
	}

	if fc != nil && len(fc.UnreadAlerts) > 0 {
		b.WriteString("\nUnread alerts:\n")
		for i := range fc.UnreadAlerts {
			al := &fc.UnreadAlerts[i]
			fmt.Fprintf(&b, "- [%s] %s: %s\n", al.Severity, al.Title, al.Message)
		}
	} else {
		b.WriteString("\nNo unread alerts.\n")
	}

	b.WriteString("\n## Question\n")
	b.WriteString(strings.TrimSpace(query))
	return b.String()
}

func writeAssessment(b *strings.Builder, heading string, a *datastore.Assessment) {
	fmt.Fprintf(b, "%s (%s):\n", heading, a.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(b, "- Overall score %.2f, status %s\n", a.OverallScore, a.Status)
	fmt.Fprintf(b, "- Frog call density %.0f calls/min (confidence %.2f)\n", a.CallDensity, a.CallConfidence)
	fmt.Fprintf(b, "- Biodiversity %.2f, ecosystem %s, habitat %s\n",
		a.BiodiversityScore, a.EcosystemHealth, a.HabitatQuality)
	fmt.Fprintf(b, "- Recording quality %.2f, noise type %s, noise pollution %.2f\n",
		a.QualityScore, a.NoiseType, a.NoisePollution)
	if a.Latitude != nil && a.Longitude != nil {
		fmt.Fprintf(b, "- Location %.4f, %.4f", *a.Latitude, *a.Longitude)
		if a.FieldName != "" {
			fmt.Fprintf(b, " (%s)", a.FieldName)
		}
		b.WriteString("\n")
	} else if a.FieldName != "" {
		fmt.Fprintf(b, "- Field %s\n", a.FieldName)
	}
	if len(a.Species) > 0 {
		b.WriteString("- Species heard:")
		for i := range a.Species {
			s := &a.Species[i]
			fmt.Fprintf(b, " %s (%d calls)", s.CommonName, s.Calls)
			if i < len(a.Species)-1 {
				b.WriteString(",")
			}
		}
		b.WriteString("\n")
	}
	if len(a.Factors) > 0 {
		fmt.Fprintf(b, "- Factors: %s\n", strings.Join(a.Factors, "; "))
	}
	if len(a.Recommendations) > 0 {
		fmt.Fprintf(b, "- Recommendations: %s\n", strings.Join(a.Recommendations, "; "))
	}
}
