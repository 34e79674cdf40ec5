// Package alert evaluates assessment-driven alert rules and manages the
// bounded alert list. Alerts are created once and only ever marked read or
// dismissed afterwards; there is no automatic expiry.
package alert

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/datastore"
	"github.com/pondwatch/pondwatch-go/internal/errors"
	"github.com/pondwatch/pondwatch-go/internal/logging"
)

// Alert types.
const (
	TypeCriticalWaterQuality = "critical_water_quality"
	TypeLowBiodiversity      = "low_biodiversity"
)

// Severities, ordered info < warning < critical.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Manager evaluates alert rules against assessments.
type Manager struct {
	store    datastore.Interface
	settings *conf.Settings
	log      *slog.Logger
}

// NewManager creates an alert manager backed by the given store.
func NewManager(store datastore.Interface, settings *conf.Settings) *Manager {
	return &Manager{
		store:    store,
		settings: settings,
		log:      logging.ForService("alert"),
	}
}

// Evaluate runs both alert rules against the assessment and persists any
// triggered alerts. The rules are independent and non-exclusive; each can
// fire at most once per assessment. An alert whose message matches an
// existing active alert of the same type is not recreated, so re-submitting
// the same recording does not pile up duplicates.
func (m *Manager) Evaluate(a *datastore.Assessment) ([]datastore.Alert, error) {
	if a == nil {
		return nil, errors.Newf("cannot evaluate nil assessment").
			Component("alert").
			Category(errors.CategoryValidation).
			Build()
	}

	var candidates []datastore.Alert
	if a.Status == "alert" {
		candidates = append(candidates, criticalWaterQualityAlert(a))
	}
	if a.BiodiversityScore < m.settings.Alerts.LowBiodiversityCutoff {
		candidates = append(candidates, lowBiodiversityAlert(a))
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	active, err := m.store.GetActiveAlerts()
	if err != nil {
		return nil, err
	}

	var created []datastore.Alert
	for i := range candidates {
		c := &candidates[i]
		if isDuplicate(active, c) {
			m.log.Debug("suppressing duplicate alert",
				"type", c.Type, "assessment_id", c.AssessmentID)
			continue
		}
		if err := m.store.SaveAlert(c); err != nil {
			return created, err
		}
		m.log.Info("alert created",
			"type", c.Type, "severity", c.Severity, "assessment_id", c.AssessmentID)
		created = append(created, *c)
	}
	return created, nil
}

// isDuplicate reports whether an equivalent active alert already exists.
// Same source assessment, or same type with identical message, counts as
// equivalent.
func isDuplicate(active []datastore.Alert, c *datastore.Alert) bool {
	for i := range active {
		if active[i].Type != c.Type {
			continue
		}
		if active[i].AssessmentID == c.AssessmentID || active[i].Message == c.Message {
			return true
		}
	}
	return false
}

func criticalWaterQualityAlert(a *datastore.Assessment) datastore.Alert {
	return datastore.Alert{
		PublicID:     uuid.New().String(),
		AssessmentID: a.PublicID,
		Type:         TypeCriticalWaterQuality,
		Severity:     SeverityCritical,
		Title:        "Critical Water Quality",
		Message: fmt.Sprintf(
			"Acoustic indicators for %s point to poor water quality (score %.2f). Frog activity and habitat health are both depressed.",
			recordingLabel(a), a.OverallScore),
		Recommendations: []string{
			"Test water chemistry directly as soon as possible",
			"Check for runoff, algae blooms or other pollution sources",
			"Re-record at the same spot tomorrow to confirm the trend",
		},
	}
}

func lowBiodiversityAlert(a *datastore.Assessment) datastore.Alert {
	return datastore.Alert{
		PublicID:     uuid.New().String(),
		AssessmentID: a.PublicID,
		Type:         TypeLowBiodiversity,
		Severity:     SeverityWarning,
		Title:        "Low Biodiversity",
		Message: fmt.Sprintf(
			"Very few distinct sound classes detected at %s (biodiversity %.2f). A quiet pond can be an early sign of habitat stress.",
			recordingLabel(a), a.BiodiversityScore),
		Recommendations: []string{
			"Monitor this pond more frequently over the next week",
			"Check vegetation cover and water levels around the pond edge",
		},
	}
}

func recordingLabel(a *datastore.Assessment) string {
	if a.FieldName != "" {
		return a.FieldName
	}
	if a.Filename != "" {
		return a.Filename
	}
	return "this pond"
}
