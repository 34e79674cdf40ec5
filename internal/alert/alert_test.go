package alert

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/datastore"
)

func newTestManager(t *testing.T) (*Manager, datastore.Interface) {
	t.Helper()

	settings := &conf.Settings{}
	settings.Datastore.SQLite.Enabled = true
	settings.Datastore.SQLite.Path = filepath.Join(t.TempDir(), "alerts.db")
	settings.Fusion.HistoryLimit = 50
	settings.Alerts.MaxActive = 20
	settings.Alerts.LowBiodiversityCutoff = 0.3
	settings.Notification.MaxInApp = 50

	store, err := datastore.New(settings)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	return NewManager(store, settings), store
}

func assessment(status string, score, biodiversity float64) *datastore.Assessment {
	return &datastore.Assessment{
		PublicID:          uuid.New().String(),
		Filename:          "pond.wav",
		Status:            status,
		OverallScore:      score,
		BiodiversityScore: biodiversity,
	}
}

func TestEvaluateNoAlertsForGoodAssessment(t *testing.T) {
	m, _ := newTestManager(t)

	created, err := m.Evaluate(assessment("good", 0.82, 0.78))
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestEvaluateCriticalWaterQuality(t *testing.T) {
	m, _ := newTestManager(t)

	created, err := m.Evaluate(assessment("alert", 0.25, 0.6))
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, TypeCriticalWaterQuality, created[0].Type)
	assert.Equal(t, SeverityCritical, created[0].Severity)
	assert.NotEmpty(t, created[0].Recommendations)
}

func TestEvaluateLowBiodiversity(t *testing.T) {
	m, store := newTestManager(t)

	created, err := m.Evaluate(assessment("warning", 0.5, 0.25))
	require.NoError(t, err)
	require.Len(t, created, 1, "exactly one low-biodiversity alert")
	assert.Equal(t, TypeLowBiodiversity, created[0].Type)

	active, err := store.GetActiveAlerts()
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestEvaluateBothRulesFire(t *testing.T) {
	m, _ := newTestManager(t)

	created, err := m.Evaluate(assessment("alert", 0.2, 0.1))
	require.NoError(t, err)
	require.Len(t, created, 2, "rules are independent and non-exclusive")

	types := []string{created[0].Type, created[1].Type}
	assert.Contains(t, types, TypeCriticalWaterQuality)
	assert.Contains(t, types, TypeLowBiodiversity)
}

func TestEvaluateSameAssessmentDoesNotDuplicate(t *testing.T) {
	m, store := newTestManager(t)

	a := assessment("warning", 0.5, 0.25)
	_, err := m.Evaluate(a)
	require.NoError(t, err)

	created, err := m.Evaluate(a)
	require.NoError(t, err)
	assert.Empty(t, created, "same assessment must not trigger twice")

	active, err := store.GetActiveAlerts()
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestEvaluateIdenticalRecordingDoesNotDuplicate(t *testing.T) {
	m, store := newTestManager(t)

	// Identical input re-submitted gets a fresh assessment ID but the same
	// alert content.
	first := assessment("warning", 0.5, 0.25)
	second := assessment("warning", 0.5, 0.25)

	_, err := m.Evaluate(first)
	require.NoError(t, err)
	created, err := m.Evaluate(second)
	require.NoError(t, err)
	assert.Empty(t, created)

	active, err := store.GetActiveAlerts()
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestEvaluateAfterDismissalCanFireAgain(t *testing.T) {
	m, store := newTestManager(t)

	first, err := m.Evaluate(assessment("warning", 0.5, 0.25))
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.NoError(t, store.DismissAlert(first[0].PublicID))

	created, err := m.Evaluate(assessment("warning", 0.5, 0.25))
	require.NoError(t, err)
	assert.Len(t, created, 1, "dismissal clears the duplicate guard")
}

func TestEvaluateNilAssessment(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Evaluate(nil)
	assert.Error(t, err)
}
