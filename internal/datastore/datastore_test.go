package datastore

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pondwatch/pondwatch-go/internal/conf"
)

func newTestStore(t *testing.T) Interface {
	t.Helper()

	settings := &conf.Settings{}
	settings.Datastore.SQLite.Enabled = true
	settings.Datastore.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	settings.Fusion.HistoryLimit = 50
	settings.Alerts.MaxActive = 20
	settings.Notification.MaxInApp = 50

	store, err := New(settings)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testAssessment(status string, score float64) *Assessment {
	return &Assessment{
		PublicID:          uuid.New().String(),
		Filename:          "pond.wav",
		Duration:          120,
		SampleRate:        22050,
		Format:            "wav",
		CallDensity:       40,
		BiodiversityScore: 0.7,
		EcosystemHealth:   "healthy",
		OverallScore:      score,
		Status:            status,
		Factors:           []string{"Active frog calls detected"},
		Recommendations:   []string{"Continue routine monitoring"},
		Species: []SpeciesDetection{
			{CommonName: "Green Frog", ScientificName: "Lithobates clamitans", Calls: 12, Confidence: 0.8},
		},
	}
}

func TestNewRequiresBackend(t *testing.T) {
	_, err := New(&conf.Settings{})
	assert.Error(t, err)
}

func TestSaveAndGetAssessment(t *testing.T) {
	store := newTestStore(t)

	a := testAssessment("good", 0.82)
	require.NoError(t, store.SaveAssessment(a))

	got, err := store.GetAssessment(a.PublicID)
	require.NoError(t, err)
	assert.Equal(t, a.PublicID, got.PublicID)
	assert.Equal(t, "good", got.Status)
	assert.Equal(t, []string{"Active frog calls detected"}, got.Factors)
	require.Len(t, got.Species, 1)
	assert.Equal(t, "Green Frog", got.Species[0].CommonName)

	_, err = store.GetAssessment("no-such-id")
	assert.Error(t, err)
}

func TestAssessmentHistoryCap(t *testing.T) {
	store := newTestStore(t)

	var first string
	for i := 0; i < 55; i++ {
		a := testAssessment("good", 0.8)
		if i == 0 {
			first = a.PublicID
		}
		require.NoError(t, store.SaveAssessment(a))
	}

	recent, err := store.GetRecentAssessments(0)
	require.NoError(t, err)
	assert.Len(t, recent, 50, "history must stay capped")

	// The oldest rows are the ones pruned.
	_, err = store.GetAssessment(first)
	assert.Error(t, err)
}

func TestLatestAssessment(t *testing.T) {
	store := newTestStore(t)

	latest, err := store.LatestAssessment()
	require.NoError(t, err)
	assert.Nil(t, latest, "empty store has no latest assessment")

	require.NoError(t, store.SaveAssessment(testAssessment("good", 0.8)))
	newest := testAssessment("alert", 0.3)
	require.NoError(t, store.SaveAssessment(newest))

	latest, err = store.LatestAssessment()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, newest.PublicID, latest.PublicID)
}

func TestDailyCounts(t *testing.T) {
	store := newTestStore(t)

	count, err := store.GetDailyCount("2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.IncrementDailyCount("2026-09-01"))
	}
	require.NoError(t, store.IncrementDailyCount("2026-08-31"))

	count, err = store.GetDailyCount("2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	counts, err := store.GetDailyCounts(10)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "2026-09-01", counts[0].Date, "newest first")
}

func testAlert() *Alert {
	return &Alert{
		PublicID:     uuid.New().String(),
		AssessmentID: uuid.New().String(),
		Type:         "critical_water_quality",
		Severity:     "critical",
		Title:        "Critical Water Quality",
		Message:      "Acoustic indicators point to degraded water quality",
		Recommendations: []string{
			"Test water chemistry directly",
		},
	}
}

func TestAlertLifecycle(t *testing.T) {
	store := newTestStore(t)

	a := testAlert()
	require.NoError(t, store.SaveAlert(a))

	active, err := store.GetActiveAlerts()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.False(t, active[0].Read)

	require.NoError(t, store.MarkAlertRead(a.PublicID))
	unread, err := store.GetUnreadAlerts()
	require.NoError(t, err)
	assert.Empty(t, unread)

	active, err = store.GetActiveAlerts()
	require.NoError(t, err)
	assert.Len(t, active, 1, "read alerts stay active until dismissed")

	require.NoError(t, store.DismissAlert(a.PublicID))
	active, err = store.GetActiveAlerts()
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.Error(t, store.MarkAlertRead("no-such-alert"))
}

func TestAlertCap(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 25; i++ {
		require.NoError(t, store.SaveAlert(testAlert()))
	}

	active, err := store.GetActiveAlerts()
	require.NoError(t, err)
	assert.Len(t, active, 20)
}

func TestInAppNotificationCap(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 55; i++ {
		require.NoError(t, store.SaveInAppNotification(&InAppNotification{
			UserID:   "farmer-1",
			Title:    fmt.Sprintf("notice %d", i),
			Severity: "info",
		}))
	}
	require.NoError(t, store.SaveInAppNotification(&InAppNotification{
		UserID: "farmer-2", Title: "other user", Severity: "info",
	}))

	log, err := store.GetInAppNotifications("farmer-1", 0)
	require.NoError(t, err)
	assert.Len(t, log, 50, "per-user log must stay capped")
	assert.Equal(t, "notice 54", log[0].Title, "newest first")

	other, err := store.GetInAppNotifications("farmer-2", 0)
	require.NoError(t, err)
	assert.Len(t, other, 1, "caps are per user")
}

func TestPreferences(t *testing.T) {
	store := newTestStore(t)

	p, err := store.GetPreference("farmer-1")
	require.NoError(t, err)
	assert.True(t, p.InAppEnabled, "defaults apply before any save")
	assert.False(t, p.PushEnabled)

	p.PushEnabled = true
	p.QuietHoursEnabled = true
	require.NoError(t, store.SavePreference(&p))

	p.MinSeverity = "warning"
	require.NoError(t, store.SavePreference(&p), "second save updates in place")

	got, err := store.GetPreference("farmer-1")
	require.NoError(t, err)
	assert.True(t, got.PushEnabled)
	assert.True(t, got.QuietHoursEnabled)
	assert.Equal(t, "warning", got.MinSeverity)
}

func TestFields(t *testing.T) {
	store := newTestStore(t)

	f := &Field{Name: "North Pond"}
	require.NoError(t, store.SaveField(f))
	require.NotZero(t, f.ID)

	fields, err := store.GetFields()
	require.NoError(t, err)
	require.Len(t, fields, 1)

	require.NoError(t, store.DeleteField(f.ID))
	assert.Error(t, store.DeleteField(f.ID))

	fields, err = store.GetFields()
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Ping())
}
