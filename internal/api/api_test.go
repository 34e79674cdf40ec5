package api

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/datastore"
)

func newTestController(t *testing.T) (*Controller, datastore.Interface) {
	t.Helper()

	settings := conf.Defaults()
	settings.Datastore.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	settings.Audio.MinDuration = 1
	settings.Audio.MinChunkSeconds = 1
	settings.Audio.ChunkSeconds = 2
	settings.Assistant.APIKey = ""

	store, err := datastore.New(settings)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	e := echo.New()
	return New(e, store, settings), store
}

func doRequest(c *Controller, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	return rec
}

func doJSON(c *Controller, method, target string, payload any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if payload != nil {
		_ = json.NewEncoder(&buf).Encode(payload)
	}
	return doRequest(c, method, target, &buf, echo.MIMEApplicationJSON)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

// chorusWAV builds a WAV with frog-like call bursts over mild background
// noise so the pipeline produces a meaningful assessment.
func chorusWAV(seconds float64, sampleRate int) []byte {
	rng := rand.New(rand.NewSource(11))
	n := int(seconds * float64(sampleRate))
	samples := make([]float64, n)

	for i := range samples {
		samples[i] = 0.01 * (rng.Float64()*2 - 1)
	}
	burst := sampleRate / 10
	gap := sampleRate
	for start := 0; start+burst < n; start += gap {
		for i := 0; i < burst; i++ {
			tt := float64(i) / float64(sampleRate)
			samples[start+i] += 0.6 * math.Sin(2*math.Pi*800*tt)
		}
	}

	dataSize := n * 2
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	for _, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.Write(&buf, binary.LittleEndian, int16(s*32767))
	}
	return buf.Bytes()
}

func multipartUpload(t *testing.T, wavData []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("audio", "pond.wav")
	require.NoError(t, err)
	_, err = part.Write(wavData)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	c, _ := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/api/v1/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["database_status"])
	assert.Equal(t, false, body["assistant_configured"])
	assert.Contains(t, body, "notification_providers")
	assert.Contains(t, body, "system")
}

func TestCreateAnalysisEndToEnd(t *testing.T) {
	c, store := newTestController(t)

	wavData := chorusWAV(4, 22050)
	buf, contentType := multipartUpload(t, wavData, map[string]string{
		"latitude":  "14.5995",
		"longitude": "120.9842",
	})

	rec := doRequest(c, http.MethodPost, "/api/v1/analyses", buf, contentType)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assessment, ok := body["assessment"].(map[string]any)
	require.True(t, ok)

	assert.NotEmpty(t, assessment["id"])
	assert.Contains(t, []string{"good", "warning", "alert"}, assessment["status"])
	score := assessment["overall_score"].(float64)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
	assert.InDelta(t, 14.5995, assessment["latitude"].(float64), 1e-6)

	// The assessment made it into the store.
	saved, err := store.GetAssessment(assessment["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "pond.wav", saved.Filename)
}

func TestCreateAnalysisRejectsMissingFile(t *testing.T) {
	c, _ := newTestController(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("latitude", "1.0"))
	require.NoError(t, w.Close())

	rec := doRequest(c, http.MethodPost, "/api/v1/analyses", &buf, w.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.NotEmpty(t, errResp.CorrelationID)
}

func TestCreateAnalysisRejectsGarbageAudio(t *testing.T) {
	c, _ := newTestController(t)

	buf, contentType := multipartUpload(t, []byte("not audio at all"), nil)
	rec := doRequest(c, http.MethodPost, "/api/v1/analyses", buf, contentType)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateAnalysisRejectsUnsuitableAudio(t *testing.T) {
	c, _ := newTestController(t)
	c.Settings.Audio.WarningTolerance = 0

	// 8 kHz is below the minimum sample rate, which trips the gate at
	// zero tolerance.
	buf, contentType := multipartUpload(t, chorusWAV(2, 8000), nil)
	rec := doRequest(c, http.MethodPost, "/api/v1/analyses", buf, contentType)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	warnings, ok := body["warnings"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, warnings)
	assert.NotEmpty(t, body["recommendations"])
}

func TestCreateAnalysisReturnsAssessmentWhenStoreFails(t *testing.T) {
	c, store := newTestController(t)
	require.NoError(t, store.Close())

	buf, contentType := multipartUpload(t, chorusWAV(3, 22050), nil)
	rec := doRequest(c, http.MethodPost, "/api/v1/analyses", buf, contentType)
	require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())

	// The computed assessment rides along even though persisting failed.
	body := decodeBody(t, rec)
	assessment, ok := body["assessment"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, []string{"good", "warning", "alert"}, assessment["status"])
	assert.NotEmpty(t, body["error"])
}

func TestListAndGetAnalyses(t *testing.T) {
	c, store := newTestController(t)

	id := uuid.New().String()
	require.NoError(t, store.SaveAssessment(&datastore.Assessment{
		PublicID: id, Filename: "a.wav", Status: "good", OverallScore: 0.9,
	}))

	rec := doRequest(c, http.MethodGet, "/api/v1/analyses", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["count"])

	rec = doRequest(c, http.MethodGet, "/api/v1/analyses/"+id, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(c, http.MethodGet, "/api/v1/analyses/"+uuid.New().String(), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalysisStats(t *testing.T) {
	c, store := newTestController(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.SaveAssessment(&datastore.Assessment{
			PublicID: uuid.New().String(), Status: "good", OverallScore: 0.8,
		}))
		require.NoError(t, store.IncrementDailyCount("2025-06-10"))
	}

	rec := doRequest(c, http.MethodGet, "/api/v1/analyses/stats", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 3, body["total_analyses"])
	dist := body["status_distribution"].(map[string]any)
	assert.EqualValues(t, 3, dist["good"])
}

func TestAssistantQueryFallback(t *testing.T) {
	c, store := newTestController(t)

	require.NoError(t, store.SaveAssessment(&datastore.Assessment{
		PublicID: uuid.New().String(), Status: "good", OverallScore: 0.91, CallDensity: 55,
	}))

	rec := doJSON(c, http.MethodPost, "/api/v1/assistant/query",
		map[string]string{"query": "How is my water quality?"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	metadata, ok := body["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "fallback", metadata["mode"])
	assert.NotEmpty(t, body["response"])
	followUps := body["follow_up_questions"].([]any)
	assert.GreaterOrEqual(t, len(followUps), 1)
	assert.LessOrEqual(t, len(followUps), 4)
}

func TestAssistantQueryValidation(t *testing.T) {
	c, _ := newTestController(t)

	rec := doJSON(c, http.MethodPost, "/api/v1/assistant/query", map[string]string{"query": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssistantRateLimit(t *testing.T) {
	c, _ := newTestController(t)
	// Burst of 5 at 2/s: the sixth immediate request is rejected.
	var last int
	for i := 0; i < 6; i++ {
		rec := doJSON(c, http.MethodPost, "/api/v1/assistant/query",
			map[string]string{"query": "status?"})
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestAlertLifecycleOverHTTP(t *testing.T) {
	c, store := newTestController(t)

	alertID := uuid.New().String()
	require.NoError(t, store.SaveAlert(&datastore.Alert{
		PublicID: alertID,
		Type:     "critical_water_quality",
		Severity: "critical",
		Title:    "Critical water quality",
		Message:  "score dropped",
	}))

	rec := doRequest(c, http.MethodGet, "/api/v1/alerts", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["count"])

	rec = doRequest(c, http.MethodPost, "/api/v1/alerts/"+alertID+"/read", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(c, http.MethodGet, "/api/v1/alerts?unread=true", nil, "")
	assert.EqualValues(t, 0, decodeBody(t, rec)["count"])

	rec = doRequest(c, http.MethodPost, "/api/v1/alerts/"+alertID+"/dismiss", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(c, http.MethodGet, "/api/v1/alerts", nil, "")
	assert.EqualValues(t, 0, decodeBody(t, rec)["count"])

	rec = doRequest(c, http.MethodPost, "/api/v1/alerts/"+uuid.New().String()+"/read", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreferencesRoundTrip(t *testing.T) {
	c, _ := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/api/v1/notifications/preferences?user_id=farmer-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	defaults := decodeBody(t, rec)
	assert.Equal(t, true, defaults["in_app_enabled"])
	assert.Equal(t, false, defaults["quiet_hours_enabled"])
	assert.Equal(t, true, defaults["critical_water_quality_enabled"])
	assert.Equal(t, true, defaults["low_biodiversity_enabled"])

	rec = doJSON(c, http.MethodPut, "/api/v1/notifications/preferences", map[string]any{
		"user_id":                        "farmer-1",
		"in_app_enabled":                 true,
		"push_enabled":                   true,
		"quiet_hours_enabled":            true,
		"quiet_hours_start":              "21:30",
		"quiet_hours_end":                "06:00",
		"min_severity":                   "warning",
		"critical_water_quality_enabled": true,
		"low_biodiversity_enabled":       false,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(c, http.MethodGet, "/api/v1/notifications/preferences?user_id=farmer-1", nil, "")
	updated := decodeBody(t, rec)
	assert.Equal(t, true, updated["quiet_hours_enabled"])
	assert.Equal(t, "21:30", updated["quiet_hours_start"])
	assert.Equal(t, "warning", updated["min_severity"])
	assert.Equal(t, true, updated["critical_water_quality_enabled"])
	assert.Equal(t, false, updated["low_biodiversity_enabled"])
}

func TestPreferencesValidation(t *testing.T) {
	c, _ := newTestController(t)

	rec := doJSON(c, http.MethodPut, "/api/v1/notifications/preferences", map[string]any{
		"user_id":      "farmer-1",
		"min_severity": "shouting",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(c, http.MethodPut, "/api/v1/notifications/preferences", map[string]any{
		"user_id":             "farmer-1",
		"quiet_hours_enabled": true,
		"quiet_hours_start":   "9pm",
		"quiet_hours_end":     "06:00",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTestNotificationWritesInAppLog(t *testing.T) {
	c, store := newTestController(t)

	rec := doJSON(c, http.MethodPost, "/api/v1/notifications/test?user_id=farmer-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	entries, err := store.GetInAppNotifications("farmer-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Title, "test")
}

func TestFieldCRUD(t *testing.T) {
	c, _ := newTestController(t)

	rec := doJSON(c, http.MethodPost, "/api/v1/fields", map[string]any{
		"name":      "North paddy",
		"latitude":  14.6,
		"longitude": 121.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody(t, rec)
	id := created["id"].(float64)
	require.Greater(t, id, 0.0)

	rec = doRequest(c, http.MethodGet, "/api/v1/fields", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	fields := decodeBody(t, rec)["fields"].([]any)
	assert.Len(t, fields, 1)

	rec = doJSON(c, http.MethodPost, "/api/v1/fields", map[string]any{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(c, http.MethodPost, "/api/v1/fields", map[string]any{
		"name": "Half located", "latitude": 14.6,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(c, http.MethodDelete, fmt.Sprintf("/api/v1/fields/%.0f", id), nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(c, http.MethodDelete, "/api/v1/fields/9999", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateAnalysisWithFieldTag(t *testing.T) {
	c, store := newTestController(t)

	lat, lon := 14.6, 121.0
	field := datastore.Field{Name: "North paddy", Latitude: &lat, Longitude: &lon}
	require.NoError(t, store.SaveField(&field))

	buf, contentType := multipartUpload(t, chorusWAV(3, 22050), map[string]string{
		"field_id": fmt.Sprintf("%d", field.ID),
	})
	rec := doRequest(c, http.MethodPost, "/api/v1/analyses", buf, contentType)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assessment := decodeBody(t, rec)["assessment"].(map[string]any)
	assert.Equal(t, "North paddy", assessment["field_name"])
	assert.InDelta(t, lat, assessment["latitude"].(float64), 1e-6)
}

func TestCorrelationIDFormat(t *testing.T) {
	for i := 0; i < 20; i++ {
		id := generateCorrelationID()
		assert.Len(t, id, 8)
		assert.NotContains(t, id, " ")
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	c, _ := newTestController(t)

	buf, contentType := multipartUpload(t, chorusWAV(2, 22050), map[string]string{
		"field_id": "424242",
	})
	rec := doRequest(c, http.MethodPost, "/api/v1/analyses", buf, contentType)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "field"))
}
