package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	t.Parallel()

	s := defaultSettings()
	require.NoError(t, s.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero sample rate", func(s *Settings) { s.Audio.SampleRate = 0 }},
		{"min chunk above chunk", func(s *Settings) { s.Audio.MinChunkSeconds = 60 }},
		{"high-pass above nyquist", func(s *Settings) { s.Audio.HighPassHz = 20000 }},
		{"inverted protected band", func(s *Settings) { s.Denoise.ProtectedLowHz = 6000 }},
		{"weights not normalized", func(s *Settings) { s.Fusion.CallDensityWeight = 0.9 }},
		{"thresholds inverted", func(s *Settings) { s.Fusion.GoodThreshold = 0.3 }},
		{"webhook without url", func(s *Settings) { s.Notification.Webhook.Enabled = true }},
		{"negative retries", func(s *Settings) { s.Assistant.Retry.MaxRetries = -1 }},
		{"multiplier below one", func(s *Settings) { s.Assistant.Retry.Multiplier = 0.5 }},
		{"request timeout below retry budget", func(s *Settings) { s.Server.RequestTimeoutSecs = 10 }},
		{"no datastore", func(s *Settings) { s.Datastore.SQLite.Enabled = false }},
		{"sentry without dsn", func(s *Settings) { s.Sentry.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := defaultSettings()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, SampleRate, s.Audio.SampleRate)
	assert.Equal(t, 0.4, s.Fusion.CallDensityWeight)
	assert.Equal(t, 20, s.Alerts.MaxActive)
	assert.Equal(t, 50, s.Notification.MaxInApp)
}

func TestAnalyzerTimeout(t *testing.T) {
	t.Parallel()

	s := defaultSettings()
	assert.Equal(t, float64(30), s.AnalyzerTimeout().Seconds())
}
