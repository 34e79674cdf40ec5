package conf

import (
	"fmt"
	"math"
)

// Validate checks the settings tree for values that would break the
// pipeline at runtime. It returns the first problem found.
func (s *Settings) Validate() error {
	if s.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.samplerate must be positive, got %d", s.Audio.SampleRate)
	}
	if s.Audio.ChunkSeconds <= 0 {
		return fmt.Errorf("audio.chunkseconds must be positive, got %d", s.Audio.ChunkSeconds)
	}
	if s.Audio.MinChunkSeconds <= 0 || s.Audio.MinChunkSeconds > s.Audio.ChunkSeconds {
		return fmt.Errorf("audio.minchunkseconds must be in (0, %d], got %d",
			s.Audio.ChunkSeconds, s.Audio.MinChunkSeconds)
	}
	if s.Audio.HighPassHz < 0 || s.Audio.HighPassHz >= float64(s.Audio.SampleRate)/2 {
		return fmt.Errorf("audio.highpasshz must be below the Nyquist frequency")
	}

	if s.Denoise.ProtectedLowHz >= s.Denoise.ProtectedHighHz {
		return fmt.Errorf("denoise.protectedlowhz must be below denoise.protectedhighhz")
	}

	weightSum := s.Fusion.CallDensityWeight + s.Fusion.BiodiversityWeight + s.Fusion.EnvironmentWeight
	if math.Abs(weightSum-1.0) > 0.01 {
		return fmt.Errorf("fusion weights must sum to 1.0, got %.3f", weightSum)
	}
	if s.Fusion.GoodThreshold <= s.Fusion.WarningThreshold {
		return fmt.Errorf("fusion.goodthreshold must exceed fusion.warningthreshold")
	}
	if s.Fusion.HistoryLimit <= 0 {
		return fmt.Errorf("fusion.historylimit must be positive, got %d", s.Fusion.HistoryLimit)
	}

	if s.Alerts.MaxActive <= 0 {
		return fmt.Errorf("alerts.maxactive must be positive, got %d", s.Alerts.MaxActive)
	}
	if s.Alerts.LowBiodiversityCutoff < 0 || s.Alerts.LowBiodiversityCutoff > 1 {
		return fmt.Errorf("alerts.lowbiodiversitycutoff must be in [0,1]")
	}

	if s.Notification.MaxInApp <= 0 {
		return fmt.Errorf("notification.maxinapp must be positive, got %d", s.Notification.MaxInApp)
	}
	if s.Notification.Webhook.Enabled && s.Notification.Webhook.URL == "" {
		return fmt.Errorf("notification.webhook.url is required when the webhook channel is enabled")
	}
	if s.Notification.MQTT.Enabled && s.Notification.MQTT.Broker == "" {
		return fmt.Errorf("notification.mqtt.broker is required when the MQTT channel is enabled")
	}

	r := s.Assistant.Retry
	if r.MaxRetries < 0 {
		return fmt.Errorf("assistant.retry.maxretries must not be negative")
	}
	if r.BaseDelayMs <= 0 || r.MaxDelayMs < r.BaseDelayMs {
		return fmt.Errorf("assistant.retry delays are inconsistent: base=%dms max=%dms",
			r.BaseDelayMs, r.MaxDelayMs)
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("assistant.retry.multiplier must be at least 1, got %.2f", r.Multiplier)
	}
	if r.JitterFraction < 0 || r.JitterFraction > 1 {
		return fmt.Errorf("assistant.retry.jitterfraction must be in [0,1]")
	}

	// The fallback path must stay reachable within the request budget.
	worstCaseRetrySecs := float64(r.MaxRetries) * float64(r.MaxDelayMs) / 1000.0
	if float64(s.Server.RequestTimeoutSecs) <= worstCaseRetrySecs {
		return fmt.Errorf("server.requesttimeoutsecs (%d) must comfortably exceed the worst-case retry wait (%.0fs)",
			s.Server.RequestTimeoutSecs, worstCaseRetrySecs)
	}

	if !s.Datastore.SQLite.Enabled && !s.Datastore.MySQL.Enabled {
		return fmt.Errorf("no datastore backend enabled")
	}
	if s.Datastore.SQLite.Enabled && s.Datastore.SQLite.Path == "" {
		return fmt.Errorf("datastore.sqlite.path is required when SQLite is enabled")
	}

	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		return fmt.Errorf("sentry.dsn is required when sentry is enabled")
	}

	return nil
}
