// config.go: settings struct and functions to load and access the PondWatch-Go configuration.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// MainSettings contains application-wide settings.
type MainSettings struct {
	Name     string // instance name, used in notifications and logs
	Debug    bool   // true to enable debug output
	TimeZone string // IANA timezone for quiet-hours evaluation, empty for local
	Log      LogConfig
}

// LogConfig contains file log rotation settings.
type LogConfig struct {
	Enabled    bool   // true to write a rotating JSON log file
	Path       string // log file path
	MaxSizeMB  int    // rotate after this size
	MaxBackups int    // rotated files to keep
	MaxAgeDays int    // days to retain rotated files
}

// ServerSettings contains the HTTP server settings.
type ServerSettings struct {
	Host                string  // listen address
	Port                string  // listen port
	MaxConcurrentRuns   int64   // analysis requests processed concurrently
	RateLimitPerSecond  float64 // assistant endpoint rate limit
	RateLimitBurst      int     // assistant endpoint burst
	RequestTimeoutSecs  int     // overall request timeout
	MaxUploadSizeMB     int     // audio upload cap
	EnableMetricsRoute  bool    // expose /metrics
	EnableProfilerRoute bool    // expose pprof (debug builds)
}

// AudioSettings contains preprocessing parameters.
type AudioSettings struct {
	SampleRate       int     // canonical analysis sample rate in Hz
	ChunkSeconds     int     // fixed chunk duration
	MinChunkSeconds  int     // chunks shorter than this are discarded
	HighPassHz       float64 // handling/wind noise cutoff
	HighPassQ        float64 // high-pass Q value
	TargetPeak       float64 // normalization target peak, 0..1
	MinDuration      float64 // warning threshold, seconds
	MinSampleRate    int     // warning threshold, Hz
	MinQualityScore  float64 // warning threshold, 0..100
	WarningTolerance int     // warnings allowed before audio is unsuitable
}

// DenoiseSettings contains noise reduction parameters.
type DenoiseSettings struct {
	Enabled         bool    // apply denoising before analysis
	ProtectedLowHz  float64 // lower bound of the band analyzers depend on
	ProtectedHighHz float64 // upper bound of the band analyzers depend on
}

// AnalyzerSettings contains analyzer execution parameters.
type AnalyzerSettings struct {
	TimeoutSeconds int // per-branch time budget
}

// FusionSettings contains the weighted score fusion policy. These are
// calibration constants, kept configurable pending domain validation.
type FusionSettings struct {
	CallDensityWeight  float64 // weight of the call-density sub-score
	BiodiversityWeight float64 // weight of the biodiversity sub-score
	EnvironmentWeight  float64 // weight of the ecosystem-health sub-score
	HighDensityCalls   float64 // calls/min for the full call-density score
	ModerateCalls      float64 // calls/min for the moderate call-density score
	GoodThreshold      float64 // overall score for status "good"
	WarningThreshold   float64 // overall score for status "warning"
	MaxCallDensity     float64 // clamp ceiling for call density
	HistoryLimit       int     // assessments retained
}

// AlertSettings contains the alert list policy.
type AlertSettings struct {
	MaxActive             int     // bounded alert list cap
	LowBiodiversityCutoff float64 // biodiversity score triggering the low-biodiversity rule
}

// PushSettings configures shoutrrr delivery URLs.
type PushSettings struct {
	Enabled        bool
	URLs           []string // shoutrrr service URLs
	TimeoutSeconds int
}

// WebhookSettings configures the webhook channel.
type WebhookSettings struct {
	Enabled        bool
	URL            string
	BearerToken    string
	TimeoutSeconds int
}

// MQTTSettings configures the MQTT channel.
type MQTTSettings struct {
	Enabled        bool
	Broker         string // e.g. tcp://localhost:1883
	Topic          string
	ClientID       string
	Username       string
	Password       string
	Retain         bool
	TimeoutSeconds int
}

// NotificationSettings contains dispatcher and channel settings.
type NotificationSettings struct {
	MaxInApp int // bounded per-user in-app log cap
	Push     PushSettings
	Webhook  WebhookSettings
	MQTT     MQTTSettings
}

// RetrySettings parameterizes the reusable backoff policy.
type RetrySettings struct {
	MaxRetries     int
	BaseDelayMs    int
	MaxDelayMs     int
	Multiplier     float64
	JitterFraction float64
}

// AssistantSettings contains the conversational assistant settings.
type AssistantSettings struct {
	APIKey         string // Gemini API key, falls back to GEMINI_API_KEY env
	Model          string // generative model name
	Endpoint       string // override for tests, empty for the public API
	TimeoutSeconds int    // single attempt timeout
	ContextWindow  int    // recent assessments embedded in the prompt
	CacheTTLSecs   int    // conversation context cache TTL
	Retry          RetrySettings
}

// SQLiteSettings contains SQLite backend settings.
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings contains MySQL backend settings.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Host     string
	Port     string
	Database string
}

// DatastoreSettings selects and configures the persistence backend.
type DatastoreSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// SentrySettings contains error telemetry settings. Disabled by default.
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// Settings is the root of the configuration tree.
type Settings struct {
	Main         MainSettings
	Server       ServerSettings
	Audio        AudioSettings
	Denoise      DenoiseSettings
	Analyzers    AnalyzerSettings
	Fusion       FusionSettings
	Alerts       AlertSettings
	Notification NotificationSettings
	Assistant    AssistantSettings
	Datastore    DatastoreSettings
	Sentry       SentrySettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
	settingsOnce     sync.Once
)

// Setting returns the shared settings instance, loading it on first use.
func Setting() *Settings {
	settingsOnce.Do(func() {
		settingsMutex.Lock()
		defer settingsMutex.Unlock()
		if settingsInstance == nil {
			s, err := Load("")
			if err != nil {
				// Fall back to defaults so callers always get a usable tree.
				s = defaultSettings()
			}
			settingsInstance = s
		}
	})
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SetTestSettings replaces the shared instance. Intended for tests.
func SetTestSettings(s *Settings) {
	settingsOnce.Do(func() {})
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = s
}

// Load reads configuration from the given path (or the default search
// locations when empty), applies environment overrides and validates the
// result.
func Load(configPath string) (*Settings, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "pondwatch"))
		}
		v.AddConfigPath("/etc/pondwatch")
	}

	v.SetEnvPrefix("PONDWATCH")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !asConfigNotFound(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine, defaults plus env cover a dev setup.
	}

	settings := defaultSettings()
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if settings.Assistant.APIKey == "" {
		settings.Assistant.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func asConfigNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}

// AnalyzerTimeout returns the per-branch analyzer time budget.
func (s *Settings) AnalyzerTimeout() time.Duration {
	return time.Duration(s.Analyzers.TimeoutSeconds) * time.Second
}

// Location resolves the configured timezone, falling back to local time.
func (s *Settings) Location() *time.Location {
	if s.Main.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Main.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}
