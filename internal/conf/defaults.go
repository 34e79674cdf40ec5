package conf

import "github.com/spf13/viper"

// Canonical analysis parameters. Values outside configuration because the
// stand-in analyzers are calibrated against them.
const (
	// SampleRate is the canonical analysis sample rate in Hz.
	SampleRate = 22050
	// NumChannels is the canonical channel count after downmixing.
	NumChannels = 1
)

// setDefaults registers every configuration default with viper so that env
// overrides bind even without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("main.name", "PondWatch-Go")
	v.SetDefault("main.debug", false)
	v.SetDefault("main.timezone", "")
	v.SetDefault("main.log.enabled", false)
	v.SetDefault("main.log.path", "logs/pondwatch.log")
	v.SetDefault("main.log.maxsizemb", 100)
	v.SetDefault("main.log.maxbackups", 3)
	v.SetDefault("main.log.maxagedays", 28)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8090")
	v.SetDefault("server.maxconcurrentruns", 4)
	v.SetDefault("server.ratelimitpersecond", 2.0)
	v.SetDefault("server.ratelimitburst", 5)
	v.SetDefault("server.requesttimeoutsecs", 120)
	v.SetDefault("server.maxuploadsizemb", 50)
	v.SetDefault("server.enablemetricsroute", true)
	v.SetDefault("server.enableprofilerroute", false)

	v.SetDefault("audio.samplerate", SampleRate)
	v.SetDefault("audio.chunkseconds", 30)
	v.SetDefault("audio.minchunkseconds", 10)
	v.SetDefault("audio.highpasshz", 100.0)
	v.SetDefault("audio.highpassq", 0.707)
	v.SetDefault("audio.targetpeak", 0.9)
	v.SetDefault("audio.minduration", 30.0)
	v.SetDefault("audio.minsamplerate", 22050)
	v.SetDefault("audio.minqualityscore", 40.0)
	v.SetDefault("audio.warningtolerance", 2)

	v.SetDefault("denoise.enabled", true)
	v.SetDefault("denoise.protectedlowhz", 200.0)
	v.SetDefault("denoise.protectedhighhz", 5000.0)

	v.SetDefault("analyzers.timeoutseconds", 30)

	v.SetDefault("fusion.calldensityweight", 0.4)
	v.SetDefault("fusion.biodiversityweight", 0.3)
	v.SetDefault("fusion.environmentweight", 0.3)
	v.SetDefault("fusion.highdensitycalls", 50.0)
	v.SetDefault("fusion.moderatecalls", 30.0)
	v.SetDefault("fusion.goodthreshold", 0.7)
	v.SetDefault("fusion.warningthreshold", 0.4)
	v.SetDefault("fusion.maxcalldensity", 80.0)
	v.SetDefault("fusion.historylimit", 50)

	v.SetDefault("alerts.maxactive", 20)
	v.SetDefault("alerts.lowbiodiversitycutoff", 0.3)

	v.SetDefault("notification.maxinapp", 50)
	v.SetDefault("notification.push.enabled", false)
	v.SetDefault("notification.push.urls", []string{})
	v.SetDefault("notification.push.timeoutseconds", 10)
	v.SetDefault("notification.webhook.enabled", false)
	v.SetDefault("notification.webhook.url", "")
	v.SetDefault("notification.webhook.timeoutseconds", 10)
	v.SetDefault("notification.mqtt.enabled", false)
	v.SetDefault("notification.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("notification.mqtt.topic", "pondwatch/alerts")
	v.SetDefault("notification.mqtt.clientid", "pondwatch-go")
	v.SetDefault("notification.mqtt.retain", false)
	v.SetDefault("notification.mqtt.timeoutseconds", 10)

	v.SetDefault("assistant.apikey", "")
	v.SetDefault("assistant.model", "gemini-2.0-flash")
	v.SetDefault("assistant.endpoint", "")
	v.SetDefault("assistant.timeoutseconds", 30)
	v.SetDefault("assistant.contextwindow", 5)
	v.SetDefault("assistant.cachettlsecs", 60)
	v.SetDefault("assistant.retry.maxretries", 3)
	v.SetDefault("assistant.retry.basedelayms", 1000)
	v.SetDefault("assistant.retry.maxdelayms", 10000)
	v.SetDefault("assistant.retry.multiplier", 2.0)
	v.SetDefault("assistant.retry.jitterfraction", 0.3)

	v.SetDefault("datastore.sqlite.enabled", true)
	v.SetDefault("datastore.sqlite.path", "pondwatch.db")
	v.SetDefault("datastore.mysql.enabled", false)
	v.SetDefault("datastore.mysql.host", "localhost")
	v.SetDefault("datastore.mysql.port", "3306")
	v.SetDefault("datastore.mysql.database", "pondwatch")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
}

// defaultSettings returns a Settings tree mirroring the viper defaults.
// Used as the unmarshal base and as the fallback when no config is readable.
func defaultSettings() *Settings {
	return &Settings{
		Main: MainSettings{
			Name: "PondWatch-Go",
			Log: LogConfig{
				Path:       "logs/pondwatch.log",
				MaxSizeMB:  100,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
		},
		Server: ServerSettings{
			Host:               "0.0.0.0",
			Port:               "8090",
			MaxConcurrentRuns:  4,
			RateLimitPerSecond: 2.0,
			RateLimitBurst:     5,
			RequestTimeoutSecs: 120,
			MaxUploadSizeMB:    50,
			EnableMetricsRoute: true,
		},
		Audio: AudioSettings{
			SampleRate:       SampleRate,
			ChunkSeconds:     30,
			MinChunkSeconds:  10,
			HighPassHz:       100.0,
			HighPassQ:        0.707,
			TargetPeak:       0.9,
			MinDuration:      30.0,
			MinSampleRate:    22050,
			MinQualityScore:  40.0,
			WarningTolerance: 2,
		},
		Denoise: DenoiseSettings{
			Enabled:         true,
			ProtectedLowHz:  200.0,
			ProtectedHighHz: 5000.0,
		},
		Analyzers: AnalyzerSettings{TimeoutSeconds: 30},
		Fusion: FusionSettings{
			CallDensityWeight:  0.4,
			BiodiversityWeight: 0.3,
			EnvironmentWeight:  0.3,
			HighDensityCalls:   50.0,
			ModerateCalls:      30.0,
			GoodThreshold:      0.7,
			WarningThreshold:   0.4,
			MaxCallDensity:     80.0,
			HistoryLimit:       50,
		},
		Alerts: AlertSettings{
			MaxActive:             20,
			LowBiodiversityCutoff: 0.3,
		},
		Notification: NotificationSettings{
			MaxInApp: 50,
			Push:     PushSettings{TimeoutSeconds: 10},
			Webhook:  WebhookSettings{TimeoutSeconds: 10},
			MQTT: MQTTSettings{
				Broker:         "tcp://localhost:1883",
				Topic:          "pondwatch/alerts",
				ClientID:       "pondwatch-go",
				TimeoutSeconds: 10,
			},
		},
		Assistant: AssistantSettings{
			Model:          "gemini-2.0-flash",
			TimeoutSeconds: 30,
			ContextWindow:  5,
			CacheTTLSecs:   60,
			Retry: RetrySettings{
				MaxRetries:     3,
				BaseDelayMs:    1000,
				MaxDelayMs:     10000,
				Multiplier:     2.0,
				JitterFraction: 0.3,
			},
		},
		Datastore: DatastoreSettings{
			SQLite: SQLiteSettings{Enabled: true, Path: "pondwatch.db"},
			MySQL:  MySQLSettings{Host: "localhost", Port: "3306", Database: "pondwatch"},
		},
	}
}

// Defaults returns the settings tree with every default applied, without
// consulting a config file or the environment.
func Defaults() *Settings {
	return defaultSettings()
}
