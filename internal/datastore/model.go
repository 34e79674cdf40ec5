// model.go defines the persisted data model.
package datastore

import "time"

// Assessment is one fused water-quality assessment. Rows are append-only;
// the store keeps only the newest rows up to the configured history limit.
type Assessment struct {
	ID        uint      `gorm:"primaryKey"`
	PublicID  string    `gorm:"uniqueIndex;type:varchar(36)"` // UUID exposed over the API
	CreatedAt time.Time `gorm:"index"`

	// Recording metadata.
	Filename     string
	Duration     float64
	SampleRate   int
	Format       string
	QualityScore float64

	// Denoise metrics, advisory.
	NoiseType        string
	NoiseReductionDB float64

	// Species call analysis.
	CallDensity         float64
	CallConfidence      float64
	WaterQualityHint    string
	SpeciesUsedFallback bool
	Species             []SpeciesDetection `gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE"`

	// Environmental analysis.
	BiodiversityScore       float64
	HabitatQuality          string
	NoisePollution          float64
	EcosystemHealth         string
	EnvironmentUsedFallback bool

	// Fused verdict.
	OverallScore    float64  `gorm:"index"`
	Status          string   `gorm:"index"` // good, warning, alert
	Factors         []string `gorm:"serializer:json;type:text"`
	Recommendations []string `gorm:"serializer:json;type:text"`

	// Optional location and field tag.
	Latitude  *float64
	Longitude *float64
	FieldID   *uint
	FieldName string
}

// SpeciesDetection is one species reported for an assessment.
type SpeciesDetection struct {
	ID             uint `gorm:"primaryKey"`
	AssessmentID   uint `gorm:"index;not null"`
	CommonName     string
	ScientificName string
	Calls          int
	Confidence     float64
}

// Alert is one triggered alert. Created once, mutated only through the
// read and dismissed flags, never edited or expired automatically.
type Alert struct {
	ID           uint      `gorm:"primaryKey"`
	PublicID     string    `gorm:"uniqueIndex;type:varchar(36)"`
	AssessmentID string    `gorm:"index;type:varchar(36)"` // public ID of the source assessment
	CreatedAt    time.Time `gorm:"index"`

	Type            string `gorm:"index"` // critical_water_quality, low_biodiversity
	Severity        string // critical, warning, info
	Title           string
	Message         string   `gorm:"type:text"`
	Recommendations []string `gorm:"serializer:json;type:text"`

	Read      bool
	Dismissed bool `gorm:"index"`
}

// NotificationPreference holds one user's delivery preferences.
type NotificationPreference struct {
	ID     uint   `gorm:"primaryKey"`
	UserID string `gorm:"uniqueIndex;type:varchar(64)"`

	InAppEnabled   bool
	PushEnabled    bool
	WebhookEnabled bool
	MQTTEnabled    bool

	QuietHoursEnabled bool
	QuietHoursStart   string `gorm:"type:varchar(5)"` // "22:00"
	QuietHoursEnd     string `gorm:"type:varchar(5)"` // "07:00"

	MinSeverity string `gorm:"type:varchar(16)"` // info, warning, critical

	// Per-alert-type enable flags. Payload types without a flag, such as
	// test dispatches, are always delivered.
	CriticalWaterQualityEnabled bool
	LowBiodiversityEnabled      bool

	UpdatedAt time.Time
}

// InAppNotification is one entry in a user's bounded in-app log.
type InAppNotification struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    string    `gorm:"index;type:varchar(64)"`
	CreatedAt time.Time `gorm:"index"`

	Title    string
	Message  string `gorm:"type:text"`
	Severity string `gorm:"type:varchar(16)"`
	Read     bool
}

// DailyCount tracks how many assessments ran on a given day.
type DailyCount struct {
	ID    uint   `gorm:"primaryKey"`
	Date  string `gorm:"uniqueIndex;type:varchar(10)"` // "2006-01-02"
	Count int
}

// Field is a named pond or paddock recordings can be tagged with.
type Field struct {
	ID          uint `gorm:"primaryKey"`
	Name        string
	Description string
	Latitude    *float64
	Longitude   *float64
	CreatedAt   time.Time
}
