// Package analyzer defines the contracts for the two acoustic analysis
// services and ships deterministic stand-in implementations. The rest of
// the pipeline treats analyzers as black boxes: a processed buffer goes in,
// a structured result or a recoverable error comes out within the caller's
// deadline. A production deployment substitutes model-backed
// implementations without touching fusion, validation or alerting.
package analyzer

import (
	"context"
)

// Location is an optional geographic hint attached to a recording.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Input is the processed audio handed to an analyzer.
type Input struct {
	Samples    []float32
	SampleRate int
	Filename   string
	Location   *Location
}

// Duration returns the recording length in seconds.
func (in Input) Duration() float64 {
	if in.SampleRate <= 0 {
		return 0
	}
	return float64(len(in.Samples)) / float64(in.SampleRate)
}

// SpeciesCall is one detected species with its call statistics.
type SpeciesCall struct {
	CommonName     string  `json:"common_name"`
	ScientificName string  `json:"scientific_name"`
	Calls          int     `json:"calls"`
	Confidence     float64 `json:"confidence"`
}

// SpeciesCallResult is the output of the species call analyzer.
type SpeciesCallResult struct {
	CallDensity      float64       `json:"call_density"` // calls per minute
	Confidence       float64       `json:"confidence"`   // 0..1
	Species          []SpeciesCall `json:"species"`
	WaterQualityHint string        `json:"water_quality_hint"` // good, fair, poor
}

// Habitat quality and ecosystem health categories.
const (
	HealthHealthy  = "healthy"
	HealthStressed = "stressed"
	HealthDegraded = "degraded"

	HabitatExcellent = "excellent"
	HabitatGood      = "good"
	HabitatFair      = "fair"
	HabitatPoor      = "poor"
)

// EnvironmentalResult is the output of the environmental analyzer.
type EnvironmentalResult struct {
	BiodiversityScore float64  `json:"biodiversity_score"` // 0..1
	HabitatQuality    string   `json:"habitat_quality"`
	NoisePollution    float64  `json:"noise_pollution"` // 0..1
	EcosystemHealth   string   `json:"ecosystem_health"`
	Recommendations   []string `json:"recommendations"`
}

// SpeciesCallAnalyzer detects target-species calls in a buffer.
type SpeciesCallAnalyzer interface {
	AnalyzeCalls(ctx context.Context, in Input) (*SpeciesCallResult, error)
}

// EnvironmentalAnalyzer scores habitat and ecosystem health from a buffer.
type EnvironmentalAnalyzer interface {
	AnalyzeEnvironment(ctx context.Context, in Input) (*EnvironmentalResult, error)
}
