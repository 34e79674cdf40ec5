package analysis

import (
	"github.com/pondwatch/pondwatch-go/internal/analyzer"
	"github.com/pondwatch/pondwatch-go/internal/conf"
)

// Assessment statuses.
const (
	StatusGood    = "good"
	StatusWarning = "warning"
	StatusAlert   = "alert"
)

// Fusion combines the analyzer sub-scores into one weighted verdict. The
// weights and thresholds come from configuration; they are calibration
// policy, not hard-coded invariants.
type Fusion struct {
	cfg conf.FusionSettings
}

// NewFusion creates a fusion stage with the given policy.
func NewFusion(cfg conf.FusionSettings) *Fusion {
	return &Fusion{cfg: cfg}
}

// FrogScore maps call density onto the call-activity sub-score. Dense
// choruses score full marks, moderate activity partial, sparse activity a
// floor value rather than zero.
func (f *Fusion) FrogScore(callDensity float64) float64 {
	switch {
	case callDensity >= f.cfg.HighDensityCalls:
		return 1.0
	case callDensity >= f.cfg.ModerateCalls:
		return 0.6
	default:
		return 0.2
	}
}

// EnvironmentScore maps the ecosystem health category onto a sub-score.
func (f *Fusion) EnvironmentScore(health string) float64 {
	switch health {
	case analyzer.HealthHealthy:
		return 1.0
	case analyzer.HealthStressed:
		return 0.5
	default:
		return 0.2
	}
}

// Fuse computes the weighted overall score and its status. Inputs are
// assumed already sanitized.
func (f *Fusion) Fuse(callDensity, biodiversity float64, health string) (float64, string) {
	overall := f.cfg.CallDensityWeight*f.FrogScore(callDensity) +
		f.cfg.BiodiversityWeight*biodiversity +
		f.cfg.EnvironmentWeight*f.EnvironmentScore(health)
	return overall, f.Status(overall)
}

// Status derives the assessment status from the overall score.
func (f *Fusion) Status(overall float64) string {
	switch {
	case overall >= f.cfg.GoodThreshold:
		return StatusGood
	case overall >= f.cfg.WarningThreshold:
		return StatusWarning
	default:
		return StatusAlert
	}
}
