package analysis

import (
	"github.com/pondwatch/pondwatch-go/internal/analyzer"
	"github.com/pondwatch/pondwatch-go/internal/conf"
)

// Sanitization clamps analyzer outputs into their valid ranges and coerces
// unknown enum values to defaults. It never fails: whatever an analyzer
// returned, a schema-valid result comes out.

func clamp(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sanitizeSpecies clamps the species result in place. A nil result becomes
// an empty one.
func sanitizeSpecies(r *analyzer.SpeciesCallResult, cfg *conf.FusionSettings) *analyzer.SpeciesCallResult {
	if r == nil {
		r = &analyzer.SpeciesCallResult{}
	}
	r.CallDensity = clamp(r.CallDensity, 0, cfg.MaxCallDensity)
	r.Confidence = clamp(r.Confidence, 0, 1)

	switch r.WaterQualityHint {
	case "good", "fair", "poor":
	default:
		r.WaterQualityHint = "fair"
	}

	for i := range r.Species {
		r.Species[i].Confidence = clamp(r.Species[i].Confidence, 0, 1)
		if r.Species[i].Calls < 0 {
			r.Species[i].Calls = 0
		}
	}
	return r
}

// sanitizeEnvironment clamps the environmental result in place. A nil
// result becomes a neutral one.
func sanitizeEnvironment(r *analyzer.EnvironmentalResult) *analyzer.EnvironmentalResult {
	if r == nil {
		r = &analyzer.EnvironmentalResult{
			EcosystemHealth: analyzer.HealthStressed,
			HabitatQuality:  analyzer.HabitatFair,
		}
	}
	r.BiodiversityScore = clamp(r.BiodiversityScore, 0, 1)
	r.NoisePollution = clamp(r.NoisePollution, 0, 1)

	switch r.EcosystemHealth {
	case analyzer.HealthHealthy, analyzer.HealthStressed, analyzer.HealthDegraded:
	default:
		r.EcosystemHealth = analyzer.HealthStressed
	}

	switch r.HabitatQuality {
	case analyzer.HabitatExcellent, analyzer.HabitatGood, analyzer.HabitatFair, analyzer.HabitatPoor:
	default:
		r.HabitatQuality = analyzer.HabitatFair
	}
	return r
}
