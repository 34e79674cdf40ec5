package analyzer

import (
	"context"
	"hash/fnv"
	"math"
	"sort"

	"github.com/pondwatch/pondwatch-go/internal/audio/equalizer"
	"github.com/pondwatch/pondwatch-go/internal/errors"
)

// Stand-in analyzers compute their results from simple signal statistics.
// They are deterministic for a given input, respect the caller's deadline,
// and satisfy the same contracts a model-backed analyzer would.

// Frog call signatures concentrate in this band, in Hz.
const (
	callBandLowHz  = 200.0
	callBandHighHz = 5000.0
)

// envelopeWindowSeconds is the RMS envelope resolution used for call peak
// counting.
const envelopeWindowSeconds = 0.05

// frogCatalog is the fixed pool the stand-in draws detected species from.
var frogCatalog = []SpeciesCall{
	{CommonName: "American Bullfrog", ScientificName: "Lithobates catesbeianus"},
	{CommonName: "Green Frog", ScientificName: "Lithobates clamitans"},
	{CommonName: "Spring Peeper", ScientificName: "Pseudacris crucifer"},
	{CommonName: "Gray Treefrog", ScientificName: "Dryophytes versicolor"},
	{CommonName: "Pickerel Frog", ScientificName: "Lithobates palustris"},
}

// StandInSpeciesAnalyzer counts call-band envelope peaks as frog calls.
type StandInSpeciesAnalyzer struct{}

// NewStandInSpeciesAnalyzer returns the deterministic species analyzer.
func NewStandInSpeciesAnalyzer() *StandInSpeciesAnalyzer {
	return &StandInSpeciesAnalyzer{}
}

// AnalyzeCalls implements SpeciesCallAnalyzer.
func (a *StandInSpeciesAnalyzer) AnalyzeCalls(ctx context.Context, in Input) (*SpeciesCallResult, error) {
	if len(in.Samples) == 0 || in.SampleRate <= 0 {
		return nil, errors.Newf("species analyzer requires a non-empty buffer").
			Component("analyzer").
			Category(errors.CategoryValidation).
			Build()
	}

	band, err := callBandEnvelope(ctx, in)
	if err != nil {
		return nil, err
	}

	peaks, prominence := countPeaks(band)

	minutes := in.Duration() / 60
	if minutes <= 0 {
		minutes = 1.0 / 60
	}
	density := float64(peaks) / minutes

	confidence := 0.5 + 0.5*math.Min(prominence/4, 1.0)
	if peaks == 0 {
		confidence = 0.9 // confident silence is still a result
	}

	result := &SpeciesCallResult{
		CallDensity:      density,
		Confidence:       confidence,
		Species:          assignSpecies(in.Filename, peaks, confidence),
		WaterQualityHint: densityHint(density),
	}
	return result, nil
}

// densityHint maps call density to a coarse water-quality hint. Active frog
// choruses track healthy ponds.
func densityHint(density float64) string {
	switch {
	case density >= 30:
		return "good"
	case density >= 10:
		return "fair"
	default:
		return "poor"
	}
}

// assignSpecies picks a stable subset of the catalog for the detected
// activity level. The filename seeds selection so repeated runs on the
// same recording report the same species.
func assignSpecies(filename string, peaks int, confidence float64) []SpeciesCall {
	if peaks == 0 {
		return nil
	}

	count := 1 + peaks/20
	if count > len(frogCatalog) {
		count = len(frogCatalog)
	}

	h := fnv.New32a()
	h.Write([]byte(filename))
	offset := int(h.Sum32()) % len(frogCatalog)
	if offset < 0 {
		offset += len(frogCatalog)
	}

	species := make([]SpeciesCall, 0, count)
	remaining := peaks
	for i := 0; i < count; i++ {
		entry := frogCatalog[(offset+i)%len(frogCatalog)]
		calls := remaining / (count - i)
		remaining -= calls
		entry.Calls = calls
		entry.Confidence = math.Max(confidence-0.1*float64(i), 0.1)
		species = append(species, entry)
	}

	sort.Slice(species, func(i, j int) bool {
		return species[i].Calls > species[j].Calls
	})
	return species
}

// callBandEnvelope band-passes the call band and returns the RMS envelope.
func callBandEnvelope(ctx context.Context, in Input) ([]float64, error) {
	center := math.Sqrt(callBandLowHz * callBandHighHz)
	width := math.Log2(callBandHighHz / callBandLowHz)
	bp, err := equalizer.NewBandPass(float64(in.SampleRate), center, width, 1)
	if err != nil {
		return nil, errors.New(err).
			Component("analyzer").
			Category(errors.CategoryAnalyzer).
			Build()
	}

	buf := make([]float64, len(in.Samples))
	for i, s := range in.Samples {
		buf[i] = float64(s)
	}
	bp.ApplyBatch(buf)

	window := int(envelopeWindowSeconds * float64(in.SampleRate))
	if window < 1 {
		window = 1
	}

	envelope := make([]float64, 0, len(buf)/window+1)
	for start := 0; start < len(buf); start += window {
		if len(envelope)%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.New(err).
					Component("analyzer").
					Category(errors.CategoryTimeout).
					Build()
			}
		}
		end := start + window
		if end > len(buf) {
			end = len(buf)
		}
		var sum float64
		for _, s := range buf[start:end] {
			sum += s * s
		}
		envelope = append(envelope, math.Sqrt(sum/float64(end-start)))
	}
	return envelope, nil
}

// countPeaks counts envelope excursions above an adaptive threshold and
// returns the mean prominence of the counted peaks.
func countPeaks(envelope []float64) (int, float64) {
	if len(envelope) == 0 {
		return 0, 0
	}

	var mean float64
	for _, e := range envelope {
		mean += e
	}
	mean /= float64(len(envelope))

	var variance float64
	for _, e := range envelope {
		variance += (e - mean) * (e - mean)
	}
	std := math.Sqrt(variance / float64(len(envelope)))

	threshold := mean + 1.5*std
	if threshold <= 0 {
		return 0, 0
	}

	peaks := 0
	var prominenceSum float64
	above := false
	for _, e := range envelope {
		if e > threshold {
			if !above {
				peaks++
				prominenceSum += e / threshold
			}
			above = true
		} else {
			above = false
		}
	}
	if peaks == 0 {
		return 0, 0
	}
	return peaks, prominenceSum / float64(peaks)
}

// StandInEnvironmentalAnalyzer scores biodiversity from spectral band
// diversity and noise pollution from out-of-band energy.
type StandInEnvironmentalAnalyzer struct{}

// NewStandInEnvironmentalAnalyzer returns the deterministic environmental
// analyzer.
func NewStandInEnvironmentalAnalyzer() *StandInEnvironmentalAnalyzer {
	return &StandInEnvironmentalAnalyzer{}
}

// biodiversityBands are octave-ish bands whose energy spread proxies for
// sound-class richness, in Hz.
var biodiversityBands = [][2]float64{
	{200, 500},
	{500, 1200},
	{1200, 2800},
	{2800, 5000},
	{5000, 9000},
}

// AnalyzeEnvironment implements EnvironmentalAnalyzer.
func (a *StandInEnvironmentalAnalyzer) AnalyzeEnvironment(ctx context.Context, in Input) (*EnvironmentalResult, error) {
	if len(in.Samples) == 0 || in.SampleRate <= 0 {
		return nil, errors.Newf("environmental analyzer requires a non-empty buffer").
			Component("analyzer").
			Category(errors.CategoryValidation).
			Build()
	}

	buf := make([]float64, len(in.Samples))
	for i, s := range in.Samples {
		buf[i] = float64(s)
	}

	energies := make([]float64, 0, len(biodiversityBands))
	var total float64
	for _, band := range biodiversityBands {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(err).
				Component("analyzer").
				Category(errors.CategoryTimeout).
				Build()
		}
		high := band[1]
		if nyquist := float64(in.SampleRate) / 2; high >= nyquist {
			high = nyquist * 0.95
		}
		e := bandEnergy(buf, float64(in.SampleRate), band[0], high)
		energies = append(energies, e)
		total += e
	}

	biodiversity := spectralEntropy(energies, total)
	noise := noisePollution(buf, float64(in.SampleRate), total)

	health := HealthHealthy
	switch {
	case biodiversity < 0.3 || noise > 0.7:
		health = HealthDegraded
	case biodiversity < 0.55 || noise > 0.4:
		health = HealthStressed
	}

	result := &EnvironmentalResult{
		BiodiversityScore: biodiversity,
		HabitatQuality:    habitatQuality(biodiversity, noise),
		NoisePollution:    noise,
		EcosystemHealth:   health,
		Recommendations:   environmentRecommendations(health, noise),
	}
	return result, nil
}

// spectralEntropy returns the normalized entropy of the band energy
// distribution. Even spread across bands reads as rich soundscape.
func spectralEntropy(energies []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	var entropy float64
	for _, e := range energies {
		if e <= 0 {
			continue
		}
		p := e / total
		entropy -= p * math.Log(p)
	}
	return entropy / math.Log(float64(len(energies)))
}

// noisePollution returns the share of energy below the call band, where
// wind and machinery dominate.
func noisePollution(buf []float64, sampleRate, inBandTotal float64) float64 {
	low := bandEnergy(buf, sampleRate, 20, callBandLowHz)
	if low+inBandTotal <= 0 {
		return 0
	}
	return low / (low + inBandTotal)
}

func habitatQuality(biodiversity, noise float64) string {
	score := biodiversity * (1 - noise)
	switch {
	case score >= 0.6:
		return HabitatExcellent
	case score >= 0.4:
		return HabitatGood
	case score >= 0.2:
		return HabitatFair
	default:
		return HabitatPoor
	}
}

func environmentRecommendations(health string, noise float64) []string {
	var recs []string
	switch health {
	case HealthDegraded:
		recs = append(recs,
			"Test water chemistry directly, acoustic indicators suggest habitat decline",
			"Inspect the pond for pollution sources or vegetation loss")
	case HealthStressed:
		recs = append(recs,
			"Monitor this pond more frequently over the next week")
	default:
		recs = append(recs,
			"Conditions look stable, continue routine monitoring")
	}
	if noise > 0.5 {
		recs = append(recs,
			"High background noise detected, consider recording at a quieter time of day")
	}
	return recs
}

// bandEnergy estimates the mean-square energy between lowHz and highHz.
func bandEnergy(buf []float64, sampleRate, lowHz, highHz float64) float64 {
	center := math.Sqrt(lowHz * highHz)
	width := math.Log2(highHz / lowHz)
	bp, err := equalizer.NewBandPass(sampleRate, center, width, 1)
	if err != nil {
		return 0
	}
	tmp := make([]float64, len(buf))
	copy(tmp, buf)
	bp.ApplyBatch(tmp)

	var sum float64
	for _, s := range tmp {
		sum += s * s
	}
	return sum / float64(len(tmp))
}
