package analyzer

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 22050

// chorus synthesizes seconds of audio with burst in-band calls at the given
// rate per minute over a quiet noise floor.
func chorus(seconds float64, callsPerMinute int) []float32 {
	rng := rand.New(rand.NewSource(7))
	n := int(seconds * testRate)
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.01 * (2*rng.Float64() - 1))
	}

	totalCalls := int(float64(callsPerMinute) * seconds / 60)
	if totalCalls == 0 {
		return out
	}
	spacing := n / totalCalls
	rate := float64(testRate)
	burst := int(0.15 * rate)
	for c := 0; c < totalCalls; c++ {
		start := c * spacing
		for i := 0; i < burst && start+i < n; i++ {
			out[start+i] += float32(0.6 * math.Sin(2*math.Pi*800*float64(i)/testRate))
		}
	}
	return out
}

func TestStandInSpeciesAnalyzer(t *testing.T) {
	a := NewStandInSpeciesAnalyzer()

	in := Input{
		Samples:    chorus(60, 40),
		SampleRate: testRate,
		Filename:   "pond-a.wav",
	}
	result, err := a.AnalyzeCalls(context.Background(), in)
	require.NoError(t, err)

	assert.InDelta(t, 40, result.CallDensity, 15,
		"density should track the synthesized call rate")
	assert.Greater(t, result.Confidence, 0.4)
	assert.NotEmpty(t, result.Species)
	assert.Equal(t, "good", result.WaterQualityHint)
}

func TestStandInSpeciesAnalyzerSilence(t *testing.T) {
	a := NewStandInSpeciesAnalyzer()

	in := Input{
		Samples:    make([]float32, testRate*10),
		SampleRate: testRate,
		Filename:   "silent.wav",
	}
	result, err := a.AnalyzeCalls(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.CallDensity)
	assert.Empty(t, result.Species)
	assert.Equal(t, "poor", result.WaterQualityHint)
}

func TestStandInSpeciesAnalyzerDeterministic(t *testing.T) {
	a := NewStandInSpeciesAnalyzer()
	in := Input{Samples: chorus(60, 40), SampleRate: testRate, Filename: "pond-a.wav"}

	first, err := a.AnalyzeCalls(context.Background(), in)
	require.NoError(t, err)
	second, err := a.AnalyzeCalls(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestStandInSpeciesAnalyzerHonorsDeadline(t *testing.T) {
	a := NewStandInSpeciesAnalyzer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.AnalyzeCalls(ctx, Input{
		Samples:    chorus(60, 40),
		SampleRate: testRate,
		Filename:   "pond-a.wav",
	})
	assert.Error(t, err)
}

func TestStandInSpeciesAnalyzerRejectsEmptyInput(t *testing.T) {
	a := NewStandInSpeciesAnalyzer()
	_, err := a.AnalyzeCalls(context.Background(), Input{SampleRate: testRate})
	assert.Error(t, err)
}

func TestStandInEnvironmentalAnalyzer(t *testing.T) {
	a := NewStandInEnvironmentalAnalyzer()

	// Rich soundscape: energy spread across several bands.
	n := testRate * 10
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		tm := float64(i) / testRate
		samples[i] = float32(0.15*math.Sin(2*math.Pi*350*tm) +
			0.15*math.Sin(2*math.Pi*800*tm) +
			0.15*math.Sin(2*math.Pi*1800*tm) +
			0.15*math.Sin(2*math.Pi*3500*tm) +
			0.15*math.Sin(2*math.Pi*6500*tm))
	}

	result, err := a.AnalyzeEnvironment(context.Background(), Input{
		Samples:    samples,
		SampleRate: testRate,
		Filename:   "rich.wav",
	})
	require.NoError(t, err)

	assert.Greater(t, result.BiodiversityScore, 0.8,
		"even spread across bands should score high")
	assert.Less(t, result.NoisePollution, 0.3)
	assert.Equal(t, HealthHealthy, result.EcosystemHealth)
	assert.NotEmpty(t, result.Recommendations)
}

func TestStandInEnvironmentalAnalyzerNoisy(t *testing.T) {
	a := NewStandInEnvironmentalAnalyzer()

	// Low-frequency machinery drone dominating a single in-band tone.
	n := testRate * 10
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		tm := float64(i) / testRate
		samples[i] = float32(0.7*math.Sin(2*math.Pi*60*tm) +
			0.1*math.Sin(2*math.Pi*800*tm))
	}

	result, err := a.AnalyzeEnvironment(context.Background(), Input{
		Samples:    samples,
		SampleRate: testRate,
		Filename:   "noisy.wav",
	})
	require.NoError(t, err)

	assert.Greater(t, result.NoisePollution, 0.5)
	assert.NotEqual(t, HealthHealthy, result.EcosystemHealth)
}

func TestFallbacksAreDeterministicAndMidRange(t *testing.T) {
	s1 := FallbackSpeciesResult("pond-a.wav")
	s2 := FallbackSpeciesResult("pond-a.wav")
	assert.Equal(t, s1, s2)
	assert.GreaterOrEqual(t, s1.CallDensity, 20.0)
	assert.Less(t, s1.CallDensity, 35.0)
	assert.Equal(t, 0.3, s1.Confidence)

	e1 := FallbackEnvironmentalResult("pond-a.wav")
	e2 := FallbackEnvironmentalResult("pond-a.wav")
	assert.Equal(t, e1, e2)
	assert.GreaterOrEqual(t, e1.BiodiversityScore, 0.4)
	assert.Less(t, e1.BiodiversityScore, 0.6)
	assert.Equal(t, HealthStressed, e1.EcosystemHealth)
	assert.NotEmpty(t, e1.Recommendations)

	assert.NotEqual(t, FallbackSpeciesResult("x.wav").CallDensity,
		FallbackSpeciesResult("pond-a.wav").CallDensity)
}

func TestInputDuration(t *testing.T) {
	in := Input{Samples: make([]float32, testRate*3), SampleRate: testRate}
	assert.InDelta(t, 3.0, in.Duration(), 1e-9)
	assert.Equal(t, 0.0, Input{}.Duration())
}

func TestAnalyzersCompleteWithinBudget(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	in := Input{Samples: chorus(120, 30), SampleRate: testRate, Filename: "long.wav"}

	_, err := NewStandInSpeciesAnalyzer().AnalyzeCalls(ctx, in)
	assert.NoError(t, err)
	_, err = NewStandInEnvironmentalAnalyzer().AnalyzeEnvironment(ctx, in)
	assert.NoError(t, err)
}
