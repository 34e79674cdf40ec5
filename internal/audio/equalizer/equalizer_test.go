package equalizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_IsZero(t *testing.T) {
	t.Run("uninitialized", func(t *testing.T) {
		f := &Filter{}
		assert.True(t, f.IsZero())
	})

	t.Run("initialized", func(t *testing.T) {
		f, err := NewHighPass(22050, 100, 0.707, 1)
		require.NoError(t, err)
		assert.False(t, f.IsZero())
	})
}

func TestNewFilter_Coefficients(t *testing.T) {
	f := NewFilter(LowPass, 1.0, 0.5, 0.25, 0.1, 0.2, 0.3, 2)

	assert.InDelta(t, 0.1, f.b0a0, 1e-10)
	assert.InDelta(t, 0.2, f.b1a0, 1e-10)
	assert.InDelta(t, 0.3, f.b2a0, 1e-10)
	assert.InDelta(t, 0.5, f.a1a0, 1e-10)
	assert.InDelta(t, 0.25, f.a2a0, 1e-10)

	assert.Len(t, f.in1, 2)
	assert.Len(t, f.out2, 2)
}

func TestInvalidPasses(t *testing.T) {
	_, err := NewHighPass(22050, 100, 0.707, 0)
	assert.Error(t, err)
	_, err = NewBandPass(22050, 1000, 1.0, -1)
	assert.Error(t, err)
}

// generateTone produces n samples of a sine at freq Hz.
func generateTone(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func rms(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func TestHighPassAttenuatesLowFrequencies(t *testing.T) {
	const sampleRate = 22050

	f, err := NewHighPass(sampleRate, 100, 0.707, 2)
	require.NoError(t, err)

	low := generateTone(30, sampleRate, sampleRate)
	f.ApplyBatch(low)

	f2, err := NewHighPass(sampleRate, 100, 0.707, 2)
	require.NoError(t, err)
	high := generateTone(1000, sampleRate, sampleRate)
	f2.ApplyBatch(high)

	// Skip the first quarter second of filter settling.
	assert.Less(t, rms(low[sampleRate/4:]), 0.1, "30 Hz should be strongly attenuated")
	assert.Greater(t, rms(high[sampleRate/4:]), 0.5, "1 kHz should pass through")
}

func TestBandRejectNotchesCenterFrequency(t *testing.T) {
	const sampleRate = 22050

	f, err := NewBandReject(sampleRate, 1000, 0.5, 2)
	require.NoError(t, err)

	center := generateTone(1000, sampleRate, sampleRate)
	f.ApplyBatch(center)

	assert.Less(t, rms(center[sampleRate/4:]), 0.2, "center frequency should be notched out")
}

func TestFilterChain(t *testing.T) {
	fc := NewFilterChain()
	assert.Equal(t, 0, fc.Length())

	require.Error(t, fc.AddFilter(nil))
	require.Error(t, fc.AddFilter(&Filter{}))

	hp, err := NewHighPass(22050, 100, 0.707, 1)
	require.NoError(t, err)
	lp, err := NewLowPass(22050, 8000, 0.707, 1)
	require.NoError(t, err)

	require.NoError(t, fc.AddFilter(hp))
	require.NoError(t, fc.AddFilter(lp))
	assert.Equal(t, 2, fc.Length())

	input := generateTone(1000, 22050, 2205)
	fc.ApplyBatch(input)
	assert.Greater(t, rms(input[500:]), 0.1, "pass band should survive the chain")
}
