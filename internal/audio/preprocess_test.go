package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pondwatch/pondwatch-go/internal/conf"
)

// makeWAV builds a 16-bit PCM mono WAV containing a sine tone.
func makeWAV(t *testing.T, freq float64, seconds float64, sampleRate int, amplitude float64) []byte {
	t.Helper()

	n := int(seconds * float64(sampleRate))
	dataSize := n * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))

	for i := 0; i < n; i++ {
		sample := amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		binary.Write(&buf, binary.LittleEndian, int16(sample*32767))
	}
	return buf.Bytes()
}

func testSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Audio = conf.AudioSettings{
		SampleRate:       conf.SampleRate,
		ChunkSeconds:     30,
		MinChunkSeconds:  10,
		HighPassHz:       100.0,
		HighPassQ:        0.707,
		TargetPeak:       0.9,
		MinDuration:      30.0,
		MinSampleRate:    22050,
		MinQualityScore:  40.0,
		WarningTolerance: 2,
	}
	return s
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	wavData := makeWAV(t, 440, 0.1, 22050, 0.5)

	tests := []struct {
		name     string
		data     []byte
		filename string
		want     Format
	}{
		{"wav signature", wavData, "recording.bin", FormatWAV},
		{"flac signature", []byte("fLaC0000"), "x", FormatFLAC},
		{"wav extension fallback", []byte("????????????"), "pond.WAV", FormatWAV},
		{"flac extension fallback", []byte("????????????"), "pond.flac", FormatFLAC},
		{"unknown", []byte("not audio at all"), "pond.mp3", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DetectFormat(tt.data, tt.filename))
		})
	}
}

func TestProcessChunking(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		seconds    float64
		wantChunks int
	}{
		{"exact multiple", 120, 4},
		{"tail kept at minimum", 70, 3},
		{"short tail discarded", 65, 2},
		{"single short recording discarded entirely", 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := NewPreprocessor(testSettings())
			data := makeWAV(t, 800, tt.seconds, conf.SampleRate, 0.5)

			result, err := p.Process(data, "pond.wav")
			require.NoError(t, err)
			assert.Len(t, result.Chunks, tt.wantChunks)
			assert.Equal(t, tt.wantChunks, result.ChunkCount)
			assert.InDelta(t, tt.seconds, result.Metadata.Duration, 0.1)
		})
	}
}

func TestProcessResamples(t *testing.T) {
	t.Parallel()

	p := NewPreprocessor(testSettings())
	data := makeWAV(t, 800, 35, 44100, 0.5)

	result, err := p.Process(data, "pond.wav")
	require.NoError(t, err)

	assert.Equal(t, 44100, result.Metadata.SampleRate, "metadata keeps the source rate")
	assert.Contains(t, result.AppliedOps, OpResample)
	// 35 seconds at the canonical rate after resampling.
	assert.InDelta(t, 35*conf.SampleRate, len(result.Samples), float64(conf.SampleRate)/10)
}

func TestProcessAppliedOps(t *testing.T) {
	t.Parallel()

	p := NewPreprocessor(testSettings())
	data := makeWAV(t, 800, 35, conf.SampleRate, 0.4)

	result, err := p.Process(data, "pond.wav")
	require.NoError(t, err)

	assert.Contains(t, result.AppliedOps, OpDecode)
	assert.Contains(t, result.AppliedOps, OpHighPass)
	assert.Contains(t, result.AppliedOps, OpNormalize)
	assert.Contains(t, result.AppliedOps, OpChunk)
	assert.NotContains(t, result.AppliedOps, OpResample)
}

func TestProcessRejectsGarbage(t *testing.T) {
	t.Parallel()

	p := NewPreprocessor(testSettings())

	_, err := p.Process(nil, "pond.wav")
	assert.Error(t, err, "empty payload")

	_, err = p.Process([]byte("definitely not audio"), "pond.xyz")
	assert.Error(t, err, "unknown format")

	_, err = p.Process([]byte("RIFFxxxxWAVEbroken"), "pond.wav")
	assert.Error(t, err, "truncated wav")
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	samples := []float32{0.1, -0.2, 0.3}
	require.True(t, normalize(samples, 0.9))
	assert.InDelta(t, 0.9, samples[2], 1e-5)

	silent := []float32{0, 0, 0}
	assert.False(t, normalize(silent, 0.9))
}

func TestQualityScore(t *testing.T) {
	t.Parallel()

	clean := make([]float32, 22050)
	for i := range clean {
		clean[i] = 0.5 * float32(math.Sin(2*math.Pi*800*float64(i)/22050))
	}
	assert.GreaterOrEqual(t, qualityScore(clean, 60), 90.0)

	clipped := make([]float32, 22050)
	for i := range clipped {
		clipped[i] = 1.0
	}
	assert.Less(t, qualityScore(clipped, 60), 50.0)

	assert.Equal(t, 0.0, qualityScore(nil, 0))
}

func TestResampleHalvesLength(t *testing.T) {
	t.Parallel()

	in := make([]float32, 44100)
	out, err := Resample(in, 44100, 22050)
	require.NoError(t, err)
	assert.InDelta(t, 22050, len(out), 2)
}

func TestValidateForAnalysis(t *testing.T) {
	t.Parallel()

	p := NewPreprocessor(testSettings())

	t.Run("good recording passes without warnings", func(t *testing.T) {
		t.Parallel()
		v := p.ValidateForAnalysis(Metadata{Format: FormatWAV, SampleRate: 44100, Duration: 120}, 85)
		assert.True(t, v.Suitable)
		assert.Empty(t, v.Warnings)
	})

	t.Run("each failing check adds one warning", func(t *testing.T) {
		t.Parallel()
		v := p.ValidateForAnalysis(Metadata{Format: FormatUnknown, SampleRate: 8000, Duration: 10}, 30)
		assert.Len(t, v.Warnings, 4)
		assert.Len(t, v.Recommendations, 4)
		assert.False(t, v.Suitable, "four warnings exceed the tolerance")
	})

	t.Run("soft gate tolerates a couple of warnings", func(t *testing.T) {
		t.Parallel()
		v := p.ValidateForAnalysis(Metadata{Format: FormatWAV, SampleRate: 16000, Duration: 20}, 85)
		assert.Len(t, v.Warnings, 2)
		assert.True(t, v.Suitable)
	})

	t.Run("categorically poor quality fails alone", func(t *testing.T) {
		t.Parallel()
		v := p.ValidateForAnalysis(Metadata{Format: FormatWAV, SampleRate: 44100, Duration: 120}, 10)
		assert.False(t, v.Suitable)
	})
}
