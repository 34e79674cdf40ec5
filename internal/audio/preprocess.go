package audio

import (
	"log/slog"
	"math"

	"github.com/pondwatch/pondwatch-go/internal/audio/equalizer"
	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/errors"
	"github.com/pondwatch/pondwatch-go/internal/logging"
)

// Applied operation names reported in preprocessing results.
const (
	OpDecode    = "decode"
	OpDownmix   = "downmix"
	OpResample  = "resample"
	OpHighPass  = "high-pass"
	OpNormalize = "normalize"
	OpChunk     = "chunk"
)

// Result is the outcome of preprocessing one recording.
type Result struct {
	Samples      []float32   `json:"-"`
	Metadata     Metadata    `json:"metadata"`
	Chunks       [][]float32 `json:"-"`
	ChunkCount   int         `json:"chunk_count"`
	AppliedOps   []string    `json:"applied_operations"`
	QualityScore float64     `json:"quality_score"`
}

// Preprocessor decodes, cleans up and chunks raw audio uploads.
type Preprocessor struct {
	settings *conf.Settings
	log      *slog.Logger
}

// NewPreprocessor creates a preprocessor using the given settings.
func NewPreprocessor(settings *conf.Settings) *Preprocessor {
	return &Preprocessor{
		settings: settings,
		log:      logging.ForService("audio"),
	}
}

// Process runs the full preprocessing pipeline on a raw upload: format
// detection, decoding with mono downmix, resampling to the canonical rate,
// a high-pass filter against sub-100Hz handling and wind noise, amplitude
// normalization, and fixed-length chunking. Chunks shorter than the
// configured minimum are discarded.
func (p *Preprocessor) Process(data []byte, filename string) (*Result, error) {
	if len(data) == 0 {
		return nil, errors.Newf("empty audio payload").
			Component("audio").
			Category(errors.CategoryValidation).
			Build()
	}

	format := DetectFormat(data, filename)
	if format == FormatUnknown {
		return nil, errors.Newf("unable to determine audio format of %q", filename).
			Component("audio").
			Category(errors.CategoryAudioFormat).
			Context("filename_ext", filename).
			Build()
	}

	samples, md, err := decode(data, format)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, errors.Newf("decoded audio contains no samples").
			Component("audio").
			Category(errors.CategoryAudio).
			Build()
	}

	ops := []string{OpDecode}
	if md.Channels > 1 {
		ops = append(ops, OpDownmix)
	}

	target := p.settings.Audio.SampleRate
	if md.SampleRate != target {
		samples, err = Resample(samples, md.SampleRate, target)
		if err != nil {
			return nil, errors.New(err).
				Component("audio").
				Category(errors.CategoryAudio).
				Context("operation", "resample").
				Context("source_rate", md.SampleRate).
				Build()
		}
		ops = append(ops, OpResample)
	}

	if err := p.highPass(samples, target); err != nil {
		return nil, err
	}
	ops = append(ops, OpHighPass)

	if normalize(samples, float32(p.settings.Audio.TargetPeak)) {
		ops = append(ops, OpNormalize)
	}

	quality := qualityScore(samples, md.Duration)

	chunks := p.chunk(samples, target)
	ops = append(ops, OpChunk)

	if p.log != nil {
		p.log.Debug("preprocessing complete",
			"format", md.Format,
			"duration", md.Duration,
			"chunks", len(chunks),
			"quality", quality)
	}

	return &Result{
		Samples:      samples,
		Metadata:     md,
		Chunks:       chunks,
		ChunkCount:   len(chunks),
		AppliedOps:   ops,
		QualityScore: quality,
	}, nil
}

// highPass applies the configured high-pass filter in place.
func (p *Preprocessor) highPass(samples []float32, sampleRate int) error {
	filter, err := equalizer.NewHighPass(
		float64(sampleRate),
		p.settings.Audio.HighPassHz,
		p.settings.Audio.HighPassQ,
		2,
	)
	if err != nil {
		return errors.New(err).
			Component("audio").
			Category(errors.CategoryConfiguration).
			Context("operation", "high_pass_init").
			Build()
	}

	buf := make([]float64, len(samples))
	for i, s := range samples {
		buf[i] = float64(s)
	}
	filter.ApplyBatch(buf)
	for i, s := range buf {
		samples[i] = float32(s)
	}
	return nil
}

// normalize scales samples so the peak hits targetPeak. Returns false when
// the signal is silent or already within 1% of the target.
func normalize(samples []float32, targetPeak float32) bool {
	var peak float32
	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return false
	}
	gain := targetPeak / peak
	if gain > 0.99 && gain < 1.01 {
		return false
	}
	for i := range samples {
		samples[i] *= gain
	}
	return true
}

// chunk splits samples into fixed-duration chunks, discarding any tail
// shorter than the configured minimum.
func (p *Preprocessor) chunk(samples []float32, sampleRate int) [][]float32 {
	chunkSamples := p.settings.Audio.ChunkSeconds * sampleRate
	minSamples := p.settings.Audio.MinChunkSeconds * sampleRate

	var chunks [][]float32
	for start := 0; start < len(samples); start += chunkSamples {
		end := min(start+chunkSamples, len(samples))
		if end-start >= minSamples {
			chunks = append(chunks, samples[start:end])
		}
	}
	return chunks
}

// qualityScore grades a recording 0-100 from simple signal statistics:
// clipping share, overall level, and DC offset. Duration shortfalls are
// reported by validation, not double-counted here.
func qualityScore(samples []float32, duration float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	var clipped int
	var sum, sumSquares float64
	for _, s := range samples {
		if s >= 0.999 || s <= -0.999 {
			clipped++
		}
		sum += float64(s)
		sumSquares += float64(s) * float64(s)
	}

	n := float64(len(samples))
	rms := math.Sqrt(sumSquares / n)
	dcOffset := math.Abs(sum / n)
	clipRatio := float64(clipped) / n

	score := 100.0

	// Heavy clipping dominates, up to a 50 point penalty.
	score -= math.Min(clipRatio*1000, 50)

	// Very quiet recordings carry little usable signal.
	if rms < 0.01 {
		score -= 30
	} else if rms < 0.05 {
		score -= 15
	}

	// A large DC offset points at broken capture hardware.
	if dcOffset > 0.1 {
		score -= 20
	} else if dcOffset > 0.02 {
		score -= 5
	}

	if duration < 10 {
		score -= 10
	}

	return math.Max(score, 0)
}
