// Package denoise classifies background noise in field recordings and applies
// noise-type-specific adaptive filters. The frequency band carrying frog call
// signatures is never touched: every filter cutoff sits outside the protected
// band, so denoising can only improve signal-to-noise for the analyzers
// downstream. All returned metrics are advisory.
package denoise

import (
	"log/slog"
	"math"

	"github.com/pondwatch/pondwatch-go/internal/audio/equalizer"
	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/errors"
	"github.com/pondwatch/pondwatch-go/internal/logging"
)

// NoiseType classifies the dominant background noise in a recording.
type NoiseType string

const (
	NoiseWind       NoiseType = "wind"
	NoiseTraffic    NoiseType = "traffic"
	NoiseElectrical NoiseType = "electrical"
	NoiseWaterFlow  NoiseType = "water-flow"
	NoiseMixed      NoiseType = "mixed"
	NoiseUnknown    NoiseType = "unknown"
)

// Spectral band boundaries used for classification, in Hz.
const (
	lowBandCeiling = 250.0
	midBandCeiling = 2000.0
)

// Profile describes the classified noise in a recording. Consumed only
// within one analysis request, never persisted.
type Profile struct {
	Type       NoiseType `json:"type"`
	Intensity  float64   `json:"intensity"` // 0..1, share of energy outside the protected band
	LowShare   float64   `json:"low_band_share"`
	MidShare   float64   `json:"mid_band_share"`
	HighShare  float64   `json:"high_band_share"`
	HumRatio   float64   `json:"hum_ratio"` // mains hum share of total power
	SampleRate int       `json:"-"`
}

// Result carries the denoised buffer and advisory metrics.
type Result struct {
	Samples            []float32 `json:"-"`
	NoiseReductionDB   float64   `json:"noise_reduction_db"`
	Profile            Profile   `json:"noise_profile"`
	QualityImprovement float64   `json:"quality_improvement"`
}

// Denoiser applies adaptive noise reduction.
type Denoiser struct {
	settings *conf.Settings
	log      *slog.Logger
}

// New creates a denoiser using the given settings.
func New(settings *conf.Settings) *Denoiser {
	return &Denoiser{
		settings: settings,
		log:      logging.ForService("denoise"),
	}
}

// Denoise classifies the noise in samples and applies the matching filter
// chain. The input slice is not modified; a filtered copy is returned.
func (d *Denoiser) Denoise(samples []float32, filename string) (*Result, error) {
	if len(samples) == 0 {
		return nil, errors.Newf("cannot denoise empty buffer").
			Component("denoise").
			Category(errors.CategoryValidation).
			Build()
	}

	sampleRate := d.settings.Audio.SampleRate

	buf := make([]float64, len(samples))
	for i, s := range samples {
		buf[i] = float64(s)
	}

	profile := d.classify(buf, sampleRate)

	snrBefore := d.protectedBandSNR(buf, sampleRate)
	powerBefore := meanSquare(buf)

	chain, err := d.filterChain(profile, sampleRate)
	if err != nil {
		return nil, err
	}
	chain.ApplyBatch(buf)

	powerAfter := meanSquare(buf)
	snrAfter := d.protectedBandSNR(buf, sampleRate)

	out := make([]float32, len(buf))
	for i, s := range buf {
		out[i] = float32(s)
	}

	reductionDB := 0.0
	if powerAfter > 0 && powerBefore > powerAfter {
		reductionDB = 10 * math.Log10(powerBefore/powerAfter)
	}

	if d.log != nil {
		d.log.Debug("denoise complete",
			"filename", filename,
			"noise_type", profile.Type,
			"intensity", profile.Intensity,
			"reduction_db", reductionDB)
	}

	return &Result{
		Samples:            out,
		NoiseReductionDB:   reductionDB,
		Profile:            profile,
		QualityImprovement: snrAfter - snrBefore,
	}, nil
}

// classify derives the noise profile from relative low/mid/high spectral
// energy plus a mains-hum probe.
func (d *Denoiser) classify(buf []float64, sampleRate int) Profile {
	low, mid, high := bandEnergies(buf, sampleRate)
	total := low + mid + high
	if total == 0 {
		return Profile{Type: NoiseUnknown, SampleRate: sampleRate}
	}

	lowShare := low / total
	midShare := mid / total
	highShare := high / total

	hum := humRatio(buf, sampleRate)

	nyquist := float64(sampleRate) / 2
	densLow := low / lowBandCeiling
	densMid := mid / (midBandCeiling - lowBandCeiling)
	densHigh := high / (nyquist - midBandCeiling)
	maxDens := math.Max(densLow, math.Max(densMid, densHigh))
	minDens := math.Min(densLow, math.Min(densMid, densHigh))

	p := Profile{
		LowShare:   lowShare,
		MidShare:   midShare,
		HighShare:  highShare,
		HumRatio:   hum,
		SampleRate: sampleRate,
	}

	// Energy outside the protected band is what denoising can address.
	p.Intensity = math.Min(lowShare+highShare, 1.0)

	switch {
	case hum > 0.4:
		p.Type = NoiseElectrical
	case minDens > 0 && maxDens/minDens < 5:
		// Near-flat spectral density across all bands reads as broadband
		// flowing-water noise.
		p.Type = NoiseWaterFlow
	case lowShare > 0.6:
		p.Type = NoiseWind
	case lowShare > 0.3 && midShare > 0.3 && highShare < 0.2:
		p.Type = NoiseTraffic
	case lowShare < 0.55 && midShare < 0.55 && highShare < 0.55:
		p.Type = NoiseMixed
	default:
		p.Type = NoiseUnknown
	}

	return p
}

// filterChain builds the adaptive chain for the classified noise type.
// Cutoffs never intrude into the protected band.
func (d *Denoiser) filterChain(profile Profile, sampleRate int) (*equalizer.FilterChain, error) {
	rate := float64(sampleRate)
	lowCut := d.settings.Denoise.ProtectedLowHz * 0.75   // below the protected band
	highCut := d.settings.Denoise.ProtectedHighHz * 1.45 // above the protected band

	chain := equalizer.NewFilterChain()
	add := func(f *equalizer.Filter, err error) error {
		if err != nil {
			return err
		}
		return chain.AddFilter(f)
	}

	var err error
	switch profile.Type {
	case NoiseWind:
		err = add(equalizer.NewHighPass(rate, lowCut, 0.707, 4))
	case NoiseTraffic:
		err = add(equalizer.NewHighPass(rate, lowCut, 0.707, 2))
	case NoiseElectrical:
		// Notch the mains fundamental and first harmonic.
		for _, hz := range []float64{50, 60, 100, 120} {
			if err = add(equalizer.NewBandReject(rate, hz, 0.3, 1)); err != nil {
				break
			}
		}
	case NoiseWaterFlow:
		if err = add(equalizer.NewHighPass(rate, lowCut, 0.707, 2)); err == nil {
			err = add(equalizer.NewLowPass(rate, highCut, 0.707, 1))
		}
	case NoiseMixed:
		if err = add(equalizer.NewHighPass(rate, lowCut, 0.707, 2)); err == nil {
			err = add(equalizer.NewLowPass(rate, highCut, 0.707, 2))
		}
	default:
		// Unknown noise gets only a gentle rumble filter.
		err = add(equalizer.NewHighPass(rate, lowCut*0.8, 0.707, 1))
	}
	if err != nil {
		return nil, errors.New(err).
			Component("denoise").
			Category(errors.CategoryDenoise).
			Context("noise_type", string(profile.Type)).
			Build()
	}

	return chain, nil
}

// protectedBandSNR estimates the ratio of energy inside the protected band
// to energy outside it, in dB.
func (d *Denoiser) protectedBandSNR(buf []float64, sampleRate int) float64 {
	low := d.settings.Denoise.ProtectedLowHz
	high := d.settings.Denoise.ProtectedHighHz
	center := math.Sqrt(low * high)
	width := math.Log2(high / low)

	bp, err := equalizer.NewBandPass(float64(sampleRate), center, width, 1)
	if err != nil {
		return 0
	}

	inBand := make([]float64, len(buf))
	copy(inBand, buf)
	bp.ApplyBatch(inBand)

	signal := meanSquare(inBand)
	noise := meanSquare(buf) - signal
	if noise <= 0 || signal <= 0 {
		return 0
	}
	return 10 * math.Log10(signal/noise)
}

// bandEnergies splits buf into low/mid/high band energies using the biquad
// filter bank.
func bandEnergies(buf []float64, sampleRate int) (low, mid, high float64) {
	rate := float64(sampleRate)

	lp, err1 := equalizer.NewLowPass(rate, lowBandCeiling, 0.707, 2)
	center := math.Sqrt(lowBandCeiling * midBandCeiling)
	width := math.Log2(midBandCeiling / lowBandCeiling)
	bp, err2 := equalizer.NewBandPass(rate, center, width, 1)
	hp, err3 := equalizer.NewHighPass(rate, midBandCeiling, 0.707, 2)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0
	}

	tmp := make([]float64, len(buf))

	copy(tmp, buf)
	lp.ApplyBatch(tmp)
	low = meanSquare(tmp)

	copy(tmp, buf)
	bp.ApplyBatch(tmp)
	mid = meanSquare(tmp)

	copy(tmp, buf)
	hp.ApplyBatch(tmp)
	high = meanSquare(tmp)

	return low, mid, high
}

// humFrequencies probed for mains interference, in Hz.
var humFrequencies = []float64{50, 60, 100, 120}

// humRatio returns the share of total power concentrated at mains hum
// frequencies, estimated with the Goertzel algorithm.
func humRatio(buf []float64, sampleRate int) float64 {
	total := meanSquare(buf)
	if total == 0 {
		return 0
	}

	// Goertzel resolution degrades on very long buffers; one second is
	// plenty for a stationary hum.
	n := min(len(buf), sampleRate)
	window := buf[:n]

	var humPower float64
	for _, freq := range humFrequencies {
		humPower += goertzelToneAmplitudeSq(window, freq, sampleRate)
	}

	// A pure tone of amplitude A has mean square A²/2.
	return math.Min(humPower/(2*total), 1.0)
}

// goertzelToneAmplitudeSq estimates the squared amplitude of the tone at
// freq Hz within samples.
func goertzelToneAmplitudeSq(samples []float64, freq float64, sampleRate int) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}

	omega := 2 * math.Pi * freq / float64(sampleRate)
	coeff := 2 * math.Cos(omega)

	var s0, s1, s2 float64
	for _, x := range samples {
		s0 = x + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}

	magSq := s1*s1 + s2*s2 - coeff*s1*s2
	// Normalize |X(f)|² to squared tone amplitude.
	return 4 * magSq / (float64(n) * float64(n))
}

func meanSquare(buf []float64) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, s := range buf {
		sum += s * s
	}
	return sum / float64(len(buf))
}
