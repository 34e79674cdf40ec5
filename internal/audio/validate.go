package audio

import "fmt"

// Validation is the outcome of the suitability soft gate.
type Validation struct {
	Suitable        bool     `json:"suitable"`
	Warnings        []string `json:"warnings"`
	Recommendations []string `json:"recommendations"`
}

// Quality below this is categorically poor and fails validation on its own.
const poorQualityFloor = 20.0

// ValidateForAnalysis checks a preprocessed recording against the minimum
// requirements for a reliable assessment. Each failing check appends one
// warning with a matching recommendation. The gate is soft: a recording is
// unsuitable only when warnings accumulate beyond the configured tolerance
// or the quality score is categorically poor.
func (p *Preprocessor) ValidateForAnalysis(md Metadata, quality float64) Validation {
	var warnings, recommendations []string

	if md.Duration < p.settings.Audio.MinDuration {
		warnings = append(warnings,
			fmt.Sprintf("recording is %.0f seconds, shorter than the recommended %.0f seconds",
				md.Duration, p.settings.Audio.MinDuration))
		recommendations = append(recommendations,
			"record for at least one minute near the water's edge")
	}

	if md.SampleRate < p.settings.Audio.MinSampleRate {
		warnings = append(warnings,
			fmt.Sprintf("sample rate %d Hz is below the recommended %d Hz",
				md.SampleRate, p.settings.Audio.MinSampleRate))
		recommendations = append(recommendations,
			"set your recorder to 44.1 kHz or higher for reliable call detection")
	}

	if md.Format == FormatUnknown {
		warnings = append(warnings, "audio format could not be determined")
		recommendations = append(recommendations,
			"save recordings as WAV or FLAC files")
	}

	if quality < p.settings.Audio.MinQualityScore {
		warnings = append(warnings,
			fmt.Sprintf("audio quality score %.0f is below the recommended %.0f",
				quality, p.settings.Audio.MinQualityScore))
		recommendations = append(recommendations,
			"avoid wind, handling noise and clipping; keep the microphone still")
	}

	suitable := len(warnings) <= p.settings.Audio.WarningTolerance && quality >= poorQualityFloor

	return Validation{
		Suitable:        suitable,
		Warnings:        warnings,
		Recommendations: recommendations,
	}
}
