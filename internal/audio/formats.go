// Package audio implements the preprocessing stage of the analysis pipeline:
// format detection, decoding, resampling to the canonical rate, high-pass
// filtering, amplitude normalization, fixed-length chunking, and suitability
// validation.
package audio

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format identifies a supported audio container format.
type Format string

const (
	FormatWAV     Format = "wav"
	FormatFLAC    Format = "flac"
	FormatUnknown Format = "unknown"
)

var (
	riffSignature = []byte("RIFF")
	waveSignature = []byte("WAVE")
	flacSignature = []byte("fLaC")
)

// DetectFormat determines the audio format from the file signature, falling
// back to the filename extension when the signature is inconclusive.
func DetectFormat(data []byte, filename string) Format {
	if len(data) >= 12 && bytes.Equal(data[:4], riffSignature) && bytes.Equal(data[8:12], waveSignature) {
		return FormatWAV
	}
	if len(data) >= 4 && bytes.Equal(data[:4], flacSignature) {
		return FormatFLAC
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		return FormatWAV
	case ".flac":
		return FormatFLAC
	}
	return FormatUnknown
}
