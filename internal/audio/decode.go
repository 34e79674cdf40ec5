package audio

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/tphakala/flac"

	"github.com/pondwatch/pondwatch-go/internal/errors"
)

// Metadata describes a decoded recording.
type Metadata struct {
	Format     Format  `json:"format"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	BitDepth   int     `json:"bit_depth"`
	Duration   float64 `json:"duration_seconds"`
}

// getAudioDivisor returns the divisor converting integer PCM samples of the
// given bit depth to float32 in [-1, 1].
func getAudioDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, errors.Newf("unsupported audio bit depth: %d", bitDepth).
			Component("audio").
			Category(errors.CategoryAudioFormat).
			Build()
	}
}

// decode dispatches on the detected format and returns mono float32 samples
// at the source sample rate alongside the recording metadata.
func decode(data []byte, format Format) ([]float32, Metadata, error) {
	switch format {
	case FormatWAV:
		return decodeWAV(data)
	case FormatFLAC:
		return decodeFLAC(data)
	default:
		return nil, Metadata{}, errors.Newf("cannot decode format %q", format).
			Component("audio").
			Category(errors.CategoryAudioFormat).
			Build()
	}
}

func decodeWAV(data []byte) ([]float32, Metadata, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, Metadata{}, errors.Newf("input is not a valid WAV audio file").
			Component("audio").
			Category(errors.CategoryAudioFormat).
			Build()
	}

	if decoder.NumChans != 1 && decoder.NumChans != 2 {
		return nil, Metadata{}, errors.Newf("unsupported number of channels: %d", decoder.NumChans).
			Component("audio").
			Category(errors.CategoryAudioFormat).
			Build()
	}

	divisor, err := getAudioDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, Metadata{}, err
	}

	md := Metadata{
		Format:     FormatWAV,
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		BitDepth:   int(decoder.BitDepth),
	}

	channels := int(decoder.NumChans)
	buf := &audio.IntBuffer{
		Data:   make([]int, 8192*channels),
		Format: &audio.Format{SampleRate: md.SampleRate, NumChannels: channels},
	}

	var samples []float32
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, Metadata{}, errors.New(err).
				Component("audio").
				Category(errors.CategoryAudio).
				Context("operation", "wav_pcm_read").
				Build()
		}
		if n == 0 {
			break
		}
		samples = appendDownmixed(samples, buf.Data[:n], channels, divisor)
	}

	md.Duration = float64(len(samples)) / float64(md.SampleRate)
	return samples, md, nil
}

func decodeFLAC(data []byte) ([]float32, Metadata, error) {
	decoder, err := flac.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, Metadata{}, errors.New(err).
			Component("audio").
			Category(errors.CategoryAudioFormat).
			Context("operation", "flac_open").
			Build()
	}

	if decoder.NChannels != 1 && decoder.NChannels != 2 {
		return nil, Metadata{}, errors.Newf("unsupported number of channels: %d", decoder.NChannels).
			Component("audio").
			Category(errors.CategoryAudioFormat).
			Build()
	}

	divisor, err := getAudioDivisor(decoder.BitsPerSample)
	if err != nil {
		return nil, Metadata{}, err
	}

	md := Metadata{
		Format:     FormatFLAC,
		SampleRate: decoder.SampleRate,
		Channels:   decoder.NChannels,
		BitDepth:   decoder.BitsPerSample,
	}

	bytesPerSample := decoder.BitsPerSample / 8
	frameStride := bytesPerSample * decoder.NChannels

	var samples []float32
	for {
		frame, err := decoder.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, Metadata{}, errors.New(err).
				Component("audio").
				Category(errors.CategoryAudio).
				Context("operation", "flac_frame_read").
				Build()
		}

		for i := 0; i+frameStride <= len(frame); i += frameStride {
			var mixed float32
			for ch := 0; ch < decoder.NChannels; ch++ {
				var sample int32
				off := i + ch*bytesPerSample
				switch decoder.BitsPerSample {
				case 16:
					sample = int32(int16(binary.LittleEndian.Uint16(frame[off:])))
				case 24:
					sample = int32(frame[off]) | int32(frame[off+1])<<8 | int32(frame[off+2])<<16
					// sign-extend 24-bit values
					if sample&0x800000 != 0 {
						sample |= ^int32(0xFFFFFF)
					}
				case 32:
					sample = int32(binary.LittleEndian.Uint32(frame[off:]))
				}
				mixed += float32(sample) / divisor
			}
			samples = append(samples, mixed/float32(decoder.NChannels))
		}
	}

	md.Duration = float64(len(samples)) / float64(md.SampleRate)
	return samples, md, nil
}

// appendDownmixed converts interleaved integer PCM to mono float32 and
// appends it to dst.
func appendDownmixed(dst []float32, pcm []int, channels int, divisor float32) []float32 {
	if channels == 1 {
		for _, sample := range pcm {
			dst = append(dst, float32(sample)/divisor)
		}
		return dst
	}
	for i := 0; i+channels <= len(pcm); i += channels {
		var mixed float32
		for ch := range channels {
			mixed += float32(pcm[i+ch]) / divisor
		}
		dst = append(dst, mixed/float32(channels))
	}
	return dst
}
