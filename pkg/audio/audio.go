// Package audio converts uploaded recordings into the raw PCM the
// transcription backends consume: mono, signed 16-bit little endian at
// 16 kHz.
//
// WAV uploads are decoded in process. Anything else (webm, ogg, mp3, m4a
// from browser recorders) is handed to an ffmpeg subprocess.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/zap"
)

// SampleRate is the output sample rate in Hz.
const SampleRate = 16000

// wavFormatPCM is the WAVE_FORMAT_PCM format tag.
const wavFormatPCM = 1

var (
	// ErrUnsupported is returned for input that is neither PCM WAV nor
	// transcodable because no ffmpeg is configured.
	ErrUnsupported = errors.New("audio: unsupported format")
	// ErrNoAudio is returned for empty input or a recording with no samples.
	ErrNoAudio = errors.New("audio: no audio data")
)

// Converter turns uploads into 16 kHz mono PCM.
type Converter struct {
	ffmpeg string
	logger *zap.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithFFmpeg sets the ffmpeg binary used for non-WAV input. An empty path
// disables transcoding.
func WithFFmpeg(path string) Option {
	return func(c *Converter) {
		c.ffmpeg = path
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Converter) {
		c.logger = l
	}
}

// NewConverter returns a Converter that uses "ffmpeg" from PATH unless
// configured otherwise.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{ffmpeg: "ffmpeg", logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "audio"))
	return c
}

// PCM16 converts data to mono s16le PCM at SampleRate.
func (c *Converter) PCM16(ctx context.Context, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrNoAudio
	}
	if IsWAV(data) {
		pcm, err := DecodeWAV(data)
		if err == nil || !errors.Is(err, ErrUnsupported) {
			return pcm, err
		}
		// Compressed or float WAV; let ffmpeg handle it.
		c.logger.Debug("wav needs transcoding", zap.Error(err))
	}
	if c.ffmpeg == "" {
		return nil, ErrUnsupported
	}
	return c.transcode(ctx, data)
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// DecodeWAV decodes an integer PCM WAV file, downmixes it to mono and
// resamples it to SampleRate.
func DecodeWAV(data []byte) ([]byte, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("audio: invalid wav file")
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("audio: wav format tag %d: %w", dec.WavAudioFormat, ErrUnsupported)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audio: decoding wav: %w", err)
	}
	if len(buf.Data) == 0 {
		return nil, ErrNoAudio
	}

	mono := downmix(buf, int(dec.SampleBitDepth()))
	mono = resample(mono, buf.Format.SampleRate, SampleRate)
	return toPCM16(mono), nil
}

// downmix averages interleaved channels into one normalized [-1, 1] track.
func downmix(buf *goaudio.IntBuffer, bitDepth int) []float64 {
	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	scale := math.Exp2(float64(bitDepth - 1))
	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			v := buf.Data[i*channels+ch]
			if bitDepth == 8 {
				// 8-bit WAV is unsigned.
				v -= 128
			}
			sum += float64(v)
		}
		out[i] = sum / float64(channels) / scale
	}
	return out
}

// resample converts samples between rates with linear interpolation.
func resample(samples []float64, from, to int) []float64 {
	if from == to || from <= 0 || len(samples) == 0 {
		return samples
	}
	n := int(math.Round(float64(len(samples)) * float64(to) / float64(from)))
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		frac := pos - float64(j)
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}

// toPCM16 encodes normalized samples as clamped s16le.
func toPCM16(samples []float64) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := math.Round(s * -math.MinInt16)
		v = math.Max(math.MinInt16, math.Min(math.MaxInt16, v))
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}

// WAV wraps mono s16le PCM in a WAV container.
func WAV(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, ErrNoAudio
	}
	// The wav encoder patches its header on Close and needs a seekable sink.
	f, err := os.CreateTemp("", "voxcad-*.wav")
	if err != nil {
		return nil, fmt.Errorf("audio: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, wavFormatPCM)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}); err != nil {
		return nil, fmt.Errorf("audio: encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: encoding wav: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("audio: %w", err)
	}
	return io.ReadAll(f)
}
