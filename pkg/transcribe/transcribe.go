// Package transcribe turns 16-bit mono PCM into text.
//
// Supported backends:
//   - vosk: offline Kaldi models through cgo (build with -tags vosk)
//   - whisper: an OpenAI-compatible /v1/audio/transcriptions endpoint
//   - none: rejects every request, for deployments without speech input
package transcribe

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chazu/voxcad/pkg/config"
)

// ErrUnavailable is returned when the selected backend cannot transcribe,
// either because it is disabled or because the binary was built without it.
var ErrUnavailable = errors.New("transcribe: backend unavailable")

// Transcriber converts audio to text.
type Transcriber interface {
	// Transcribe returns the text spoken in pcm, which holds mono signed
	// 16-bit little-endian samples at sampleRate Hz.
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error)
	// Name identifies the backend in logs and metrics.
	Name() string
	// Close releases backend resources.
	Close() error
}

// New creates the Transcriber selected by cfg.Backend.
func New(cfg config.TranscribeConfig, logger *zap.Logger) (Transcriber, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "transcribe"))

	switch cfg.Backend {
	case "vosk":
		return newVosk(cfg, logger)
	case "whisper":
		return NewWhisper(cfg.Whisper, cfg.Language, logger)
	case "none", "":
		return None{}, nil
	default:
		return nil, fmt.Errorf("transcribe: unknown backend %q (supported: vosk, whisper, none)", cfg.Backend)
	}
}

// None is a Transcriber that always fails with ErrUnavailable.
type None struct{}

func (None) Transcribe(context.Context, []byte, int) (string, error) {
	return "", ErrUnavailable
}

func (None) Name() string { return "none" }
func (None) Close() error { return nil }

// validate checks the arguments every backend shares.
func validate(pcm []byte, sampleRate int) error {
	if len(pcm) < 2 {
		return errors.New("transcribe: no audio samples")
	}
	if len(pcm)%2 != 0 {
		return fmt.Errorf("transcribe: odd PCM length %d", len(pcm))
	}
	if sampleRate <= 0 {
		return fmt.Errorf("transcribe: invalid sample rate %d", sampleRate)
	}
	return nil
}
