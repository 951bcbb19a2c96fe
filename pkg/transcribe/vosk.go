//go:build vosk

package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	vosk "github.com/alphacep/vosk-api/go"
	"go.uber.org/zap"

	"github.com/chazu/voxcad/pkg/config"
)

// chunkBytes is how much PCM is fed to the recognizer per call (4000
// frames of 16-bit audio).
const chunkBytes = 8000

// Vosk runs an offline Kaldi model. The model is loaded once and shared;
// each request gets its own recognizer.
type Vosk struct {
	model  *vosk.VoskModel
	logger *zap.Logger
}

func newVosk(cfg config.TranscribeConfig, logger *zap.Logger) (Transcriber, error) {
	return NewVosk(cfg.Vosk.ModelPath, logger)
}

// NewVosk loads the model unpacked at modelPath.
func NewVosk(modelPath string, logger *zap.Logger) (*Vosk, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	vosk.SetLogLevel(-1)

	start := time.Now()
	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: loading vosk model %q: %w", modelPath, err)
	}
	logger.Info("vosk model loaded",
		zap.String("path", modelPath),
		zap.Duration("took", time.Since(start)),
	)
	return &Vosk{model: model, logger: logger}, nil
}

func (v *Vosk) Name() string { return "vosk" }

func (v *Vosk) Close() error {
	v.model.Free()
	return nil
}

// Transcribe feeds pcm to a fresh recognizer and returns the final result.
func (v *Vosk) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	if err := validate(pcm, sampleRate); err != nil {
		return "", err
	}
	rec, err := vosk.NewRecognizer(v.model, float64(sampleRate))
	if err != nil {
		return "", fmt.Errorf("transcribe: creating recognizer: %w", err)
	}
	defer rec.Free()

	for off := 0; off < len(pcm); off += chunkBytes {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		end := min(off+chunkBytes, len(pcm))
		if rec.AcceptWaveform(pcm[off:end]) < 0 {
			return "", fmt.Errorf("transcribe: vosk rejected audio at byte %d", off)
		}
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(rec.FinalResult(), &result); err != nil {
		return "", fmt.Errorf("transcribe: decoding vosk result: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}
