//go:build !vosk

package transcribe

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/chazu/voxcad/pkg/config"
)

func newVosk(config.TranscribeConfig, *zap.Logger) (Transcriber, error) {
	return nil, fmt.Errorf("%w: vosk support not compiled in (rebuild with -tags vosk)", ErrUnavailable)
}
