package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxStderr bounds how much ffmpeg diagnostics end up in an error.
const maxStderr = 512

// transcode pipes data through ffmpeg and reads raw PCM back.
func (c *Converter) transcode(ctx context.Context, data []byte) ([]byte, error) {
	path, err := exec.LookPath(c.ffmpeg)
	if err != nil {
		return nil, fmt.Errorf("audio: ffmpeg %q not found: %w", c.ffmpeg, ErrUnsupported)
	}

	cmd := exec.CommandContext(ctx, path,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-ac", "1", "-ar", strconv.Itoa(SampleRate),
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("audio: ffmpeg: %w", ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderr {
			msg = msg[len(msg)-maxStderr:]
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && msg != "" {
			return nil, fmt.Errorf("audio: ffmpeg exited %d: %s", exitErr.ExitCode(), msg)
		}
		return nil, fmt.Errorf("audio: ffmpeg: %w", err)
	}
	c.logger.Debug("transcoded upload",
		zap.Int("in_bytes", len(data)),
		zap.Int("out_bytes", stdout.Len()),
		zap.Duration("took", time.Since(start)),
	)
	if stdout.Len() < 2 {
		return nil, ErrNoAudio
	}
	return stdout.Bytes(), nil
}
