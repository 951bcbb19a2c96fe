package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chazu/voxcad/pkg/audio"
	"github.com/chazu/voxcad/pkg/config"
)

// maxErrorBody bounds how much of a failed response ends up in an error.
const maxErrorBody = 2048

// Whisper uploads audio to an OpenAI-compatible transcription endpoint
// (whisper.cpp server, faster-whisper-server, the OpenAI API).
type Whisper struct {
	endpoint string
	model    string
	apiKey   string
	language string
	client   *http.Client
	logger   *zap.Logger
}

// NewWhisper returns a Whisper client for cfg. language is an ISO-639-1 hint
// and may be empty.
func NewWhisper(cfg config.WhisperConfig, language string, logger *zap.Logger) (*Whisper, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("transcribe: whisper endpoint is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Whisper{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		language: language,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

func (w *Whisper) Name() string { return "whisper" }
func (w *Whisper) Close() error { return nil }

// Transcribe wraps pcm in a WAV container and posts it as the "file" field.
func (w *Whisper) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	if err := validate(pcm, sampleRate); err != nil {
		return "", err
	}
	wav, err := audio.WAV(pcm, sampleRate)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "speech.wav")
	if err != nil {
		return "", fmt.Errorf("transcribe: creating form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("transcribe: writing audio: %w", err)
	}
	if w.model != "" {
		_ = writer.WriteField("model", w.model)
	}
	if w.language != "" {
		_ = writer.WriteField("language", w.language)
	}
	_ = writer.WriteField("response_format", "json")
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("transcribe: creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	start := time.Now()
	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("transcribe: whisper failed (status %d): %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("transcribe: decoding whisper response: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	w.logger.Debug("whisper transcription complete",
		zap.Int("text_length", len(text)),
		zap.String("language", result.Language),
		zap.Duration("took", time.Since(start)),
	)
	return text, nil
}
