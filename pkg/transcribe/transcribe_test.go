package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/voxcad/pkg/audio"
	"github.com/chazu/voxcad/pkg/config"
)

// silence returns n samples of 16 kHz s16le silence.
func silence(n int) []byte {
	return make([]byte, 2*n)
}

func TestNewSelectsBackend(t *testing.T) {
	tr, err := New(config.TranscribeConfig{Backend: "none"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "none", tr.Name())

	tr, err = New(config.TranscribeConfig{
		Backend: "whisper",
		Whisper: config.WhisperConfig{Endpoint: "http://localhost:1/v1/audio/transcriptions"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "whisper", tr.Name())
	assert.NoError(t, tr.Close())

	_, err = New(config.TranscribeConfig{Backend: "sphinx"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestNone(t *testing.T) {
	_, err := None{}.Transcribe(context.Background(), silence(10), audio.SampleRate)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		pcm  []byte
		rate int
	}{
		{"empty", nil, audio.SampleRate},
		{"odd length", []byte{1, 2, 3}, audio.SampleRate},
		{"zero rate", silence(4), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, validate(tt.pcm, tt.rate))
		})
	}
	assert.NoError(t, validate(silence(4), audio.SampleRate))
}

func TestWhisperRequiresEndpoint(t *testing.T) {
	_, err := NewWhisper(config.WhisperConfig{}, "zh", nil)
	assert.Error(t, err)
}

func TestWhisperTranscribe(t *testing.T) {
	var got struct {
		model, language, auth, filename string
		wav                             []byte
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		got.model = r.FormValue("model")
		got.language = r.FormValue("language")
		got.auth = r.Header.Get("Authorization")

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		got.filename = hdr.Filename
		got.wav, _ = io.ReadAll(f)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " 生成一个立方体 ", "language": "zh"})
	}))
	defer srv.Close()

	wh, err := NewWhisper(config.WhisperConfig{
		Endpoint: srv.URL,
		Model:    "whisper-1",
		APIKey:   "sk-test",
	}, "zh", nil)
	require.NoError(t, err)

	pcm := silence(1600)
	text, err := wh.Transcribe(context.Background(), pcm, audio.SampleRate)
	require.NoError(t, err)

	assert.Equal(t, "生成一个立方体", text)
	assert.Equal(t, "whisper-1", got.model)
	assert.Equal(t, "zh", got.language)
	assert.Equal(t, "Bearer sk-test", got.auth)
	assert.Equal(t, "speech.wav", got.filename)
	assert.True(t, audio.IsWAV(got.wav))

	back, err := audio.DecodeWAV(got.wav)
	require.NoError(t, err)
	assert.Equal(t, pcm, back)
}

func TestWhisperErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	wh, err := NewWhisper(config.WhisperConfig{Endpoint: srv.URL}, "", nil)
	require.NoError(t, err)

	_, err = wh.Transcribe(context.Background(), silence(160), audio.SampleRate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestWhisperBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	wh, err := NewWhisper(config.WhisperConfig{Endpoint: srv.URL}, "", nil)
	require.NoError(t, err)
	_, err = wh.Transcribe(context.Background(), silence(160), audio.SampleRate)
	assert.Error(t, err)
}

func TestWhisperHonorsContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	wh, err := NewWhisper(config.WhisperConfig{Endpoint: srv.URL}, "", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = wh.Transcribe(ctx, silence(160), audio.SampleRate)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
