package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/chazu/voxcad/pkg/audio"
	"github.com/chazu/voxcad/pkg/command"
	"github.com/chazu/voxcad/pkg/config"
	"github.com/chazu/voxcad/pkg/engine"
)

// routes are the paths reported individually in request metrics.
var routes = []string{"/speech", "/generate-model", "/parse", "/evaluate", "/healthz", "/readyz", "/metrics"}

// Server is the HTTP front end of an App.
type Server struct {
	app    *App
	cfg    config.ServerConfig
	logger *zap.Logger
	ready  atomic.Bool
}

// NewServer returns a Server for app. It reports not ready until SetReady.
func NewServer(app *App, cfg config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{app: app, cfg: cfg, logger: logger.With(zap.String("component", "http"))}
}

// SetReady marks the server as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler returns the routed handler wrapped in the middleware stack.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /speech", s.handleSpeech)
	mux.HandleFunc("POST /generate-model", s.handleGenerate)
	mux.HandleFunc("POST /parse", s.handleParse)
	mux.HandleFunc("POST /evaluate", s.handleEvaluate)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.app.metrics.Handler())

	stack := []Middleware{
		RequestID(),
		RequestLogger(s.logger),
		Metrics(s.app.metrics, routes...),
		Recovery(s.logger),
		CORS(s.cfg.CORSOrigins),
	}
	if s.cfg.RateLimitRPS > 0 {
		stack = append(stack, RateLimiter(ctx, s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))
	}
	return Chain(mux, stack...)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http listen: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.SetReady(false)
	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}

type errorResponse struct {
	Error string `json:"error"`
	Text  string `json:"text,omitempty"`
}

type commandRequest struct {
	Command string `json:"command"`
}

type generateResponse struct {
	GLBBase64 string           `json:"glb_base64"`
	Command   string           `json:"command"`
	Parsed    command.Envelope `json:"parsed"`
}

type fieldResponse struct {
	Value     float64 `json:"value"`
	Matched   bool    `json:"matched"`
	MatchText string  `json:"match,omitempty"`
}

type parseResponse struct {
	Command    string                   `json:"command"`
	Normalized string                   `json:"normalized"`
	Parsed     command.Envelope         `json:"parsed"`
	Fields     map[string]fieldResponse `json:"fields"`
}

type evaluateRequest struct {
	Source string `json:"source"`
}

type evaluateResponse struct {
	GLBBase64 string             `json:"glb_base64,omitempty"`
	Parts     []string           `json:"parts,omitempty"`
	Errors    []engine.EvalError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// handleSpeech transcribes the multipart "audio" upload.
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	file, _, err := r.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "音频文件过大")
			return
		}
		writeError(w, http.StatusBadRequest, "缺少 audio 文件")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "读取音频失败: "+err.Error())
		return
	}

	text, err := s.app.Transcribe(r.Context(), data)
	if err != nil {
		s.logger.Error("speech recognition failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Int("bytes", len(data)),
			zap.Error(err),
		)
		status := http.StatusInternalServerError
		if errors.Is(err, audio.ErrNoAudio) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "语音识别失败: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// readCommand decodes {"command": ...} and trims it. It writes the 400
// response itself and returns false on bad input.
func (s *Server) readCommand(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req commandRequest
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的 JSON 请求体")
		return "", false
	}
	cmd := strings.TrimSpace(req.Command)
	if cmd == "" {
		writeError(w, http.StatusBadRequest, "指令为空")
		return "", false
	}
	return cmd, true
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	cmd, ok := s.readCommand(w, r)
	if !ok {
		return
	}

	model, err := s.app.Generate(r.Context(), cmd)
	if errors.Is(err, command.ErrUnrecognized) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "未识别到有效建模指令", Text: cmd})
		return
	}
	if err != nil {
		s.logger.Error("model generation failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("command", cmd),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "服务器内部错误: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		GLBBase64: base64.StdEncoding.EncodeToString(model.GLB),
		Command:   cmd,
		Parsed:    command.Wrap(model.Spec),
	})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	cmd, ok := s.readCommand(w, r)
	if !ok {
		return
	}
	ex, err := s.app.Parse(cmd)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "未识别到有效建模指令", Text: cmd})
		return
	}

	fields := make(map[string]fieldResponse, len(ex.Fields))
	for _, f := range ex.Fields {
		fields[f.Name] = fieldResponse{Value: f.Value, Matched: f.Match.Matched, MatchText: f.Match.Text}
	}
	writeJSON(w, http.StatusOK, parseResponse{
		Command:    cmd,
		Normalized: ex.Normalized,
		Parsed:     command.Wrap(ex.Spec),
		Fields:     fields,
	})
}

// handleEvaluate runs a part script. Script errors come back as 422 with
// their line numbers.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的 JSON 请求体")
		return
	}

	res, err := s.app.Evaluate(r.Context(), req.Source)
	switch {
	case errors.Is(err, ErrNoParts):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.logger.Error("script evaluation failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	case len(res.Errors) > 0:
		writeJSON(w, http.StatusUnprocessableEntity, evaluateResponse{Errors: res.Errors})
		return
	}
	writeJSON(w, http.StatusOK, evaluateResponse{
		GLBBase64: base64.StdEncoding.EncodeToString(res.GLB),
		Parts:     res.Parts,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.app.Ready(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "reason": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
