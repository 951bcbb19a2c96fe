package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/qmuntal/gltf"

	"github.com/chazu/voxcad/pkg/build"
	"github.com/chazu/voxcad/pkg/cache"
	"github.com/chazu/voxcad/pkg/command"
	"github.com/chazu/voxcad/pkg/config"
	"github.com/chazu/voxcad/pkg/transcribe"
)

// testConfig is a small, fast configuration with no external services.
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            5000,
			CORSOrigins:     []string{"*"},
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: time.Second,
		},
		Kernel:     config.KernelConfig{MeshCells: 16},
		Build:      config.BuildConfig{MaxConcurrent: 1},
		Transcribe: config.TranscribeConfig{Backend: "none"},
		Audio:      config.AudioConfig{FFmpegPath: ""},
		Cache:      config.CacheConfig{Backend: "memory", MaxEntries: 8},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

// decodeGLB parses a GLB payload and fails the test if it is malformed.
func decodeGLB(t *testing.T, data []byte) *gltf.Document {
	t.Helper()
	if len(data) < 12 || string(data[:4]) != "glTF" {
		t.Fatalf("payload is not GLB (%d bytes)", len(data))
	}
	var doc gltf.Document
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		t.Fatalf("decode GLB: %v", err)
	}
	return &doc
}

// stubTranscriber returns a fixed transcript.
type stubTranscriber struct {
	text    string
	err     error
	gotRate int
}

func (s *stubTranscriber) Transcribe(_ context.Context, pcm []byte, rate int) (string, error) {
	s.gotRate = rate
	return s.text, s.err
}
func (s *stubTranscriber) Name() string { return "stub" }
func (s *stubTranscriber) Close() error { return nil }

func TestE2EGenerateEachKind(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		command string
		kind    command.Kind
		mesh    string
	}{
		{"生成一个20齿模数1.5的齿轮", command.KindGear, "gear"},
		{"边长10的立方体", command.KindCube, "cube"},
		{"半径5高20的圆柱", command.KindCylinder, "cylinder"},
	}
	for _, tt := range tests {
		t.Run(tt.mesh, func(t *testing.T) {
			model, err := app.Generate(context.Background(), tt.command)
			if err != nil {
				t.Fatalf("Generate(%q): %v", tt.command, err)
			}
			if model.Spec.Kind() != tt.kind {
				t.Errorf("kind = %s, want %s", model.Spec.Kind(), tt.kind)
			}
			doc := decodeGLB(t, model.GLB)
			if len(doc.Meshes) != 1 || doc.Meshes[0].Name != tt.mesh {
				t.Errorf("meshes = %d, want one named %q", len(doc.Meshes), tt.mesh)
			}
		})
	}
}

func TestE2EGenerateUsesCache(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	first, err := app.Generate(ctx, "边长10的立方体")
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached {
		t.Error("first build should not come from the cache")
	}

	// A different phrasing of the same cube shares the entry.
	second, err := app.Generate(ctx, "方块 10mm")
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached {
		t.Error("second build should come from the cache")
	}
	if !bytes.Equal(first.GLB, second.GLB) {
		t.Error("cached GLB differs from the built one")
	}
}

func TestE2EGenerateUnrecognized(t *testing.T) {
	app := newTestApp(t)
	_, err := app.Generate(context.Background(), "你好")
	if !errors.Is(err, command.ErrUnrecognized) {
		t.Fatalf("err = %v, want ErrUnrecognized", err)
	}
}

func TestE2EGenerateInfeasibleGear(t *testing.T) {
	app := newTestApp(t)
	// Two teeth cannot form a gear.
	_, err := app.Generate(context.Background(), "2齿齿轮")
	var be *build.Error
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want *build.Error", err)
	}
	if be.Field != "teeth" {
		t.Errorf("field = %q, want teeth", be.Field)
	}
}

func TestE2EGenerateFailureIsNotCached(t *testing.T) {
	app := newTestApp(t)
	_, _ = app.Generate(context.Background(), "2齿齿轮")

	spec, err := command.Parse("2齿齿轮")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := app.cache.Get(context.Background(), cache.Key(spec, app.meshCells)); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("failed build was cached: %v", err)
	}
}

func TestE2EGenerateWaitsForBuildSlot(t *testing.T) {
	app := newTestApp(t)
	release, err := app.acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	// The only slot is taken, so a new build blocks until its context ends.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = app.Generate(ctx, "边长12的立方体")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestE2EParseReportsDefaults(t *testing.T) {
	app := newTestApp(t)
	ex, err := app.Parse("齿数30的齿轮")
	if err != nil {
		t.Fatal(err)
	}
	teeth, _ := ex.Field("teeth")
	if teeth.Defaulted() || teeth.Value != 30 {
		t.Errorf("teeth = %+v, want matched 30", teeth)
	}
	module, _ := ex.Field("module")
	if !module.Defaulted() {
		t.Errorf("module should be defaulted, got %+v", module)
	}
}

func TestE2ETranscribe(t *testing.T) {
	app := newTestApp(t)
	stub := &stubTranscriber{text: "直径10的圆柱"}
	app.transcriber = stub

	wav := makeTestWAV(t)
	text, err := app.Transcribe(context.Background(), wav)
	if err != nil {
		t.Fatal(err)
	}
	if text != "直径10的圆柱" {
		t.Errorf("text = %q", text)
	}
	if stub.gotRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", stub.gotRate)
	}
}

func TestE2ETranscribeUnavailable(t *testing.T) {
	app := newTestApp(t)
	_, err := app.Transcribe(context.Background(), makeTestWAV(t))
	if !errors.Is(err, transcribe.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestNewAppFallsBackWithoutVosk(t *testing.T) {
	cfg := testConfig()
	cfg.Transcribe = config.TranscribeConfig{Backend: "vosk", Vosk: config.VoskConfig{ModelPath: t.TempDir()}}
	app, err := NewApp(context.Background(), cfg, nil)
	if err != nil {
		// With -tags vosk an empty model directory is a real error.
		t.Skipf("vosk compiled in: %v", err)
	}
	defer app.Close()
	if app.transcriber.Name() != "none" {
		t.Errorf("transcriber = %s, want none", app.transcriber.Name())
	}
}

func TestE2EEvaluateExamples(t *testing.T) {
	app := newTestApp(t)

	paths, err := filepath.Glob("examples/*.lisp")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no example scripts found")
	}
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			source, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			res, err := app.Evaluate(context.Background(), string(source))
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			for _, e := range res.Errors {
				t.Errorf("eval error (line %d): %s", e.Line, e.Message)
			}
			doc := decodeGLB(t, res.GLB)
			if len(doc.Meshes) != len(res.Parts) {
				t.Errorf("%d meshes for %d parts", len(doc.Meshes), len(res.Parts))
			}
		})
	}
}

func TestE2EEvaluateMultipleParts(t *testing.T) {
	app := newTestApp(t)
	res, err := app.Evaluate(context.Background(), `
(export "base" (cube 20))
(export "post" (translate (cylinder :radius 2 :height 15) 0 0 10))
`)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(res.Parts, ","); got != "base,post" {
		t.Errorf("parts = %s, want base,post", got)
	}
	doc := decodeGLB(t, res.GLB)
	if len(doc.Meshes) != 2 || doc.Meshes[0].Name != "base" || doc.Meshes[1].Name != "post" {
		t.Errorf("unexpected meshes in GLB")
	}
	// Each part gets its own material.
	if len(doc.Materials) != 2 {
		t.Errorf("materials = %d, want 2", len(doc.Materials))
	}
}

func TestE2EEvaluateSyntaxError(t *testing.T) {
	app := newTestApp(t)
	res, err := app.Evaluate(context.Background(), "(cube 1)\n(export \"a\" (cube 2)")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) == 0 {
		t.Fatal("expected an eval error for unmatched parens")
	}
	if res.Errors[0].Message == "" {
		t.Error("eval error has an empty message")
	}
	if res.GLB != nil {
		t.Error("no GLB expected on a syntax error")
	}
}

func TestE2EEvaluateNothingExported(t *testing.T) {
	app := newTestApp(t)
	for _, source := range []string{"", "   \n\t", ";; only a comment\n", "(+ 1 2)"} {
		_, err := app.Evaluate(context.Background(), source)
		if !errors.Is(err, ErrNoParts) {
			t.Errorf("Evaluate(%q) err = %v, want ErrNoParts", source, err)
		}
	}
}

func TestE2EEvaluateRapidSuccession(t *testing.T) {
	app := newTestApp(t)
	for i := 0; i < 5; i++ {
		res, err := app.Evaluate(context.Background(), `(export "c" (cube 4))`)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if len(res.Parts) != 1 {
			t.Fatalf("iteration %d: parts = %v", i, res.Parts)
		}
	}
}

func TestE2EEvaluateScriptErrors(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name   string
		source string
	}{
		{"undefined solid", `(export "a" missing-part)`},
		{"negative dimension", `(export "a" (cube -5))`},
		{"zero dimension", `(export "a" (cylinder :radius 0 :height 10))`},
		{"unrecognized command", `(export "a" (command "你好"))`},
		{"duplicate export", `(export "a" (cube 1)) (export "a" (cube 2))`},
		{"export without solid", `(export "a" 42)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := app.Evaluate(context.Background(), tt.source)
			if err != nil {
				t.Fatalf("unexpected fatal error: %v", err)
			}
			if len(res.Errors) == 0 {
				t.Fatalf("expected eval errors, got parts %v", res.Parts)
			}
		})
	}
}

func TestE2EEvaluateArithmetic(t *testing.T) {
	app := newTestApp(t)
	res, err := app.Evaluate(context.Background(), `
(def side (* 2 (+ 3 4.5)))
(def half (/ side 2))
(export "block" (cube side))
(export "rod" (cylinder :radius (/ half 4) :height half))
`)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) > 0 {
		t.Fatalf("eval errors: %v", res.Errors)
	}
	if len(res.Parts) != 2 {
		t.Errorf("parts = %v", res.Parts)
	}
}

func TestE2EEvaluateManyParts(t *testing.T) {
	app := newTestApp(t)
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString(`(export "p` + string(rune('0'+i)) + `" (translate (cube 2) ` + string(rune('0'+i)) + ` 0 0))` + "\n")
	}
	res, err := app.Evaluate(context.Background(), b.String())
	if err != nil {
		t.Fatal(err)
	}
	doc := decodeGLB(t, res.GLB)
	if len(doc.Meshes) != 10 || len(doc.Materials) != 10 {
		t.Errorf("meshes = %d, materials = %d, want 10 each", len(doc.Meshes), len(doc.Materials))
	}
}
