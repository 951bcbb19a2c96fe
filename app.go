package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/chazu/voxcad/pkg/audio"
	"github.com/chazu/voxcad/pkg/build"
	"github.com/chazu/voxcad/pkg/cache"
	"github.com/chazu/voxcad/pkg/command"
	"github.com/chazu/voxcad/pkg/config"
	"github.com/chazu/voxcad/pkg/engine"
	"github.com/chazu/voxcad/pkg/glb"
	"github.com/chazu/voxcad/pkg/kernel"
	"github.com/chazu/voxcad/pkg/kernel/sdfx"
	"github.com/chazu/voxcad/pkg/metrics"
	"github.com/chazu/voxcad/pkg/tessellate"
	"github.com/chazu/voxcad/pkg/transcribe"
)

// ErrNoParts is returned when a script evaluates cleanly but exports nothing.
var ErrNoParts = errors.New("script exported no parts")

// App holds the process-wide state: the parser, the geometry kernel, the
// speech backend and the model cache. It is built once at startup.
type App struct {
	parser      *command.Parser
	kernel      kernel.Kernel
	meshCells   int
	converter   *audio.Converter
	transcriber transcribe.Transcriber
	cache       cache.Cache
	metrics     *metrics.Collector
	// builds bounds concurrent build and export pipelines.
	builds *semaphore.Weighted
	logger *zap.Logger
}

// Model is a generated model and the spec it was built from.
type Model struct {
	GLB    []byte
	Spec   command.Spec
	Cached bool
}

// EvalResult is the outcome of running a part script.
type EvalResult struct {
	GLB    []byte
	Parts  []string
	Errors []engine.EvalError
}

// NewApp wires the components described by cfg.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var parserOpts []command.Option
	if cfg.Parser.StrictRadius {
		parserOpts = append(parserOpts, command.WithStrictRadius())
	}

	tr, err := transcribe.New(cfg.Transcribe, logger)
	if err != nil {
		if !errors.Is(err, transcribe.ErrUnavailable) {
			return nil, err
		}
		// Text commands still work without speech input.
		logger.Warn("speech input disabled", zap.Error(err))
		tr = transcribe.None{}
	}

	c, err := cache.New(ctx, cfg.Cache, logger)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}

	return &App{
		parser:      command.NewParser(parserOpts...),
		kernel:      sdfx.New(sdfx.WithMeshCells(cfg.Kernel.MeshCells)),
		meshCells:   cfg.Kernel.MeshCells,
		converter:   audio.NewConverter(audio.WithFFmpeg(cfg.Audio.FFmpegPath), audio.WithLogger(logger)),
		transcriber: tr,
		cache:       c,
		metrics:     metrics.NewCollector(),
		builds:      semaphore.NewWeighted(cfg.Build.MaxConcurrent),
		logger:      logger.With(zap.String("component", "app")),
	}, nil
}

// Close releases the speech backend and the cache.
func (a *App) Close() error {
	return errors.Join(a.transcriber.Close(), a.cache.Close())
}

// Ready reports whether external dependencies are reachable.
func (a *App) Ready(ctx context.Context) error {
	if p, ok := a.cache.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return nil
}

// Transcribe converts an uploaded recording to text.
func (a *App) Transcribe(ctx context.Context, data []byte) (string, error) {
	pcm, err := a.converter.PCM16(ctx, data)
	if err != nil {
		return "", err
	}
	start := time.Now()
	text, err := a.transcriber.Transcribe(ctx, pcm, audio.SampleRate)
	a.metrics.RecordTranscription(a.transcriber.Name(), time.Since(start), err)
	if err != nil {
		return "", err
	}
	a.logger.Info("transcribed speech",
		zap.String("backend", a.transcriber.Name()),
		zap.Int("pcm_bytes", len(pcm)),
		zap.String("text", text),
	)
	return text, nil
}

// Parse classifies and extracts a command without building it.
func (a *App) Parse(text string) (*command.Extraction, error) {
	ex, err := a.parser.Extract(text)
	if err != nil {
		a.metrics.RecordCommand(command.KindUnknown.String())
		return nil, err
	}
	a.metrics.RecordCommand(ex.Kind.String())
	return ex, nil
}

// Generate parses text and returns the model it describes as GLB.
func (a *App) Generate(ctx context.Context, text string) (*Model, error) {
	ex, err := a.Parse(text)
	if err != nil {
		return nil, err
	}
	spec := ex.Spec

	key := cache.Key(spec, a.meshCells)
	if data, err := a.cache.Get(ctx, key); err == nil {
		a.metrics.RecordCacheHit()
		return &Model{GLB: data, Spec: spec, Cached: true}, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		a.logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
	}
	a.metrics.RecordCacheMiss()

	release, err := a.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	data, err := a.buildGLB(spec)
	a.metrics.RecordBuild(spec.Kind().String(), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	a.logger.Info("model generated",
		zap.String("kind", spec.Kind().String()),
		zap.Int("glb_bytes", len(data)),
		zap.Duration("took", time.Since(start)),
	)

	if err := a.cache.Set(ctx, key, data); err != nil {
		a.logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
	}
	return &Model{GLB: data, Spec: spec}, nil
}

func (a *App) buildGLB(spec command.Spec) ([]byte, error) {
	solid, err := build.Build(a.kernel, spec)
	if err != nil {
		return nil, err
	}
	m, err := tessellate.Mesh(a.kernel, spec.Kind().String(), solid)
	if err != nil {
		return nil, err
	}
	return glb.Encode(m)
}

// Evaluate runs a part script and encodes every exported part into one GLB.
// Script errors are returned in the result, not as an error.
// When evaluation times out the build slot is released, but the script's
// interpreter goroutine keeps running until it returns on its own.
func (a *App) Evaluate(ctx context.Context, source string) (*EvalResult, error) {
	release, err := a.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	// A fresh engine per request keeps one client's script from superseding
	// another's.
	eng := engine.NewEngine(a.kernel, engine.WithParser(a.parser))
	design, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		return nil, err
	}
	if len(evalErrs) > 0 {
		return &EvalResult{Errors: evalErrs}, nil
	}
	if len(design.Parts) == 0 {
		return nil, ErrNoParts
	}

	start := time.Now()
	data, err := a.encodeDesign(ctx, design)
	a.metrics.RecordBuild("script", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &EvalResult{GLB: data, Parts: design.Names()}, nil
}

func (a *App) encodeDesign(ctx context.Context, d *engine.Design) ([]byte, error) {
	meshes, err := tessellate.Tessellate(ctx, d, a.kernel)
	if err != nil {
		return nil, err
	}
	return glb.Encode(meshes...)
}

// acquire waits for a build slot.
func (a *App) acquire(ctx context.Context) (func(), error) {
	a.metrics.BuildWaiting(1)
	err := a.builds.Acquire(ctx, 1)
	a.metrics.BuildWaiting(-1)
	if err != nil {
		return nil, fmt.Errorf("waiting for build slot: %w", err)
	}
	return func() { a.builds.Release(1) }, nil
}
