// voxcad serves a browser 3D viewer: it turns spoken or typed Chinese
// modelling commands into parametric solids and returns them as GLB.
//
// Usage:
//
//	voxcad [flags]
//	voxcad --config /path/to/voxcad.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/chazu/voxcad/pkg/config"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (default: search voxcad.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("voxcad %s\n", version)
		return
	}

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "voxcad: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("voxcad starting",
		zap.String("version", version),
		zap.String("transcribe_backend", cfg.Transcribe.Backend),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Int("mesh_cells", cfg.Kernel.MeshCells),
	)

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}()

	srv := NewServer(app, cfg.Server, logger)
	srv.SetReady(true)
	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	logger.Info("voxcad stopped")
	return nil
}
