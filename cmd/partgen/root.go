package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chazu/voxcad/pkg/config"
	"github.com/chazu/voxcad/pkg/kernel/sdfx"
)

// cli is the state shared by every subcommand.
type cli struct {
	configFile string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "partgen",
		Short:         "Build parametric parts and part scripts into GLB files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configFile)
			if err != nil {
				return err
			}
			level := "warn"
			if c.verbose {
				level = "debug"
			}
			logger, err := config.NewLogger(config.LoggingConfig{Level: level, Format: "console"})
			if err != nil {
				return err
			}
			c.cfg, c.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "path to config file (default: search voxcad.yaml)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log progress to stderr")

	root.AddCommand(
		newListCmd(c),
		newBuildCmd(c),
		newRunCmd(c),
		newParseCmd(c),
	)
	return root
}

// kernel returns a kernel at the configured resolution unless cells
// overrides it.
func (c *cli) kernel(cells int) *sdfx.SdfxKernel {
	if cells <= 0 {
		cells = c.cfg.Kernel.MeshCells
	}
	return sdfx.New(sdfx.WithMeshCells(cells))
}

// outputPath creates dir if needed and returns the path for name.glb in it.
func outputPath(dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".glb"), nil
}
