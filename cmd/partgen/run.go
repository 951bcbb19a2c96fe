package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chazu/voxcad/pkg/command"
	"github.com/chazu/voxcad/pkg/engine"
	"github.com/chazu/voxcad/pkg/tessellate"
)

func newRunCmd(c *cli) *cobra.Command {
	var (
		outDir   string
		combined bool
		cells    int
		jobs     int
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run SCRIPT",
		Short: "Evaluate a part script and write each exported part as GLB",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var parserOpts []command.Option
			if c.cfg.Parser.StrictRadius {
				parserOpts = append(parserOpts, command.WithStrictRadius())
			}
			k := c.kernel(cells)
			eng := engine.NewEngine(k,
				engine.WithParser(command.NewParser(parserOpts...)),
				engine.WithTimeout(timeout),
			)

			design, evalErrs, err := eng.Evaluate(string(source))
			if err != nil {
				return err
			}
			if len(evalErrs) > 0 {
				for _, e := range evalErrs {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s:%s\n", args[0], e.Error())
				}
				return fmt.Errorf("%d error(s) in %s", len(evalErrs), args[0])
			}
			if len(design.Parts) == 0 {
				return errors.New("script exported no parts")
			}

			start := time.Now()
			meshes, err := tessellate.Tessellate(cmd.Context(), design, k, tessellate.WithJobs(jobs))
			if err != nil {
				return err
			}
			c.logger.Debug("script tessellated",
				zap.String("script", args[0]),
				zap.Strings("parts", design.Names()),
				zap.Duration("took", time.Since(start)),
			)

			if combined {
				base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
				path, err := outputPath(outDir, base)
				if err != nil {
					return err
				}
				if err := writeGLB(path, meshes...); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			}
			for _, m := range meshes {
				path, err := outputPath(outDir, m.Name)
				if err != nil {
					return err
				}
				if err := writeGLB(path, m); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().BoolVar(&combined, "combined", false, "write all parts into one <script>.glb")
	cmd.Flags().IntVar(&cells, "cells", 0, "mesh cells along the longest axis (default from config)")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "parts meshed in parallel (default: one per CPU)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort evaluation after this long (default: engine default)")
	return cmd
}
