package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/voxcad/pkg/glb"
	"github.com/chazu/voxcad/pkg/kernel"
	"github.com/chazu/voxcad/pkg/parts"
	"github.com/chazu/voxcad/pkg/tessellate"
)

func newBuildCmd(c *cli) *cobra.Command {
	var (
		outDir string
		cells  int
		jobs   int
		set    map[string]string
	)
	cmd := &cobra.Command{
		Use:   "build PART...",
		Short: "Build built-in parts into <out>/<part>.glb",
		Long: "Build one or more built-in parts. --set overrides a parameter on every\n" +
			"listed part, e.g. --set bolts=8 --set outer-diameter=120.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobs < 1 {
				return fmt.Errorf("--jobs must be at least 1, got %d", jobs)
			}
			params := make(map[string]float64, len(set))
			for k, v := range set {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return fmt.Errorf("--set %s: %w", k, err)
				}
				params[k] = f
			}

			// Resolve every part before building any of them.
			todo := make([]parts.Part, 0, len(args))
			for _, name := range args {
				p, err := parts.New(name)
				if err != nil {
					return err
				}
				if err := parts.Apply(p, params); err != nil {
					return err
				}
				todo = append(todo, p)
			}

			k := c.kernel(cells)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(jobs)
			paths := make([]string, len(todo))
			for i, p := range todo {
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					start := time.Now()
					solid, err := p.Build(k)
					if err != nil {
						return fmt.Errorf("%s: %w", p.Name(), err)
					}
					m, err := tessellate.Mesh(k, p.Name(), solid)
					if err != nil {
						return err
					}
					path, err := outputPath(outDir, p.Name())
					if err != nil {
						return err
					}
					if err := writeGLB(path, m); err != nil {
						return err
					}
					c.logger.Debug("part built",
						zap.String("part", p.Name()),
						zap.Int("triangles", m.TriangleCount()),
						zap.Duration("took", time.Since(start)),
					)
					paths[i] = path
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			for _, path := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().IntVar(&cells, "cells", 0, "mesh cells along the longest axis (default from config)")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "parts built in parallel")
	cmd.Flags().StringToStringVar(&set, "set", nil, "override a part parameter (name=value)")
	return cmd
}

func writeGLB(path string, meshes ...*kernel.Mesh) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return glb.Write(f, meshes...)
}
