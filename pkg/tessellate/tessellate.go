// Package tessellate turns the solids of a design into triangle meshes
// using a geometry kernel. One mesh is produced per exported part.
package tessellate

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/voxcad/pkg/engine"
	"github.com/chazu/voxcad/pkg/kernel"
)

type options struct {
	jobs int
}

// Option configures Tessellate.
type Option func(*options)

// WithJobs bounds how many parts are meshed at once. Values below 1 select
// runtime.NumCPU().
func WithJobs(n int) Option {
	return func(o *options) {
		o.jobs = n
	}
}

// Mesh meshes a single solid and names the result.
func Mesh(k kernel.Kernel, name string, s kernel.Solid) (*kernel.Mesh, error) {
	if s == nil {
		return nil, fmt.Errorf("tessellate: part %q has no solid", name)
	}
	m, err := k.ToMesh(s)
	if err != nil {
		return nil, fmt.Errorf("tessellate: part %q: %w", name, err)
	}
	m.Name = name
	return m, nil
}

// Tessellate meshes every part of d concurrently. Meshes are returned in
// export order. The first failure cancels the remaining work. The design is
// never mutated.
func Tessellate(ctx context.Context, d *engine.Design, k kernel.Kernel, opts ...Option) ([]*kernel.Mesh, error) {
	if d == nil || len(d.Parts) == 0 {
		return nil, nil
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.jobs < 1 {
		o.jobs = runtime.NumCPU()
	}

	meshes := make([]*kernel.Mesh, len(d.Parts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.jobs)
	for i, p := range d.Parts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := Mesh(k, p.Name, p.Solid)
			if err != nil {
				return err
			}
			meshes[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return meshes, nil
}
