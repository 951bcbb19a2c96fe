package tessellate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/chazu/voxcad/pkg/engine"
	"github.com/chazu/voxcad/pkg/kernel"
	"github.com/chazu/voxcad/pkg/kernel/sdfx"
	"github.com/chazu/voxcad/pkg/tessellate"
)

// newKernel returns a coarse sdfx kernel for testing.
func newKernel() kernel.Kernel {
	return sdfx.New(sdfx.WithMeshCells(24))
}

func mustBox(t *testing.T, k kernel.Kernel, x, y, z float64) kernel.Solid {
	t.Helper()
	s, err := k.Box(x, y, z)
	if err != nil {
		t.Fatalf("Box failed: %v", err)
	}
	return s
}

func TestSingleBox(t *testing.T) {
	k := newKernel()
	d := &engine.Design{Parts: []engine.Part{{Name: "shelf", Solid: mustBox(t, k, 600, 300, 18)}}}

	meshes, err := tessellate.Tessellate(context.Background(), d, k)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(meshes))
	}

	m := meshes[0]
	if m.IsEmpty() {
		t.Fatal("mesh should not be empty")
	}
	if m.Name != "shelf" {
		t.Errorf("expected Name %q, got %q", "shelf", m.Name)
	}
}

func TestOrderPreserved(t *testing.T) {
	k := newKernel()
	names := []string{"a", "b", "c", "d", "e"}
	d := &engine.Design{}
	for i, n := range names {
		size := float64(10 + i*5)
		d.Parts = append(d.Parts, engine.Part{Name: n, Solid: mustBox(t, k, size, size, size)})
	}

	meshes, err := tessellate.Tessellate(context.Background(), d, k, tessellate.WithJobs(2))
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(meshes) != len(names) {
		t.Fatalf("expected %d meshes, got %d", len(names), len(meshes))
	}
	for i, m := range meshes {
		if m.Name != names[i] {
			t.Errorf("mesh %d name = %q, want %q", i, m.Name, names[i])
		}
	}
	// Larger boxes come later; their meshes span further.
	_, firstMax := meshes[0].Bounds()
	_, lastMax := meshes[len(meshes)-1].Bounds()
	if lastMax[0] <= firstMax[0] {
		t.Errorf("last mesh max x %f should exceed first %f", lastMax[0], firstMax[0])
	}
}

func TestNilAndEmptyDesign(t *testing.T) {
	k := newKernel()
	for _, d := range []*engine.Design{nil, {}} {
		meshes, err := tessellate.Tessellate(context.Background(), d, k)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(meshes) != 0 {
			t.Errorf("expected no meshes, got %d", len(meshes))
		}
	}
}

// failKernel wraps a kernel and fails ToMesh for every solid.
type failKernel struct {
	kernel.Kernel
}

func (failKernel) ToMesh(kernel.Solid) (*kernel.Mesh, error) {
	return nil, kernel.ErrEmptyMesh
}

func TestErrorNamesPart(t *testing.T) {
	k := newKernel()
	d := &engine.Design{Parts: []engine.Part{{Name: "ghost", Solid: mustBox(t, k, 1, 1, 1)}}}

	_, err := tessellate.Tessellate(context.Background(), d, failKernel{k})
	if !errors.Is(err, kernel.ErrEmptyMesh) {
		t.Fatalf("err = %v, want ErrEmptyMesh", err)
	}
	if want := `tessellate: part "ghost": kernel: mesh is empty`; err.Error() != want {
		t.Errorf("err = %q, want %q", err.Error(), want)
	}
}

func TestMeshNilSolid(t *testing.T) {
	if _, err := tessellate.Mesh(newKernel(), "x", nil); err == nil {
		t.Fatal("expected error for nil solid")
	}
}

func TestCancelledContext(t *testing.T) {
	k := newKernel()
	d := &engine.Design{Parts: []engine.Part{{Name: "a", Solid: mustBox(t, k, 1, 1, 1)}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tessellate.Tessellate(ctx, d, k); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
