// Package glb writes kernel meshes as binary glTF 2.0 (GLB), the format the
// browser viewer loads. Each mesh becomes one named node in the default
// scene with its own colored material.
package glb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/chazu/voxcad/pkg/kernel"
)

// ErrEmptyMesh is returned when there is nothing to export.
var ErrEmptyMesh = errors.New("glb: mesh is empty")

// ContentType is the media type of GLB payloads.
const ContentType = "model/gltf-binary"

// palette assigns distinct colors to parts in export order.
var palette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// Encode returns the GLB encoding of meshes.
func Encode(meshes ...*kernel.Mesh) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, meshes...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes meshes as GLB to w. At least one mesh is required and every
// mesh must contain triangles.
func Write(w io.Writer, meshes ...*kernel.Mesh) error {
	doc, err := Document(meshes...)
	if err != nil {
		return err
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("glb: encode: %w", err)
	}
	return nil
}

// Document builds the glTF document for meshes without encoding it.
func Document(meshes ...*kernel.Mesh) (*gltf.Document, error) {
	if len(meshes) == 0 {
		return nil, ErrEmptyMesh
	}
	doc := gltf.NewDocument()
	doc.Asset.Generator = "voxcad"

	for i, m := range meshes {
		if m == nil || m.IsEmpty() {
			return nil, fmt.Errorf("glb: mesh %d: %w", i, ErrEmptyMesh)
		}
		if len(m.Normals) != len(m.Vertices) {
			return nil, fmt.Errorf("glb: mesh %d: %d normals for %d vertex floats", i, len(m.Normals), len(m.Vertices))
		}
		if max := maxIndex(m.Indices); int(max) >= m.VertexCount() {
			return nil, fmt.Errorf("glb: mesh %d: index %d out of range for %d vertices", i, max, m.VertexCount())
		}

		name := m.Name
		if name == "" {
			name = "part" + strconv.Itoa(i)
		}

		doc.Materials = append(doc.Materials, &gltf.Material{
			Name:        name,
			DoubleSided: true,
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				BaseColorFactor: colorFactor(palette[i%len(palette)]),
			},
		})
		material := len(doc.Materials) - 1

		position := modeler.WritePosition(doc, triples(m.Vertices))
		normal := modeler.WriteNormal(doc, triples(m.Normals))
		indices := modeler.WriteIndices(doc, m.Indices)

		doc.Meshes = append(doc.Meshes, &gltf.Mesh{
			Name: name,
			Primitives: []*gltf.Primitive{{
				Indices: gltf.Index(indices),
				Attributes: map[string]int{
					gltf.POSITION: position,
					gltf.NORMAL:   normal,
				},
				Material: gltf.Index(material),
			}},
		})
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name: name,
			Mesh: gltf.Index(len(doc.Meshes) - 1),
		})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, len(doc.Nodes)-1)
	}
	return doc, nil
}

func triples(flat []float32) [][3]float32 {
	out := make([][3]float32, len(flat)/3)
	for i := range out {
		out[i] = [3]float32{flat[3*i], flat[3*i+1], flat[3*i+2]}
	}
	return out
}

func maxIndex(idx []uint32) uint32 {
	var max uint32
	for _, v := range idx {
		if v > max {
			max = v
		}
	}
	return max
}

// colorFactor converts "#RRGGBB" to an opaque linear RGBA factor.
func colorFactor(hex string) *[4]float64 {
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return &[4]float64{0.8, 0.8, 0.8, 1}
	}
	return &[4]float64{
		float64(v>>16&0xff) / 255,
		float64(v>>8&0xff) / 255,
		float64(v&0xff) / 255,
		1,
	}
}
