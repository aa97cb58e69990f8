// Package softbody builds mass-spring soft bodies from closed triangle meshes
// and simulates them with a fixed time step.
//
// A body is built in two phases. Every mesh vertex becomes a surface
// particle and nearby surface particles are connected with springs. The mesh
// interior is then sampled on a regular grid using ray crossing parity and
// each interior particle is connected to nearby interior and surface
// particles. Neighbor candidates come from an octree and are filtered by
// exact distance. Each spring joins a given pair of particles at most once.
//
// Body.Step advances the simulation under spring forces, gravity and a ground
// plane. Spring forces are computed in parallel into per-spring buffers and
// then added to particles sequentially, so no two goroutines ever write the
// same particle.
package softbody

import (
	"errors"
	"fmt"

	"github.com/soypat/softbody/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrInvalidConfig is returned by Config.Validate and BuildFromMesh
	// for out of range configuration values.
	ErrInvalidConfig = errors.New("invalid soft body configuration")
	// ErrVertexIndex is returned when a mesh triangle references a vertex
	// that does not exist.
	ErrVertexIndex = errors.New("triangle vertex index out of range")
)

// Mesh is an indexed triangle mesh in local coordinates.
type Mesh struct {
	Vertices  []r3.Vec
	Triangles [][3]int
}

// BoxMesh returns the closed mesh of box b with 8 vertices and
// 12 outward wound triangles.
func BoxMesh(b r3.Box) Mesh {
	verts := d3.Box(b).Vertices()
	// Vertex i of Box.Vertices has bit 2 set for Max.X,
	// bit 1 for Max.Y and bit 0 for Max.Z.
	return Mesh{
		Vertices: verts,
		Triangles: [][3]int{
			{0, 1, 3}, {0, 3, 2}, // -X
			{4, 6, 7}, {4, 7, 5}, // +X
			{0, 4, 5}, {0, 5, 1}, // -Y
			{2, 3, 7}, {2, 7, 6}, // +Y
			{0, 2, 6}, {0, 6, 4}, // -Z
			{1, 5, 7}, {1, 7, 3}, // +Z
		},
	}
}

// Bounds returns the bounding box of the mesh vertices.
func (m Mesh) Bounds() r3.Box {
	return r3.Box(d3.Set(m.Vertices).Bounds())
}

// Validate checks every triangle references existing vertices.
func (m Mesh) Validate() error {
	for i, tri := range m.Triangles {
		for _, vi := range tri {
			if vi < 0 || vi >= len(m.Vertices) {
				return fmt.Errorf("triangle %d references vertex %d of %d: %w", i, vi, len(m.Vertices), ErrVertexIndex)
			}
		}
	}
	return nil
}

// ComposeTransform returns the function that scales a point, rotates it by
// q and then translates it by position. It is meant to be passed as the world
// transform of BuildFromMesh.
func ComposeTransform(position, scale r3.Vec, q r3.Rotation) func(r3.Vec) r3.Vec {
	return d3.ComposeTransform(position, scale, q).Transform
}
