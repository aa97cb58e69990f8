// Package volume generates interior sample points of closed triangle meshes.
//
// Containment uses the even-odd rule: a ray is cast from the query point in
// a fixed direction and the point is inside if the ray crosses the surface an
// odd number of times. Results are only meaningful for closed,
// non-self-intersecting meshes. Open or non-manifold meshes are classified
// deterministically but without geometric meaning.
//
// Cost is linear in the number of triangles per query point, so sampling a
// grid costs O(voxels × triangles). Sample once at build time.
package volume

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// RayDirection is the fixed direction of containment rays. It is +X tilted by
// small Y and Z components so rays cast from lattice points do not run
// through the diagonals and edges of axis aligned faces, where a crossing
// would be counted once per adjacent triangle.
var RayDirection = r3.Unit(r3.Vec{X: 1, Y: 1.3e-4, Z: 2.9e-4})

const (
	// gridSlack is the relative tolerance that keeps the Max boundary
	// of a bounding box on the grid despite rounding.
	gridSlack = 1e-9
	// surfaceTol is the distance, relative to the lattice spacing, within
	// which a lattice point is considered on the surface.
	surfaceTol = 1e-6
	// MaxGridPoints bounds the number of points of a Grid.
	MaxGridPoints = 1 << 30
)

// Inside reports whether p is inside the surface defined by triangles
// using ray crossing parity.
func Inside(p r3.Vec, triangles []Triangle) bool {
	return Crossings(p, RayDirection, triangles)%2 == 1
}

// Crossings counts the triangles hit by the ray p + t*dir with t >= 0.
func Crossings(p, dir r3.Vec, triangles []Triangle) int {
	hits := 0
	for i := range triangles {
		t, ok := triangles[i].IntersectRay(p, dir)
		if ok && t >= 0 {
			hits++
		}
	}
	return hits
}

// OnSurface reports whether p lies within tol of any of the triangles.
func OnSurface(p r3.Vec, triangles []Triangle, tol float64) bool {
	for i := range triangles {
		if triangles[i].Touches(p, tol) {
			return true
		}
	}
	return false
}

// Grid is a regular lattice of points starting at Min with Spacing
// between neighbors and Div points along each axis.
type Grid struct {
	Min     r3.Vec
	Spacing float64
	Div     [3]int
}

var (
	// ErrSpacing is returned for a lattice spacing that is not a positive
	// finite number.
	ErrSpacing = errors.New("voxel spacing must be positive and finite")
	// ErrGridSize is returned when bounds and spacing define more than
	// MaxGridPoints lattice points.
	ErrGridSize = errors.New("voxel lattice too large")
)

// NewGrid returns the lattice with the given spacing covering bounds.
// Points lie at bounds.Min + i*spacing, for all i that do not exceed
// bounds.Max on each axis.
func NewGrid(bounds r3.Box, spacing float64) (Grid, error) {
	if !(spacing > 0) || math.IsInf(spacing, 1) {
		return Grid{}, ErrSpacing
	}
	size := r3.Sub(bounds.Max, bounds.Min)
	if size.X < 0 || size.Y < 0 || size.Z < 0 {
		return Grid{}, errors.New("bounds minimum exceeds maximum")
	}
	var div [3]int
	total := 1.0
	for axis, length := range [3]float64{size.X, size.Y, size.Z} {
		n := math.Floor(length/spacing*(1+gridSlack)) + 1
		total *= n
		if math.IsInf(n, 0) || math.IsNaN(n) || total > MaxGridPoints {
			return Grid{}, fmt.Errorf("bounds %v with spacing %g: %w", bounds, spacing, ErrGridSize)
		}
		div[axis] = int(n)
	}
	return Grid{
		Min:     bounds.Min,
		Spacing: spacing,
		Div:     div,
	}, nil
}

// Len returns the number of grid points.
func (g Grid) Len() int { return g.Div[0] * g.Div[1] * g.Div[2] }

// At returns the position of the grid point i, j, k.
func (g Grid) At(i, j, k int) r3.Vec {
	return r3.Vec{
		X: g.Min.X + float64(i)*g.Spacing,
		Y: g.Min.Y + float64(j)*g.Spacing,
		Z: g.Min.Z + float64(k)*g.Spacing,
	}
}

// Sample returns the grid points of the lattice with the given spacing over
// bounds that are strictly inside the surface defined by triangles. Points
// lying on the surface are dropped. Points are ordered by X, then Y, then Z
// grid index.
func Sample(triangles []Triangle, bounds r3.Box, spacing float64) ([]r3.Vec, error) {
	g, err := NewGrid(bounds, spacing)
	if err != nil {
		return nil, err
	}
	var interior []r3.Vec
	for i := 0; i < g.Div[0]; i++ {
		interior = g.appendSlab(interior, i, triangles)
	}
	return interior, nil
}

// SampleParallel is Sample with X slabs of the lattice distributed over
// workers goroutines. Output is identical to Sample. workers <= 0 uses
// GOMAXPROCS.
func SampleParallel(triangles []Triangle, bounds r3.Box, spacing float64, workers int) ([]r3.Vec, error) {
	g, err := NewGrid(bounds, spacing)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	slabs := make([][]r3.Vec, g.Div[0])
	// Slab closures cannot fail; the group only bounds concurrency.
	var group errgroup.Group
	group.SetLimit(workers)
	for i := range slabs {
		i := i
		group.Go(func() error {
			slabs[i] = g.appendSlab(nil, i, triangles)
			return nil
		})
	}
	group.Wait()
	var interior []r3.Vec
	for _, slab := range slabs {
		interior = append(interior, slab...)
	}
	return interior, nil
}

// appendSlab appends the interior points with X grid index i to dst.
func (g Grid) appendSlab(dst []r3.Vec, i int, triangles []Triangle) []r3.Vec {
	tol := surfaceTol * g.Spacing
	for j := 0; j < g.Div[1]; j++ {
		for k := 0; k < g.Div[2]; k++ {
			p := g.At(i, j, k)
			if Inside(p, triangles) && !OnSurface(p, triangles, tol) {
				dst = append(dst, p)
			}
		}
	}
	return dst
}
