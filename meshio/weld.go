package meshio

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/softbody"
	"github.com/soypat/softbody/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Weld merges the vertices of a triangle soup that fall on the same cell of a
// grid with spacing tol and returns the indexed mesh. A tol of zero is
// inferred as 1/256 of the shortest triangle side. Triangles that collapse to
// a line or a point after merging are dropped.
func Weld(model []Triangle, tol float64) (softbody.Mesh, error) {
	if len(model) == 0 {
		return softbody.Mesh{}, nil
	}
	if tol < 0 || math.IsNaN(tol) {
		return softbody.Mesh{}, fmt.Errorf("invalid vertex tolerance %g", tol)
	}
	bb := d3.Box{Min: d3.Elem(math.MaxFloat64), Max: d3.Elem(-math.MaxFloat64)}
	minDist2 := math.MaxFloat64
	maxDist2 := 0.0
	for i := range model {
		for j, vert := range model[i] {
			if !d3.IsFinite(vert) {
				return softbody.Mesh{}, fmt.Errorf("triangle %d has non finite vertex %v", i, vert)
			}
			bb = bb.Include(vert)
			side2 := d3.Dist2(vert, model[i][(j+1)%3])
			if side2 > 0 {
				minDist2 = math.Min(minDist2, side2)
			}
			maxDist2 = math.Max(maxDist2, side2)
		}
	}
	if maxDist2 == 0 {
		return softbody.Mesh{}, errors.New("all triangles are degenerate")
	}
	suggested := math.Sqrt(minDist2) / 256
	if tol > math.Sqrt(maxDist2)/2 {
		return softbody.Mesh{}, fmt.Errorf("vertex tolerance is too large to weld mesh, suggested tolerance: %g", suggested)
	}
	if tol == 0 {
		tol = suggested
	}
	ri := 1 / tol
	if d3.Max(d3.MaxElem(r3.Scale(-1, bb.Min), bb.Max))*ri > math.MaxInt64/2 {
		return softbody.Mesh{}, errors.New("tolerance too small, overflowed int64")
	}

	var m softbody.Mesh
	// Vertex index cache keyed by position in tolerance units.
	cache := make(map[[3]int64]int)
	for _, tri := range model {
		var idx [3]int
		for j, vert := range tri {
			v := r3.Scale(ri, vert)
			key := [3]int64{int64(math.Round(v.X)), int64(math.Round(v.Y)), int64(math.Round(v.Z))}
			vi, ok := cache[key]
			if !ok {
				vi = len(m.Vertices)
				cache[key] = vi
				m.Vertices = append(m.Vertices, vert)
			}
			idx[j] = vi
		}
		if idx[0] == idx[1] || idx[1] == idx[2] || idx[2] == idx[0] {
			continue
		}
		m.Triangles = append(m.Triangles, idx)
	}
	return m, nil
}

// Soup returns the triangles of an indexed mesh as a triangle soup.
func Soup(m softbody.Mesh) ([]Triangle, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	model := make([]Triangle, len(m.Triangles))
	for i, t := range m.Triangles {
		model[i] = Triangle{m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]}
	}
	return model, nil
}
