package volume

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// parallelTol is the magnitude below which the ray/triangle determinant
// is considered zero and the ray parallel to the triangle plane.
const parallelTol = 1e-5

// Triangle is a world-space triangle. Vertex order defines the winding.
type Triangle [3]r3.Vec

// Normal returns the unit normal of the triangle following the
// right hand rule over its vertex order.
func (t Triangle) Normal() r3.Vec {
	e1 := r3.Sub(t[1], t[0])
	e2 := r3.Sub(t[2], t[0])
	return r3.Unit(r3.Cross(e1, e2))
}

// Bounds returns the axis aligned bounding box of the triangle.
func (t Triangle) Bounds() r3.Box {
	return r3.Box{
		Min: r3.Vec{
			X: math.Min(t[0].X, math.Min(t[1].X, t[2].X)),
			Y: math.Min(t[0].Y, math.Min(t[1].Y, t[2].Y)),
			Z: math.Min(t[0].Z, math.Min(t[1].Z, t[2].Z)),
		},
		Max: r3.Vec{
			X: math.Max(t[0].X, math.Max(t[1].X, t[2].X)),
			Y: math.Max(t[0].Y, math.Max(t[1].Y, t[2].Y)),
			Z: math.Max(t[0].Z, math.Max(t[1].Z, t[2].Z)),
		},
	}
}

// IntersectRay tests the ray origin + t*dir against the triangle using the
// Möller–Trumbore algorithm. It returns the signed ray parameter of the hit
// and whether the ray crosses the triangle. Negative t values are hits
// behind the origin. Rays nearly parallel to the triangle plane never hit.
func (t Triangle) IntersectRay(origin, dir r3.Vec) (float64, bool) {
	edge1 := r3.Sub(t[1], t[0])
	edge2 := r3.Sub(t[2], t[0])
	h := r3.Cross(dir, edge2)
	det := r3.Dot(edge1, h)
	if det > -parallelTol && det < parallelTol {
		return 0, false
	}
	f := 1 / det
	s := r3.Sub(origin, t[0])
	u := f * r3.Dot(s, h)
	if u < 0 || u > 1 {
		return 0, false
	}
	q := r3.Cross(s, edge1)
	v := f * r3.Dot(dir, q)
	if v < 0 || u+v > 1 {
		return 0, false
	}
	return f * r3.Dot(edge2, q), true
}

// Touches reports whether p lies on the triangle within distance tol. Points
// farther than tol from the triangle plane, or whose projection is farther
// than tol outside any edge, do not touch it. Degenerate triangles touch
// nothing.
func (t Triangle) Touches(p r3.Vec, tol float64) bool {
	n := r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
	area2 := r3.Norm(n)
	if area2 == 0 {
		return false
	}
	if math.Abs(r3.Dot(r3.Sub(p, t[0]), n)) > tol*area2 {
		return false
	}
	for k := range t {
		a, b := t[k], t[(k+1)%3]
		edge := r3.Sub(b, a)
		// Signed in-plane distance of p from the edge line times area2,
		// positive on the triangle side.
		side := r3.Dot(r3.Cross(edge, r3.Sub(p, a)), n)
		if side < -tol*area2*r3.Norm(edge) {
			return false
		}
	}
	return true
}
