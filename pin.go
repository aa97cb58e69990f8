package softbody

import (
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// Nearest returns the index of the particle closest to p at its current
// position, or -1 if the body has no particles.
func (b *Body) Nearest(p r3.Vec) int {
	if len(b.particles) == 0 {
		return -1
	}
	tree := b.kdTree()
	c, _ := tree.Nearest(&kdPoint{pos: p})
	return c.(*kdPoint).idx
}

// Within appends to dst the indices of the particles whose current position
// is at most radius from center. Order is unspecified.
func (b *Body) Within(center r3.Vec, radius float64, dst []int) []int {
	if len(b.particles) == 0 || radius < 0 {
		return dst
	}
	tree := b.kdTree()
	keep := kdtree.NewDistKeeper(radius * radius)
	tree.NearestSet(keep, &kdPoint{pos: center})
	for _, cd := range keep.Heap {
		if cd.Comparable == nil {
			continue // Sentinel inserted by NewDistKeeper.
		}
		dst = append(dst, cd.Comparable.(*kdPoint).idx)
	}
	return dst
}

// PinWithin fixes every particle at most radius from center and
// returns how many particles were newly fixed.
func (b *Body) PinWithin(center r3.Vec, radius float64) int {
	n := 0
	for _, i := range b.Within(center, radius, nil) {
		if !b.particles[i].Fixed {
			b.SetFixed(i, true)
			n++
		}
	}
	return n
}

// PinBelow fixes every particle with height at most y and returns
// how many particles were newly fixed.
func (b *Body) PinBelow(y float64) int {
	n := 0
	for i := range b.particles {
		if b.particles[i].Pos.Y <= y && !b.particles[i].Fixed {
			b.SetFixed(i, true)
			n++
		}
	}
	return n
}

// kdTree returns a tree over the current particle positions. Positions
// change every Step so the tree is not cached.
func (b *Body) kdTree() *kdtree.Tree {
	pts := make(kdPoints, len(b.particles))
	for i := range b.particles {
		pts[i] = kdPoint{idx: i, pos: b.particles[i].Pos}
	}
	return kdtree.New(pts, false)
}

type kdPoint struct {
	idx int
	pos r3.Vec
}

func (p *kdPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(*kdPoint)
	switch d {
	case 0:
		return p.pos.X - q.pos.X
	case 1:
		return p.pos.Y - q.pos.Y
	case 2:
		return p.pos.Z - q.pos.Z
	}
	panic("unreachable")
}

func (p *kdPoint) Dims() int { return 3 }

// Distance returns the squared distance between points.
func (p *kdPoint) Distance(c kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(p.pos, c.(*kdPoint).pos))
}

type kdPoints []kdPoint

func (ps kdPoints) Index(i int) kdtree.Comparable { return &ps[i] }

func (ps kdPoints) Len() int { return len(ps) }

func (ps kdPoints) Pivot(d kdtree.Dim) int {
	p := kdPlane{dim: d, points: ps}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

func (ps kdPoints) Slice(start, end int) kdtree.Interface { return ps[start:end] }

type kdPlane struct {
	dim    kdtree.Dim
	points kdPoints
}

func (p kdPlane) Less(i, j int) bool {
	return p.points[i].Compare(&p.points[j], p.dim) < 0
}

func (p kdPlane) Swap(i, j int) { p.points[i], p.points[j] = p.points[j], p.points[i] }

func (p kdPlane) Len() int { return len(p.points) }

func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
