package softbody

import (
	"errors"
	"fmt"

	"github.com/soypat/softbody/internal/d3"
	"github.com/soypat/softbody/octree"
	"github.com/soypat/softbody/volume"
	"gonum.org/v1/gonum/spatial/r3"
)

// BuildFromMesh builds a soft body from a closed triangle mesh. Every vertex
// is transformed by world and becomes a surface particle. Surface particles
// closer than cfg.SurfaceRadius are connected. The mesh interior is sampled
// on a lattice with cfg.VoxelSpacing and every interior particle is connected
// to the interior and surface particles closer than the interior radius.
//
// A nil world is the identity. A mesh with no vertices yields an empty body.
func BuildFromMesh(m Mesh, world func(r3.Vec) r3.Vec, cfg Config) (*Body, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	body, err := NewBody(cfg)
	if err != nil {
		return nil, err
	}
	if len(m.Vertices) == 0 {
		return body, nil
	}
	if world == nil {
		world = func(v r3.Vec) r3.Vec { return v }
	}
	gb := graphBuilder{
		body: body,
		cfg:  cfg,
	}
	if err := gb.buildSurface(m, world); err != nil {
		return nil, err
	}
	if err := gb.buildInterior(m); err != nil {
		return nil, err
	}
	return body, nil
}

type graphBuilder struct {
	body    *Body
	cfg     Config
	bounds  r3.Box
	surface *octree.Tree
}

func (gb *graphBuilder) buildSurface(m Mesh, world func(r3.Vec) r3.Vec) error {
	b := gb.body
	for _, v := range m.Vertices {
		p := world(v)
		if !d3.IsFinite(p) {
			return fmt.Errorf("vertex %v transformed to non finite position %v", v, p)
		}
		b.AddParticle(p)
	}
	b.surface = len(b.particles)
	b.stats.SurfaceParticles = b.surface

	// Padding keeps lattice points rounded past the surface bounds inside
	// the octree.
	bounds := d3.Set(b.Positions(nil)).Bounds()
	gb.bounds = r3.Box(bounds)
	gb.surface = gb.newTree(r3.Box(bounds.Enlarge(d3.Elem(gb.cfg.VoxelSpacing))))
	if err := gb.insert(gb.surface, 0, b.surface); err != nil {
		return err
	}

	r := gb.cfg.SurfaceRadius
	neighbors := gb.neighbors(0, b.surface, gb.surface, r, true)
	for i, list := range neighbors {
		added, err := gb.connect(i, list)
		if err != nil {
			return err
		}
		b.stats.SurfaceSprings += added
	}
	return nil
}

func (gb *graphBuilder) buildInterior(m Mesh) error {
	b := gb.body
	tris := make([]volume.Triangle, len(m.Triangles))
	for i, t := range m.Triangles {
		tris[i] = volume.Triangle{
			b.particles[t[0]].Pos,
			b.particles[t[1]].Pos,
			b.particles[t[2]].Pos,
		}
	}
	points, err := volume.SampleParallel(tris, gb.bounds, gb.cfg.VoxelSpacing, b.workers)
	if err != nil {
		return fmt.Errorf("sampling interior: %w", err)
	}
	if len(points) == 0 {
		return nil
	}
	first := len(b.particles)
	for _, p := range points {
		b.AddParticle(p)
	}
	b.stats.InteriorParticles = len(points)

	interior := gb.newTree(gb.surface.Bounds())
	if err := gb.insert(interior, first, len(b.particles)); err != nil {
		return err
	}

	r := gb.cfg.interiorRadius()
	inner := gb.neighbors(first, len(b.particles), interior, r, true)
	anchors := gb.neighbors(first, len(b.particles), gb.surface, r, false)
	for k := range inner {
		i := first + k
		added, err := gb.connect(i, inner[k])
		if err != nil {
			return err
		}
		b.stats.InteriorSprings += added
		added, err = gb.connect(i, anchors[k])
		if err != nil {
			return err
		}
		b.stats.AnchorSprings += added
	}
	return nil
}

func (gb *graphBuilder) newTree(bounds r3.Box) *octree.Tree {
	return octree.New(bounds, gb.cfg.LeafCapacity, gb.cfg.MaxDepth)
}

var errOutsideTree = errors.New("particle outside octree bounds")

func (gb *graphBuilder) insert(tree *octree.Tree, lo, hi int) error {
	for i := lo; i < hi; i++ {
		pos := gb.body.particles[i].Pos
		if !tree.Insert(i, pos) {
			return fmt.Errorf("particle %d at %v: %w", i, pos, errOutsideTree)
		}
	}
	return nil
}

// neighbors returns, for every particle i in [lo, hi), the indices held by
// tree that are closer than r to particle i. When upper is set only indices
// greater than i are kept, otherwise every index other than i is.
// Lists are in octree traversal order.
func (gb *graphBuilder) neighbors(lo, hi int, tree *octree.Tree, r float64, upper bool) [][]int {
	particles := gb.body.particles
	out := make([][]int, hi-lo)
	r2 := r * r
	forChunks(hi-lo, gb.body.workers, func(clo, chi int) {
		var candidates []int
		for k := clo; k < chi; k++ {
			i := lo + k
			pi := particles[i].Pos
			candidates = tree.QueryCube(pi, r, candidates[:0])
			var list []int
			for _, j := range candidates {
				if j == i || (upper && j < i) {
					continue
				}
				if d3.Dist2(pi, particles[j].Pos) < r2 {
					list = append(list, j)
				}
			}
			out[k] = list
		}
	})
	return out
}

func (gb *graphBuilder) connect(i int, list []int) (added int, err error) {
	for _, j := range list {
		ok, err := gb.body.Connect(i, j)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}
