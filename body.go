package softbody

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// BuildStats counts what BuildFromMesh produced.
type BuildStats struct {
	SurfaceParticles  int
	InteriorParticles int
	SurfaceSprings    int
	// InteriorSprings join two interior particles.
	InteriorSprings int
	// AnchorSprings join an interior particle to a surface particle.
	AnchorSprings int
}

// Body is a set of particles joined by springs. Particles are addressed by
// their index, which never changes once assigned. The first SurfaceCount
// particles of a body built by BuildFromMesh are the mesh vertices.
//
// A Body is not safe for concurrent use.
type Body struct {
	particles []Particle
	springs   []Spring
	pairs     map[[2]int]struct{}
	surface   int

	gravity   float64
	mass      float64
	damping   float64
	stiffness float64
	workers   int

	// Per spring force on each endpoint, written in parallel.
	forceA, forceB []r3.Vec
	stats          BuildStats
}

// NewBody returns an empty body using cfg's particle, spring and
// simulation parameters.
func NewBody(cfg Config) (*Body, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Body{
		pairs:     make(map[[2]int]struct{}),
		gravity:   cfg.Gravity,
		mass:      cfg.Mass,
		damping:   cfg.Damping,
		stiffness: cfg.Stiffness,
		workers:   cfg.workers(),
	}, nil
}

// AddParticle adds a particle at rest at pos and returns its index.
func (b *Body) AddParticle(pos r3.Vec) int {
	b.particles = append(b.particles, Particle{
		Pos:     pos,
		Mass:    b.mass,
		Damping: b.damping,
	})
	return len(b.particles) - 1
}

// Connect joins particles i and j with a spring whose rest length is their
// current distance. It reports whether a spring was added. No spring is
// added when i == j or the pair is already connected.
func (b *Body) Connect(i, j int) (bool, error) {
	if i < 0 || i >= len(b.particles) || j < 0 || j >= len(b.particles) {
		return false, fmt.Errorf("connect %d-%d with %d particles: particle index out of range", i, j, len(b.particles))
	}
	if i == j {
		return false, nil
	}
	key := pairKey(i, j)
	if _, ok := b.pairs[key]; ok {
		return false, nil
	}
	b.pairs[key] = struct{}{}
	b.springs = append(b.springs, Spring{
		a:          key[0],
		b:          key[1],
		restLength: r3.Norm(r3.Sub(b.particles[j].Pos, b.particles[i].Pos)),
		stiffness:  b.stiffness,
	})
	return true, nil
}

// Connected reports whether particles i and j share a spring.
func (b *Body) Connected(i, j int) bool {
	_, ok := b.pairs[pairKey(i, j)]
	return ok
}

// NumParticles returns the number of particles in the body.
func (b *Body) NumParticles() int { return len(b.particles) }

// Particle returns a copy of particle i.
func (b *Body) Particle(i int) Particle { return b.particles[i] }

// Positions appends the position of every particle to dst in index order.
func (b *Body) Positions(dst []r3.Vec) []r3.Vec {
	for i := range b.particles {
		dst = append(dst, b.particles[i].Pos)
	}
	return dst
}

// NumSprings returns the number of springs in the body.
func (b *Body) NumSprings() int { return len(b.springs) }

// Spring returns spring i. Springs are indexed in creation order.
func (b *Body) Spring(i int) Spring { return b.springs[i] }

// SpringSegments appends the current endpoint positions of every spring
// to dst. Useful for drawing the spring network.
func (b *Body) SpringSegments(dst [][2]r3.Vec) [][2]r3.Vec {
	for _, s := range b.springs {
		dst = append(dst, [2]r3.Vec{b.particles[s.a].Pos, b.particles[s.b].Pos})
	}
	return dst
}

// SurfaceCount returns the number of surface particles. Surface particles
// have indices [0, SurfaceCount).
func (b *Body) SurfaceCount() int { return b.surface }

// SetFixed sets whether particle i is fixed. Fixing a particle clears
// its velocity and accumulated force.
func (b *Body) SetFixed(i int, fixed bool) {
	p := &b.particles[i]
	if fixed && !p.Fixed {
		p.Vel = r3.Vec{}
		p.force = r3.Vec{}
	}
	p.Fixed = fixed
}

// AddForce adds f to the accumulated force of particle i. The force is
// applied and cleared by the next Step.
func (b *Body) AddForce(i int, f r3.Vec) { b.particles[i].AddForce(f) }

// Stats returns the counts recorded while the body was built.
func (b *Body) Stats() BuildStats { return b.stats }

func (b *Body) resizeScratch() {
	n := len(b.springs)
	if cap(b.forceA) < n {
		b.forceA = make([]r3.Vec, n)
		b.forceB = make([]r3.Vec, n)
	}
	b.forceA = b.forceA[:n]
	b.forceB = b.forceB[:n]
}
