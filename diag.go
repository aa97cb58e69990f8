package softbody

import (
	"math"

	"github.com/soypat/softbody/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// CenterOfMass returns the mass weighted mean particle position.
// It returns the zero vector for an empty body.
func (b *Body) CenterOfMass() r3.Vec {
	var sum r3.Vec
	var mass float64
	for i := range b.particles {
		p := &b.particles[i]
		sum = r3.Add(sum, r3.Scale(p.Mass, p.Pos))
		mass += p.Mass
	}
	if mass == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/mass, sum)
}

// KineticEnergy returns the sum of ½mv² over all particles.
func (b *Body) KineticEnergy() float64 {
	var e float64
	for i := range b.particles {
		p := &b.particles[i]
		e += 0.5 * p.Mass * r3.Norm2(p.Vel)
	}
	return e
}

// Momentum returns the total linear momentum of the body.
func (b *Body) Momentum() r3.Vec {
	var m r3.Vec
	for i := range b.particles {
		m = r3.Add(m, r3.Scale(b.particles[i].Mass, b.particles[i].Vel))
	}
	return m
}

// Bounds returns the bounding box of the current particle positions.
func (b *Body) Bounds() r3.Box {
	return r3.Box(d3.Set(b.Positions(nil)).Bounds())
}

// MaxStrain returns the largest relative elongation or compression
// |length-rest|/rest over springs with non-zero rest length.
func (b *Body) MaxStrain() float64 {
	var worst float64
	for _, s := range b.springs {
		strain := math.Abs(s.strain(b.particles[s.a].Pos, b.particles[s.b].Pos))
		worst = math.Max(worst, strain)
	}
	return worst
}
