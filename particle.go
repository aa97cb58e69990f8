package softbody

import "gonum.org/v1/gonum/spatial/r3"

// Particle is a point mass of a soft body.
type Particle struct {
	Pos r3.Vec
	Vel r3.Vec
	// Mass must be positive.
	Mass float64
	// Damping is stored for hosts that apply their own velocity damping.
	// Step does not use it.
	Damping float64
	// Fixed particles accumulate no force and never move.
	Fixed bool

	force r3.Vec // accumulated since last Step.
}

// AddForce adds f to the particle's accumulated force. It does nothing
// for fixed particles. AddForce is not safe for concurrent use on the
// same particle.
func (p *Particle) AddForce(f r3.Vec) {
	if p.Fixed {
		return
	}
	p.force = r3.Add(p.force, f)
}

// Force returns the force accumulated since the last Step.
func (p *Particle) Force() r3.Vec { return p.force }

// Step integrates the accumulated force over dt with semi-implicit Euler,
// resolves collision against the ground plane y = groundY and clears the
// accumulated force. A particle that ends below the ground is placed on it
// and, if moving down, bounces with its vertical speed scaled by restitution.
// Fixed particles are left untouched.
func (p *Particle) Step(dt, groundY, restitution float64) {
	if p.Fixed {
		return
	}
	p.Vel = r3.Add(p.Vel, r3.Scale(dt, r3.Scale(1/p.Mass, p.force)))
	p.Pos = r3.Add(p.Pos, r3.Scale(dt, p.Vel))
	if p.Pos.Y < groundY {
		p.Pos.Y = groundY
		if p.Vel.Y < 0 {
			p.Vel.Y = -p.Vel.Y * restitution
		}
	}
	p.force = r3.Vec{}
}
