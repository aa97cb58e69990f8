package softbody

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Spring is an undamped Hookean link between two particles of a Body.
// Its rest length is fixed when the spring is created.
type Spring struct {
	a, b       int
	restLength float64
	stiffness  float64
}

// Endpoints returns the indices of the particles joined by the spring.
// a is always less than b.
func (s Spring) Endpoints() (a, b int) { return s.a, s.b }

// RestLength returns the distance between the endpoints when the
// spring was created.
func (s Spring) RestLength() float64 { return s.restLength }

// Stiffness returns the spring constant.
func (s Spring) Stiffness() float64 { return s.stiffness }

// Force returns the force exerted on endpoint a when the endpoints are at
// pa and pb. Endpoint b receives the opposite force. A stretched spring
// pulls a towards b. Coincident endpoints exert no force.
func (s Spring) Force(pa, pb r3.Vec) r3.Vec {
	delta := r3.Sub(pb, pa)
	dist := r3.Norm(delta)
	if dist == 0 {
		return r3.Vec{}
	}
	dir := r3.Scale(1/dist, delta)
	return r3.Scale((dist-s.restLength)*s.stiffness, dir)
}

// strain returns the relative elongation of the spring with endpoints at
// pa and pb.
func (s Spring) strain(pa, pb r3.Vec) float64 {
	if s.restLength == 0 {
		return 0
	}
	return (r3.Norm(r3.Sub(pb, pa)) - s.restLength) / s.restLength
}

// pairKey is the deduplication key of an undirected particle pair.
func pairKey(i, j int) [2]int {
	if j < i {
		i, j = j, i
	}
	return [2]int{i, j}
}
