package softbody

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/soypat/softbody/internal/d3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

var unitBox = r3.Box{Max: r3.Vec{X: 1, Y: 1, Z: 1}}

func unitCubeConfig() Config {
	cfg := DefaultConfig()
	cfg.SurfaceRadius = 1.5
	cfg.VoxelSpacing = 0.5
	cfg.Stiffness = 100
	return cfg
}

func TestUnitCube(t *testing.T) {
	body, err := BuildFromMesh(BoxMesh(unitBox), nil, unitCubeConfig())
	require.NoError(t, err)

	stats := body.Stats()
	assert.Equal(t, 8, body.SurfaceCount())
	assert.Equal(t, 8, stats.SurfaceParticles)
	// 12 edges and 12 face diagonals are shorter than 1.5, body diagonals are not.
	assert.Equal(t, 24, stats.SurfaceSprings)
	require.Greater(t, stats.InteriorParticles, 0)
	assert.Equal(t, body.NumParticles(), stats.SurfaceParticles+stats.InteriorParticles)
	assert.Equal(t, body.NumSprings(), stats.SurfaceSprings+stats.InteriorSprings+stats.AnchorSprings)
	// The center is within the interior radius of every corner.
	assert.GreaterOrEqual(t, stats.AnchorSprings, 8)

	// Lattice points on faces, edges and corners are not interior.
	require.Equal(t, 1, stats.InteriorParticles)
	center := r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
	assert.Equal(t, center, body.Particle(body.SurfaceCount()).Pos)
	for i := body.SurfaceCount(); i < body.NumParticles(); i++ {
		p := body.Particle(i).Pos
		assert.True(t, strictlyInside(unitBox, p), "interior particle %v not strictly inside cube", p)
		for j := 0; j < body.SurfaceCount(); j++ {
			assert.NotEqual(t, body.Particle(j).Pos, p, "interior particle %d coincides with surface particle %d", i, j)
		}
	}
	for i := 0; i < body.NumSprings(); i++ {
		assert.Greater(t, body.Spring(i).RestLength(), 0.0, "spring %d", i)
	}
	assertNoDuplicateSprings(t, body)
}

func strictlyInside(b r3.Box, p r3.Vec) bool {
	return b.Min.X < p.X && p.X < b.Max.X &&
		b.Min.Y < p.Y && p.Y < b.Max.Y &&
		b.Min.Z < p.Z && p.Z < b.Max.Z
}

func assertNoDuplicateSprings(t *testing.T, body *Body) {
	t.Helper()
	seen := make(map[[2]int]bool)
	for i := 0; i < body.NumSprings(); i++ {
		a, b := body.Spring(i).Endpoints()
		if a >= b {
			t.Errorf("spring %d endpoints %d, %d not ordered", i, a, b)
		}
		key := [2]int{a, b}
		if seen[key] {
			t.Errorf("duplicate spring %v", key)
		}
		seen[key] = true
	}
}

func TestSurfaceOnlySprings(t *testing.T) {
	cfg := unitCubeConfig()
	cfg.SurfaceRadius = 1.2 // Edges only.
	cfg.VoxelSpacing = 2    // Lattice is the single point at the origin.
	body, err := BuildFromMesh(BoxMesh(unitBox), nil, cfg)
	require.NoError(t, err)
	stats := body.Stats()
	assert.Equal(t, 12, stats.SurfaceSprings)
	assert.Zero(t, stats.InteriorParticles)
	// Surface springs are created first.
	for i := 0; i < stats.SurfaceSprings; i++ {
		assert.Equal(t, 1.0, body.Spring(i).RestLength())
	}
}

func TestWorldTransform(t *testing.T) {
	offset := r3.Vec{X: 3, Y: 5, Z: -1}
	world := ComposeTransform(offset, r3.Vec{X: 2, Y: 2, Z: 2}, r3.Rotation{})
	cfg := unitCubeConfig()
	cfg.SurfaceRadius = 2.5
	cfg.VoxelSpacing = 1
	body, err := BuildFromMesh(BoxMesh(unitBox), world, cfg)
	require.NoError(t, err)

	want := d3.Box{Min: offset, Max: r3.Add(offset, d3.Elem(2))}
	got := d3.Box(body.Bounds())
	assert.True(t, got.Equals(want, 1e-12), "bounds %+v, want %+v", got, want)
	center := r3.Add(offset, d3.Elem(1))
	var interior []r3.Vec
	for i := body.SurfaceCount(); i < body.NumParticles(); i++ {
		interior = append(interior, body.Particle(i).Pos)
	}
	assert.Contains(t, interior, center)
}

func TestEmptyMesh(t *testing.T) {
	body, err := BuildFromMesh(Mesh{}, nil, DefaultConfig())
	require.NoError(t, err)
	assert.Zero(t, body.NumParticles())
	assert.Zero(t, body.NumSprings())
	body.Step(DefaultTimeStep, DefaultGroundHeight, DefaultRestitution)
	assert.Equal(t, -1, body.Nearest(r3.Vec{}))
	assert.Equal(t, r3.Vec{}, body.CenterOfMass())
}

func TestVertexIndexError(t *testing.T) {
	m := BoxMesh(unitBox)
	m.Triangles = append(m.Triangles, [3]int{0, 1, 8})
	_, err := BuildFromMesh(m, nil, DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVertexIndex), err.Error())

	m.Triangles[len(m.Triangles)-1] = [3]int{-1, 1, 2}
	assert.ErrorIs(t, m.Validate(), ErrVertexIndex)
}

func TestInvalidConfig(t *testing.T) {
	for _, tc := range []struct {
		field  string
		modify func(*Config)
	}{
		{"SurfaceRadius", func(c *Config) { c.SurfaceRadius = 0 }},
		{"SurfaceRadius", func(c *Config) { c.SurfaceRadius = math.NaN() }},
		{"InteriorRadius", func(c *Config) { c.InteriorRadius = -1 }},
		{"Stiffness", func(c *Config) { c.Stiffness = -100 }},
		{"VoxelSpacing", func(c *Config) { c.VoxelSpacing = math.Inf(1) }},
		{"LeafCapacity", func(c *Config) { c.LeafCapacity = 0 }},
		{"MaxDepth", func(c *Config) { c.MaxDepth = -1 }},
		{"Mass", func(c *Config) { c.Mass = 0 }},
		{"Gravity", func(c *Config) { c.Gravity = math.NaN() }},
		{"Workers", func(c *Config) { c.Workers = -2 }},
	} {
		cfg := DefaultConfig()
		tc.modify(&cfg)
		_, err := BuildFromMesh(BoxMesh(unitBox), nil, cfg)
		require.ErrorIs(t, err, ErrInvalidConfig, tc.field)
		assert.Contains(t, err.Error(), tc.field)
	}
	require.NoError(t, DefaultConfig().Validate())
}

func TestInteriorRadiusDefault(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, cfg.SurfaceRadius, cfg.interiorRadius())
	cfg.InteriorRadius = 0.25
	assert.Equal(t, 0.25, cfg.interiorRadius())
}

func TestInteriorSpringLength(t *testing.T) {
	cfg := DefaultConfig()
	body, err := BuildFromMesh(BoxMesh(unitBox), nil, cfg)
	require.NoError(t, err)
	stats := body.Stats()
	require.Greater(t, stats.InteriorSprings, 0)
	// Corners are farther than SurfaceRadius from every interior lattice point.
	assert.Zero(t, stats.AnchorSprings)
	// Interior phase springs follow the surface springs.
	for i := stats.SurfaceSprings; i < body.NumSprings(); i++ {
		rest := body.Spring(i).RestLength()
		assert.Less(t, rest, cfg.SurfaceRadius, "spring %d", i)
		assert.Greater(t, rest, 0.0, "spring %d", i)
	}
}

func TestParticleGroundBounce(t *testing.T) {
	p := Particle{Pos: r3.Vec{Y: 0.1}, Vel: r3.Vec{Y: -10}, Mass: 1}
	p.Step(0.02, 0, 0.5)
	assert.Equal(t, 0.0, p.Pos.Y)
	assert.Equal(t, 5.0, p.Vel.Y)
	assert.Equal(t, r3.Vec{}, p.Force())

	// Moving up through the ground is clamped without reflection.
	p = Particle{Pos: r3.Vec{Y: -1}, Vel: r3.Vec{Y: 1}, Mass: 1}
	p.Step(0.02, 0, 0.5)
	assert.Equal(t, 0.0, p.Pos.Y)
	assert.Equal(t, 1.0, p.Vel.Y)
}

func TestParticleIntegration(t *testing.T) {
	p := Particle{Mass: 2}
	p.AddForce(r3.Vec{X: 4})
	p.AddForce(r3.Vec{Z: -2})
	assert.Equal(t, r3.Vec{X: 4, Z: -2}, p.Force())
	p.Step(0.5, math.Inf(-1), 0)
	assert.Equal(t, r3.Vec{X: 1, Z: -0.5}, p.Vel)
	assert.Equal(t, r3.Vec{X: 0.5, Z: -0.25}, p.Pos)
	assert.Equal(t, r3.Vec{}, p.Force())
}

func TestFixedParticlesUnchanged(t *testing.T) {
	body, err := BuildFromMesh(BoxMesh(unitBox), nil, unitCubeConfig())
	require.NoError(t, err)
	fixed := []int{0, 3, body.NumParticles() - 1}
	for _, i := range fixed {
		body.SetFixed(i, true)
	}
	before := make([]Particle, len(fixed))
	for k, i := range fixed {
		before[k] = body.Particle(i)
	}
	free := body.Particle(1).Pos
	for tick := 0; tick < 100; tick++ {
		body.AddForce(fixed[0], r3.Vec{X: 1000})
		body.Step(DefaultTimeStep, -0.5, DefaultRestitution)
	}
	for k, i := range fixed {
		p := body.Particle(i)
		assert.Equal(t, before[k].Pos, p.Pos, "fixed particle %d moved", i)
		assert.Equal(t, before[k].Vel, p.Vel)
		assert.Equal(t, r3.Vec{}, p.Force())
	}
	assert.NotEqual(t, free, body.Particle(1).Pos, "free particle did not move")
}

func TestRestLengthImmutable(t *testing.T) {
	body, err := BuildFromMesh(BoxMesh(unitBox), nil, unitCubeConfig())
	require.NoError(t, err)
	initial := body.Positions(nil)
	rest := make([]float64, body.NumSprings())
	for i := range rest {
		s := body.Spring(i)
		a, b := s.Endpoints()
		require.Equal(t, r3.Norm(r3.Sub(initial[b], initial[a])), s.RestLength())
		rest[i] = s.RestLength()
	}
	for tick := 0; tick < 50; tick++ {
		body.Step(DefaultTimeStep, DefaultGroundHeight, DefaultRestitution)
	}
	require.NotEqual(t, initial, body.Positions(nil))
	for i := range rest {
		assert.Equal(t, rest[i], body.Spring(i).RestLength())
	}
}

func TestConnect(t *testing.T) {
	body, err := NewBody(DefaultConfig())
	require.NoError(t, err)
	a := body.AddParticle(r3.Vec{})
	b := body.AddParticle(r3.Vec{X: 3, Y: 4})
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)

	added, err := body.Connect(b, a)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = body.Connect(a, b)
	require.NoError(t, err)
	assert.False(t, added, "duplicate pair connected")
	added, err = body.Connect(a, a)
	require.NoError(t, err)
	assert.False(t, added, "self spring connected")
	_, err = body.Connect(a, 2)
	assert.Error(t, err)

	require.Equal(t, 1, body.NumSprings())
	s := body.Spring(0)
	i, j := s.Endpoints()
	assert.Equal(t, [2]int{0, 1}, [2]int{i, j})
	assert.Equal(t, 5.0, s.RestLength())
	assert.Equal(t, 100.0, s.Stiffness())
	assert.True(t, body.Connected(1, 0))
	assert.Equal(t, [][2]r3.Vec{{{}, {X: 3, Y: 4}}}, body.SpringSegments(nil))
}

func TestSpringForce(t *testing.T) {
	s := Spring{a: 0, b: 1, restLength: 1, stiffness: 10}
	// Stretched: a pulled towards b.
	f := s.Force(r3.Vec{}, r3.Vec{X: 2})
	assert.Equal(t, r3.Vec{X: 10}, f)
	// Compressed: a pushed away from b.
	f = s.Force(r3.Vec{}, r3.Vec{Y: 0.5})
	assert.Equal(t, r3.Vec{Y: -5}, f)
	assert.Equal(t, r3.Vec{}, s.Force(r3.Vec{X: 1}, r3.Vec{X: 1}))
}

func TestTwoParticleOscillation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gravity = 0
	body, err := NewBody(cfg)
	require.NoError(t, err)
	body.AddParticle(r3.Vec{})
	body.AddParticle(r3.Vec{X: 1})
	_, err = body.Connect(0, 1)
	require.NoError(t, err)
	body.particles[1].Pos.X = 1.2

	com := body.CenterOfMass()
	minLen, maxLen := math.Inf(1), 0.0
	for tick := 0; tick < 1000; tick++ {
		body.Step(0.01, math.Inf(-1), 0)
		length := r3.Norm(r3.Sub(body.Particle(1).Pos, body.Particle(0).Pos))
		minLen = math.Min(minLen, length)
		maxLen = math.Max(maxLen, length)
		c := body.CenterOfMass()
		require.InDelta(t, com.X, c.X, 1e-9, "tick %d", tick)
		require.Equal(t, 0.0, c.Y)
		require.Equal(t, 0.0, c.Z)
	}
	assert.InDelta(t, 0, body.Momentum().X, 1e-9)
	// Oscillates about the rest length.
	assert.Less(t, minLen, 0.9)
	assert.Greater(t, maxLen, 1.1)
}

func TestStepAfterConnect(t *testing.T) {
	body, err := BuildFromMesh(BoxMesh(unitBox), nil, unitCubeConfig())
	require.NoError(t, err)
	body.Step(DefaultTimeStep, DefaultGroundHeight, DefaultRestitution)
	extra := body.AddParticle(r3.Vec{X: 0.5, Y: 2, Z: 0.5})
	added, err := body.Connect(extra, 0)
	require.NoError(t, err)
	require.True(t, added)
	body.Step(DefaultTimeStep, DefaultGroundHeight, DefaultRestitution)
	assert.Len(t, body.forceA, body.NumSprings())
	assert.Len(t, body.forceB, body.NumSprings())
}

func TestStepDeterministicAcrossWorkers(t *testing.T) {
	mesh := BoxMesh(r3.Box{Min: d3.Elem(-1), Max: d3.Elem(1)})
	run := func(workers int) []r3.Vec {
		cfg := DefaultConfig()
		cfg.Workers = workers
		body, err := BuildFromMesh(mesh, nil, cfg)
		require.NoError(t, err)
		require.Greater(t, body.NumSprings(), minChunk)
		for tick := 0; tick < 20; tick++ {
			body.Step(DefaultTimeStep, -1, DefaultRestitution)
		}
		return body.Positions(nil)
	}
	assert.Equal(t, run(1), run(4))
}

func TestForChunksCoversRange(t *testing.T) {
	for _, n := range []int{0, 1, minChunk - 1, minChunk, 5*minChunk + 3} {
		for _, workers := range []int{1, 3, 8} {
			visits := make([]int, n)
			forChunks(n, workers, func(lo, hi int) {
				for i := lo; i < hi; i++ {
					visits[i]++
				}
			})
			for i, v := range visits {
				if v != 1 {
					t.Fatalf("n=%d workers=%d: index %d visited %d times", n, workers, i, v)
				}
			}
		}
	}
}

func TestPinning(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	body, err := NewBody(DefaultConfig())
	require.NoError(t, err)
	for i := 0; i < 500; i++ {
		body.AddParticle(r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()})
	}
	for q := 0; q < 20; q++ {
		p := r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}
		best, bestDist := -1, math.Inf(1)
		var want []int
		const radius = 0.2
		for i := 0; i < body.NumParticles(); i++ {
			d := d3.Dist(p, body.Particle(i).Pos)
			if d < bestDist {
				best, bestDist = i, d
			}
			if d <= radius {
				want = append(want, i)
			}
		}
		assert.Equal(t, best, body.Nearest(p))
		got := body.Within(p, radius, nil)
		sort.Ints(got)
		if len(want) == 0 {
			assert.Empty(t, got)
		} else {
			assert.Equal(t, want, got)
		}
	}

	center := r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
	n := body.PinWithin(center, 0.3)
	assert.Equal(t, len(body.Within(center, 0.3, nil)), n)
	assert.Zero(t, body.PinWithin(center, 0.3), "already fixed particles counted")
	for _, i := range body.Within(center, 0.3, nil) {
		assert.True(t, body.Particle(i).Fixed)
	}

	below := 0
	for i := 0; i < body.NumParticles(); i++ {
		if p := body.Particle(i); p.Pos.Y <= 0.1 && !p.Fixed {
			below++
		}
	}
	assert.Equal(t, below, body.PinBelow(0.1))
}

func TestDiagnostics(t *testing.T) {
	body, err := NewBody(DefaultConfig())
	require.NoError(t, err)
	body.AddParticle(r3.Vec{})
	body.AddParticle(r3.Vec{X: 2})
	_, err = body.Connect(0, 1)
	require.NoError(t, err)
	body.particles[1].Pos.X = 3
	body.particles[0].Vel = r3.Vec{Y: 2}

	assert.Equal(t, r3.Vec{X: 1.5}, body.CenterOfMass())
	assert.Equal(t, 2.0, body.KineticEnergy())
	assert.Equal(t, 0.5, body.MaxStrain())
	assert.Equal(t, r3.Box{Max: r3.Vec{X: 3}}, body.Bounds())
}

func TestBoxMeshClosedOutward(t *testing.T) {
	m := BoxMesh(unitBox)
	require.NoError(t, m.Validate())
	require.Len(t, m.Triangles, 12)
	center := d3.Box(unitBox).Center()
	edges := make(map[[2]int]int)
	for _, tri := range m.Triangles {
		a, b, c := m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]
		n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		centroid := r3.Scale(1.0/3, r3.Add(a, r3.Add(b, c)))
		assert.Greater(t, r3.Dot(n, r3.Sub(centroid, center)), 0.0, "triangle %v wound inward", tri)
		for k := 0; k < 3; k++ {
			edges[pairKey(tri[k], tri[(k+1)%3])]++
		}
	}
	for e, count := range edges {
		assert.Equal(t, 2, count, "edge %v not shared by two triangles", e)
	}
}
