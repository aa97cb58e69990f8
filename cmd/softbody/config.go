package main

import (
	"fmt"
	"math"

	"github.com/soypat/softbody"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/gcfg.v1"
)

// ExampleConfig is printed by -example-config. Its values are the defaults.
const ExampleConfig = `# softbody configuration file.

[Build]
# Maximum distance between connected surface particles.
SurfaceRadius = 0.3
# Maximum distance for interior particle springs. 0 means SurfaceRadius.
InteriorRadius = 0
Stiffness = 100
# Interior sampling lattice spacing.
VoxelSpacing = 0.2
LeafCapacity = 8
MaxDepth = 6
Mass = 1
Damping = 0.995
Gravity = 9.81
# Goroutines used to build and step. 0 means one per CPU.
Workers = 0

[Mesh]
# STL or OBJ file. Empty means the unit cube.
Path = ""
Scale = 1
# Rotation about the Y axis in degrees, applied after scaling.
RotateY = 0
X = 0
Y = 1
Z = 0

[Run]
TimeStep = 0.02
GroundHeight = 0
Restitution = 0.5
Ticks = 250
# Diagnostics are logged and recorded every LogEvery ticks.
LogEvery = 25
# Fix every particle at or below PinBelow.
Pin = false
PinBelow = 0
`

type buildSection struct {
	SurfaceRadius  float64
	InteriorRadius float64
	Stiffness      float64
	VoxelSpacing   float64
	LeafCapacity   int
	MaxDepth       int
	Mass           float64
	Damping        float64
	Gravity        float64
	Workers        int
}

type meshSection struct {
	Path    string
	Scale   float64
	RotateY float64
	X, Y, Z float64
}

type runSection struct {
	TimeStep     float64
	GroundHeight float64
	Restitution  float64
	Ticks        int
	LogEvery     int
	Pin          bool
	PinBelow     float64
}

// fileConfig mirrors the sections of a configuration file.
type fileConfig struct {
	Build buildSection
	Mesh  meshSection
	Run   runSection
}

func defaultFileConfig() fileConfig {
	d := softbody.DefaultConfig()
	return fileConfig{
		Build: buildSection{
			SurfaceRadius:  d.SurfaceRadius,
			InteriorRadius: d.InteriorRadius,
			Stiffness:      d.Stiffness,
			VoxelSpacing:   d.VoxelSpacing,
			LeafCapacity:   d.LeafCapacity,
			MaxDepth:       d.MaxDepth,
			Mass:           d.Mass,
			Damping:        d.Damping,
			Gravity:        d.Gravity,
		},
		Mesh: meshSection{Scale: 1, Y: 1},
		Run: runSection{
			TimeStep:     softbody.DefaultTimeStep,
			GroundHeight: softbody.DefaultGroundHeight,
			Restitution:  softbody.DefaultRestitution,
			Ticks:        250,
			LogEvery:     25,
		},
	}
}

// readConfig returns the defaults overridden by the file at path.
// An empty path returns the defaults.
func readConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	if path == "" {
		return cfg, nil
	}
	if err := gcfg.ReadFileInto(&cfg, path); err != nil {
		return fileConfig{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	return cfg, cfg.check()
}

func (c fileConfig) check() error {
	switch {
	case !(c.Run.TimeStep > 0):
		return fmt.Errorf("TimeStep must be positive, got %g", c.Run.TimeStep)
	case c.Run.Restitution < 0 || c.Run.Restitution > 1:
		return fmt.Errorf("Restitution must be in [0, 1], got %g", c.Run.Restitution)
	case c.Run.Ticks < 0:
		return fmt.Errorf("Ticks must not be negative, got %d", c.Run.Ticks)
	case c.Mesh.Scale == 0:
		return fmt.Errorf("Mesh Scale must not be zero")
	}
	return c.buildConfig().Validate()
}

func (c fileConfig) buildConfig() softbody.Config {
	b := c.Build
	return softbody.Config{
		SurfaceRadius:  b.SurfaceRadius,
		InteriorRadius: b.InteriorRadius,
		Stiffness:      b.Stiffness,
		VoxelSpacing:   b.VoxelSpacing,
		LeafCapacity:   b.LeafCapacity,
		MaxDepth:       b.MaxDepth,
		Mass:           b.Mass,
		Damping:        b.Damping,
		Gravity:        b.Gravity,
		Workers:        b.Workers,
	}
}

// world returns the mesh placement transform.
func (m meshSection) world() func(r3.Vec) r3.Vec {
	var q r3.Rotation
	if m.RotateY != 0 {
		q = r3.NewRotation(m.RotateY*math.Pi/180, r3.Vec{Y: 1})
	}
	return softbody.ComposeTransform(r3.Vec{X: m.X, Y: m.Y, Z: m.Z}, r3.Vec{X: m.Scale, Y: m.Scale, Z: m.Scale}, q)
}
