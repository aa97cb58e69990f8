package softbody

import (
	"fmt"
	"math"
	"runtime"
)

// Run parameter defaults used by hosts that do not choose their own.
const (
	DefaultTimeStep     = 0.02
	DefaultGroundHeight = 0.0
	DefaultRestitution  = 0.5
)

// Config holds the soft body build parameters.
type Config struct {
	// SurfaceRadius is the maximum distance between connected surface particles.
	SurfaceRadius float64
	// InteriorRadius is the maximum distance between an interior particle and
	// the particles it is connected to. Neighbors are searched in the cube of
	// side twice this radius. Zero means SurfaceRadius.
	InteriorRadius float64
	// Stiffness is the spring constant of every spring.
	Stiffness float64
	// VoxelSpacing is the interior sampling lattice spacing.
	VoxelSpacing float64
	// LeafCapacity and MaxDepth control octree subdivision.
	LeafCapacity int
	MaxDepth     int
	// Mass and Damping are assigned to every particle.
	Mass    float64
	Damping float64
	// Gravity is the acceleration along -Y. It may be zero or negative.
	Gravity float64
	// Workers limits goroutines used to build and step the body.
	// Zero means GOMAXPROCS.
	Workers int
}

// DefaultConfig returns the default build parameters.
func DefaultConfig() Config {
	return Config{
		SurfaceRadius: 0.3,
		Stiffness:     100,
		VoxelSpacing:  0.2,
		LeafCapacity:  8,
		MaxDepth:      6,
		Mass:          1,
		Damping:       0.995,
		Gravity:       9.81,
		Workers:       runtime.GOMAXPROCS(0),
	}
}

// Validate returns an error wrapping ErrInvalidConfig naming the
// first offending field.
func (cfg Config) Validate() error {
	switch {
	case !positive(cfg.SurfaceRadius):
		return fieldErr("SurfaceRadius", cfg.SurfaceRadius)
	case cfg.InteriorRadius != 0 && !positive(cfg.InteriorRadius):
		return fieldErr("InteriorRadius", cfg.InteriorRadius)
	case !positive(cfg.Stiffness):
		return fieldErr("Stiffness", cfg.Stiffness)
	case !positive(cfg.VoxelSpacing):
		return fieldErr("VoxelSpacing", cfg.VoxelSpacing)
	case cfg.LeafCapacity < 1:
		return fieldErr("LeafCapacity", cfg.LeafCapacity)
	case cfg.MaxDepth < 0:
		return fieldErr("MaxDepth", cfg.MaxDepth)
	case !positive(cfg.Mass):
		return fieldErr("Mass", cfg.Mass)
	case math.IsNaN(cfg.Damping) || math.IsInf(cfg.Damping, 0):
		return fieldErr("Damping", cfg.Damping)
	case math.IsNaN(cfg.Gravity) || math.IsInf(cfg.Gravity, 0):
		return fieldErr("Gravity", cfg.Gravity)
	case cfg.Workers < 0:
		return fieldErr("Workers", cfg.Workers)
	}
	return nil
}

func (cfg Config) interiorRadius() float64 {
	if cfg.InteriorRadius == 0 {
		return cfg.SurfaceRadius
	}
	return cfg.InteriorRadius
}

func (cfg Config) workers() int {
	if cfg.Workers == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return cfg.Workers
}

func positive(v float64) bool { return v > 0 && !math.IsInf(v, 1) }

func fieldErr(field string, v any) error {
	return fmt.Errorf("%s=%v: %w", field, v, ErrInvalidConfig)
}
