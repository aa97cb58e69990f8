// Command softbody builds a mass-spring soft body from a mesh file, drops it
// onto the ground plane and reports how it settles.
//
// Usage:
//
//	softbody [-config file.gcfg] [-mesh model.stl] [-ticks n] [-plot trace.png] [-stl-out final.stl]
//	softbody -example-config > softbody.gcfg
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/soypat/softbody"
	"github.com/soypat/softbody/meshio"
	"github.com/soypat/softbody/trace"
	"gonum.org/v1/gonum/spatial/r3"
)

type options struct {
	config  string
	mesh    string
	ticks   int
	plot    string
	stlOut  string
	example bool
	level   string
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "", "gcfg configuration file. See -example-config.")
	flag.StringVar(&opts.mesh, "mesh", "", "STL or OBJ mesh file. Overrides [Mesh] Path.")
	flag.IntVar(&opts.ticks, "ticks", 0, "Simulation ticks. Overrides [Run] Ticks when positive.")
	flag.StringVar(&opts.plot, "plot", "", "Write a PNG plot of the run diagnostics to this file.")
	flag.StringVar(&opts.stlOut, "stl-out", "", "Write the deformed surface as binary STL to this file.")
	flag.BoolVar(&opts.example, "example-config", false, "Print an example configuration file to stdout and exit.")
	flag.StringVar(&opts.level, "log-level", "info", "Log level: debug, info, warn or error.")
	flag.Parse()

	if opts.example {
		fmt.Print(ExampleConfig)
		return
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.level)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := run(ctx, opts, logger)
	if errors.Is(err, context.Canceled) {
		logger.Warn("interrupted")
		return
	}
	if err != nil {
		logger.Error("run failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	cfg, err := readConfig(opts.config)
	if err != nil {
		return err
	}
	if opts.mesh != "" {
		cfg.Mesh.Path = opts.mesh
	}
	if opts.ticks > 0 {
		cfg.Run.Ticks = opts.ticks
	}

	mesh, err := loadMesh(cfg.Mesh.Path, logger)
	if err != nil {
		return err
	}
	start := time.Now()
	body, err := softbody.BuildFromMesh(mesh, cfg.Mesh.world(), cfg.buildConfig())
	if err != nil {
		return err
	}
	stats := body.Stats()
	logger.Info("built soft body",
		"surface", stats.SurfaceParticles,
		"interior", stats.InteriorParticles,
		"surfaceSprings", stats.SurfaceSprings,
		"interiorSprings", stats.InteriorSprings,
		"anchorSprings", stats.AnchorSprings,
		"elapsed", time.Since(start),
	)
	if cfg.Run.Pin {
		logger.Info("pinned particles", "count", body.PinBelow(cfg.Run.PinBelow), "below", cfg.Run.PinBelow)
	}

	rec := trace.Recorder{Every: cfg.Run.LogEvery}
	rp := cfg.Run
	start = time.Now()
	for tick := 0; tick < rp.Ticks; tick++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rec.Record(tick, float64(tick)*rp.TimeStep, body) {
			s, _ := rec.Last()
			logger.Debug("tick",
				"tick", s.Tick,
				"time", s.Time,
				"comY", s.CenterOfMass.Y,
				"kinetic", s.KineticEnergy,
				"maxStrain", s.MaxStrain,
			)
		}
		body.Step(rp.TimeStep, rp.GroundHeight, rp.Restitution)
	}
	final := trace.Take(rp.Ticks, float64(rp.Ticks)*rp.TimeStep, body)
	rec.Add(final)
	logger.Info("simulation done",
		"ticks", rp.Ticks,
		"elapsed", time.Since(start),
		"centerOfMass", final.CenterOfMass,
		"kinetic", final.KineticEnergy,
		"maxStrain", final.MaxStrain,
	)

	if opts.plot != "" {
		if err := rec.SavePlot(opts.plot); err != nil {
			return fmt.Errorf("saving plot: %w", err)
		}
		logger.Info("wrote plot", "path", opts.plot)
	}
	if opts.stlOut != "" {
		if err := writeSurface(opts.stlOut, mesh, body); err != nil {
			return fmt.Errorf("writing surface: %w", err)
		}
		logger.Info("wrote deformed surface", "path", opts.stlOut)
	}
	return nil
}

func loadMesh(path string, logger *slog.Logger) (softbody.Mesh, error) {
	if path == "" {
		return softbody.BoxMesh(r3.Box{Min: r3.Vec{X: -0.5, Y: -0.5, Z: -0.5}, Max: r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}}), nil
	}
	mesh, err := meshio.Load(path)
	if errors.Is(err, meshio.ErrNormalMismatch) {
		logger.Warn("mesh facet normals disagree with winding", "path", path, "err", err)
	} else if err != nil {
		return softbody.Mesh{}, err
	}
	logger.Info("loaded mesh", "path", path, "vertices", len(mesh.Vertices), "triangles", len(mesh.Triangles))
	return mesh, nil
}

// writeSurface writes the mesh triangles at the current surface particle
// positions. Surface particle i is mesh vertex i.
func writeSurface(path string, mesh softbody.Mesh, body *softbody.Body) error {
	deformed := softbody.Mesh{
		Vertices:  body.Positions(nil)[:body.SurfaceCount()],
		Triangles: mesh.Triangles,
	}
	model, err := meshio.Soup(deformed)
	if err != nil {
		return err
	}
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	err = meshio.WriteSTL(fp, model)
	if cerr := fp.Close(); err == nil {
		err = cerr
	}
	return err
}
