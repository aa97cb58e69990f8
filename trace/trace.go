// Package trace records soft body diagnostics over a simulation run
// and plots them.
package trace

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Source is implemented by *softbody.Body.
type Source interface {
	CenterOfMass() r3.Vec
	KineticEnergy() float64
	MaxStrain() float64
}

// Sample is the state of a body at one tick.
type Sample struct {
	Tick          int
	Time          float64
	CenterOfMass  r3.Vec
	KineticEnergy float64
	MaxStrain     float64
}

// Recorder accumulates samples. The zero value records every tick.
type Recorder struct {
	// Every is the tick interval between samples.
	// Values below 1 record every tick.
	Every   int
	samples []Sample
}

// Record samples src if tick falls on the recording interval and reports
// whether a sample was taken.
func (r *Recorder) Record(tick int, time float64, src Source) bool {
	if r.Every > 1 && tick%r.Every != 0 {
		return false
	}
	r.Add(Take(tick, time, src))
	return true
}

// Add appends s regardless of the recording interval.
func (r *Recorder) Add(s Sample) { r.samples = append(r.samples, s) }

// Take samples src.
func Take(tick int, time float64, src Source) Sample {
	return Sample{
		Tick:          tick,
		Time:          time,
		CenterOfMass:  src.CenterOfMass(),
		KineticEnergy: src.KineticEnergy(),
		MaxStrain:     src.MaxStrain(),
	}
}

// Samples returns the recorded samples in recording order.
func (r *Recorder) Samples() []Sample { return r.samples }

// Last returns the most recent sample.
func (r *Recorder) Last() (Sample, bool) {
	if len(r.samples) == 0 {
		return Sample{}, false
	}
	return r.samples[len(r.samples)-1], true
}

// Reset discards the recorded samples. The interval is kept.
func (r *Recorder) Reset() { r.samples = r.samples[:0] }

var errNoSamples = errors.New("no samples recorded")

// SavePlot writes a PNG with the center of mass height and the kinetic
// energy plotted against time to path.
func (r *Recorder) SavePlot(path string) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	err = r.WritePlot(fp, 6*vg.Inch, 6*vg.Inch)
	if cerr := fp.Close(); err == nil {
		err = cerr
	}
	return err
}

// WritePlot writes the PNG of SavePlot with the given size to w.
func (r *Recorder) WritePlot(w io.Writer, width, height vg.Length) error {
	if len(r.samples) == 0 {
		return errNoSamples
	}
	heights := make(plotter.XYs, len(r.samples))
	energy := make(plotter.XYs, len(r.samples))
	for i, s := range r.samples {
		heights[i] = plotter.XY{X: s.Time, Y: s.CenterOfMass.Y}
		energy[i] = plotter.XY{X: s.Time, Y: s.KineticEnergy}
	}
	top, err := linePlot("Center of mass height", "height", heights)
	if err != nil {
		return err
	}
	bottom, err := linePlot("Kinetic energy", "energy", energy)
	if err != nil {
		return err
	}

	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Millimeter, PadTop: vg.Millimeter, PadBottom: vg.Millimeter}
	plots := [][]*plot.Plot{{top}, {bottom}}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("writing plot: %w", err)
	}
	return nil
}

func linePlot(title, ylabel string, xys plotter.XYs) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time [s]"
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, err
	}
	p.Add(line)
	return p, nil
}
