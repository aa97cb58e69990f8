package meshio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/spatial/r3"
)

// Triangle is a triangle of a triangle soup.
type Triangle [3]r3.Vec

// ErrNormalMismatch is returned by ReadSTL together with the full triangle
// list when stored facet normals disagree with the vertex winding. Many
// exporters write sloppy normals so callers may ignore it.
var ErrNormalMismatch = errors.New("STL facet normal does not match vertex winding")

const (
	stlTriangleSize = 50
)

// stlHeader is the fixed binary STL header.
type stlHeader struct {
	_     [80]uint8
	Count uint32
}

// stlTriangle is a binary STL facet record.
type stlTriangle struct {
	Normal   [3]float32
	Vertices [3][3]float32
}

// ReadSTL reads a binary STL file. Facets with NaN or infinite components
// or with coincident vertices are rejected with an error naming the facet.
func ReadSTL(r io.Reader) ([]Triangle, error) {
	var header stlHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, errors.New("encountered EOF while reading STL header")
		}
		return nil, fmt.Errorf("STL header read failed: %w", err)
	}
	if header.Count == 0 {
		return nil, errors.New("STL header indicates 0 triangles present")
	}
	var (
		buf        [stlTriangleSize]byte
		facet      stlTriangle
		mismatches int
	)
	// Count comes from the file; do not trust it for preallocation.
	output := make([]Triangle, 0, min(int(header.Count), 1<<16))
	for i := 0; i < int(header.Count); i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("%d/%d STL triangles read: %w", i, header.Count, err)
		}
		facet.get(buf[:])
		err := facet.validate()
		switch {
		case errors.Is(err, ErrNormalMismatch):
			mismatches++
		case err != nil:
			return nil, fmt.Errorf("STL triangle %d: %w", i, err)
		}
		output = append(output, facet.triangle())
	}
	if mismatches > 0 {
		return output, fmt.Errorf("%d of %d triangles: %w", mismatches, len(output), ErrNormalMismatch)
	}
	return output, nil
}

// WriteSTL writes triangles to w in binary STL format with normals
// computed from the vertex winding.
func WriteSTL(w io.Writer, model []Triangle) error {
	if len(model) == 0 {
		return errors.New("empty triangle slice")
	}
	if uint64(len(model)) > math.MaxUint32 {
		return errors.New("too many triangles for STL")
	}
	header := stlHeader{Count: uint32(len(model))}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return err
	}
	var buf [stlTriangleSize]byte
	for _, t := range model {
		var facet stlTriangle
		facet.Normal = to3F32(t.normal())
		for k := range t {
			facet.Vertices[k] = to3F32(t[k])
		}
		facet.put(buf[:])
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

func (t Triangle) normal() r3.Vec {
	n := r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
	if norm := r3.Norm(n); norm > 0 {
		return r3.Scale(1/norm, n)
	}
	return r3.Vec{}
}

func (t *stlTriangle) put(b []byte) {
	_ = b[stlTriangleSize-1] // early bounds check
	put3F32(b, t.Normal)
	for k := range t.Vertices {
		put3F32(b[12*(k+1):], t.Vertices[k])
	}
	binary.LittleEndian.PutUint16(b[48:], 0)
}

func (t *stlTriangle) get(b []byte) {
	_ = b[stlTriangleSize-1]
	get3F32(b, &t.Normal)
	for k := range t.Vertices {
		get3F32(b[12*(k+1):], &t.Vertices[k])
	}
	// Attribute byte count ignored.
}

func put3F32(b []byte, f [3]float32) {
	_ = b[11]
	binary.LittleEndian.PutUint32(b, math.Float32bits(f[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(f[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(f[2]))
}

func get3F32(b []byte, f *[3]float32) {
	_ = b[11]
	f[0] = math.Float32frombits(binary.LittleEndian.Uint32(b))
	f[1] = math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
	f[2] = math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))
}

func bad3F32(f [3]float32) bool {
	for _, v := range f {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return true
		}
	}
	return false
}

func (t *stlTriangle) validate() error {
	const (
		degenerateTol = 1e-12
		normalTol     = 5e-2
	)
	if bad3F32(t.Normal) {
		return errors.New("inf/NaN STL triangle normal")
	}
	for _, v := range t.Vertices {
		if bad3F32(v) {
			return errors.New("inf/NaN STL triangle vertex")
		}
	}
	v := t.Vertices
	if equalWithin3F32(v[0], v[1], degenerateTol) ||
		equalWithin3F32(v[1], v[2], degenerateTol) ||
		equalWithin3F32(v[2], v[0], degenerateTol) {
		return errors.New("triangle is degenerate")
	}
	if t.Normal == ([3]float32{}) {
		return nil // Zero normal means "compute from winding".
	}
	calc := to3F32(t.triangle().normal())
	neg := [3]float32{-calc[0], -calc[1], -calc[2]}
	if !equalWithin3F32(calc, t.Normal, normalTol) && !equalWithin3F32(neg, t.Normal, normalTol) {
		return ErrNormalMismatch
	}
	return nil
}

func equalWithin3F32(a, b [3]float32, tol float32) bool {
	return math32.Abs(a[0]-b[0]) <= tol &&
		math32.Abs(a[1]-b[1]) <= tol &&
		math32.Abs(a[2]-b[2]) <= tol
}

func (t *stlTriangle) triangle() Triangle {
	var tri Triangle
	for k, v := range t.Vertices {
		tri[k] = r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
	}
	return tri
}

func to3F32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}
