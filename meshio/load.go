// Package meshio reads triangle mesh files into soft body meshes.
//
// Binary STL is decoded natively. ASCII STL and Wavefront OBJ files are
// parsed with fauxgl. Triangle soups are welded into indexed meshes so that
// facets sharing a corner share a vertex.
package meshio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/softbody"
	"gonum.org/v1/gonum/spatial/r3"
)

// Load reads the mesh file at path and welds it with an inferred tolerance.
// The format is chosen by extension: .stl (binary or ASCII) or .obj.
// If the file's facet normals disagree with their winding the mesh is
// returned together with an error wrapping ErrNormalMismatch.
func Load(path string) (softbody.Mesh, error) {
	var (
		model []Triangle
		err   error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".stl":
		model, err = LoadSTL(path)
	case ".obj":
		model, err = LoadOBJ(path)
	default:
		return softbody.Mesh{}, fmt.Errorf("unsupported mesh file extension %q", ext)
	}
	if err != nil && !errors.Is(err, ErrNormalMismatch) {
		return softbody.Mesh{}, err
	}
	m, werr := Weld(model, 0)
	if werr != nil {
		return softbody.Mesh{}, fmt.Errorf("%s: %w", path, werr)
	}
	return m, err
}

// LoadSTL reads a binary or ASCII STL file.
func LoadSTL(path string) ([]Triangle, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	ascii, err := isASCIISTL(fp)
	if err != nil {
		return nil, err
	}
	if ascii {
		mesh, err := fauxgl.LoadSTL(path)
		if err != nil {
			return nil, err
		}
		return fromFauxgl(mesh), nil
	}
	if _, err := fp.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return ReadSTL(fp)
}

// LoadOBJ reads a Wavefront OBJ file. Polygonal faces are triangulated.
func LoadOBJ(path string) ([]Triangle, error) {
	mesh, err := fauxgl.LoadOBJ(path)
	if err != nil {
		return nil, err
	}
	return fromFauxgl(mesh), nil
}

// isASCIISTL reports whether the file starts with "solid" and its size does
// not match the triangle count of a binary header. Some binary exporters
// also start their header with "solid".
func isASCIISTL(fp *os.File) (bool, error) {
	var head [84]byte
	n, err := io.ReadFull(fp, head[:])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false, err
	}
	if !bytes.HasPrefix(head[:n], []byte("solid")) {
		return false, nil
	}
	if n < len(head) {
		return true, nil
	}
	info, err := fp.Stat()
	if err != nil {
		return false, err
	}
	count := int64(binary.LittleEndian.Uint32(head[80:]))
	return info.Size() != int64(len(head))+count*stlTriangleSize, nil
}

func fromFauxgl(mesh *fauxgl.Mesh) []Triangle {
	model := make([]Triangle, len(mesh.Triangles))
	for i, t := range mesh.Triangles {
		model[i] = Triangle{vec(t.V1.Position), vec(t.V2.Position), vec(t.V3.Position)}
	}
	return model
}

func vec(v fauxgl.Vector) r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }
