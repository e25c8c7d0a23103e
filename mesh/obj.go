package mesh

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

type objKey struct {
	pos mgl32.Vec3
	uv  mgl32.Vec2
}

type objReader struct {
	positions []mgl32.Vec3
	texcoords []mgl32.Vec2
	unique    map[objKey]uint32
	mesh      *Mesh
	line      int
}

func (r *objReader) errorf(format string, args ...interface{}) error {
	return errors.Errorf("[line %d] "+format, append([]interface{}{r.line}, args...)...)
}

// LoadOBJ reads a Wavefront OBJ file, see ReadOBJ
func LoadOBJ(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening model")
	}
	defer f.Close()

	m, err := ReadOBJ(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	logger.Infof("loaded %s: %d vertices, %d triangles", path, len(m.Vertices), m.Triangles())
	return m, nil
}

// ReadOBJ parses the geometry of a Wavefront OBJ stream. Positions and
// texture coordinates are read, faces are fan triangulated and vertices
// sharing a position and texture coordinate are merged. Normals, materials
// and grouping are ignored.
func ReadOBJ(in io.Reader) (*Mesh, error) {
	r := &objReader{
		unique: make(map[objKey]uint32),
		mesh:   &Mesh{},
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		r.line++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		var err error
		switch fields[0] {
		case "v":
			err = r.vertex(fields[1:])
		case "vt":
			err = r.texcoord(fields[1:])
		case "f":
			err = r.face(fields[1:])
		}
		if err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading obj")
	}
	if len(r.mesh.Indices) == 0 {
		return nil, errors.New("obj has no faces")
	}
	return r.mesh, nil
}

func (r *objReader) floats(fields []string, min int) ([]float32, error) {
	if len(fields) < min {
		return nil, r.errorf("expected %d values, got %d", min, len(fields))
	}
	ret := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, r.errorf("bad number '%s'", f)
		}
		ret[i] = float32(v)
	}
	return ret, nil
}

func (r *objReader) vertex(fields []string) error {
	v, err := r.floats(fields, 3)
	if err != nil {
		return err
	}
	r.positions = append(r.positions, mgl32.Vec3{v[0], v[1], v[2]})
	return nil
}

func (r *objReader) texcoord(fields []string) error {
	v, err := r.floats(fields, 1)
	if err != nil {
		return err
	}
	uv := mgl32.Vec2{v[0], 0}
	if len(v) > 1 {
		uv[1] = v[1]
	}
	r.texcoords = append(r.texcoords, uv)
	return nil
}

// resolve turns a 1 based or negative relative OBJ index into a slice index
func (r *objReader) resolve(field string, count int, what string) (int, error) {
	i, err := strconv.Atoi(field)
	if err != nil {
		return 0, r.errorf("bad %s index '%s'", what, field)
	}
	switch {
	case i > 0 && i <= count:
		return i - 1, nil
	case i < 0 && -i <= count:
		return count + i, nil
	}
	return 0, r.errorf("%s index %d out of range (%d defined)", what, i, count)
}

func (r *objReader) corner(field string) (uint32, error) {
	parts := strings.Split(field, "/")

	pi, err := r.resolve(parts[0], len(r.positions), "vertex")
	if err != nil {
		return 0, err
	}
	key := objKey{pos: r.positions[pi]}

	if len(parts) > 1 && parts[1] != "" {
		ti, err := r.resolve(parts[1], len(r.texcoords), "texture")
		if err != nil {
			return 0, err
		}
		uv := r.texcoords[ti]
		key.uv = mgl32.Vec2{uv[0], 1 - uv[1]}
	}

	if idx, ok := r.unique[key]; ok {
		return idx, nil
	}
	idx := uint32(len(r.mesh.Vertices))
	r.mesh.Vertices = append(r.mesh.Vertices, Vertex{Pos: key.pos, Color: white, TexCoord: key.uv})
	r.unique[key] = idx
	return idx, nil
}

func (r *objReader) face(fields []string) error {
	if len(fields) < 3 {
		return r.errorf("face needs at least 3 vertices, got %d", len(fields))
	}
	corners := make([]uint32, len(fields))
	for i, f := range fields {
		idx, err := r.corner(f)
		if err != nil {
			return err
		}
		corners[i] = idx
	}
	for i := 1; i+1 < len(corners); i++ {
		r.mesh.Indices = append(r.mesh.Indices, corners[0], corners[i], corners[i+1])
	}
	return nil
}
