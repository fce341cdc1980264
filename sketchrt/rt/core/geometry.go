package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Color    mgl32.Vec4
}

var (
	DefaultNormal = mgl32.Vec3{0, 1, 0}
	White         = mgl32.Vec4{1, 1, 1, 1}
)

// Mesh is an incrementally built triangle list. Positions are taken as given;
// the transform stack is not applied.
type Mesh struct {
	vertices []Vertex
	indices  []uint32
	normal   mgl32.Vec3
	color    mgl32.Vec4
	version  uint64
}

func NewMesh() *Mesh {
	return &Mesh{
		normal: DefaultNormal,
		color:  White,
	}
}

// SetNormal sets the normal used by subsequent Vertex calls.
func (m *Mesh) SetNormal(x, y, z float32) {
	m.normal = mgl32.Vec3{x, y, z}
}

// SetColor sets the color used by subsequent Vertex calls.
func (m *Mesh) SetColor(r, g, b, a float32) {
	m.color = mgl32.Vec4{r, g, b, a}
}

// Vertex appends a vertex and returns its index.
func (m *Mesh) Vertex(x, y, z float32) uint32 {
	m.vertices = append(m.vertices, Vertex{
		Position: mgl32.Vec3{x, y, z},
		Normal:   m.normal,
		Color:    m.color,
	})
	m.version++
	return uint32(len(m.vertices) - 1)
}

func (m *Mesh) Index(i uint32) {
	m.indices = append(m.indices, i)
	m.version++
}

func (m *Mesh) Triangle(a, b, c uint32) {
	m.indices = append(m.indices, a, b, c)
	m.version++
}

// SetVertex overwrites the position of vertex i. Indices and the vertex count
// never change.
func (m *Mesh) SetVertex(i int, x, y, z float32) error {
	if i < 0 || i >= len(m.vertices) {
		return fmt.Errorf("set vertex %d of %d: %w", i, len(m.vertices), ErrIndexOutOfRange)
	}
	m.vertices[i].Position = mgl32.Vec3{x, y, z}
	m.version++
	return nil
}

func (m *Mesh) SetVertexNormal(i int, x, y, z float32) error {
	if i < 0 || i >= len(m.vertices) {
		return fmt.Errorf("set normal %d of %d: %w", i, len(m.vertices), ErrIndexOutOfRange)
	}
	m.vertices[i].Normal = mgl32.Vec3{x, y, z}
	m.version++
	return nil
}

func (m *Mesh) SetVertexColor(i int, r, g, b, a float32) error {
	if i < 0 || i >= len(m.vertices) {
		return fmt.Errorf("set color %d of %d: %w", i, len(m.vertices), ErrIndexOutOfRange)
	}
	m.vertices[i].Color = mgl32.Vec4{r, g, b, a}
	m.version++
	return nil
}

func (m *Mesh) VertexCount() int { return len(m.vertices) }
func (m *Mesh) IndexCount() int  { return len(m.indices) }

// Version changes on every mutation; backends use it to skip re-uploads.
func (m *Mesh) Version() uint64 { return m.version }

func (m *Mesh) Positions() []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(m.vertices))
	for i, v := range m.vertices {
		out[i] = v.Position
	}
	return out
}

func (m *Mesh) Indices() []uint32 {
	return append([]uint32(nil), m.indices...)
}

func (m *Mesh) Vertices() []Vertex {
	return append([]Vertex(nil), m.vertices...)
}

func (m *Mesh) Validate() error {
	return validateTriangles(len(m.vertices), m.indices)
}

// appendTransformed appends another triangle list with positions and
// normals transformed by model.
func (m *Mesh) appendTransformed(vertices []Vertex, indices []uint32, model mgl32.Mat4) {
	base := uint32(len(m.vertices))
	nm := normalMatrix(model)
	for _, v := range vertices {
		m.vertices = append(m.vertices, Vertex{
			Position: mgl32.TransformCoordinate(v.Position, model),
			Normal:   safeNormalize(nm.Mul3x1(v.Normal)),
			Color:    v.Color,
		})
	}
	for _, idx := range indices {
		m.indices = append(m.indices, base+idx)
	}
	m.version++
}

// Append copies the triangles of other into m, transformed by model.
func (m *Mesh) Append(other *Mesh, model mgl32.Mat4) {
	m.appendTransformed(other.vertices, other.indices, model)
}

// Freeze copies the mesh into an immutable Geometry.
func (m *Mesh) Freeze() (*Geometry, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &Geometry{vertices: m.Vertices(), indices: m.Indices()}, nil
}

// Geometry is an immutable triangle list.
type Geometry struct {
	vertices []Vertex
	indices  []uint32
}

// NewGeometry validates and copies the given triangle list.
func NewGeometry(vertices []Vertex, indices []uint32) (*Geometry, error) {
	if err := validateTriangles(len(vertices), indices); err != nil {
		return nil, err
	}
	return &Geometry{
		vertices: append([]Vertex(nil), vertices...),
		indices:  append([]uint32(nil), indices...),
	}, nil
}

func (g *Geometry) VertexCount() int { return len(g.vertices) }
func (g *Geometry) IndexCount() int  { return len(g.indices) }

func (g *Geometry) Vertices() []Vertex {
	return append([]Vertex(nil), g.vertices...)
}

func (g *Geometry) Indices() []uint32 {
	return append([]uint32(nil), g.indices...)
}

func validateTriangles(vertexCount int, indices []uint32) error {
	if len(indices)%3 != 0 {
		return fmt.Errorf("index count %d is not a multiple of 3: %w", len(indices), ErrIndexOutOfRange)
	}
	for i, idx := range indices {
		if int(idx) >= vertexCount {
			return fmt.Errorf("index %d at %d exceeds vertex count %d: %w", idx, i, vertexCount, ErrIndexOutOfRange)
		}
	}
	return nil
}
