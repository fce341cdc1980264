package core

import (
	"fmt"

	"github.com/barkimedes/go-deepcopy"
	"github.com/go-gl/mathgl/mgl32"
)

type DrawSource int

const (
	SourceImmediate DrawSource = iota
	SourceMesh
	SourceGeometry
)

// BufferKey identifies uploaded vertex data across frames. Immediate draws
// have a zero key and are uploaded every frame.
type BufferKey struct {
	Source  DrawSource
	Slot    uint32
	Gen     uint32
	Version uint64
}

func (k BufferKey) Cacheable() bool { return k.Source != SourceImmediate }

type DrawItem struct {
	Key      BufferKey
	Vertices []Vertex
	Indices  []uint32
	Model    mgl32.Mat4
	Material ResolvedMaterial
}

// FrameBatch is everything a backend needs to render one frame. It is a
// private copy; later scene mutation does not reach it.
type FrameBatch struct {
	Scene          uint32
	Frame          uint64
	Elapsed        float64
	Dt             float64
	Width          int
	Height         int
	Background     mgl32.Vec4
	Mode           CameraMode
	CameraPosition mgl32.Vec3
	View           mgl32.Mat4
	Projection     mgl32.Mat4
	Lights         []Light
	Draws          []DrawItem
}

func (b *FrameBatch) ViewProjection() mgl32.Mat4 {
	return b.Projection.Mul4(b.View)
}

func (b *FrameBatch) VertexCount() int {
	n := 0
	for _, d := range b.Draws {
		n += len(d.Vertices)
	}
	return n
}

func (b *FrameBatch) TriangleCount() int {
	n := 0
	for _, d := range b.Draws {
		n += len(d.Indices) / 3
	}
	return n
}

func snapshotBatch(b *FrameBatch) (*FrameBatch, error) {
	out, err := deepcopy.Anything(b)
	if err != nil {
		return nil, fmt.Errorf("snapshot frame %d: %w", b.Frame, err)
	}
	return out.(*FrameBatch), nil
}
