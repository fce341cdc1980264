package core

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildGrid(n int) *Mesh {
	m := NewMesh()
	for z := 0; z < n; z++ {
		for x := 0; x < n; x++ {
			m.Vertex(float32(x), 0, float32(z))
		}
	}
	for z := 0; z < n-1; z++ {
		for x := 0; x < n-1; x++ {
			tl := uint32(z*n + x)
			tr := tl + 1
			bl := tl + uint32(n)
			br := bl + 1
			m.Triangle(tl, bl, tr)
			m.Triangle(tr, bl, br)
		}
	}
	return m
}

func TestMesh_SetVertexKeepsTopology(t *testing.T) {
	m := buildGrid(20)
	require.Equal(t, 400, m.VertexCount())
	require.Equal(t, 2166, m.IndexCount())
	indices := m.Indices()

	var prev = m.Positions()
	for frame := 0; frame < 10; frame++ {
		for i := 0; i < m.VertexCount(); i++ {
			p := prev[i]
			h := float32(math.Sin(float64(frame) + float64(i)*0.1))
			require.NoError(t, m.SetVertex(i, p[0], h, p[2]))
		}

		assert.Equal(t, 400, m.VertexCount(), "frame %d", frame)
		assert.Equal(t, indices, m.Indices(), "frame %d", frame)
		assert.NoError(t, m.Validate())

		cur := m.Positions()
		assert.NotEqual(t, prev, cur, "frame %d positions should move", frame)
		prev = cur
	}
}

func TestMesh_Defaults(t *testing.T) {
	m := NewMesh()
	m.Vertex(1, 2, 3)
	m.SetColor(1, 0, 0, 1)
	m.SetNormal(0, 0, 1)
	m.Vertex(4, 5, 6)

	v := m.Vertices()
	assert.Equal(t, DefaultNormal, v[0].Normal)
	assert.Equal(t, White, v[0].Color)
	assert.Equal(t, float32(1), v[1].Color[0])
	assert.Equal(t, float32(0), v[1].Color[1])
	assert.Equal(t, float32(1), v[1].Normal[2])
}

func TestMesh_SetVertexOutOfRange(t *testing.T) {
	m := NewMesh()
	m.Vertex(0, 0, 0)
	version := m.Version()

	err := m.SetVertex(1, 1, 1, 1)
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	assert.ErrorIs(t, m.SetVertex(-1, 0, 0, 0), ErrIndexOutOfRange)
	assert.ErrorIs(t, m.SetVertexColor(3, 0, 0, 0, 0), ErrIndexOutOfRange)
	assert.ErrorIs(t, m.SetVertexNormal(3, 0, 0, 0), ErrIndexOutOfRange)
	assert.Equal(t, version, m.Version())
}

func TestMesh_Validate(t *testing.T) {
	m := NewMesh()
	m.Vertex(0, 0, 0)
	m.Vertex(1, 0, 0)
	m.Vertex(0, 1, 0)
	m.Index(0)
	m.Index(1)
	assert.ErrorIs(t, m.Validate(), ErrIndexOutOfRange)

	m.Index(3)
	assert.ErrorIs(t, m.Validate(), ErrIndexOutOfRange)

	_, err := m.Freeze()
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = NewGeometry(m.Vertices(), []uint32{0, 1, 2})
	assert.NoError(t, err)
}

func TestPrimitives(t *testing.T) {
	box := BoxMesh(1, 2, 3, White)
	assert.Equal(t, 24, box.VertexCount())
	assert.Equal(t, 36, box.IndexCount())
	assert.NoError(t, box.Validate())
	for _, p := range box.Positions() {
		assert.InDelta(t, 0.5, math.Abs(float64(p[0])), 1e-6)
		assert.InDelta(t, 1.0, math.Abs(float64(p[1])), 1e-6)
		assert.InDelta(t, 1.5, math.Abs(float64(p[2])), 1e-6)
	}

	sphere, err := SphereMesh(2, DefaultSphereSectors, DefaultSphereStacks, White)
	require.NoError(t, err)
	assert.Equal(t, (DefaultSphereStacks+1)*(DefaultSphereSectors+1), sphere.VertexCount())
	assert.Equal(t, DefaultSphereSectors*(2*DefaultSphereStacks-2)*3, sphere.IndexCount())
	assert.NoError(t, sphere.Validate())
	for _, p := range sphere.Positions() {
		assert.InDelta(t, 2.0, p.Len(), 1e-4)
	}

	_, err = SphereMesh(1, 2, 2, White)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	plane := PlaneMesh(4, 4, White)
	assert.Equal(t, 4, plane.VertexCount())
	assert.Equal(t, 6, plane.IndexCount())
}

func TestRectMesh(t *testing.T) {
	sharp, err := RectMesh(10, 20, 30, 40, nil, White)
	require.NoError(t, err)
	assert.Equal(t, 4, sharp.VertexCount())
	assert.Equal(t, 6, sharp.IndexCount())
	assert.NoError(t, sharp.Validate())
	first := sharp.Positions()[0]
	assert.InDelta(t, 10, first[0], 1e-6)
	assert.InDelta(t, 20, first[1], 1e-6)

	round, err := RectMesh(10, 20, 30, 40, []float32{5}, White)
	require.NoError(t, err)
	n := 4 * (RectCornerSegments + 1)
	assert.Equal(t, n, round.VertexCount())
	assert.Equal(t, (n-2)*3, round.IndexCount())
	assert.NoError(t, round.Validate())
	mid := round.Positions()[RectCornerSegments/2]
	assert.InDelta(t, 15-5*math.Sqrt2/2, mid[0], 1e-4)
	assert.InDelta(t, 25-5*math.Sqrt2/2, mid[1], 1e-4)

	mixed, err := RectMesh(0, 0, 10, 10, []float32{0, 2, 0, 2}, White)
	require.NoError(t, err)
	assert.Equal(t, 2+2*(RectCornerSegments+1), mixed.VertexCount())

	clamped, err := RectMesh(0, 0, 30, 40, []float32{100}, White)
	require.NoError(t, err)
	for _, p := range clamped.Positions() {
		assert.True(t, p[0] >= -1e-4 && p[0] <= 30+1e-4, "x %v", p[0])
		assert.True(t, p[1] >= -1e-4 && p[1] <= 40+1e-4, "y %v", p[1])
		assert.Equal(t, float32(0), p[2])
	}

	_, err = RectMesh(0, 0, 0, 5, nil, White)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = RectMesh(0, 0, 5, 5, []float32{1, 2}, White)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = RectMesh(0, 0, 5, 5, []float32{-1}, White)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRectStrokeMesh(t *testing.T) {
	m, err := RectStrokeMesh(10, 20, 30, 40, nil, 2, White)
	require.NoError(t, err)
	assert.Equal(t, 16, m.VertexCount())
	assert.Equal(t, 24, m.IndexCount())
	assert.NoError(t, m.Validate())
	for _, p := range m.Positions() {
		assert.True(t, p[0] >= 9-1e-4 && p[0] <= 41+1e-4, "x %v", p[0])
		assert.True(t, p[1] >= 19-1e-4 && p[1] <= 61+1e-4, "y %v", p[1])
		assert.InDelta(t, strokeLift, p[2], 1e-6)
	}

	_, err = RectStrokeMesh(0, 0, 5, 5, nil, 0, White)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
