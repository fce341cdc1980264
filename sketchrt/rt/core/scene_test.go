package core

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScene() *Scene {
	return NewScene(SceneConfig{Width: 640, Height: 480, MaxLights: 8})
}

func TestScene_RecordedGeometryIsWellFormed(t *testing.T) {
	s := newTestScene()

	require.NoError(t, s.BeginGeometry())
	s.PushMatrix()
	s.Translate(5, 0, 0)
	require.NoError(t, s.Sphere(1))
	require.NoError(t, s.PopMatrix())
	s.Rotate(0.5)
	require.NoError(t, s.Box(1, 1, 1))
	g, err := s.EndGeometry()
	require.NoError(t, err)

	vc, _ := s.GeometryVertexCount(g)
	ic, _ := s.GeometryIndexCount(g)
	assert.Equal(t, (DefaultSphereStacks+1)*(DefaultSphereSectors+1)+24, vc)
	assert.Equal(t, 0, ic%3)
	indices, err := s.GeometryIndices(g)
	require.NoError(t, err)
	for _, idx := range indices {
		if int(idx) >= vc {
			t.Fatalf("index %d out of range %d", idx, vc)
		}
	}
}

func TestScene_RecordingBakesTransform(t *testing.T) {
	s := newTestScene()
	require.NoError(t, s.BeginGeometry())
	s.Translate(5, 0, 0)
	require.NoError(t, s.Box(1, 1, 1))
	g, err := s.EndGeometry()
	require.NoError(t, err)

	require.NoError(t, s.BeginFrame(0))
	require.NoError(t, s.DrawGeometry(g))
	batch, err := s.EndFrame()
	require.NoError(t, err)

	require.Len(t, batch.Draws, 1)
	assert.Equal(t, mgl32.Ident4(), batch.Draws[0].Model)
	for _, v := range batch.Draws[0].Vertices {
		assert.InDelta(t, 5, v.Position[0], 0.5+1e-5)
	}
}

func TestScene_RecordingErrors(t *testing.T) {
	s := newTestScene()

	_, err := s.EndGeometry()
	assert.ErrorIs(t, err, ErrNotRecording)

	require.NoError(t, s.BeginGeometry())
	assert.ErrorIs(t, s.BeginGeometry(), ErrAlreadyRecording)

	_, err = s.EndGeometry()
	assert.ErrorIs(t, err, ErrEmptyRecording)
	assert.False(t, s.Recording())
}

func TestScene_EndFrameRejectsOpenRecording(t *testing.T) {
	s := newTestScene()

	require.NoError(t, s.BeginFrame(0))
	require.NoError(t, s.BeginGeometry())
	require.NoError(t, s.Box(1, 1, 1))
	_, err := s.EndFrame()
	assert.ErrorIs(t, err, ErrAlreadyRecording)
	assert.False(t, s.Recording())
	assert.False(t, s.FrameActive())

	// later primitives reach the draw list again
	require.NoError(t, s.BeginFrame(0))
	require.NoError(t, s.Box(1, 1, 1))
	batch, err := s.EndFrame()
	require.NoError(t, err)
	assert.Len(t, batch.Draws, 1)
}

func TestScene_RecordingOutsideFrameSurvivesFrames(t *testing.T) {
	s := newTestScene()

	require.NoError(t, s.BeginGeometry())
	require.NoError(t, s.BeginFrame(0))
	require.NoError(t, s.Plane(1, 1))
	_, err := s.EndFrame()
	require.NoError(t, err)

	g, err := s.EndGeometry()
	require.NoError(t, err)
	vc, err := s.GeometryVertexCount(g)
	require.NoError(t, err)
	assert.Equal(t, 4, vc)
}

func TestScene_ImmediatePrimitivesNeedFrame(t *testing.T) {
	s := newTestScene()
	assert.ErrorIs(t, s.Box(1, 1, 1), ErrFrameNotActive)

	require.NoError(t, s.BeginFrame(0))
	s.Fill(1, 0, 0, 1)
	s.PushMatrix()
	s.Translate(0, 3, 0)
	require.NoError(t, s.Plane(2, 2))
	require.NoError(t, s.PopMatrix())
	batch, err := s.EndFrame()
	require.NoError(t, err)

	require.Len(t, batch.Draws, 1)
	d := batch.Draws[0]
	assert.False(t, d.Key.Cacheable())
	for _, v := range d.Vertices {
		assert.InDelta(t, 3, v.Position[1], 1+1e-5)
		assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, v.Color)
	}
}

func TestScene_RectFillAndStroke(t *testing.T) {
	s := newTestScene()
	assert.ErrorIs(t, s.Rect(0, 0, 10, 10), ErrFrameNotActive)

	require.NoError(t, s.BeginFrame(0))
	s.Fill(1, 0, 0, 1)
	require.NoError(t, s.Rect(0, 0, 10, 10))
	require.NoError(t, s.Rect(0, 0, 10, 10, 2))
	assert.ErrorIs(t, s.Rect(0, 0, -1, 10), ErrInvalidArgument)
	assert.ErrorIs(t, s.Rect(0, 0, 10, 10, 1, 2, 3), ErrInvalidArgument)
	batch, err := s.EndFrame()
	require.NoError(t, err)

	require.Len(t, batch.Draws, 4)
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, batch.Draws[0].Vertices[0].Color)
	assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, batch.Draws[1].Vertices[0].Color)
	assert.Len(t, batch.Draws[1].Vertices, 16)
	assert.Len(t, batch.Draws[2].Vertices, 4*(RectCornerSegments+1))
}

func TestScene_NoFillNoStroke(t *testing.T) {
	s := newTestScene()
	assert.ErrorIs(t, s.StrokeWeight(0), ErrInvalidArgument)

	require.NoError(t, s.BeginFrame(0))
	s.NoStroke()
	s.Translate(5, 0, 0)
	require.NoError(t, s.Rect(0, 0, 1, 1))

	s.NoFill()
	require.NoError(t, s.Box(1, 1, 1))
	require.NoError(t, s.Rect(0, 0, 1, 1))

	s.Stroke(0, 1, 0, 1)
	require.NoError(t, s.StrokeWeight(0.5))
	require.NoError(t, s.Rect(0, 0, 1, 1))

	s.Fill(1, 1, 1, 1)
	require.NoError(t, s.Box(1, 1, 1))
	batch, err := s.EndFrame()
	require.NoError(t, err)

	require.Len(t, batch.Draws, 3)
	for _, v := range batch.Draws[0].Vertices {
		assert.InDelta(t, 5.5, v.Position[0], 0.5+1e-5)
	}
	stroke := batch.Draws[1]
	assert.Equal(t, mgl32.Vec4{0, 1, 0, 1}, stroke.Vertices[0].Color)
	for _, v := range stroke.Vertices {
		assert.InDelta(t, 5.5, v.Position[0], 0.75+1e-5)
	}
	assert.Len(t, batch.Draws[2].Vertices, 24)

	s.NoFill()
	assert.ErrorIs(t, s.Box(1, 1, 1), ErrFrameNotActive)
}

func TestScene_MeshDrawSnapshotsVertices(t *testing.T) {
	s := newTestScene()
	m, err := s.CreateMesh()
	require.NoError(t, err)
	for _, p := range [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}} {
		_, err := s.MeshVertex(m, p[0], p[1], p[2])
		require.NoError(t, err)
	}
	require.NoError(t, s.MeshTriangle(m, 0, 1, 2))

	require.NoError(t, s.BeginFrame(0))
	require.NoError(t, s.DrawMesh(m))
	require.NoError(t, s.SetVertex(m, 0, 9, 9, 9))
	batch, err := s.EndFrame()
	require.NoError(t, err)

	assert.Equal(t, mgl32.Vec3{0, 0, 0}, batch.Draws[0].Vertices[0].Position)
	assert.Equal(t, SourceMesh, batch.Draws[0].Key.Source)

	positions, err := s.MeshPositions(m)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{9, 9, 9}, positions[0])
}

func TestScene_DrawIncompleteMesh(t *testing.T) {
	s := newTestScene()
	m, _ := s.CreateMesh()
	_, _ = s.MeshVertex(m, 0, 0, 0)
	require.NoError(t, s.MeshIndex(m, 0))

	assert.ErrorIs(t, s.DrawMesh(m), ErrFrameNotActive)
	require.NoError(t, s.BeginFrame(0))
	assert.ErrorIs(t, s.DrawMesh(m), ErrIndexOutOfRange)
}

func TestScene_MaterialSelectionResetsAtFrameEnd(t *testing.T) {
	s := newTestScene()
	red, err := s.CreateMaterial()
	require.NoError(t, err)
	require.NoError(t, s.SetFloat4(red, "base_color", 1, 0, 0, 1))

	require.NoError(t, s.BeginFrame(0))
	require.NoError(t, s.UseMaterial(red))
	require.NoError(t, s.Box(1, 1, 1))
	batch, err := s.EndFrame()
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, batch.Draws[0].Material.BaseColor)
	assert.False(t, batch.Draws[0].Material.Unlit)

	require.NoError(t, s.BeginFrame(0))
	require.NoError(t, s.Box(1, 1, 1))
	batch, err = s.EndFrame()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaterial(), batch.Draws[0].Material)
}

func TestScene_MaterialOverwrite(t *testing.T) {
	s := newTestScene()
	h, _ := s.CreateMaterial()
	require.NoError(t, s.SetFloat(h, "metallic", 0.1))
	require.NoError(t, s.SetFloat(h, "metallic", 0.9))

	v, err := s.MaterialFloat(h, "metallic")
	require.NoError(t, err)
	assert.Equal(t, float32(0.9), v)

	r, err := s.ResolveMaterial(h)
	require.NoError(t, err)
	assert.Equal(t, float32(0.9), r.Metallic)
}

func TestScene_MaterialGettersReportDefaults(t *testing.T) {
	s := newTestScene()
	h, _ := s.CreateMaterial()

	rough, err := s.MaterialFloat(h, "roughness")
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), rough)

	base, err := s.MaterialFloat4(h, "base_color")
	require.NoError(t, err)
	assert.Equal(t, White, base)

	require.NoError(t, s.SetFloat4(h, "color", 1, 0, 0, 1))
	base, err = s.MaterialFloat4(h, "base_color")
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, base)

	_, err = s.MaterialFloat(h, "base_color")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.MaterialFloat(h, "wobble")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetFloat(h, "wobble", 2))
	wobble, err := s.MaterialFloat(h, "wobble")
	require.NoError(t, err)
	assert.Equal(t, float32(2), wobble)
}

func TestScene_MissingRequiredParameter(t *testing.T) {
	s := newTestScene()
	h, _ := s.CreateMaterialFor(StandardPipeline.Require("base_color"))

	require.NoError(t, s.BeginFrame(0))
	require.NoError(t, s.UseMaterial(h))
	assert.ErrorIs(t, s.Box(1, 1, 1), ErrMissingParameter)

	require.NoError(t, s.SetFloat4(h, "color", 0, 0, 1, 1))
	assert.NoError(t, s.Box(1, 1, 1))
}

func TestScene_LightsInRegistrationOrder(t *testing.T) {
	s := newTestScene()
	d, err := s.CreateDirectionalLight(1, 1, 1, 3)
	require.NoError(t, err)
	_, err = s.CreatePointLight(1, 0.5, 0.2, 10, 50)
	require.NoError(t, err)
	sp, err := s.CreateSpotLight(0.2, 0.2, 1, 5, 40, 0.2, 0.4)
	require.NoError(t, err)

	require.NoError(t, s.LightLookAt(d, 0, -1, 0))
	require.NoError(t, s.LightPosition(sp, 0, 10, 0))

	lights := s.Lights()
	require.Len(t, lights, 3)
	assert.Equal(t, LightDirectional, lights[0].Kind)
	assert.Equal(t, LightPoint, lights[1].Kind)
	assert.Equal(t, LightSpot, lights[2].Kind)
	assert.True(t, lights[0].Direction().ApproxEqual(mgl32.Vec3{0, -1, 0}))

	spot, err := s.Light(sp)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{0, 10, 0}, spot.Position)
}

func TestScene_LightCapKeepsFirstRegistered(t *testing.T) {
	s := NewScene(SceneConfig{Width: 100, Height: 100, MaxLights: 2})
	for i := 0; i < 4; i++ {
		_, err := s.CreatePointLight(1, 1, 1, float32(i), 10)
		require.NoError(t, err)
	}

	require.NoError(t, s.BeginFrame(0))
	batch, err := s.EndFrame()
	require.NoError(t, err)
	require.Len(t, batch.Lights, 2)
	assert.Equal(t, float32(0), batch.Lights[0].Intensity)
	assert.Equal(t, float32(1), batch.Lights[1].Intensity)
	assert.Equal(t, 4, s.LightCount())
}

func TestScene_CameraReadOnceAtEndFrame(t *testing.T) {
	s := newTestScene()
	require.NoError(t, s.BeginFrame(0))
	s.Mode3D()
	s.CameraPosition(1, 2, 3)
	s.CameraPosition(4, 5, 6)
	s.CameraLookAt(0, 0, 0)
	batch, err := s.EndFrame()
	require.NoError(t, err)

	assert.Equal(t, mgl32.Vec3{4, 5, 6}, batch.CameraPosition)
	assert.Equal(t, Mode3D, batch.Mode)
	assert.Equal(t, uint64(0), batch.Frame)
	assert.Equal(t, uint64(1), s.Frame())
}

func TestScene_HandlesInvalidAfterClose(t *testing.T) {
	s := newTestScene()
	m, _ := s.CreateMesh()
	mat, _ := s.CreateMaterial()
	l, _ := s.CreateDirectionalLight(1, 1, 1, 1)
	require.NoError(t, s.BeginGeometry())
	require.NoError(t, s.Box(1, 1, 1))
	g, err := s.EndGeometry()
	require.NoError(t, err)

	s.Close()

	checks := map[string]error{
		"draw mesh":      s.DrawMesh(m),
		"draw geometry":  s.DrawGeometry(g),
		"use material":   s.UseMaterial(mat),
		"set float":      s.SetFloat(mat, "metallic", 1),
		"light position": s.LightPosition(l, 0, 0, 0),
		"set vertex":     s.SetVertex(m, 0, 0, 0, 0),
		"begin frame":    s.BeginFrame(0),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrInvalidHandle) {
			t.Errorf("%s: expected ErrInvalidHandle, got %v", name, err)
		}
	}
	_, err = s.CreateMesh()
	assert.ErrorIs(t, err, ErrInvalidHandle)
	meshes, geometries, materials, lights := s.Counts()
	assert.Zero(t, meshes+geometries+materials+lights)
}

func TestScene_ForeignAndStaleHandles(t *testing.T) {
	a := newTestScene()
	b := newTestScene()
	m, _ := a.CreateMesh()

	require.NoError(t, b.BeginFrame(0))
	assert.ErrorIs(t, b.DrawMesh(m), ErrInvalidHandle)

	require.NoError(t, a.DestroyMesh(m))
	_, err := a.MeshVertexCount(m)
	assert.ErrorIs(t, err, ErrInvalidHandle)

	reused, _ := a.CreateMesh()
	assert.NotEqual(t, m, reused)
	_, err = a.MeshVertexCount(m)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = a.MeshVertexCount(reused)
	assert.NoError(t, err)

	assert.ErrorIs(t, a.DestroyMesh(m), ErrInvalidHandle)
	assert.True(t, MeshHandle{}.IsZero())
}

func TestScene_BeginFrameResetsTransform(t *testing.T) {
	s := newTestScene()
	require.NoError(t, s.BeginFrame(0))
	s.PushMatrix()
	s.Translate(1, 1, 1)
	_, err := s.EndFrame()
	require.NoError(t, err)

	require.NoError(t, s.BeginFrame(0))
	assert.Equal(t, 1, s.Transforms().Depth())
	assert.Equal(t, mgl32.Ident4(), s.Transforms().Top())
}
