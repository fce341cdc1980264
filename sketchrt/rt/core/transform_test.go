package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertVec3(t *testing.T, want, got mgl32.Vec3, msgAndArgs ...any) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-5, msgAndArgs...)
	}
}

func TestTransformComposition(t *testing.T) {
	tr := NewTransform()
	tr.Position = mgl32.Vec3{1, 2, 3}
	tr.Scale = mgl32.Vec3{2, 2, 2}
	tr.Rotation = mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 0, 1})

	p := mgl32.TransformCoordinate(mgl32.Vec3{1, 0, 0}, tr.ObjectToWorld())
	assertVec3(t, mgl32.Vec3{1, 4, 3}, p, "object to world")

	back := mgl32.TransformCoordinate(p, tr.WorldToObject())
	assertVec3(t, mgl32.Vec3{1, 0, 0}, back, "world to object round trip")
}

func TestTransformStack_PushPopRestores(t *testing.T) {
	s := NewTransformStack()
	s.Translate(3, 4, 5)
	s.Rotate(0.3)
	before := s.Top()

	s.Push()
	s.Rotate(1.2)
	s.Translate(-7, 2, 0.5)
	s.RotateX(0.4)
	s.Scale(2, 3, 4)
	require.Equal(t, 2, s.Depth())
	require.NoError(t, s.Pop())

	assert.Equal(t, before, s.Top(), "pop restores the pre-push matrix")
}

func TestTransformStack_PopUnderflow(t *testing.T) {
	s := NewTransformStack()
	s.Translate(1, 0, 0)
	top := s.Top()

	assert.ErrorIs(t, s.Pop(), ErrStackUnderflow)
	assert.Equal(t, 1, s.Depth())
	assert.Equal(t, top, s.Top(), "root unchanged after failed pop")
}

func TestTransformStack_RightMultiply(t *testing.T) {
	s := NewTransformStack()
	s.Translate(10, 0, 0)
	s.Rotate(math.Pi / 2)

	// Rotation is applied to the point first, then the translation.
	assertVec3(t, mgl32.Vec3{10, 1, 0}, s.TransformPoint(mgl32.Vec3{1, 0, 0}))
	assertVec3(t, mgl32.Vec3{0, 1, 0}, s.TransformNormal(mgl32.Vec3{1, 0, 0}), "normal")
}

func TestTransformStack_Shear(t *testing.T) {
	s := NewTransformStack()
	s.Push()
	s.ShearX(math.Pi / 4)
	assertVec3(t, mgl32.Vec3{2, 2, 0}, s.TransformPoint(mgl32.Vec3{0, 2, 0}), "shear x")
	require.NoError(t, s.Pop())

	s.ShearY(math.Pi / 4)
	assertVec3(t, mgl32.Vec3{3, 3, 0}, s.TransformPoint(mgl32.Vec3{3, 0, 0}), "shear y")

	s.ResetMatrix()
	s.ShearX(0)
	assert.Equal(t, mgl32.Ident4(), s.Top())
}

func TestTransformStack_Reset(t *testing.T) {
	s := NewTransformStack()
	s.Push()
	s.Push()
	s.Translate(1, 2, 3)

	s.ResetMatrix()
	assert.Equal(t, mgl32.Ident4(), s.Top())
	assert.Equal(t, 3, s.Depth(), "ResetMatrix only clears the top")

	s.Reset()
	assert.Equal(t, 1, s.Depth())
	assert.Equal(t, mgl32.Ident4(), s.Top())
}

func TestTransformStack_RotateAxis(t *testing.T) {
	s := NewTransformStack()
	assert.ErrorIs(t, s.RotateAxis(1, mgl32.Vec3{}), ErrInvalidArgument)
	assert.Equal(t, mgl32.Ident4(), s.Top(), "failed rotate leaves the top unchanged")

	require.NoError(t, s.RotateAxis(math.Pi/2, mgl32.Vec3{0, 0, 5}))
	assertVec3(t, mgl32.Vec3{0, 1, 0}, s.TransformPoint(mgl32.Vec3{1, 0, 0}))
}
