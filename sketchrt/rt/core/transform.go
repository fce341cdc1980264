package core

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a TRS placement, used for imported nodes.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func NewTransform() *Transform {
	return &Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

func (t *Transform) ObjectToWorld() mgl32.Mat4 {
	// M = T * R * S
	translate := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := t.Rotation.Mat4()
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())

	return translate.Mul4(rotate).Mul4(scale)
}

func (t *Transform) WorldToObject() mgl32.Mat4 {
	// inv(M) = inv(S) * inv(R) * inv(T)
	invScale := mgl32.Scale3D(1.0/t.Scale.X(), 1.0/t.Scale.Y(), 1.0/t.Scale.Z())
	invRotate := t.Rotation.Conjugate().Mat4()
	invTranslate := mgl32.Translate3D(-t.Position.X(), -t.Position.Y(), -t.Position.Z())

	return invScale.Mul4(invRotate).Mul4(invTranslate)
}

// TransformStack holds the model matrix applied to immediate-mode primitives.
// It always holds at least the root entry.
type TransformStack struct {
	stack []mgl32.Mat4
}

func NewTransformStack() *TransformStack {
	return &TransformStack{stack: []mgl32.Mat4{mgl32.Ident4()}}
}

func (s *TransformStack) Top() mgl32.Mat4 {
	return s.stack[len(s.stack)-1]
}

func (s *TransformStack) Depth() int {
	return len(s.stack)
}

// Push duplicates the top matrix.
func (s *TransformStack) Push() {
	s.stack = append(s.stack, s.Top())
}

// Pop removes the top matrix. The root is never removed.
func (s *TransformStack) Pop() error {
	if len(s.stack) <= 1 {
		return fmt.Errorf("pop: %w", ErrStackUnderflow)
	}
	s.stack = s.stack[:len(s.stack)-1]
	return nil
}

// Reset drops every pushed entry and restores the identity root.
func (s *TransformStack) Reset() {
	s.stack = s.stack[:1]
	s.stack[0] = mgl32.Ident4()
}

// ResetMatrix replaces the top with identity without changing depth.
func (s *TransformStack) ResetMatrix() {
	s.stack[len(s.stack)-1] = mgl32.Ident4()
}

// Apply right-multiplies the top by m.
func (s *TransformStack) Apply(m mgl32.Mat4) {
	top := len(s.stack) - 1
	s.stack[top] = s.stack[top].Mul4(m)
}

func (s *TransformStack) Translate(x, y, z float32) {
	s.Apply(mgl32.Translate3D(x, y, z))
}

// Rotate rotates about the Z axis, the 2D rotation.
func (s *TransformStack) Rotate(angle float32) {
	s.RotateZ(angle)
}

func (s *TransformStack) RotateX(angle float32) {
	s.Apply(mgl32.HomogRotate3DX(angle))
}

func (s *TransformStack) RotateY(angle float32) {
	s.Apply(mgl32.HomogRotate3DY(angle))
}

func (s *TransformStack) RotateZ(angle float32) {
	s.Apply(mgl32.HomogRotate3DZ(angle))
}

func (s *TransformStack) RotateAxis(angle float32, axis mgl32.Vec3) error {
	if axis.Len() == 0 {
		return fmt.Errorf("rotate axis: zero axis: %w", ErrInvalidArgument)
	}
	s.Apply(mgl32.HomogRotate3D(angle, axis.Normalize()))
	return nil
}

func (s *TransformStack) Scale(x, y, z float32) {
	s.Apply(mgl32.Scale3D(x, y, z))
}

// ShearX slants along X by angle: x += tan(angle)*y.
func (s *TransformStack) ShearX(angle float32) {
	m := mgl32.Ident4()
	m.Set(0, 1, float32(math.Tan(float64(angle))))
	s.Apply(m)
}

// ShearY slants along Y by angle: y += tan(angle)*x.
func (s *TransformStack) ShearY(angle float32) {
	m := mgl32.Ident4()
	m.Set(1, 0, float32(math.Tan(float64(angle))))
	s.Apply(m)
}

func (s *TransformStack) TransformPoint(p mgl32.Vec3) mgl32.Vec3 {
	return mgl32.TransformCoordinate(p, s.Top())
}

func (s *TransformStack) TransformNormal(n mgl32.Vec3) mgl32.Vec3 {
	return safeNormalize(normalMatrix(s.Top()).Mul3x1(n))
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() == 0 {
		return v
	}
	return v.Normalize()
}

// normalMatrix is the inverse transpose of the upper 3x3.
func normalMatrix(m mgl32.Mat4) mgl32.Mat3 {
	m3 := m.Mat3()
	if m3.Det() == 0 {
		return m3
	}
	return m3.Inv().Transpose()
}
