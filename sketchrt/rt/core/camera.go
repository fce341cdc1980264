package core

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type CameraMode int

const (
	Mode2D CameraMode = iota
	Mode3D
)

func (m CameraMode) String() string {
	if m == Mode3D {
		return "3d"
	}
	return "2d"
}

const (
	camera2DDepth = 999.9
	camera2DFar   = 1000.0
	cameraFov     = math.Pi / 3
)

type projectionKind int

const (
	projectionPerspective projectionKind = iota
	projectionOrtho
)

type projectionOverride struct {
	kind                     projectionKind
	fov, aspect              float32
	left, right, bottom, top float32
	near, far                float32
}

// CameraState is the view/projection state. Position and target fall back to
// the mode's default until set explicitly.
type CameraState struct {
	Mode        CameraMode
	position    mgl32.Vec3
	target      mgl32.Vec3
	positionSet bool
	targetSet   bool
	override    *projectionOverride
}

func NewCameraState() *CameraState {
	return &CameraState{Mode: Mode2D}
}

func (c *CameraState) SetPosition(p mgl32.Vec3) {
	c.position = p
	c.positionSet = true
}

func (c *CameraState) LookAt(target mgl32.Vec3) {
	c.target = target
	c.targetSet = true
}

// SetMode switches projection mode. Position and target are kept.
func (c *CameraState) SetMode(mode CameraMode) {
	c.Mode = mode
	c.override = nil
}

func (c *CameraState) Perspective(fov, aspect, near, far float32) error {
	if fov <= 0 || fov >= math.Pi || aspect <= 0 || near <= 0 || far <= near {
		return fmt.Errorf("perspective fov=%v aspect=%v near=%v far=%v: %w", fov, aspect, near, far, ErrInvalidArgument)
	}
	c.override = &projectionOverride{kind: projectionPerspective, fov: fov, aspect: aspect, near: near, far: far}
	return nil
}

func (c *CameraState) Ortho(left, right, bottom, top, near, far float32) error {
	if left == right || bottom == top || near == far {
		return fmt.Errorf("ortho [%v,%v]x[%v,%v]x[%v,%v]: %w", left, right, bottom, top, near, far, ErrInvalidArgument)
	}
	c.override = &projectionOverride{kind: projectionOrtho, left: left, right: right, bottom: bottom, top: top, near: near, far: far}
	return nil
}

func cameraZ(height float32) float32 {
	return (height / 2) / float32(math.Tan(cameraFov/2))
}

func (c *CameraState) Position(width, height float32) mgl32.Vec3 {
	if c.positionSet {
		return c.position
	}
	if c.Mode == Mode3D {
		return mgl32.Vec3{0, 0, cameraZ(height)}
	}
	return mgl32.Vec3{0, 0, camera2DDepth}
}

func (c *CameraState) Target(width, height float32) mgl32.Vec3 {
	if c.targetSet {
		return c.target
	}
	if c.Mode == Mode3D || !c.positionSet {
		return mgl32.Vec3{0, 0, 0}
	}
	// 2D looks straight down -Z from wherever it was moved.
	return c.position.Sub(mgl32.Vec3{0, 0, camera2DDepth})
}

func (c *CameraState) GetViewMatrix(width, height float32) mgl32.Mat4 {
	eye := c.Position(width, height)
	target := c.Target(width, height)
	up := mgl32.Vec3{0, 1, 0}
	forward := target.Sub(eye)
	if forward.Len() == 0 {
		return mgl32.Translate3D(-eye[0], -eye[1], -eye[2])
	}
	if forward.Normalize().Cross(up).Len() < 1e-6 {
		up = mgl32.Vec3{0, 0, -1}
	}
	return mgl32.LookAtV(eye, target, up)
}

// GetProjectionMatrix uses the OpenGL clip convention (z in -1..1).
func (c *CameraState) GetProjectionMatrix(width, height float32) mgl32.Mat4 {
	if o := c.override; o != nil {
		if o.kind == projectionPerspective {
			return mgl32.Perspective(o.fov, o.aspect, o.near, o.far)
		}
		return mgl32.Ortho(o.left, o.right, o.bottom, o.top, o.near, o.far)
	}
	if c.Mode == Mode3D {
		z := cameraZ(height)
		return mgl32.Perspective(cameraFov, width/height, z/10, z*10)
	}
	// Pixel space, origin top-left, +Y down.
	return mgl32.Ortho(0, width, height, 0, 0, camera2DFar)
}
