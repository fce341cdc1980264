package soft

import (
	"math"

	"github.com/fogleman/fauxgl"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/sketch/sketchrt/rt/core"
)

const ambient = 0.08

// meshShader transforms to world space in the vertex stage so that the
// fragment stage receives interpolated world positions and normals.
type meshShader struct {
	model     fauxgl.Matrix
	normal    fauxgl.Matrix
	viewProj  fauxgl.Matrix
	material  core.ResolvedMaterial
	lights    []core.Light
	cameraPos mgl32.Vec3
}

func newMeshShader(batch *core.FrameBatch, draw *core.DrawItem) *meshShader {
	nm := draw.Model.Inv().Transpose()
	return &meshShader{
		model:     toMatrix(draw.Model),
		normal:    toMatrix(nm),
		viewProj:  toMatrix(batch.ViewProjection()),
		material:  draw.Material,
		lights:    batch.Lights,
		cameraPos: batch.CameraPosition,
	}
}

func (s *meshShader) Vertex(v fauxgl.Vertex) fauxgl.Vertex {
	v.Position = s.model.MulPosition(v.Position)
	v.Normal = s.normal.MulDirection(v.Normal)
	v.Output = s.viewProj.MulPositionW(v.Position)
	return v
}

func (s *meshShader) Fragment(v fauxgl.Vertex) fauxgl.Color {
	c := shade(
		s.material,
		mgl32.Vec4{float32(v.Color.R), float32(v.Color.G), float32(v.Color.B), float32(v.Color.A)},
		mgl32.Vec3{float32(v.Position.X), float32(v.Position.Y), float32(v.Position.Z)},
		mgl32.Vec3{float32(v.Normal.X), float32(v.Normal.Y), float32(v.Normal.Z)},
		s.lights,
		s.cameraPos,
	)
	return fauxgl.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])}
}

// shade is a Lambert term plus a Blinn highlight driven by roughness. It is
// kept in step with mesh.wgsl.
func shade(m core.ResolvedMaterial, vertexColor mgl32.Vec4, p, n mgl32.Vec3, lights []core.Light, eye mgl32.Vec3) mgl32.Vec4 {
	base := mgl32.Vec4{
		m.BaseColor[0] * vertexColor[0],
		m.BaseColor[1] * vertexColor[1],
		m.BaseColor[2] * vertexColor[2],
		m.BaseColor[3] * vertexColor[3],
	}
	if m.Unlit {
		return clampColor(base.Add(mgl32.Vec4{m.Emissive[0], m.Emissive[1], m.Emissive[2], 0}))
	}

	if n.Len() > 0 {
		n = n.Normalize()
	}
	view := eye.Sub(p)
	if view.Len() > 0 {
		view = view.Normalize()
	}
	if m.DoubleSided && n.Dot(view) < 0 {
		n = n.Mul(-1)
	}
	shininess := float32(2 / math.Max(float64(m.Roughness*m.Roughness), 1e-3))

	rgb := base.Vec3().Mul(ambient)
	for _, l := range lights {
		dir, atten := l.ToLight(p)
		if atten <= 0 {
			continue
		}
		ndotl := n.Dot(dir)
		if ndotl <= 0 {
			continue
		}
		radiance := l.Color.Mul(l.Intensity * atten)
		diffuse := base.Vec3().Mul(ndotl * (1 - m.Metallic))
		rgb = rgb.Add(mul3(diffuse, radiance))

		half := dir.Add(view)
		if half.Len() > 0 {
			spec := float32(math.Pow(float64(max32(n.Dot(half.Normalize()), 0)), float64(shininess)))
			f0 := mgl32.Vec3{0.16 * m.Reflectance * m.Reflectance, 0.16 * m.Reflectance * m.Reflectance, 0.16 * m.Reflectance * m.Reflectance}
			f0 = f0.Mul(1 - m.Metallic).Add(base.Vec3().Mul(m.Metallic))
			rgb = rgb.Add(mul3(f0.Mul(spec), radiance))
		}
	}
	rgb = rgb.Add(m.Emissive.Vec3())
	return clampColor(rgb.Vec4(base[3]))
}

func mul3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func clampColor(c mgl32.Vec4) mgl32.Vec4 {
	for i := range c {
		c[i] = mgl32.Clamp(c[i], 0, 1)
	}
	return c
}

// toMatrix converts the column-major mgl32 layout to fauxgl's row-major one.
func toMatrix(m mgl32.Mat4) fauxgl.Matrix {
	at := func(r, c int) float64 { return float64(m.At(r, c)) }
	return fauxgl.Matrix{
		X00: at(0, 0), X01: at(0, 1), X02: at(0, 2), X03: at(0, 3),
		X10: at(1, 0), X11: at(1, 1), X12: at(1, 2), X13: at(1, 3),
		X20: at(2, 0), X21: at(2, 1), X22: at(2, 2), X23: at(2, 3),
		X30: at(3, 0), X31: at(3, 1), X32: at(3, 2), X33: at(3, 3),
	}
}

func toVector(v mgl32.Vec3) fauxgl.Vector {
	return fauxgl.Vector{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

func toColor(c mgl32.Vec4) fauxgl.Color {
	return fauxgl.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])}
}
