package core

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultSphereSectors = 32
	DefaultSphereStacks  = 18
)

// BoxMesh builds an axis aligned box centred on the origin, 4 vertices per face.
func BoxMesh(width, height, depth float32, color mgl32.Vec4) *Mesh {
	hx, hy, hz := width/2, height/2, depth/2
	faces := []struct {
		normal  mgl32.Vec3
		corners [4]mgl32.Vec3
	}{
		{mgl32.Vec3{0, 0, 1}, [4]mgl32.Vec3{{-hx, -hy, hz}, {hx, -hy, hz}, {hx, hy, hz}, {-hx, hy, hz}}},
		{mgl32.Vec3{0, 0, -1}, [4]mgl32.Vec3{{hx, -hy, -hz}, {-hx, -hy, -hz}, {-hx, hy, -hz}, {hx, hy, -hz}}},
		{mgl32.Vec3{1, 0, 0}, [4]mgl32.Vec3{{hx, -hy, hz}, {hx, -hy, -hz}, {hx, hy, -hz}, {hx, hy, hz}}},
		{mgl32.Vec3{-1, 0, 0}, [4]mgl32.Vec3{{-hx, -hy, -hz}, {-hx, -hy, hz}, {-hx, hy, hz}, {-hx, hy, -hz}}},
		{mgl32.Vec3{0, 1, 0}, [4]mgl32.Vec3{{-hx, hy, hz}, {hx, hy, hz}, {hx, hy, -hz}, {-hx, hy, -hz}}},
		{mgl32.Vec3{0, -1, 0}, [4]mgl32.Vec3{{-hx, -hy, -hz}, {hx, -hy, -hz}, {hx, -hy, hz}, {-hx, -hy, hz}}},
	}

	m := NewMesh()
	m.SetColor(color[0], color[1], color[2], color[3])
	for _, f := range faces {
		m.SetNormal(f.normal[0], f.normal[1], f.normal[2])
		var idx [4]uint32
		for i, c := range f.corners {
			idx[i] = m.Vertex(c[0], c[1], c[2])
		}
		m.Triangle(idx[0], idx[1], idx[2])
		m.Triangle(idx[0], idx[2], idx[3])
	}
	return m
}

// SphereMesh builds a UV sphere. sectors >= 3, stacks >= 2.
func SphereMesh(radius float32, sectors, stacks int, color mgl32.Vec4) (*Mesh, error) {
	if sectors < 3 || stacks < 2 {
		return nil, fmt.Errorf("sphere with %d sectors and %d stacks: %w", sectors, stacks, ErrInvalidArgument)
	}
	if radius <= 0 {
		return nil, fmt.Errorf("sphere radius %v: %w", radius, ErrInvalidArgument)
	}

	m := NewMesh()
	m.SetColor(color[0], color[1], color[2], color[3])
	for i := 0; i <= stacks; i++ {
		phi := math.Pi/2 - math.Pi*float64(i)/float64(stacks)
		xy := math.Cos(phi)
		z := math.Sin(phi)
		for j := 0; j <= sectors; j++ {
			theta := 2 * math.Pi * float64(j) / float64(sectors)
			n := mgl32.Vec3{float32(xy * math.Cos(theta)), float32(xy * math.Sin(theta)), float32(z)}
			m.SetNormal(n[0], n[1], n[2])
			p := n.Mul(radius)
			m.Vertex(p[0], p[1], p[2])
		}
	}

	for i := 0; i < stacks; i++ {
		k1 := uint32(i * (sectors + 1))
		k2 := k1 + uint32(sectors+1)
		for j := 0; j < sectors; j++ {
			if i != 0 {
				m.Triangle(k1, k2, k1+1)
			}
			if i != stacks-1 {
				m.Triangle(k1+1, k2, k2+1)
			}
			k1++
			k2++
		}
	}
	return m, nil
}

// PlaneMesh builds a quad in the XY plane facing +Z.
func PlaneMesh(width, height float32, color mgl32.Vec4) *Mesh {
	hx, hy := width/2, height/2
	m := NewMesh()
	m.SetColor(color[0], color[1], color[2], color[3])
	m.SetNormal(0, 0, 1)
	a := m.Vertex(-hx, -hy, 0)
	b := m.Vertex(hx, -hy, 0)
	c := m.Vertex(hx, hy, 0)
	d := m.Vertex(-hx, hy, 0)
	m.Triangle(a, b, c)
	m.Triangle(a, c, d)
	return m
}

// RectCornerSegments is the arc resolution of one rounded corner.
const RectCornerSegments = 8

// strokeLift raises outlines toward +Z so they win the depth test against
// their own fill.
const strokeLift = 0.01

// rectOutline walks the rect clockwise on screen (+Y down) from the top-left
// corner. radii is empty, one radius for every corner, or [tl, tr, br, bl].
// Radii are clamped to half the shorter side.
func rectOutline(x, y, w, h float32, radii []float32) ([]mgl32.Vec2, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("rect %vx%v: %w", w, h, ErrInvalidArgument)
	}
	var r [4]float32
	switch len(radii) {
	case 0:
	case 1:
		r = [4]float32{radii[0], radii[0], radii[0], radii[0]}
	case 4:
		copy(r[:], radii)
	default:
		return nil, fmt.Errorf("rect with %d radii: %w", len(radii), ErrInvalidArgument)
	}
	limit := min(w, h) / 2
	for i := range r {
		if r[i] < 0 {
			return nil, fmt.Errorf("rect corner radius %v: %w", r[i], ErrInvalidArgument)
		}
		r[i] = min(r[i], limit)
	}

	corners := [4]struct {
		cx, cy float32
		start  float64
	}{
		{x + r[0], y + r[0], math.Pi},
		{x + w - r[1], y + r[1], 3 * math.Pi / 2},
		{x + w - r[2], y + h - r[2], 0},
		{x + r[3], y + h - r[3], math.Pi / 2},
	}
	var out []mgl32.Vec2
	for i, c := range corners {
		if r[i] == 0 {
			out = append(out, mgl32.Vec2{c.cx, c.cy})
			continue
		}
		for k := 0; k <= RectCornerSegments; k++ {
			a := c.start + math.Pi/2*float64(k)/RectCornerSegments
			out = append(out, mgl32.Vec2{
				c.cx + r[i]*float32(math.Cos(a)),
				c.cy + r[i]*float32(math.Sin(a)),
			})
		}
	}
	return out, nil
}

// RectMesh fills a rect in the XY plane with (x, y) as its top-left corner.
// The outline is convex so it is fanned from its first point.
func RectMesh(x, y, w, h float32, radii []float32, color mgl32.Vec4) (*Mesh, error) {
	outline, err := rectOutline(x, y, w, h, radii)
	if err != nil {
		return nil, err
	}
	m := NewMesh()
	m.SetColor(color[0], color[1], color[2], color[3])
	m.SetNormal(0, 0, 1)
	for _, p := range outline {
		m.Vertex(p[0], p[1], 0)
	}
	for i := 1; i+1 < len(outline); i++ {
		m.Triangle(0, uint32(i), uint32(i+1))
	}
	return m, nil
}

// RectStrokeMesh outlines the same rect with one quad per edge, weight wide
// and centred on the edge. Quads overrun their edge by weight/2 to close the
// joins.
func RectStrokeMesh(x, y, w, h float32, radii []float32, weight float32, color mgl32.Vec4) (*Mesh, error) {
	if weight <= 0 {
		return nil, fmt.Errorf("stroke weight %v: %w", weight, ErrInvalidArgument)
	}
	outline, err := rectOutline(x, y, w, h, radii)
	if err != nil {
		return nil, err
	}
	hw := weight / 2
	m := NewMesh()
	m.SetColor(color[0], color[1], color[2], color[3])
	m.SetNormal(0, 0, 1)
	for i, p0 := range outline {
		p1 := outline[(i+1)%len(outline)]
		edge := p1.Sub(p0)
		if edge.Len() < 1e-6 {
			continue
		}
		d := edge.Normalize().Mul(hw)
		n := mgl32.Vec2{-d[1], d[0]}
		a, b := p0.Sub(d), p1.Add(d)
		i0 := m.Vertex(a[0]+n[0], a[1]+n[1], strokeLift)
		i1 := m.Vertex(b[0]+n[0], b[1]+n[1], strokeLift)
		i2 := m.Vertex(b[0]-n[0], b[1]-n[1], strokeLift)
		i3 := m.Vertex(a[0]-n[0], a[1]-n[1], strokeLift)
		m.Triangle(i0, i1, i2)
		m.Triangle(i0, i2, i3)
	}
	return m, nil
}
