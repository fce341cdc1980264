package core

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type LightKind uint32

const (
	LightDirectional LightKind = 0
	LightPoint       LightKind = 1
	LightSpot        LightKind = 2
)

func (k LightKind) String() string {
	switch k {
	case LightDirectional:
		return "directional"
	case LightPoint:
		return "point"
	case LightSpot:
		return "spot"
	default:
		return fmt.Sprintf("LightKind(%d)", uint32(k))
	}
}

// DefaultLightDirection is used until LookAt is called.
var DefaultLightDirection = mgl32.Vec3{0, 0, -1}

type Light struct {
	Kind      LightKind
	Color     mgl32.Vec3
	Intensity float32
	Position  mgl32.Vec3
	Target    mgl32.Vec3
	HasTarget bool
	// Point and Spot only.
	Radius float32
	// Spot only, radians.
	InnerAngle float32
	OuterAngle float32
}

func NewDirectionalLight(color mgl32.Vec3, intensity float32) (Light, error) {
	l := Light{Kind: LightDirectional, Color: color, Intensity: intensity}
	return l, l.Validate()
}

func NewPointLight(color mgl32.Vec3, intensity, radius float32) (Light, error) {
	l := Light{Kind: LightPoint, Color: color, Intensity: intensity, Radius: radius}
	return l, l.Validate()
}

func NewSpotLight(color mgl32.Vec3, intensity, radius, inner, outer float32) (Light, error) {
	l := Light{
		Kind:       LightSpot,
		Color:      color,
		Intensity:  intensity,
		Radius:     radius,
		InnerAngle: inner,
		OuterAngle: outer,
	}
	return l, l.Validate()
}

func (l Light) Validate() error {
	for i, c := range l.Color {
		if c < 0 || c > 1 {
			return fmt.Errorf("%s light color[%d] = %v: %w", l.Kind, i, c, ErrInvalidArgument)
		}
	}
	if l.Intensity < 0 {
		return fmt.Errorf("%s light intensity %v: %w", l.Kind, l.Intensity, ErrInvalidArgument)
	}
	if l.Kind == LightDirectional {
		return nil
	}
	if l.Radius <= 0 {
		return fmt.Errorf("%s light radius %v: %w", l.Kind, l.Radius, ErrInvalidArgument)
	}
	if l.Kind == LightSpot {
		if l.InnerAngle < 0 || l.InnerAngle > l.OuterAngle || l.OuterAngle > math.Pi/2 {
			return fmt.Errorf("spot light cone [%v, %v]: %w", l.InnerAngle, l.OuterAngle, ErrInvalidArgument)
		}
	}
	return nil
}

func (l *Light) SetPosition(p mgl32.Vec3) {
	l.Position = p
}

func (l *Light) LookAt(target mgl32.Vec3) {
	l.Target = target
	l.HasTarget = true
}

// Direction is the unit forward vector derived from position and target.
func (l Light) Direction() mgl32.Vec3 {
	if !l.HasTarget {
		return DefaultLightDirection
	}
	d := l.Target.Sub(l.Position)
	if d.Len() == 0 {
		return DefaultLightDirection
	}
	return d.Normalize()
}

// Attenuation is the windowed distance falloff at p; 1 for directional lights.
func (l Light) Attenuation(p mgl32.Vec3) float32 {
	if l.Kind == LightDirectional {
		return 1
	}
	d := p.Sub(l.Position).Len()
	x := 1 - (d/l.Radius)*(d/l.Radius)
	if x <= 0 {
		return 0
	}
	return x * x
}

// ConeFactor is a smoothstep from the outer to the inner cone edge; 1 for
// non-spot lights.
func (l Light) ConeFactor(p mgl32.Vec3) float32 {
	if l.Kind != LightSpot {
		return 1
	}
	toPoint := p.Sub(l.Position)
	if toPoint.Len() == 0 {
		return 1
	}
	cosTheta := toPoint.Normalize().Dot(l.Direction())
	return smoothstep(cos32(l.OuterAngle), cos32(l.InnerAngle), cosTheta)
}

// ToLight returns the unit vector from p toward the light and the combined
// attenuation.
func (l Light) ToLight(p mgl32.Vec3) (mgl32.Vec3, float32) {
	if l.Kind == LightDirectional {
		return l.Direction().Mul(-1), 1
	}
	v := l.Position.Sub(p)
	if v.Len() == 0 {
		return mgl32.Vec3{0, 0, 1}, 0
	}
	return v.Normalize(), l.Attenuation(p) * l.ConeFactor(p)
}

func cos32(a float32) float32 { return float32(math.Cos(float64(a))) }

func smoothstep(edge0, edge1, x float32) float32 {
	if edge1 == edge0 {
		if x >= edge1 {
			return 1
		}
		return 0
	}
	t := (x - edge0) / (edge1 - edge0)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return t * t * (3 - 2*t)
}

// GPULight is the packed light layout shared by the WGSL shader.
type GPULight struct {
	PositionKind    [4]float32 // xyz, kind
	DirectionRadius [4]float32 // xyz, radius
	ColorIntensity  [4]float32 // rgb, intensity
	Cone            [4]float32 // cos outer, cos inner
}

func (l Light) Pack() GPULight {
	dir := l.Direction()
	return GPULight{
		PositionKind:    [4]float32{l.Position[0], l.Position[1], l.Position[2], float32(l.Kind)},
		DirectionRadius: [4]float32{dir[0], dir[1], dir[2], l.Radius},
		ColorIntensity:  [4]float32{l.Color[0], l.Color[1], l.Color[2], l.Intensity},
		Cone:            [4]float32{cos32(l.OuterAngle), cos32(l.InnerAngle), 0, 0},
	}
}

// LightSet keeps lights in registration order.
type LightSet struct {
	lights []Light
}

func (s *LightSet) add(l Light) int {
	s.lights = append(s.lights, l)
	return len(s.lights) - 1
}

func (s *LightSet) Len() int { return len(s.lights) }

func (s *LightSet) At(i int) (Light, error) {
	if i < 0 || i >= len(s.lights) {
		return Light{}, fmt.Errorf("light %d of %d: %w", i, len(s.lights), ErrIndexOutOfRange)
	}
	return s.lights[i], nil
}

func (s *LightSet) All() []Light {
	return append([]Light(nil), s.lights...)
}

// Active returns the first max lights; max <= 0 means no cap.
func (s *LightSet) Active(max int) []Light {
	if max <= 0 || max >= len(s.lights) {
		return s.All()
	}
	return append([]Light(nil), s.lights[:max]...)
}
