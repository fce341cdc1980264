package core

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

type ParamKind int

const (
	ParamFloat ParamKind = iota
	ParamFloat4
)

func (k ParamKind) String() string {
	switch k {
	case ParamFloat:
		return "float"
	case ParamFloat4:
		return "float4"
	default:
		return fmt.Sprintf("ParamKind(%d)", int(k))
	}
}

// Param is a scalar or a 4-vector; scalars live in Value[0].
type Param struct {
	Kind  ParamKind
	Value mgl32.Vec4
}

// Material is a named parameter bag. Names are created on first write and
// later writes replace earlier ones.
type Material struct {
	params   map[string]Param
	pipeline *Pipeline
}

func NewMaterial(pipeline *Pipeline) *Material {
	if pipeline == nil {
		pipeline = StandardPipeline
	}
	return &Material{
		params:   make(map[string]Param),
		pipeline: pipeline,
	}
}

func (m *Material) SetFloat(name string, v float32) {
	m.params[name] = Param{Kind: ParamFloat, Value: mgl32.Vec4{v, 0, 0, 0}}
}

func (m *Material) SetFloat4(name string, r, g, b, a float32) {
	m.params[name] = Param{Kind: ParamFloat4, Value: mgl32.Vec4{r, g, b, a}}
}

func (m *Material) Param(name string) (Param, bool) {
	p, ok := m.params[name]
	return p, ok
}

// Float returns an explicitly set value. Unset names are ErrNotFound even
// when the pipeline declares a default; see Effective.
func (m *Material) Float(name string) (float32, error) {
	p, ok := m.params[name]
	if !ok {
		return 0, fmt.Errorf("material parameter %q: %w", name, ErrNotFound)
	}
	if p.Kind != ParamFloat {
		return 0, fmt.Errorf("material parameter %q is %s: %w", name, p.Kind, ErrInvalidArgument)
	}
	return p.Value[0], nil
}

func (m *Material) Float4(name string) (mgl32.Vec4, error) {
	p, ok := m.params[name]
	if !ok {
		return mgl32.Vec4{}, fmt.Errorf("material parameter %q: %w", name, ErrNotFound)
	}
	if p.Kind != ParamFloat4 {
		return mgl32.Vec4{}, fmt.Errorf("material parameter %q is %s: %w", name, p.Kind, ErrInvalidArgument)
	}
	return p.Value, nil
}

// Effective returns what the pipeline would read for name: the set value,
// the value set under an alias, or the declared default. Names the pipeline
// does not declare fall back to the raw lookup.
func (m *Material) Effective(name string) (Param, error) {
	spec, declared := m.pipeline.Spec(name)
	if !declared {
		p, ok := m.params[name]
		if !ok {
			return Param{}, fmt.Errorf("material parameter %q: %w", name, ErrNotFound)
		}
		return p, nil
	}
	if p, ok := m.lookup(spec); ok {
		return p, nil
	}
	return Param{Kind: spec.Kind, Value: spec.Default}, nil
}

func (m *Material) Names() []string {
	names := make([]string, 0, len(m.params))
	for name := range m.params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Material) Pipeline() *Pipeline { return m.pipeline }

func (m *Material) Resolve() (ResolvedMaterial, error) {
	return m.pipeline.Resolve(m)
}

type AlphaMode uint32

const (
	AlphaOpaque AlphaMode = iota
	AlphaMask
	AlphaBlend
	AlphaPremultiplied
	AlphaAdd
	AlphaMultiply
)

// ResolvedMaterial is the flat shading input handed to backends.
type ResolvedMaterial struct {
	BaseColor   mgl32.Vec4
	Emissive    mgl32.Vec4
	Metallic    float32
	Roughness   float32
	Reflectance float32
	Unlit       bool
	DoubleSided bool
	AlphaMode   AlphaMode
}

// DefaultMaterial is used when no material is selected: unlit white, so
// vertex colors show unchanged.
func DefaultMaterial() ResolvedMaterial {
	return ResolvedMaterial{
		BaseColor:   White,
		Emissive:    mgl32.Vec4{0, 0, 0, 1},
		Roughness:   0.5,
		Reflectance: 0.5,
		Unlit:       true,
	}
}

type ParamSpec struct {
	Name     string
	Aliases  []string
	Kind     ParamKind
	Default  mgl32.Vec4
	Required bool
	apply    func(*ResolvedMaterial, mgl32.Vec4) error
}

// Pipeline declares which parameters a shading path reads.
type Pipeline struct {
	Name   string
	Params []ParamSpec
}

// Require returns a copy of p in which the named parameters must be set.
func (p *Pipeline) Require(names ...string) *Pipeline {
	out := &Pipeline{Name: p.Name, Params: append([]ParamSpec(nil), p.Params...)}
	for _, name := range names {
		for i := range out.Params {
			if out.Params[i].Name == name {
				out.Params[i].Required = true
			}
		}
	}
	return out
}

// Spec finds the parameter declared under name or one of its aliases.
func (p *Pipeline) Spec(name string) (ParamSpec, bool) {
	for _, spec := range p.Params {
		if spec.Name == name {
			return spec, true
		}
		for _, alias := range spec.Aliases {
			if alias == name {
				return spec, true
			}
		}
	}
	return ParamSpec{}, false
}

func (p *Pipeline) Resolve(m *Material) (ResolvedMaterial, error) {
	out := DefaultMaterial()
	out.Unlit = false
	for _, spec := range p.Params {
		value := spec.Default
		param, found := m.lookup(spec)
		if found {
			if param.Kind != spec.Kind {
				return ResolvedMaterial{}, fmt.Errorf("pipeline %s: parameter %q wants %s, got %s: %w",
					p.Name, spec.Name, spec.Kind, param.Kind, ErrInvalidArgument)
			}
			value = param.Value
		} else if spec.Required {
			return ResolvedMaterial{}, fmt.Errorf("pipeline %s: parameter %q: %w", p.Name, spec.Name, ErrMissingParameter)
		}
		if spec.apply != nil {
			if err := spec.apply(&out, value); err != nil {
				return ResolvedMaterial{}, fmt.Errorf("pipeline %s: parameter %q: %w", p.Name, spec.Name, err)
			}
		}
	}
	return out, nil
}

func (m *Material) lookup(spec ParamSpec) (Param, bool) {
	if p, ok := m.params[spec.Name]; ok {
		return p, true
	}
	for _, alias := range spec.Aliases {
		if p, ok := m.params[alias]; ok {
			return p, true
		}
	}
	return Param{}, false
}

func paramFlag(v mgl32.Vec4) bool { return v[0] > 0.5 }

// StandardPipeline reads the usual PBR names; nothing is required.
var StandardPipeline = &Pipeline{
	Name: "standard",
	Params: []ParamSpec{
		{Name: "base_color", Aliases: []string{"color"}, Kind: ParamFloat4, Default: White,
			apply: func(r *ResolvedMaterial, v mgl32.Vec4) error { r.BaseColor = v; return nil }},
		{Name: "metallic", Kind: ParamFloat, Default: mgl32.Vec4{0},
			apply: func(r *ResolvedMaterial, v mgl32.Vec4) error { r.Metallic = v[0]; return nil }},
		{Name: "roughness", Aliases: []string{"perceptual_roughness"}, Kind: ParamFloat, Default: mgl32.Vec4{0.5},
			apply: func(r *ResolvedMaterial, v mgl32.Vec4) error { r.Roughness = v[0]; return nil }},
		{Name: "reflectance", Kind: ParamFloat, Default: mgl32.Vec4{0.5},
			apply: func(r *ResolvedMaterial, v mgl32.Vec4) error { r.Reflectance = v[0]; return nil }},
		{Name: "emissive", Kind: ParamFloat4, Default: mgl32.Vec4{0, 0, 0, 1},
			apply: func(r *ResolvedMaterial, v mgl32.Vec4) error { r.Emissive = v; return nil }},
		{Name: "unlit", Kind: ParamFloat,
			apply: func(r *ResolvedMaterial, v mgl32.Vec4) error { r.Unlit = paramFlag(v); return nil }},
		{Name: "double_sided", Kind: ParamFloat,
			apply: func(r *ResolvedMaterial, v mgl32.Vec4) error { r.DoubleSided = paramFlag(v); return nil }},
		{Name: "alpha_mode", Kind: ParamFloat,
			apply: func(r *ResolvedMaterial, v mgl32.Vec4) error {
				mode := v[0]
				if mode < 0 || mode > float32(AlphaMultiply) || mode != float32(int(mode)) {
					return fmt.Errorf("alpha mode %v: %w", mode, ErrInvalidArgument)
				}
				r.AlphaMode = AlphaMode(mode)
				return nil
			}},
	},
}
