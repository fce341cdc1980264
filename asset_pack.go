package sketch

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/gekko3d/sketch/sketchrt/rt/core"
)

// AssetSource is anything that can hand out named geometry and materials and
// indexed cameras and lights.
type AssetSource interface {
	Geometry(name string) (*core.Geometry, error)
	Material(name string) (*core.Material, error)
	Camera(index int) (core.CameraState, error)
	Light(index int) (core.Light, error)
	MeshNames() []string
	MaterialNames() []string
	CameraCount() int
	LightCount() int
}

// AssetPack is a YAML scene description.
//
//	meshes:
//	  - name: floor
//	    primitive: box
//	    size: [10, 0.2, 10]
//	    translate: [0, -1, 0]
//	  - name: tri
//	    vertices: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]
//	    indices: [0, 1, 2]
//	materials:
//	  - name: red
//	    params: {base_color: [1, 0, 0, 1], metallic: 0.2}
//	cameras:
//	  - {mode: 3d, position: [0, 2, 8], target: [0, 0, 0]}
//	lights:
//	  - {kind: point, color: [1, 1, 1], intensity: 20, radius: 30, position: [0, 5, 0]}
type AssetPack struct {
	Meshes    []MeshDesc     `yaml:"meshes"`
	Materials []MaterialDesc `yaml:"materials"`
	Cameras   []CameraDesc   `yaml:"cameras"`
	Lights    []LightDesc    `yaml:"lights"`

	geometries map[string]*core.Geometry
}

type MeshDesc struct {
	Name      string       `yaml:"name"`
	Primitive string       `yaml:"primitive"`
	Size      []float32    `yaml:"size"`
	Radius    float32      `yaml:"radius"`
	Sectors   int          `yaml:"sectors"`
	Stacks    int          `yaml:"stacks"`
	Vertices  [][3]float32 `yaml:"vertices"`
	Normals   [][3]float32 `yaml:"normals"`
	Colors    [][4]float32 `yaml:"colors"`
	Indices   []uint32     `yaml:"indices"`
	Color     []float32    `yaml:"color"`
	Translate []float32    `yaml:"translate"`
	Rotate    []float32    `yaml:"rotate"`
	Scale     []float32    `yaml:"scale"`
}

type MaterialDesc struct {
	Name     string                `yaml:"name"`
	Required []string              `yaml:"required"`
	Params   map[string]ParamValue `yaml:"params"`
}

// ParamValue is either a scalar or a list of up to four numbers.
type ParamValue struct {
	Kind  core.ParamKind
	Value mgl32.Vec4
}

func (p *ParamValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v float32
		if err := node.Decode(&v); err != nil {
			return err
		}
		p.Kind = core.ParamFloat
		p.Value = mgl32.Vec4{v, 0, 0, 0}
		return nil
	case yaml.SequenceNode:
		var vs []float32
		if err := node.Decode(&vs); err != nil {
			return err
		}
		if len(vs) == 0 || len(vs) > 4 {
			return fmt.Errorf("line %d: parameter needs 1 to 4 values, got %d", node.Line, len(vs))
		}
		p.Kind = core.ParamFloat4
		p.Value = mgl32.Vec4{0, 0, 0, 1}
		copy(p.Value[:], vs)
		return nil
	default:
		return fmt.Errorf("line %d: parameter must be a number or a list", node.Line)
	}
}

type CameraDesc struct {
	Mode     string    `yaml:"mode"`
	Position []float32 `yaml:"position"`
	Target   []float32 `yaml:"target"`
}

type LightDesc struct {
	Kind       string    `yaml:"kind"`
	Color      []float32 `yaml:"color"`
	Intensity  float32   `yaml:"intensity"`
	Position   []float32 `yaml:"position"`
	Target     []float32 `yaml:"target"`
	Radius     float32   `yaml:"radius"`
	InnerAngle float32   `yaml:"inner_angle"`
	OuterAngle float32   `yaml:"outer_angle"`
}

func LoadAssetPack(path string) (*AssetPack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read asset pack %s: %w", path, err)
	}
	pack, err := ParseAssetPack(data)
	if err != nil {
		return nil, fmt.Errorf("asset pack %s: %w", path, err)
	}
	return pack, nil
}

// ParseAssetPack decodes a pack and builds every mesh up front so that
// malformed geometry is reported at load time.
func ParseAssetPack(data []byte) (*AssetPack, error) {
	pack := &AssetPack{}
	if err := yaml.Unmarshal(data, pack); err != nil {
		return nil, err
	}
	pack.geometries = make(map[string]*core.Geometry, len(pack.Meshes))
	for i, desc := range pack.Meshes {
		if desc.Name == "" {
			return nil, fmt.Errorf("mesh %d has no name: %w", i, core.ErrInvalidArgument)
		}
		if _, dup := pack.geometries[desc.Name]; dup {
			return nil, fmt.Errorf("mesh %q defined twice: %w", desc.Name, core.ErrInvalidArgument)
		}
		g, err := desc.build()
		if err != nil {
			return nil, fmt.Errorf("mesh %q: %w", desc.Name, err)
		}
		pack.geometries[desc.Name] = g
	}
	return pack, nil
}

func (d MeshDesc) build() (*core.Geometry, error) {
	color := vec4Or(d.Color, core.White)

	var src *core.Mesh
	switch strings.ToLower(d.Primitive) {
	case "box":
		size := vec3Or(d.Size, mgl32.Vec3{1, 1, 1})
		src = core.BoxMesh(size[0], size[1], size[2], color)
	case "sphere":
		radius := d.Radius
		if radius == 0 {
			radius = 1
		}
		sectors, stacks := d.Sectors, d.Stacks
		if sectors == 0 {
			sectors = core.DefaultSphereSectors
		}
		if stacks == 0 {
			stacks = core.DefaultSphereStacks
		}
		m, err := core.SphereMesh(radius, sectors, stacks, color)
		if err != nil {
			return nil, err
		}
		src = m
	case "plane":
		size := vec3Or(d.Size, mgl32.Vec3{1, 1, 0})
		src = core.PlaneMesh(size[0], size[1], color)
	case "":
		src = core.NewMesh()
		src.SetColor(color[0], color[1], color[2], color[3])
		for i, p := range d.Vertices {
			idx := src.Vertex(p[0], p[1], p[2])
			if i < len(d.Normals) {
				n := d.Normals[i]
				_ = src.SetVertexNormal(int(idx), n[0], n[1], n[2])
			}
			if i < len(d.Colors) {
				c := d.Colors[i]
				_ = src.SetVertexColor(int(idx), c[0], c[1], c[2], c[3])
			}
		}
		for _, idx := range d.Indices {
			src.Index(idx)
		}
	default:
		return nil, fmt.Errorf("primitive %q: %w", d.Primitive, core.ErrInvalidArgument)
	}

	t := core.NewTransform()
	t.Position = vec3Or(d.Translate, mgl32.Vec3{})
	if len(d.Rotate) > 0 {
		r := vec3Or(d.Rotate, mgl32.Vec3{})
		t.Rotation = mgl32.AnglesToQuat(r[0], r[1], r[2], mgl32.XYZ)
	}
	t.Scale = vec3Or(d.Scale, mgl32.Vec3{1, 1, 1})

	out := core.NewMesh()
	out.Append(src, t.ObjectToWorld())
	return out.Freeze()
}

func (p *AssetPack) Geometry(name string) (*core.Geometry, error) {
	g, ok := p.geometries[name]
	if !ok {
		return nil, fmt.Errorf("geometry %q: %w", name, core.ErrNotFound)
	}
	return g, nil
}

func (p *AssetPack) Material(name string) (*core.Material, error) {
	for _, desc := range p.Materials {
		if desc.Name != name {
			continue
		}
		pipeline := core.StandardPipeline
		if len(desc.Required) > 0 {
			pipeline = pipeline.Require(desc.Required...)
		}
		m := core.NewMaterial(pipeline)
		for key, v := range desc.Params {
			if v.Kind == core.ParamFloat {
				m.SetFloat(key, v.Value[0])
			} else {
				m.SetFloat4(key, v.Value[0], v.Value[1], v.Value[2], v.Value[3])
			}
		}
		return m, nil
	}
	return nil, fmt.Errorf("material %q: %w", name, core.ErrNotFound)
}

func (p *AssetPack) Camera(index int) (core.CameraState, error) {
	if index < 0 || index >= len(p.Cameras) {
		return core.CameraState{}, fmt.Errorf("camera %d of %d: %w", index, len(p.Cameras), core.ErrNotFound)
	}
	desc := p.Cameras[index]
	c := core.NewCameraState()
	switch strings.ToLower(desc.Mode) {
	case "", "3d":
		c.SetMode(core.Mode3D)
	case "2d":
		c.SetMode(core.Mode2D)
	default:
		return core.CameraState{}, fmt.Errorf("camera %d mode %q: %w", index, desc.Mode, core.ErrInvalidArgument)
	}
	if len(desc.Position) > 0 {
		c.SetPosition(vec3Or(desc.Position, mgl32.Vec3{}))
	}
	if len(desc.Target) > 0 {
		c.LookAt(vec3Or(desc.Target, mgl32.Vec3{}))
	}
	return *c, nil
}

func (p *AssetPack) Light(index int) (core.Light, error) {
	if index < 0 || index >= len(p.Lights) {
		return core.Light{}, fmt.Errorf("light %d of %d: %w", index, len(p.Lights), core.ErrNotFound)
	}
	desc := p.Lights[index]
	color := vec3Or(desc.Color, mgl32.Vec3{1, 1, 1})

	var (
		l   core.Light
		err error
	)
	switch strings.ToLower(desc.Kind) {
	case "directional":
		l, err = core.NewDirectionalLight(color, desc.Intensity)
	case "point":
		l, err = core.NewPointLight(color, desc.Intensity, desc.Radius)
	case "spot":
		l, err = core.NewSpotLight(color, desc.Intensity, desc.Radius, desc.InnerAngle, desc.OuterAngle)
	default:
		return core.Light{}, fmt.Errorf("light %d kind %q: %w", index, desc.Kind, core.ErrInvalidArgument)
	}
	if err != nil {
		return core.Light{}, fmt.Errorf("light %d: %w", index, err)
	}
	if len(desc.Position) > 0 {
		l.SetPosition(vec3Or(desc.Position, mgl32.Vec3{}))
	}
	if len(desc.Target) > 0 {
		l.LookAt(vec3Or(desc.Target, mgl32.Vec3{}))
	}
	return l, nil
}

func (p *AssetPack) MeshNames() []string {
	names := make([]string, 0, len(p.Meshes))
	for _, m := range p.Meshes {
		names = append(names, m.Name)
	}
	return names
}

func (p *AssetPack) MaterialNames() []string {
	names := make([]string, 0, len(p.Materials))
	for _, m := range p.Materials {
		names = append(names, m.Name)
	}
	return names
}

func (p *AssetPack) CameraCount() int { return len(p.Cameras) }
func (p *AssetPack) LightCount() int  { return len(p.Lights) }

func vec3Or(v []float32, def mgl32.Vec3) mgl32.Vec3 {
	if len(v) == 0 {
		return def
	}
	out := def
	copy(out[:], v)
	return out
}

func vec4Or(v []float32, def mgl32.Vec4) mgl32.Vec4 {
	if len(v) == 0 {
		return def
	}
	out := def
	copy(out[:], v)
	return out
}

// Import helpers copy assets into a scene and return scene handles.

func ImportGeometry(scene *core.Scene, src AssetSource, name string) (core.GeometryHandle, error) {
	g, err := src.Geometry(name)
	if err != nil {
		return core.GeometryHandle{}, err
	}
	return scene.AddGeometry(g)
}

func ImportMaterial(scene *core.Scene, src AssetSource, name string) (core.MaterialHandle, error) {
	m, err := src.Material(name)
	if err != nil {
		return core.MaterialHandle{}, err
	}
	h, err := scene.CreateMaterialFor(m.Pipeline())
	if err != nil {
		return core.MaterialHandle{}, err
	}
	for _, key := range m.Names() {
		p, _ := m.Param(key)
		if p.Kind == core.ParamFloat {
			err = scene.SetFloat(h, key, p.Value[0])
		} else {
			err = scene.SetFloat4(h, key, p.Value[0], p.Value[1], p.Value[2], p.Value[3])
		}
		if err != nil {
			return core.MaterialHandle{}, err
		}
	}
	return h, nil
}

// ImportCamera replaces the scene camera.
func ImportCamera(scene *core.Scene, src AssetSource, index int) error {
	c, err := src.Camera(index)
	if err != nil {
		return err
	}
	scene.SetCamera(c)
	return nil
}

func ImportLight(scene *core.Scene, src AssetSource, index int) (core.LightHandle, error) {
	l, err := src.Light(index)
	if err != nil {
		return core.LightHandle{}, err
	}
	return scene.AddLight(l)
}
