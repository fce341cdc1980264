package core

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

type SceneConfig struct {
	Width     int
	Height    int
	MaxLights int
}

// Scene is the per-session drawing context. It owns every mesh, geometry,
// material and light created through it; handles it returns are only valid
// against this scene and only until Close.
type Scene struct {
	id     uint32
	config SceneConfig
	closed bool

	transforms *TransformStack
	camera     *CameraState
	lights     LightSet
	meshes     slotTable[*Mesh]
	geometries slotTable[*Geometry]
	materials  slotTable[*Material]

	recording      *Mesh
	// recording was opened inside the active frame
	frameRecording bool

	active     bool
	draws      []DrawItem
	current    *MaterialHandle
	fill       mgl32.Vec4
	noFill     bool
	background mgl32.Vec4

	stroke       mgl32.Vec4
	noStroke     bool
	strokeWeight float32

	frame   uint64
	elapsed time.Duration
	dt      time.Duration
}

func NewScene(config SceneConfig) *Scene {
	return &Scene{
		id:           sceneSeq.Add(1),
		config:       config,
		transforms:   NewTransformStack(),
		camera:       NewCameraState(),
		fill:         White,
		background:   mgl32.Vec4{0.8, 0.8, 0.8, 1},
		stroke:       mgl32.Vec4{0, 0, 0, 1},
		strokeWeight: 1,
	}
}

func (s *Scene) ID() uint32             { return s.id }
func (s *Scene) Config() SceneConfig    { return s.config }
func (s *Scene) Closed() bool           { return s.closed }
func (s *Scene) FrameActive() bool      { return s.active }
func (s *Scene) Frame() uint64          { return s.frame }
func (s *Scene) Elapsed() time.Duration { return s.elapsed }

func (s *Scene) Resize(width, height int) {
	s.config.Width = width
	s.config.Height = height
}

func (s *Scene) check(h handle) error {
	if s.closed {
		return fmt.Errorf("scene %d is closed: %w", s.id, ErrInvalidHandle)
	}
	if h.scene != s.id {
		return fmt.Errorf("handle from scene %d used on scene %d: %w", h.scene, s.id, ErrInvalidHandle)
	}
	return nil
}

func (s *Scene) handle(slot, gen uint32) handle {
	return handle{scene: s.id, slot: slot, gen: gen}
}

// Transform stack

func (s *Scene) Transforms() *TransformStack { return s.transforms }
func (s *Scene) PushMatrix()                 { s.transforms.Push() }
func (s *Scene) PopMatrix() error            { return s.transforms.Pop() }
func (s *Scene) ResetMatrix()                { s.transforms.ResetMatrix() }
func (s *Scene) Translate(x, y, z float32)   { s.transforms.Translate(x, y, z) }
func (s *Scene) Rotate(angle float32)        { s.transforms.Rotate(angle) }
func (s *Scene) RotateX(angle float32)       { s.transforms.RotateX(angle) }
func (s *Scene) RotateY(angle float32)       { s.transforms.RotateY(angle) }
func (s *Scene) RotateZ(angle float32)       { s.transforms.RotateZ(angle) }
func (s *Scene) Scale(x, y, z float32)       { s.transforms.Scale(x, y, z) }
func (s *Scene) ShearX(angle float32)        { s.transforms.ShearX(angle) }
func (s *Scene) ShearY(angle float32)        { s.transforms.ShearY(angle) }

func (s *Scene) RotateAxis(angle, x, y, z float32) error {
	return s.transforms.RotateAxis(angle, mgl32.Vec3{x, y, z})
}

// Meshes

func (s *Scene) CreateMesh() (MeshHandle, error) {
	if s.closed {
		return MeshHandle{}, fmt.Errorf("create mesh: %w", ErrInvalidHandle)
	}
	slot, gen := s.meshes.insert(NewMesh())
	return MeshHandle{s.handle(slot, gen)}, nil
}

func (s *Scene) mesh(h MeshHandle) (*Mesh, error) {
	if err := s.check(h.h); err != nil {
		return nil, err
	}
	m, ok := s.meshes.get(h.h.slot, h.h.gen)
	if !ok {
		return nil, fmt.Errorf("mesh %d/%d: %w", h.h.slot, h.h.gen, ErrInvalidHandle)
	}
	return m, nil
}

func (s *Scene) MeshVertex(h MeshHandle, x, y, z float32) (uint32, error) {
	m, err := s.mesh(h)
	if err != nil {
		return 0, err
	}
	return m.Vertex(x, y, z), nil
}

func (s *Scene) MeshIndex(h MeshHandle, i uint32) error {
	m, err := s.mesh(h)
	if err != nil {
		return err
	}
	m.Index(i)
	return nil
}

func (s *Scene) MeshTriangle(h MeshHandle, a, b, c uint32) error {
	m, err := s.mesh(h)
	if err != nil {
		return err
	}
	m.Triangle(a, b, c)
	return nil
}

func (s *Scene) MeshNormal(h MeshHandle, x, y, z float32) error {
	m, err := s.mesh(h)
	if err != nil {
		return err
	}
	m.SetNormal(x, y, z)
	return nil
}

func (s *Scene) MeshColor(h MeshHandle, r, g, b, a float32) error {
	m, err := s.mesh(h)
	if err != nil {
		return err
	}
	m.SetColor(r, g, b, a)
	return nil
}

func (s *Scene) SetVertex(h MeshHandle, i int, x, y, z float32) error {
	m, err := s.mesh(h)
	if err != nil {
		return err
	}
	return m.SetVertex(i, x, y, z)
}

func (s *Scene) SetVertexNormal(h MeshHandle, i int, x, y, z float32) error {
	m, err := s.mesh(h)
	if err != nil {
		return err
	}
	return m.SetVertexNormal(i, x, y, z)
}

func (s *Scene) SetVertexColor(h MeshHandle, i int, r, g, b, a float32) error {
	m, err := s.mesh(h)
	if err != nil {
		return err
	}
	return m.SetVertexColor(i, r, g, b, a)
}

func (s *Scene) MeshVertexCount(h MeshHandle) (int, error) {
	m, err := s.mesh(h)
	if err != nil {
		return 0, err
	}
	return m.VertexCount(), nil
}

func (s *Scene) MeshIndexCount(h MeshHandle) (int, error) {
	m, err := s.mesh(h)
	if err != nil {
		return 0, err
	}
	return m.IndexCount(), nil
}

func (s *Scene) MeshPositions(h MeshHandle) ([]mgl32.Vec3, error) {
	m, err := s.mesh(h)
	if err != nil {
		return nil, err
	}
	return m.Positions(), nil
}

func (s *Scene) MeshIndices(h MeshHandle) ([]uint32, error) {
	m, err := s.mesh(h)
	if err != nil {
		return nil, err
	}
	return m.Indices(), nil
}

func (s *Scene) DestroyMesh(h MeshHandle) error {
	if err := s.check(h.h); err != nil {
		return err
	}
	if !s.meshes.remove(h.h.slot, h.h.gen) {
		return fmt.Errorf("destroy mesh %d/%d: %w", h.h.slot, h.h.gen, ErrInvalidHandle)
	}
	return nil
}

// Recorded geometry

func (s *Scene) BeginGeometry() error {
	if s.closed {
		return fmt.Errorf("begin geometry: %w", ErrInvalidHandle)
	}
	if s.recording != nil {
		return fmt.Errorf("begin geometry: %w", ErrAlreadyRecording)
	}
	s.recording = NewMesh()
	s.frameRecording = s.active
	return nil
}

func (s *Scene) Recording() bool { return s.recording != nil }

// EndGeometry freezes the recording. An empty recording is discarded.
func (s *Scene) EndGeometry() (GeometryHandle, error) {
	if s.recording == nil {
		return GeometryHandle{}, fmt.Errorf("end geometry: %w", ErrNotRecording)
	}
	rec := s.recording
	s.recording = nil
	s.frameRecording = false
	if rec.VertexCount() == 0 {
		return GeometryHandle{}, fmt.Errorf("end geometry: %w", ErrEmptyRecording)
	}
	g, err := rec.Freeze()
	if err != nil {
		return GeometryHandle{}, fmt.Errorf("end geometry: %w", err)
	}
	return s.AddGeometry(g)
}

// AddGeometry takes ownership of an already built geometry, e.g. an import.
func (s *Scene) AddGeometry(g *Geometry) (GeometryHandle, error) {
	if s.closed {
		return GeometryHandle{}, fmt.Errorf("add geometry: %w", ErrInvalidHandle)
	}
	slot, gen := s.geometries.insert(g)
	return GeometryHandle{s.handle(slot, gen)}, nil
}

func (s *Scene) geometry(h GeometryHandle) (*Geometry, error) {
	if err := s.check(h.h); err != nil {
		return nil, err
	}
	g, ok := s.geometries.get(h.h.slot, h.h.gen)
	if !ok {
		return nil, fmt.Errorf("geometry %d/%d: %w", h.h.slot, h.h.gen, ErrInvalidHandle)
	}
	return g, nil
}

func (s *Scene) GeometryVertexCount(h GeometryHandle) (int, error) {
	g, err := s.geometry(h)
	if err != nil {
		return 0, err
	}
	return g.VertexCount(), nil
}

func (s *Scene) GeometryIndexCount(h GeometryHandle) (int, error) {
	g, err := s.geometry(h)
	if err != nil {
		return 0, err
	}
	return g.IndexCount(), nil
}

func (s *Scene) GeometryIndices(h GeometryHandle) ([]uint32, error) {
	g, err := s.geometry(h)
	if err != nil {
		return nil, err
	}
	return g.Indices(), nil
}

func (s *Scene) DestroyGeometry(h GeometryHandle) error {
	if err := s.check(h.h); err != nil {
		return err
	}
	if !s.geometries.remove(h.h.slot, h.h.gen) {
		return fmt.Errorf("destroy geometry %d/%d: %w", h.h.slot, h.h.gen, ErrInvalidHandle)
	}
	return nil
}

// Immediate primitives

func (s *Scene) Box(width, height, depth float32) error {
	return s.emitFill(BoxMesh(width, height, depth, s.fill))
}

func (s *Scene) Sphere(radius float32) error {
	return s.SphereDetail(radius, DefaultSphereSectors, DefaultSphereStacks)
}

func (s *Scene) SphereDetail(radius float32, sectors, stacks int) error {
	m, err := SphereMesh(radius, sectors, stacks, s.fill)
	if err != nil {
		return err
	}
	return s.emitFill(m)
}

func (s *Scene) Plane(width, height float32) error {
	return s.emitFill(PlaneMesh(width, height, s.fill))
}

// Rect draws a 2D rect with (x, y) as its top-left corner: the fill, then
// the stroke outline on top. radii rounds the corners, either one radius
// for all four or tl, tr, br, bl.
func (s *Scene) Rect(x, y, w, h float32, radii ...float32) error {
	var fill, stroke *Mesh
	var err error
	if !s.noFill {
		if fill, err = RectMesh(x, y, w, h, radii, s.fill); err != nil {
			return err
		}
	}
	if !s.noStroke {
		if stroke, err = RectStrokeMesh(x, y, w, h, radii, s.strokeWeight, s.stroke); err != nil {
			return err
		}
	}
	if fill == nil && stroke == nil {
		if _, err := rectOutline(x, y, w, h, radii); err != nil {
			return err
		}
		return s.canEmit()
	}
	if fill != nil {
		if err := s.emit(fill); err != nil {
			return err
		}
	}
	if stroke != nil {
		return s.emit(stroke)
	}
	return nil
}

// emitFill is emit for filled bodies; with NoFill it only checks that a
// primitive could have been emitted.
func (s *Scene) emitFill(m *Mesh) error {
	if s.noFill {
		return s.canEmit()
	}
	return s.emit(m)
}

func (s *Scene) canEmit() error {
	if s.closed {
		return fmt.Errorf("emit primitive: %w", ErrInvalidHandle)
	}
	if s.recording == nil && !s.active {
		return fmt.Errorf("emit primitive: %w", ErrFrameNotActive)
	}
	return nil
}

// emit bakes m under the current transform, into the open recording or the
// frame's draw list.
func (s *Scene) emit(m *Mesh) error {
	if err := s.canEmit(); err != nil {
		return err
	}
	model := s.transforms.Top()
	if s.recording != nil {
		s.recording.appendTransformed(m.vertices, m.indices, model)
		return nil
	}
	mat, err := s.currentMaterial()
	if err != nil {
		return err
	}
	baked := NewMesh()
	baked.appendTransformed(m.vertices, m.indices, model)
	s.draws = append(s.draws, DrawItem{
		Key:      BufferKey{Source: SourceImmediate},
		Vertices: baked.vertices,
		Indices:  baked.indices,
		Model:    mgl32.Ident4(),
		Material: mat,
	})
	return nil
}

// Draw submission

func (s *Scene) DrawMesh(h MeshHandle) error {
	m, err := s.mesh(h)
	if err != nil {
		return err
	}
	if !s.active {
		return fmt.Errorf("draw mesh: %w", ErrFrameNotActive)
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("draw mesh: %w", err)
	}
	mat, err := s.currentMaterial()
	if err != nil {
		return err
	}
	s.draws = append(s.draws, DrawItem{
		Key:      BufferKey{Source: SourceMesh, Slot: h.h.slot, Gen: h.h.gen, Version: m.Version()},
		Vertices: m.Vertices(),
		Indices:  m.Indices(),
		Model:    s.transforms.Top(),
		Material: mat,
	})
	return nil
}

func (s *Scene) DrawGeometry(h GeometryHandle) error {
	g, err := s.geometry(h)
	if err != nil {
		return err
	}
	if !s.active {
		return fmt.Errorf("draw geometry: %w", ErrFrameNotActive)
	}
	mat, err := s.currentMaterial()
	if err != nil {
		return err
	}
	s.draws = append(s.draws, DrawItem{
		Key:      BufferKey{Source: SourceGeometry, Slot: h.h.slot, Gen: h.h.gen},
		Vertices: g.vertices,
		Indices:  g.indices,
		Model:    s.transforms.Top(),
		Material: mat,
	})
	return nil
}

// Materials

func (s *Scene) CreateMaterial() (MaterialHandle, error) {
	return s.CreateMaterialFor(nil)
}

// CreateMaterialFor binds the new material to pipeline; nil means StandardPipeline.
func (s *Scene) CreateMaterialFor(pipeline *Pipeline) (MaterialHandle, error) {
	if s.closed {
		return MaterialHandle{}, fmt.Errorf("create material: %w", ErrInvalidHandle)
	}
	slot, gen := s.materials.insert(NewMaterial(pipeline))
	return MaterialHandle{s.handle(slot, gen)}, nil
}

func (s *Scene) material(h MaterialHandle) (*Material, error) {
	if err := s.check(h.h); err != nil {
		return nil, err
	}
	m, ok := s.materials.get(h.h.slot, h.h.gen)
	if !ok {
		return nil, fmt.Errorf("material %d/%d: %w", h.h.slot, h.h.gen, ErrInvalidHandle)
	}
	return m, nil
}

func (s *Scene) SetFloat(h MaterialHandle, name string, v float32) error {
	m, err := s.material(h)
	if err != nil {
		return err
	}
	m.SetFloat(name, v)
	return nil
}

func (s *Scene) SetFloat4(h MaterialHandle, name string, r, g, b, a float32) error {
	m, err := s.material(h)
	if err != nil {
		return err
	}
	m.SetFloat4(name, r, g, b, a)
	return nil
}

// MaterialFloat reads name as the material's pipeline sees it, so a declared
// but unset parameter reports its default. Undeclared names must have been set.
func (s *Scene) MaterialFloat(h MaterialHandle, name string) (float32, error) {
	p, err := s.materialParam(h, name, ParamFloat)
	return p.Value[0], err
}

func (s *Scene) MaterialFloat4(h MaterialHandle, name string) (mgl32.Vec4, error) {
	p, err := s.materialParam(h, name, ParamFloat4)
	return p.Value, err
}

func (s *Scene) materialParam(h MaterialHandle, name string, kind ParamKind) (Param, error) {
	m, err := s.material(h)
	if err != nil {
		return Param{}, err
	}
	p, err := m.Effective(name)
	if err != nil {
		return Param{}, err
	}
	if p.Kind != kind {
		return Param{}, fmt.Errorf("material parameter %q is %s: %w", name, p.Kind, ErrInvalidArgument)
	}
	return p, nil
}

func (s *Scene) ResolveMaterial(h MaterialHandle) (ResolvedMaterial, error) {
	m, err := s.material(h)
	if err != nil {
		return ResolvedMaterial{}, err
	}
	return m.Resolve()
}

// UseMaterial selects the material for subsequent draws until changed or
// the frame ends.
func (s *Scene) UseMaterial(h MaterialHandle) error {
	if _, err := s.material(h); err != nil {
		return err
	}
	s.current = &h
	return nil
}

func (s *Scene) UseDefaultMaterial() {
	s.current = nil
}

func (s *Scene) DestroyMaterial(h MaterialHandle) error {
	if err := s.check(h.h); err != nil {
		return err
	}
	if !s.materials.remove(h.h.slot, h.h.gen) {
		return fmt.Errorf("destroy material %d/%d: %w", h.h.slot, h.h.gen, ErrInvalidHandle)
	}
	return nil
}

func (s *Scene) currentMaterial() (ResolvedMaterial, error) {
	if s.current == nil {
		return DefaultMaterial(), nil
	}
	return s.ResolveMaterial(*s.current)
}

// Lights

func (s *Scene) addLight(l Light, err error) (LightHandle, error) {
	if s.closed {
		return LightHandle{}, fmt.Errorf("create light: %w", ErrInvalidHandle)
	}
	if err != nil {
		return LightHandle{}, err
	}
	slot := s.lights.add(l)
	return LightHandle{s.handle(uint32(slot), 1)}, nil
}

func (s *Scene) CreateDirectionalLight(r, g, b, intensity float32) (LightHandle, error) {
	return s.addLight(NewDirectionalLight(mgl32.Vec3{r, g, b}, intensity))
}

func (s *Scene) CreatePointLight(r, g, b, intensity, radius float32) (LightHandle, error) {
	return s.addLight(NewPointLight(mgl32.Vec3{r, g, b}, intensity, radius))
}

func (s *Scene) CreateSpotLight(r, g, b, intensity, radius, inner, outer float32) (LightHandle, error) {
	return s.addLight(NewSpotLight(mgl32.Vec3{r, g, b}, intensity, radius, inner, outer))
}

// AddLight registers an already built light, e.g. an import.
func (s *Scene) AddLight(l Light) (LightHandle, error) {
	return s.addLight(l, l.Validate())
}

func (s *Scene) light(h LightHandle) (*Light, error) {
	if err := s.check(h.h); err != nil {
		return nil, err
	}
	if int(h.h.slot) >= len(s.lights.lights) || h.h.gen != 1 {
		return nil, fmt.Errorf("light %d: %w", h.h.slot, ErrInvalidHandle)
	}
	return &s.lights.lights[h.h.slot], nil
}

func (s *Scene) LightPosition(h LightHandle, x, y, z float32) error {
	l, err := s.light(h)
	if err != nil {
		return err
	}
	l.SetPosition(mgl32.Vec3{x, y, z})
	return nil
}

func (s *Scene) LightLookAt(h LightHandle, x, y, z float32) error {
	l, err := s.light(h)
	if err != nil {
		return err
	}
	l.LookAt(mgl32.Vec3{x, y, z})
	return nil
}

func (s *Scene) Light(h LightHandle) (Light, error) {
	l, err := s.light(h)
	if err != nil {
		return Light{}, err
	}
	return *l, nil
}

// Lights returns every light in registration order.
func (s *Scene) Lights() []Light { return s.lights.All() }
func (s *Scene) LightCount() int { return s.lights.Len() }

// Camera

func (s *Scene) CameraPosition(x, y, z float32) { s.camera.SetPosition(mgl32.Vec3{x, y, z}) }
func (s *Scene) CameraLookAt(x, y, z float32)   { s.camera.LookAt(mgl32.Vec3{x, y, z}) }
func (s *Scene) Mode2D()                        { s.camera.SetMode(Mode2D) }
func (s *Scene) Mode3D()                        { s.camera.SetMode(Mode3D) }

func (s *Scene) Perspective(fov, aspect, near, far float32) error {
	return s.camera.Perspective(fov, aspect, near, far)
}

func (s *Scene) Ortho(left, right, bottom, top, near, far float32) error {
	return s.camera.Ortho(left, right, bottom, top, near, far)
}

// Camera returns a copy of the camera state.
func (s *Scene) Camera() CameraState { return *s.camera }

// SetCamera replaces the camera state, e.g. from an import.
func (s *Scene) SetCamera(c CameraState) { *s.camera = c }

// Style

func (s *Scene) Background(r, g, b, a float32) { s.background = mgl32.Vec4{r, g, b, a} }

func (s *Scene) Fill(r, g, b, a float32) {
	s.fill = mgl32.Vec4{r, g, b, a}
	s.noFill = false
}

// NoFill skips the filled body of every immediate primitive until the next Fill.
func (s *Scene) NoFill() { s.noFill = true }

// Stroke colors rect outlines. Other primitives are never stroked.
func (s *Scene) Stroke(r, g, b, a float32) {
	s.stroke = mgl32.Vec4{r, g, b, a}
	s.noStroke = false
}

func (s *Scene) NoStroke() { s.noStroke = true }

func (s *Scene) StrokeWeight(weight float32) error {
	if weight <= 0 {
		return fmt.Errorf("stroke weight %v: %w", weight, ErrInvalidArgument)
	}
	s.strokeWeight = weight
	return nil
}

// Frame lifecycle

func (s *Scene) BeginFrame(dt time.Duration) error {
	if s.closed {
		return fmt.Errorf("begin frame: %w", ErrInvalidHandle)
	}
	s.transforms.Reset()
	s.draws = s.draws[:0]
	s.dt = dt
	s.elapsed += dt
	s.active = true
	return nil
}

// EndFrame snapshots the frame into a batch and resets per-frame state.
// A recording begun during the frame and still open is discarded and the
// frame fails with ErrAlreadyRecording.
func (s *Scene) EndFrame() (*FrameBatch, error) {
	if !s.active {
		return nil, fmt.Errorf("end frame: %w", ErrFrameNotActive)
	}
	s.active = false
	s.current = nil
	if s.recording != nil && s.frameRecording {
		s.recording = nil
		s.frameRecording = false
		s.draws = s.draws[:0]
		return nil, fmt.Errorf("end frame %d: geometry recording left open: %w", s.frame, ErrAlreadyRecording)
	}

	w, h := float32(s.config.Width), float32(s.config.Height)
	batch := &FrameBatch{
		Scene:          s.id,
		Frame:          s.frame,
		Elapsed:        s.elapsed.Seconds(),
		Dt:             s.dt.Seconds(),
		Width:          s.config.Width,
		Height:         s.config.Height,
		Background:     s.background,
		Mode:           s.camera.Mode,
		CameraPosition: s.camera.Position(w, h),
		View:           s.camera.GetViewMatrix(w, h),
		Projection:     s.camera.GetProjectionMatrix(w, h),
		Lights:         s.lights.Active(s.config.MaxLights),
		Draws:          s.draws,
	}
	s.frame++

	out, err := snapshotBatch(batch)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases everything the scene owns. Outstanding handles become invalid.
func (s *Scene) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.active = false
	s.recording = nil
	s.current = nil
	s.draws = nil
	s.meshes.clear()
	s.geometries.clear()
	s.materials.clear()
	s.lights = LightSet{}
}

// Counts reports live resources; used for stats.
func (s *Scene) Counts() (meshes, geometries, materials, lights int) {
	return s.meshes.len(), s.geometries.len(), s.materials.len(), s.lights.Len()
}
