package soft

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/fogleman/fauxgl"

	"github.com/gekko3d/sketch/sketchrt/rt/core"
)

var ErrReleased = errors.New("soft renderer released")

// Stats describe the last submitted frame.
type Stats struct {
	Frame     uint64
	Draws     int
	Triangles int
	Skipped   int
}

// Renderer rasterizes frame batches on the CPU with fauxgl. It needs no
// window or GPU and is used for off-screen export and tests.
type Renderer struct {
	mu       sync.Mutex
	width    int
	height   int
	context  *fauxgl.Context
	frame    *image.NRGBA
	pending  bool
	released bool
	stats    Stats
	meshes   map[core.BufferKey]*fauxgl.Mesh
}

func New(width, height int) *Renderer {
	return &Renderer{
		width:   width,
		height:  height,
		context: newContext(width, height),
		meshes:  make(map[core.BufferKey]*fauxgl.Mesh),
	}
}

func newContext(width, height int) *fauxgl.Context {
	ctx := fauxgl.NewContext(width, height)
	ctx.Cull = fauxgl.CullNone
	return ctx
}

func (r *Renderer) Name() string { return "soft" }

func (r *Renderer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if width <= 0 || height <= 0 || (width == r.width && height == r.height) {
		return
	}
	r.width, r.height = width, height
	if !r.released {
		r.context = newContext(width, height)
	}
}

func (r *Renderer) Submit(batch *core.FrameBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	if batch.Width != r.width || batch.Height != r.height {
		r.width, r.height = batch.Width, batch.Height
		r.context = newContext(r.width, r.height)
	}

	ctx := r.context
	ctx.ClearColorBufferWith(toColor(batch.Background))
	ctx.ClearDepthBuffer()

	stats := Stats{Frame: batch.Frame}
	live := make(map[core.BufferKey]bool, len(batch.Draws))
	for i := range batch.Draws {
		item := &batch.Draws[i]
		if len(item.Indices) == 0 {
			stats.Skipped++
			continue
		}
		mesh, err := r.mesh(item)
		if err != nil {
			fmt.Printf("ERROR: frame %d draw %d: %v\n", batch.Frame, i, err)
			stats.Skipped++
			continue
		}
		if item.Key.Cacheable() {
			live[item.Key] = true
		}
		ctx.Shader = newMeshShader(batch, item)
		ctx.DrawMesh(mesh)
		stats.Draws++
		stats.Triangles += len(item.Indices) / 3
	}
	for key := range r.meshes {
		if !live[key] {
			delete(r.meshes, key)
		}
	}
	r.stats = stats
	r.pending = true
	return nil
}

// mesh returns the fauxgl mesh for a draw, reusing the one built for the
// same buffer key on an earlier frame.
func (r *Renderer) mesh(item *core.DrawItem) (*fauxgl.Mesh, error) {
	if item.Key.Cacheable() {
		if m, ok := r.meshes[item.Key]; ok {
			return m, nil
		}
	}
	tris := make([]*fauxgl.Triangle, 0, len(item.Indices)/3)
	for i := 0; i+2 < len(item.Indices); i += 3 {
		a, b, c := item.Indices[i], item.Indices[i+1], item.Indices[i+2]
		if int(a) >= len(item.Vertices) || int(b) >= len(item.Vertices) || int(c) >= len(item.Vertices) {
			return nil, fmt.Errorf("triangle %d: %w", i/3, core.ErrIndexOutOfRange)
		}
		tris = append(tris, &fauxgl.Triangle{
			V1: toVertex(item.Vertices[a]),
			V2: toVertex(item.Vertices[b]),
			V3: toVertex(item.Vertices[c]),
		})
	}
	m := fauxgl.NewTriangleMesh(tris)
	if item.Key.Cacheable() {
		r.meshes[item.Key] = m
	}
	return m, nil
}

func toVertex(v core.Vertex) fauxgl.Vertex {
	return fauxgl.Vertex{
		Position: toVector(v.Position),
		Normal:   toVector(v.Normal),
		Color:    toColor(v.Color),
	}
}

// Present publishes the last submitted frame for Readback.
func (r *Renderer) Present() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	if !r.pending {
		return nil
	}
	src := r.context.Image()
	if r.frame == nil || r.frame.Bounds() != src.Bounds() {
		r.frame = image.NewNRGBA(src.Bounds())
	}
	draw.Draw(r.frame, r.frame.Bounds(), src, src.Bounds().Min, draw.Src)
	r.pending = false
	return nil
}

// Readback returns a copy of the last presented frame.
func (r *Renderer) Readback() (image.Image, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frame == nil {
		return nil, false, core.ErrNotReady
	}
	out := image.NewNRGBA(r.frame.Bounds())
	copy(out.Pix, r.frame.Pix)
	return out, true, nil
}

func (r *Renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = true
	r.context = nil
	r.meshes = nil
}
