package gpu

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/sketch/sketchrt/rt/core"
	"github.com/gekko3d/sketch/sketchrt/rt/shaders"
)

var ErrReleased = errors.New("wgpu renderer released")

const maxMapPolls = 100

type Options struct {
	Width  int
	Height int
	// Window is nil for off-screen rendering.
	Window *Window
	// MaxLights sizes the light buffer up front; it grows on demand.
	MaxLights int
}

type meshBuffers struct {
	vertex     *wgpu.Buffer
	index      *wgpu.Buffer
	indexCount uint32
}

func (m *meshBuffers) release() {
	if m.vertex != nil {
		m.vertex.Release()
	}
	if m.index != nil {
		m.index.Release()
	}
}

// Renderer draws frame batches with wgpu, either into a window surface or
// into an off-screen texture that is read back after every present.
type Renderer struct {
	mu       sync.Mutex
	state    *gpuState
	window   *Window
	width    int
	height   int
	released bool

	pipeline  *wgpu.RenderPipeline
	bindGroup *wgpu.BindGroup

	frameBuf      *wgpu.Buffer
	lightBuf      *wgpu.Buffer
	lightCapacity int
	drawBuf       *wgpu.Buffer
	drawCapacity  int

	depthTex  *wgpu.Texture
	depthView *wgpu.TextureView
	colorTex  *wgpu.Texture
	colorView *wgpu.TextureView
	readBuf   *wgpu.Buffer

	surfaceTex *wgpu.Texture
	pending    bool
	frame      *image.NRGBA

	meshes map[core.BufferKey]*meshBuffers
}

func New(opts Options) (*Renderer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("renderer size %dx%d: %w", opts.Width, opts.Height, core.ErrInvalidArgument)
	}
	state, err := createGpuState(opts.Window, opts.Width, opts.Height)
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		state:  state,
		window: opts.Window,
		width:  opts.Width,
		height: opts.Height,
		meshes: make(map[core.BufferKey]*meshBuffers),
	}

	r.pipeline, err = createRenderPipeline("Mesh Pipeline", shaders.MeshWGSL, gpuVertex{}, state.format, state.device)
	if err != nil {
		r.Release()
		return nil, err
	}
	r.frameBuf, err = state.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Frame Uniforms",
		Size:  uint64(sizeOf[frameUniforms]()),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		r.Release()
		return nil, err
	}
	if err := r.ensureStorage(max(opts.MaxLights, 1), 16); err != nil {
		r.Release()
		return nil, err
	}
	if err := r.createTargets(); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) Name() string { return "wgpu" }

// Paced reports whether presentation blocks on vsync.
func (r *Renderer) Paced() bool { return r.window != nil }

func (r *Renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released || width <= 0 || height <= 0 || (width == r.width && height == r.height) {
		return
	}
	r.resize(width, height)
}

func (r *Renderer) resize(width, height int) {
	r.width, r.height = width, height
	r.state.resizeSurface(width, height)
	if err := r.createTargets(); err != nil {
		fmt.Printf("ERROR: resize to %dx%d: %v\n", width, height, err)
	}
}

// createTargets (re)creates the depth buffer and, off-screen, the color
// texture and its readback buffer.
func (r *Renderer) createTargets() error {
	r.releaseTargets()
	device := r.state.device
	size := wgpu.Extent3D{Width: uint32(r.width), Height: uint32(r.height), DepthOrArrayLayers: 1}

	var err error
	r.depthTex, err = device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Depth Tex",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return err
	}
	if r.depthView, err = r.depthTex.CreateView(nil); err != nil {
		return err
	}
	if r.window != nil {
		return nil
	}

	r.colorTex, err = device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Color Tex",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        offscreenFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return err
	}
	if r.colorView, err = r.colorTex.CreateView(nil); err != nil {
		return err
	}
	r.readBuf, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Readback",
		Size:  uint64(alignedBytesPerRow(r.width)) * uint64(r.height),
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	return err
}

func (r *Renderer) releaseTargets() {
	for _, v := range []*wgpu.TextureView{r.depthView, r.colorView} {
		if v != nil {
			v.Release()
		}
	}
	for _, t := range []*wgpu.Texture{r.depthTex, r.colorTex} {
		if t != nil {
			t.Release()
		}
	}
	if r.readBuf != nil {
		r.readBuf.Release()
	}
	r.depthView, r.colorView, r.depthTex, r.colorTex, r.readBuf = nil, nil, nil, nil, nil
}

// ensureStorage grows the light and draw storage buffers to hold at least
// the given counts and rebuilds the bind group when either changes.
func (r *Renderer) ensureStorage(lights, draws int) error {
	device := r.state.device
	changed := false
	if lights > r.lightCapacity {
		if r.lightBuf != nil {
			r.lightBuf.Release()
		}
		buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "Lights",
			Size:  uint64(lights * sizeOf[core.GPULight]()),
			Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return err
		}
		r.lightBuf, r.lightCapacity, changed = buf, lights, true
	}
	if draws > r.drawCapacity {
		capacity := max(draws, 2*r.drawCapacity)
		if r.drawBuf != nil {
			r.drawBuf.Release()
		}
		buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "Draw Uniforms",
			Size:  uint64(capacity * sizeOf[drawUniforms]()),
			Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return err
		}
		r.drawBuf, r.drawCapacity, changed = buf, capacity, true
	}
	if !changed && r.bindGroup != nil {
		return nil
	}

	if r.bindGroup != nil {
		r.bindGroup.Release()
	}
	layout := r.pipeline.GetBindGroupLayout(0)
	defer layout.Release()
	var err error
	r.bindGroup, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Mesh BG",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: r.frameBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: r.lightBuf, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: r.drawBuf, Size: wgpu.WholeSize},
		},
	})
	return err
}

func (r *Renderer) Submit(batch *core.FrameBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	if batch.Width > 0 && batch.Height > 0 && (batch.Width != r.width || batch.Height != r.height) {
		r.resize(batch.Width, batch.Height)
	}
	if r.surfaceTex != nil {
		// previous frame was never presented
		r.surfaceTex.Release()
		r.surfaceTex = nil
	}

	var draws []*core.DrawItem
	for i := range batch.Draws {
		if len(batch.Draws[i].Indices) > 0 && len(batch.Draws[i].Vertices) > 0 {
			draws = append(draws, &batch.Draws[i])
		}
	}
	if err := r.ensureStorage(len(batch.Lights), len(draws)); err != nil {
		return fmt.Errorf("storage buffers: %w", err)
	}

	queue := r.state.queue
	frame := packFrame(batch, len(batch.Lights))
	if err := queue.WriteBuffer(r.frameBuf, 0, wgpu.ToBytes([]frameUniforms{frame})); err != nil {
		return err
	}
	if len(batch.Lights) > 0 {
		if err := queue.WriteBuffer(r.lightBuf, 0, wgpu.ToBytes(packLights(batch.Lights, len(batch.Lights)))); err != nil {
			return err
		}
	}
	if len(draws) > 0 {
		uniforms := make([]drawUniforms, len(draws))
		for i, d := range draws {
			uniforms[i] = packDraw(d)
		}
		if err := queue.WriteBuffer(r.drawBuf, 0, wgpu.ToBytes(uniforms)); err != nil {
			return err
		}
	}

	buffers := make([]*meshBuffers, len(draws))
	var transient []*meshBuffers
	defer func() {
		for _, m := range transient {
			m.release()
		}
	}()
	live := make(map[core.BufferKey]bool, len(draws))
	for i, d := range draws {
		m, cached, err := r.meshBuffers(d)
		if err != nil {
			return fmt.Errorf("frame %d draw %d: %w", batch.Frame, i, err)
		}
		if cached {
			live[d.Key] = true
		} else {
			transient = append(transient, m)
		}
		buffers[i] = m
	}
	for key, m := range r.meshes {
		if !live[key] {
			m.release()
			delete(r.meshes, key)
		}
	}

	view, err := r.targetView()
	if err != nil {
		return err
	}
	if r.window != nil {
		defer view.Release()
	}

	encoder, err := r.state.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	bg := batch.Background
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: float64(bg[0]), G: float64(bg[1]), B: float64(bg[2]), A: float64(bg[3])},
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            r.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		},
	})
	pass.SetPipeline(r.pipeline)
	pass.SetBindGroup(0, r.bindGroup, nil)
	for i, m := range buffers {
		pass.SetVertexBuffer(0, m.vertex, 0, wgpu.WholeSize)
		pass.SetIndexBuffer(m.index, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(m.indexCount, 1, 0, 0, uint32(i))
	}
	if err := pass.End(); err != nil {
		pass.Release()
		return err
	}
	pass.Release()

	if r.window == nil {
		encoder.CopyTextureToBuffer(
			&wgpu.ImageCopyTexture{Texture: r.colorTex, MipLevel: 0, Origin: wgpu.Origin3D{}},
			&wgpu.ImageCopyBuffer{
				Buffer: r.readBuf,
				Layout: wgpu.TextureDataLayout{
					Offset:       0,
					BytesPerRow:  alignedBytesPerRow(r.width),
					RowsPerImage: uint32(r.height),
				},
			},
			&wgpu.Extent3D{Width: uint32(r.width), Height: uint32(r.height), DepthOrArrayLayers: 1},
		)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer cmd.Release()
	queue.Submit(cmd)
	r.pending = true
	return nil
}

// targetView returns the view to draw into: the swapchain texture for a
// window, the color texture otherwise.
func (r *Renderer) targetView() (*wgpu.TextureView, error) {
	if r.window == nil {
		return r.colorView, nil
	}
	var tex *wgpu.Texture
	op := func() error {
		t, err := r.state.surface.GetCurrentTexture()
		if err != nil {
			// outdated or lost swapchain; reconfigure and try again
			r.state.resizeSurface(r.width, r.height)
			return err
		}
		tex = t
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(2*time.Millisecond), 3)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("acquire surface texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	r.surfaceTex = tex
	return view, nil
}

// meshBuffers returns GPU buffers for a draw. Cacheable keys reuse the
// buffers uploaded for the same key on an earlier frame.
func (r *Renderer) meshBuffers(d *core.DrawItem) (*meshBuffers, bool, error) {
	cacheable := d.Key.Cacheable()
	if cacheable {
		if m, ok := r.meshes[d.Key]; ok {
			return m, true, nil
		}
	}
	for i, idx := range d.Indices {
		if int(idx) >= len(d.Vertices) {
			return nil, false, fmt.Errorf("index %d: %w", i, core.ErrIndexOutOfRange)
		}
	}

	device := r.state.device
	vb, err := device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "Vertex Buffer",
		Contents: wgpu.ToBytes(packVertices(d.Vertices)),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		return nil, false, err
	}
	ib, err := device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "Index Buffer",
		Contents: wgpu.ToBytes(d.Indices),
		Usage:    wgpu.BufferUsageIndex,
	})
	if err != nil {
		vb.Release()
		return nil, false, err
	}
	m := &meshBuffers{vertex: vb, index: ib, indexCount: uint32(len(d.Indices))}
	if cacheable {
		r.meshes[d.Key] = m
	}
	return m, cacheable, nil
}

// Present shows the swapchain texture, or off-screen maps the readback
// buffer and keeps the frame for Readback.
func (r *Renderer) Present() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	if !r.pending {
		return nil
	}
	r.pending = false

	if r.window != nil {
		if r.surfaceTex == nil {
			return nil
		}
		r.state.surface.Present()
		r.surfaceTex.Release()
		r.surfaceTex = nil
		return nil
	}
	return r.readFrame()
}

func (r *Renderer) readFrame() error {
	stride := int(alignedBytesPerRow(r.width))
	size := uint64(stride * r.height)

	var status wgpu.BufferMapAsyncStatus
	done := false
	err := r.readBuf.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		done = true
	})
	if err != nil {
		return fmt.Errorf("map readback: %w", err)
	}
	for i := 0; !done && i < maxMapPolls; i++ {
		r.state.device.Poll(true, nil)
	}
	if !done {
		return fmt.Errorf("map readback: %w", core.ErrNotReady)
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return fmt.Errorf("map readback: status %v", status)
	}
	defer r.readBuf.Unmap()

	data := r.readBuf.GetMappedRange(0, uint(size))
	img := image.NewNRGBA(image.Rect(0, 0, r.width, r.height))
	for y := 0; y < r.height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+r.width*4], data[y*stride:y*stride+r.width*4])
	}
	r.frame = img
	return nil
}

// Readback returns a copy of the last presented frame. Only off-screen
// renderers have one; a window presents straight to its swapchain.
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
	if r.released {
		return
	}
	r.released = true
	for key, m := range r.meshes {
		m.release()
		delete(r.meshes, key)
	}
	if r.surfaceTex != nil {
		r.surfaceTex.Release()
		r.surfaceTex = nil
	}
	r.releaseTargets()
	if r.bindGroup != nil {
		r.bindGroup.Release()
	}
	for _, b := range []*wgpu.Buffer{r.frameBuf, r.lightBuf, r.drawBuf} {
		if b != nil {
			b.Release()
		}
	}
	if r.pipeline != nil {
		r.pipeline.Release()
	}
	r.state.release()
}
