package gpu

import (
	"fmt"
	"reflect"
	"strconv"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/sketch/sketchrt/rt/core"
)

const (
	offscreenFormat = wgpu.TextureFormatRGBA8Unorm
	depthFormat     = wgpu.TextureFormatDepth24Plus
	ambient         = 0.08
)

// depthRemap maps GL clip depth (-1..1) onto WebGPU's 0..1.
var depthRemap = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

type gpuVertex struct {
	Position [3]float32 `sketch:"layout" format:"float3" location:"0"`
	Normal   [3]float32 `sketch:"layout" format:"float3" location:"1"`
	Color    [4]float32 `sketch:"layout" format:"float4" location:"2"`
}

type frameUniforms struct {
	ViewProj  [16]float32
	CameraPos [4]float32 // w: ambient
	Counts    [4]uint32  // x: light count
}

type drawUniforms struct {
	Model     [16]float32
	Normal    [16]float32
	BaseColor [4]float32
	Emissive  [4]float32
	Params    [4]float32 // metallic, roughness, reflectance, unlit
	Flags     [4]float32 // double sided, alpha mode
}

type gpuState struct {
	instance      *wgpu.Instance
	surface       *wgpu.Surface
	adapter       *wgpu.Adapter
	device        *wgpu.Device
	queue         *wgpu.Queue
	surfaceConfig *wgpu.SurfaceConfiguration
	format        wgpu.TextureFormat
}

// createGpuState requests an adapter and device. With a window the device
// is bound to a swapchain surface, otherwise it renders off-screen.
func createGpuState(win *Window, width, height int) (*gpuState, error) {
	instance := wgpu.CreateInstance(nil)
	s := &gpuState{instance: instance, format: offscreenFormat}

	opts := &wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	}
	if win != nil {
		s.surface = instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(win.win))
		opts.CompatibleSurface = s.surface
	}
	adapter, err := instance.RequestAdapter(opts)
	if err != nil {
		s.release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	s.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Sketch Device",
	})
	if err != nil {
		s.release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	s.device = device
	s.queue = device.GetQueue()

	if s.surface != nil {
		caps := s.surface.GetCapabilities(adapter)
		if len(caps.Formats) == 0 || len(caps.AlphaModes) == 0 {
			s.release()
			return nil, fmt.Errorf("surface reports no formats")
		}
		s.surfaceConfig = &wgpu.SurfaceConfiguration{
			Usage:       wgpu.TextureUsageRenderAttachment,
			Format:      caps.Formats[0],
			Width:       uint32(width),
			Height:      uint32(height),
			PresentMode: wgpu.PresentModeFifo,
			AlphaMode:   caps.AlphaModes[0],
		}
		s.format = caps.Formats[0]
		s.surface.Configure(adapter, device, s.surfaceConfig)
	}
	return s, nil
}

func (s *gpuState) resizeSurface(width, height int) {
	if s.surface == nil || width <= 0 || height <= 0 {
		return
	}
	s.surfaceConfig.Width = uint32(width)
	s.surfaceConfig.Height = uint32(height)
	s.surface.Configure(s.adapter, s.device, s.surfaceConfig)
}

func (s *gpuState) release() {
	if s.queue != nil {
		s.queue.Release()
		s.queue = nil
	}
	if s.device != nil {
		s.device.Release()
		s.device = nil
	}
	if s.adapter != nil {
		s.adapter.Release()
		s.adapter = nil
	}
	if s.surface != nil {
		s.surface.Release()
		s.surface = nil
	}
	if s.instance != nil {
		s.instance.Release()
		s.instance = nil
	}
}

func createRenderPipeline(name string, shaderCode string, vertexType any, format wgpu.TextureFormat, device *wgpu.Device) (*wgpu.RenderPipeline, error) {
	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaderCode},
	})
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", name, err)
	}
	defer shader.Release()

	vertexBufferLayout, err := createVertexBufferLayout(vertexType)
	if err != nil {
		return nil, err
	}

	return device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: name,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{vertexBufferLayout},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format: format,
					Blend: &wgpu.BlendState{
						Color: wgpu.BlendComponent{
							SrcFactor: wgpu.BlendFactorSrcAlpha,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
							Operation: wgpu.BlendOperationAdd,
						},
						Alpha: wgpu.BlendComponent{
							SrcFactor: wgpu.BlendFactorOne,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
							Operation: wgpu.BlendOperationAdd,
						},
					},
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
		Multisample: wgpu.MultisampleState{
			Count:                  1,
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: false,
		},
	})
}

// createVertexBufferLayout reads `sketch:"layout"` tagged fields of a vertex
// struct. Untagged fields still advance the offset.
func createVertexBufferLayout(vertexType any) (wgpu.VertexBufferLayout, error) {
	t := reflect.TypeOf(vertexType)
	if t == nil || t.Kind() != reflect.Struct {
		return wgpu.VertexBufferLayout{}, fmt.Errorf("vertex type %v is not a struct", t)
	}

	var attributes []wgpu.VertexAttribute
	var offset uint64 = 0

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if "layout" == field.Tag.Get("sketch") {
			format, err := parseFormat(field.Tag.Get("format"))
			if err != nil {
				return wgpu.VertexBufferLayout{}, fmt.Errorf("field %s: %w", field.Name, err)
			}
			location, err := strconv.Atoi(field.Tag.Get("location"))
			if nil != err {
				return wgpu.VertexBufferLayout{}, fmt.Errorf("field %s location: %w", field.Name, err)
			}

			attributes = append(attributes, wgpu.VertexAttribute{
				ShaderLocation: uint32(location),
				Offset:         offset,
				Format:         format,
			})
		}

		offset += uint64(field.Type.Size())
	}

	return wgpu.VertexBufferLayout{
		ArrayStride: offset,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attributes,
	}, nil
}

func parseFormat(name string) (wgpu.VertexFormat, error) {
	switch name {
	case "float2":
		return wgpu.VertexFormatFloat32x2, nil
	case "float3":
		return wgpu.VertexFormatFloat32x3, nil
	case "float4":
		return wgpu.VertexFormatFloat32x4, nil
	default:
		return 0, fmt.Errorf("unsupported vertex layout format %q", name)
	}
}

func packVertices(vs []core.Vertex) []gpuVertex {
	out := make([]gpuVertex, len(vs))
	for i, v := range vs {
		out[i] = gpuVertex{
			Position: v.Position,
			Normal:   v.Normal,
			Color:    v.Color,
		}
	}
	return out
}

func packFrame(batch *core.FrameBatch, lights int) frameUniforms {
	p := batch.CameraPosition
	return frameUniforms{
		ViewProj:  depthRemap.Mul4(batch.ViewProjection()),
		CameraPos: [4]float32{p[0], p[1], p[2], ambient},
		Counts:    [4]uint32{uint32(lights)},
	}
}

func packDraw(item *core.DrawItem) drawUniforms {
	m := item.Material
	return drawUniforms{
		Model:     item.Model,
		Normal:    item.Model.Inv().Transpose(),
		BaseColor: m.BaseColor,
		Emissive:  m.Emissive,
		Params:    [4]float32{m.Metallic, m.Roughness, m.Reflectance, boolf(m.Unlit)},
		Flags:     [4]float32{boolf(m.DoubleSided), float32(m.AlphaMode)},
	}
}

func packLights(lights []core.Light, capacity int) []core.GPULight {
	out := make([]core.GPULight, capacity)
	for i := 0; i < len(lights) && i < capacity; i++ {
		out[i] = lights[i].Pack()
	}
	return out
}

func sizeOf[T any]() int {
	var v T
	return int(unsafe.Sizeof(v))
}

func boolf(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

// alignedBytesPerRow pads a row to the 256 byte copy alignment.
func alignedBytesPerRow(width int) uint32 {
	return uint32((width*4 + 255) &^ 255)
}
