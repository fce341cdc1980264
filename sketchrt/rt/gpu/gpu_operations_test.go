package gpu

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/sketch/sketchrt/rt/core"
)

func TestCreateVertexBufferLayout(t *testing.T) {
	layout, err := createVertexBufferLayout(gpuVertex{})
	require.NoError(t, err)

	assert.Equal(t, uint64(40), layout.ArrayStride)
	require.Len(t, layout.Attributes, 3)
	assert.Equal(t, wgpu.VertexAttribute{ShaderLocation: 0, Offset: 0, Format: wgpu.VertexFormatFloat32x3}, layout.Attributes[0])
	assert.Equal(t, wgpu.VertexAttribute{ShaderLocation: 1, Offset: 12, Format: wgpu.VertexFormatFloat32x3}, layout.Attributes[1])
	assert.Equal(t, wgpu.VertexAttribute{ShaderLocation: 2, Offset: 24, Format: wgpu.VertexFormatFloat32x4}, layout.Attributes[2])
}

func TestCreateVertexBufferLayout_SkipsUntaggedFields(t *testing.T) {
	type padded struct {
		Pad [2]float32
		UV  [2]float32 `sketch:"layout" format:"float2" location:"3"`
	}
	layout, err := createVertexBufferLayout(padded{})
	require.NoError(t, err)
	assert.Equal(t, uint64(16), layout.ArrayStride)
	require.Len(t, layout.Attributes, 1)
	assert.Equal(t, uint64(8), layout.Attributes[0].Offset)
}

func TestCreateVertexBufferLayout_Errors(t *testing.T) {
	_, err := createVertexBufferLayout(42)
	assert.Error(t, err)

	type bad struct {
		P [3]float32 `sketch:"layout" format:"half3" location:"0"`
	}
	_, err = createVertexBufferLayout(bad{})
	assert.ErrorContains(t, err, "half3")

	type noLocation struct {
		P [3]float32 `sketch:"layout" format:"float3"`
	}
	_, err = createVertexBufferLayout(noLocation{})
	assert.Error(t, err)
}

func TestUniformSizes(t *testing.T) {
	// WGSL struct sizes in mesh.wgsl
	assert.Equal(t, 96, sizeOf[frameUniforms]())
	assert.Equal(t, 192, sizeOf[drawUniforms]())
	assert.Equal(t, 64, sizeOf[core.GPULight]())
	assert.Equal(t, 40, sizeOf[gpuVertex]())
}

func TestDepthRemap(t *testing.T) {
	near := depthRemap.Mul4x1(mgl32.Vec4{0, 0, -1, 1})
	far := depthRemap.Mul4x1(mgl32.Vec4{0, 0, 1, 1})
	assert.InDelta(t, 0, near[2]/near[3], 1e-6)
	assert.InDelta(t, 1, far[2]/far[3], 1e-6)
}

func TestPackDraw(t *testing.T) {
	item := &core.DrawItem{
		Model:    mgl32.Scale3D(2, 2, 2),
		Material: core.DefaultMaterial(),
	}
	item.Material.DoubleSided = true
	u := packDraw(item)

	assert.Equal(t, float32(1), u.Params[3], "unlit")
	assert.Equal(t, float32(1), u.Flags[0], "double sided")
	assert.Equal(t, [16]float32(mgl32.Scale3D(2, 2, 2)), u.Model)
	assert.InDelta(t, 0.5, u.Normal[0], 1e-6)
}

func TestPackFrameAndLights(t *testing.T) {
	l, err := core.NewPointLight(mgl32.Vec3{1, 0, 0}, 2, 5)
	require.NoError(t, err)
	batch := &core.FrameBatch{
		CameraPosition: mgl32.Vec3{1, 2, 3},
		View:           mgl32.Ident4(),
		Projection:     mgl32.Ident4(),
		Lights:         []core.Light{l},
	}
	f := packFrame(batch, len(batch.Lights))
	assert.Equal(t, [4]float32{1, 2, 3, ambient}, f.CameraPos)
	assert.Equal(t, uint32(1), f.Counts[0])

	packed := packLights(batch.Lights, 4)
	require.Len(t, packed, 4)
	assert.Equal(t, float32(2), packed[0].ColorIntensity[3])
	assert.Equal(t, core.GPULight{}, packed[3])
}

func TestAlignedBytesPerRow(t *testing.T) {
	assert.Equal(t, uint32(256), alignedBytesPerRow(1))
	assert.Equal(t, uint32(256), alignedBytesPerRow(64))
	assert.Equal(t, uint32(512), alignedBytesPerRow(65))
}
