package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterial_LastWriteWins(t *testing.T) {
	m := NewMaterial(nil)
	m.SetFloat("roughness", 0.2)
	m.SetFloat("roughness", 0.7)

	v, err := m.Float("roughness")
	require.NoError(t, err)
	assert.Equal(t, float32(0.7), v)

	m.SetFloat4("base_color", 1, 0, 0, 1)
	m.SetFloat4("base_color", 0, 1, 0, 1)
	c, err := m.Float4("base_color")
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec4{0, 1, 0, 1}, c)

	r, err := m.Resolve()
	require.NoError(t, err)
	assert.Equal(t, float32(0.7), r.Roughness)
	assert.Equal(t, mgl32.Vec4{0, 1, 0, 1}, r.BaseColor)
}

func TestMaterial_UnknownNamesAreKept(t *testing.T) {
	m := NewMaterial(nil)
	m.SetFloat("wobble", 3)
	assert.Equal(t, []string{"wobble"}, m.Names())

	_, err := m.Float("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Float4("wobble")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	r, err := m.Resolve()
	require.NoError(t, err)
	assert.False(t, r.Unlit)
	assert.Equal(t, White, r.BaseColor)
	assert.Equal(t, float32(0.5), r.Roughness)
}

func TestPipeline_Resolve(t *testing.T) {
	p := StandardPipeline.Require("emissive")
	m := NewMaterial(p)

	_, err := m.Resolve()
	assert.ErrorIs(t, err, ErrMissingParameter)

	m.SetFloat4("emissive", 1, 1, 0, 1)
	r, err := m.Resolve()
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec4{1, 1, 0, 1}, r.Emissive)

	// Require does not leak into the shared pipeline.
	_, err = NewMaterial(nil).Resolve()
	assert.NoError(t, err)
}

func TestPipeline_AliasesAndFlags(t *testing.T) {
	m := NewMaterial(nil)
	m.SetFloat4("color", 0.2, 0.3, 0.4, 1)
	m.SetFloat("perceptual_roughness", 0.9)
	m.SetFloat("unlit", 1)
	m.SetFloat("double_sided", 1)
	m.SetFloat("alpha_mode", float32(AlphaBlend))

	r, err := m.Resolve()
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec4{0.2, 0.3, 0.4, 1}, r.BaseColor)
	assert.Equal(t, float32(0.9), r.Roughness)
	assert.True(t, r.Unlit)
	assert.True(t, r.DoubleSided)
	assert.Equal(t, AlphaBlend, r.AlphaMode)

	m.SetFloat("alpha_mode", 9)
	_, err = m.Resolve()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	bad := NewMaterial(nil)
	bad.SetFloat("base_color", 1)
	_, err = bad.Resolve()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDefaultMaterial(t *testing.T) {
	d := DefaultMaterial()
	assert.True(t, d.Unlit)
	assert.Equal(t, White, d.BaseColor)
}
