package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLight_Direction(t *testing.T) {
	l, err := NewDirectionalLight(mgl32.Vec3{1, 1, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, DefaultLightDirection, l.Direction())

	l.SetPosition(mgl32.Vec3{0, 10, 0})
	l.LookAt(mgl32.Vec3{0, 0, 0})
	assert.True(t, l.Direction().ApproxEqual(mgl32.Vec3{0, -1, 0}))

	dir, att := l.ToLight(mgl32.Vec3{5, 5, 5})
	assert.True(t, dir.ApproxEqual(mgl32.Vec3{0, 1, 0}))
	assert.Equal(t, float32(1), att)
}

func TestLight_Validate(t *testing.T) {
	_, err := NewDirectionalLight(mgl32.Vec3{1, 1, 1}, -1)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewPointLight(mgl32.Vec3{2, 0, 0}, 1, 5)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewPointLight(mgl32.Vec3{1, 1, 1}, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewSpotLight(mgl32.Vec3{1, 1, 1}, 1, 5, 0.6, 0.3)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewSpotLight(mgl32.Vec3{1, 1, 1}, 1, 5, 0.3, 0.6)
	assert.NoError(t, err)
}

func TestLight_Falloff(t *testing.T) {
	l, err := NewPointLight(mgl32.Vec3{1, 1, 1}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, float32(1), l.Attenuation(mgl32.Vec3{}))
	assert.Equal(t, float32(0), l.Attenuation(mgl32.Vec3{10, 0, 0}))
	assert.Equal(t, float32(0), l.Attenuation(mgl32.Vec3{0, 20, 0}))
	mid := l.Attenuation(mgl32.Vec3{5, 0, 0})
	assert.InDelta(t, 0.5625, mid, 1e-6)
}

func TestLight_SpotCone(t *testing.T) {
	l, err := NewSpotLight(mgl32.Vec3{1, 1, 1}, 1, 100, math.Pi/8, math.Pi/4)
	require.NoError(t, err)
	l.LookAt(mgl32.Vec3{0, 0, -1})

	assert.Equal(t, float32(1), l.ConeFactor(mgl32.Vec3{0, 0, -5}))
	assert.Equal(t, float32(0), l.ConeFactor(mgl32.Vec3{5, 0, -1}))

	// Between the inner and outer edge the factor is strictly inside (0, 1).
	between := l.ConeFactor(mgl32.Vec3{float32(math.Tan(math.Pi * 3 / 16)), 0, -1})
	assert.Greater(t, between, float32(0))
	assert.Less(t, between, float32(1))
}

func TestLightSet_OrderAndCap(t *testing.T) {
	var set LightSet
	d, _ := NewDirectionalLight(mgl32.Vec3{1, 1, 1}, 1)
	p, _ := NewPointLight(mgl32.Vec3{1, 1, 1}, 1, 5)
	s, _ := NewSpotLight(mgl32.Vec3{1, 1, 1}, 1, 5, 0.1, 0.2)
	set.add(d)
	set.add(p)
	set.add(s)

	require.Equal(t, 3, set.Len())
	kinds := []LightKind{}
	for _, l := range set.All() {
		kinds = append(kinds, l.Kind)
	}
	assert.Equal(t, []LightKind{LightDirectional, LightPoint, LightSpot}, kinds)

	active := set.Active(2)
	require.Len(t, active, 2)
	assert.Equal(t, LightDirectional, active[0].Kind)
	assert.Equal(t, LightPoint, active[1].Kind)
	assert.Len(t, set.Active(0), 3)

	_, err := set.At(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	packed := s.Pack()
	assert.Equal(t, float32(LightSpot), packed.PositionKind[3])
	assert.InDelta(t, math.Cos(0.2), packed.Cone[0], 1e-6)
}
