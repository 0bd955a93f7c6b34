package cho

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpaceRejectsInvalidDimensions(t *testing.T) {
	tests := []struct {
		name string
		dims []Dimension
	}{
		{name: "empty"},
		{name: "equal bounds", dims: []Dimension{{Name: "a", Lower: 1, Upper: 1}}},
		{name: "inverted bounds", dims: []Dimension{{Name: "a", Lower: 1, Upper: 0}}},
		{name: "nan bound", dims: []Dimension{{Name: "a", Lower: math.NaN(), Upper: 1}}},
		{name: "infinite bound", dims: []Dimension{{Name: "a", Lower: 0, Upper: math.Inf(1)}}},
		{name: "duplicate name", dims: []Dimension{{Name: "a", Lower: 0, Upper: 1}, {Name: "a", Lower: 0, Upper: 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSpace(tt.dims...)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestNewSpaceCopiesDimensions(t *testing.T) {
	dims := []Dimension{{Name: "B1_offset", Lower: -0.05, Upper: 0.05}}

	space, err := NewSpace(dims...)
	require.NoError(t, err)

	dims[0].Upper = 1

	assert.Equal(t, 0.05, space.Dimensions()[0].Upper)
	assert.Equal(t, 1, space.Len())
}

func TestSampleUniform(t *testing.T) {
	space, err := NewSpace(
		Dimension{Name: "B1_offset", Lower: -0.05, Upper: 0.05},
		Dimension{Name: "B1_slope", Lower: -0.0001, Upper: 0.0001},
	)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 1000; i++ {
		assert.True(t, space.Validate(space.SampleUniform(rng)))
	}

	a := space.SampleUniform(rand.New(rand.NewSource(99)))
	b := space.SampleUniform(rand.New(rand.NewSource(99)))
	assert.Equal(t, a, b)
}

func TestValidate(t *testing.T) {
	space, err := NewSpace(Dimension{Name: "x", Lower: -1, Upper: 1}, Dimension{Name: "y", Lower: 0, Upper: 2})
	require.NoError(t, err)

	assert.True(t, space.Validate([]float64{-1, 2}))
	assert.True(t, space.Validate([]float64{0, 1}))
	assert.False(t, space.Validate([]float64{0}))
	assert.False(t, space.Validate([]float64{1.0000001, 1}))
	assert.False(t, space.Validate([]float64{0, math.NaN()}))
}

func TestNormalizeDenormalize(t *testing.T) {
	space, err := NewSpace(Dimension{Name: "x", Lower: -0.05, Upper: 0.05}, Dimension{Name: "y", Lower: 10, Upper: 30})
	require.NoError(t, err)

	u := space.Normalize([]float64{0, 15})
	assert.InDeltaSlice(t, []float64{0.5, 0.25}, u, 1e-12)

	x := space.Denormalize(u)
	assert.InDeltaSlice(t, []float64{0, 15}, x, 1e-12)

	clamped := space.Denormalize([]float64{-0.3, 1.7})
	assert.Equal(t, []float64{-0.05, 30}, clamped)
	assert.True(t, space.Validate(clamped))
}

func TestHarmonics(t *testing.T) {
	space, err := NewSpace(
		Dimension{Name: "B1_offset", Lower: -1, Upper: 1},
		Dimension{Name: "B3_offset", Lower: -1, Upper: 1},
		Dimension{Name: "B1_slope", Lower: -1, Upper: 1},
		Dimension{Name: "scale", Lower: 0, Upper: 1},
	)
	require.NoError(t, err)

	drives := space.Harmonics([]float64{0.1, 0.2, 0.3, 0.4})

	assert.Equal(t, []HarmonicDrive{
		{Harmonic: "B1", Offset: 0.1, Slope: 0.3},
		{Harmonic: "B3", Offset: 0.2},
	}, drives)
}
