package threshold

import (
	"math"
	"testing"

	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestMapperValue(t *testing.T) {
	m := Mapper{ScaleBase: 2, Min: 10, Max: 110}

	tests := []struct {
		name     string
		distance float64
		want     float64
	}{
		{"zero", 0, 0},
		{"scaled", 12.5, 25},
		{"clamped at span", 80, 100},
		{"negative", -3, 0},
		{"nan", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, m.Value(tt.distance), 1e-12)
		})
	}
}

func TestMapperFlatSlice(t *testing.T) {
	m := Mapper{ScaleBase: 1, Min: 5, Max: 5}
	assert.InDelta(t, 0, m.Value(100), 0)
	assert.InDelta(t, 0, m.Span(), 0)
}

func TestNewMapper(t *testing.T) {
	img, err := slice.New(2, 1, 1, 1, []float64{-4, 6}, slice.Frame{})
	require.NoError(t, err)

	m := NewMapper(0.5, img)
	assert.InDelta(t, -4, m.Min, 0)
	assert.InDelta(t, 6, m.Max, 0)
	assert.InDelta(t, 3, m.Value(6), 1e-12)
}

func TestDragDistance(t *testing.T) {
	f := slice.DefaultPathPoint().Frame()

	assert.InDelta(t, 5, DragDistance(r3.Vec{}, r3.Vec{X: 3, Y: 4}, f), 1e-12)
	// out-of-plane motion does not count
	assert.InDelta(t, 5, DragDistance(r3.Vec{Z: 1}, r3.Vec{X: 3, Y: 4, Z: -7}, f), 1e-12)
	assert.InDelta(t, 0, DragDistance(r3.Vec{X: 1}, r3.Vec{X: 1, Z: 9}, f), 1e-12)
}
