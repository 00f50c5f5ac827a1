package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCenterSpike(t *testing.T) {
	g := CenterSpike(11, 100)
	im := g.Slice(t)

	assert.InDelta(t, 100, im.At(5, 5), 0)
	assert.InDelta(t, 0, im.At(4, 5), 0)
	lo, hi := im.Range()
	assert.InDelta(t, 0, lo, 0)
	assert.InDelta(t, 100, hi, 0)
}

func TestDisc(t *testing.T) {
	g := Disc(9, 9, 4, 4, 2, 200, 10)

	assert.InDelta(t, 200, g.Data[4*9+4], 0)
	assert.InDelta(t, 200, g.Data[4*9+6], 0)
	assert.InDelta(t, 10, g.Data[0], 0)
	assert.InDelta(t, 10, g.Data[6*9+6], 0)
}

func TestGridGray(t *testing.T) {
	g := Gradient(4, 1, 100)
	img := g.Gray()

	assert.Equal(t, uint8(0), img.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(100), img.GrayAt(1, 0).Y)
	assert.Equal(t, uint8(255), img.GrayAt(3, 0).Y)
}

func TestWriteGridPNG(t *testing.T) {
	path := WriteGridPNG(t, CenterSpike(5, 50), "spike.png")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
