package testutil

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"github.com/stretchr/testify/require"
)

// Grid is a raw row-major intensity raster used to build test slices.
type Grid struct {
	Width  int
	Height int
	Data   []float64
}

// NewGrid returns a grid filled with v.
func NewGrid(w, h int, v float64) Grid {
	g := Grid{Width: w, Height: h, Data: make([]float64, w*h)}
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

// Set writes v at (x, y).
func (g Grid) Set(x, y int, v float64) { g.Data[y*g.Width+x] = v }

// CenterSpike is the n x n zero grid with a single centre pixel of value v.
func CenterSpike(n int, v float64) Grid {
	g := NewGrid(n, n, 0)
	g.Set(n/2, n/2, v)
	return g
}

// Disc draws a filled disc of value in over a background of value out.
func Disc(w, h, cx, cy, r int, in, out float64) Grid {
	g := NewGrid(w, h, out)
	for y := range h {
		for x := range w {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				g.Set(x, y, in)
			}
		}
	}
	return g
}

// Gradient ramps horizontally from 0 by step per column.
func Gradient(w, h int, step float64) Grid {
	g := NewGrid(w, h, 0)
	for y := range h {
		for x := range w {
			g.Set(x, y, float64(x)*step)
		}
	}
	return g
}

// Slice wraps the grid into a slice cut at the default path point with unit
// spacing.
func (g Grid) Slice(t *testing.T) *slice.Image {
	t.Helper()
	return g.SliceAt(t, slice.DefaultPathPoint(), 1, 1)
}

// SliceAt wraps the grid into a slice cut at p with the given spacing.
func (g Grid) SliceAt(t *testing.T, p slice.PathPoint, sx, sy float64) *slice.Image {
	t.Helper()
	data := make([]float64, len(g.Data))
	copy(data, g.Data)
	im, err := slice.New(g.Width, g.Height, sx, sy, data, p.Frame())
	require.NoError(t, err)
	return im
}

// Gray renders the grid into an 8-bit image, clamping values to [0, 255].
func (g Grid) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	for y := range g.Height {
		for x := range g.Width {
			v := min(max(g.Data[y*g.Width+x], 0), 255)
			img.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	return img
}

// SaveImage saves an image as PNG, creating parent directories.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// WriteGridPNG writes the grid as a PNG under a fresh temp dir and returns its path.
func WriteGridPNG(t *testing.T, g Grid, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	SaveImage(t, g.Gray(), path)
	return path
}
