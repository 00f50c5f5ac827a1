// Package overlay renders a slice with contours and the seed marker for
// inspection.
package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/MeKo-Tech/lumentrace/internal/contour"
	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"github.com/MeKo-Tech/lumentrace/internal/utils"
	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Options control overlay appearance.
type Options struct {
	ContourColor string
	SeedColor    string
	Scale        int
	Thickness    int
}

// DefaultOptions returns a yellow contour, red seed and 4x upscaling.
func DefaultOptions() Options {
	return Options{
		ContourColor: "#ffd400",
		SeedColor:    "#ff2020",
		Scale:        4,
		Thickness:    1,
	}
}

// ParseColor parses a #rrggbb colour.
func ParseColor(s string) (color.Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return c.Clamped(), nil
}

// Render draws contours and an optional seed pixel over the slice. Contour
// points are projected into the slice plane.
func Render(img *slice.Image, contours []*contour.Contour, seed *image.Point, opts Options) (*image.NRGBA, error) {
	if img == nil {
		return nil, errors.New("overlay: nil slice")
	}
	scale := max(opts.Scale, 1)
	contourCol, err := ParseColor(opts.ContourColor)
	if err != nil {
		return nil, err
	}
	seedCol, err := ParseColor(opts.SeedColor)
	if err != nil {
		return nil, err
	}

	dst := imaging.Resize(img.ToGray(), img.Width()*scale, img.Height()*scale, imaging.NearestNeighbor)

	// pixel centres sit half a cell in from the canvas cell corner
	corner := func(x, y float64) utils.Point { return utils.Point{X: x + 0.5, Y: y + 0.5} }
	s := float64(scale)

	for _, c := range contours {
		if c.Len() < 2 {
			continue
		}
		pts := make([]utils.Point, len(c.Points))
		for i, p := range c.Points {
			pts[i] = corner(img.WorldToPixel(p))
		}
		utils.DrawPolygon(dst, utils.ScalePoints(pts, s, s), contourCol, opts.Thickness)
	}

	if seed != nil {
		mark := utils.ScalePoints([]utils.Point{corner(float64(seed.X), float64(seed.Y))}, s, s)
		utils.DrawCross(dst, mark[0], max(scale, 2), seedCol)
	}

	return dst, nil
}

// Save writes the overlay; the format follows the file extension.
func Save(path string, img image.Image) error {
	if err := imaging.Save(img, path); err != nil {
		return &utils.ImageProcessingError{Operation: "save overlay", Err: err}
	}
	return nil
}
