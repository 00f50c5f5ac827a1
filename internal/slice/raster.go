package slice

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// FromImage converts a decoded image into a slice. 16-bit gray images keep
// their full range; anything else is reduced to 8-bit luminance.
func FromImage(img image.Image, spacingX, spacingY float64, frame Frame) (*Image, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float64, w*h)

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				data[y*w+x] = float64(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				data[y*w+x] = float64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	default:
		gray := imaging.Grayscale(img)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				data[y*w+x] = float64(gray.NRGBAAt(x, y).R)
			}
		}
	}

	return New(w, h, spacingX, spacingY, data, frame)
}

// ToGray renders the slice as an 8-bit image with intensities stretched to
// the slice range.
func (im *Image) ToGray() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, im.width, im.height))
	span := im.maxV - im.minV
	for y := 0; y < im.height; y++ {
		for x := 0; x < im.width; x++ {
			v := 0.0
			if span > 0 {
				v = (im.At(x, y) - im.minV) / span * 255
			}
			out.SetGray(x, y, color.Gray{Y: uint8(v + 0.5)})
		}
	}
	return out
}
