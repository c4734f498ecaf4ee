package render

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/kartoza/topology-explorer/internal/topology"
)

// GrayImage renders one pixel per cell. Image row 0 is the top, so the last grid row lands there.
func GrayImage(g *topology.Grid) *image.Gray {
	shape := g.Shape()
	img := image.NewGray(image.Rect(0, 0, shape.Width, shape.Height))

	for r := 0; r < shape.Height; r++ {
		y := shape.Height - 1 - r
		for c := 0; c < shape.Width; c++ {
			img.SetGray(c, y, color.Gray{Y: shade(g.At(r, c))})
		}
	}
	return img
}

// shade maps a density in [0, 1] to an inverted gray level
func shade(v float64) uint8 {
	switch {
	case v != v || v <= 0:
		return 255
	case v >= 1:
		return 0
	}
	return uint8(255 - v*255 + 0.5)
}

// RawPNG encodes GrayImage(g) as PNG
func RawPNG(w io.Writer, g *topology.Grid) error {
	return png.Encode(w, GrayImage(g))
}
