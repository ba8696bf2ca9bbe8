package segment

import (
	"image"
	"image/color"

	"go.afab.re/multiotsu/digitize"
)

// Model is the palette of a k class segmentation: k grays from black to white.
func Model(k int) color.Palette {
	var palette color.Palette
	for _, y := range digitize.Palette(k) {
		palette = append(palette, color.Gray{Y: y})
	}
	return palette
}

// Image is a segmented image. The color index of each pixel is its class.
type Image struct {
	p *image.Paletted
}

// Make sure we implement PalettedImage - some encoders like png
// handle PalettedImages specially and encode them with a small palette.
var _ image.PalettedImage = &Image{}

// New returns an image of k classes, all pixels in class 0.
func New(r image.Rectangle, k int) *Image {
	return &Image{
		p: image.NewPaletted(r, Model(k)),
	}
}

func (m *Image) ColorModel() color.Model {
	return m.p.ColorModel()
}

func (m *Image) Bounds() image.Rectangle {
	return m.p.Bounds()
}

func (m *Image) At(x, y int) color.Color {
	return m.p.At(x, y)
}

func (m *Image) ColorIndexAt(x, y int) uint8 {
	return m.p.ColorIndexAt(x, y)
}

// K is the number of classes.
func (m *Image) K() int {
	return len(m.p.Palette)
}

func (m *Image) ClassAt(x, y int) int {
	return int(m.p.ColorIndexAt(x, y))
}

func (m *Image) SetClass(x, y int, class int) {
	m.p.SetColorIndex(x, y, uint8(class))
}
