package segment

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"go.afab.re/multiotsu"
)

// MaxClasses is the most classes a paletted image can hold.
const MaxClasses = math.MaxUint8 + 1

// From segments an image into k classes with multi-level Otsu thresholding.
// Color images are converted to grayscale first. 16 bit grayscale images keep
// their full precision, and are scaled between their darkest and lightest pixel.
func From(img image.Image, k int, opts ...multiotsu.Option) (*Image, *multiotsu.Result, error) {
	if k > MaxClasses {
		return nil, nil, fmt.Errorf("%d classes, at most %d fit a palette: %w", k, MaxClasses, multiotsu.ErrInvalidClassCount)
	}

	var (
		res *multiotsu.Result
		err error
	)
	switch i := img.(type) {
	case *image.Gray16:
		res, err = multiotsu.Segment(gray16Samples(i), k, opts...)
	default:
		res, err = multiotsu.Segment(graySamples(grayscale(img)), k, opts...)
	}
	if err != nil {
		return nil, nil, err
	}

	b := img.Bounds()
	seg := New(b, k)

	// Samples are in row order.
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			seg.SetClass(b.Min.X+x, b.Min.Y+y, res.Classes[y*b.Dx()+x])
		}
	}

	return seg, res, nil
}

func grayscale(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}

	gray := image.NewGray(img.Bounds())
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)
	return gray
}

func graySamples(i *image.Gray) []uint8 {
	b := i.Bounds()
	samples := make([]uint8, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := i.PixOffset(b.Min.X, y)
		samples = append(samples, i.Pix[start:start+b.Dx()]...)
	}
	return samples
}

func gray16Samples(i *image.Gray16) []uint16 {
	b := i.Bounds()
	samples := make([]uint16, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			samples = append(samples, i.Gray16At(x, y).Y)
		}
	}
	return samples
}
