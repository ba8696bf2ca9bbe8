// Package render draws a histogram with its thresholds, for humans to check a segmentation.
package render

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/floats"

	"go.afab.re/multiotsu/histogram"
)

// ErrNoLevels is returned when there is no histogram to draw.
var ErrNoLevels = errors.New("no levels to draw")

// Colors of the plot.
var (
	Background = color.White
	// Bar is the color of the per level counts.
	Bar = color.Gray{Y: 0x60}
	// Threshold lines are red, like the usual matplotlib overlay.
	Threshold = color.RGBA{R: 0xff, A: 0xff}
)

// Options control the size of the plot.
type Options struct {
	// Width of each level's bar, in pixels.
	BarWidth int
	// Height of the bars area, in pixels.
	Height int
	// Height of the caption below the bars, in pixels. 0 for no caption.
	CaptionHeight int
	DPI           int
}

func (o Options) withDefaults() Options {
	if o.BarWidth <= 0 {
		o.BarWidth = 2
	}
	if o.Height <= 0 {
		o.Height = 200
	}
	if o.CaptionHeight < 0 {
		o.CaptionHeight = 0
	}
	if o.DPI <= 0 {
		o.DPI = 72
	}
	return o
}

// DefaultOptions draws a captioned 2px per level histogram.
var DefaultOptions = Options{
	BarWidth:      2,
	Height:        200,
	CaptionHeight: 24,
	DPI:           72,
}

// Histogram draws the per level counts as bars, with a vertical line at each threshold
// and the threshold values as a caption.
// thresholds are in sample units, q maps them to levels.
func Histogram(counts []int64, q histogram.Quantizer, thresholds []float64, opts Options) (*image.RGBA, error) {
	if len(counts) == 0 {
		return nil, ErrNoLevels
	}
	opts = opts.withDefaults()

	dst := image.NewRGBA(image.Rect(0, 0, len(counts)*opts.BarWidth, opts.Height+opts.CaptionHeight))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{Background}, image.Point{}, draw.Src)

	heights := make([]float64, len(counts))
	for i, n := range counts {
		heights[i] = float64(n)
	}
	if highest := floats.Max(heights); highest > 0 {
		floats.Scale(float64(opts.Height)/highest, heights)
	}

	for level, h := range heights {
		top := opts.Height - int(math.Round(h))
		bar := image.Rect(level*opts.BarWidth, top, (level+1)*opts.BarWidth, opts.Height)
		draw.Draw(dst, bar, &image.Uniform{Bar}, image.Point{}, draw.Src)
	}

	for _, t := range thresholds {
		x := Column(q, t, opts.BarWidth)
		if x < 0 || x >= dst.Bounds().Dx() {
			continue
		}
		line := image.Rect(x, 0, x+1, opts.Height)
		draw.Draw(dst, line, &image.Uniform{Threshold}, image.Point{}, draw.Src)
	}

	if opts.CaptionHeight == 0 || len(thresholds) == 0 {
		return dst, nil
	}

	if err := caption(dst, opts, Caption(thresholds)); err != nil {
		return nil, err
	}

	return dst, nil
}

// Column is the x coordinate of a threshold value on a histogram drawn with barWidth.
func Column(q histogram.Quantizer, t float64, barWidth int) int {
	pos := (t/2 - q.Min/2) / (q.Step() / 2)
	return int(math.Floor((pos + 0.5) * float64(barWidth)))
}

// Caption lists thresholds for humans.
func Caption(thresholds []float64) string {
	values := make([]string, len(thresholds))
	for i, t := range thresholds {
		values[i] = strconv.FormatFloat(t, 'g', 6, 64)
	}
	return "thresholds: " + strings.Join(values, ", ")
}

func caption(dst *image.RGBA, opts Options, text string) error {
	ft, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return err
	}

	face, err := fit(ft, opts.CaptionHeight, opts.DPI)
	if err != nil {
		return err
	}
	if face == nil {
		// Caption too short for any font size.
		return nil
	}
	defer face.Close()

	d := font.Drawer{
		Dst:  dst,
		Src:  image.Black,
		Face: face,
		Dot:  fixed.P(4, opts.Height+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)

	return nil
}

// Find the biggest font for a given height.
func fit(ft *opentype.Font, height int, dpi int) (font.Face, error) {
	var best font.Face

	for size := float64(1); ; size++ {
		face, err := opentype.NewFace(ft, &opentype.FaceOptions{
			Size:    size,
			DPI:     float64(dpi),
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, err
		}

		if face.Metrics().Height.Ceil() > height {
			face.Close()
			return best, nil
		}

		if best != nil {
			best.Close()
		}
		best = face
	}
}
