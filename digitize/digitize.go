package digitize

import (
	"math"
	"sort"

	"go.afab.re/multiotsu/histogram"
)

// Short threshold lists are scanned, longer ones binary searched.
const linearScan = 8

// Class of x: the number of thresholds x is greater than or equal to.
// thresholds must be sorted. NaN is class 0.
func Class(x float64, thresholds []float64) int {
	if math.IsNaN(x) {
		return 0
	}

	if len(thresholds) <= linearScan {
		class := 0
		for _, t := range thresholds {
			if x < t {
				break
			}
			class++
		}
		return class
	}

	return sort.Search(len(thresholds), func(i int) bool {
		return x < thresholds[i]
	})
}

// Classes labels every sample with its class.
func Classes[T histogram.Number](samples []T, thresholds []float64) []int {
	classes := make([]int, len(samples))
	for i, s := range samples {
		classes[i] = Class(float64(s), thresholds)
	}
	return classes
}

// Rescale maps class indices of a k class segmentation to [0, 255] for display.
func Rescale(classes []int, k int) []uint8 {
	palette := Palette(k)

	out := make([]uint8, len(classes))
	for i, c := range classes {
		switch {
		case c <= 0:
			out[i] = 0
		case c >= len(palette):
			out[i] = math.MaxUint8
		default:
			out[i] = palette[c]
		}
	}
	return out
}

// Palette is the display gray of each of k classes, evenly spread over [0, 255].
// A single class is black.
func Palette(k int) []uint8 {
	if k < 1 {
		return nil
	}

	palette := make([]uint8, k)
	if k == 1 {
		return palette
	}

	for c := range palette {
		palette[c] = uint8(math.Round(float64(c) / float64(k-1) * math.MaxUint8))
	}
	return palette
}
