// Package multiotsu segments grayscale samples into K classes with multi-level
// Otsu thresholding.
//
// The samples are quantized into a histogram, the K-1 thresholds maximizing
// the between-class variance are found over it, and every sample is labeled
// with the class it falls in.
package multiotsu

import (
	"context"
	"fmt"

	"go.afab.re/multiotsu/digitize"
	"go.afab.re/multiotsu/histogram"
	"go.afab.re/multiotsu/otsu"
)

var (
	// ErrInvalidClassCount is returned for fewer than 2 classes, or more classes than levels.
	ErrInvalidClassCount = otsu.ErrInvalidClassCount
	// ErrEmptyInput is returned when there are no samples, or none are finite.
	ErrEmptyInput = histogram.ErrEmpty
	// ErrNonFiniteSample is returned for NaN or infinite samples with WithNonFinite(histogram.Reject).
	ErrNonFiniteSample = histogram.ErrNonFinite
)

// Result of segmenting samples into K classes.
type Result struct {
	// Levels are the K-1 quantized thresholds, each the first level of the class above it.
	Levels []int
	// Thresholds are the K-1 thresholds in sample units. A sample x is in class i
	// if Thresholds[i-1] <= x < Thresholds[i].
	Thresholds []float64

	// Classes holds the class of each sample, in [0, K-1].
	// nil when only the thresholds were asked for.
	Classes []int

	// Variance is the between-class variance of the quantized samples.
	Variance float64

	Quantizer histogram.Quantizer
	// Counts per quantized level.
	Counts []int64

	histogram.Stats
}

// K is the number of classes.
func (r *Result) K() int {
	return len(r.Levels) + 1
}

// Rescaled maps Classes to [0, 255] for display.
func (r *Result) Rescaled() []uint8 {
	return digitize.Rescale(r.Classes, r.K())
}

// Segment splits samples into k classes.
func Segment[T histogram.Number](samples []T, k int, opts ...Option) (*Result, error) {
	return SegmentContext(context.Background(), samples, k, opts...)
}

// SegmentContext is Segment, giving up when ctx is done.
func SegmentContext[T histogram.Number](ctx context.Context, samples []T, k int, opts ...Option) (*Result, error) {
	c := newConfig(opts)

	res, err := search(ctx, c, samples, k)
	if err != nil {
		return nil, err
	}

	res.Classes = digitize.Classes(samples, res.Thresholds)
	return res, nil
}

// Thresholds returns only the k-1 thresholds of Segment, in sample units.
func Thresholds[T histogram.Number](samples []T, k int, opts ...Option) ([]float64, error) {
	res, err := search(context.Background(), newConfig(opts), samples, k)
	if err != nil {
		return nil, err
	}
	return res.Thresholds, nil
}

func search[T histogram.Number](ctx context.Context, c config, samples []T, k int) (*Result, error) {
	log := c.log.With().Str("component", "multiotsu").Logger()

	if k < 2 || c.levels < k {
		return nil, fmt.Errorf("%d classes over %d levels: %w", k, c.levels, ErrInvalidClassCount)
	}
	if len(samples) == 0 {
		return nil, ErrEmptyInput
	}

	q := quantizer(c, samples)
	log.Debug().
		Int("samples", len(samples)).
		Int("classes", k).
		Float64("min", q.Min).
		Float64("max", q.Max).
		Int("levels", q.Levels).
		Msg("quantizing")

	h, stats, err := histogram.Build(ctx, samples, q, histogram.Options{
		NonFinite: c.nonFinite,
		Workers:   c.workers,
	})
	if err != nil {
		return nil, fmt.Errorf("histogram: %w", err)
	}
	if stats.Skipped != 0 || stats.Clipped != 0 {
		log.Debug().
			Int("skipped", stats.Skipped).
			Int("clipped", stats.Clipped).
			Stringer("policy", c.nonFinite).
			Msg("samples outside the histogram range")
	}

	levels, err := otsu.ThresholdsContext(ctx, h, k, c.workers)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Levels:     levels,
		Thresholds: values(h, q, levels),
		Variance:   otsu.Variance(h, levels),
		Quantizer:  q,
		Counts:     h.Counts(),
		Stats:      stats,
	}
	log.Debug().
		Ints("levels", res.Levels).
		Floats64("thresholds", res.Thresholds).
		Float64("variance", res.Variance).
		Msg("thresholds found")

	return res, nil
}

// values maps threshold levels back to sample units.
// Each threshold sits halfway between the last occupied level of the class
// below it and the first occupied level of the class above it, so raw samples
// land in the same class as their quantized level. Empty classes fall back to
// the levels on either side of the threshold.
func values(h *histogram.Histogram, q histogram.Quantizer, levels []int) []float64 {
	thresholds := make([]float64, len(levels))

	for i, t := range levels {
		lower := 0
		if i > 0 {
			lower = levels[i-1]
		}
		upper := h.Levels()
		if i < len(levels)-1 {
			upper = levels[i+1]
		}

		below := t - 1
		if _, last, ok := h.Occupied(lower, t); ok {
			below = last
		}
		above := t
		if first, _, ok := h.Occupied(t, upper); ok {
			above = first
		}

		thresholds[i] = q.Value(below)/2 + q.Value(above)/2
	}

	return thresholds
}
