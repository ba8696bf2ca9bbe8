package otsu

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"go.afab.re/multiotsu/histogram"
)

// ErrInvalidClassCount is returned when the classes can't be placed over the histogram's levels.
var ErrInvalidClassCount = errors.New("invalid class count")

// Thresholds finds the classes-1 levels maximizing the between-class variance of h.
// https://en.wikipedia.org/wiki/Otsu%27s_method
//
// Each threshold is the first level of the class above it, so the classes are
// [0, t[0]), [t[0], t[1]) ... [t[len(t)-1], L). The thresholds are strictly
// increasing and in [1, L-1]: the top class may be the single level L-1.
// Ties go to the smallest level.
func Thresholds(h *histogram.Histogram, classes int) ([]int, error) {
	return ThresholdsContext(context.Background(), h, classes, 1)
}

// ThresholdsContext is Thresholds, splitting each row of the search across workers.
// ctx is only checked between rows.
func ThresholdsContext(ctx context.Context, h *histogram.Histogram, classes int, workers int) ([]int, error) {
	levels := h.Levels()
	if classes < 2 || levels < classes {
		return nil, fmt.Errorf("%d classes over %d levels: %w", classes, levels, ErrInvalidClassCount)
	}
	if workers < 1 {
		workers = 1
	}

	n := classes - 1

	// best[t] is the highest score splitting [0, t) with the thresholds placed so far.
	// Row 0 has no thresholds: a single class.
	best := make([]float64, levels+1)
	for t := 1; t <= levels; t++ {
		best[t] = score(h, 0, t)
	}

	// back[k-1][t] is where the k-th threshold goes when [0, t) holds k thresholds.
	back := make([][]int, n)

	for k := 1; k <= n; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row := make([]float64, levels+1)
		ptr := make([]int, levels+1)

		// Only the full range matters for the last threshold.
		from := k + 1
		if k == n {
			from = levels
		}

		if err := fillRow(ctx, h, k, best, row, ptr, from, levels, workers); err != nil {
			return nil, err
		}

		best = row
		back[k-1] = ptr
	}

	thresholds := make([]int, n)
	t := levels
	for k := n; k >= 1; k-- {
		t = back[k-1][t]
		thresholds[k-1] = t
	}

	return thresholds, nil
}

// fillRow computes row[t] for t in [from, to] from the previous row.
func fillRow(ctx context.Context, h *histogram.Histogram, k int, prev, row []float64, ptr []int, from, to int, workers int) error {
	cell := func(t int) {
		var (
			bestScore float64
			bestPos   int
		)
		// Candidates in increasing order, only replaced by a strictly better one.
		for p := k; p < t; p++ {
			s := prev[p] + score(h, p, t)
			if p == k || s > bestScore {
				bestScore = s
				bestPos = p
			}
		}
		row[t] = bestScore
		ptr[t] = bestPos
	}

	if workers == 1 || to-from < workers {
		for t := from; t <= to; t++ {
			cell(t)
		}
		return nil
	}

	// Cells get more expensive as t grows, interleave them to balance the work.
	g, _ := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for t := from + w; t <= to; t += workers {
				cell(t)
			}
			return nil
		})
	}
	return g.Wait()
}

// score of the class [a, b). Maximizing the sum of scores over all classes
// maximizes the between-class variance, which is that sum minus N*mean².
func score(h *histogram.Histogram, a, b int) float64 {
	band := h.Band(a, b)
	if band.Count == 0 {
		return 0
	}
	return band.Sum * band.Sum / band.Count
}

// Variance is the between-class variance of the classes split at thresholds:
// the sum over classes of count * (class mean - global mean)².
// Empty classes contribute nothing.
func Variance(h *histogram.Histogram, thresholds []int) float64 {
	mean := h.Mean()

	var variance float64
	a := 0
	for i := 0; i <= len(thresholds); i++ {
		b := h.Levels()
		if i < len(thresholds) {
			b = thresholds[i]
		}

		band := h.Band(a, b)
		if band.Count != 0 {
			variance += band.Count * square(band.Mean()-mean)
		}
		a = b
	}

	return variance
}

// Binary is the classical single threshold Otsu scan.
// It returns the first level of the upper class, like Thresholds with two classes.
func Binary(h *histogram.Histogram) int {
	totalPixels := h.Total()
	totalWeightedSum := h.Band(0, h.Levels()).Sum

	var (
		// Best threshold and inter-class variance so far.
		bestThreshold int
		bestVariance  float64

		// How many pixels are <= threshold.
		blkPixels float64
		// Their intensity sum.
		blkWeightedSum float64
	)
	for threshold := 0; threshold < h.Levels()-1; threshold++ {
		pixels := float64(h.Count(threshold))
		blkPixels += pixels
		blkWeightedSum += float64(threshold) * pixels

		wtePixels := totalPixels - blkPixels
		wteWeightedSum := totalWeightedSum - blkWeightedSum

		// Avoid division by 0. All the pixels are the same color so far,
		// so this threshold won't be any better anyways.
		if blkPixels == 0 || wtePixels == 0 {
			continue
		}

		blkMean := blkWeightedSum / blkPixels
		wteMean := wteWeightedSum / wtePixels

		variance := blkPixels * wtePixels * square(blkMean-wteMean)
		if variance > bestVariance {
			bestVariance = variance
			bestThreshold = threshold
		}
	}

	return bestThreshold + 1
}

func square(a float64) float64 {
	return a * a
}
