// Package histogram counts quantized sample intensities and answers band
// statistics over contiguous level ranges in constant time.
package histogram

import (
	"errors"
	"fmt"
)

var (
	// ErrEmpty is returned when there are no samples to count.
	ErrEmpty = errors.New("no samples")
	// ErrLevels is returned for histograms that can't hold at least two levels.
	ErrLevels = errors.New("invalid level count")
)

// Histogram is a frequency distribution over L levels, with cumulative tables.
type Histogram struct {
	counts []int64

	// Cumulative count and level-weighted sum of levels [0..i].
	count []float64
	sum   []float64
}

// Band holds the statistics of the half-open level range [A, B).
type Band struct {
	A, B int

	Count float64
	Sum   float64
}

// Mean level of the band, 0 if it's empty.
func (b Band) Mean() float64 {
	if b.Count == 0 {
		return 0
	}
	return b.Sum / b.Count
}

// New builds a Histogram from per level counts.
// counts is copied.
func New(counts []int64) (*Histogram, error) {
	if len(counts) < 2 {
		return nil, fmt.Errorf("%d levels: %w", len(counts), ErrLevels)
	}

	h := &Histogram{
		counts: make([]int64, len(counts)),
		count:  make([]float64, len(counts)),
		sum:    make([]float64, len(counts)),
	}
	copy(h.counts, counts)

	var (
		pixels      float64
		weightedSum float64
	)
	for level, n := range h.counts {
		if n < 0 {
			return nil, fmt.Errorf("level %d has negative count %d: %w", level, n, ErrLevels)
		}

		pixels += float64(n)
		weightedSum += float64(level) * float64(n)

		h.count[level] = pixels
		h.sum[level] = weightedSum
	}

	if pixels == 0 {
		return nil, ErrEmpty
	}

	return h, nil
}

// Levels is the number of levels L.
func (h *Histogram) Levels() int {
	return len(h.counts)
}

// Counts returns a copy of the per level counts.
func (h *Histogram) Counts() []int64 {
	return append([]int64(nil), h.counts...)
}

// Count of samples at a single level.
func (h *Histogram) Count(level int) int64 {
	return h.counts[level]
}

// Total number of samples counted.
func (h *Histogram) Total() float64 {
	return h.count[len(h.count)-1]
}

// Mean level over all samples.
func (h *Histogram) Mean() float64 {
	return h.sum[len(h.sum)-1] / h.Total()
}

// Band returns the statistics of levels [a, b).
// An empty or inverted range yields an empty Band.
func (h *Histogram) Band(a, b int) Band {
	band := Band{A: a, B: b}
	if a >= b {
		return band
	}

	band.Count = h.count[b-1]
	band.Sum = h.sum[b-1]
	if a > 0 {
		band.Count -= h.count[a-1]
		band.Sum -= h.sum[a-1]
	}

	return band
}

// Occupied reports the first and last levels in [a, b) with a non zero count.
// ok is false if the whole range is empty.
func (h *Histogram) Occupied(a, b int) (first, last int, ok bool) {
	first, last = -1, -1
	for level := a; level < b; level++ {
		if h.counts[level] == 0 {
			continue
		}
		if first < 0 {
			first = level
		}
		last = level
	}
	return first, last, first >= 0
}
