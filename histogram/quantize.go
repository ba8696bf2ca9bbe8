package histogram

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// DefaultLevels is the level count of 8 bit imagery.
const DefaultLevels = 256

// Number is any sample type the builder accepts.
type Number interface {
	constraints.Integer | constraints.Float
}

// Quantizer linearly maps sample values in [Min, Max] to levels [0, Levels-1].
type Quantizer struct {
	Min, Max float64
	Levels   int
}

func (q Quantizer) validate() error {
	if q.Levels < 2 {
		return fmt.Errorf("%d levels: %w", q.Levels, ErrLevels)
	}
	if math.IsNaN(q.Min) || math.IsInf(q.Min, 0) || math.IsNaN(q.Max) || math.IsInf(q.Max, 0) {
		return fmt.Errorf("non-finite range [%v, %v]: %w", q.Min, q.Max, ErrLevels)
	}
	if q.Max < q.Min {
		return fmt.Errorf("inverted range [%v, %v]: %w", q.Min, q.Max, ErrLevels)
	}
	return nil
}

// Half the width of the range. Halving both ends keeps it finite for any
// finite Min and Max. A single valued range still needs distinct level values.
func (q Quantizer) halfSpan() float64 {
	if q.Max == q.Min {
		return 0.5
	}
	return q.Max/2 - q.Min/2
}

// Step is the distance between two adjacent levels, in sample units.
func (q Quantizer) Step() float64 {
	return q.halfStep() * 2
}

func (q Quantizer) halfStep() float64 {
	return q.halfSpan() / float64(q.Levels-1)
}

// Level of a finite sample, rounded to the nearest level.
// clipped is true if x was outside [Min, Max] and was clamped.
func (q Quantizer) Level(x float64) (level int, clipped bool) {
	pos := math.Floor((x/2-q.Min/2)/q.halfSpan()*float64(q.Levels-1) + 0.5)

	switch {
	case x < q.Min:
		return 0, true
	case x > q.Max:
		return q.Levels - 1, true
	case math.IsNaN(pos), pos < 0:
		return 0, false
	case pos > float64(q.Levels-1):
		return q.Levels - 1, false
	}

	return int(pos), false
}

// Value is the sample value a level stands for.
// The end levels are exactly Min and Max.
func (q Quantizer) Value(level int) float64 {
	switch {
	case level <= 0:
		return q.Min
	case level >= q.Levels-1 && q.Max != q.Min:
		return q.Max
	}
	return (q.Min/2 + float64(level)*q.halfStep()) * 2
}

// Range returns the smallest and largest finite samples.
func Range[T Number](samples []T) (lo, hi float64, ok bool) {
	for _, s := range samples {
		x := float64(s)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		if !ok {
			lo, hi, ok = x, x, true
			continue
		}
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi, ok
}

// Natural picks the quantizer for a sample type:
// 8 bit integers use their full fixed range, everything else is scaled
// between its observed finite extremes.
// levels <= 0 means DefaultLevels.
func Natural[T Number](samples []T, levels int) Quantizer {
	if levels <= 0 {
		levels = DefaultLevels
	}

	switch any(*new(T)).(type) {
	case uint8:
		return Quantizer{Min: 0, Max: math.MaxUint8, Levels: levels}
	case int8:
		return Quantizer{Min: math.MinInt8, Max: math.MaxInt8, Levels: levels}
	}

	lo, hi, ok := Range(samples)
	if !ok {
		return Quantizer{Min: 0, Max: 1, Levels: levels}
	}
	return Quantizer{Min: lo, Max: hi, Levels: levels}
}
