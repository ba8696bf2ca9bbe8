package multiotsu

import (
	"bytes"
	"context"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.afab.re/multiotsu/histogram"
)

var clusters = []uint8{0, 0, 0, 50, 50, 50, 200, 200, 200, 255, 255, 255}

func TestSegmentClusters(t *testing.T) {
	res, err := Segment(clusters, 4)
	require.NoError(t, err)

	assert.Equal(t, 4, res.K())
	assert.Equal(t, []int{1, 51, 201}, res.Levels)
	assert.Equal(t, []float64{25, 125, 227.5}, res.Thresholds)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1, 2, 2, 2, 3, 3, 3}, res.Classes)
	assert.Equal(t, []uint8{0, 0, 0, 85, 85, 85, 170, 170, 170, 255, 255, 255}, res.Rescaled())
	assert.Greater(t, res.Variance, 0.0)
	assert.Equal(t, histogram.Stats{Counted: 12}, res.Stats)
	assert.Len(t, res.Counts, 256)
}

func TestSegmentFloatSamples(t *testing.T) {
	samples := make([]float64, len(clusters))
	for i, c := range clusters {
		samples[i] = float64(c)
	}

	res, err := Segment(samples, 4)
	require.NoError(t, err)

	// The observed range is the 8 bit range, so the quantization is the same.
	assert.Equal(t, []float64{25, 125, 227.5}, res.Thresholds)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1, 2, 2, 2, 3, 3, 3}, res.Classes)
}

func TestSegmentScaledSamples(t *testing.T) {
	samples := []float64{0.1, 0.1, 0.12, 0.5, 0.52, 0.9, 0.9, 0.88}

	res, err := Segment(samples, 3)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 0, 0, 1, 1, 2, 2, 2}, res.Classes)
	assert.Greater(t, res.Thresholds[0], 0.12)
	assert.Less(t, res.Thresholds[0], 0.5)
	assert.Greater(t, res.Thresholds[1], 0.52)
	assert.Less(t, res.Thresholds[1], 0.88)
}

func TestSegmentConstant(t *testing.T) {
	for _, samples := range [][]float64{
		{0.3, 0.3, 0.3},
		{7, 7, 7, 7},
	} {
		res, err := Segment(samples, 3)
		require.NoError(t, err)

		require.Len(t, res.Thresholds, 2)
		assert.Less(t, res.Thresholds[0], res.Thresholds[1])
		assert.Zero(t, res.Variance)

		for _, c := range res.Classes {
			assert.Equal(t, res.Classes[0], c)
		}
	}
}

func TestSegmentHugeRange(t *testing.T) {
	for _, tc := range []struct {
		samples []float64
		classes []int
	}{
		{[]float64{-1e308, -1e308, 1e308, 1e308}, []int{0, 0, 1, 1}},
		{[]float64{-math.MaxFloat64, 0, math.MaxFloat64}, []int{0, 1, 1}},
	} {
		res, err := Segment(tc.samples, 2)
		require.NoError(t, err)

		assert.Equal(t, tc.classes, res.Classes, "%v", tc.samples)
		for _, th := range res.Thresholds {
			assert.False(t, math.IsInf(th, 0) || math.IsNaN(th), "threshold %v", th)
		}
	}
}

func TestSegmentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		_, err := SegmentContext(ctx, clusters, 4, WithWorkers(workers))
		assert.ErrorIs(t, err, context.Canceled, "workers=%d", workers)
	}
}

func TestSegmentErrors(t *testing.T) {
	_, err := Segment([]uint8{}, 3)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Segment(clusters, 1)
	assert.ErrorIs(t, err, ErrInvalidClassCount)

	_, err = Segment(clusters, 4, WithLevels(3))
	assert.ErrorIs(t, err, ErrInvalidClassCount)

	_, err = Segment([]float64{math.NaN()}, 2)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestSegmentNonFinite(t *testing.T) {
	samples := []float64{0, 0, math.NaN(), 10, 10, math.Inf(1)}

	res, err := Segment(samples, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 4, res.Counted)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, res.Classes)

	_, err = Segment(samples, 2, WithNonFinite(histogram.Reject))
	assert.ErrorIs(t, err, ErrNonFiniteSample)
}

func TestSegmentRange(t *testing.T) {
	res, err := Segment([]int{-10, 0, 10, 90, 100, 200}, 2, WithRange(0, 100), WithLevels(101))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Clipped)
	assert.Equal(t, histogram.Quantizer{Min: 0, Max: 100, Levels: 101}, res.Quantizer)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, res.Classes)
}

func TestSegmentObservedRange(t *testing.T) {
	res, err := Segment([]uint8{100, 100, 140, 140}, 2, WithObservedRange())
	require.NoError(t, err)

	assert.Equal(t, histogram.Quantizer{Min: 100, Max: 140, Levels: 256}, res.Quantizer)
	require.Len(t, res.Thresholds, 1)
	assert.InDelta(t, 120, res.Thresholds[0], 1e-9)
	assert.Equal(t, []int{0, 0, 1, 1}, res.Classes)
}

func TestSegmentWorkers(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	samples := make([]float32, 5000)
	for i := range samples {
		samples[i] = float32(rng.NormFloat64()*10 + float64(40*rng.Intn(4)))
	}

	serial, err := Segment(samples, 4)
	require.NoError(t, err)

	parallel, err := SegmentContext(context.Background(), samples, 4, WithWorkers(4))
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
}

func TestSegmentMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	samples := make([]float64, 2000)
	for i := range samples {
		samples[i] = rng.ExpFloat64()
	}

	res, err := Segment(samples, 5)
	require.NoError(t, err)

	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return samples[order[a]] < samples[order[b]]
	})

	previous := 0
	for _, i := range order {
		class := res.Classes[i]
		assert.GreaterOrEqual(t, class, previous)
		assert.Less(t, class, 5)
		previous = class
	}
}

// Raw samples must fall in the class of their quantized level.
func TestSegmentAgreesWithLevels(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	samples := make([]float64, 3000)
	for i := range samples {
		samples[i] = rng.Float64() * 3
	}

	res, err := Segment(samples, 4, WithLevels(32))
	require.NoError(t, err)

	for i, s := range samples {
		level, _ := res.Quantizer.Level(s)

		want := 0
		for _, l := range res.Levels {
			if level >= l {
				want++
			}
		}
		assert.Equal(t, want, res.Classes[i], "sample %v at level %d", s, level)
	}
}

func TestThresholds(t *testing.T) {
	thresholds, err := Thresholds(clusters, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{25, 125, 227.5}, thresholds)

	_, err = Thresholds(clusters, 0)
	assert.ErrorIs(t, err, ErrInvalidClassCount)
}

func TestSegmentLogs(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	_, err := Segment([]float64{0, 1, math.NaN()}, 2, WithLogger(log))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"component":"multiotsu"`)
	assert.Contains(t, buf.String(), "thresholds found")
	assert.Contains(t, buf.String(), `"skipped":1`)
}
