package histogram

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// ErrNonFinite is returned for NaN or infinite samples under the Reject policy.
var ErrNonFinite = errors.New("non-finite sample")

// NonFinite is the policy for NaN and infinite samples.
type NonFinite int

const (
	// Skip leaves non-finite samples out of the histogram, and counts them in Stats.Skipped.
	Skip NonFinite = iota
	// Reject fails the build on the first non-finite sample.
	Reject
)

func (n NonFinite) String() string {
	switch n {
	case Skip:
		return "skip"
	case Reject:
		return "reject"
	default:
		return fmt.Sprintf("NonFinite(%d)", int(n))
	}
}

// Options control how samples are counted.
type Options struct {
	NonFinite NonFinite

	// Workers is the number of shards counted concurrently. <= 1 counts inline.
	Workers int
}

// Stats describe what happened to the samples while counting.
type Stats struct {
	// Samples that made it into the histogram.
	Counted int
	// Non-finite samples left out.
	Skipped int
	// Samples outside the quantizer's range, clamped to the end levels.
	Clipped int
}

// Build quantizes samples with q and counts them.
// Stats are valid even if an error is returned.
func Build[T Number](ctx context.Context, samples []T, q Quantizer, opts Options) (*Histogram, Stats, error) {
	if err := q.validate(); err != nil {
		return nil, Stats{}, err
	}
	if len(samples) == 0 {
		return nil, Stats{}, ErrEmpty
	}
	if err := ctx.Err(); err != nil {
		return nil, Stats{}, err
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(samples) {
		workers = len(samples)
	}
	size := (len(samples) + workers - 1) / workers

	shards := make([]shard, (len(samples)+size-1)/size)
	if len(shards) == 1 {
		countShard(&shards[0], samples, 0, q, opts.NonFinite)
	} else {
		g, ctx := errgroup.WithContext(ctx)
		for i := range shards {
			lo := i * size
			hi := min(lo+size, len(samples))
			s := &shards[i]

			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				countShard(s, samples[lo:hi], lo, q, opts.NonFinite)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, Stats{}, err
		}
	}

	// Merge in shard order so the first offending sample is the reported one.
	counts := make([]int64, q.Levels)
	var stats Stats
	for _, s := range shards {
		if s.bad >= 0 {
			return nil, stats, fmt.Errorf("sample %d is %v: %w", s.bad, s.badValue, ErrNonFinite)
		}

		for level, n := range s.counts {
			counts[level] += n
		}
		stats.Counted += s.stats.Counted
		stats.Skipped += s.stats.Skipped
		stats.Clipped += s.stats.Clipped
	}

	if stats.Counted == 0 {
		return nil, stats, fmt.Errorf("all %d samples skipped: %w", stats.Skipped, ErrEmpty)
	}

	h, err := New(counts)
	return h, stats, err
}

type shard struct {
	counts []int64
	stats  Stats

	// Index and value of the first rejected sample, -1 if none.
	bad      int
	badValue float64
}

func countShard[T Number](s *shard, samples []T, offset int, q Quantizer, policy NonFinite) {
	s.counts = make([]int64, q.Levels)
	s.bad = -1

	for i, sample := range samples {
		x := float64(sample)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			if policy == Reject {
				s.bad = offset + i
				s.badValue = x
				return
			}
			s.stats.Skipped++
			continue
		}

		level, clipped := q.Level(x)
		if clipped {
			s.stats.Clipped++
		}
		s.counts[level]++
		s.stats.Counted++
	}
}
