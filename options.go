package multiotsu

import (
	"github.com/rs/zerolog"

	"go.afab.re/multiotsu/histogram"
)

type config struct {
	levels int

	// Fixed sample range, instead of the sample type's natural one.
	fixed    bool
	min, max float64
	// Scale between the observed extremes, even for 8 bit samples.
	observed bool

	nonFinite histogram.NonFinite
	workers   int

	log zerolog.Logger
}

func newConfig(opts []Option) config {
	c := config{
		levels: histogram.DefaultLevels,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Option configures Segment.
type Option func(*config)

// WithLevels sets the number of quantization levels L. Defaults to 256.
func WithLevels(levels int) Option {
	return func(c *config) {
		c.levels = levels
	}
}

// WithRange maps [min, max] onto the levels. Samples outside it are clamped
// to the end levels and reported in Result.Clipped.
func WithRange(min, max float64) Option {
	return func(c *config) {
		c.fixed = true
		c.observed = false
		c.min, c.max = min, max
	}
}

// WithObservedRange maps the smallest and largest finite sample onto the levels.
// This is already the default for everything but 8 bit samples.
func WithObservedRange() Option {
	return func(c *config) {
		c.fixed = false
		c.observed = true
	}
}

// WithNonFinite sets the policy for NaN and infinite samples. Defaults to histogram.Skip.
func WithNonFinite(policy histogram.NonFinite) Option {
	return func(c *config) {
		c.nonFinite = policy
	}
}

// WithWorkers counts samples and searches thresholds with n goroutines.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithLogger logs the steps of each call at debug level.
func WithLogger(log zerolog.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

func quantizer[T histogram.Number](c config, samples []T) histogram.Quantizer {
	switch {
	case c.fixed:
		return histogram.Quantizer{Min: c.min, Max: c.max, Levels: c.levels}
	case c.observed:
		lo, hi, ok := histogram.Range(samples)
		if !ok {
			lo, hi = 0, 1
		}
		return histogram.Quantizer{Min: lo, Max: hi, Levels: c.levels}
	default:
		return histogram.Natural(samples, c.levels)
	}
}
