package slm

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/cwbudde/algo-slm/dsp/filter/bank"
	"github.com/cwbudde/algo-slm/dsp/filter/weighting"
)

// validate is the shared validator instance for analyzer configuration.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds analysis parameters.
type Config struct {
	// BlockSizeMS is the duration of one analysis block in milliseconds.
	BlockSizeMS float64 `validate:"gt=0,lte=60000"`
	// Weighting selects the frequency weighting applied before scoring.
	Weighting weighting.Type
	// BandAnalysis enables per-band Leq values via an octave filter bank.
	BandAnalysis   bool
	BandResolution bank.Resolution
	BandOrder      int `validate:"gte=2,lte=48"`
	// Speed selects the detector time constants.
	Speed ResponseSpeed
	// RefPressure is the 0 dB reference in pascals.
	RefPressure float64 `validate:"gt=0"`
	// Calibration is a multiplicative factor applied to raw samples
	// before any filtering.
	Calibration float64 `validate:"gt=0"`

	progress func(percent int)
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns analysis defaults: 125 ms blocks, A-weighting,
// fast response, 20 uPa reference, unity calibration.
func DefaultConfig() Config {
	return Config{
		BlockSizeMS:    125,
		Weighting:      weighting.TypeA,
		BandResolution: bank.ResolutionThird,
		BandOrder:      24,
		Speed:          SpeedFast,
		RefPressure:    20e-6,
		Calibration:    1,
	}
}

// WithBlockSize sets the analysis block duration in milliseconds.
func WithBlockSize(ms float64) Option {
	return func(cfg *Config) {
		cfg.BlockSizeMS = ms
	}
}

// WithWeighting selects the frequency weighting curve.
func WithWeighting(t weighting.Type) Option {
	return func(cfg *Config) {
		cfg.Weighting = t
	}
}

// WithBandAnalysis enables octave-band Leq values at the given
// resolution and filter order.
func WithBandAnalysis(resolution bank.Resolution, order int) Option {
	return func(cfg *Config) {
		cfg.BandAnalysis = true
		cfg.BandResolution = resolution
		if order > 0 {
			cfg.BandOrder = order
		}
	}
}

// WithSpeed selects the detector response speed.
func WithSpeed(s ResponseSpeed) Option {
	return func(cfg *Config) {
		cfg.Speed = s
	}
}

// WithRefPressure sets the 0 dB reference pressure in pascals.
func WithRefPressure(ref float64) Option {
	return func(cfg *Config) {
		if ref > 0 {
			cfg.RefPressure = ref
		}
	}
}

// WithCalibration sets the multiplicative calibration factor.
func WithCalibration(factor float64) Option {
	return func(cfg *Config) {
		if factor > 0 {
			cfg.Calibration = factor
		}
	}
}

// WithProgress registers a callback receiving integer percentages during
// spectral estimation runs.
func WithProgress(fn func(percent int)) Option {
	return func(cfg *Config) {
		cfg.progress = fn
	}
}

func applyOptions(opts ...Option) (Config, error) {
	cfg := DefaultConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	return cfg, nil
}
