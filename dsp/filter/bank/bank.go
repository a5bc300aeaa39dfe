package bank

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/algo-slm/dsp/filter/biquad"
	"github.com/cwbudde/algo-slm/dsp/filter/design/pass"
)

// Resolution selects the fractional-octave band spacing.
type Resolution int

const (
	// ResolutionOctave gives full-octave bands, centers 1000*10^(3x/10).
	ResolutionOctave Resolution = iota

	// ResolutionThird gives one-third-octave bands, centers 1000*10^(x/10).
	ResolutionThird
)

// String returns a human-readable name for the resolution.
func (r Resolution) String() string {
	switch r {
	case ResolutionOctave:
		return "octave"
	case ResolutionThird:
		return "third"
	default:
		return "unknown"
	}
}

// bandwidthFactor returns r such that the nominal band edges are
// fc/r and fc*r.
func (r Resolution) bandwidthFactor() float64 {
	if r == ResolutionOctave {
		return math.Sqrt2
	}

	return math.Pow(2, 1.0/6.0)
}

const (
	defaultOrder = 24

	// edgeRippleDB is the allowed Butterworth droop at the nominal ANSI
	// band edges. The design edges are widened so the response at the
	// nominal edges stays within this ripple.
	edgeRippleDB = 0.05

	// Design edges are clamped below this fraction of Nyquist; bands
	// whose centers sit above 0.95*Nyquist/r are excluded outright.
	nyquistClamp  = 0.99
	nyquistMargin = 0.95
)

// CenterFrequencies returns the exact ANSI S1.11 base-10 center
// frequencies for the resolution: x = -6..4 for octave bands and
// x = -19..13 for third-octave bands.
func CenterFrequencies(r Resolution) []float64 {
	if r == ResolutionOctave {
		freqs := make([]float64, 0, 11)
		for x := -6; x <= 4; x++ {
			freqs = append(freqs, 1000*math.Pow(10, 3*float64(x)/10))
		}

		return freqs
	}

	freqs := make([]float64, 0, 33)
	for x := -19; x <= 13; x++ {
		freqs = append(freqs, 1000*math.Pow(10, float64(x)/10))
	}

	return freqs
}

// Band is one fractional-octave band: its ANSI center frequency and the
// stateful Butterworth bandpass cascade that realizes it.
type Band struct {
	CenterFreq float64
	Chain      *biquad.Chain
}

// Bank is an ensemble of stateful bandpass filters, one per surviving
// ANSI center frequency. All bands share a uniform processing contract:
// ProcessChunk, InitializeState, and Reset fan out identically.
type Bank struct {
	bands      []Band
	sampleRate float64
	resolution Resolution
	order      int
}

type bankConfig struct {
	order int
}

// Option configures a Bank.
type Option func(*bankConfig)

// WithOrder sets the Butterworth bandpass order per band.
// Must be positive; defaults to 24.
func WithOrder(n int) Option {
	return func(cfg *bankConfig) {
		if n > 0 {
			cfg.order = n
		}
	}
}

// New builds a fractional-octave filter bank at the given sample rate.
//
// Centers whose band edges would crowd Nyquist (center above
// 0.95*Nyquist/r) are excluded. A band that is individually infeasible
// after edge widening and clamping is skipped with a warning rather than
// failing the bank; the surviving bands form the operative band list.
func New(resolution Resolution, sampleRate float64, opts ...Option) (*Bank, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("bank: sample rate must be positive, got %g", sampleRate)
	}

	cfg := bankConfig{order: defaultOrder}
	for _, o := range opts {
		o(&cfg)
	}

	r := resolution.bandwidthFactor()
	centerLimit := sampleRate / 2 / r * nyquistMargin

	var bands []Band
	for _, fc := range CenterFrequencies(resolution) {
		if fc >= centerLimit {
			continue
		}

		sections, err := designBand(fc, sampleRate, resolution, cfg.order)
		if err != nil {
			slog.Warn("octave band skipped", "center_hz", fc,
				"resolution", resolution.String(), "err", err)

			continue
		}

		bands = append(bands, Band{CenterFreq: fc, Chain: biquad.NewChain(sections)})
	}

	return &Bank{
		bands:      bands,
		sampleRate: sampleRate,
		resolution: resolution,
		order:      cfg.order,
	}, nil
}

// designBand designs one ripple-compensated Butterworth bandpass.
//
// A finite-order Butterworth droops at its nominal passband edges, so
// the design edges are widened by alpha = ((10^(r/10))-1)^(1/(2N)) for
// edge ripple r dB and order N. The widened upper edge is clamped below
// Nyquist; if the edges cross after clamping the band is infeasible.
func designBand(fc, sampleRate float64, resolution Resolution, order int) ([]biquad.Coefficients, error) {
	r := resolution.bandwidthFactor()
	lower := fc / r
	upper := fc * r

	alpha := math.Pow(math.Pow(10, edgeRippleDB/10)-1, 1/(2*float64(order)))
	lower *= alpha
	upper /= alpha

	nyquist := sampleRate / 2
	if upper >= nyquist*nyquistClamp {
		upper = nyquist * nyquistClamp
		if lower >= upper {
			return nil, fmt.Errorf("band centered at %.1f Hz is too close to Nyquist (%g Hz)", fc, nyquist)
		}
	}

	return pass.ButterworthBP(lower, upper, order, sampleRate)
}

// Bands returns the operative band list, ordered low to high frequency.
func (b *Bank) Bands() []Band { return b.bands }

// NumBands returns the number of surviving bands.
func (b *Bank) NumBands() int { return len(b.bands) }

// CenterFreqs returns the surviving center frequencies in ascending order.
func (b *Bank) CenterFreqs() []float64 {
	freqs := make([]float64, len(b.bands))
	for i := range b.bands {
		freqs[i] = b.bands[i].CenterFreq
	}

	return freqs
}

// SampleRate returns the sample rate the bank was built for.
func (b *Bank) SampleRate() float64 { return b.sampleRate }

// Resolution returns the bank's fractional-octave resolution.
func (b *Bank) Resolution() Resolution { return b.resolution }

// Order returns the Butterworth bandpass order per band.
func (b *Bank) Order() int { return b.order }

// ProcessChunk filters one chunk through every band, advancing each
// band's state. The result holds one output slice per band, each the
// same length as the input; the input is not modified.
func (b *Bank) ProcessChunk(chunk []float64) [][]float64 {
	out := make([][]float64, len(b.bands))
	for i := range b.bands {
		buf := make([]float64, len(chunk))
		b.bands[i].Chain.ProcessBlockTo(buf, chunk)
		out[i] = buf
	}

	return out
}

// InitializeState warm-starts every band from the first chunk of an
// analysis run, fanning out [biquad.Chain.WarmStart].
func (b *Bank) InitializeState(seed []float64) {
	for i := range b.bands {
		b.bands[i].Chain.WarmStart(seed)
	}
}

// Reset re-seeds every band to its unit-step steady state, discarding
// all history.
func (b *Bank) Reset() {
	for i := range b.bands {
		b.bands[i].Chain.ResetToStep()
	}
}
