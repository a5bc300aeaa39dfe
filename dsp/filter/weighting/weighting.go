package weighting

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"
	"sync"

	"github.com/cwbudde/algo-slm/dsp/filter/biquad"
)

// IEC 61672 analog prototype pole frequencies (Hz).
const (
	f1 = 20.598997 // double pole for A and C
	f2 = 107.65265 // single pole for A
	f4 = 737.86223 // single pole for A
	f5 = 12194.217 // double pole for A and C
)

// SupportedSampleRates lists the rates the weighting design is validated
// against. Other rates are accepted but logged as reduced-confidence.
var SupportedSampleRates = []float64{22050, 44100, 48000, 96000, 192000}

// ErrUnrealizable reports a sample rate too low to realize a weighting
// cascade: the optimization grid must contain frequencies above the
// 1 kHz normalization point.
var ErrUnrealizable = errors.New("weighting: sample rate too low for weighting design")

// Type identifies a frequency weighting curve.
type Type int

const (
	// TypeA is the A-weighting curve per IEC 61672, approximating the
	// 40-phon equal-loudness contour. The default for noise measurements.
	TypeA Type = iota

	// TypeC is the C-weighting curve per IEC 61672, used for peak
	// measurements and C-A difference calculations.
	TypeC

	// TypeZ is the Z-weighting (zero-weighting) per IEC 61672.
	// It applies no frequency weighting (unity gain at all frequencies).
	TypeZ
)

// String returns a human-readable name for the weighting type.
func (t Type) String() string {
	switch t {
	case TypeA:
		return "A"
	case TypeC:
		return "C"
	case TypeZ:
		return "Z"
	default:
		return "Unknown"
	}
}

// designCache memoizes optimized cascades per (sampleRate, type) pair.
// The optimization is deterministic for fixed inputs, so repeated runs
// at the same rate reuse the first design.
var designCache = struct {
	sync.Mutex
	m map[cacheKey][]biquad.Coefficients
}{m: make(map[cacheKey][]biquad.Coefficients)}

type cacheKey struct {
	sampleRate float64
	typ        Type
}

// New returns a [biquad.Chain] configured for the given weighting curve
// at the specified sample rate, normalized so that the magnitude
// response at 1 kHz is 0 dB.
//
// For [TypeA] and [TypeC] the cascade combines bilinear-mapped fixed
// low-frequency sections, a matched-z-transform section for the f5
// double pole, and a numerically fitted parametric correction stage.
// [TypeZ] returns a unity passthrough chain.
func New(t Type, sampleRate float64) (*biquad.Chain, error) {
	if t == TypeZ {
		return biquad.NewChain([]biquad.Coefficients{{B0: 1}}), nil
	}

	coeffs, err := designCoefficients(t, sampleRate)
	if err != nil {
		return nil, err
	}

	return biquad.NewChain(coeffs), nil
}

func designCoefficients(t Type, sampleRate float64) ([]biquad.Coefficients, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %g Hz", ErrUnrealizable, sampleRate)
	}

	// The fit needs target frequencies above 1 kHz.
	if 0.94*sampleRate/2 <= refFreq {
		return nil, fmt.Errorf("%w: %g Hz", ErrUnrealizable, sampleRate)
	}

	key := cacheKey{sampleRate: sampleRate, typ: t}

	designCache.Lock()
	defer designCache.Unlock()

	if cached, ok := designCache.m[key]; ok {
		return cloneCoeffs(cached), nil
	}

	if !isSupportedRate(sampleRate) {
		slog.Warn("non-standard sample rate, weighting accuracy depends on dynamic filter fit",
			"sample_rate", sampleRate, "weighting", t.String())
	}

	coeffs := optimizeCascade(t, sampleRate)
	designCache.m[key] = coeffs

	return cloneCoeffs(coeffs), nil
}

func isSupportedRate(sampleRate float64) bool {
	for _, sr := range SupportedSampleRates {
		if sr == sampleRate {
			return true
		}
	}

	return false
}

func cloneCoeffs(c []biquad.Coefficients) []biquad.Coefficients {
	out := make([]biquad.Coefficients, len(c))
	copy(out, c)

	return out
}

// fixedSections returns the low-frequency part of the cascade, mapped
// with the bilinear transform. These sections are exact closed forms and
// are never touched by the optimizer.
func fixedSections(t Type, sampleRate float64) []biquad.Coefficients {
	if t == TypeA {
		return []biquad.Coefficients{
			hpSecondOrder(f1, sampleRate),
			hpFirstOrder(f2, sampleRate),
			hpFirstOrder(f4, sampleRate),
		}
	}

	return []biquad.Coefficients{
		hpSecondOrder(f1, sampleRate),
	}
}

// mztSection maps the f5 double pole with the matched z-transform
// instead of the bilinear transform. Near Nyquist the bilinear mapping
// cramps the pole frequency; the MZT keeps the rolloff shape usable even
// when f5 exceeds Nyquist, as it does at 22.05 kHz.
//
//	p = exp(-2*pi*f5/fs), k = (1-p)^2, H(z) = k / (1 - 2p z^-1 + p^2 z^-2)
func mztSection(poleHz, sampleRate float64) biquad.Coefficients {
	p := math.Exp(-2 * math.Pi * poleHz / sampleRate)
	k := (1 - p) * (1 - p)

	return biquad.Coefficients{B0: k, A1: -2 * p, A2: p * p}
}

// hpSecondOrder computes a 2nd-order high-pass biquad section for a
// double pole at frequency f using the bilinear transform.
//
// The analog prototype is H(s) = s^2 / (s + omega)^2 where omega = 2*pi*f.
// Using K = tan(pi*f/sr) as the frequency-warped variable:
//
//	denom = 1 + 2*K + K^2
//	B0 = 1/denom, B1 = -2/denom, B2 = 1/denom
//	A1 = 2*(K^2 - 1)/denom, A2 = (1 - 2*K + K^2)/denom
func hpSecondOrder(f, sr float64) biquad.Coefficients {
	k := math.Tan(math.Pi * f / sr)
	k2 := k * k
	d := 1 + 2*k + k2

	return biquad.Coefficients{
		B0: 1 / d,
		B1: -2 / d,
		B2: 1 / d,
		A1: 2 * (k2 - 1) / d,
		A2: (1 - 2*k + k2) / d,
	}
}

// hpFirstOrder computes a 1st-order high-pass biquad section for a
// single pole at frequency f using the bilinear transform.
//
// The analog prototype is H(s) = s / (s + omega).
// Using K = tan(pi*f/sr):
//
//	B0 = 1/(1+K), B1 = -1/(1+K), B2 = 0
//	A1 = (K-1)/(K+1), A2 = 0
func hpFirstOrder(f, sr float64) biquad.Coefficients {
	k := math.Tan(math.Pi * f / sr)
	d := 1 + k

	return biquad.Coefficients{
		B0: 1 / d,
		B1: -1 / d,
		A1: (k - 1) / d,
	}
}

// cascadeResponse evaluates the product response of coefficient sets at
// one frequency.
func cascadeResponse(coeffs []biquad.Coefficients, freqHz, sampleRate float64) complex128 {
	h := complex(1, 0)
	for i := range coeffs {
		h *= coeffs[i].Response(freqHz, sampleRate)
	}

	return h
}

// normalizeAtReference rescales the first section's b coefficients so
// the cascade gain at exactly 1 kHz is unity.
func normalizeAtReference(coeffs []biquad.Coefficients, sampleRate float64) {
	g := cmplx.Abs(cascadeResponse(coeffs, refFreq, sampleRate)) + 1e-15
	scale := 1 / g

	coeffs[0].B0 *= scale
	coeffs[0].B1 *= scale
	coeffs[0].B2 *= scale
}
