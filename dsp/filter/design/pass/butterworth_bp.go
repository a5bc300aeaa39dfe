package pass

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-slm/dsp/filter/biquad"
)

// ErrInvalidParams reports an infeasible bandpass design request.
var ErrInvalidParams = errors.New("pass: invalid bandpass parameters")

// ButterworthBP designs an order-N Butterworth bandpass as a cascade of
// N biquad sections (2N poles total).
//
// The analog lowpass prototype poles are transformed to bandpass poles
// via the lowpass-to-bandpass substitution, mapped to the z-plane with
// the bilinear transform (edges prewarped), and grouped into one section
// per conjugate pole pair. Every section carries the bandpass numerator
// (1 - z^-2), i.e. zeros at z = +1 and z = -1.
//
// The overall gain is distributed across sections by normalizing each
// section to unit magnitude at the band's geometric center frequency.
// A single lumped scale factor would overflow float64 at high orders
// (bw^N alone exceeds 1e300 near order 40), and spreading the gain keeps
// every section's coefficients in a sane range.
func ButterworthBP(lowHz, highHz float64, order int, sampleRate float64) ([]biquad.Coefficients, error) {
	if sampleRate <= 0 || order < 1 {
		return nil, fmt.Errorf("%w: order=%d sampleRate=%g", ErrInvalidParams, order, sampleRate)
	}

	nyquist := sampleRate / 2
	if lowHz <= 0 || highHz <= lowHz || highHz >= nyquist {
		return nil, fmt.Errorf("%w: edges %g..%g Hz (nyquist %g Hz)", ErrInvalidParams, lowHz, highHz, nyquist)
	}

	// Prewarped analog edge frequencies (rad/s).
	k := 2 * sampleRate
	w1 := k * math.Tan(math.Pi*lowHz/sampleRate)
	w2 := k * math.Tan(math.Pi*highHz/sampleRate)
	w0sq := complex(w1*w2, 0)
	bw := w2 - w1

	// Digital center used for per-section gain normalization.
	centerHz := math.Sqrt(lowHz * highHz)

	sections := make([]biquad.Coefficients, 0, order)

	appendConjSection := func(z complex128) {
		sections = append(sections, normalizedBPSection(
			-2*real(z), real(z)*real(z)+imag(z)*imag(z), centerHz, sampleRate))
	}

	// One prototype pole per iteration from the upper half-plane; its
	// conjugate is implied. For odd orders the last prototype pole is
	// real (p = -1).
	half := order / 2
	for i := range half {
		theta := math.Pi * float64(2*i+1) / (2 * float64(order))
		p := complex(-math.Sin(theta), math.Cos(theta))

		zp, zm := bandpassPolePair(p, complex(bw, 0), w0sq, k)
		appendConjSection(zp)
		appendConjSection(zm)
	}

	if order%2 != 0 {
		zp, zm := bandpassPolePair(complex(-1, 0), complex(bw, 0), w0sq, k)
		if math.Abs(imag(zp)) > 1e-12 {
			// Conjugate pair: one section covers both poles.
			appendConjSection(zp)
		} else {
			// Very wide band: two real poles share one section.
			r1, r2 := real(zp), real(zm)
			sections = append(sections, normalizedBPSection(-(r1 + r2), r1*r2, centerHz, sampleRate))
		}
	}

	for _, s := range sections {
		if math.IsNaN(s.A1) || math.IsNaN(s.A2) || math.Abs(s.A2) >= 1 {
			return nil, fmt.Errorf("%w: unstable section for edges %g..%g Hz", ErrInvalidParams, lowHz, highHz)
		}
	}

	return sections, nil
}

// bandpassPolePair maps one analog lowpass prototype pole p to its two
// bandpass poles and returns their bilinear z-plane images.
//
//	s = bw*p/2 ± sqrt((bw*p/2)^2 - w0^2)
func bandpassPolePair(p, bw, w0sq complex128, k float64) (complex128, complex128) {
	half := bw * p / 2
	d := cmplx.Sqrt(half*half - w0sq)

	return bilinearPole(half+d, k), bilinearPole(half-d, k)
}

// bilinearPole maps an analog pole s to the z-plane: z = (k+s)/(k-s)
// with k = 2*fs.
func bilinearPole(s complex128, k float64) complex128 {
	return (complex(k, 0) + s) / (complex(k, 0) - s)
}

// normalizedBPSection builds a section with denominator (1, a1, a2) and
// numerator g*(1 - z^-2), with g chosen for unit magnitude at centerHz.
func normalizedBPSection(a1, a2, centerHz, sampleRate float64) biquad.Coefficients {
	w := 2 * math.Pi * centerHz / sampleRate
	z1 := cmplx.Exp(complex(0, -w))
	z2 := z1 * z1

	num := cmplx.Abs(1 - z2)
	den := cmplx.Abs(1 + complex(a1, 0)*z1 + complex(a2, 0)*z2)

	g := 1.0
	if num > 0 {
		g = den / num
	}

	return biquad.Coefficients{B0: g, B2: -g, A1: a1, A2: a2}
}
