package spectrum

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/cwbudde/algo-slm/dsp/window"
)

// WelchConfig holds parameters for the averaged-periodogram estimator.
type WelchConfig struct {
	// SegmentLength is the per-segment FFT size in samples.
	SegmentLength int
	// Overlap is the fraction of each segment shared with its successor,
	// in [0, 1). Zero means non-overlapping segments.
	Overlap float64
	// Window selects the per-segment taper. The zero value is Hann.
	Window window.Type
	// SampleRate in Hz, used for density scaling and bin frequencies.
	SampleRate float64
}

// Welch estimates the one-sided power spectral density of signal by
// averaging windowed periodograms over overlapping segments.
//
// The returned slices hold bin center frequencies in Hz and PSD values
// in units^2/Hz, covering DC through Nyquist. Trailing samples that do
// not fill a whole segment are discarded.
func Welch(signal []float64, cfg WelchConfig) (freqs, psd []float64, err error) {
	if cfg.SegmentLength <= 1 {
		return nil, nil, fmt.Errorf("welch segment length must be > 1: %d", cfg.SegmentLength)
	}
	if cfg.SampleRate <= 0 {
		return nil, nil, fmt.Errorf("welch sample rate must be > 0: %f", cfg.SampleRate)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= 1 {
		return nil, nil, fmt.Errorf("welch overlap must be in [0, 1): %f", cfg.Overlap)
	}
	if len(signal) < cfg.SegmentLength {
		return nil, nil, fmt.Errorf("welch needs at least %d samples: %d", cfg.SegmentLength, len(signal))
	}

	n := cfg.SegmentLength
	step := n - int(float64(n)*cfg.Overlap)
	if step < 1 {
		step = 1
	}

	coeffs := window.Generate(cfg.Window, n, window.WithPeriodic())

	winPower, err := window.PowerGain(coeffs)
	if err != nil {
		return nil, nil, err
	}

	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, nil, fmt.Errorf("welch fft plan: %w", err)
	}

	bins := n/2 + 1
	acc := make([]float64, bins)
	segIn := make([]complex128, n)
	segOut := make([]complex128, n)

	segments := 0
	for pos := 0; pos+n <= len(signal); pos += step {
		for i := range n {
			segIn[i] = complex(signal[pos+i]*coeffs[i], 0)
		}

		if err := plan.Forward(segOut, segIn); err != nil {
			return nil, nil, fmt.Errorf("welch fft: %w", err)
		}

		for k := range bins {
			re := real(segOut[k])
			im := imag(segOut[k])
			acc[k] += re*re + im*im
		}
		segments++
	}

	// Density scaling: divide by fs * sum(w^2), double interior bins to
	// fold negative frequencies into the one-sided spectrum.
	scale := 1 / (cfg.SampleRate * winPower * float64(segments))
	for k := range bins {
		v := acc[k] * scale
		if k != 0 && k != bins-1 {
			v *= 2
		}
		acc[k] = v
	}

	return Frequencies(n, cfg.SampleRate), acc, nil
}
