package slm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-slm/dsp/filter/biquad"
	"github.com/cwbudde/algo-slm/dsp/filter/weighting"
	"github.com/cwbudde/algo-slm/dsp/spectrum"
	"github.com/cwbudde/algo-slm/dsp/window"
)

// psdChunkSeconds is the nominal duration of one accumulation chunk.
const psdChunkSeconds = 10.0

// PSDResult is the terminal record of a whole-source PSD estimate.
type PSDResult struct {
	Freqs     []float64
	Pxx       []float64
	NFFT      int
	Window    window.Type
	Weighting weighting.Type
}

// SpectrogramResult is the terminal record of a time-sliced PSD estimate.
// Pxx is indexed [time][frequency].
type SpectrogramResult struct {
	Times     []float64
	Freqs     []float64
	Pxx       [][]float64
	NFFT      int
	Dt        float64
	Weighting weighting.Type
}

// PSD estimates the power spectral density of the whole source with the
// Welch method: calibrated chunks of roughly ten seconds, 50% segment
// overlap, averaged across chunks, then scaled by the squared magnitude
// response of the configured weighting curve.
//
// Progress percentages are delivered through the WithProgress callback
// when the source length is known.
func (a *Analyzer) PSD(ctx context.Context, nfft int, win window.Type) (*PSDResult, error) {
	sampleRate := a.src.SampleRate()
	if nfft <= 0 {
		return nil, fmt.Errorf("%w: nfft %d", ErrData, nfft)
	}

	chain, err := weighting.New(a.cfg.Weighting, sampleRate)
	if err != nil {
		return nil, err
	}

	chunkSize := max(int(psdChunkSeconds*sampleRate), nfft)

	acc := make([]float64, nfft/2+1)
	var freqs []float64
	chunks := 0

	err = a.eachChunk(ctx, chunkSize, nfft, func(chunk []float64) error {
		f, pxx, err := spectrum.Welch(chunk, spectrum.WelchConfig{
			SegmentLength: nfft,
			Overlap:       0.5,
			Window:        win,
			SampleRate:    sampleRate,
		})
		if err != nil {
			return err
		}

		freqs = f
		for k := range acc {
			acc[k] += pxx[k]
		}
		chunks++

		return nil
	})
	if err != nil {
		return nil, err
	}

	if chunks == 0 {
		return nil, fmt.Errorf("%w: source shorter than one %d-sample segment", ErrData, nfft)
	}

	vecmath.ScaleBlockInPlace(acc, 1/float64(chunks))
	applyWeighting(chain, acc, freqs, sampleRate)

	return &PSDResult{
		Freqs:     freqs,
		Pxx:       acc,
		NFFT:      nfft,
		Window:    win,
		Weighting: a.cfg.Weighting,
	}, nil
}

// Spectrogram estimates one Welch PSD per dt-second slice of the source,
// frequency-weighted identically to PSD.
func (a *Analyzer) Spectrogram(ctx context.Context, nfft int, dt float64, win window.Type) (*SpectrogramResult, error) {
	sampleRate := a.src.SampleRate()
	if nfft <= 0 {
		return nil, fmt.Errorf("%w: nfft %d", ErrData, nfft)
	}

	sliceSize := int(dt * sampleRate)
	if sliceSize < nfft {
		return nil, fmt.Errorf("%w: %g s slice holds %d samples, need at least %d", ErrData, dt, sliceSize, nfft)
	}

	chain, err := weighting.New(a.cfg.Weighting, sampleRate)
	if err != nil {
		return nil, err
	}

	result := &SpectrogramResult{
		NFFT:      nfft,
		Dt:        dt,
		Weighting: a.cfg.Weighting,
	}

	err = a.eachChunk(ctx, sliceSize, sliceSize, func(chunk []float64) error {
		freqs, pxx, err := spectrum.Welch(chunk, spectrum.WelchConfig{
			SegmentLength: nfft,
			Overlap:       0.5,
			Window:        win,
			SampleRate:    sampleRate,
		})
		if err != nil {
			return err
		}

		applyWeighting(chain, pxx, freqs, sampleRate)

		result.Freqs = freqs
		result.Times = append(result.Times, float64(len(result.Pxx))*dt)
		result.Pxx = append(result.Pxx, pxx)

		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Pxx) == 0 {
		return nil, fmt.Errorf("%w: source shorter than one %g s slice", ErrData, dt)
	}

	return result, nil
}

// eachChunk reads calibrated chunks of chunkSize samples and passes every
// chunk of at least minSize samples to fn, reporting progress between
// chunks. Trailing samples below minSize are discarded.
func (a *Analyzer) eachChunk(ctx context.Context, chunkSize, minSize int, fn func(chunk []float64) error) error {
	var total int64
	if sizer, ok := a.src.(Sizer); ok {
		total = sizer.TotalSamples()
	}

	buf := make([]float64, chunkSize)
	var read int64
	lastPercent := -1

	report := func(percent int) {
		if a.cfg.progress != nil && percent != lastPercent {
			lastPercent = percent
			a.cfg.progress(percent)
		}
	}

	for {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		n, err := a.fillChunk(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}

		read += int64(n)
		if n >= minSize {
			chunk := buf[:n]
			vecmath.ScaleBlockInPlace(chunk, a.cfg.Calibration)

			if err := fn(chunk); err != nil {
				return err
			}
		}

		if total > 0 {
			report(int(100 * read / total))
		}

		if n < chunkSize {
			break
		}
	}

	report(100)

	return nil
}

// fillChunk reads until buf is full or the source is exhausted.
func (a *Analyzer) fillChunk(buf []float64) (int, error) {
	filled := 0
	for filled < len(buf) {
		n, err := a.src.ReadBlock(buf[filled:])
		filled += n

		if err != nil {
			if errors.Is(err, io.EOF) {
				return filled, nil
			}

			return 0, err
		}
		if n == 0 {
			break
		}
	}

	return filled, nil
}

// applyWeighting scales a PSD in place by the squared magnitude response
// of the weighting cascade at each bin.
func applyWeighting(chain *biquad.Chain, pxx, freqs []float64, sampleRate float64) {
	for k := range pxx {
		pxx[k] *= chain.PowerResponse(freqs[k], sampleRate)
	}
}
