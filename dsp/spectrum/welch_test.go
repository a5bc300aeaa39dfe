package spectrum

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-slm/dsp/window"
)

func TestWelch_SineTotalPower(t *testing.T) {
	const (
		sr   = 48000.0
		freq = 1000.0
		n    = 4096
	)

	signal := make([]float64, 10*n)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * freq * float64(i) / sr)
	}

	freqs, psd, err := Welch(signal, WelchConfig{
		SegmentLength: n,
		Overlap:       0.5,
		SampleRate:    sr,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(freqs) != n/2+1 || len(psd) != n/2+1 {
		t.Fatalf("bin count: got %d/%d, want %d", len(freqs), len(psd), n/2+1)
	}

	// Integrating the PSD recovers the mean-square value of the sine (0.5).
	df := sr / float64(n)
	total := 0.0
	for _, p := range psd {
		total += p * df
	}
	if math.Abs(total-0.5) > 0.01 {
		t.Errorf("integrated PSD: got %g, want 0.5", total)
	}

	// The peak bin sits at the tone frequency.
	peak := 0
	for k := range psd {
		if psd[k] > psd[peak] {
			peak = k
		}
	}
	if math.Abs(freqs[peak]-freq) > df {
		t.Errorf("peak at %g Hz, want %g Hz", freqs[peak], freq)
	}
}

func TestWelch_WhiteNoiseFlatDensity(t *testing.T) {
	const (
		sr = 48000.0
		n  = 1024
	)

	// Deterministic pseudo-noise, enough segments to average the estimate down.
	rng := uint64(0x9e3779b97f4a7c15)
	next := func() float64 {
		rng ^= rng << 13
		rng ^= rng >> 7
		rng ^= rng << 17
		return float64(int64(rng)) / float64(math.MaxInt64)
	}

	signal := make([]float64, 200*n)
	var sumSq float64
	for i := range signal {
		signal[i] = next()
		sumSq += signal[i] * signal[i]
	}
	meanSq := sumSq / float64(len(signal))

	_, psd, err := Welch(signal, WelchConfig{
		SegmentLength: n,
		Overlap:       0.5,
		SampleRate:    sr,
	})
	if err != nil {
		t.Fatal(err)
	}

	// White noise density is meanSq / (fs/2); check the mid-band average.
	want := meanSq / (sr / 2)
	avg := 0.0
	count := 0
	for k := n / 8; k < 3*n/8; k++ {
		avg += psd[k]
		count++
	}
	avg /= float64(count)

	if math.Abs(avg-want)/want > 0.15 {
		t.Errorf("mid-band density: got %g, want %g ±15%%", avg, want)
	}
}

func TestWelch_Errors(t *testing.T) {
	signal := make([]float64, 100)

	if _, _, err := Welch(signal, WelchConfig{SegmentLength: 0, SampleRate: 48000}); err == nil {
		t.Error("zero segment length: want error")
	}
	if _, _, err := Welch(signal, WelchConfig{SegmentLength: 64, SampleRate: 0}); err == nil {
		t.Error("zero sample rate: want error")
	}
	if _, _, err := Welch(signal, WelchConfig{SegmentLength: 64, SampleRate: 48000, Overlap: 1.0}); err == nil {
		t.Error("overlap 1.0: want error")
	}
	if _, _, err := Welch(signal, WelchConfig{SegmentLength: 256, SampleRate: 48000}); err == nil {
		t.Error("signal shorter than one segment: want error")
	}
}

func TestWelch_WindowSelection(t *testing.T) {
	signal := make([]float64, 4096)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * 440 * float64(i) / 48000)
	}

	_, hann, err := Welch(signal, WelchConfig{SegmentLength: 1024, SampleRate: 48000, Window: window.TypeHann})
	if err != nil {
		t.Fatal(err)
	}
	_, flat, err := Welch(signal, WelchConfig{SegmentLength: 1024, SampleRate: 48000, Window: window.TypeFlatTop})
	if err != nil {
		t.Fatal(err)
	}

	same := true
	for k := range hann {
		if hann[k] != flat[k] {
			same = false
			break
		}
	}
	if same {
		t.Error("flat-top and Hann estimates are identical; window not applied")
	}

	// A rectangular request must be honored, not treated as unset.
	_, rect, err := Welch(signal, WelchConfig{SegmentLength: 1024, SampleRate: 48000, Window: window.TypeRectangular})
	if err != nil {
		t.Fatal(err)
	}
	_, unset, err := Welch(signal, WelchConfig{SegmentLength: 1024, SampleRate: 48000})
	if err != nil {
		t.Fatal(err)
	}

	rectVsHann := false
	for k := range rect {
		if rect[k] != hann[k] {
			rectVsHann = true
			break
		}
	}
	if !rectVsHann {
		t.Error("rectangular estimate identical to Hann; explicit window ignored")
	}

	for k := range unset {
		if unset[k] != hann[k] {
			t.Fatalf("bin %d: zero-value window differs from Hann", k)
		}
	}
}

func TestPowerAndMagnitude(t *testing.T) {
	in := []complex128{complex(3, 4), complex(0, 0), complex(-1, 1)}

	mag := Magnitude(in)
	if math.Abs(mag[0]-5) > 1e-12 || mag[1] != 0 || math.Abs(mag[2]-math.Sqrt2) > 1e-12 {
		t.Errorf("magnitude: got %v", mag)
	}

	pow := Power(in)
	if math.Abs(pow[0]-25) > 1e-12 || pow[1] != 0 || math.Abs(pow[2]-2) > 1e-12 {
		t.Errorf("power: got %v", pow)
	}
}

func TestFrequencies(t *testing.T) {
	f := Frequencies(8, 8000)
	want := []float64{0, 1000, 2000, 3000, 4000}
	if len(f) != len(want) {
		t.Fatalf("bin count: got %d, want %d", len(f), len(want))
	}
	for i := range want {
		if f[i] != want[i] {
			t.Errorf("bin %d: got %g, want %g", i, f[i], want[i])
		}
	}
}
