package pass

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-slm/dsp/filter/biquad"
)

func cascadeMagnitudeDB(sections []biquad.Coefficients, freq, sr float64) float64 {
	db := 0.0
	for i := range sections {
		db += sections[i].MagnitudeDB(freq, sr)
	}

	return db
}

func TestButterworthBP_SectionCount(t *testing.T) {
	for _, order := range []int{1, 2, 3, 8, 24} {
		sections, err := ButterworthBP(891, 1122, order, 48000)
		if err != nil {
			t.Fatalf("order %d: %v", order, err)
		}
		if len(sections) != order {
			t.Errorf("order %d: got %d sections, want %d", order, len(sections), order)
		}
	}
}

func TestButterworthBP_CenterGainUnity(t *testing.T) {
	for _, sr := range []float64{44100, 48000, 96000} {
		sections, err := ButterworthBP(891, 1122, 24, sr)
		if err != nil {
			t.Fatalf("sr %g: %v", sr, err)
		}

		fc := math.Sqrt(891 * 1122)
		if db := cascadeMagnitudeDB(sections, fc, sr); math.Abs(db) > 0.01 {
			t.Errorf("sr %g: center gain %.4f dB, want 0 dB", sr, db)
		}
	}
}

func TestButterworthBP_StopbandAttenuation(t *testing.T) {
	// Third-octave band at 1 kHz; one octave away must be far down.
	sections, err := ButterworthBP(891, 1122, 24, 48000)
	if err != nil {
		t.Fatal(err)
	}

	for _, freq := range []float64{500, 2000} {
		if db := cascadeMagnitudeDB(sections, freq, 48000); db > -60 {
			t.Errorf("attenuation at %g Hz: %.1f dB, want < -60 dB", freq, db)
		}
	}
}

func TestButterworthBP_PassbandEdges(t *testing.T) {
	sections, err := ButterworthBP(891, 1122, 24, 48000)
	if err != nil {
		t.Fatal(err)
	}

	// Design edges are the -3 dB points of a Butterworth bandpass.
	for _, edge := range []float64{891, 1122} {
		db := cascadeMagnitudeDB(sections, edge, 48000)
		if math.Abs(db+3.01) > 0.3 {
			t.Errorf("edge %g Hz: %.2f dB, want about -3 dB", edge, db)
		}
	}
}

func TestButterworthBP_Stability(t *testing.T) {
	sections, err := ButterworthBP(14130, 17790, 24, 44100)
	if err != nil {
		t.Fatal(err)
	}

	for i, s := range sections {
		if math.Abs(s.A2) >= 1 {
			t.Errorf("section %d: |A2| = %.6f >= 1 (pole outside unit circle)", i, math.Abs(s.A2))
		}
	}
}

func TestButterworthBP_InvalidParams(t *testing.T) {
	cases := []struct {
		name      string
		low, high float64
		order     int
		sr        float64
	}{
		{"zero low edge", 0, 1000, 4, 48000},
		{"inverted edges", 2000, 1000, 4, 48000},
		{"high edge at nyquist", 1000, 24000, 4, 48000},
		{"zero order", 100, 200, 0, 48000},
		{"zero sample rate", 100, 200, 4, 0},
	}

	for _, tc := range cases {
		if _, err := ButterworthBP(tc.low, tc.high, tc.order, tc.sr); !errors.Is(err, ErrInvalidParams) {
			t.Errorf("%s: got %v, want ErrInvalidParams", tc.name, err)
		}
	}
}
