package slm

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-slm/dsp/filter/bank"
	"github.com/cwbudde/algo-slm/dsp/filter/weighting"
)

func toneSource(seconds, freq, amp, sr float64) *SliceSource {
	n := int(seconds * sr)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/sr)
	}

	return NewSliceSource(samples, sr)
}

func collect(t *testing.T, st *Stream) []BlockResult {
	t.Helper()

	var results []BlockResult
	for {
		r, ok := st.Next()
		if !ok {
			break
		}
		results = append(results, r)
	}
	if err := st.Err(); err != nil {
		t.Fatalf("stream error: %v", err)
	}

	return results
}

func TestRun_SteadyTone(t *testing.T) {
	const sr = 48000.0

	a, err := NewAnalyzer(toneSource(2, 1000, 1, sr),
		WithWeighting(weighting.TypeZ),
		WithBlockSize(100),
	)
	if err != nil {
		t.Fatal(err)
	}

	st, err := a.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	results := collect(t, st)
	if len(results) != 20 {
		t.Fatalf("block count: got %d, want 20", len(results))
	}

	// Unit-amplitude sine: mean square 0.5, so Leq = 10*log10(0.5/(20e-6)^2).
	want := 10 * math.Log10(0.5/(20e-6*20e-6))
	for i, r := range results {
		if math.Abs(r.Time-float64(i)*0.1) > 1e-9 {
			t.Errorf("block %d time: got %g, want %g", i, r.Time, float64(i)*0.1)
		}
		if math.Abs(r.Leq-want) > 0.1 {
			t.Errorf("block %d Leq: got %.2f, want %.2f±0.1", i, r.Leq, want)
		}
		if r.Bands != nil {
			t.Errorf("block %d: bands present without band analysis", i)
		}
	}
}

func TestRun_FirstBlockSeeded(t *testing.T) {
	const sr = 48000.0

	a, err := NewAnalyzer(toneSource(2, 1000, 1, sr), WithBlockSize(125))
	if err != nil {
		t.Fatal(err)
	}

	st, err := a.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	results := collect(t, st)

	// With warm-started filters the first block's A-weighted Leq should
	// match the steady-state blocks instead of carrying a transient.
	steady := results[len(results)/2].Leq
	if math.Abs(results[0].Leq-steady) > 0.5 {
		t.Errorf("first block Leq %.2f deviates from steady %.2f", results[0].Leq, steady)
	}
}

func TestRun_BandAnalysis(t *testing.T) {
	const sr = 48000.0

	a, err := NewAnalyzer(toneSource(1, 1000, 1, sr),
		WithWeighting(weighting.TypeZ),
		WithBlockSize(250),
		WithBandAnalysis(bank.ResolutionOctave, 8),
	)
	if err != nil {
		t.Fatal(err)
	}

	st, err := a.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	results := collect(t, st)
	if len(results) == 0 {
		t.Fatal("no results")
	}

	last := results[len(results)-1]
	if len(last.Bands) == 0 || len(last.Bands) != len(last.BandFreqs) {
		t.Fatalf("bands/freqs: %d/%d", len(last.Bands), len(last.BandFreqs))
	}

	// The 1 kHz band should dominate.
	best := 0
	for i, f := range last.BandFreqs {
		if math.Abs(f-1000) < math.Abs(last.BandFreqs[best]-1000) {
			best = i
		}
	}
	for i, level := range last.Bands {
		if i != best && level >= last.Bands[best] {
			t.Errorf("band %.0f Hz level %.1f >= 1 kHz band level %.1f",
				last.BandFreqs[i], level, last.Bands[best])
		}
	}
}

func TestRun_Calibration(t *testing.T) {
	const sr = 48000.0

	run := func(factor float64) float64 {
		t.Helper()
		a, err := NewAnalyzer(toneSource(1, 1000, 0.5, sr),
			WithWeighting(weighting.TypeZ),
			WithCalibration(factor),
		)
		if err != nil {
			t.Fatal(err)
		}
		st, err := a.Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		defer st.Close()

		results := collect(t, st)
		return results[len(results)/2].Leq
	}

	gain := run(2) - run(1)
	if math.Abs(gain-20*math.Log10(2)) > 0.05 {
		t.Errorf("calibration factor 2 gain: got %.3f dB, want 6.02", gain)
	}
}

func TestRun_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	a, err := NewAnalyzer(toneSource(10, 1000, 1, 48000), WithWeighting(weighting.TypeZ))
	if err != nil {
		t.Fatal(err)
	}

	st, err := a.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	if _, ok := st.Next(); !ok {
		t.Fatal("first block missing")
	}

	cancel()

	if _, ok := st.Next(); ok {
		t.Error("stream produced a block after cancellation")
	}
	if st.Err() != nil {
		t.Errorf("cancellation is not an error: %v", st.Err())
	}
}

func TestRun_CloseStopsStream(t *testing.T) {
	a, err := NewAnalyzer(toneSource(10, 1000, 1, 48000), WithWeighting(weighting.TypeZ))
	if err != nil {
		t.Fatal(err)
	}

	st, err := a.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := st.Next(); !ok {
		t.Fatal("first block missing")
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := st.Next(); ok {
		t.Error("stream produced a block after Close")
	}
}

func TestNewAnalyzer_InvalidConfig(t *testing.T) {
	_, err := NewAnalyzer(toneSource(1, 1000, 1, 48000), WithBlockSize(-5))
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("negative block size: got %v, want ErrConfiguration", err)
	}

	// A block duration shorter than one sample period survives validation
	// but cannot produce analysis blocks.
	a, err := NewAnalyzer(toneSource(1, 1000, 1, 48000), WithBlockSize(0.001))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Run(context.Background()); !errors.Is(err, ErrData) {
		t.Errorf("zero-sample block: got %v, want ErrData", err)
	}
}

func TestTotalBlocks(t *testing.T) {
	a, err := NewAnalyzer(toneSource(1, 1000, 1, 48000),
		WithWeighting(weighting.TypeZ), WithBlockSize(100))
	if err != nil {
		t.Fatal(err)
	}

	if got := a.TotalBlocks(); got != 10 {
		t.Errorf("total blocks: got %d, want 10", got)
	}
}

func TestRun_EmptySource(t *testing.T) {
	a, err := NewAnalyzer(NewSliceSource(nil, 48000), WithWeighting(weighting.TypeZ))
	if err != nil {
		t.Fatal(err)
	}

	st, err := a.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	if _, ok := st.Next(); ok {
		t.Error("empty source produced a block")
	}
	if st.Err() != nil {
		t.Errorf("empty source is exhaustion, not an error: %v", st.Err())
	}
}

func TestRun_DetectorSeededFromUnweightedInput(t *testing.T) {
	const sr = 48000.0

	// A-weighting drops 100 Hz by about 19 dB. The detector is primed
	// with the raw calibrated block, so its first reading sits near the
	// unweighted level and then decays toward the weighted one.
	a, err := NewAnalyzer(toneSource(1.25, 100, 1, sr),
		WithWeighting(weighting.TypeA),
	)
	if err != nil {
		t.Fatal(err)
	}

	st, err := a.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	results := collect(t, st)
	if len(results) < 5 {
		t.Fatalf("block count: got %d, want at least 5", len(results))
	}

	first := results[0].Lp
	settled := results[len(results)-1].Lp
	if first-settled < 5 {
		t.Errorf("first block Lp %.1f dB not above settled Lp %.1f dB; detector seeded from weighted signal?",
			first, settled)
	}
}

func TestRun_PartialFinalBlockZeroPadded(t *testing.T) {
	const sr = 48000.0

	// 1.5 blocks of signal: the tail block holds half a block of sine
	// and half a block of padding, so its Leq sits 3 dB below a full one.
	a, err := NewAnalyzer(toneSource(0.15, 1000, 1, sr),
		WithWeighting(weighting.TypeZ),
		WithBlockSize(100),
	)
	if err != nil {
		t.Fatal(err)
	}

	st, err := a.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	results := collect(t, st)
	if len(results) != 2 {
		t.Fatalf("block count: got %d, want 2", len(results))
	}

	drop := results[0].Leq - results[1].Leq
	if math.Abs(drop-10*math.Log10(2)) > 0.1 {
		t.Errorf("tail block drop: got %.2f dB, want %.2f dB", drop, 10*math.Log10(2))
	}
}
