package leq

import (
	"math"
	"testing"
)

func constantBlocks(seconds, blockDur, level float64) []Block {
	n := int(seconds / blockDur)
	blocks := make([]Block, n)
	for i := range blocks {
		blocks[i] = Block{Time: float64(i) * blockDur, Leq: level}
	}

	return blocks
}

func TestCalculate_ConstantLevel(t *testing.T) {
	blocks := constantBlocks(10, 0.1, 85)

	stats, err := Calculate(blocks, WithBlockDuration(0.1))
	if err != nil {
		t.Fatal(err)
	}

	for name, got := range map[string]float64{
		"overall": stats.Overall,
		"max":     stats.Max,
		"min":     stats.Min,
	} {
		if math.Abs(got-85) > 0.1 {
			t.Errorf("%s: got %.3f, want 85.0±0.1", name, got)
		}
	}

	for n := 10; n <= 90; n += 10 {
		if math.Abs(stats.Ln[n]-85) > 0.1 {
			t.Errorf("L%d: got %.3f, want 85.0±0.1", n, stats.Ln[n])
		}
	}
}

func TestCalculate_EnergyAverage(t *testing.T) {
	blocks := append(constantBlocks(5, 0.1, 80), constantBlocks(5, 0.1, 100)...)
	for i := range blocks {
		blocks[i].Time = float64(i) * 0.1
	}

	stats, err := Calculate(blocks, WithBlockDuration(0.1))
	if err != nil {
		t.Fatal(err)
	}

	want := 10 * math.Log10(0.5*math.Pow(10, 8)+0.5*math.Pow(10, 10))
	if math.Abs(stats.Overall-want) > 0.1 {
		t.Errorf("overall: got %.3f, want %.3f±0.1", stats.Overall, want)
	}
	if stats.Max != 100 || stats.Min != 80 {
		t.Errorf("extremes: got %.1f/%.1f, want 100/80", stats.Max, stats.Min)
	}
}

func TestCalculate_DoseNIOSH(t *testing.T) {
	// One hour at exactly the criterion level.
	blocks := constantBlocks(3600, 0.1, 85)

	stats, err := Calculate(blocks, WithBlockDuration(0.1), WithDoseStandard(NIOSH))
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(stats.Dose.Percent-12.5) > 0.1 {
		t.Errorf("dose: got %.3f%%, want 12.5±0.1", stats.Dose.Percent)
	}
	if math.Abs(stats.Dose.TWA-75.97) > 0.1 {
		t.Errorf("TWA: got %.3f, want 75.97±0.1", stats.Dose.TWA)
	}
}

func TestCalculate_DoseOSHA(t *testing.T) {
	blocks := constantBlocks(3600, 0.1, 90)

	stats, err := Calculate(blocks, WithBlockDuration(0.1), WithDoseStandard(OSHA))
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(stats.Dose.Percent-12.5) > 0.1 {
		t.Errorf("dose: got %.3f%%, want 12.5±0.1", stats.Dose.Percent)
	}
}

func TestCalculate_DoseBelowThreshold(t *testing.T) {
	blocks := constantBlocks(3600, 0.1, 75)

	stats, err := Calculate(blocks, WithBlockDuration(0.1), WithDoseStandard(NIOSH))
	if err != nil {
		t.Fatal(err)
	}

	if stats.Dose.Percent != 0 {
		t.Errorf("dose below threshold: got %g%%, want exactly 0", stats.Dose.Percent)
	}
	if stats.Dose.TWA != 0 {
		t.Errorf("TWA without dose: got %g, want 0", stats.Dose.TWA)
	}
}

func TestCalculate_History(t *testing.T) {
	blocks := constantBlocks(10, 0.1, 90)

	stats, err := Calculate(blocks, WithBlockDuration(0.1), WithIntegrationTime(1))
	if err != nil {
		t.Fatal(err)
	}

	if len(stats.History.Time) != 10 {
		t.Fatalf("history bins: got %d, want 10", len(stats.History.Time))
	}
	for i := range stats.History.Time {
		if stats.History.Time[i] != float64(i) {
			t.Errorf("bin %d timestamp: got %g, want %d", i, stats.History.Time[i], i)
		}
		if math.Abs(stats.History.Leq[i]-90) > 0.1 {
			t.Errorf("bin %d level: got %.3f, want 90.0±0.1", i, stats.History.Leq[i])
		}
	}
}

func TestCalculate_HistoryDropsLeftovers(t *testing.T) {
	// 25 blocks of 100 ms at 1 s integration: two full bins, five dropped.
	blocks := constantBlocks(2.5, 0.1, 90)

	stats, err := Calculate(blocks, WithBlockDuration(0.1), WithIntegrationTime(1))
	if err != nil {
		t.Fatal(err)
	}

	if len(stats.History.Time) != 2 {
		t.Errorf("history bins: got %d, want 2", len(stats.History.Time))
	}
}

func TestCalculate_Empty(t *testing.T) {
	stats, err := Calculate(nil)
	if err != nil {
		t.Fatal(err)
	}

	if stats.Overall != -100 || stats.Max != -100 || stats.Min != -100 {
		t.Errorf("sentinels: got %g/%g/%g, want -100", stats.Overall, stats.Max, stats.Min)
	}
	for n := 10; n <= 90; n += 10 {
		if stats.Ln[n] != -100 {
			t.Errorf("L%d sentinel: got %g, want -100", n, stats.Ln[n])
		}
	}
	if stats.Dose.Percent != 0 {
		t.Errorf("empty dose: got %g", stats.Dose.Percent)
	}
	if len(stats.History.Time) != 0 {
		t.Errorf("empty history: got %d bins", len(stats.History.Time))
	}
}

func TestCalculate_TimeRange(t *testing.T) {
	blocks := append(constantBlocks(5, 0.1, 80), constantBlocks(5, 0.1, 100)...)
	for i := range blocks {
		blocks[i].Time = float64(i) * 0.1
	}

	// Restrict to the loud half.
	stats, err := Calculate(blocks, WithBlockDuration(0.1), WithTimeRange(5, 10))
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(stats.Overall-100) > 0.1 {
		t.Errorf("windowed overall: got %.3f, want 100±0.1", stats.Overall)
	}
	if stats.Min != 100 {
		t.Errorf("windowed min: got %.1f, want 100", stats.Min)
	}

	// A window past the end selects nothing.
	empty, err := Calculate(blocks, WithTimeRange(100, 200))
	if err != nil {
		t.Fatal(err)
	}
	if empty.Overall != -100 {
		t.Errorf("out-of-range window: got %.1f, want -100", empty.Overall)
	}
}

func TestCalculate_Percentiles(t *testing.T) {
	// 100 blocks ramping 0..99 dB: L10 (exceeded 10% of the time) sits
	// near 90, L90 near 10.
	blocks := make([]Block, 100)
	for i := range blocks {
		blocks[i] = Block{Time: float64(i) * 0.1, Leq: float64(i)}
	}

	stats, err := Calculate(blocks, WithBlockDuration(0.1))
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(stats.Ln[10]-90) > 1.5 {
		t.Errorf("L10: got %.2f, want ~90", stats.Ln[10])
	}
	if math.Abs(stats.Ln[90]-10) > 1.5 {
		t.Errorf("L90: got %.2f, want ~10", stats.Ln[90])
	}
	if stats.Ln[10] <= stats.Ln[50] || stats.Ln[50] <= stats.Ln[90] {
		t.Errorf("percentile ordering violated: L10=%.1f L50=%.1f L90=%.1f",
			stats.Ln[10], stats.Ln[50], stats.Ln[90])
	}
}

func TestCalculate_InvalidStandard(t *testing.T) {
	blocks := constantBlocks(1, 0.1, 85)

	if _, err := Calculate(blocks, WithDoseStandard(DoseStandard{})); err == nil {
		t.Error("zero-valued dose standard: want error")
	}
}
