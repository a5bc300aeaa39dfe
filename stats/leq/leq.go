// Package leq reduces per-block equivalent levels into regulatory
// noise-exposure statistics: overall Leq, percentile levels, dose and
// time-weighted average per configurable standard, and a re-binned time
// history.
package leq

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// emptyLevel is the sentinel reported for degenerate (empty) input.
const emptyLevel = -100.0

// Block is one {time, level} record from an analysis run.
type Block struct {
	// Time is the block start in seconds.
	Time float64
	// Leq is the block's equivalent level in dB.
	Leq float64
}

// DoseStandard holds the exchange rate, criterion, threshold and shift
// duration governing noise-dose accumulation.
type DoseStandard struct {
	// ExchangeRate is the dB increase that halves the allowed duration.
	ExchangeRate float64 `validate:"gt=0"`
	// CriterionLevel is the 100% dose level in dB.
	CriterionLevel float64 `validate:"gte=0"`
	// ThresholdLevel is the level below which blocks do not accumulate.
	ThresholdLevel float64 `validate:"gte=0"`
	// ShiftHours is the reference shift duration.
	ShiftHours float64 `validate:"gt=0"`
}

// Standard dose parameter sets.
var (
	NIOSH = DoseStandard{ExchangeRate: 3, CriterionLevel: 85, ThresholdLevel: 80, ShiftHours: 8}
	OSHA  = DoseStandard{ExchangeRate: 5, CriterionLevel: 90, ThresholdLevel: 80, ShiftHours: 8}
)

// Dose is the accumulated exposure result.
type Dose struct {
	// Percent is the dose as a percentage of the allowed daily exposure.
	Percent float64
	// TWA is the shift-equivalent time-weighted average level in dB,
	// zero when no dose accumulated.
	TWA float64
}

// History is the re-binned level-vs-time sequence.
type History struct {
	Time []float64
	Leq  []float64
}

// Stats is the full reduction of one analysis run.
type Stats struct {
	// Overall is the energy-averaged Leq across all blocks in dB.
	Overall float64
	Max     float64
	Min     float64
	// Ln maps percentile index n (10..90 step 10) to the level exceeded
	// n percent of the time.
	Ln      map[int]float64
	Dose    Dose
	History History
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type config struct {
	blockDuration   float64
	integrationTime float64
	refPressure     float64
	standard        DoseStandard
	rangeSet        bool
	rangeStart      float64
	rangeEnd        float64
}

// Option mutates the reduction configuration.
type Option func(*config)

func defaultConfig() config {
	return config{
		blockDuration:   0.125,
		integrationTime: 1.0,
		refPressure:     20e-6,
		standard:        NIOSH,
	}
}

// WithBlockDuration sets the duration of one input block in seconds.
func WithBlockDuration(seconds float64) Option {
	return func(c *config) {
		if seconds > 0 {
			c.blockDuration = seconds
		}
	}
}

// WithIntegrationTime sets the history bin duration in seconds.
func WithIntegrationTime(seconds float64) Option {
	return func(c *config) {
		if seconds > 0 {
			c.integrationTime = seconds
		}
	}
}

// WithRefPressure sets the 0 dB reference pressure in pascals.
func WithRefPressure(ref float64) Option {
	return func(c *config) {
		if ref > 0 {
			c.refPressure = ref
		}
	}
}

// WithDoseStandard selects the dose parameter set.
func WithDoseStandard(std DoseStandard) Option {
	return func(c *config) {
		c.standard = std
	}
}

// WithTimeRange restricts the reduction to blocks whose time lies in
// [start, end].
func WithTimeRange(start, end float64) Option {
	return func(c *config) {
		c.rangeSet = true
		c.rangeStart = start
		c.rangeEnd = end
	}
}

// Calculate reduces an ordered block sequence into Stats. Empty input
// (after optional time-range filtering) yields -100 dB sentinels, zero
// dose and an empty history.
func Calculate(blocks []Block, opts ...Option) (Stats, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if err := validate.Struct(cfg.standard); err != nil {
		return Stats{}, fmt.Errorf("dose standard: %w", err)
	}

	if cfg.rangeSet {
		blocks = filterRange(blocks, cfg.rangeStart, cfg.rangeEnd)
	}

	if len(blocks) == 0 {
		return emptyStats(), nil
	}

	refSq := cfg.refPressure * cfg.refPressure

	levels := make([]float64, len(blocks))
	meanSq := make([]float64, len(blocks))
	for i, b := range blocks {
		levels[i] = b.Leq
		meanSq[i] = refSq * math.Pow(10, b.Leq/10)
	}

	out := Stats{
		Overall: 10 * math.Log10(floats.Sum(meanSq)/float64(len(meanSq))/refSq),
		Max:     floats.Max(levels),
		Min:     floats.Min(levels),
		Ln:      percentiles(levels),
		Dose:    dose(levels, cfg.blockDuration, cfg.standard),
		History: history(meanSq, refSq, cfg.blockDuration, cfg.integrationTime),
	}

	return out, nil
}

func emptyStats() Stats {
	ln := make(map[int]float64, 9)
	for n := 10; n <= 90; n += 10 {
		ln[n] = emptyLevel
	}

	return Stats{
		Overall: emptyLevel,
		Max:     emptyLevel,
		Min:     emptyLevel,
		Ln:      ln,
	}
}

func filterRange(blocks []Block, start, end float64) []Block {
	out := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if b.Time >= start && b.Time <= end {
			out = append(out, b)
		}
	}

	return out
}

// percentiles computes Ln = the (100-n)-th percentile of the level
// distribution, so L10 is the level exceeded 10% of the time.
func percentiles(levels []float64) map[int]float64 {
	sorted := append([]float64(nil), levels...)
	sort.Float64s(sorted)

	out := make(map[int]float64, 9)
	for n := 10; n <= 90; n += 10 {
		p := float64(100-n) / 100
		out[n] = stat.Quantile(p, stat.LinInterp, sorted, nil)
	}

	return out
}

func dose(levels []float64, blockDur float64, std DoseStandard) Dose {
	q := std.ExchangeRate / math.Log10(2)

	acc := 0.0
	for _, level := range levels {
		if level > std.ThresholdLevel {
			acc += blockDur * math.Pow(10, (level-std.CriterionLevel)/q)
		}
	}

	percent := 100 * acc / (std.ShiftHours * 3600)

	twa := 0.0
	if percent > 0 {
		twa = std.CriterionLevel + q*math.Log10(percent/100)
	}

	return Dose{Percent: percent, TWA: twa}
}

// history energy-averages groups of floor(integration/blockDur) blocks
// (minimum one) and timestamps group i at i*integration. Leftover blocks
// past the last full group are dropped.
func history(meanSq []float64, refSq, blockDur, integration float64) History {
	group := max(int(integration/blockDur), 1)
	bins := len(meanSq) / group

	h := History{
		Time: make([]float64, 0, bins),
		Leq:  make([]float64, 0, bins),
	}

	for i := range bins {
		sum := floats.Sum(meanSq[i*group : (i+1)*group])
		h.Time = append(h.Time, float64(i)*integration)
		h.Leq = append(h.Leq, 10*math.Log10(sum/float64(group)/refSq))
	}

	return h
}
