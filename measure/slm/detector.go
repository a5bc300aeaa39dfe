package slm

import "math"

// ResponseSpeed selects the standardized time constants of the level
// detector.
type ResponseSpeed int

const (
	SpeedSlow ResponseSpeed = iota
	SpeedFast
	SpeedImpulse
)

func (s ResponseSpeed) String() string {
	switch s {
	case SpeedSlow:
		return "slow"
	case SpeedFast:
		return "fast"
	case SpeedImpulse:
		return "impulse"
	default:
		return "unknown"
	}
}

// timeConstants returns the rise and fall time constants in seconds.
// Unknown speeds fall back to Slow.
func (s ResponseSpeed) timeConstants() (rise, fall float64) {
	switch s {
	case SpeedFast:
		return 0.125, 0.125
	case SpeedImpulse:
		return 0.035, 1.5
	default:
		return 1.0, 1.0
	}
}

// Detector is an exponential attack/release envelope follower producing
// time-weighted sound levels from pressure samples.
//
// State persists across Process calls; create a fresh Detector per
// analysis run.
type Detector struct {
	level     float64
	riseAlpha float64
	fallAlpha float64
	refSq     float64
}

// NewDetector creates a detector for the given response speed, sample
// rate and reference pressure.
func NewDetector(speed ResponseSpeed, sampleRate, refPressure float64) *Detector {
	rise, fall := speed.timeConstants()

	return &Detector{
		riseAlpha: 1 - math.Exp(-1/(sampleRate*rise)),
		fallAlpha: 1 - math.Exp(-1/(sampleRate*fall)),
		refSq:     refPressure * refPressure,
	}
}

// Process advances the envelope sample-by-sample over block and returns
// the peak time-weighted level observed during the block in dB.
func (d *Detector) Process(block []float64) float64 {
	maxLevel := 0.0

	for _, x := range block {
		p := x * x

		alpha := d.fallAlpha
		if p > d.level {
			alpha = d.riseAlpha
		}

		d.level += alpha * (p - d.level)
		if d.level > maxLevel {
			maxLevel = d.level
		}
	}

	return 10 * math.Log10(maxLevel/d.refSq+1e-30)
}
