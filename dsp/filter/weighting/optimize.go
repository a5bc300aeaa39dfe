package weighting

import (
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/optimize"

	"github.com/cwbudde/algo-slm/dsp/filter/biquad"
	"github.com/cwbudde/algo-slm/dsp/filter/design"
)

const refFreq = 1000.0

// isoPreferredFreqs are the ISO one-third-octave preferred frequencies
// used as optimization targets.
var isoPreferredFreqs = []float64{
	10, 12.5, 16, 20, 25, 31.5, 40, 50, 63, 80,
	100, 125, 160, 200, 250, 315, 400, 500, 630, 800,
	1000, 1250, 1600, 2000, 2500, 3150, 4000, 5000, 6300,
	8000, 10000, 12500, 16000, 20000,
}

// Fixed optimizer inputs. Initial guess, tolerance, and iteration cap
// are constants so the fit is reproducible across platforms.
var nmInitialGuess = []float64{12194.0, 15000.0, 0.0, 1.0}

const (
	nmMaxIterations = 500
	nmTolerance     = 1e-5

	// Residual error above 1 kHz is weighted heavily: the low-frequency
	// sections are exact, so the optimizer should spend its effort on the top octaves.
	highFreqWeight = 50.0
)

// idealResponseDB returns the analytic IEC 61672 weighting gain in dB,
// normalized to 0 dB at 1 kHz.
func idealResponseDB(freq float64, t Type) float64 {
	return 20 * math.Log10(analyticGain(freq, t)/analyticGain(refFreq, t))
}

func analyticGain(freq float64, t Type) float64 {
	fsq := freq * freq

	if t == TypeA {
		num := f5 * f5 * fsq * fsq
		den := (fsq + f1*f1) * math.Sqrt((fsq+f2*f2)*(fsq+f4*f4)) * (fsq + f5*f5)

		return num / den
	}

	num := f5 * f5 * fsq
	den := (fsq + f1*f1) * (fsq + f5*f5)

	return num / den
}

// targetGrid builds the optimization frequencies: ISO preferred values
// up to min(20 kHz, 0.94*Nyquist), densified above 4 kHz at low sample
// rates where few ISO points survive the limit.
func targetGrid(sampleRate float64) []float64 {
	limit := math.Min(20000, 0.94*sampleRate/2)

	freqs := make([]float64, 0, len(isoPreferredFreqs)+25)
	for _, f := range isoPreferredFreqs {
		if f <= limit {
			freqs = append(freqs, f)
		}
	}

	if sampleRate < 50000 {
		const dense = 25
		for i := range dense {
			freqs = append(freqs, 4000+(limit-4000)*float64(i)/float64(dense-1))
		}

		sort.Float64s(freqs)
	}

	return freqs
}

// optimizeCascade fits the free high-frequency parameters (effective f5
// pole, correction center/gain/Q) with Nelder-Mead and assembles the
// final normalized cascade.
func optimizeCascade(t Type, sampleRate float64) []biquad.Coefficients {
	fixed := fixedSections(t, sampleRate)
	freqs := targetGrid(sampleRate)

	targetDB := make([]float64, len(freqs))
	fixedResp := make([]complex128, len(freqs))
	weights := make([]float64, len(freqs))
	ref1k := 0

	for i, f := range freqs {
		targetDB[i] = idealResponseDB(f, t)
		fixedResp[i] = cascadeResponse(fixed, f, sampleRate)

		weights[i] = 1
		if f > refFreq {
			weights[i] = highFreqWeight
		}

		if math.Abs(f-refFreq) < math.Abs(freqs[ref1k]-refFreq) {
			ref1k = i
		}
	}

	cost := func(x []float64) float64 {
		variable := []biquad.Coefficients{
			mztSection(x[0], sampleRate),
			design.Peak(x[1], x[2], x[3], sampleRate),
		}

		mag := make([]float64, len(freqs))
		for i, f := range freqs {
			h := fixedResp[i] * cascadeResponse(variable, f, sampleRate)
			mag[i] = cmplx.Abs(h)
		}

		gain1k := mag[ref1k] + 1e-15

		worst := 0.0
		for i := range freqs {
			db := 20 * math.Log10(mag[i]/gain1k+1e-15)
			if e := math.Abs(db-targetDB[i]) * weights[i]; e > worst {
				worst = e
			}
		}

		return worst
	}

	best := runNelderMead(cost)

	coeffs := append(fixed,
		mztSection(best[0], sampleRate),
		design.Peak(best[1], best[2], best[3], sampleRate),
	)
	normalizeAtReference(coeffs, sampleRate)

	return coeffs
}

func runNelderMead(cost func([]float64) float64) []float64 {
	problem := optimize.Problem{Func: cost}
	settings := &optimize.Settings{
		MajorIterations: nmMaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   nmTolerance,
			Iterations: 50,
		},
	}

	vertices := nmInitialSimplex(nmInitialGuess)
	values := make([]float64, len(vertices))
	for i, v := range vertices {
		values[i] = cost(v)
	}

	method := &optimize.NelderMead{
		InitialVertices: vertices,
		InitialValues:   values,
	}

	result, err := optimize.Minimize(problem, nmInitialGuess, settings, method)
	if err != nil || result == nil || len(result.X) != len(nmInitialGuess) {
		// Fall back to the initial guess; the fixed sections alone stay
		// within the coarse tolerance classes.
		return nmInitialGuess
	}

	return result.X
}

// nmInitialSimplex builds the starting simplex by perturbing each
// coordinate of x0 by 5%, with a small absolute step for coordinates
// that are zero. The parameters span wildly different scales (pole
// frequencies in the kilohertz against a gain near zero dB), and a
// relative perturbation keeps every vertex meaningful where a
// uniform-sized simplex would stall on the frequency axes.
func nmInitialSimplex(x0 []float64) [][]float64 {
	const (
		relStep = 0.05
		absStep = 0.00025
	)

	verts := make([][]float64, len(x0)+1)
	verts[0] = append([]float64(nil), x0...)

	for i := range x0 {
		v := append([]float64(nil), x0...)
		if v[i] != 0 {
			v[i] *= 1 + relStep
		} else {
			v[i] = absStep
		}

		verts[i+1] = v
	}

	return verts
}
