package biquad

// StepState computes the chain-wide steady-state delay-line vector for a
// unit step input. The constant level seen by each section is the product
// of the DC gains of the sections before it, so the states are chained
// the same way scipy's sosfilt_zi chains per-section initial conditions.
func (c *Chain) StepState() [][2]float64 {
	states := make([][2]float64, len(c.sections))

	x := c.gain
	for i := range c.sections {
		states[i] = c.sections[i].StepState(x)
		x *= c.sections[i].DCGain()
	}

	return states
}

// ResetToStep discards all history and installs the unit-step steady
// state from StepState as the active state.
func (c *Chain) ResetToStep() {
	c.SetState(c.StepState())
}

// WarmStart seeds the cascade state from the first chunk of a streamed
// analysis to reduce start-of-run transient bias.
//
// The cascade is run forward over seed from zero state to obtain the end
// state, then run forward again over the time-reversed seed starting
// from that end state. The state left behind approximates the state the
// filter would have had if the signal had been playing before the first
// sample, and becomes the active state. The seed slice is not modified.
func (c *Chain) WarmStart(seed []float64) {
	if len(seed) == 0 || len(c.sections) == 0 {
		return
	}

	buf := make([]float64, len(seed))

	c.Reset()
	c.ProcessBlockTo(buf, seed)

	// Backward pass: reversed seed, continuing from the forward end state.
	for i, j := 0, len(seed)-1; j >= 0; i, j = i+1, j-1 {
		buf[i] = seed[j]
	}

	c.ProcessBlock(buf)
}
