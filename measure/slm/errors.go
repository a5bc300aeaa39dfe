package slm

import "errors"

var (
	// ErrConfiguration signals an infeasible analysis configuration, such
	// as a block size that rounds to zero samples.
	ErrConfiguration = errors.New("slm: invalid configuration")

	// ErrData signals input too short for the requested operation.
	ErrData = errors.New("slm: insufficient data")
)
