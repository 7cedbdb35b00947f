package calibration

import "errors"

var (
	// ErrAlreadyInProgress is returned by Start while a recording phase
	// is active.
	ErrAlreadyInProgress = errors.New("calibration already in progress")

	// ErrNotRecording is returned by Collect outside a recording phase.
	ErrNotRecording = errors.New("calibration is not recording")

	// ErrInvalidFeatures rejects samples whose features fall outside
	// physically plausible ranges.
	ErrInvalidFeatures = errors.New("invalid features")

	// ErrInsufficientSamples is returned by Finish before every phase
	// has collected its quota.
	ErrInsufficientSamples = errors.New("insufficient calibration samples")

	// ErrNotComplete is returned by Finish when calibration never ran.
	ErrNotComplete = errors.New("calibration not complete")

	// ErrStatePoisoned reports a phase value outside the transition
	// table. It should never happen; it exists so corruption surfaces
	// as an error instead of silent misbehavior.
	ErrStatePoisoned = errors.New("calibration state poisoned")
)
