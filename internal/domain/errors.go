package domain

import "errors"

var (
	ErrExperimentNotFound     = errors.New("experiment not found")
	ErrExperimentExists       = errors.New("experiment already exists")
	ErrInvalidExperiment      = errors.New("invalid experiment")
	ErrInvalidVariantWeights  = errors.New("invalid variant weights")
	ErrExperimentNotRunnable  = errors.New("experiment not runnable")
	ErrExperimentNotStoppable = errors.New("experiment not stoppable")
	ErrStopReasonRequired     = errors.New("stop reason is required")
	ErrInvalidEvent           = errors.New("invalid event")
	ErrInvalidEntity          = errors.New("invalid entity id")
)
