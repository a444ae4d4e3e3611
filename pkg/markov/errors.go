package markov

import "errors"

var (
	// ErrUntrainedModel is returned when generation is requested from a model
	// that has no recorded transitions.
	ErrUntrainedModel = errors.New("markov: model has not been trained")
	// ErrInvalidSchedule is returned for chunking parameters that cannot
	// produce a strictly growing schedule.
	ErrInvalidSchedule = errors.New("markov: invalid chunk schedule")
)
