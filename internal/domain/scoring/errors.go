package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrUnknownRisk = errors.New("unknown risk level")
)
