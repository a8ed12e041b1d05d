package worker

import "errors"

// ErrUnknownEvent is returned for events with an unrecognised kind.
var ErrUnknownEvent = errors.New("unknown event kind")
