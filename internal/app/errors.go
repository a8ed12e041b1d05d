package service

import (
	"errors"
	"fmt"

	"github.com/okian/riskwatch/internal/adapters/source"
)

var (
	// ErrStart wraps failures while building the pipeline.
	ErrStart = errors.New("service start failed")
	// ErrUnknownSource is returned for an unrecognised source kind.
	ErrUnknownSource = errors.New("unknown source")
	// ErrPushDisabled is returned by Push when the push source is not in use.
	ErrPushDisabled = fmt.Errorf("push ingest disabled: %w", source.ErrNotSubscribed)
)
