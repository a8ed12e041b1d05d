// Package repository holds the published presentation state.
package repository

import (
	"context"

	"github.com/okian/riskwatch/internal/domain/model"
)

// Store provides read/write access to the published view.
type Store interface {
	// Publish replaces the view content with v and marks the view connected.
	Publish(ctx context.Context, v model.View)

	// Touch counts an applied batch that produced no points. The previous
	// content is kept and the view is marked connected.
	Touch(ctx context.Context)

	// SetConnected updates the connectivity flag only.
	SetConnected(ctx context.Context, connected bool)

	// Fail marks the view disconnected and records err.
	Fail(ctx context.Context, err error)

	// Current returns a copy of the published view.
	Current(ctx context.Context) model.View
}
