package trail

import (
	"context"
	"time"
)

// SourceOptions are the delivery thresholds requested from a SampleSource.
type SourceOptions struct {
	MinInterval       time.Duration
	MinDistanceMeters float64
}

// SampleSink receives samples from a SampleSource.
// A source never calls the sink concurrently with itself.
type SampleSink interface {
	OnLocation(LocationSample)
	OnHeading(HeadingSample)
}

// SampleSource wraps a platform location/heading provider.
type SampleSource interface {
	// Start begins delivering samples to sink in arrival order.
	// Returns an error wrapping ErrPermissionDenied if access is refused.
	Start(ctx context.Context, opts SourceOptions, sink SampleSink) error

	// Stop is idempotent and safe to call when not started.
	// No sample is delivered after it returns.
	Stop()
}
