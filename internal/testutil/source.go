package testutil

import (
	"context"
	"fmt"
	"sync"

	"trail-go/internal/trail"
)

// ManualSource is a SampleSource driven by the test. Emit delivers samples
// synchronously while the source is started.
type ManualSource struct {
	// Deny makes Start fail with ErrPermissionDenied.
	Deny bool
	// StartErr, if set, is returned by Start.
	StartErr error

	mu        sync.Mutex
	sink      trail.SampleSink
	opts      trail.SourceOptions
	active    bool
	starts    int
	stopCount int
}

var _ trail.SampleSource = (*ManualSource)(nil)

func NewManualSource() *ManualSource {
	return &ManualSource{}
}

func (s *ManualSource) Start(ctx context.Context, opts trail.SourceOptions, sink trail.SampleSink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.starts++
	if s.Deny {
		return fmt.Errorf("manual source: %w", trail.ErrPermissionDenied)
	}
	if s.StartErr != nil {
		return s.StartErr
	}
	s.sink = sink
	s.opts = opts
	s.active = true
	return nil
}

func (s *ManualSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCount++
	s.active = false
}

// Emit delivers a location sample. It is dropped when the source is not
// active, matching a platform that unsubscribed.
func (s *ManualSource) Emit(sample trail.LocationSample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.sink.OnLocation(sample)
	return true
}

// EmitAt is Emit for a bare coordinate.
func (s *ManualSource) EmitAt(lat, lng float64) bool {
	return s.Emit(trail.LocationSample{Latitude: lat, Longitude: lng})
}

// EmitHeading delivers a heading sample while active.
func (s *ManualSource) EmitHeading(sample trail.HeadingSample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.sink.OnHeading(sample)
	return true
}

// Sink returns the sink passed to the last successful Start. Tests use it
// to simulate a platform callback that races with Stop.
func (s *ManualSource) Sink() trail.SampleSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink
}

func (s *ManualSource) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *ManualSource) Options() trail.SourceOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

func (s *ManualSource) StartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

func (s *ManualSource) StopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCount
}
