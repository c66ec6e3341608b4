package geosource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"trail-go/internal/trail"
)

// ReplaySource feeds a recorded GPX track to a sink as if it were live.
//
// Points closer than MinDistanceMeters to the last delivered point are
// skipped, and consecutive deliveries are spaced MinInterval apart. Each
// location is followed by a heading: the recorded course when the file has
// one, otherwise the bearing from the previous delivered point.
type ReplaySource struct {
	path  string
	clock trail.Clock

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	done    chan struct{}
}

var _ trail.SampleSource = (*ReplaySource)(nil)

func NewReplaySource(path string, clock trail.Clock) *ReplaySource {
	return &ReplaySource{
		path:  path,
		clock: clock,
		done:  make(chan struct{}),
	}
}

// Start loads the track and begins delivery. A file the process may not read
// is reported as trail.ErrPermissionDenied.
func (s *ReplaySource) Start(ctx context.Context, opts trail.SourceOptions, sink trail.SampleSink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("replay source %s already started", s.path)
	}

	points, err := s.load()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.started = true
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(runCtx, points, opts, sink)
	return nil
}

func (s *ReplaySource) load() ([]TrackPoint, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("opening %s: %w", s.path, trail.ErrPermissionDenied)
		}
		return nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer f.Close()

	points, err := ParseGPX(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return points, nil
}

func (s *ReplaySource) run(ctx context.Context, points []TrackPoint, opts trail.SourceOptions, sink trail.SampleSink) {
	defer s.wg.Done()
	defer close(s.done)

	var pace <-chan time.Time
	if opts.MinInterval > 0 {
		ticker := s.clock.NewTicker(opts.MinInterval)
		defer ticker.Stop()
		pace = ticker.C()
	}

	var last *trail.LatLng
	for _, p := range points {
		pos := trail.LatLng{Latitude: p.Latitude, Longitude: p.Longitude}
		if last != nil && trail.HaversineKm(*last, pos)*1000 < opts.MinDistanceMeters {
			continue
		}
		if last != nil && pace != nil {
			select {
			case <-ctx.Done():
				return
			case <-pace:
			}
		}
		if ctx.Err() != nil {
			return
		}

		at := p.Time
		if at.IsZero() {
			at = s.clock.Now()
		}
		sink.OnLocation(trail.LocationSample{Latitude: pos.Latitude, Longitude: pos.Longitude, CapturedAt: at})

		switch {
		case p.Course != nil:
			sink.OnHeading(trail.HeadingSample{TrueHeadingDegrees: *p.Course, CapturedAt: at})
		case last != nil:
			sink.OnHeading(trail.HeadingSample{TrueHeadingDegrees: trail.InitialBearing(*last, pos), CapturedAt: at})
		}
		last = &pos
	}
}

// Stop halts delivery and waits for the delivery goroutine to exit.
func (s *ReplaySource) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

// Done is closed when the track has been fully delivered or the source was
// stopped. It never closes for a source that was not started.
func (s *ReplaySource) Done() <-chan struct{} {
	return s.done
}
