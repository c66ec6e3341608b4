package trail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// tickInterval drives ElapsedSeconds. Missed ticks are not caught up.
const tickInterval = time.Second

// RecorderState is the lifecycle state of a Recorder.
type RecorderState int

const (
	StateIdle RecorderState = iota
	StateRecording
	StateStopped
)

func (s RecorderState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Recorder owns one recording lifecycle: Idle -> Recording -> Stopped.
// A Recorder is single-use; create a new one for the next recording.
//
// All mutations (samples, ticks, interest points, stop) are serialized by mu
// and re-check the state when applied, so a sample that arrives after Stop
// never touches the frozen snapshot.
type Recorder struct {
	source SampleSource
	clock  Clock
	logger Logger
	opts   SourceOptions

	mu    sync.Mutex
	state RecorderState
	snap  Snapshot
	acc   DistanceAccumulator
	res   *activeResources
}

// NewRecorder creates an idle recorder reading from source.
func NewRecorder(source SampleSource, clock Clock, logger Logger, opts SourceOptions) *Recorder {
	return &Recorder{
		source: source,
		clock:  clock,
		logger: logger,
		opts:   opts,
	}
}

// activeResources is everything Start acquires. release is safe to call
// from any exit path and any number of times.
type activeResources struct {
	source SampleSource
	ticker Ticker
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func newActiveResources(source SampleSource) *activeResources {
	return &activeResources{source: source, done: make(chan struct{})}
}

func (a *activeResources) release() {
	a.once.Do(func() {
		a.source.Stop()
		close(a.done)
		if a.ticker != nil {
			a.ticker.Stop()
		}
		a.wg.Wait()
	})
}

// recorderSink adapts the recorder to SampleSink without exporting the
// callbacks on Recorder itself.
type recorderSink struct {
	r *Recorder
}

func (s recorderSink) OnLocation(sample LocationSample) { s.r.onLocation(sample) }
func (s recorderSink) OnHeading(sample HeadingSample)   { s.r.onHeading(sample) }

// Start subscribes to the sample source and starts the elapsed-time ticker.
// On permission denial the recorder stays Idle and the error wraps
// ErrPermissionDenied. Calling Start in any state but Idle returns
// ErrInvalidState and changes nothing.
func (r *Recorder) Start(ctx context.Context) (err error) {
	r.mu.Lock()
	if r.state != StateIdle {
		state := r.state
		r.mu.Unlock()
		r.logger.Warn("start ignored", "state", state.String())
		return fmt.Errorf("start while %s: %w", state, ErrInvalidState)
	}
	r.acc.Reset()
	r.snap = Snapshot{IsRecording: true, StartedAt: r.clock.Now()}
	r.state = StateRecording
	res := newActiveResources(r.source)
	r.res = res
	r.mu.Unlock()

	defer func() {
		if err != nil {
			res.release()
		}
	}()

	if err := r.source.Start(ctx, r.opts, recorderSink{r: r}); err != nil {
		r.mu.Lock()
		if r.res == res {
			r.state = StateIdle
			r.snap = Snapshot{}
			r.res = nil
		}
		r.mu.Unlock()
		if errors.Is(err, ErrPermissionDenied) {
			r.logger.Warn("location permission denied")
		}
		return fmt.Errorf("starting location source: %w", err)
	}

	r.mu.Lock()
	if r.res != res {
		// Stop ran while the source was starting; its release happened
		// before the source finished subscribing.
		r.mu.Unlock()
		r.source.Stop()
		return fmt.Errorf("recorder stopped during start: %w", ErrInvalidState)
	}
	ticker := r.clock.NewTicker(tickInterval)
	res.ticker = ticker
	res.wg.Add(1)
	go r.runTicker(ticker, res.done, &res.wg)
	startedAt := r.snap.StartedAt
	r.mu.Unlock()

	r.logger.Info("recording started", "started_at", startedAt.UTC().Format(time.RFC3339))
	return nil
}

func (r *Recorder) runTicker(t Ticker, done <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-done:
			return
		case <-t.C():
			r.tick()
		}
	}
}

func (r *Recorder) tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return
	}
	r.snap.ElapsedSeconds++
}

func (r *Recorder) onLocation(s LocationSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return
	}
	p := s.LatLng()
	r.acc.Add(p)
	r.snap.DistanceTraveledKm = r.acc.TotalKm()
	r.snap.Path = append(r.snap.Path, p)
	r.snap.CurrentLocation = &s
}

func (r *Recorder) onHeading(h HeadingSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return
	}
	r.snap.CurrentHeading = &h
}

// AddInterestPoint marks the current location. It returns ErrNoFix when no
// location has arrived yet and ErrInvalidState outside Recording; in both
// cases nothing is added.
func (r *Recorder) AddInterestPoint(kind PointKind, note string) (InterestPoint, error) {
	if !kind.Valid() {
		return InterestPoint{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		r.logger.Warn("interest point ignored", "state", r.state.String(), "kind", string(kind))
		return InterestPoint{}, fmt.Errorf("add interest point while %s: %w", r.state, ErrInvalidState)
	}
	if r.snap.CurrentLocation == nil {
		r.logger.Warn("interest point ignored", "reason", "no fix", "kind", string(kind))
		return InterestPoint{}, ErrNoFix
	}

	pt := InterestPoint{
		Latitude:  r.snap.CurrentLocation.Latitude,
		Longitude: r.snap.CurrentLocation.Longitude,
		Kind:      kind,
		Note:      note,
		CreatedAt: r.clock.Now(),
	}
	r.snap.InterestPoints = append(r.snap.InterestPoints, pt)
	return pt, nil
}

// Stop freezes the snapshot and releases the source subscription and ticker.
// Stopping an already stopped recorder is a no-op.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	switch r.state {
	case StateStopped:
		r.mu.Unlock()
		return nil
	case StateIdle:
		r.mu.Unlock()
		r.logger.Warn("stop ignored", "state", StateIdle.String())
		return fmt.Errorf("stop while %s: %w", StateIdle, ErrInvalidState)
	}
	r.state = StateStopped
	r.snap.IsRecording = false
	r.snap.StoppedAt = r.clock.Now()
	res := r.res
	r.res = nil
	points, poi, km, elapsed := len(r.snap.Path), len(r.snap.InterestPoints), r.snap.DistanceTraveledKm, r.snap.ElapsedSeconds
	r.mu.Unlock()

	if res != nil {
		res.release()
	}

	r.logger.Info("recording stopped",
		"points", points,
		"interest_points", poi,
		"distance_km", fmt.Sprintf("%.3f", km),
		"elapsed_sec", elapsed,
	)
	return nil
}

// Close stops the recorder if it is still recording. Meant for defer on
// teardown paths; it never reports misuse.
func (r *Recorder) Close() error {
	if r.State() != StateRecording {
		return nil
	}
	if err := r.Stop(); err != nil && !errors.Is(err, ErrInvalidState) {
		return err
	}
	return nil
}

// State returns the current lifecycle state.
func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Snapshot returns a deep copy of the live state.
func (r *Recorder) Snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.clone()
}
