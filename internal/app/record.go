package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"trail-go/internal/geosource"
	"trail-go/internal/trail"
)

// Mark places an interest point at the Index-th delivered sample.
type Mark struct {
	Index int
	Kind  trail.PointKind
	Note  string
}

// ParseMark parses "INDEX:KIND[:NOTE]".
func ParseMark(raw string) (Mark, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 {
		return Mark{}, fmt.Errorf("mark %q: want INDEX:KIND[:NOTE]", raw)
	}
	idx, err := strconv.Atoi(parts[0])
	if err != nil || idx < 0 {
		return Mark{}, fmt.Errorf("mark %q: index must be a non-negative integer", raw)
	}
	kind, err := trail.ParsePointKind(parts[1])
	if err != nil {
		return Mark{}, fmt.Errorf("mark %q: %w", raw, err)
	}
	m := Mark{Index: idx, Kind: kind}
	if len(parts) == 3 {
		m.Note = parts[2]
	}
	return m, nil
}

// RecordRequest describes a recording replayed from a GPX file.
type RecordRequest struct {
	GPXPath    string
	Name       string
	Difficulty trail.Difficulty
	ImagePath  string
	Marks      []Mark
	Sync       bool
}

// RecordResult is what Record produced.
type RecordResult struct {
	LocalID  int64
	Snapshot *trail.Snapshot
	// SyncErr is set when Sync was requested and the upload failed. The
	// session is saved either way.
	SyncErr error
}

// Record replays a GPX track through a recorder, saves the session and
// optionally uploads it. Metadata is checked before the replay starts.
func (a *App) Record(ctx context.Context, req RecordRequest) (*RecordResult, error) {
	meta := trail.SessionMetadata{Name: req.Name, Difficulty: req.Difficulty}
	if req.ImagePath != "" {
		meta.LocalImageURI = "file://" + req.ImagePath
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	replay := geosource.NewReplaySource(req.GPXPath, a.clock)
	var rec *trail.Recorder
	source := &markingSource{
		SampleSource: replay,
		marks:        req.Marks,
		mark: func(m Mark) {
			if _, err := rec.AddInterestPoint(m.Kind, m.Note); err != nil {
				a.logger.Warn("mark skipped", "index", m.Index, "kind", string(m.Kind), "error", err)
			}
		},
	}
	rec = a.service.NewRecorder(source, a.SourceOptions())
	defer rec.Close()

	if err := rec.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting recording: %w", err)
	}

	select {
	case <-replay.Done():
	case <-ctx.Done():
		rec.Stop()
		return nil, ctx.Err()
	}

	if err := rec.Stop(); err != nil {
		return nil, fmt.Errorf("stopping recording: %w", err)
	}
	snap := rec.Snapshot()

	id, err := a.service.Persist(ctx, snap, meta)
	if err != nil {
		return nil, err
	}

	res := &RecordResult{LocalID: id, Snapshot: snap}
	if req.Sync {
		res.SyncErr = a.service.Upload(ctx, id)
	}
	return res, nil
}

// markingSource counts delivered locations and fires marks after the
// sample with the matching index reached the recorder.
type markingSource struct {
	trail.SampleSource
	marks []Mark
	mark  func(Mark)
}

func (s *markingSource) Start(ctx context.Context, opts trail.SourceOptions, sink trail.SampleSink) error {
	byIndex := make(map[int][]Mark, len(s.marks))
	for _, m := range s.marks {
		byIndex[m.Index] = append(byIndex[m.Index], m)
	}
	return s.SampleSource.Start(ctx, opts, &markingSink{SampleSink: sink, marks: byIndex, mark: s.mark})
}

type markingSink struct {
	trail.SampleSink
	mu    sync.Mutex
	n     int
	marks map[int][]Mark
	mark  func(Mark)
}

func (s *markingSink) OnLocation(l trail.LocationSample) {
	s.SampleSink.OnLocation(l)

	s.mu.Lock()
	pending := s.marks[s.n]
	s.n++
	s.mu.Unlock()

	for _, m := range pending {
		s.mark(m)
	}
}
