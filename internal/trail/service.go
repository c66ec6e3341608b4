package trail

import (
	"context"
	"fmt"
)

// Service is the controller-facing entry point. It owns the store and the
// sync machinery; recorders are created per recording.
type Service struct {
	store  LocalStore
	engine *SyncEngine
	queue  *Queue
	logger Logger
	clock  Clock
}

// NewService creates a Service with the provided dependencies.
func NewService(store LocalStore, engine *SyncEngine, queue *Queue, logger Logger, clock Clock) *Service {
	return &Service{
		store:  store,
		engine: engine,
		queue:  queue,
		logger: logger,
		clock:  clock,
	}
}

// NewRecorder returns an idle recorder reading from source.
func (s *Service) NewRecorder(source SampleSource, opts SourceOptions) *Recorder {
	return NewRecorder(source, s.clock, s.logger, opts)
}

// Persist saves a stopped recording. The snapshot must come from a stopped
// recorder and the metadata must be valid; nothing is written otherwise.
func (s *Service) Persist(ctx context.Context, snap *Snapshot, meta SessionMetadata) (int64, error) {
	if snap == nil || !snap.Frozen() {
		return 0, ErrInvalidSnapshot
	}
	if err := meta.Validate(); err != nil {
		return 0, err
	}

	id, err := s.store.CreateSession(ctx, snap, meta)
	if err != nil {
		s.logger.Error("saving session failed", "name", meta.Name, "error", err)
		return 0, fmt.Errorf("saving session: %w", err)
	}

	s.logger.Info("session saved",
		"local_id", id,
		"name", meta.Name,
		"points", len(snap.Path),
		"interest_points", len(snap.InterestPoints),
	)
	return id, nil
}

// Upload publishes one saved session.
func (s *Service) Upload(ctx context.Context, id int64) error {
	return s.engine.Upload(ctx, id)
}

// SyncPending uploads every session that has not been synced yet.
func (s *Service) SyncPending(ctx context.Context) (*SyncReport, error) {
	return s.queue.SyncPending(ctx)
}

// Pending returns the ids of sessions waiting for upload.
func (s *Service) Pending(ctx context.Context) ([]int64, error) {
	return s.queue.Pending(ctx)
}

// GetSession loads a saved session with its interest points.
func (s *Service) GetSession(ctx context.Context, id int64) (*Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading session %d: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns the most recent sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	sessions, err := s.store.ListSessions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// History returns the most recent sync attempts, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]*SyncAttempt, error) {
	attempts, err := s.store.ListSyncAttempts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync attempts: %w", err)
	}
	return attempts, nil
}
