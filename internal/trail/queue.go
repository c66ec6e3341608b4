package trail

import (
	"context"
	"fmt"
)

// SyncReport summarizes one pass over the pending queue.
type SyncReport struct {
	Attempted int
	Succeeded int
	Failed    map[int64]error
}

// Queue is the pending-upload queue: every session with synced = 0.
// It has no timer of its own; callers decide when to drain it.
type Queue struct {
	store   LocalStore
	engine  *SyncEngine
	metrics Metrics
	logger  Logger
}

func NewQueue(store LocalStore, engine *SyncEngine, metrics Metrics, logger Logger) *Queue {
	return &Queue{store: store, engine: engine, metrics: metrics, logger: logger}
}

// Pending returns the ids waiting to be uploaded, oldest first.
func (q *Queue) Pending(ctx context.Context) ([]int64, error) {
	ids, err := q.store.ListUnsynced(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing unsynced sessions: %w", err)
	}
	q.metrics.SetPending(len(ids))
	return ids, nil
}

// SyncPending uploads every pending session in order. A failed upload is
// recorded in the report and the pass continues with the next session.
// Running it again is safe: synced sessions are no longer pending and a
// partially published session resumes where it stopped.
func (q *Queue) SyncPending(ctx context.Context) (*SyncReport, error) {
	ids, err := q.Pending(ctx)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{Failed: make(map[int64]error)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("sync pending interrupted: %w", err)
		}
		report.Attempted++
		if err := q.engine.Upload(ctx, id); err != nil {
			report.Failed[id] = err
			continue
		}
		report.Succeeded++
	}

	q.metrics.SetPending(len(report.Failed))
	q.logger.Info("pending sync complete",
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", len(report.Failed),
	)
	return report, nil
}
