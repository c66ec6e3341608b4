package trail

import (
	"context"
	"time"
)

// LocalStore is the durable on-device store for recorded sessions.
type LocalStore interface {
	// CreateSession writes the session row and all of its interest points in
	// one transaction. On any failure nothing is written and the error wraps
	// ErrLocalWrite.
	CreateSession(ctx context.Context, snap *Snapshot, meta SessionMetadata) (int64, error)

	// GetSession loads a session with its interest points in capture order.
	// Returns ErrNotFound if the id does not exist.
	GetSession(ctx context.Context, id int64) (*Session, error)

	// ListSessions returns the most recent sessions, newest first, without
	// interest points.
	ListSessions(ctx context.Context, limit int) ([]*Session, error)

	// ListUnsynced returns the ids of sessions not yet synced, oldest first.
	ListUnsynced(ctx context.Context) ([]int64, error)

	// SetRemoteID records the backend id assigned to the session's route.
	SetRemoteID(ctx context.Context, id int64, remoteID string) error

	// MarkWaypointsSynced records that the session's waypoints reached the
	// backend, so a retry does not send them again.
	MarkWaypointsSynced(ctx context.Context, id int64) error

	// MarkSynced flips synced to true. Marking a synced session is a no-op.
	MarkSynced(ctx context.Context, id int64) error

	// Sync attempt log

	CreateSyncAttempt(ctx context.Context, sessionID int64, startedAt time.Time) (int64, error)
	FinishSyncAttempt(ctx context.Context, attemptID int64, finishedAt time.Time, status, step, errMsg string) error
	ListSyncAttempts(ctx context.Context, limit int) ([]*SyncAttempt, error)

	// BackupTo writes a consistent copy of the database to destPath.
	BackupTo(ctx context.Context, destPath string) error

	Close() error
}
