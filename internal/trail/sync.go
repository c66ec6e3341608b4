package trail

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"
)

const imageContentType = "image/jpeg"

// SyncEngine publishes persisted sessions to the remote backend.
//
// Upload runs asset upload, route insert, remote id bookkeeping, waypoint
// insert and MarkSynced in order and aborts on the first failure. The remote
// route id is stored locally as soon as the route exists, so a retry after a
// later failure resumes at the waypoint step instead of creating a second
// route.
type SyncEngine struct {
	store   LocalStore
	objects ObjectStore
	remote  RemoteStore
	labeler Labeler
	metrics Metrics
	logger  Logger
	clock   Clock

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// NewSyncEngine creates a SyncEngine. labeler may be nil, in which case
// routes are published without a location label.
func NewSyncEngine(store LocalStore, objects ObjectStore, remote RemoteStore, labeler Labeler, metrics Metrics, logger Logger, clock Clock) *SyncEngine {
	return &SyncEngine{
		store:    store,
		objects:  objects,
		remote:   remote,
		labeler:  labeler,
		metrics:  metrics,
		logger:   logger,
		clock:    clock,
		inFlight: make(map[int64]struct{}),
	}
}

func (e *SyncEngine) acquire(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[id]; busy {
		return false
	}
	e.inFlight[id] = struct{}{}
	return true
}

func (e *SyncEngine) release(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, id)
}

// Upload publishes one session. A session that is already synced succeeds
// without touching the backend. Failures are returned as *SyncError; a
// concurrent Upload of the same id fails with ErrUploadInFlight.
func (e *SyncEngine) Upload(ctx context.Context, localID int64) error {
	if !e.acquire(localID) {
		e.logger.Warn("upload already in progress", "local_id", localID)
		return fmt.Errorf("session %d: %w", localID, ErrUploadInFlight)
	}
	defer e.release(localID)

	started := e.clock.Now()

	session, err := e.store.GetSession(ctx, localID)
	if err != nil {
		kind := ErrLocalWrite
		if errors.Is(err, ErrNotFound) {
			kind = ErrNotFound
		}
		e.logger.Error("upload failed", "local_id", localID, "step", StepLoad, "error", err)
		e.metrics.UploadFinished(AttemptFailed, StepLoad, e.clock.Now().Sub(started))
		return &SyncError{LocalID: localID, Step: StepLoad, Kind: kind, Err: err}
	}
	if session.Synced {
		e.logger.Debug("session already synced", "local_id", localID)
		return nil
	}

	attemptID := e.beginAttempt(ctx, localID, started)

	serr := e.push(ctx, session)
	elapsed := e.clock.Now().Sub(started)
	if serr != nil {
		e.finishAttempt(ctx, attemptID, AttemptFailed, serr.Step, serr.Err)
		e.logger.Error("upload failed", "local_id", localID, "step", serr.Step, "error", serr.Err)
		e.metrics.UploadFinished(AttemptFailed, serr.Step, elapsed)
		return serr
	}

	e.finishAttempt(ctx, attemptID, AttemptSuccess, "", nil)
	e.metrics.UploadFinished(AttemptSuccess, "", elapsed)
	e.logger.Info("session synced",
		"local_id", localID,
		"remote_id", session.RemoteID,
		"waypoints", len(session.InterestPoints),
	)
	return nil
}

// push runs the remote steps and reports the first failing one.
func (e *SyncEngine) push(ctx context.Context, s *Session) *SyncError {
	fail := func(step string, kind, err error) *SyncError {
		return &SyncError{LocalID: s.ID, Step: step, Kind: kind, Err: err}
	}

	if s.RemoteID == "" {
		imageURL, err := e.uploadAsset(ctx, s)
		if err != nil {
			return fail(StepAsset, ErrAssetUpload, err)
		}

		remoteID, err := e.remote.InsertRoute(ctx, e.buildRoute(ctx, s, imageURL))
		if err != nil {
			return fail(StepRoute, ErrRemoteWrite, fmt.Errorf("inserting route: %w", err))
		}
		if remoteID == "" {
			return fail(StepRoute, ErrRemoteWrite, errors.New("inserting route: backend returned empty id"))
		}

		if err := e.store.SetRemoteID(ctx, s.ID, remoteID); err != nil {
			return fail(StepRemoteID, ErrLocalWrite, fmt.Errorf("storing remote id %s: %w", remoteID, err))
		}
		s.RemoteID = remoteID
	} else {
		e.logger.Info("route already published, resuming at waypoints", "local_id", s.ID, "remote_id", s.RemoteID)
	}

	if len(s.InterestPoints) > 0 && !s.WaypointsSynced {
		if err := e.remote.InsertWaypoints(ctx, waypointRecords(s.RemoteID, s.InterestPoints)); err != nil {
			return fail(StepWaypoints, ErrRemoteWrite, fmt.Errorf("inserting %d waypoints: %w", len(s.InterestPoints), err))
		}
		if err := e.store.MarkWaypointsSynced(ctx, s.ID); err != nil {
			return fail(StepWaypointsState, ErrLocalWrite, fmt.Errorf("marking waypoints synced: %w", err))
		}
		s.WaypointsSynced = true
	} else if s.WaypointsSynced {
		e.logger.Info("waypoints already published", "local_id", s.ID, "remote_id", s.RemoteID)
	}

	if err := e.store.MarkSynced(ctx, s.ID); err != nil {
		return fail(StepMarkSynced, ErrLocalWrite, fmt.Errorf("marking synced: %w", err))
	}
	s.Synced = true
	return nil
}

// AssetKey is the object key a session's image is uploaded under.
func AssetKey(s *Session) string {
	return fmt.Sprintf("%s_%d.jpg", s.StartTime.UTC().Format(time.RFC3339Nano), s.ID)
}

func (e *SyncEngine) uploadAsset(ctx context.Context, s *Session) (string, error) {
	if s.LocalImageURI == "" {
		return "", nil
	}

	f, err := os.Open(strings.TrimPrefix(s.LocalImageURI, "file://"))
	if err != nil {
		return "", fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat image: %w", err)
	}

	key := AssetKey(s)
	if err := e.objects.Put(ctx, key, f, info.Size(), imageContentType); err != nil {
		return "", fmt.Errorf("uploading image %s: %w", key, err)
	}

	e.logger.Debug("image uploaded", "local_id", s.ID, "key", key, "size", info.Size())
	return e.objects.PublicURL(key), nil
}

func (e *SyncEngine) buildRoute(ctx context.Context, s *Session, imageURL string) RouteRecord {
	return RouteRecord{
		Name:        s.Name,
		Location:    e.locationLabel(ctx, s),
		ImageURL:    imageURL,
		Rating:      0,
		Difficulty:  s.Difficulty,
		DistanceKm:  s.DistanceKm,
		TimeMinutes: int(math.Round(float64(s.DurationSeconds) / 60)),
		RouteData:   s.Path,
	}
}

// locationLabel labels the start of the path. A labeler failure is not
// fatal; the route is published without a label.
func (e *SyncEngine) locationLabel(ctx context.Context, s *Session) string {
	if e.labeler == nil || len(s.Path) == 0 {
		return ""
	}
	label, err := e.labeler.Label(ctx, s.Path[0])
	if err != nil {
		e.logger.Warn("location label unavailable", "local_id", s.ID, "error", err)
		return ""
	}
	return label
}

func waypointRecords(routeID string, points []InterestPoint) []WaypointRecord {
	out := make([]WaypointRecord, len(points))
	for i, p := range points {
		out[i] = WaypointRecord{
			RouteID:   routeID,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Type:      p.Kind,
			Note:      p.Note,
			CreatedAt: p.CreatedAt,
		}
	}
	return out
}

// beginAttempt records the attempt. The attempt log is advisory; failing to
// write it does not block the upload.
func (e *SyncEngine) beginAttempt(ctx context.Context, localID int64, started time.Time) int64 {
	id, err := e.store.CreateSyncAttempt(ctx, localID, started)
	if err != nil {
		e.logger.Warn("recording sync attempt", "local_id", localID, "error", err)
		return 0
	}
	return id
}

func (e *SyncEngine) finishAttempt(ctx context.Context, attemptID int64, status, step string, cause error) {
	if attemptID == 0 {
		return
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	// The caller's context may already be cancelled; the log entry should still land.
	if err := e.store.FinishSyncAttempt(context.WithoutCancel(ctx), attemptID, e.clock.Now(), status, step, msg); err != nil {
		e.logger.Warn("finishing sync attempt", "attempt_id", attemptID, "error", err)
	}
}
