package trail_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trail-go/internal/database"
	"trail-go/internal/objectstore"
	"trail-go/internal/remote"
	"trail-go/internal/testutil"
	"trail-go/internal/trail"
)

// metricsRecorder captures metric calls.
type metricsRecorder struct {
	mu      sync.Mutex
	uploads []string
	pending []int
}

func (m *metricsRecorder) UploadFinished(result, step string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, result+":"+step)
}

func (m *metricsRecorder) SetPending(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, n)
}

func (m *metricsRecorder) Uploads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.uploads...)
}

func (m *metricsRecorder) LastPending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return -1
	}
	return m.pending[len(m.pending)-1]
}

type stubLabeler struct {
	label string
	err   error
	calls []trail.LatLng
}

func (l *stubLabeler) Label(_ context.Context, p trail.LatLng) (string, error) {
	l.calls = append(l.calls, p)
	return l.label, l.err
}

// faultyStore fails selected LocalStore writes.
type faultyStore struct {
	trail.LocalStore
	setRemoteIDErr   error
	markWaypointsErr error
	markSyncedErr    error
}

func (s *faultyStore) MarkWaypointsSynced(ctx context.Context, id int64) error {
	if s.markWaypointsErr != nil {
		return s.markWaypointsErr
	}
	return s.LocalStore.MarkWaypointsSynced(ctx, id)
}

func (s *faultyStore) SetRemoteID(ctx context.Context, id int64, remoteID string) error {
	if s.setRemoteIDErr != nil {
		return s.setRemoteIDErr
	}
	return s.LocalStore.SetRemoteID(ctx, id, remoteID)
}

func (s *faultyStore) MarkSynced(ctx context.Context, id int64) error {
	if s.markSyncedErr != nil {
		return s.markSyncedErr
	}
	return s.LocalStore.MarkSynced(ctx, id)
}

type syncFixture struct {
	db      *database.SQLiteDatabase
	store   *faultyStore
	objects *objectstore.MemoryStore
	remote  *remote.MemoryRemote
	labeler *stubLabeler
	metrics *metricsRecorder
	clock   *testutil.StubClock
	engine  *trail.SyncEngine
	queue   *trail.Queue
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	f := &syncFixture{
		db:      testutil.NewTestDatabase(t),
		objects: testutil.NewTestObjectStore(),
		remote:  testutil.NewTestRemote(),
		labeler: &stubLabeler{label: "46.5000° N, 7.9000° E"},
		metrics: &metricsRecorder{},
		clock:   testutil.FixedClock(),
	}
	f.store = &faultyStore{LocalStore: f.db}
	f.engine = trail.NewSyncEngine(f.store, f.objects, f.remote, f.labeler, f.metrics, trail.NewNopLogger(), f.clock)
	f.queue = trail.NewQueue(f.store, f.engine, f.metrics, trail.NewNopLogger())
	return f
}

// frozenSnapshot builds a stopped recording the way a Recorder would.
func frozenSnapshot(start time.Time, path []trail.LatLng, points ...trail.InterestPoint) *trail.Snapshot {
	return &trail.Snapshot{
		StartedAt:          start,
		StoppedAt:          start.Add(150 * time.Second),
		Path:               path,
		InterestPoints:     points,
		DistanceTraveledKm: trail.PathDistanceKm(path),
		ElapsedSeconds:     150,
	}
}

func (f *syncFixture) save(t *testing.T, meta trail.SessionMetadata, points ...trail.InterestPoint) int64 {
	t.Helper()
	path := []trail.LatLng{{Latitude: 46.5, Longitude: 7.9}, {Latitude: 46.501, Longitude: 7.901}}
	id, err := f.db.CreateSession(context.Background(), frozenSnapshot(f.clock.Now(), path, points...), meta)
	require.NoError(t, err)
	return id
}
