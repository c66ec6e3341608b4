package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"trail-go/internal/trail"
)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("failed to migrate: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

var testStart = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func testSnapshot() *trail.Snapshot {
	return &trail.Snapshot{
		StartedAt: testStart,
		StoppedAt: testStart.Add(20 * time.Minute),
		Path: []trail.LatLng{
			{Latitude: 46.5, Longitude: 7.9},
			{Latitude: 46.501, Longitude: 7.901},
			{Latitude: 46.502, Longitude: 7.9035},
		},
		InterestPoints: []trail.InterestPoint{
			{Latitude: 46.501, Longitude: 7.901, Kind: trail.KindHazard, Note: "loose rock", CreatedAt: testStart.Add(5 * time.Minute)},
			{Latitude: 46.502, Longitude: 7.9035, Kind: trail.KindViewpoint, CreatedAt: testStart.Add(15 * time.Minute)},
		},
		DistanceTraveledKm: 0.35,
		ElapsedSeconds:     1200,
	}
}

func testMeta() trail.SessionMetadata {
	return trail.SessionMetadata{Name: "Ridge loop", Difficulty: trail.DifficultyMedium, LocalImageURI: "/tmp/ridge.jpg"}
}

func TestSQLiteDatabase_CreateAndGetSession(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	snap := testSnapshot()

	id, err := db.CreateSession(ctx, snap, testMeta())
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if id <= 0 {
		t.Fatalf("CreateSession() id = %d, want positive", id)
	}

	got, err := db.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}

	if !got.StartTime.Equal(snap.StartedAt) {
		t.Errorf("StartTime = %v, want %v", got.StartTime, snap.StartedAt)
	}
	if !got.EndTime.Equal(snap.StoppedAt) {
		t.Errorf("EndTime = %v, want %v", got.EndTime, snap.StoppedAt)
	}
	if got.DistanceKm != snap.DistanceTraveledKm {
		t.Errorf("DistanceKm = %v, want %v", got.DistanceKm, snap.DistanceTraveledKm)
	}
	if got.DurationSeconds != 1200 {
		t.Errorf("DurationSeconds = %d, want 1200", got.DurationSeconds)
	}
	if got.Name != "Ridge loop" || got.Difficulty != trail.DifficultyMedium || got.LocalImageURI != "/tmp/ridge.jpg" {
		t.Errorf("metadata = %q/%q/%q, want Ridge loop/Medium//tmp/ridge.jpg", got.Name, got.Difficulty, got.LocalImageURI)
	}
	if got.Synced {
		t.Error("Synced = true, want false")
	}
	if got.RemoteID != "" {
		t.Errorf("RemoteID = %q, want empty", got.RemoteID)
	}
	if got.RouteDataVersion != trail.RouteDataVersion {
		t.Errorf("RouteDataVersion = %d, want %d", got.RouteDataVersion, trail.RouteDataVersion)
	}

	if len(got.Path) != len(snap.Path) {
		t.Fatalf("len(Path) = %d, want %d", len(got.Path), len(snap.Path))
	}
	for i := range snap.Path {
		if got.Path[i] != snap.Path[i] {
			t.Errorf("Path[%d] = %v, want %v", i, got.Path[i], snap.Path[i])
		}
	}

	if len(got.InterestPoints) != 2 {
		t.Fatalf("len(InterestPoints) = %d, want 2", len(got.InterestPoints))
	}
	for i, want := range snap.InterestPoints {
		p := got.InterestPoints[i]
		if p.SessionID != id {
			t.Errorf("InterestPoints[%d].SessionID = %d, want %d", i, p.SessionID, id)
		}
		if p.Kind != want.Kind || p.Note != want.Note {
			t.Errorf("InterestPoints[%d] = %s/%q, want %s/%q", i, p.Kind, p.Note, want.Kind, want.Note)
		}
		if p.Latitude != want.Latitude || p.Longitude != want.Longitude {
			t.Errorf("InterestPoints[%d] position = %v,%v, want %v,%v", i, p.Latitude, p.Longitude, want.Latitude, want.Longitude)
		}
		if !p.CreatedAt.Equal(want.CreatedAt) {
			t.Errorf("InterestPoints[%d].CreatedAt = %v, want %v", i, p.CreatedAt, want.CreatedAt)
		}
	}
}

func TestSQLiteDatabase_CreateSession_EmptyPath(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	snap := &trail.Snapshot{StartedAt: testStart, StoppedAt: testStart.Add(time.Second)}

	id, err := db.CreateSession(ctx, snap, trail.SessionMetadata{Name: "empty", Difficulty: trail.DifficultyEasy})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	got, err := db.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.Path == nil || len(got.Path) != 0 {
		t.Errorf("Path = %#v, want empty non-nil slice", got.Path)
	}
	if len(got.InterestPoints) != 0 {
		t.Errorf("len(InterestPoints) = %d, want 0", len(got.InterestPoints))
	}
	if got.LocalImageURI != "" {
		t.Errorf("LocalImageURI = %q, want empty", got.LocalImageURI)
	}
}

func TestSQLiteDatabase_CreateSession_RollsBackOnPointFailure(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	snap := testSnapshot()
	// The CHECK constraint on interest_points.type rejects this row after the
	// session row was already inserted in the same transaction.
	snap.InterestPoints = append(snap.InterestPoints, trail.InterestPoint{
		Latitude: 1, Longitude: 2, Kind: "campsite", CreatedAt: testStart,
	})

	_, err := db.CreateSession(ctx, snap, testMeta())
	if !errors.Is(err, trail.ErrLocalWrite) {
		t.Fatalf("CreateSession() error = %v, want ErrLocalWrite", err)
	}

	var sessions, points int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM recorded_sessions").Scan(&sessions); err != nil {
		t.Fatal(err)
	}
	if err := db.db.QueryRow("SELECT COUNT(*) FROM interest_points").Scan(&points); err != nil {
		t.Fatal(err)
	}
	if sessions != 0 || points != 0 {
		t.Errorf("after failed CreateSession: %d sessions, %d points, want 0 and 0", sessions, points)
	}
}

func TestSQLiteDatabase_GetSession_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetSession(context.Background(), 42)
	if !errors.Is(err, trail.ErrNotFound) {
		t.Errorf("GetSession() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteDatabase_GetSession_UnsupportedRouteData(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	id, err := db.CreateSession(ctx, testSnapshot(), testMeta())
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := db.db.Exec("UPDATE recorded_sessions SET route_data_version = 9 WHERE id = ?", id); err != nil {
		t.Fatal(err)
	}

	_, err = db.GetSession(ctx, id)
	if !errors.Is(err, trail.ErrUnsupportedRouteData) {
		t.Errorf("GetSession() error = %v, want ErrUnsupportedRouteData", err)
	}
}

func TestSQLiteDatabase_ListSessions(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	for i := 0; i < 3; i++ {
		snap := testSnapshot()
		snap.StartedAt = testStart.Add(time.Duration(i) * time.Hour)
		snap.StoppedAt = snap.StartedAt.Add(time.Minute)
		if _, err := db.CreateSession(ctx, snap, testMeta()); err != nil {
			t.Fatalf("CreateSession(%d) error = %v", i, err)
		}
	}

	t.Run("newest first", func(t *testing.T) {
		got, err := db.ListSessions(ctx, 0)
		if err != nil {
			t.Fatalf("ListSessions() error = %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("len = %d, want 3", len(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i].StartTime.After(got[i-1].StartTime) {
				t.Errorf("sessions not ordered newest first at %d", i)
			}
		}
		if got[0].InterestPoints != nil {
			t.Error("ListSessions() should not load interest points")
		}
	})

	t.Run("limit", func(t *testing.T) {
		got, err := db.ListSessions(ctx, 2)
		if err != nil {
			t.Fatalf("ListSessions() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("len = %d, want 2", len(got))
		}
	})
}

func TestSQLiteDatabase_SyncState(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	first, err := db.CreateSession(ctx, testSnapshot(), testMeta())
	if err != nil {
		t.Fatal(err)
	}
	second, err := db.CreateSession(ctx, testSnapshot(), testMeta())
	if err != nil {
		t.Fatal(err)
	}

	ids, err := db.ListUnsynced(ctx)
	if err != nil {
		t.Fatalf("ListUnsynced() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != first || ids[1] != second {
		t.Fatalf("ListUnsynced() = %v, want [%d %d]", ids, first, second)
	}

	if err := db.SetRemoteID(ctx, first, "route-abc"); err != nil {
		t.Fatalf("SetRemoteID() error = %v", err)
	}
	if got, _ := db.GetSession(ctx, first); got.WaypointsSynced {
		t.Error("WaypointsSynced = true before MarkWaypointsSynced")
	}
	if err := db.MarkWaypointsSynced(ctx, first); err != nil {
		t.Fatalf("MarkWaypointsSynced() error = %v", err)
	}
	if err := db.MarkSynced(ctx, first); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}
	if err := db.MarkSynced(ctx, first); err != nil {
		t.Errorf("second MarkSynced() error = %v, want nil", err)
	}

	got, err := db.GetSession(ctx, first)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Synced || got.RemoteID != "route-abc" || !got.WaypointsSynced {
		t.Errorf("session = synced %v remote %q waypoints %v, want true route-abc true",
			got.Synced, got.RemoteID, got.WaypointsSynced)
	}

	ids, err = db.ListUnsynced(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != second {
		t.Errorf("ListUnsynced() after sync = %v, want [%d]", ids, second)
	}

	if err := db.MarkSynced(ctx, 999); !errors.Is(err, trail.ErrNotFound) {
		t.Errorf("MarkSynced(missing) error = %v, want ErrNotFound", err)
	}
	if err := db.MarkWaypointsSynced(ctx, 999); !errors.Is(err, trail.ErrNotFound) {
		t.Errorf("MarkWaypointsSynced(missing) error = %v, want ErrNotFound", err)
	}
	if err := db.SetRemoteID(ctx, 999, "x"); !errors.Is(err, trail.ErrNotFound) {
		t.Errorf("SetRemoteID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteDatabase_SyncAttempts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	id, err := db.CreateSession(ctx, testSnapshot(), testMeta())
	if err != nil {
		t.Fatal(err)
	}

	a1, err := db.CreateSyncAttempt(ctx, id, testStart)
	if err != nil {
		t.Fatalf("CreateSyncAttempt() error = %v", err)
	}
	if err := db.FinishSyncAttempt(ctx, a1, testStart.Add(time.Second), trail.AttemptFailed, trail.StepWaypoints, "boom"); err != nil {
		t.Fatalf("FinishSyncAttempt() error = %v", err)
	}
	a2, err := db.CreateSyncAttempt(ctx, id, testStart.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	got, err := db.ListSyncAttempts(ctx, 10)
	if err != nil {
		t.Fatalf("ListSyncAttempts() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}

	if got[0].ID != a2 || got[0].Status != trail.AttemptRunning || !got[0].FinishedAt.IsZero() {
		t.Errorf("newest attempt = %+v, want running attempt %d", got[0], a2)
	}
	old := got[1]
	if old.ID != a1 || old.SessionID != id {
		t.Errorf("oldest attempt ids = %d/%d, want %d/%d", old.ID, old.SessionID, a1, id)
	}
	if old.Status != trail.AttemptFailed || old.Step != trail.StepWaypoints || old.Error != "boom" {
		t.Errorf("oldest attempt = %s/%s/%q, want failed/waypoints/boom", old.Status, old.Step, old.Error)
	}
	if !old.FinishedAt.Equal(testStart.Add(time.Second)) {
		t.Errorf("FinishedAt = %v, want %v", old.FinishedAt, testStart.Add(time.Second))
	}
}

func TestSQLiteDatabase_BackupTo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	id, err := db.CreateSession(ctx, testSnapshot(), testMeta())
	if err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := db.BackupTo(ctx, dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	restored, err := NewSQLiteDatabase(dest)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer restored.Close()

	if err := restored.CheckMigrations(); err != nil {
		t.Errorf("backup schema check: %v", err)
	}
	got, err := restored.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession() on backup error = %v", err)
	}
	if got.Name != "Ridge loop" || len(got.InterestPoints) != 2 {
		t.Errorf("backup session = %q with %d points, want Ridge loop with 2", got.Name, len(got.InterestPoints))
	}
}
