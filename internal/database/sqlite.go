package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trail-go/internal/database/migrations"
	"trail-go/internal/trail"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements trail.LocalStore using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens a SQLite database connection.
// path can be a file path or ":memory:" for an in-memory database.
// The schema is not touched; call Migrate or CheckMigrations.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// PRAGMAs are per connection and every connection to ":memory:" is a new
	// database, so the pool is pinned to one connection.
	db.SetMaxOpenConns(1)

	// SQLite defaults foreign keys to OFF; the cascades depend on them.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return parseTime(s.String)
}

func localWriteError(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", trail.ErrLocalWrite, what, err)
}

// Session operations

const insertSessionSQL = `
INSERT INTO recorded_sessions
    (start_time, end_time, distance_km, duration_sec, route_data, route_data_version, synced, name, difficulty, local_image_uri)
VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`

const insertInterestPointSQL = `
INSERT INTO interest_points (session_id, latitude, longitude, type, note, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

// CreateSession writes the session and its interest points in one transaction.
func (s *SQLiteDatabase) CreateSession(ctx context.Context, snap *trail.Snapshot, meta trail.SessionMetadata) (int64, error) {
	routeData, version, err := trail.EncodeRouteData(snap.Path)
	if err != nil {
		return 0, localWriteError("encoding route", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, localWriteError("beginning transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, insertSessionSQL,
		formatTime(snap.StartedAt),
		nullTime(snap.StoppedAt),
		snap.DistanceTraveledKm,
		snap.ElapsedSeconds,
		routeData,
		version,
		meta.Name,
		string(meta.Difficulty),
		nullString(meta.LocalImageURI),
	)
	if err != nil {
		return 0, localWriteError("inserting session", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, localWriteError("reading session id", err)
	}

	for i, p := range snap.InterestPoints {
		_, err := tx.ExecContext(ctx, insertInterestPointSQL,
			id, p.Latitude, p.Longitude, string(p.Kind), nullString(p.Note), formatTime(p.CreatedAt))
		if err != nil {
			return 0, localWriteError(fmt.Sprintf("inserting interest point %d", i), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, localWriteError("committing session", err)
	}
	return id, nil
}

const sessionColumns = `id, start_time, end_time, distance_km, duration_sec, route_data, route_data_version,
    synced, name, difficulty, local_image_uri, remote_id, waypoints_synced`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*trail.Session, error) {
	var (
		sess       trail.Session
		startTime  string
		endTime    sql.NullString
		distance   sql.NullFloat64
		duration   sql.NullInt64
		routeData  string
		version    int
		synced     int
		name       sql.NullString
		difficulty sql.NullString
		imageURI   sql.NullString
		remoteID   sql.NullString
		wpSynced   int
	)
	err := row.Scan(&sess.ID, &startTime, &endTime, &distance, &duration, &routeData, &version,
		&synced, &name, &difficulty, &imageURI, &remoteID, &wpSynced)
	if err != nil {
		return nil, err
	}

	if sess.StartTime, err = parseTime(startTime); err != nil {
		return nil, err
	}
	if sess.EndTime, err = parseNullTime(endTime); err != nil {
		return nil, err
	}
	if sess.Path, err = trail.DecodeRouteData(routeData, version); err != nil {
		return nil, fmt.Errorf("session %d: %w", sess.ID, err)
	}
	sess.RouteDataVersion = version
	sess.DistanceKm = distance.Float64
	sess.DurationSeconds = duration.Int64
	sess.Synced = synced != 0
	sess.Name = name.String
	sess.Difficulty = trail.Difficulty(difficulty.String)
	sess.LocalImageURI = imageURI.String
	sess.RemoteID = remoteID.String
	sess.WaypointsSynced = wpSynced != 0
	return &sess, nil
}

// GetSession loads a session and its interest points in capture order.
func (s *SQLiteDatabase) GetSession(ctx context.Context, id int64) (*trail.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM recorded_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %d: %w", id, trail.ErrNotFound)
		}
		return nil, fmt.Errorf("getting session %d: %w", id, err)
	}

	points, err := s.interestPoints(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.InterestPoints = points
	return sess, nil
}

func (s *SQLiteDatabase) interestPoints(ctx context.Context, sessionID int64) ([]trail.InterestPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, latitude, longitude, type, note, created_at
FROM interest_points WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing interest points: %w", err)
	}
	defer rows.Close()

	var points []trail.InterestPoint
	for rows.Next() {
		var (
			p         trail.InterestPoint
			kind      string
			note      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Latitude, &p.Longitude, &kind, &note, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning interest point: %w", err)
		}
		p.Kind = trail.PointKind(kind)
		p.Note = note.String
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing interest points: %w", err)
	}
	return points, nil
}

// ListSessions returns the most recent sessions without interest points.
// A limit of zero or less returns all sessions.
func (s *SQLiteDatabase) ListSessions(ctx context.Context, limit int) ([]*trail.Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM recorded_sessions ORDER BY start_time DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*trail.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// ListUnsynced returns the ids of unsynced sessions, oldest first.
func (s *SQLiteDatabase) ListUnsynced(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM recorded_sessions WHERE synced = 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing unsynced sessions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing unsynced sessions: %w", err)
	}
	return ids, nil
}

// SetRemoteID stores the backend id of the session's route.
func (s *SQLiteDatabase) SetRemoteID(ctx context.Context, id int64, remoteID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE recorded_sessions SET remote_id = ? WHERE id = ?`, remoteID, id)
	if err != nil {
		return localWriteError("setting remote id", err)
	}
	return requireRow(res, id)
}

// MarkWaypointsSynced records that the backend holds the session's waypoints.
func (s *SQLiteDatabase) MarkWaypointsSynced(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE recorded_sessions SET waypoints_synced = 1 WHERE id = ?`, id)
	if err != nil {
		return localWriteError("marking waypoints synced", err)
	}
	return requireRow(res, id)
}

// MarkSynced sets synced = 1. The update matches the row even when it is
// already synced, so only a missing session is an error.
func (s *SQLiteDatabase) MarkSynced(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE recorded_sessions SET synced = 1 WHERE id = ?`, id)
	if err != nil {
		return localWriteError("marking synced", err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return localWriteError("reading affected rows", err)
	}
	if n == 0 {
		return fmt.Errorf("session %d: %w", id, trail.ErrNotFound)
	}
	return nil
}

// Sync attempt operations

func (s *SQLiteDatabase) CreateSyncAttempt(ctx context.Context, sessionID int64, startedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_attempts (session_id, started_at, status) VALUES (?, ?, ?)`,
		sessionID, formatTime(startedAt), trail.AttemptRunning)
	if err != nil {
		return 0, localWriteError("creating sync attempt", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, localWriteError("reading sync attempt id", err)
	}
	return id, nil
}

func (s *SQLiteDatabase) FinishSyncAttempt(ctx context.Context, attemptID int64, finishedAt time.Time, status, step, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_attempts SET finished_at = ?, status = ?, step = ?, error = ? WHERE id = ?`,
		formatTime(finishedAt), status, nullString(step), nullString(errMsg), attemptID)
	if err != nil {
		return localWriteError("finishing sync attempt", err)
	}
	return nil
}

// ListSyncAttempts returns the most recent attempts, newest first.
func (s *SQLiteDatabase) ListSyncAttempts(ctx context.Context, limit int) ([]*trail.SyncAttempt, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, started_at, finished_at, status, step, error
FROM sync_attempts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*trail.SyncAttempt
	for rows.Next() {
		var (
			a          trail.SyncAttempt
			startedAt  string
			finishedAt sql.NullString
			step       sql.NullString
			errMsg     sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &startedAt, &finishedAt, &a.Status, &step, &errMsg); err != nil {
			return nil, fmt.Errorf("scanning sync attempt: %w", err)
		}
		if a.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if a.FinishedAt, err = parseNullTime(finishedAt); err != nil {
			return nil, err
		}
		a.Step = step.String
		a.Error = errMsg.String
		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sync attempts: %w", err)
	}
	return attempts, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate applies pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
// destPath must not exist.
func (s *SQLiteDatabase) BackupTo(ctx context.Context, destPath string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ trail.LocalStore = (*SQLiteDatabase)(nil)
