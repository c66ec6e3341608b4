package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"trail-go/internal/trail"
)

var (
	ErrRouteNotFound = errors.New("route not found")
	ErrUnknownRoute  = errors.New("waypoint references unknown route")
)

const foreignKeyViolation = "23503"

// Route is a stored route with its waypoints.
type Route struct {
	ID string `json:"id"`
	trail.RouteRecord
	CreatedAt time.Time  `json:"created_at"`
	Waypoints []Waypoint `json:"waypoints"`
}

// Waypoint is a stored waypoint.
type Waypoint struct {
	ID string `json:"id"`
	trail.WaypointRecord
}

// Store persists routes and waypoints in Postgres.
type Store struct {
	db  Querier
	ids trail.IDGenerator
}

// NewStore creates a store. ids defaults to UUIDs.
func NewStore(db Querier, ids trail.IDGenerator) *Store {
	if ids == nil {
		ids = trail.UUIDGenerator{}
	}
	return &Store{db: db, ids: ids}
}

// InsertRoute stores a route and returns its new id.
func (s *Store) InsertRoute(ctx context.Context, in trail.RouteRecord) (string, error) {
	if in.RouteData == nil {
		in.RouteData = []trail.LatLng{}
	}
	data, err := json.Marshal(in.RouteData)
	if err != nil {
		return "", fmt.Errorf("encoding route_data: %w", err)
	}

	id := s.ids.New()
	_, err = s.db.Exec(ctx, `
		INSERT INTO routes (id, name, location, image_url, rating, difficulty, distance_km, time_minutes, route_data)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, id, in.Name, in.Location, in.ImageURL, in.Rating, string(in.Difficulty), in.DistanceKm, in.TimeMinutes, data)
	if err != nil {
		return "", fmt.Errorf("inserting route: %w", err)
	}
	return id, nil
}

// InsertWaypoints stores every waypoint in one transaction. Either all rows
// are written or none are.
func (s *Store) InsertWaypoints(ctx context.Context, in []trail.WaypointRecord) error {
	if len(in) == 0 {
		return nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	err = insertWaypoints(ctx, tx, s.ids, in)
	if err != nil {
		tx.Rollback(ctx)
	} else if err = tx.Commit(ctx); err != nil {
		err = fmt.Errorf("committing waypoints: %w", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("%w: %s", ErrUnknownRoute, pgErr.Message)
	}
	return err
}

func insertWaypoints(ctx context.Context, tx pgx.Tx, ids trail.IDGenerator, in []trail.WaypointRecord) error {
	for i, wp := range in {
		_, err := tx.Exec(ctx, `
			INSERT INTO waypoints (id, route_id, position, latitude, longitude, type, note, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, ids.New(), wp.RouteID, i, wp.Latitude, wp.Longitude, string(wp.Type), wp.Note, wp.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("inserting waypoint %d: %w", i, err)
		}
	}
	return nil
}

// GetRoute loads a route and its waypoints in insertion order.
func (s *Store) GetRoute(ctx context.Context, id string) (Route, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Route{}, ErrRouteNotFound
	}

	var (
		r          Route
		difficulty string
		data       []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, name, location, image_url, rating, difficulty, distance_km, time_minutes, route_data, created_at
		FROM routes WHERE id=$1
	`, id).Scan(&r.ID, &r.Name, &r.Location, &r.ImageURL, &r.Rating, &difficulty, &r.DistanceKm, &r.TimeMinutes, &data, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Route{}, ErrRouteNotFound
	}
	if err != nil {
		return Route{}, fmt.Errorf("loading route: %w", err)
	}
	r.Difficulty = trail.Difficulty(difficulty)
	if err := json.Unmarshal(data, &r.RouteData); err != nil {
		return Route{}, fmt.Errorf("decoding route_data: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, route_id, latitude, longitude, type, note, created_at
		FROM waypoints WHERE route_id=$1
		ORDER BY position
	`, id)
	if err != nil {
		return Route{}, fmt.Errorf("loading waypoints: %w", err)
	}
	defer rows.Close()

	r.Waypoints = []Waypoint{}
	for rows.Next() {
		var (
			w    Waypoint
			kind string
		)
		if err := rows.Scan(&w.ID, &w.RouteID, &w.Latitude, &w.Longitude, &kind, &w.Note, &w.CreatedAt); err != nil {
			return Route{}, fmt.Errorf("scanning waypoint: %w", err)
		}
		w.Type = trail.PointKind(kind)
		r.Waypoints = append(r.Waypoints, w)
	}
	if err := rows.Err(); err != nil {
		return Route{}, fmt.Errorf("loading waypoints: %w", err)
	}
	return r, nil
}
