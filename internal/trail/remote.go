package trail

import (
	"context"
	"time"
)

// RouteRecord is the remote route payload.
type RouteRecord struct {
	Name        string     `json:"name"`
	Location    string     `json:"location"`
	ImageURL    string     `json:"image_url"`
	Rating      int        `json:"rating"`
	Difficulty  Difficulty `json:"difficulty"`
	DistanceKm  float64    `json:"distance_km"`
	TimeMinutes int        `json:"time_minutes"`
	RouteData   []LatLng   `json:"route_data"`
}

// WaypointRecord is one remote waypoint row.
type WaypointRecord struct {
	RouteID   string    `json:"route_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Type      PointKind `json:"type"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// RemoteStore is the shared backend routes are published to.
type RemoteStore interface {
	// InsertRoute creates a route and returns the backend-assigned id.
	InsertRoute(ctx context.Context, route RouteRecord) (string, error)

	// InsertWaypoints inserts all waypoints in one request, preserving order.
	InsertWaypoints(ctx context.Context, waypoints []WaypointRecord) error
}
