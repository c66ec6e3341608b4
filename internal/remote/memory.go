// Package remote implements trail.RemoteStore backends.
package remote

import (
	"context"
	"fmt"
	"sync"

	"trail-go/internal/trail"
)

// MemoryRemote is an in-memory backend. Failures can be injected per
// operation; a failed call stores nothing.
type MemoryRemote struct {
	idgen trail.IDGenerator

	mu            sync.Mutex
	routes        map[string]trail.RouteRecord
	routeOrder    []string
	waypoints     []trail.WaypointRecord
	routeCalls    int
	waypointCalls int
	failRoute     error
	failWaypoints error
}

func NewMemoryRemote(idgen trail.IDGenerator) *MemoryRemote {
	return &MemoryRemote{
		idgen:  idgen,
		routes: make(map[string]trail.RouteRecord),
	}
}

func (m *MemoryRemote) InsertRoute(ctx context.Context, route trail.RouteRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.routeCalls++
	if m.failRoute != nil {
		return "", m.failRoute
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := m.idgen.New()
	route.RouteData = append([]trail.LatLng(nil), route.RouteData...)
	m.routes[id] = route
	m.routeOrder = append(m.routeOrder, id)
	return id, nil
}

// InsertWaypoints is all-or-nothing: every waypoint must reference an
// existing route.
func (m *MemoryRemote) InsertWaypoints(ctx context.Context, waypoints []trail.WaypointRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.waypointCalls++
	if m.failWaypoints != nil {
		return m.failWaypoints
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, w := range waypoints {
		if _, ok := m.routes[w.RouteID]; !ok {
			return fmt.Errorf("waypoint %d: unknown route %q", i, w.RouteID)
		}
	}
	m.waypoints = append(m.waypoints, waypoints...)
	return nil
}

// SetFailRoute makes InsertRoute fail with err until cleared with nil.
func (m *MemoryRemote) SetFailRoute(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRoute = err
}

// SetFailWaypoints makes InsertWaypoints fail with err until cleared with nil.
func (m *MemoryRemote) SetFailWaypoints(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWaypoints = err
}

// Routes returns the stored routes in insertion order.
func (m *MemoryRemote) Routes() []trail.RouteRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]trail.RouteRecord, len(m.routeOrder))
	for i, id := range m.routeOrder {
		out[i] = m.routes[id]
	}
	return out
}

// RouteIDs returns the ids of stored routes in insertion order.
func (m *MemoryRemote) RouteIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.routeOrder...)
}

// Waypoints returns every stored waypoint in insertion order.
func (m *MemoryRemote) Waypoints() []trail.WaypointRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]trail.WaypointRecord(nil), m.waypoints...)
}

// Calls returns how many times each insert was attempted.
func (m *MemoryRemote) Calls() (routes, waypoints int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.routeCalls, m.waypointCalls
}

var _ trail.RemoteStore = (*MemoryRemote)(nil)
