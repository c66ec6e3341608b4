package trail

import (
	"fmt"
	"time"
)

// LatLng is a single position on the recorded path.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocationSample is a fix delivered by a SampleSource.
type LocationSample struct {
	Latitude   float64
	Longitude  float64
	CapturedAt time.Time
}

// LatLng returns the position part of the sample.
func (s LocationSample) LatLng() LatLng {
	return LatLng{Latitude: s.Latitude, Longitude: s.Longitude}
}

// HeadingSample is a compass reading. Display-only.
type HeadingSample struct {
	TrueHeadingDegrees float64
	CapturedAt         time.Time
}

// PointKind classifies an interest point.
type PointKind string

const (
	KindHazard    PointKind = "hazard"
	KindDrop      PointKind = "drop"
	KindViewpoint PointKind = "viewpoint"
	KindGeneral   PointKind = "general"
)

// ParsePointKind validates a raw kind string.
func ParsePointKind(raw string) (PointKind, error) {
	k := PointKind(raw)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, raw)
	}
	return k, nil
}

// Valid reports whether k is one of the known kinds.
func (k PointKind) Valid() bool {
	switch k {
	case KindHazard, KindDrop, KindViewpoint, KindGeneral:
		return true
	}
	return false
}

// Difficulty is the user-assigned difficulty of a route.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// InterestPoint is a user-marked location captured while recording.
// ID is the local auto-increment id (0 until persisted).
type InterestPoint struct {
	ID        int64
	SessionID int64
	Latitude  float64
	Longitude float64
	Kind      PointKind
	Note      string
	CreatedAt time.Time
}

// Snapshot is a copy of the recorder's state. The recorder owns the only
// mutable instance; every Snapshot handed out is a deep copy.
type Snapshot struct {
	IsRecording        bool
	StartedAt          time.Time
	StoppedAt          time.Time
	Path               []LatLng
	InterestPoints     []InterestPoint
	DistanceTraveledKm float64
	ElapsedSeconds     int64
	CurrentLocation    *LocationSample
	CurrentHeading     *HeadingSample
}

// Frozen reports whether the snapshot came from a stopped recorder.
func (s *Snapshot) Frozen() bool {
	return !s.IsRecording && !s.StoppedAt.IsZero()
}

func (s *Snapshot) clone() *Snapshot {
	c := *s
	c.Path = append([]LatLng(nil), s.Path...)
	c.InterestPoints = append([]InterestPoint(nil), s.InterestPoints...)
	if s.CurrentLocation != nil {
		loc := *s.CurrentLocation
		c.CurrentLocation = &loc
	}
	if s.CurrentHeading != nil {
		h := *s.CurrentHeading
		c.CurrentHeading = &h
	}
	return &c
}

// SessionMetadata is supplied by the user when a recording is saved.
type SessionMetadata struct {
	Name          string
	Difficulty    Difficulty
	LocalImageURI string
}

// Validate checks the metadata before it is persisted.
func (m SessionMetadata) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMetadata)
	}
	if !m.Difficulty.Valid() {
		return fmt.Errorf("%w: difficulty must be Easy, Medium or Hard, got %q", ErrInvalidMetadata, m.Difficulty)
	}
	return nil
}

// Session is a persisted recording.
type Session struct {
	ID               int64
	StartTime        time.Time
	EndTime          time.Time
	DistanceKm       float64
	DurationSeconds  int64
	Path             []LatLng
	RouteDataVersion int
	Name             string
	Difficulty       Difficulty
	LocalImageURI    string
	Synced           bool
	RemoteID         string
	WaypointsSynced  bool
	InterestPoints   []InterestPoint
}

// SyncAttempt is one row of the local upload log.
type SyncAttempt struct {
	ID         int64
	SessionID  int64
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Step       string
	Error      string
}

// Sync attempt statuses.
const (
	AttemptRunning = "running"
	AttemptSuccess = "success"
	AttemptFailed  = "failed"
)
