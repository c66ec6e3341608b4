package trail

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied means the location source refused access.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrNoFix means an interest point was requested before any location arrived.
	ErrNoFix = errors.New("no location fix")
	// ErrLocalWrite means durable local persistence failed.
	ErrLocalWrite = errors.New("local write failed")
	// ErrAssetUpload means the route image could not be uploaded.
	ErrAssetUpload = errors.New("asset upload failed")
	// ErrRemoteWrite means a remote route or waypoint insert failed.
	ErrRemoteWrite = errors.New("remote write failed")
	// ErrNotFound means the local session does not exist.
	ErrNotFound = errors.New("session not found")

	ErrInvalidState         = errors.New("operation not allowed in current recorder state")
	ErrInvalidKind          = errors.New("invalid interest point kind")
	ErrInvalidMetadata      = errors.New("invalid session metadata")
	ErrInvalidSnapshot      = errors.New("snapshot is not frozen")
	ErrUploadInFlight       = errors.New("upload already in progress")
	ErrUnsupportedRouteData = errors.New("unsupported route data version")
)

// Sync steps, used in SyncError and in the attempt log.
const (
	StepLoad           = "load"
	StepAsset          = "asset"
	StepRoute          = "route"
	StepRemoteID       = "remote_id"
	StepWaypoints      = "waypoints"
	StepWaypointsState = "waypoints_state"
	StepMarkSynced     = "mark_synced"
)

// SyncError reports which step of an upload failed.
// errors.Is matches both the Kind sentinel and the wrapped cause.
type SyncError struct {
	LocalID int64
	Step    string
	Kind    error
	Err     error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync session %d: %s: %v: %v", e.LocalID, e.Step, e.Kind, e.Err)
}

func (e *SyncError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
