package trail

import "context"

// Labeler turns a coordinate into the human-readable location label stored
// on the remote route.
type Labeler interface {
	Label(ctx context.Context, p LatLng) (string, error)
}
