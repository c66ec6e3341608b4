package trail

import (
	"fmt"

	"github.com/goccy/go-json"
)

// RouteDataVersion is the version written by EncodeRouteData.
// Version 1 is a JSON array of {"latitude","longitude"} objects.
const RouteDataVersion = 1

// EncodeRouteData serializes a path for the route_data column and returns
// the version it was written with.
func EncodeRouteData(path []LatLng) (string, int, error) {
	if path == nil {
		path = []LatLng{}
	}
	b, err := json.Marshal(path)
	if err != nil {
		return "", 0, fmt.Errorf("encoding route data: %w", err)
	}
	return string(b), RouteDataVersion, nil
}

// DecodeRouteData parses route_data written with the given version.
func DecodeRouteData(data string, version int) ([]LatLng, error) {
	switch version {
	case 1:
		var path []LatLng
		if err := json.Unmarshal([]byte(data), &path); err != nil {
			return nil, fmt.Errorf("decoding route data v1: %w", err)
		}
		if path == nil {
			path = []LatLng{}
		}
		return path, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedRouteData, version)
	}
}
