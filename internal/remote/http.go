package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"trail-go/internal/trail"
)

const maxErrorBody = 4 << 10

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// HTTPRemote talks to a trailhub-compatible backend:
// POST /routes returns {"id": ...}; POST /waypoints takes a JSON array.
type HTTPRemote struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPRemote creates a client. A zero timeout means no client timeout;
// callers still bound requests with their context.
func NewHTTPRemote(baseURL, apiKey string, timeout time.Duration) *HTTPRemote {
	return &HTTPRemote{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type insertRouteResponse struct {
	ID string `json:"id"`
}

func (h *HTTPRemote) InsertRoute(ctx context.Context, route trail.RouteRecord) (string, error) {
	if route.RouteData == nil {
		route.RouteData = []trail.LatLng{}
	}
	var out insertRouteResponse
	if err := h.post(ctx, "/routes", route, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("POST /routes: response has no id")
	}
	return out.ID, nil
}

func (h *HTTPRemote) InsertWaypoints(ctx context.Context, waypoints []trail.WaypointRecord) error {
	return h.post(ctx, "/waypoints", waypoints, nil)
}

func (h *HTTPRemote) post(ctx context.Context, path string, in any, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: http.MethodPost, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

var _ trail.RemoteStore = (*HTTPRemote)(nil)
