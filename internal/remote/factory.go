package remote

import (
	"fmt"
	"time"

	"trail-go/internal/config"
	"trail-go/internal/trail"
)

// NewRemoteFromConfig creates a RemoteStore based on the remote config type.
func NewRemoteFromConfig(cfg config.RemoteConfig, idgen trail.IDGenerator) (trail.RemoteStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryRemote(idgen), nil
	case "http":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("http remote requires base_url to be set")
		}
		return NewHTTPRemote(cfg.BaseURL, cfg.APIKey, time.Duration(cfg.TimeoutSeconds)*time.Second), nil
	default:
		return nil, fmt.Errorf("unknown remote type: %s", cfg.Type)
	}
}
