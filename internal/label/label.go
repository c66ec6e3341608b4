// Package label turns coordinates into the human-readable location string
// published with a route.
package label

import (
	"context"
	"fmt"
	"math"

	"github.com/coocood/freecache"

	"trail-go/internal/trail"
)

// CoordinateLabeler formats a coordinate as "46.5000° N, 7.9000° E".
type CoordinateLabeler struct{}

var _ trail.Labeler = CoordinateLabeler{}

func (CoordinateLabeler) Label(_ context.Context, p trail.LatLng) (string, error) {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return "", fmt.Errorf("invalid coordinate (%f, %f)", p.Latitude, p.Longitude)
	}
	return fmt.Sprintf("%s, %s", hemisphere(p.Latitude, "N", "S"), hemisphere(p.Longitude, "E", "W")), nil
}

func hemisphere(v float64, pos, neg string) string {
	dir := pos
	if v < 0 {
		dir = neg
		v = -v
	}
	// Avoid "-0.0000° S" for values that round to zero.
	if math.Round(v*1e4) == 0 {
		dir = pos
		v = 0
	}
	return fmt.Sprintf("%.4f° %s", v, dir)
}

// CachedLabeler memoizes another labeler in a freecache. Coordinates that
// round to the same fourth decimal share an entry. Errors are not cached.
type CachedLabeler struct {
	next  trail.Labeler
	cache *freecache.Cache
	ttl   int
}

var _ trail.Labeler = (*CachedLabeler)(nil)

// NewCachedLabeler wraps next with a cache of sizeBytes. ttlSeconds of zero
// keeps entries until evicted.
func NewCachedLabeler(next trail.Labeler, sizeBytes, ttlSeconds int) *CachedLabeler {
	return &CachedLabeler{
		next:  next,
		cache: freecache.NewCache(sizeBytes),
		ttl:   ttlSeconds,
	}
}

func cacheKey(p trail.LatLng) []byte {
	return []byte(fmt.Sprintf("%.4f,%.4f", p.Latitude, p.Longitude))
}

func (c *CachedLabeler) Label(ctx context.Context, p trail.LatLng) (string, error) {
	key := cacheKey(p)
	if v, err := c.cache.Get(key); err == nil {
		return string(v), nil
	}

	label, err := c.next.Label(ctx, p)
	if err != nil {
		return "", err
	}
	_ = c.cache.Set(key, []byte(label), c.ttl)
	return label, nil
}

// HitRate returns the fraction of lookups served from the cache.
func (c *CachedLabeler) HitRate() float64 {
	return c.cache.HitRate()
}

// NewFromConfig builds the labeler used by the sync engine. A cache size of
// zero disables caching.
func NewFromConfig(sizeBytes, ttlSeconds int) trail.Labeler {
	if sizeBytes <= 0 {
		return CoordinateLabeler{}
	}
	return NewCachedLabeler(CoordinateLabeler{}, sizeBytes, ttlSeconds)
}
