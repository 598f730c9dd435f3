// Package cache provides the shared Redis coordination surface used by
// the API and the worker: campaign progress counters, processing locks,
// pause flags and request rate limiting.
//
// Callers must treat every error as "cache unavailable" and fall back to
// local state. Generation never stops because Redis is down.
package cache

import (
	"context"
	"time"
)

// Service is the coordination surface backed by Redis.
// All methods are safe for concurrent use.
type Service interface {
	// Get returns the value stored under key. ok is false when absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes key. Removing an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// IncrField atomically adds delta to a hash field and returns the new value.
	IncrField(ctx context.Context, key, field string, delta int64) (int64, error)
	// GetFields returns all fields of a hash. An absent key yields an empty map.
	GetFields(ctx context.Context, key string) (map[string]string, error)
	// SetFields writes multiple hash fields at once.
	SetFields(ctx context.Context, key string, fields map[string]any) error

	// AcquireLock takes the lock if free and returns a release token.
	// ok is false when another holder owns the lock.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// ReleaseLock releases the lock only while token still owns it.
	ReleaseLock(ctx context.Context, key, token string) error
	// RefreshLock extends the lock TTL while token still owns it.
	RefreshLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)

	// Allow records one event under key and reports whether it fits a
	// sliding window of at most limit events per window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Close releases the underlying connection.
	Close() error
}

const keyPrefix = "pinforge"

// ProgressKey is the hash holding completed/failed/cursor for a campaign.
func ProgressKey(campaignID string) string {
	return keyPrefix + ":progress:" + campaignID
}

// LockKey guards single-processor access to a campaign.
func LockKey(campaignID string) string {
	return keyPrefix + ":lock:" + campaignID
}

// PauseKey signals a cooperative pause to whichever worker holds the campaign.
func PauseKey(campaignID string) string {
	return keyPrefix + ":pause:" + campaignID
}

// DoneKey marks that a campaign reached a terminal status exactly once.
func DoneKey(campaignID string) string {
	return keyPrefix + ":done:" + campaignID
}

// RateKey scopes a sliding-window rate limit, e.g. by client IP.
func RateKey(scope string) string {
	return keyPrefix + ":rate:" + scope
}

// Progress hash field names.
const (
	FieldCompleted = "completed"
	FieldFailed    = "failed"
	FieldCursor    = "cursor"
	FieldTotal     = "total"
	FieldStatus    = "status"
)
