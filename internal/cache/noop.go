package cache

import (
	"context"
	"time"
)

// Noop is a Service that stores nothing and allows everything.
// It stands in when Redis is not configured, so single-process
// deployments and tests run without external services.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) Get(ctx context.Context, key string) (string, bool, error) { return "", false, nil }

func (Noop) Set(ctx context.Context, key, value string, ttl time.Duration) error { return nil }

func (Noop) Delete(ctx context.Context, key string) error { return nil }

func (Noop) IncrField(ctx context.Context, key, field string, delta int64) (int64, error) {
	return 0, nil
}

func (Noop) GetFields(ctx context.Context, key string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (Noop) SetFields(ctx context.Context, key string, fields map[string]any) error { return nil }

func (Noop) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	// Always grants. Single-process deployments have no contending worker.
	return "noop", true, nil
}

func (Noop) ReleaseLock(ctx context.Context, key, token string) error { return nil }

func (Noop) RefreshLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (Noop) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return true, nil
}

func (Noop) Close() error { return nil }
