package cache

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestKeyBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"progress", ProgressKey("cmp_1"), "pinforge:progress:cmp_1"},
		{"lock", LockKey("cmp_1"), "pinforge:lock:cmp_1"},
		{"pause", PauseKey("cmp_1"), "pinforge:pause:cmp_1"},
		{"done", DoneKey("cmp_1"), "pinforge:done:cmp_1"},
		{"rate", RateKey("10.0.0.1"), "pinforge:rate:10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestNoopImplementsService(t *testing.T) {
	var _ Service = Noop{}
	var _ Service = (*Redis)(nil)
}

func TestNoopAllowsEverything(t *testing.T) {
	ctx := context.Background()
	n := NewNoop()

	token, ok, err := n.AcquireLock(ctx, LockKey("cmp_1"), time.Minute)
	if err != nil || !ok {
		t.Fatalf("AcquireLock: ok=%v err=%v", ok, err)
	}
	if token == "" {
		t.Error("expected a non-empty token")
	}

	allowed, err := n.Allow(ctx, RateKey("ip"), 1, time.Second)
	if err != nil || !allowed {
		t.Fatalf("Allow: allowed=%v err=%v", allowed, err)
	}

	if _, found, _ := n.Get(ctx, "anything"); found {
		t.Error("Noop.Get should never find a value")
	}

	fields, err := n.GetFields(ctx, ProgressKey("cmp_1"))
	if err != nil {
		t.Fatalf("GetFields: %v", err)
	}
	if len(fields) != 0 {
		t.Errorf("expected empty fields, got %v", fields)
	}
}

func TestNewTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok := newToken()
		if len(tok) != 32 {
			t.Fatalf("token %q has length %d, want 32", tok, len(tok))
		}
		if strings.ToLower(tok) != tok {
			t.Errorf("token %q is not lowercase hex", tok)
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}
