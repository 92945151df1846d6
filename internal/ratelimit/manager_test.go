package ratelimit

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func newManager(t *testing.T, rpm int) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewManager(client, rpm), s
}

func TestManager_Allow(t *testing.T) {
	m, _ := newManager(t, 2)
	ctx := context.Background()

	for i, want := range []bool{true, true, false} {
		allowed, remaining, reset, err := m.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatal(err)
		}
		if allowed != want {
			t.Fatalf("request %d: expected allowed=%v", i+1, want)
		}
		if remaining < 0 || reset < 1 || reset > 60 {
			t.Errorf("request %d: unexpected remaining=%d reset=%d", i+1, remaining, reset)
		}
	}

	if allowed, _, _, _ := m.Allow(ctx, "10.0.0.2"); !allowed {
		t.Error("clients must not share a budget")
	}
	if n, err := m.Count(ctx, "10.0.0.1"); err != nil || n != 3 {
		t.Errorf("expected count 3, got %d %v", n, err)
	}
	if n, err := m.Count(ctx, "unknown"); err != nil || n != 0 {
		t.Errorf("expected count 0, got %d %v", n, err)
	}
}

func TestManager_AllowRedisDown(t *testing.T) {
	m, s := newManager(t, 2)
	s.Close()
	if _, _, _, err := m.Allow(context.Background(), "10.0.0.1"); err == nil {
		t.Error("expected error when redis is unreachable")
	}
}
