package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(time.Hour)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "foo", []byte("bar"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, ok, err := c.Get(ctx, "foo")
	if err != nil || !ok || string(val) != "bar" {
		t.Fatalf("expected bar, got %q ok=%v err=%v", val, ok, err)
	}
}

func TestMemoryCache_ExpiresByTTL(t *testing.T) {
	c := NewMemoryCache(time.Hour)
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "foo", []byte("bar"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok, _ := c.Get(ctx, "foo")
	if ok {
		t.Fatalf("expected entry to have expired")
	}
}

func TestMemoryCache_InvalidatePrefix(t *testing.T) {
	c := NewMemoryCache(time.Hour)
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, KeyDeviceList+"branch-a", []byte("x"), time.Minute)
	_ = c.Set(ctx, KeyDeviceList+"branch-b", []byte("y"), time.Minute)
	_ = c.Set(ctx, KeyDashboardStats, []byte("z"), time.Minute)

	if err := c.InvalidatePrefix(ctx, KeyDeviceList); err != nil {
		t.Fatalf("invalidate prefix: %v", err)
	}

	if _, ok, _ := c.Get(ctx, KeyDeviceList+"branch-a"); ok {
		t.Fatalf("expected branch-a entry to be gone")
	}
	if _, ok, _ := c.Get(ctx, KeyDashboardStats); !ok {
		t.Fatalf("expected unrelated key to survive prefix invalidation")
	}
}
