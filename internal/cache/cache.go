// Package cache provides short-TTL memoization of hot read paths (spec
// §4.8): device list, dashboard stats, active alerts, per-device latest
// ping. Both implementations share the same Cache contract so the HTTP API
// can be pointed at Redis in production and the in-memory store in tests
// or single-node dev mode.
package cache

import (
	"context"
	"time"
)

// TTL tiers per spec §4.8.
const (
	TTLDeviceList     = 30 * time.Second
	TTLDashboardStats = 30 * time.Second
	TTLActiveAlerts   = 10 * time.Second
	TTLLatestPing     = 5 * time.Second
)

// Well-known key prefixes. Handlers build keys as Prefix+discriminator so
// InvalidatePrefix can drop a whole family at once (spec §9: explicit
// invalidation tokens, not blanket TTL-only expiry, for device/alert
// writes).
const (
	KeyDeviceList     = "device_list:"
	KeyDashboardStats = "dashboard_stats"
	KeyActiveAlerts   = "active_alerts"
	KeyLatestPing     = "latest_ping:"
)

// Cache is the contract both the in-memory and Redis-backed stores satisfy.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}
