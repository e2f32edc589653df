// Package config loads fleetwatchd's runtime configuration from the
// environment, per spec §6 "Environment configuration".
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable named in spec.md.
type Config struct {
	ListenAddr string

	DatabaseURL  string
	CacheURL     string
	TelemetryURL string

	PingInterval     time.Duration
	WorkerPoolSize   int
	ICMPPacketCount  int
	ICMPTimeout      time.Duration
	SNMPRetryMax     int
	SNMPBackoffBase  time.Duration

	AlertEvalInterval time.Duration

	FlappingThreshold int
	FlappingWindow    time.Duration
	FlappingCooldown  time.Duration

	PingRetentionDays  int
	AlertRetentionDays int

	WSHeartbeatInterval time.Duration
	WSHeartbeatTimeout  time.Duration
	WSHandshakesPerMin  int

	LogLevel  string
	LogFormat string

	EncryptionKeyHex string
}

// Load reads Config from the process environment, applying every spec
// default where a variable is unset.
func Load() Config {
	return Config{
		ListenAddr: envOr("FLEETWATCH_LISTEN_ADDR", ":8080"),

		DatabaseURL:  os.Getenv("FLEETWATCH_DATABASE_URL"),
		CacheURL:     os.Getenv("FLEETWATCH_CACHE_URL"),
		TelemetryURL: os.Getenv("FLEETWATCH_TELEMETRY_URL"),

		PingInterval:    envDuration("FLEETWATCH_PING_INTERVAL", 30*time.Second),
		WorkerPoolSize:  envInt("FLEETWATCH_WORKER_POOL_SIZE", 50),
		ICMPPacketCount: envInt("FLEETWATCH_ICMP_PACKET_COUNT", 5),
		ICMPTimeout:     envDuration("FLEETWATCH_ICMP_TIMEOUT", time.Second),
		SNMPRetryMax:    envInt("FLEETWATCH_SNMP_RETRY_MAX", 2),
		SNMPBackoffBase: envDuration("FLEETWATCH_SNMP_BACKOFF_BASE", 500*time.Millisecond),

		AlertEvalInterval: envDuration("FLEETWATCH_ALERT_EVAL_INTERVAL", 60*time.Second),

		FlappingThreshold: envInt("FLEETWATCH_FLAPPING_THRESHOLD", 3),
		FlappingWindow:    envDuration("FLEETWATCH_FLAPPING_WINDOW", 5*time.Minute),
		FlappingCooldown:  envDuration("FLEETWATCH_FLAPPING_COOLDOWN", 10*time.Minute),

		PingRetentionDays:  envInt("FLEETWATCH_PING_RETENTION_DAYS", 90),
		AlertRetentionDays: envInt("FLEETWATCH_ALERT_RETENTION_DAYS", 365),

		WSHeartbeatInterval: envDuration("FLEETWATCH_WS_HEARTBEAT_INTERVAL", 20*time.Second),
		WSHeartbeatTimeout:  envDuration("FLEETWATCH_WS_HEARTBEAT_TIMEOUT", 45*time.Second),
		WSHandshakesPerMin:  envInt("FLEETWATCH_WS_HANDSHAKES_PER_MIN", 30),

		LogLevel:  envOr("FLEETWATCH_LOG_LEVEL", "info"),
		LogFormat: envOr("FLEETWATCH_LOG_FORMAT", "text"),

		EncryptionKeyHex: os.Getenv("FLEETWATCH_ENCRYPTION_KEY"),
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
