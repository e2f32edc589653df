// Package prober implements C4: the ICMP reachability prober (spec §4.3),
// grounded on the community ping library used across the retrieved
// network-scanning examples.
package prober

import (
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/fleetwatch/monitor/internal/domain/telemetry"
)

// Config controls ping job parameters, defaulted from spec §4.3.
type Config struct {
	PacketCount int
	Timeout     time.Duration
	Privileged  bool
}

func (c Config) withDefaults() Config {
	if c.PacketCount <= 0 {
		c.PacketCount = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	return c
}

// Prober runs ICMP echo jobs against device IPs.
type Prober struct {
	cfg Config
}

// New constructs a Prober.
func New(cfg Config) *Prober {
	return &Prober{cfg: cfg.withDefaults()}
}

// Ping runs one ping job against ip and returns the normalized result. The
// second return value is non-nil only when the probe itself failed
// (permission or socket error); callers log it but MUST NOT treat it as a
// DOWN observation (spec §4.3) — that distinction is carried by
// PingResult.Unavailable.
func (p *Prober) Ping(ip string) (telemetry.PingResult, error) {
	now := time.Now().UTC()

	pinger, err := probing.NewPinger(ip)
	if err != nil {
		return unavailableResult(ip, now), fmt.Errorf("create pinger: %w", err)
	}
	pinger.Count = p.cfg.PacketCount
	pinger.Timeout = time.Duration(p.cfg.PacketCount) * p.cfg.Timeout
	pinger.SetPrivileged(p.cfg.Privileged)

	if err := pinger.Run(); err != nil {
		return unavailableResult(ip, now), fmt.Errorf("run pinger: %w", err)
	}

	stats := pinger.Statistics()
	result := telemetry.PingResult{
		DeviceIP:    ip,
		PacketsSent: stats.PacketsSent,
		PacketsRecv: stats.PacketsRecv,
		LossPct:     stats.PacketLoss,
		Reachable:   stats.PacketsRecv >= 1,
		Timestamp:   now,
	}
	if stats.PacketsRecv > 0 {
		minMs := float64(stats.MinRtt) / float64(time.Millisecond)
		avgMs := float64(stats.AvgRtt) / float64(time.Millisecond)
		maxMs := float64(stats.MaxRtt) / float64(time.Millisecond)
		result.MinRTTMillis = &minMs
		result.AvgRTTMillis = &avgMs
		result.MaxRTTMillis = &maxMs
	}
	return result, nil
}

func unavailableResult(ip string, now time.Time) telemetry.PingResult {
	return telemetry.PingResult{
		DeviceIP:    ip,
		Reachable:   false,
		Unavailable: true,
		Timestamp:   now,
	}
}
