package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fleetwatch/monitor/internal/cache"
	"github.com/fleetwatch/monitor/internal/domain/alert"
)

// dashboardStats is the landing-page aggregate (spec §6
// "GET /dashboard/stats"): device counts bucketed into online/offline/
// warning, plus open-alert totals. Computed fresh on a cache miss and
// cached for cache.TTLDashboardStats (spec §4.8).
type dashboardStats struct {
	Total          int       `json:"total"`
	Online         int       `json:"online"`
	Offline        int       `json:"offline"`
	Warning        int       `json:"warning"`
	UptimePct      float64   `json:"uptime_pct"`
	ActiveAlerts   int       `json:"active_alerts"`
	CriticalAlerts int       `json:"critical_alerts"`
	GeneratedAt    time.Time `json:"generated_at"`
}

func (h *handlers) dashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.d.Cache != nil {
		if raw, ok, err := h.d.Cache.Get(ctx, cache.KeyDashboardStats); err == nil && ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write(raw)
			return
		}
	}

	stats, err := h.computeDashboardStats(ctx)
	if err != nil {
		handleErr(w, err)
		return
	}

	body, err := json.Marshal(stats)
	if err == nil && h.d.Cache != nil {
		_ = h.d.Cache.Set(ctx, cache.KeyDashboardStats, body, cache.TTLDashboardStats)
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handlers) computeDashboardStats(ctx context.Context) (*dashboardStats, error) {
	devices, err := h.d.Registry.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	stats := &dashboardStats{GeneratedAt: time.Now().UTC()}
	stats.Total = len(devices)
	now := stats.GeneratedAt
	for _, d := range devices {
		switch d.DashboardBucket(h.d.PingInterval, now) {
		case "online":
			stats.Online++
		case "offline":
			stats.Offline++
		default:
			stats.Warning++
		}
	}
	if stats.Total > 0 {
		stats.UptimePct = float64(stats.Online) / float64(stats.Total) * 100
	} else {
		stats.UptimePct = 100
	}

	open, err := h.d.AlertStore.ListOpenHistory(ctx)
	if err != nil {
		return nil, err
	}
	stats.ActiveAlerts = len(open)
	for _, a := range open {
		if a.Severity == alert.SeverityCritical {
			stats.CriticalAlerts++
		}
	}

	return stats, nil
}
