// Package httpapi implements C9's HTTP surface (spec §6): device/branch
// CRUD and bulk import, alert listing/acknowledgement, dashboard stats, the
// WebSocket upgrade endpoint, and the health/metrics probes ops tooling
// hits directly.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fleetwatch/monitor/internal/alertengine"
	"github.com/fleetwatch/monitor/internal/broadcaster"
	"github.com/fleetwatch/monitor/internal/cache"
	"github.com/fleetwatch/monitor/internal/diagnostics"
	"github.com/fleetwatch/monitor/internal/domain/alert"
	"github.com/fleetwatch/monitor/internal/domain/device"
	"github.com/fleetwatch/monitor/internal/platform/logger"
	"github.com/fleetwatch/monitor/internal/platform/metrics"
	"github.com/fleetwatch/monitor/internal/platform/ratelimit"
	"github.com/fleetwatch/monitor/internal/status"
)

// Deps wires every collaborator a handler needs. Fields may be nil in tests
// that only exercise a subset of routes.
type Deps struct {
	Registry    device.Registry
	AlertStore  alert.Store
	AlertEngine *alertengine.Engine
	Status      *status.Engine
	Cache       cache.Cache
	Hub         *broadcaster.Hub
	Diagnostics *diagnostics.Runner
	Metrics     *metrics.Metrics
	Log         *logger.Logger

	EncryptionKey []byte

	// PingInterval is the configured probe cadence, used to derive
	// Device.CurrentStatus's "stale" boundary (spec §7, `last_check > 3x
	// interval`) on every device read path.
	PingInterval time.Duration

	RequestsPerMinute int

	// Health reports additional subsystem liveness (DB ping, cache ping,
	// telemetry backend reachability); nil entries are skipped.
	HealthCheckers map[string]func() error
}

// NewRouter builds the full chi router: middleware stack, then every route
// group.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Log))
	r.Use(recoverer(d.Log))
	r.Use(corsMiddleware)
	r.Use(middleware.Timeout(30 * time.Second))

	if d.RequestsPerMinute > 0 {
		r.Use(rateLimitMiddleware(ratelimit.New(d.RequestsPerMinute)))
	}

	h := &handlers{d: d}

	r.Get("/health", h.health)
	if d.Metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", h.listDevices)
			r.Post("/", h.createDevice)
			r.Post("/bulk/import", h.bulkImportDevices)
			r.Route("/{deviceID}", func(r chi.Router) {
				r.Get("/", h.getDevice)
				r.Put("/", h.updateDevice)
				r.Delete("/", h.deleteDevice)
				r.Get("/interfaces", h.listInterfaces)
			})
		})

		r.Route("/branches", func(r chi.Router) {
			r.Get("/", h.listBranches)
			r.Post("/", h.createBranch)
			r.Delete("/{branchID}", h.deleteBranch)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.listAlerts)
			r.Route("/rules", func(r chi.Router) {
				r.Get("/", h.listAlertRules)
				r.Post("/", h.createAlertRule)
				r.Put("/{ruleID}", h.updateAlertRule)
				r.Delete("/{ruleID}", h.deleteAlertRule)
			})
			r.Post("/{alertID}/acknowledge", h.acknowledgeAlert)
		})

		r.Get("/dashboard/stats", h.dashboardStats)

		if d.Diagnostics != nil {
			r.Route("/diagnostics", func(r chi.Router) {
				r.Post("/ping", h.diagnosePing)
				r.Post("/traceroute", h.diagnoseTraceroute)
				r.Post("/mtr", h.diagnoseMTR)
				r.Post("/dns-lookup", h.diagnoseDNSLookup)
				r.Post("/portscan", h.diagnosePortScan)
			})
		}
	})

	if d.Hub != nil {
		r.Get("/ws", d.Hub.ServeHTTP)
	}

	return r
}

type handlers struct {
	d Deps
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	details := map[string]string{}
	for name, check := range h.d.HealthCheckers {
		if check == nil {
			continue
		}
		if err := check(); err != nil {
			status = "degraded"
			details[name] = err.Error()
		} else {
			details[name] = "ok"
		}
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": details})
}
