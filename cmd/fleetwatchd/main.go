// Command fleetwatchd is the FleetWatch monitoring daemon: it wires the
// device registry, probe scheduler, alert engine, telemetry submission,
// WebSocket broadcaster, retention maintainer and HTTP API into one running
// process (spec §1 "single deployable service").
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	"github.com/fleetwatch/monitor/internal/alertengine"
	"github.com/fleetwatch/monitor/internal/broadcaster"
	"github.com/fleetwatch/monitor/internal/cache"
	"github.com/fleetwatch/monitor/internal/config"
	"github.com/fleetwatch/monitor/internal/diagnostics"
	"github.com/fleetwatch/monitor/internal/domain/alert"
	"github.com/fleetwatch/monitor/internal/domain/device"
	"github.com/fleetwatch/monitor/internal/httpapi"
	"github.com/fleetwatch/monitor/internal/platform/dbconn"
	"github.com/fleetwatch/monitor/internal/platform/logger"
	"github.com/fleetwatch/monitor/internal/platform/metrics"
	"github.com/fleetwatch/monitor/internal/prober"
	"github.com/fleetwatch/monitor/internal/retention"
	"github.com/fleetwatch/monitor/internal/scheduler"
	"github.com/fleetwatch/monitor/internal/snmp"
	"github.com/fleetwatch/monitor/internal/status"
	"github.com/fleetwatch/monitor/internal/telemetrystore"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: "stdout"})

	masterKey, err := loadMasterKey(cfg.EncryptionKeyHex)
	if err != nil {
		log.With("error", err).Error("fleetwatchd: invalid encryption key")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := dbconn.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.With("error", err).Error("fleetwatchd: failed to connect to postgres")
		os.Exit(1)
	}
	defer db.Close()
	dbconn.ConfigurePool(db, cfg.WorkerPoolSize)

	if err := dbconn.Migrate(db); err != nil {
		log.With("error", err).Error("fleetwatchd: failed to apply migrations")
		os.Exit(1)
	}
	sqlxDB := sqlx.NewDb(db, "postgres")

	registry := device.NewPostgresRegistry(sqlxDB)
	alertStore := alert.NewPostgresStore(sqlxDB)

	m := metrics.New()

	cacheClient, closeCache := buildCache(cfg, log)
	defer closeCache()

	telemetry := telemetrystore.New(telemetrystore.Config{
		BaseURL: cfg.TelemetryURL,
	}, m, log)
	defer telemetry.Close()

	statusEngine := status.NewEngine(m)
	probe := prober.New(prober.Config{
		PacketCount: cfg.ICMPPacketCount,
		Timeout:     cfg.ICMPTimeout,
	})
	snmpPoller := snmp.New(masterKey, snmp.SessionConfig{
		Retries: cfg.SNMPRetryMax,
	})
	diag := diagnostics.New(diagnostics.Config{}, probe)

	sched := scheduler.New(
		scheduler.Config{
			PingInterval:    cfg.PingInterval,
			WorkerPoolSize:  cfg.WorkerPoolSize,
			ICMPTimeout:     cfg.ICMPTimeout,
			ICMPPacketCount: cfg.ICMPPacketCount,
			SNMPTimeout:     cfg.ICMPTimeout,
		},
		registry,
		probe,
		snmpPoller,
		statusEngine,
		telemetry,
		m,
		log,
	)

	alertEngine := alertengine.New(alertStore, registry, cacheClient, m, log)

	hub := broadcaster.New(broadcaster.Config{
		HeartbeatInterval: cfg.WSHeartbeatInterval,
		HeartbeatTimeout:  cfg.WSHeartbeatTimeout,
		HandshakesPerMin:  cfg.WSHandshakesPerMin,
	}, registry, m, log)

	sched.OnTransition(func(tr status.Transition) {
		alertEngine.HandleTransition(ctx, tr)
		hub.PublishTransition(ctx, tr)
	})
	sched.OnSample(alertEngine.RecordSample)
	alertEngine.OnFired(hub.PublishAlertFired)
	alertEngine.OnResolved(hub.PublishAlertResolved)

	maintainer := retention.New(retention.Config{
		PingRetentionDays:  cfg.PingRetentionDays,
		AlertRetentionDays: cfg.AlertRetentionDays,
	}, nil, alertStore, log)
	if err := maintainer.Start(); err != nil {
		log.With("error", err).Error("fleetwatchd: failed to start retention scheduler")
		os.Exit(1)
	}
	defer maintainer.Stop()

	healthChecker := &retention.HealthChecker{
		DB:        pingerFunc(db.PingContext),
		Scheduler: sched,
	}
	if rc, ok := cacheClient.(*cache.RedisCache); ok {
		healthChecker.Cache = rc
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Registry:          registry,
		AlertStore:        alertStore,
		AlertEngine:       alertEngine,
		Status:            statusEngine,
		Cache:             cacheClient,
		Hub:               hub,
		Diagnostics:       diag,
		Metrics:           m,
		Log:               log,
		EncryptionKey:     masterKey,
		PingInterval:      cfg.PingInterval,
		RequestsPerMinute: 600,
		HealthCheckers:    healthChecker.Checks(),
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg workerGroup

	wg.spawn(func() { sched.Run(ctx) })
	wg.spawn(func() { runAlertEvalLoop(ctx, alertEngine, cfg.AlertEvalInterval, log) })
	wg.spawn(func() { runFlappingSweep(ctx, statusEngine, hub) })
	wg.spawn(func() {
		log.With("addr", cfg.ListenAddr).Info("fleetwatchd: listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.With("error", err).Error("fleetwatchd: http server failed")
		}
	})

	<-ctx.Done()
	log.Info("fleetwatchd: shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.With("error", err).Warn("fleetwatchd: http server shutdown error")
	}

	wg.wait()
	log.Info("fleetwatchd: stopped")
}

// workerGroup tracks background goroutines so main can wait for the
// scheduler's in-flight drain (spec §4.2) before exiting.
type workerGroup struct {
	done []chan struct{}
}

func (g *workerGroup) spawn(fn func()) {
	c := make(chan struct{})
	g.done = append(g.done, c)
	go func() {
		defer close(c)
		fn()
	}()
}

func (g *workerGroup) wait() {
	for _, c := range g.done {
		<-c
	}
}

// pingerFunc adapts db.PingContext to retention.Pinger without requiring
// retention to import database/sql.
type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func buildCache(cfg config.Config, log *logger.Logger) (cache.Cache, func()) {
	if cfg.CacheURL == "" {
		return cache.NewMemoryCache(time.Minute), func() {}
	}
	opts, err := redis.ParseURL(cfg.CacheURL)
	if err != nil {
		log.With("error", err).Warn("fleetwatchd: invalid cache URL, falling back to in-memory cache")
		return cache.NewMemoryCache(time.Minute), func() {}
	}
	client := redis.NewClient(opts)
	rc := cache.NewRedisCache(client)
	return rc, func() { client.Close() }
}

// runAlertEvalLoop re-evaluates every device/interface rule against the
// latest observed metrics on a fixed interval, catching threshold
// conditions that don't coincide with a status transition (spec §4.6).
func runAlertEvalLoop(ctx context.Context, engine *alertengine.Engine, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := engine.EvaluateAll(ctx); err != nil {
				log.With("error", err).Warn("fleetwatchd: alert evaluation cycle failed")
			}
		}
	}
}

// runFlappingSweep clears FLAPPING on devices with no transitions in the
// cooldown window and republishes their resolved state to connected
// WebSocket clients (spec §4.6 FLAPPING exit row).
func runFlappingSweep(ctx context.Context, engine *status.Engine, hub *broadcaster.Hub) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, tr := range engine.SweepFlapping(time.Now().UTC()) {
				hub.PublishTransition(ctx, tr)
			}
		}
	}
}

func loadMasterKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("FLEETWATCH_ENCRYPTION_KEY is required")
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}
