package telemetrystore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fleetwatch/monitor/internal/platform/errors"
	"github.com/fleetwatch/monitor/internal/platform/logger"
	"github.com/fleetwatch/monitor/internal/platform/metrics"
)

// Client submits samples to the external telemetry backend. Writes that
// exhaust retry are dropped, never blocking the caller — probing MUST
// continue through a telemetry outage (spec §4.5, §8 scenario 6).
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *circuitBreaker
	retryCfg   retryConfig
	metrics    *metrics.Metrics
	log        *logger.Logger

	buffer chan Sample
	done   chan struct{}
}

// Config configures the telemetry client and its bounded buffer.
type Config struct {
	BaseURL       string
	RequestTimeout time.Duration
	BufferSize    int
}

// New constructs a Client and starts its background flush loop. The
// in-memory buffer drops the oldest queued sample on overflow so a slow or
// down backend never backpressures the scheduler (spec §9).
func New(cfg Config, m *metrics.Metrics, log *logger.Logger) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    cfg.BaseURL,
		breaker:    newCircuitBreaker(5, 30*time.Second),
		retryCfg:   defaultRetryConfig(),
		metrics:    m,
		log:        log,
		buffer:     make(chan Sample, cfg.BufferSize),
		done:       make(chan struct{}),
	}
	go c.run()
	return c
}

// Submit enqueues a sample for asynchronous delivery. It never blocks on
// network I/O; if the buffer is full the oldest queued sample is dropped.
func (c *Client) Submit(s Sample) {
	select {
	case c.buffer <- s:
	default:
		select {
		case <-c.buffer:
		default:
		}
		select {
		case c.buffer <- s:
		default:
			c.metrics.TelemetrySamplesLost.Inc()
		}
	}
}

// Close stops the flush loop. Queued samples are dropped, not flushed, to
// bound shutdown time.
func (c *Client) Close() {
	close(c.done)
}

func (c *Client) run() {
	for {
		select {
		case s := <-c.buffer:
			c.deliver(s)
		case <-c.done:
			return
		}
	}
}

func (c *Client) deliver(s Sample) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.breaker.allow(); err != nil {
		c.metrics.TelemetrySamplesLost.Inc()
		return
	}

	err := retry(ctx, c.retryCfg, func() error {
		e := c.post(ctx, s)
		if e != nil {
			c.metrics.TelemetryWriteRetries.Inc()
		}
		return e
	})

	c.breaker.report(err == nil)
	if err != nil {
		c.metrics.TelemetrySamplesLost.Inc()
		c.log.With("metric", s.MetricName).WithError(errors.Wrap(errors.KindTransientIO, "telemetry_write_failed", "sample dropped after retry exhaustion", err)).
			Warn("telemetry sample dropped")
	}
}

func (c *Client) post(ctx context.Context, s Sample) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/samples", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retryableErr{err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return retryableErr{fmt.Errorf("telemetry backend returned %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("telemetry backend rejected sample: %d", resp.StatusCode)
	}
	return nil
}

// retryableErr marks transient network/5xx failures as retryable; 4xx
// client errors are not, since retrying them cannot succeed.
type retryableErr struct{ err error }

func (r retryableErr) Error() string { return r.err.Error() }
func (r retryableErr) Unwrap() error { return r.err }

func isRetryable(err error) bool {
	_, ok := err.(retryableErr)
	return ok
}
