// Package telemetrystore implements C1: append-only ingestion of per-probe
// metric samples into an external time-series backend, over HTTP, with
// retry/backoff/jitter, circuit-breaking on sustained failure, and a
// bounded buffer so the telemetry path never blocks probing (spec §4.5,
// §9).
package telemetrystore

import "time"

// Sample is one labelled metric point (spec §3 "PingResult (telemetry)").
type Sample struct {
	MetricName string            `json:"metric_name"`
	Labels     map[string]string `json:"labels"`
	Value      float64           `json:"value"`
	Timestamp  time.Time         `json:"timestamp"`
}
