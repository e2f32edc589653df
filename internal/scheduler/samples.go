package scheduler

import (
	"github.com/google/uuid"

	"github.com/fleetwatch/monitor/internal/domain/device"
	"github.com/fleetwatch/monitor/internal/domain/telemetry"
	"github.com/fleetwatch/monitor/internal/telemetrystore"
)

func (s *Scheduler) submitPingSample(deviceID uuid.UUID, ip string, r telemetry.PingResult) {
	if r.Unavailable {
		return
	}
	if s.onSample != nil {
		s.onSample(deviceID, "ping_loss_pct", r.LossPct)
		if r.AvgRTTMillis != nil {
			s.onSample(deviceID, "ping_rtt_avg_ms", *r.AvgRTTMillis)
		}
	}
	if s.telemetry == nil {
		return
	}
	labels := map[string]string{"device_ip": ip}
	s.telemetry.Submit(telemetrystore.Sample{
		MetricName: "ping_loss_pct",
		Labels:     labels,
		Value:      r.LossPct,
		Timestamp:  r.Timestamp,
	})
	if r.AvgRTTMillis != nil {
		s.telemetry.Submit(telemetrystore.Sample{
			MetricName: "ping_rtt_avg_ms",
			Labels:     labels,
			Value:      *r.AvgRTTMillis,
			Timestamp:  r.Timestamp,
		})
	}
}

func (s *Scheduler) submitSNMPSamples(d *device.Device, result telemetry.SNMPPollResult) {
	labels := map[string]string{
		"device_ip":   d.IP,
		"device_name": d.Hostname,
	}
	for _, v := range result.Values {
		val, ok := numericValue(v)
		if !ok {
			continue
		}
		if s.onSample != nil {
			s.onSample(d.ID, v.Name, val)
		}
		if s.telemetry == nil {
			continue
		}
		itemLabels := make(map[string]string, len(labels)+1)
		for k, lv := range labels {
			itemLabels[k] = lv
		}
		itemLabels["oid_name"] = v.Name
		s.telemetry.Submit(telemetrystore.Sample{
			MetricName: "snmp_" + v.Name,
			Labels:     itemLabels,
			Value:      val,
			Timestamp:  v.Timestamp,
		})
	}
}

// numericValue reports the float-equivalent of a normalized SNMP value, or
// false for string-typed values that have no telemetry sample meaning.
func numericValue(v telemetry.SNMPValue) (float64, bool) {
	switch v.Type {
	case telemetry.KindInt:
		return float64(v.IntValue), true
	case telemetry.KindFloat:
		return v.FloatValue, true
	default:
		return 0, false
	}
}
