package alertengine

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetwatch/monitor/internal/domain/alert"
	"github.com/fleetwatch/monitor/internal/domain/device"
)

// syncDeviceRule evaluates a device-scoped rule against one device's
// current state and recent metrics, firing or resolving its fingerprint's
// History row to match. idx is the cycle's single batch-fetched snapshot of
// open history (spec §4.7); no store lookup happens here.
func (e *Engine) syncDeviceRule(ctx context.Context, rule *alert.Rule, dev *device.Device, idx openIndex) {
	matched, snapshot := evaluateDeviceCondition(rule.Condition, dev, e.metricsFor(dev.ID))
	fp := alert.Fingerprint{RuleID: &rule.ID, DeviceID: dev.ID}
	if matched {
		e.fire(ctx, rule, fp, dev.ID, nil, "", snapshot, idx[fp])
	} else {
		e.resolve(ctx, idx[fp])
	}
}

// syncInterfaceRule evaluates an interface-scoped rule against one
// interface of one device, against the same batch-fetched idx.
func (e *Engine) syncInterfaceRule(ctx context.Context, rule *alert.Rule, dev *device.Device, iface *device.Interface, idx openIndex) {
	matched, provider, snapshot := evaluateInterfaceCondition(rule.Condition, iface)
	fp := alert.Fingerprint{RuleID: &rule.ID, DeviceID: dev.ID, InterfaceID: &iface.ID}
	if matched {
		e.fire(ctx, rule, fp, dev.ID, &iface.ID, provider, snapshot, idx[fp])
	} else {
		e.resolve(ctx, idx[fp])
	}
}

// evaluateDeviceCondition evaluates the subset of Condition kinds that only
// need device state and the device's latest metrics. It returns whether the
// condition holds and a human-readable value snapshot for the alert row.
func evaluateDeviceCondition(c alert.Condition, dev *device.Device, m deviceMetrics) (bool, string) {
	switch c.Kind {
	case alert.ConditionDeviceDown:
		return dev.DownSince != nil, "device unreachable"

	case alert.ConditionDeviceDownFor:
		if dev.DownSince == nil {
			return false, ""
		}
		since := time.Since(*dev.DownSince)
		threshold := time.Duration(c.DownForSeconds) * time.Second
		return since >= threshold, fmt.Sprintf("down for %s (threshold %s)", since.Round(time.Second), threshold)

	case alert.ConditionFlapping:
		return dev.IsFlapping, fmt.Sprintf("flap_count=%d", dev.FlapCount)

	case alert.ConditionHighLatency:
		if m.rttMs == nil {
			return false, ""
		}
		return *m.rttMs >= c.LatencyThresholdMillis, fmt.Sprintf("rtt=%.1fms (threshold %.1fms)", *m.rttMs, c.LatencyThresholdMillis)

	case alert.ConditionPacketLoss:
		return m.lossPct >= c.LossThresholdPct, fmt.Sprintf("loss=%.1f%% (threshold %.1f%%)", m.lossPct, c.LossThresholdPct)

	case alert.ConditionMetricThreshold:
		v, ok := m.snmp[c.OIDName]
		if !ok {
			return false, ""
		}
		return compare(v, c.Op, c.Threshold), fmt.Sprintf("%s=%.2f (%s %.2f)", c.OIDName, v, c.Op, c.Threshold)

	default:
		return false, ""
	}
}

// evaluateInterfaceCondition evaluates the two interface-scoped condition
// kinds. An admin-down interface never fires interface_oper_down: an
// operator's deliberate shutdown is not a fault (spec §4.7 distinguishing
// admin vs oper state).
func evaluateInterfaceCondition(c alert.Condition, iface *device.Interface) (matched bool, provider string, snapshot string) {
	switch c.Kind {
	case alert.ConditionInterfaceOperDown:
		if iface.AdminStatus == "down" {
			return false, "", ""
		}
		if c.NamePattern != nil && !c.NamePattern.MatchString(iface.IfName) {
			return false, "", ""
		}
		return iface.OperStatus == "down", "", fmt.Sprintf("if=%s oper=%s admin=%s", iface.IfName, iface.OperStatus, iface.AdminStatus)

	case alert.ConditionISPLinkDown:
		if iface.Classification != device.ClassISP || iface.ISPProvider != c.Provider {
			return false, "", ""
		}
		return iface.OperStatus == "down", iface.ISPProvider, fmt.Sprintf("isp=%s if=%s oper=%s", iface.ISPProvider, iface.IfName, iface.OperStatus)

	default:
		return false, "", ""
	}
}

func compare(v float64, op alert.Comparator, threshold float64) bool {
	switch op {
	case alert.OpGT:
		return v > threshold
	case alert.OpGE:
		return v >= threshold
	case alert.OpLT:
		return v < threshold
	case alert.OpLE:
		return v <= threshold
	case alert.OpEQ:
		return v == threshold
	default:
		return false
	}
}
