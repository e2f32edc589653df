package broadcaster

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fleetwatch/monitor/internal/domain/alert"
	"github.com/fleetwatch/monitor/internal/status"
)

// statusChangeItem is one entry of a status_change event's `changes` array
// (spec §4.9): `{device_id, ip, hostname, old_status, new_status,
// timestamp}`.
type statusChangeItem struct {
	DeviceID  uuid.UUID `json:"device_id"`
	IP        string    `json:"ip"`
	Hostname  string    `json:"hostname"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	Timestamp time.Time `json:"timestamp"`
}

// statusChangeMessage is the exact top-level status_change wire shape
// (spec §4.9): `{type: "status_change", changes: [...]}`, no extra fields.
type statusChangeMessage struct {
	Type    string             `json:"type"`
	Changes []statusChangeItem `json:"changes"`
}

// PublishTransition converts a status.Transition into a status_change
// change item, resolving the device's ip/hostname via the registry, and
// queues it for the next coalescing flush. Intended to be wired directly
// as a scheduler.OnTransition callback.
func (h *Hub) PublishTransition(ctx context.Context, tr status.Transition) {
	item := statusChangeItem{
		DeviceID:  tr.DeviceID,
		OldStatus: string(tr.From),
		NewStatus: string(tr.To),
		Timestamp: tr.Timestamp,
	}
	if h.registry != nil {
		if dev, err := h.registry.Get(ctx, tr.DeviceID); err == nil && dev != nil {
			item.IP = dev.IP
			item.Hostname = dev.Hostname
		}
	}
	h.queueChange(item)
}

// alertPayload is the wire shape for an alert_fired/alert_resolved event.
type alertPayload struct {
	ID          uuid.UUID      `json:"id"`
	DeviceID    uuid.UUID      `json:"device_id"`
	InterfaceID *uuid.UUID     `json:"interface_id,omitempty"`
	Severity    alert.Severity `json:"severity"`
	Message     string         `json:"message"`
}

// PublishAlertFired announces a newly opened alert.
func (h *Hub) PublishAlertFired(hist *alert.History) {
	h.Publish("alert_fired", alertPayload{
		ID: hist.ID, DeviceID: hist.DeviceID, InterfaceID: hist.InterfaceID,
		Severity: hist.Severity, Message: hist.Message,
	})
}

// PublishAlertResolved announces an alert clearing.
func (h *Hub) PublishAlertResolved(hist *alert.History) {
	h.Publish("alert_resolved", alertPayload{
		ID: hist.ID, DeviceID: hist.DeviceID, InterfaceID: hist.InterfaceID,
		Severity: hist.Severity, Message: hist.Message,
	})
}
