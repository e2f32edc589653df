package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fleetwatch/monitor/internal/cache"
	"github.com/fleetwatch/monitor/internal/domain/alert"
	platformerrors "github.com/fleetwatch/monitor/internal/platform/errors"

	"github.com/fleetwatch/monitor/internal/domain/device"
)

// deviceSummary decorates a Device row with its derived status string, the
// field spec §6's `GET /devices?...&status=` filters and returns on.
type deviceSummary struct {
	device.Device
	Status device.Status `json:"status"`
}

func (h *handlers) listDevices(w http.ResponseWriter, r *http.Request) {
	f := device.Filter{
		Region:       r.URL.Query().Get("region"),
		DeviceType:   r.URL.Query().Get("device_type"),
		Status:       device.Status(r.URL.Query().Get("status")),
		PingInterval: h.d.PingInterval,
	}
	if b := r.URL.Query().Get("branch"); b != "" {
		id, err := uuid.Parse(b)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_branch", "branch must be a UUID")
			return
		}
		f.BranchID = &id
	}

	devices, err := h.d.Registry.List(r.Context(), f)
	if err != nil {
		handleErr(w, err)
		return
	}

	now := time.Now().UTC()
	out := make([]deviceSummary, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceSummary{Device: *d, Status: d.CurrentStatus(h.d.PingInterval, now)})
	}
	writeJSON(w, http.StatusOK, out)
}

// deviceDetailResponse is the §6 "full device detail" shape: the device row
// plus its derived status, last observed ping, open alerts, and monitored
// items — none of which live on the Device row itself.
type deviceDetailResponse struct {
	device.Device
	Status         device.Status            `json:"status"`
	LastPing       *lastPingSummary         `json:"last_ping,omitempty"`
	ActiveAlerts   []*alert.History         `json:"active_alerts"`
	MonitoredItems []*device.MonitoringItem `json:"monitored_items"`
}

type lastPingSummary struct {
	Timestamp *time.Time `json:"timestamp"`
	RTTMillis *float64   `json:"rtt_ms"`
	Reachable bool       `json:"reachable"`
}

func (h *handlers) getDevice(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "deviceID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	dev, err := h.d.Registry.Get(r.Context(), id)
	if err != nil {
		handleErr(w, err)
		return
	}

	items, err := h.d.Registry.ItemsForDevice(r.Context(), id)
	if err != nil {
		items = nil
	}

	var activeAlerts []*alert.History
	if h.d.AlertStore != nil {
		history, err := h.d.AlertStore.ListHistory(r.Context(), &id, 0)
		if err == nil {
			for _, a := range history {
				if a.Open() {
					activeAlerts = append(activeAlerts, a)
				}
			}
		}
	}

	resp := deviceDetailResponse{
		Device:         *dev,
		Status:         dev.CurrentStatus(h.d.PingInterval, time.Now().UTC()),
		ActiveAlerts:   activeAlerts,
		MonitoredItems: items,
	}
	if dev.LastCheck != nil {
		resp.LastPing = &lastPingSummary{
			Timestamp: dev.LastCheck,
			RTTMillis: dev.LastRTTMillis,
			Reachable: dev.DownSince == nil,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// deviceCreateRequest carries the device fields plus an optional plaintext
// SNMP secret, which is encrypted with h.d.EncryptionKey before any
// persistence and never echoed back (spec §4.4).
type deviceCreateRequest struct {
	device.Device
	SNMPCommunity string `json:"snmp_community,omitempty"`
	SNMPAuthPass  string `json:"snmp_auth_pass,omitempty"`
	SNMPPrivPass  string `json:"snmp_priv_pass,omitempty"`
}

func (h *handlers) createDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed request body")
		return
	}
	if req.IP == "" {
		writeError(w, http.StatusBadRequest, "missing_ip", "ip is required")
		return
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	dev := req.Device
	if err := h.d.Registry.Create(r.Context(), &dev); err != nil {
		handleErr(w, err)
		return
	}

	if err := h.storeCredentialIfPresent(r, dev.ID, req); err != nil {
		handleErr(w, err)
		return
	}

	h.invalidateDeviceCaches(r)
	writeJSON(w, http.StatusCreated, dev)
}

func (h *handlers) updateDevice(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "deviceID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	var req deviceCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed request body")
		return
	}
	dev := req.Device
	dev.ID = id
	if err := h.d.Registry.Update(r.Context(), &dev); err != nil {
		handleErr(w, err)
		return
	}
	if err := h.storeCredentialIfPresent(r, dev.ID, req); err != nil {
		handleErr(w, err)
		return
	}
	h.invalidateDeviceCaches(r)
	writeJSON(w, http.StatusOK, dev)
}

func (h *handlers) deleteDevice(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "deviceID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	if err := h.d.Registry.Delete(r.Context(), id); err != nil {
		handleErr(w, err)
		return
	}
	h.invalidateDeviceCaches(r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listInterfaces(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "deviceID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	ifaces, err := h.d.Registry.InterfacesForDevice(r.Context(), id)
	if err != nil {
		handleErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ifaces)
}

// bulkImportRequest is a JSON array of devices; row numbers are assigned by
// array position so BulkImport's per-row error report is positional, not
// content-addressed.
type bulkImportRequest struct {
	Devices []device.Device `json:"devices"`
}

func (h *handlers) bulkImportDevices(w http.ResponseWriter, r *http.Request) {
	var req bulkImportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed request body")
		return
	}
	rows := make([]device.ImportRow, len(req.Devices))
	for i, d := range req.Devices {
		rows[i] = device.ImportRow{RowNumber: i + 1, Device: d}
	}
	result, err := device.BulkImport(r.Context(), h.d.Registry, rows)
	if err != nil {
		handleErr(w, err)
		return
	}
	h.invalidateDeviceCaches(r)
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) storeCredentialIfPresent(r *http.Request, deviceID uuid.UUID, req deviceCreateRequest) error {
	if req.SNMPCommunity == "" && req.SNMPAuthPass == "" && req.SNMPPrivPass == "" {
		return nil
	}
	if len(h.d.EncryptionKey) == 0 {
		return platformerrors.New(platformerrors.KindValidation, "encryption_unconfigured", "credential storage is unavailable: no encryption key configured")
	}

	cred, err := h.d.Registry.CredentialForDevice(r.Context(), deviceID)
	if err != nil || cred == nil {
		cred = &device.SNMPCredential{DeviceID: deviceID}
	}

	var encErr error
	if req.SNMPCommunity != "" {
		cred.CommunityEncrypted, encErr = device.EncryptSecret(h.d.EncryptionKey, deviceID, "community", req.SNMPCommunity)
	}
	if encErr == nil && req.SNMPAuthPass != "" {
		cred.AuthEncrypted, encErr = device.EncryptSecret(h.d.EncryptionKey, deviceID, "auth", req.SNMPAuthPass)
	}
	if encErr == nil && req.SNMPPrivPass != "" {
		cred.PrivEncrypted, encErr = device.EncryptSecret(h.d.EncryptionKey, deviceID, "priv", req.SNMPPrivPass)
	}
	if encErr != nil {
		return platformerrors.Wrap(platformerrors.KindInvariant, "credential_encrypt_failed", "failed to seal SNMP credential", encErr)
	}

	return h.d.Registry.UpsertCredential(r.Context(), cred)
}

func (h *handlers) invalidateDeviceCaches(r *http.Request) {
	if h.d.Cache == nil {
		return
	}
	_ = h.d.Cache.InvalidatePrefix(r.Context(), cache.KeyDeviceList)
	_ = h.d.Cache.Invalidate(r.Context(), cache.KeyDashboardStats)
}

func parseUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errInvalidID(param)
	}
	return id, nil
}

type errInvalidID string

func (e errInvalidID) Error() string { return string(e) + " must be a UUID" }
