package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/fleetwatch/monitor/internal/domain/alert"
)

// listAlerts supports spec §4.9/§6's
// "GET /alerts?severity=&device_id=&status=active|all&limit=" plus a branch
// filter. status defaults to "active" (open alerts only); "all" includes
// resolved history up to limit.
func (h *handlers) listAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var deviceID *uuid.UUID
	if raw := q.Get("device_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_device_id", "device_id must be a UUID")
			return
		}
		deviceID = &id
	}

	var branchID *uuid.UUID
	if raw := q.Get("branch"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_branch", "branch must be a UUID")
			return
		}
		branchID = &id
	}

	severity := alert.Severity(q.Get("severity"))

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 100
	}

	status := q.Get("status")
	if status == "" {
		status = "active"
	}

	var (
		history []*alert.History
		err     error
	)
	switch status {
	case "all":
		history, err = h.d.AlertStore.ListHistory(r.Context(), deviceID, limit)
	case "active":
		history, err = h.d.AlertStore.ListOpenHistory(r.Context())
		if err == nil && deviceID != nil {
			history = filterHistoryByDevice(history, *deviceID)
		}
	default:
		writeError(w, http.StatusBadRequest, "invalid_status", "status must be active or all")
		return
	}
	if err != nil {
		handleErr(w, err)
		return
	}

	if severity != "" {
		history = filterHistoryBySeverity(history, severity)
	}
	if branchID != nil {
		history, err = h.filterHistoryByBranch(r.Context(), history, *branchID)
		if err != nil {
			handleErr(w, err)
			return
		}
	}
	if status == "active" && len(history) > limit {
		history = history[:limit]
	}

	writeJSON(w, http.StatusOK, history)
}

func filterHistoryByDevice(in []*alert.History, deviceID uuid.UUID) []*alert.History {
	out := make([]*alert.History, 0, len(in))
	for _, h := range in {
		if h.DeviceID == deviceID {
			out = append(out, h)
		}
	}
	return out
}

func filterHistoryBySeverity(in []*alert.History, sev alert.Severity) []*alert.History {
	out := make([]*alert.History, 0, len(in))
	for _, h := range in {
		if h.Severity == sev {
			out = append(out, h)
		}
	}
	return out
}

// filterHistoryByBranch narrows history rows to devices in branchID.
// History carries a device id, not a branch, so this resolves branch
// membership per distinct device rather than joining in the store.
func (h *handlers) filterHistoryByBranch(ctx context.Context, in []*alert.History, branchID uuid.UUID) ([]*alert.History, error) {
	belongs := make(map[uuid.UUID]bool)
	out := make([]*alert.History, 0, len(in))
	for _, hist := range in {
		matches, ok := belongs[hist.DeviceID]
		if !ok {
			dev, err := h.d.Registry.Get(ctx, hist.DeviceID)
			if err != nil {
				return nil, err
			}
			matches = dev.BranchID != nil && *dev.BranchID == branchID
			belongs[hist.DeviceID] = matches
		}
		if matches {
			out = append(out, hist)
		}
	}
	return out, nil
}

type acknowledgeRequest struct {
	By string `json:"by"`
}

func (h *handlers) acknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "alertID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	var req acknowledgeRequest
	if err := decodeJSON(r, &req); err != nil || req.By == "" {
		writeError(w, http.StatusBadRequest, "missing_by", "by is required")
		return
	}
	if err := h.d.AlertEngine.Acknowledge(r.Context(), id, req.By); err != nil {
		handleErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listAlertRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.d.AlertStore.ListRules(r.Context())
	if err != nil {
		handleErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

// alertRuleRequest accepts Expression and derives Condition server-side via
// ParseCondition, the same as every other write path for a Rule — clients
// never send a pre-parsed Condition.
type alertRuleRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Expression  string         `json:"expression"`
	Severity    alert.Severity `json:"severity"`
	Enabled     bool           `json:"enabled"`
	ScopeKind   alert.ScopeKind `json:"scope_kind"`
	ScopeValue  string         `json:"scope_value"`
}

func (h *handlers) createAlertRule(w http.ResponseWriter, r *http.Request) {
	var req alertRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed request body")
		return
	}
	cond, err := alert.ParseCondition(req.Expression)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_expression", err.Error())
		return
	}
	rule := &alert.Rule{
		ID: uuid.New(), Name: req.Name, Description: req.Description, Expression: req.Expression,
		Condition: cond, Severity: req.Severity, Enabled: req.Enabled,
		ScopeKind: req.ScopeKind, ScopeValue: req.ScopeValue,
	}
	if err := h.d.AlertStore.CreateRule(r.Context(), rule); err != nil {
		handleErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (h *handlers) updateAlertRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "ruleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	var req alertRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed request body")
		return
	}
	cond, err := alert.ParseCondition(req.Expression)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_expression", err.Error())
		return
	}
	rule := &alert.Rule{
		ID: id, Name: req.Name, Description: req.Description, Expression: req.Expression,
		Condition: cond, Severity: req.Severity, Enabled: req.Enabled,
		ScopeKind: req.ScopeKind, ScopeValue: req.ScopeValue,
	}
	if err := h.d.AlertStore.UpdateRule(r.Context(), rule); err != nil {
		handleErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *handlers) deleteAlertRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "ruleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	if err := h.d.AlertStore.DeleteRule(r.Context(), id); err != nil {
		handleErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
