package httpapi

import (
	"net/http"
)

// diagnosticRequest is the common body shape for every
// `POST /diagnostics/*` route (spec §6): a target host/IP, plus the
// port-scan-only `ports` field.
type diagnosticRequest struct {
	Target string `json:"target"`
	Ports  []int  `json:"ports,omitempty"`
}

func (h *handlers) diagnosePing(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDiagnosticRequest(w, r)
	if !ok {
		return
	}
	result, err := h.d.Diagnostics.Ping(r.Context(), req.Target)
	if err != nil {
		writeError(w, http.StatusBadGateway, "diagnostic_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) diagnoseTraceroute(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDiagnosticRequest(w, r)
	if !ok {
		return
	}
	result, err := h.d.Diagnostics.Traceroute(r.Context(), req.Target)
	if err != nil {
		writeError(w, http.StatusBadGateway, "diagnostic_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) diagnoseMTR(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDiagnosticRequest(w, r)
	if !ok {
		return
	}
	result, err := h.d.Diagnostics.MTR(r.Context(), req.Target)
	if err != nil {
		writeError(w, http.StatusBadGateway, "diagnostic_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) diagnoseDNSLookup(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDiagnosticRequest(w, r)
	if !ok {
		return
	}
	result, err := h.d.Diagnostics.DNSLookup(r.Context(), req.Target)
	if err != nil {
		writeError(w, http.StatusBadGateway, "diagnostic_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) diagnosePortScan(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDiagnosticRequest(w, r)
	if !ok {
		return
	}
	result, err := h.d.Diagnostics.PortScan(r.Context(), req.Target, req.Ports)
	if err != nil {
		writeError(w, http.StatusBadGateway, "diagnostic_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) decodeDiagnosticRequest(w http.ResponseWriter, r *http.Request) (diagnosticRequest, bool) {
	var req diagnosticRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed request body")
		return diagnosticRequest{}, false
	}
	if req.Target == "" {
		if target := r.URL.Query().Get("target"); target != "" {
			req.Target = target
		}
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "missing_target", "target is required")
		return diagnosticRequest{}, false
	}
	return req, true
}
