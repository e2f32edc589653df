package httpapi

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/fleetwatch/monitor/internal/domain/device"
)

func (h *handlers) listBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.d.Registry.ListBranches(r.Context())
	if err != nil {
		handleErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, branches)
}

func (h *handlers) createBranch(w http.ResponseWriter, r *http.Request) {
	var b device.Branch
	if err := decodeJSON(r, &b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed request body")
		return
	}
	if b.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_name", "name is required")
		return
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if err := h.d.Registry.CreateBranch(r.Context(), &b); err != nil {
		handleErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *handlers) deleteBranch(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "branchID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	cascade, _ := strconv.ParseBool(r.URL.Query().Get("cascade"))
	if err := h.d.Registry.DeleteBranch(r.Context(), id, cascade); err != nil {
		handleErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
