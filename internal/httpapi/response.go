package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	platformerrors "github.com/fleetwatch/monitor/internal/platform/errors"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

// handleErr maps a ServiceError to its declared HTTP status; any other
// error is treated as an unclassified internal failure rather than leaking
// its text to the client.
func handleErr(w http.ResponseWriter, err error) {
	var svcErr *platformerrors.ServiceError
	if errors.As(err, &svcErr) {
		writeError(w, svcErr.HTTPStatus, svcErr.Code, svcErr.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
