package httptransport

import (
	"encoding/json"
	"net/http"

	"seller-export-service/internal/service"
)

type errorBody struct {
	Code   service.FailCode `json:"code"`
	Reason string           `json:"reason"`
	Meta   map[string]any   `json:"meta,omitempty"`
}

type apiError struct {
	OK    bool      `json:"ok"`
	Error errorBody `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeFailure converts a service error into the structured error envelope
// with its taxonomy code and mapped status.
func writeFailure(w http.ResponseWriter, err error) {
	f := service.AsFailure(err)
	writeJSON(w, f.HTTPStatus(), apiError{
		Error: errorBody{Code: f.Code, Reason: f.Reason, Meta: f.Meta},
	})
}
