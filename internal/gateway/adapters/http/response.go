package http

import (
	"encoding/json"
	"net/http"

	"github.com/teajhaney/shopstack-microservices/internal/platform/rpc"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeRaw relays a downstream reply without re-encoding it.
func writeRaw(w http.ResponseWriter, statusCode int, body json.RawMessage) {
	if len(body) == 0 {
		body = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

// writeError renders err as {code, message, details?} with its mapped status.
func writeError(w http.ResponseWriter, err error) {
	he := rpc.ToHTTP(err)
	writeJSON(w, he.Status, he.Body)
}
