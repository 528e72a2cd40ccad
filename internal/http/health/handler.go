// Package health reports liveness on the operational listener.
package health

import (
	"encoding/json"
	"net/http"
)

// Path is mounted next to /metrics, never on the application listener.
const Path = "/healthz"

// Response is the payload for the health endpoint.
type Response struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Handler reports the process as up along with the running build version.
func Handler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(Response{Status: "ok", Version: version})
	}
}
