// Package transport exposes the object pipeline over HTTP with the wire
// conventions mobile clients expect: credential headers, a JSON body on
// every verb, and an in-body verb override for clients restricted to
// GET and POST.
package transport

import (
	"encoding/json"
	"net/http"

	"github.com/Ninjaclasher/hidrateapp-server/core"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := core.Envelope(err)
	if !core.IsAPIError(err) {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, body)
}
