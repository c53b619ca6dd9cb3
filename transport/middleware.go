package transport

import (
	"crypto/subtle"
	"net/http"

	"github.com/Ninjaclasher/hidrateapp-server/core"
)

func secretMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// checkCredentials enforces the application header contract: the
// application id must match, along with at least one of the two API keys.
func (s *Server) checkCredentials(r *http.Request) error {
	creds := s.credentials
	appIDMatches := secretMatches(r.Header.Get(creds.ApplicationIDHeader), creds.ApplicationID)
	restKeyMatches := secretMatches(r.Header.Get(creds.RESTKeyHeader), creds.RESTKey)
	clientKeyMatches := secretMatches(r.Header.Get(creds.ClientKeyHeader), creds.ClientKey)

	if !(appIDMatches && (restKeyMatches || clientKeyMatches)) {
		return core.ErrUnauthorized()
	}
	return nil
}

// resolvePrincipal turns the session header into an account. A missing or
// stale token yields an anonymous request, never an error.
func (s *Server) resolvePrincipal(r *http.Request) (*core.User, string, error) {
	token := r.Header.Get(s.credentials.SessionHeader)
	principal, err := s.service.ResolvePrincipal(r.Context(), token)
	if err != nil {
		return nil, "", err
	}
	return principal, token, nil
}

// guard wraps an API handler with the credential check and request
// decoding every protected endpoint shares.
func (s *Server) guard(handler func(w http.ResponseWriter, r *http.Request, req *apiRequest)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.checkCredentials(r); err != nil {
			s.writeError(w, r, err)
			return
		}
		req, err := s.decodeRequest(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		handler(w, r, req)
	}
}
