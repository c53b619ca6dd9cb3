package transport

import (
	"fmt"
	"net/http"

	"github.com/Ninjaclasher/hidrateapp-server/core"
	"github.com/go-chi/chi/v5"
)

func (s *Server) respond(w http.ResponseWriter, r *http.Request, body map[string]any, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "success %s", r.Method)
}

// handleEmpty serves the analytics and social endpoints the clients call
// but the service does not implement. They acknowledge with an empty
// result set.
func handleEmpty(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusAccepted, map[string]any{
		"results": []any{},
		"result":  []any{},
	})
}

// configParams is the static client configuration payload.
var configParams = map[string]any{
	"iOSLatestVersion":                "2.1.7",
	"androidLatestVersion":            "2.2.25",
	"firmwareUpdateFractionAndroid":   1,
	"downloadAppUrl":                  "https://hidrate.page.link/friend",
	"androidPregnancySettings":        false,
	"natalModifier":                   1.25,
	"bottleVendors": map[string]any{
		"amazon":  "Amazon",
		"hidrate": "HidrateSpark.com",
		"target":  "Target",
		"apple":   "Apple",
	},
	"trophyShareUrl":                  "https://hidratesparktrophies.com/trophy/",
	"trophySign":                      "RANDOM",
	"iOSHideNFC":                      true,
	"androidNfcVersion":               "135",
	"androidTumblerPlasticVisibility": false,
	"hidePro":                         true,
	"androidNfcEnabled":               false,
}

var configMasterKeyOnly = map[string]any{
	"iOSLatestVersion":                false,
	"bottleVendors":                   false,
	"androidLatestVersion":            false,
	"trophyShareUrl":                  false,
	"trophySign":                      false,
	"iOSHideNFC":                      false,
	"androidNfcVersion":               false,
	"androidTumblerPlasticVisibility": false,
	"hidePro":                         false,
	"androidNfcEnabled":               false,
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	if req.method != http.MethodGet {
		s.writeError(w, r, core.ErrMethodNotAllowed())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"params":        configParams,
		"masterKeyOnly": configMasterKeyOnly,
	})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	switch req.method {
	case http.MethodPost:
		body, err := s.service.Signup(r.Context(), req.objectRequest(""))
		s.respond(w, r, body, err)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"results": []any{}})
	default:
		s.writeError(w, r, core.ErrMethodNotAllowed())
	}
}

func (s *Server) handleUserDetail(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	id := chi.URLParam(r, "id")
	switch req.method {
	case http.MethodGet:
		body, err := s.service.UserGet(r.Context(), req.objectRequest(id), req.token)
		s.respond(w, r, body, err)
	case http.MethodPut:
		body, err := s.service.Users().Update(r.Context(), req.objectRequest(id))
		s.respond(w, r, body, err)
	default:
		s.writeError(w, r, core.ErrMethodNotAllowed())
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	if req.method != http.MethodGet {
		s.writeError(w, r, core.ErrMethodNotAllowed())
		return
	}
	username, _ := req.body["username"].(string)
	password, _ := req.body["password"].(string)
	body, err := s.service.Login(r.Context(), username, password)
	s.respond(w, r, body, err)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	if req.method != http.MethodPost {
		s.writeError(w, r, core.ErrMethodNotAllowed())
		return
	}
	body, err := s.service.Logout(r.Context(), req.principal, req.token)
	s.respond(w, r, body, err)
}

func (s *Server) handleInstallations(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	if req.method != http.MethodPost {
		s.writeError(w, r, core.ErrMethodNotAllowed())
		return
	}
	body, err := s.service.Installations().Create(r.Context(), req.objectRequest(""))
	s.respond(w, r, body, err)
}

func (s *Server) handleInstallationDetail(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	s.handleDetail(w, r, req, s.service.Installations(), false)
}

func (s *Server) handleSips(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	s.handleCollection(w, r, req, s.service.Sips())
}

func (s *Server) handleSipDetail(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	s.handleDetail(w, r, req, s.service.Sips(), true)
}

func (s *Server) handleBottles(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	s.handleCollection(w, r, req, s.service.Bottles())
}

func (s *Server) handleBottleDetail(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	s.handleDetail(w, r, req, s.service.Bottles(), true)
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	if req.method != http.MethodPost {
		s.writeError(w, r, core.ErrMethodNotAllowed())
		return
	}
	body, err := s.service.Locations().Create(r.Context(), req.objectRequest(""))
	s.respond(w, r, body, err)
}

func (s *Server) handleLocationDetail(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	s.handleDetail(w, r, req, s.service.Locations(), true)
}

func (s *Server) handleDays(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	if req.method != http.MethodGet {
		s.writeError(w, r, core.ErrMethodNotAllowed())
		return
	}
	body, err := s.service.DayList(r.Context(), req.objectRequest(""))
	s.respond(w, r, body, err)
}

func (s *Server) handleDayDetail(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	s.handleDetail(w, r, req, s.service.Days(), true)
}

func (s *Server) handleHealthStats(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	if req.method != http.MethodGet {
		s.writeError(w, r, core.ErrMethodNotAllowed())
		return
	}
	body, err := s.service.HealthStatsList(r.Context(), req.objectRequest(""))
	s.respond(w, r, body, err)
}

func (s *Server) handleHealthStatsDetail(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	if req.method != http.MethodPut {
		s.writeError(w, r, core.ErrMethodNotAllowed())
		return
	}
	body, err := s.service.HealthStats().Update(r.Context(), req.objectRequest(chi.URLParam(r, "id")))
	s.respond(w, r, body, err)
}

// handleCollection covers the plain class list/create pair.
func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request, req *apiRequest, endpoint *core.Endpoint) {
	switch req.method {
	case http.MethodGet:
		body, err := endpoint.List(r.Context(), req.objectRequest(""))
		s.respond(w, r, body, err)
	case http.MethodPost:
		body, err := endpoint.Create(r.Context(), req.objectRequest(""))
		s.respond(w, r, body, err)
	default:
		s.writeError(w, r, core.ErrMethodNotAllowed())
	}
}

// handleDetail covers the per-object verbs. allowDelete is off for
// endpoints whose objects clients may read and update but never remove.
func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request, req *apiRequest, endpoint *core.Endpoint, allowDelete bool) {
	id := chi.URLParam(r, "id")
	switch req.method {
	case http.MethodGet:
		body, err := endpoint.Get(r.Context(), req.objectRequest(id))
		s.respond(w, r, body, err)
	case http.MethodPut:
		body, err := endpoint.Update(r.Context(), req.objectRequest(id))
		s.respond(w, r, body, err)
	case http.MethodDelete:
		if !allowDelete {
			s.writeError(w, r, core.ErrMethodNotAllowed())
			return
		}
		body, err := endpoint.Delete(r.Context(), req.objectRequest(id))
		s.respond(w, r, body, err)
	default:
		s.writeError(w, r, core.ErrMethodNotAllowed())
	}
}

func (s *Server) handleUserExists(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	if req.method != http.MethodPost {
		s.writeError(w, r, core.ErrMethodNotAllowed())
		return
	}
	email, present := req.param("email")
	body, err := s.service.UserExists(r.Context(), email, present)
	s.respond(w, r, body, err)
}

func (s *Server) handleCanAddBottle(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	if req.method != http.MethodPost {
		s.writeError(w, r, core.ErrMethodNotAllowed())
		return
	}
	writeJSON(w, http.StatusOK, s.service.CanAddBottle())
}

func (s *Server) handleMyGlows(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	if req.method != http.MethodGet && req.method != http.MethodPost {
		s.writeError(w, r, core.ErrMethodNotAllowed())
		return
	}
	body, err := s.service.MyGlows(r.Context(), req.objectRequest(""))
	s.respond(w, r, body, err)
}

func (s *Server) handleSaveGlow(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	if req.method != http.MethodPost {
		s.writeError(w, r, core.ErrMethodNotAllowed())
		return
	}
	body, err := s.service.SaveGlow(r.Context(), req.objectRequest(""))
	s.respond(w, r, body, err)
}

func (s *Server) handleDeleteGlow(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	if req.method != http.MethodPost && req.method != http.MethodDelete {
		s.writeError(w, r, core.ErrMethodNotAllowed())
		return
	}
	glowID, _ := req.param("glowId")
	body, err := s.service.DeleteGlow(r.Context(), req.principal, glowID)
	s.respond(w, r, body, err)
}

func (s *Server) handleCalculateDayTotal(w http.ResponseWriter, r *http.Request, req *apiRequest) {
	if req.method != http.MethodGet && req.method != http.MethodPost {
		s.writeError(w, r, core.ErrMethodNotAllowed())
		return
	}
	dayID, _ := req.param("dayId")
	body, err := s.service.CalculateDayTotal(r.Context(), req.principal, dayID)
	s.respond(w, r, body, err)
}
