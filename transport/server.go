package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Ninjaclasher/hidrateapp-server/core"
	"github.com/go-chi/chi/v5"
	glog "github.com/goliatone/go-logger/glog"
)

// Server serves the full API surface over HTTP.
type Server struct {
	service     *core.Service
	credentials core.CredentialsConfig
	logger      core.Logger
	router      chi.Router
	httpServer  *http.Server
	address     string
}

func NewServer(cfg core.Config, service *core.Service, logger core.Logger) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("transport: service is required")
	}
	if logger == nil {
		logger = glog.Nop()
	}
	s := &Server{
		service:     service,
		credentials: cfg.Credentials,
		logger:      logger,
		address:     cfg.Server.Address,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening", "address", s.address)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.HandleFunc("/", s.handleHome)

	r.Route("/parse", func(r chi.Router) {
		r.Handle("/config", s.guard(s.handleConfig))

		r.Handle("/users", s.guard(s.handleUsers))
		r.Handle("/users/", s.guard(s.handleUsers))
		r.Handle("/users/{id}", s.guard(s.handleUserDetail))
		r.Handle("/login", s.guard(s.handleLogin))
		r.Handle("/logout", s.guard(s.handleLogout))

		for _, event := range []string{
			"AppOpened",
			"setManualGoal",
			"viewPreviousDay",
			"previousDay",
			"addBottle",
			"unpairBottle",
			"logout",
		} {
			r.HandleFunc("/events/"+event, handleEmpty)
		}

		r.Route("/functions", func(r chi.Router) {
			r.Handle("/userexists/", s.guard(s.handleUserExists))
			r.Handle("/canaddbottle", s.guard(s.handleCanAddBottle))
			r.Handle("/getmyglows", s.guard(s.handleMyGlows))
			r.Handle("/saveglow", s.guard(s.handleSaveGlow))
			r.Handle("/deleteglow", s.guard(s.handleDeleteGlow))
			r.Handle("/calculatedaytotal", s.guard(s.handleCalculateDayTotal))

			for _, fn := range []string{
				"listfirmware",
				"getuserads",
				"getusergroups",
				"getmyfriends",
				"getmyawards",
				"getmychallenges",
				"getclosedchallenges",
				"getjoinablechallenges",
				"trophyanalytics",
			} {
				r.HandleFunc("/"+fn, handleEmpty)
			}
		})

		r.Route("/classes", func(r chi.Router) {
			r.Handle("/_Installation", s.guard(s.handleInstallations))
			r.Handle("/_Installation/", s.guard(s.handleInstallations))
			r.Handle("/_Installation/{id}", s.guard(s.handleInstallationDetail))
			r.Handle("/_User", s.guard(s.handleUsers))
			r.Handle("/_User/", s.guard(s.handleUsers))
			r.Handle("/_User/{id}", s.guard(s.handleUserDetail))
			r.Handle("/Sip", s.guard(s.handleSips))
			r.Handle("/Sip/", s.guard(s.handleSips))
			r.Handle("/Sip/{id}", s.guard(s.handleSipDetail))
			r.Handle("/Bottle", s.guard(s.handleBottles))
			r.Handle("/Bottle/", s.guard(s.handleBottles))
			r.Handle("/Bottle/{id}", s.guard(s.handleBottleDetail))
			r.Handle("/Location", s.guard(s.handleLocations))
			r.Handle("/Location/", s.guard(s.handleLocations))
			r.Handle("/Location/{id}", s.guard(s.handleLocationDetail))
			r.Handle("/Day", s.guard(s.handleDays))
			r.Handle("/Day/", s.guard(s.handleDays))
			r.Handle("/Day/{id}", s.guard(s.handleDayDetail))
			r.Handle("/UserHealthStats", s.guard(s.handleHealthStats))
			r.Handle("/UserHealthStats/{id}", s.guard(s.handleHealthStatsDetail))
		})
	})

	return r
}
