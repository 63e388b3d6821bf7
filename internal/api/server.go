// Package api serves the wall node's HTTP control surface: surfaces and
// their streams, the camera directory, PTZ focus and remote buttons, an
// event stream and a websocket frame viewer.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/gorilla/websocket"
	"github.com/smazurov/camwall/internal/api/models"
	"github.com/smazurov/camwall/internal/directory"
	"github.com/smazurov/camwall/internal/events"
	"github.com/smazurov/camwall/internal/logging"
	"github.com/smazurov/camwall/internal/ptz"
	"github.com/smazurov/camwall/internal/version"
	"github.com/smazurov/camwall/internal/video"
)

// Options wires the server to the running node. Manager is required;
// routes for a nil Directory or Dispatcher are not registered.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	CORS              *CORSConfig // DefaultCORSConfig when nil
	Manager           *video.StreamManager
	Directory         *directory.Store
	Dispatcher        *ptz.Dispatcher
	EventBus          *events.Bus
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
	Logger            *slog.Logger
}

// Server is the huma API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	upgrader   websocket.Upgrader

	manager    *video.StreamManager
	directory  *directory.Store
	dispatcher *ptz.Dispatcher
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer creates the API server on a Go 1.22 pattern mux.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	if opts.CORS != nil {
		corsConfig = *opts.CORS
	}
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("camwall API", version.String())
	config.Info.Description = "Camera video wall node: surfaces, streams and PTZ control"
	// Empty servers list makes OpenAPI use relative paths.
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("api")
	}

	bus := opts.EventBus
	if bus == nil {
		bus = events.New()
	}

	server := &Server{
		api:        api,
		mux:        mux,
		options:    opts,
		manager:    opts.Manager,
		directory:  opts.Directory,
		dispatcher: opts.Dispatcher,
		eventBus:   bus,
		logger:     logger,
	}
	server.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			return corsConfig.AllowsOrigin(r.Header.Get("Origin"))
		},
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(NewHTTPLoggingMiddleware(logging.GetLogger("http")))
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves on addr until Stop. It returns nil after a clean stop.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting camwall API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes the listener and every open connection, event streams and
// viewers included.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:    "ok",
				Message:   "API is healthy",
				Transport: s.manager.Transport().Name(),
				Surfaces:  len(s.manager.Surfaces()),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerSurfaceRoutes()
	if s.directory != nil {
		s.registerCameraRoutes()
	}
	if s.dispatcher != nil {
		s.registerPTZRoutes()
	}
	s.registerSSERoutes()
	s.mux.HandleFunc("GET /api/surfaces/{surface_id}/ws", s.handleSurfaceSocket)
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}

// mapStreamError converts stream manager errors to HTTP problems.
func mapStreamError(err error) error {
	var verr *video.Error
	if errors.As(err, &verr) {
		switch verr.Code {
		case video.CodeInvalidRequest:
			return huma.Error400BadRequest(verr.Message, err)
		case video.CodeResource:
			return huma.Error503ServiceUnavailable(verr.Message, err)
		}
	}
	return huma.Error500InternalServerError("internal server error", err)
}
