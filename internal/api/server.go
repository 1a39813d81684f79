package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-twin-core/internal/filerepo"
	"github.com/nerrad567/gray-twin-core/internal/infrastructure/config"
	"github.com/nerrad567/gray-twin-core/internal/infrastructure/logging"
	"github.com/nerrad567/gray-twin-core/internal/pagination"
	"github.com/nerrad567/gray-twin-core/internal/shell"
	"github.com/nerrad567/gray-twin-core/internal/submodel"
	"github.com/nerrad567/gray-twin-core/internal/submodel/idshort"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// SubmodelService is the submodel repository as seen by the handlers.
// *submodel.Repository and *eventing.Notifier implement it.
type SubmodelService interface {
	ListSubmodels(ctx context.Context, info pagination.Info) (pagination.Result[*submodel.Submodel], error)
	ListSubmodelsBySemanticID(ctx context.Context, semanticID string, info pagination.Info) (pagination.Result[*submodel.Submodel], error)
	GetSubmodel(ctx context.Context, id string) (*submodel.Submodel, error)
	GetSubmodelMetadata(ctx context.Context, id string) (*submodel.Submodel, error)
	GetSubmodelValueOnly(ctx context.Context, id string) (map[string]any, error)
	CreateSubmodel(ctx context.Context, sm *submodel.Submodel) error
	UpdateSubmodel(ctx context.Context, id string, sm *submodel.Submodel) error
	DeleteSubmodel(ctx context.Context, id string) error

	ListElements(ctx context.Context, id string, info pagination.Info) (pagination.Result[*submodel.Element], error)
	GetElement(ctx context.Context, id string, path idshort.Path) (*submodel.Element, error)
	CreateElement(ctx context.Context, id string, e *submodel.Element) error
	CreateNestedElement(ctx context.Context, id string, parent idshort.Path, e *submodel.Element) error
	UpdateElement(ctx context.Context, id string, path idshort.Path, e *submodel.Element) error
	DeleteElement(ctx context.Context, id string, path idshort.Path) error
	PatchElements(ctx context.Context, id string, elements []*submodel.Element) ([]string, error)

	GetElementValue(ctx context.Context, id string, path idshort.Path) (any, error)
	SetElementValue(ctx context.Context, id string, path idshort.Path, raw json.RawMessage) error

	GetFile(ctx context.Context, id string, path idshort.Path) (filerepo.File, error)
	SetFile(ctx context.Context, id string, path idshort.Path, fileName, contentType string, data []byte) error
	DeleteFile(ctx context.Context, id string, path idshort.Path) error
}

// HealthChecker is implemented by infrastructure clients reported on
// the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Logger    *logging.Logger
	Submodels SubmodelService
	Shells    shell.Repository // optional; shell routes answer 404 without it
	Hub       *Hub             // If set, the server uses this hub instead of creating its own
	// Checks are reported by /health under their map key.
	Checks  map[string]HealthChecker
	Stats   DBStatsProvider    // optional
	Events  EventStatsProvider // optional
	History HistoryReader      // optional; history routes answer 404 without it
	Version string
}

// Server is the HTTP API server for the submodel repository.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	submodels   SubmodelService
	shells      shell.Repository
	checks      map[string]HealthChecker
	stats       DBStatsProvider
	events      EventStatsProvider
	history     HistoryReader
	version     string
	startTime   time.Time
	server      *http.Server
	listener    net.Listener
	done        chan struct{}
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, submodel service)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Submodels == nil {
		return nil, fmt.Errorf("submodel service is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		submodels: deps.Submodels,
		shells:    deps.Shells,
		checks:    deps.Checks,
		stats:     deps.Stats,
		events:    deps.Events,
		history:   deps.History,
		version:   deps.Version,
		startTime: time.Now(),
	}

	// The hub is usually created by main so the event notifier can
	// broadcast to it before the server starts.
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(s.wsCfg, s.logger)
	}

	return s, nil
}

// Hub returns the WebSocket hub events are broadcast on.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in the background until Close.
// Binding happens before Start returns, so an address in use is
// reported here rather than logged later.
//
// Parameters:
//   - ctx: Parent of the context that runs an internally created hub
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("binding API listener: %w", err)
	}
	s.listener = ln

	var hubCtx context.Context
	hubCtx, s.cancel = context.WithCancel(ctx)
	if !s.externalHub {
		go s.hub.Run(hubCtx)
	}

	to := s.cfg.Timeouts
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       to.ReadTimeout(),
		ReadHeaderTimeout: to.ReadTimeout(),
		WriteTimeout:      to.WriteTimeout(),
		IdleTimeout:       to.IdleTimeout(),
	}

	s.done = make(chan struct{})
	go s.serve(ln)
	return nil
}

func (s *Server) serve(ln net.Listener) {
	defer close(s.done)

	var err error
	if s.cfg.TLS.Enabled {
		s.logger.Info("API server listening", "address", ln.Addr().String(), "tls", true)
		err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	} else {
		s.logger.Info("API server listening", "address", ln.Addr().String())
		err = s.server.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("API server stopped", "error", err)
	}
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close drains in-flight requests for up to gracefulShutdownTimeout and
// waits for the serve loop to exit.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)
	<-s.done
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck dials the bound address.
func (s *Server) HealthCheck(ctx context.Context) error {
	addr := s.Addr()
	if addr == "" {
		return errors.New("api server not started")
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	return conn.Close()
}
