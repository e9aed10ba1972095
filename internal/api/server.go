package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-assistant/internal/audit"
	"github.com/nerrad567/gray-logic-assistant/internal/auth"
	"github.com/nerrad567/gray-logic-assistant/internal/device"
	"github.com/nerrad567/gray-logic-assistant/internal/fulfillment"
	"github.com/nerrad567/gray-logic-assistant/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-assistant/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// TokenEvents records token lifecycle events. Implemented by *influxdb.Client.
type TokenEvents interface {
	RecordTokenEvent(event string)
}

// ConnectionChecker reports transport connectivity for /metrics.
type ConnectionChecker interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Local     config.LocalAPIConfig
	Assistant config.AssistantConfig
	Logger    *logging.Logger

	Auth        *auth.Service
	Users       auth.UserRepository
	Fulfillment *fulfillment.Dispatcher
	Registry    *device.Registry

	// Optional.
	MQTT   ConnectionChecker
	Events TokenEvents
	Audit  audit.Repository

	Version string
}

// Server is the HTTP front of the bridge.
type Server struct {
	cfg         config.APIConfig
	localCfg    config.LocalAPIConfig
	assistant   config.AssistantConfig
	logger      *logging.Logger
	auth        *auth.Service
	users       auth.UserRepository
	fulfillment *fulfillment.Dispatcher
	registry    *device.Registry
	mqtt        ConnectionChecker
	events      TokenEvents
	audit       audit.Repository
	version     string
	startTime   time.Time

	server      *http.Server
	localServer *http.Server
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if deps.Fulfillment == nil {
		return nil, fmt.Errorf("fulfillment dispatcher is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	return &Server{
		cfg:         deps.Config,
		localCfg:    deps.Local,
		assistant:   deps.Assistant,
		logger:      deps.Logger,
		auth:        deps.Auth,
		users:       deps.Users,
		fulfillment: deps.Fulfillment,
		registry:    deps.Registry,
		mqtt:        deps.MQTT,
		events:      deps.Events,
		audit:       deps.Audit,
		version:     deps.Version,
		startTime:   time.Now(),
	}, nil
}

// Handler returns the main router.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// LocalHandler returns the router of the dedicated local listener.
func (s *Server) LocalHandler() http.Handler {
	return s.buildLocalRouter()
}

// Start begins listening for HTTP connections in background goroutines.
// The local listener starts only when the local API is enabled with a port
// of its own.
func (s *Server) Start(_ context.Context) error {
	s.server = s.newHTTPServer(fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port), s.buildRouter())
	go s.serve(s.server, s.cfg.TLS)

	if s.localCfg.Enabled && s.localCfg.Port != 0 && s.localCfg.Port != s.cfg.Port {
		s.localServer = s.newHTTPServer(fmt.Sprintf("%s:%d", s.localCfg.Host, s.localCfg.Port), s.buildLocalRouter())
		go s.serve(s.localServer, config.TLSConfig{})
	}
	return nil
}

func (s *Server) newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}
}

func (s *Server) serve(srv *http.Server, tls config.TLSConfig) {
	var err error
	if tls.Enabled {
		s.logger.Info("API server starting with TLS", "address", srv.Addr, "cert", tls.CertFile)
		err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
	} else {
		s.logger.Info("API server starting", "address", srv.Addr)
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("API server error", "address", srv.Addr, "error", err)
	}
}

// Close gracefully shuts down both listeners, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	var errs []error
	for _, srv := range []*http.Server{s.server, s.localServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down %s: %w", srv.Addr, err))
		}
	}
	s.logger.Info("API server shut down")
	return errors.Join(errs...)
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

func (s *Server) recordTokenEvent(event string) {
	if s.events != nil {
		s.events.RecordTokenEvent(event)
	}
}

// recordAudit writes an audit entry when a trail is configured. Failures are
// logged and never reach the caller.
func (s *Server) recordAudit(r *http.Request, action, user string, details map[string]any) {
	if s.audit == nil {
		return
	}
	entry := &audit.Entry{
		Action:  action,
		UserID:  user,
		Source:  r.RemoteAddr,
		Details: details,
	}
	if err := s.audit.Create(r.Context(), entry); err != nil {
		s.logger.Error("writing audit entry", "action", action, "error", err)
	}
}
