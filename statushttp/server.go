package statushttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/GoCodeAlone/modlife"
)

// ModuleName is the conventional registration name of the server module.
const ModuleName = "statushttp"

// Env keys read by the server module.
const (
	EnvAddr            = "STATUS_HTTP_ADDR"
	EnvShutdownTimeout = "STATUS_HTTP_SHUTDOWN_TIMEOUT"
)

// Config configures the status server.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Server is the instance provided by the server module.
type Server struct {
	server   *http.Server
	listener net.Listener
	config   Config
	logger   modlife.Logger
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Module describes a lifecycle module serving the status routes. It must be
// registered with a dependency on the reserved lifecycle module:
//
//	b.Add(statushttp.ModuleName, statushttp.Module(logger), statushttp.Dependencies())
//
// Route options are passed through to NewRouter.
func Module(logger modlife.Logger, opts ...Option) modlife.Descriptor {
	return modlife.Define(configure,
		func(_ context.Context, cfg Config, deps modlife.Dependencies) (modlife.Instance[*Server], error) {
			controller, err := modlife.DependencyAs[modlife.Controller](deps, "lifecycle")
			if err != nil {
				return modlife.Instance[*Server]{}, err
			}
			srv, err := listen(cfg, NewRouter(controller, logger, opts...), logger)
			if err != nil {
				return modlife.Instance[*Server]{}, err
			}
			return modlife.Instance[*Server]{
				Instance: srv,
				Finalize: srv.shutdown,
				Status: func() map[string]any {
					return map[string]any{"addr": srv.Addr()}
				},
			}, nil
		},
	)
}

// Dependencies is the dependency map the server module expects.
func Dependencies() modlife.DependencyMap {
	return modlife.DependencyMap{
		"lifecycle": modlife.DepOf[modlife.Controller](modlife.LifecycleModuleName),
	}
}

func configure(env modlife.EnvVars) (Config, error) {
	cfg := Config{
		Addr:            env.Get(EnvAddr, ":8086"),
		ShutdownTimeout: 10 * time.Second,
	}
	var failures []error
	if cfg.Addr == "" {
		failures = append(failures, fmt.Errorf("%s must not be empty", EnvAddr))
	}
	if raw, ok := env.Lookup(EnvShutdownTimeout); ok {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", EnvShutdownTimeout, err))
		} else {
			cfg.ShutdownTimeout = timeout
		}
	}
	return cfg, errors.Join(failures...)
}

func listen(cfg Config, handler http.Handler, logger modlife.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	srv := &Server{
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: ln,
		config:   cfg,
		logger:   logger,
	}
	go func() {
		logger.Info("Status server listening", "addr", srv.Addr())
		if err := srv.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server error", "error", err)
		}
	}()
	return srv, nil
}

func (s *Server) shutdown(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return false, fmt.Errorf("status server shutdown: %w", err)
	}
	s.logger.Info("Status server stopped")
	return true, nil
}
