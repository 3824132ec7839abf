// Package health serves liveness and readiness over HTTP and the grpc.health.v1 protocol.
package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC service name reported alongside the overall status.
const ServiceName = "smflab.Scheduler"

// CheckFunc reports a dependency as unhealthy by returning an error.
type CheckFunc func(ctx context.Context) error

// Service runs readiness checks and mirrors the result into the gRPC health server.
type Service struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	grpc    *grpchealth.Server
	timeout time.Duration
	logger  zerolog.Logger
}

func NewService(logger *zerolog.Logger) *Service {
	return &Service{
		checks:  make(map[string]CheckFunc),
		grpc:    grpchealth.NewServer(),
		timeout: time.Second,
		logger:  logger.With().Str("component", "health").Logger(),
	}
}

// AddCheck registers a named readiness check.
func (s *Service) AddCheck(name string, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = fn
}

// Check runs every readiness check and returns the failures by name.
func (s *Service) Check(ctx context.Context) map[string]error {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	s.mu.RUnlock()
	sort.Strings(names)

	failed := make(map[string]error)
	for _, name := range names {
		ctxCheck, cancel := context.WithTimeout(ctx, s.timeout)
		err := checks[name](ctxCheck)
		cancel()
		if err != nil {
			failed[name] = err
		}
	}
	return failed
}

// Refresh runs the checks once and publishes the result to gRPC clients.
func (s *Service) Refresh(ctx context.Context) bool {
	failed := s.Check(ctx)
	status := healthpb.HealthCheckResponse_SERVING
	if len(failed) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		for name, err := range failed {
			s.logger.Warn().Err(err).Str("check", name).Msg("readiness check failed")
		}
	}
	s.grpc.SetServingStatus("", status)
	s.grpc.SetServingStatus(ServiceName, status)
	return len(failed) == 0
}

// Watch refreshes the gRPC status on every tick until ctx is done.
func (s *Service) Watch(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.grpc.Shutdown()
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Handler serves /healthz and /readyz.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		failed := s.Check(r.Context())
		if len(failed) > 0 {
			names := make([]string, 0, len(failed))
			for name := range failed {
				names = append(names, name)
			}
			sort.Strings(names)
			http.Error(w, fmt.Sprintf("%s not ready", names[0]), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	return mux
}

// ServeHTTP runs the HTTP health server on port until ctx is done.
func (s *Service) ServeHTTP(ctx context.Context, port int) {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: s.Handler(), ReadHeaderTimeout: 3 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error().Err(err).Msg("health server error")
	}
}

// ServeGRPC runs the grpc.health.v1 service on port until ctx is done.
func (s *Service) ServeGRPC(ctx context.Context, port int) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		s.logger.Error().Err(err).Int("port", port).Msg("grpc health listen failed")
		return
	}

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, s.grpc)

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	s.logger.Info().Int("port", port).Msg("gRPC health listening")
	if err := srv.Serve(lis); err != nil {
		s.logger.Error().Err(err).Msg("grpc health server error")
	}
}

// GRPCServer exposes the underlying health server, for registration on a shared gRPC server.
func (s *Service) GRPCServer() healthpb.HealthServer {
	return s.grpc
}
