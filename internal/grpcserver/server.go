// Package grpcserver exposes the standard gRPC health service. Besides the
// overall status it reports whether sweeps are still completing on time
// under the service name SweepService.
package grpcserver

import (
	"context"
	"errors"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"jobmate/careerwatch-service/internal/logger"
	"jobmate/careerwatch-service/internal/model"
	"jobmate/careerwatch-service/internal/store"
)

// SweepService is the health service name tracking sweep freshness.
const SweepService = "careerwatch.Sweeps"

// RunHistory reads the sweep history.
type RunHistory interface {
	LastRun(ctx context.Context) (*model.RunRecord, error)
}

// Server wraps a grpc.Server with the health service registered.
type Server struct {
	grpc       *grpc.Server
	health     *health.Server
	runs       RunHistory
	staleAfter time.Duration
	started    time.Time
	now        func() time.Time
	log        logger.Logger
}

// New builds the server. Sweeps count as stale when the last one finished
// more than staleAfter ago; before the first sweep the process start time
// is used instead.
func New(runs RunHistory, staleAfter time.Duration, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	log = logger.Component(log, "grpc")

	s := &Server{
		health:     health.NewServer(),
		runs:       runs,
		staleAfter: staleAfter,
		started:    time.Now(),
		now:        time.Now,
		log:        log,
	}
	s.grpc = grpc.NewServer(grpc.UnaryInterceptor(s.logUnary))
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(SweepService, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("gRPC listening", logger.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Watch refreshes the sweep status every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.Refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Refresh recomputes the SweepService status from the run history.
func (s *Server) Refresh(ctx context.Context) {
	last := s.started
	run, err := s.runs.LastRun(ctx)
	switch {
	case errors.Is(err, store.ErrNoRuns):
	case err != nil:
		s.log.Warn("reading sweep history failed", logger.Error(err))
		s.health.SetServingStatus(SweepService, healthpb.HealthCheckResponse_UNKNOWN)
		return
	case !run.FinishedAt.IsZero():
		last = run.FinishedAt
	default:
		last = run.StartedAt
	}

	st := healthpb.HealthCheckResponse_SERVING
	if s.now().Sub(last) > s.staleAfter {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(SweepService, st)
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.log.Debug("gRPC call",
		logger.String("method", info.FullMethod),
		logger.String("code", status.Code(err).String()),
		logger.Duration("duration", time.Since(start)),
	)
	return resp, err
}
