package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"jobmate/careerwatch-service/internal/api"
	"jobmate/careerwatch-service/internal/config"
	"jobmate/careerwatch-service/internal/grpcserver"
	"jobmate/careerwatch-service/internal/logger"
	"jobmate/careerwatch-service/internal/scheduler"
)

const (
	shutdownTimeout    = 10 * time.Second
	healthRefreshEvery = time.Minute
)

func newServeCommand(flags *globalFlags, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Sweep on a schedule and serve the admin HTTP and gRPC health endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig(true)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return serve(cmd.Context(), cfg, log, version)
		},
	}
}

func serve(parent context.Context, cfg *config.Config, log logger.Logger, version string) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := newApp(ctx, cfg, log, false)
	if err != nil {
		return err
	}
	defer a.Close()

	// ── HTTP server ──────────────────────────────────────────────────────────
	gin.SetMode(gin.ReleaseMode)
	h := api.NewHandler(ctx, a.sweeper, a.store, a.registry, version, log)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      h.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.SweepBudget + 30*time.Second,
	}

	// ── gRPC health ──────────────────────────────────────────────────────────
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	gs := grpcserver.New(a.store, 3*cfg.Interval()+cfg.SweepBudget, log)

	errCh := make(chan error, 2)
	go func() {
		log.Info("HTTP listening", logger.String("addr", srv.Addr), logger.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		if err := gs.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go gs.Watch(ctx, healthRefreshEvery)

	// ── Scheduler ────────────────────────────────────────────────────────────
	sched := scheduler.New(a.sweeper, cfg.Interval(), log)
	if err := sched.Start(ctx); err != nil {
		return err
	}

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		log.Info("shutting down", logger.String("signal", sig.String()))
	case runErr = <-errCh:
		log.Error("server failed, shutting down", logger.Error(runErr))
	case <-ctx.Done():
	}

	// Cancelling aborts an in-flight sweep at its next network call.
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown error", logger.Error(err))
	}
	// Triggered sweeps must release the lock and close their run before the
	// deferred Close tears down the store and Redis.
	h.Wait()
	gs.Stop()
	log.Info("stopped")
	return runErr
}
