// Package runtime hosts a service process: structured logging, the gRPC
// health endpoint, queue consumers, background workers and graceful
// shutdown.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/teajhaney/shopstack-microservices/internal/platform/transport"
)

// NewLogger returns the JSON logger every service uses and installs it as
// the default.
func NewLogger(serviceID string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", serviceID)
	slog.SetDefault(logger)
	return logger
}

type Host struct {
	logger     *slog.Logger
	grpcServer *grpc.Server
	healthSrv  *health.Server
	grpcLis    net.Listener
	httpServer *http.Server
	workers    []func(ctx context.Context) error
	closers    []func() error
}

// NewHost listens for gRPC health checks on grpcPort.
func NewHost(logger *slog.Logger, grpcPort int) (*Host, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", grpcPort))
	if err != nil {
		return nil, fmt.Errorf("listen grpc: %w", err)
	}
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return &Host{
		logger:     logger,
		grpcServer: grpcServer,
		healthSrv:  healthSrv,
		grpcLis:    lis,
	}, nil
}

// Consume runs server on queue for the life of the process.
func (h *Host) Consume(server transport.Server, queue string, handler transport.Handler) {
	h.AddWorker(func(ctx context.Context) error {
		return server.Serve(ctx, queue, handler)
	})
}

func (h *Host) AddWorker(fn func(ctx context.Context) error) {
	h.workers = append(h.workers, fn)
}

func (h *Host) ServeHTTP(srv *http.Server) {
	h.httpServer = srv
}

// OnClose registers cleanup; closers run in reverse order.
func (h *Host) OnClose(fn func() error) {
	h.closers = append(h.closers, fn)
}

// Close releases resources without running. Used when bootstrap fails
// after the host was created.
func (h *Host) Close() {
	h.grpcServer.Stop()
	h.runClosers()
}

func (h *Host) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, len(h.workers)+2)
	workCtx, cancelWork := context.WithCancel(ctx)
	defer cancelWork()

	go func() {
		if err := h.grpcServer.Serve(h.grpcLis); err != nil {
			errCh <- err
		}
	}()
	if h.httpServer != nil {
		go func() {
			if err := h.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}
	done := make(chan struct{}, len(h.workers))
	for _, w := range h.workers {
		go func() {
			defer func() { done <- struct{}{} }()
			if err := w(workCtx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}
	h.healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.logger.InfoContext(ctx, "service started", "operation", "run", "outcome", "success")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		h.logger.ErrorContext(ctx, "runtime failure", "error", runErr)
	}

	h.healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if h.httpServer != nil {
		_ = h.httpServer.Shutdown(shutdownCtx)
	}
	cancelWork()
	for range h.workers {
		select {
		case <-done:
		case <-shutdownCtx.Done():
		}
	}
	h.grpcServer.GracefulStop()
	h.runClosers()
	h.logger.Info("service stopped", "operation", "run", "outcome", "stopped")
	return runErr
}

func (h *Host) runClosers() {
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			h.logger.Warn("close failed", "operation", "shutdown", "error", err)
		}
	}
	h.closers = nil
}
