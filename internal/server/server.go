// Package server wires the gateway's components into a running process:
// logging, runtime tuning, config loading, and the HTTP listener with
// graceful shutdown.
package server

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

	"github.com/KimMachineGun/automemlimit/memlimit"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"golang.org/x/sync/errgroup"

	"github.com/nicolaspernoud/atrium/internal/config"
	"github.com/nicolaspernoud/atrium/internal/gateway"
	"github.com/nicolaspernoud/atrium/internal/proxy"
	"github.com/nicolaspernoud/atrium/internal/session"
)

// Addr is the fixed listen address: a single binary, no flags beyond the
// config path.
const Addr = "[::]:8080"

// Run loads configPath, builds the full request pipeline, and serves it
// until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	undo, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof))
	defer undo()
	if err != nil {
		logger.Warn("failed to set GOMAXPROCS", zap.Error(err))
	}

	if _, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithLogger(slog.New(zapslog.NewHandler(logger.Core()))),
		memlimit.WithProvider(memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)),
	); err != nil {
		logger.Debug("no cgroup memory limit detected", zap.Error(err))
	}

	store, err := config.NewStore(configPath, cfg)
	if err != nil {
		return fmt.Errorf("materializing routing table: %w", err)
	}

	box, err := session.NewBox(cfg.CookieKey)
	if err != nil {
		return fmt.Errorf("building cookie cipher: %w", err)
	}

	forwarder := proxy.NewForwarder(logger)
	metrics := gateway.NewMetrics()
	management := gateway.NewManagementRouter(store, box, logger, metrics, "web")
	router := gateway.NewRouter(store, box, forwarder, management, metrics, logger)

	httpServer := &http.Server{
		Addr:              Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(logger),
	}

	listener, err := net.Listen("tcp", Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", Addr, err)
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("atrium listening", zap.String("addr", Addr), zap.String("hostname", cfg.Hostname))
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// NotifyContext is a thin wrapper so callers don't need their own import
// of os/signal to build the cancellation context Run expects.
func NotifyContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
