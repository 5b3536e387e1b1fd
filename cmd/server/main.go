// Command server exposes the backup manager over REST and streams its
// events to WebSocket clients on localhost:8090.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/app"
	"github.com/Meghdut-Mandal/WhatsappStatusHandler-sub001/internal/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], nil); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintln(os.Stderr, "Hint:", hint)
		}
		os.Exit(1)
	}
}

// loadConfig parses args into a configuration.
func loadConfig(args []string) (*config.Config, error) {
	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)
	configFile := fs.String("config", "", "Config file (default ./config.yaml when present)")
	fs.String("data-dir", "", "Data directory holding the database, settings and backups")
	fs.String("addr", "", "Listen address")
	fs.String("log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	fs.String("log-encoding", "", "Log encoding (json or console)")
	fs.Bool("schedule-enabled", false, "Run scheduled backups")
	fs.Duration("interval", 0, "Time between scheduled backups")
	fs.String("cron", "", "Five-field cron expression for scheduled backups")
	fs.Int("max-backups", 0, "Scheduled backups to keep (0 keeps all)")
	if err := fs.Parse(args); err != nil {
		return nil, errors.WithHint(err, "run with --help for usage")
	}

	v := config.NewViper()
	if err := config.BindFlags(v, fs); err != nil {
		return nil, err
	}
	return config.Load(v, *configFile)
}

// run serves until ctx is done. A non-nil ready receives the bound address.
func run(ctx context.Context, args []string, ready chan<- string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	a, err := app.New(cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.Logger

	hub := NewWSHub(logger)
	defer hub.Close()
	unsubscribe := a.Backups.Subscribe(hub)
	defer unsubscribe()

	if cfg.Schedule.Enabled {
		h, err := a.StartScheduler(ctx)
		if err != nil {
			return err
		}
		defer h.Stop()
		logger.Info("scheduled backups enabled", zap.Time("next_run", h.NextRun()))
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", cfg.Server.Addr)
	}

	srv := &http.Server{
		Handler:           newRouter(a.Backups, hub, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info("server started", zap.String("addr", ln.Addr().String()))
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
