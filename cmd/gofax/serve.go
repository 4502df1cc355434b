package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbehnke/gofax/internal/calllog"
	"github.com/dbehnke/gofax/internal/config"
	"github.com/dbehnke/gofax/internal/metrics"
)

// newServeCommand starts gofax's long-running process: the call-log
// database and the optional Prometheus /metrics endpoint, under the same
// signal-driven graceful-shutdown loop the teacher's cmd/ysf2dmr/main.go
// uses (context.Context cancelled by SIGINT/SIGTERM, a WaitGroup-style
// drain on the way out). The T.30 session engine and T.38 terminal/
// gateway are embedded by callers of this module against a real audio or
// network transport; this command only hosts the ambient services that
// surround them.
func newServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run gofax's call-log and metrics services",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New(cmd.ErrOrStderr(), "gofax: ", log.LstdFlags)
			return runServe(cmd.Context(), configPath, logger)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to gofax.ini (defaults built in if omitted)")
	return cmd
}

func runServe(ctx context.Context, configPath string, logger *log.Logger) error {
	cfg := config.NewConfig(configPath)
	if configPath != "" {
		if err := cfg.Load(); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *calllog.DB
	if cfg.DatabaseEnabled() {
		var err error
		db, err = calllog.NewDB(calllog.Config{Path: cfg.DatabasePath()}, logger)
		if err != nil {
			return fmt.Errorf("serve: call log: %w", err)
		}
		defer db.Close()
	}

	var metricsSrv *metrics.Server
	if cfg.MetricsEnabled() {
		m := metrics.NewMetrics()
		metricsSrv = metrics.NewServer(cfg.MetricsAddress(), m)
		go func() {
			logger.Printf("metrics listening on %s", cfg.MetricsAddress())
			if err := metricsSrv.ListenAndServe(); err != nil {
				logger.Printf("metrics server error: %v", err)
			}
		}()
	}

	logger.Printf("gofax serving (ident=%s, database=%v, metrics=%v); press Ctrl-C to stop",
		cfg.Ident(), cfg.DatabaseEnabled(), cfg.MetricsEnabled())
	<-ctx.Done()
	logger.Print("shutting down")

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("metrics shutdown: %v", err)
		}
	}
	return nil
}
