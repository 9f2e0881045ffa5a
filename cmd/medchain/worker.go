// cmd/medchain/worker.go
package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/config"
	"github.com/PIYUSH-NAYAK/Vitaledge-sub001/internal/jobs"
)

func workerConfig(cfg config.WorkerConfig) jobs.Config {
	return jobs.Config{
		Workers:      cfg.Workers,
		PollInterval: time.Duration(cfg.PollIntervalMs) * time.Millisecond,
		BackoffBase:  time.Duration(cfg.BackoffBaseMs) * time.Millisecond,
		BackoffMax:   time.Duration(cfg.BackoffMaxMs) * time.Millisecond,
	}
}

func newWorkerCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process queued create and transfer jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := app.Storage()
			if err != nil {
				return err
			}
			w, err := app.Wallet(ctx)
			if err != nil {
				return err
			}

			worker := jobs.NewWorker(store, app.service, w, app.bus,
				workerConfig(app.config.Worker), app.logger, jobs.NewMetrics(app.registry))

			if once {
				processed, err := worker.RunOnce(ctx)
				if err != nil {
					return err
				}
				app.logger.Info("Queue drained", zap.Int("processed", processed))
				return nil
			}

			g, ctx := errgroup.WithContext(ctx)
			if app.config.MetricsAddr != "" {
				g.Go(func() error { return serveMetrics(ctx, app.config.MetricsAddr) })
			}
			g.Go(func() error { return worker.Run(ctx) })
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Process ready jobs once and exit")
	return cmd
}

// serveMetrics отдает /metrics до отмены контекста
func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info("Serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
