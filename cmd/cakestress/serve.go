package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"cake"
	"cake/api/grpcserver"
	"cake/infra/metrics"
	"cake/infra/report"
	"cake/jobs/broadcaster"
	"cake/service"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run stress passes continuously and serve stats over gRPC and /metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), a)
		},
	}
	a.stressFlags(cmd)
	return cmd
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	log := a.logger

	// ---------------- Observers ----------------

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	stats := service.NewStats()
	cake.SetObserver(cake.Observers(stats, metrics.New(reg)))
	defer cake.SetObserver(nil)

	// ---------------- Outbox ----------------

	store, err := report.Open(cfg.Store.Dir)
	if err != nil {
		return err
	}
	defer store.Close()

	runner := service.NewStressRunner(service.StressConfig{
		Trials:     cfg.Stress.Trials,
		Workers:    cfg.Stress.Workers,
		DeleteOdds: cfg.Stress.DeleteOdds,
	}, log)
	job, err := service.NewReportJob(runner, store, log)
	if err != nil {
		return err
	}

	var b *broadcaster.Broadcaster
	if cfg.Kafka.Enabled {
		pub, err := newPublisher(cfg.Kafka)
		if err != nil {
			return err
		}
		defer pub.Close()

		b = broadcaster.New(store, pub, broadcaster.Options{
			Interval:   cfg.Kafka.FlushInterval,
			MaxRetries: cfg.Kafka.MaxRetries,
			Key:        service.ReportKey,
			Logger:     log,
		})
	}

	// ---------------- Listeners ----------------

	grpcLis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPC.Addr, err)
	}
	gs := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.UnaryLogger(log)))
	grpcserver.NewServer(stats).Register(gs)

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	httpSrv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// ---------------- Run ----------------

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("grpc listening", "addr", grpcLis.Addr().String())
		return gs.Serve(grpcLis)
	})
	g.Go(func() error {
		log.Info("metrics listening", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-job.Start(gctx, cfg.Stress.Interval)
		return nil
	})

	if b != nil {
		g.Go(func() error {
			<-b.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		gs.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("stopped")
	return nil
}
