package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"cake"
	"cake/infra/report"
	"cake/jobs/broadcaster"
	"cake/service"
)

func newRunCmd(a *app) *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one stress pass and store its report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := a.cfg

			stats := service.NewStats()
			cake.SetObserver(stats)
			defer cake.SetObserver(nil)

			store, err := report.Open(cfg.Store.Dir)
			if err != nil {
				return err
			}
			defer store.Close()

			runner := service.NewStressRunner(service.StressConfig{
				Trials:     cfg.Stress.Trials,
				Workers:    cfg.Stress.Workers,
				DeleteOdds: cfg.Stress.DeleteOdds,
			}, a.logger)
			job, err := service.NewReportJob(runner, store, a.logger)
			if err != nil {
				return err
			}

			seq, rep, runErr := job.RunOnce(ctx)
			if runErr != nil && !errors.Is(runErr, service.ErrDeletionMismatch) {
				return runErr
			}
			a.logger.Info("report stored",
				"seq", seq,
				"run_id", rep.RunID,
				"deletions", rep.Deletions,
				"violations", rep.Violations,
				"live_records", stats.Live())

			if publish {
				if err := flushOnce(ctx, a, store); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	a.stressFlags(cmd)
	cmd.Flags().BoolVar(&publish, "publish", false, "drain the report outbox to Kafka once")
	return cmd
}

func flushOnce(ctx context.Context, a *app, store *report.Store) error {
	pub, err := newPublisher(a.cfg.Kafka)
	if err != nil {
		return err
	}
	defer pub.Close()

	b := broadcaster.New(store, pub, broadcaster.Options{
		MaxRetries: a.cfg.Kafka.MaxRetries,
		Key:        service.ReportKey,
		Logger:     a.logger,
	})
	stats, err := b.Flush(ctx)
	if err != nil {
		return fmt.Errorf("publish reports: %w", err)
	}
	a.logger.Info("reports published", "acked", stats.Acked, "retry", stats.Retry, "failed", stats.Failed)
	return nil
}
