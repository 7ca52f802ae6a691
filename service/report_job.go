package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cake/infra/report"
	"cake/infra/sequence"
)

// ReportJob runs stress passes and files each Report in the outbox for
// the broadcaster to publish.
type ReportJob struct {
	runner *StressRunner
	store  *report.Store
	seq    *sequence.Sequencer
	logger *slog.Logger
}

// NewReportJob continues numbering after the last stored report.
func NewReportJob(runner *StressRunner, store *report.Store, logger *slog.Logger) (*ReportJob, error) {
	last, err := store.LastSeq()
	if err != nil {
		return nil, fmt.Errorf("read last report seq: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportJob{
		runner: runner,
		store:  store,
		seq:    sequence.New(last),
		logger: logger.With("component", "report_job"),
	}, nil
}

// RunOnce runs one stress pass and stores its report. A pass that found
// violations is still stored; its error is returned alongside.
func (j *ReportJob) RunOnce(ctx context.Context) (uint64, Report, error) {
	rep, runErr := j.runner.Run(ctx)
	if runErr != nil && !errors.Is(runErr, ErrDeletionMismatch) {
		return 0, rep, runErr
	}

	payload, err := rep.Encode()
	if err != nil {
		return 0, rep, fmt.Errorf("encode report: %w", err)
	}
	seq := j.seq.Next()
	if err := j.store.Put(seq, payload); err != nil {
		return 0, rep, fmt.Errorf("store report %d: %w", seq, err)
	}
	j.logger.Debug("report stored", "seq", seq, "run_id", rep.RunID)
	return seq, rep, runErr
}

// Start calls RunOnce every interval until ctx is done.
func (j *ReportJob) Start(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if _, _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
					j.logger.Error("stress run failed", "err", err)
				}
			}
		}
	}()
	return done
}

// ReportKey keys outbox messages by run id, falling back to the
// sequence when the payload does not decode.
func ReportKey(rec report.Record) []byte {
	rep, err := DecodeReport(rec.Payload)
	if err != nil || rep.RunID == "" {
		return fmt.Appendf(nil, "%d", rec.Seq)
	}
	return []byte(rep.RunID)
}
