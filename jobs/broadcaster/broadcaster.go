// Package broadcaster drains the report outbox into Kafka.
package broadcaster

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"cake/infra/report"
)

// Publisher delivers one message. Publish returns only after the broker
// has acknowledged it.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

type Options struct {
	// Interval between outbox scans in Start. Default 250ms.
	Interval time.Duration
	// MaxRetries failed attempts move an entry to FAILED. Default 5.
	MaxRetries uint32
	// Key derives the message key. Default: the decimal sequence.
	Key    func(report.Record) []byte
	Logger *slog.Logger
}

type Broadcaster struct {
	store  *report.Store
	pub    Publisher
	opts   Options
	logger *slog.Logger
}

// FlushStats counts the outcomes of one Flush.
type FlushStats struct {
	Acked  int
	Retry  int
	Failed int
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(store *report.Store, pub Publisher, opts Options) *Broadcaster {
	if opts.Interval <= 0 {
		opts.Interval = 250 * time.Millisecond
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 5
	}
	if opts.Key == nil {
		opts.Key = seqKey
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		store:  store,
		pub:    pub,
		opts:   opts,
		logger: logger.With("component", "broadcaster"),
	}
}

func seqKey(rec report.Record) []byte {
	return strconv.AppendUint(nil, rec.Seq, 10)
}

// ------------------------------------------------
// START LOOP
// ------------------------------------------------

// Start runs Flush on every tick until ctx is done. The returned channel
// is closed when the loop has exited.
func (b *Broadcaster) Start(ctx context.Context) <-chan struct{} {
	b.logger.Info("started", "interval", b.opts.Interval)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(b.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				b.logger.Info("stopped")
				return

			case <-ticker.C:
				if _, err := b.Flush(ctx); err != nil && ctx.Err() == nil {
					b.logger.Error("flush failed", "err", err)
				}
			}
		}
	}()
	return done
}

// ------------------------------------------------
// REPLAY LOGIC
// ------------------------------------------------

// Flush makes one pass over NEW entries: mark SENT, publish, then mark
// ACKED. A failed publish puts the entry back to NEW with one more retry,
// or FAILED once MaxRetries is reached. A crash between SENT and ACKED
// leaves the entry SENT; it is not re-published automatically.
func (b *Broadcaster) Flush(ctx context.Context) (FlushStats, error) {
	var stats FlushStats

	pending, err := b.store.Pending()
	if err != nil {
		return stats, fmt.Errorf("scan outbox: %w", err)
	}

	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if err := b.store.UpdateState(rec.Seq, report.StateSent, rec.Retries); err != nil {
			return stats, fmt.Errorf("mark %d sent: %w", rec.Seq, err)
		}

		if err := b.pub.Publish(ctx, b.opts.Key(rec), rec.Payload); err != nil {
			retries := rec.Retries + 1
			next := report.StateNew
			if retries >= b.opts.MaxRetries {
				next = report.StateFailed
				stats.Failed++
				b.logger.Error("giving up on report", "seq", rec.Seq, "retries", retries, "err", err)
			} else {
				stats.Retry++
				b.logger.Warn("publish failed", "seq", rec.Seq, "retries", retries, "err", err)
			}
			if err := b.store.UpdateState(rec.Seq, next, retries); err != nil {
				return stats, fmt.Errorf("mark %d %s: %w", rec.Seq, next, err)
			}
			continue
		}

		if err := b.store.UpdateState(rec.Seq, report.StateAcked, rec.Retries); err != nil {
			return stats, fmt.Errorf("mark %d acked: %w", rec.Seq, err)
		}
		stats.Acked++
	}

	if len(pending) > 0 {
		b.logger.Debug("flushed", "acked", stats.Acked, "retry", stats.Retry, "failed", stats.Failed)
	}
	return stats, nil
}
