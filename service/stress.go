package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cake"
)

// ErrDeletionMismatch is returned by Run when some object was not
// destroyed exactly once.
var ErrDeletionMismatch = errors.New("object not destroyed exactly once")

const stressPayload = "prettystring"

type StressConfig struct {
	Trials     int
	Workers    int
	DeleteOdds int
}

// Report summarises one StressRunner.Run.
type Report struct {
	RunID         string        `json:"run_id"`
	Trials        int           `json:"trials"`
	Workers       int           `json:"workers"`
	Deletions     int64         `json:"deletions"`
	Violations    int64         `json:"violations"`
	LockSuccesses int64         `json:"lock_successes"`
	Duration      time.Duration `json:"duration_ns"`
	StartedAt     time.Time     `json:"started_at"`
}

func (r Report) Encode() ([]byte, error) {
	return json.Marshal(r)
}

func DecodeReport(b []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(b, &r); err != nil {
		return Report{}, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}

// StressRunner races workers over shared owners: each worker keeps
// locking the object and, now and then, deletes it through the owner or
// through a promoted weak handle. A trial ends when nobody can lock.
type StressRunner struct {
	cfg    StressConfig
	logger *slog.Logger
}

func NewStressRunner(cfg StressConfig, logger *slog.Logger) *StressRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &StressRunner{
		cfg:    cfg,
		logger: logger.With("component", "stress"),
	}
}

type trialResult struct {
	destroyed int64
	locks     int64
	corrupt   int64
}

func (s *StressRunner) Run(ctx context.Context) (Report, error) {
	if s.cfg.Trials <= 0 || s.cfg.Workers <= 0 || s.cfg.DeleteOdds <= 0 {
		return Report{}, fmt.Errorf("invalid stress config %+v", s.cfg)
	}

	rep := Report{
		RunID:     uuid.NewString(),
		Trials:    s.cfg.Trials,
		Workers:   s.cfg.Workers,
		StartedAt: time.Now().UTC(),
	}
	log := s.logger.With("run_id", rep.RunID)
	log.Debug("run started", "trials", rep.Trials, "workers", rep.Workers)

	for i := 0; i < s.cfg.Trials; i++ {
		res, err := s.trial(ctx)
		if err != nil {
			rep.Duration = time.Since(rep.StartedAt)
			return rep, fmt.Errorf("trial %d: %w", i, err)
		}
		rep.Deletions += res.destroyed
		rep.LockSuccesses += res.locks
		if res.destroyed != 1 || res.corrupt != 0 {
			rep.Violations++
			log.Error("trial violated deletion invariant",
				"trial", i, "destroyed", res.destroyed, "corrupt_reads", res.corrupt)
		}
	}
	rep.Duration = time.Since(rep.StartedAt)

	log.Info("run finished",
		"deletions", rep.Deletions,
		"violations", rep.Violations,
		"lock_successes", rep.LockSuccesses,
		"duration", rep.Duration)

	if rep.Violations > 0 {
		return rep, fmt.Errorf("%d of %d trials: %w", rep.Violations, rep.Trials, ErrDeletionMismatch)
	}
	return rep, nil
}

func (s *StressRunner) trial(ctx context.Context) (trialResult, error) {
	var destroyed, locks, corrupt atomic.Int64

	owner := cake.MakeOwner(stressPayload, cake.WithDestructor(func(*string) {
		destroyed.Add(1)
	}))
	weak := cake.MakeWeak(owner)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < s.cfg.Workers; w++ {
		r := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				lock, ok := owner.TryLock()
				if !ok {
					return nil
				}
				locks.Add(1)
				if *lock.Get() != stressPayload {
					corrupt.Add(1)
				}

				if r.IntN(s.cfg.DeleteOdds) == 0 {
					owner.Delete()
				} else if r.IntN(s.cfg.DeleteOdds) == 0 {
					if tmp, ok := cake.GetOwnership(weak); ok {
						tmp.Delete()
						tmp.Release()
					}
				}
				lock.Unlock()
			}
		})
	}
	err := g.Wait()

	// A cancelled trial still has to end its object.
	owner.Delete()
	weak.Release()
	owner.Release()

	return trialResult{
		destroyed: destroyed.Load(),
		locks:     locks.Load(),
		corrupt:   corrupt.Load(),
	}, err
}
