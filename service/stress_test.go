package service

import (
	"context"
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cake"
	"cake/infra/report"
	"cake/internal/logging"
)

func TestStressRunnerDestroysEachObjectOnce(t *testing.T) {
	stats := NewStats()
	cake.SetObserver(stats)
	t.Cleanup(func() { cake.SetObserver(nil) })

	r := NewStressRunner(StressConfig{Trials: 20, Workers: 10, DeleteOdds: 100}, logging.Discard())
	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 20, rep.Deletions)
	assert.Zero(t, rep.Violations)
	assert.Positive(t, rep.LockSuccesses)
	assert.Equal(t, 10, rep.Workers)
	_, err = uuid.Parse(rep.RunID)
	assert.NoError(t, err)

	assert.EqualValues(t, 20, stats.Count(cake.EventObjectDestroyed))
	assert.Zero(t, stats.Live())
}

func TestStressRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewStressRunner(StressConfig{Trials: 5, Workers: 2, DeleteOdds: 1 << 30}, logging.Discard())
	rep, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, rep.Violations)
}

func TestStressRunnerRejectsBadConfig(t *testing.T) {
	_, err := NewStressRunner(StressConfig{Trials: 1}, nil).Run(context.Background())
	assert.Error(t, err)
}

func TestReportRoundTrip(t *testing.T) {
	rep := Report{RunID: "r1", Trials: 3, Workers: 2, Deletions: 3}
	b, err := rep.Encode()
	require.NoError(t, err)

	got, err := DecodeReport(b)
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, got.RunID)
	assert.Equal(t, rep.Deletions, got.Deletions)

	_, err = DecodeReport([]byte("{"))
	assert.Error(t, err)
}

func TestReportJobStoresReports(t *testing.T) {
	store, err := report.Open("outbox", report.WithFS(vfs.NewMem()))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Put(41, []byte("{}")))

	runner := NewStressRunner(StressConfig{Trials: 2, Workers: 4, DeleteOdds: 50}, logging.Discard())
	job, err := NewReportJob(runner, store, logging.Discard())
	require.NoError(t, err)

	seq, rep, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), seq)

	rec, err := store.Get(seq)
	require.NoError(t, err)
	assert.Equal(t, report.StateNew, rec.State)
	assert.Equal(t, []byte(rep.RunID), ReportKey(rec))

	assert.Equal(t, []byte("41"), ReportKey(report.Record{Seq: 41, Payload: []byte("{}")}))
}
