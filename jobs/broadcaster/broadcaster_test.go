package broadcaster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cake/infra/report"
	"cake/internal/logging"
)

type message struct {
	key, value string
}

type fakePublisher struct {
	mu    sync.Mutex
	fail  int
	sent  []message
	calls int
}

func (f *fakePublisher) Publish(_ context.Context, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail > 0 {
		f.fail--
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, message{string(key), string(value)})
	return nil
}

func (f *fakePublisher) messages() []message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]message(nil), f.sent...)
}

func openStore(t *testing.T) *report.Store {
	t.Helper()
	s, err := report.Open("outbox", report.WithFS(vfs.NewMem()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFlushPublishesAndAcks(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Put(1, []byte("one")))
	require.NoError(t, store.Put(2, []byte("two")))

	pub := &fakePublisher{}
	b := New(store, pub, Options{Logger: logging.Discard()})

	stats, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FlushStats{Acked: 2}, stats)
	assert.Equal(t, []message{{"1", "one"}, {"2", "two"}}, pub.messages())

	rec, err := store.Get(2)
	require.NoError(t, err)
	assert.Equal(t, report.StateAcked, rec.State)

	stats, err = b.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Acked, "acked entries are not sent twice")
}

func TestFlushRetriesThenFails(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Put(1, []byte("x")))

	pub := &fakePublisher{fail: 10}
	b := New(store, pub, Options{MaxRetries: 2, Logger: logging.Discard()})

	stats, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FlushStats{Retry: 1}, stats)

	rec, err := store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, report.StateNew, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)

	stats, err = b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FlushStats{Failed: 1}, stats)

	rec, err = store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, report.StateFailed, rec.State)

	_, err = b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pub.calls, "failed entries are left alone")
}

func TestFlushCustomKey(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Put(5, []byte("v")))

	pub := &fakePublisher{}
	b := New(store, pub, Options{
		Key:    func(r report.Record) []byte { return []byte("run-" + string(r.Payload)) },
		Logger: logging.Discard(),
	})
	_, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []message{{"run-v", "v"}}, pub.messages())
}

func TestStartDrainsUntilCancelled(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Put(1, []byte("tick")))

	pub := &fakePublisher{}
	b := New(store, pub, Options{Interval: 5 * time.Millisecond, Logger: logging.Discard()})

	ctx, cancel := context.WithCancel(context.Background())
	done := b.Start(ctx)

	require.Eventually(t, func() bool {
		return len(pub.messages()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcaster did not stop")
	}
}

func TestSaramaPublisher(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	pub := NewSaramaPublisherFrom(producer, "cake.stress.reports")
	assert.NoError(t, pub.Publish(context.Background(), []byte("k"), []byte("v")))

	err := pub.Publish(context.Background(), []byte("k"), []byte("v"))
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)

	require.NoError(t, pub.Close())
}
