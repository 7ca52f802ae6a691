package report

import (
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := Open("reports", WithFS(vfs.NewMem()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	s := openMem(t)

	require.NoError(t, s.Put(1, []byte(`{"run_id":"a"}`)))

	rec, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.Seq)
	assert.Equal(t, StateNew, rec.State)
	assert.Zero(t, rec.Retries)
	assert.Equal(t, `{"run_id":"a"}`, string(rec.Payload))
}

func TestGetMissing(t *testing.T) {
	s := openMem(t)

	_, err := s.Get(42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateState(42, StateSent, 0), ErrNotFound)
}

func TestUpdateStateKeepsPayload(t *testing.T) {
	s := openMem(t)
	require.NoError(t, s.Put(7, []byte("payload")))

	require.NoError(t, s.UpdateState(7, StateSent, 2))

	rec, err := s.Get(7)
	require.NoError(t, err)
	assert.Equal(t, StateSent, rec.State)
	assert.Equal(t, uint32(2), rec.Retries)
	assert.NotZero(t, rec.LastAttempt)
	assert.Equal(t, "payload", string(rec.Payload))
}

func TestScanByState(t *testing.T) {
	s := openMem(t)
	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, s.Put(seq, []byte{byte(seq)}))
	}
	require.NoError(t, s.UpdateState(2, StateAcked, 0))
	require.NoError(t, s.UpdateState(4, StateFailed, 5))

	var seqs []uint64
	require.NoError(t, s.ScanByState(StateNew, func(rec Record) error {
		seqs = append(seqs, rec.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{1, 3, 5}, seqs)

	pending, err := s.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, []byte{5}, pending[2].Payload)
}

func TestDeleteAndLastSeq(t *testing.T) {
	s := openMem(t)

	last, err := s.LastSeq()
	require.NoError(t, err)
	assert.Zero(t, last)

	for _, seq := range []uint64{3, 10, 9} {
		require.NoError(t, s.Put(seq, nil))
	}
	last, err = s.LastSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), last)

	require.NoError(t, s.Delete(10))
	last, err = s.LastSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(9), last)
}

func TestDecodeRejectsShortRecord(t *testing.T) {
	_, err := decodeRecord(1, []byte{0, 1})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = decodeRecord(1, append([]byte{9}, make([]byte, 12)...))
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "NEW", StateNew.String())
	assert.Equal(t, "FAILED", StateFailed.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
