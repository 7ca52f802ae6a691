// Package report is a pebble-backed outbox of stress reports. Entries
// move NEW -> SENT -> ACKED, or to FAILED once retries run out.
package report

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var (
	ErrInvalidRecord = errors.New("report: invalid record")
	ErrNotFound      = errors.New("report: not found")
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

type Record struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const headerLen = 1 + 4 + 8

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r Record) []byte {
	buf := make([]byte, headerLen+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[headerLen:], r.Payload)
	return buf
}

// decodeRecord copies b; pebble owns the slices it hands out.
func decodeRecord(seq uint64, b []byte) (Record, error) {
	if len(b) < headerLen {
		return Record{}, fmt.Errorf("%w: length %d", ErrInvalidRecord, len(b))
	}
	if State(b[0]) > StateFailed {
		return Record{}, fmt.Errorf("%w: state %d", ErrInvalidRecord, b[0])
	}
	return Record{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     bytes.Clone(b[headerLen:]),
	}, nil
}

// -------------------- Store --------------------

type Store struct {
	db *pebble.DB
}

type Option func(*pebble.Options)

// WithFS swaps the filesystem, e.g. vfs.NewMem() in tests.
func WithFS(fs vfs.FS) Option {
	return func(o *pebble.Options) {
		o.FS = fs
	}
}

func Open(dir string, opts ...Option) (*Store, error) {
	po := &pebble.Options{}
	for _, opt := range opts {
		opt(po)
	}
	db, err := pebble.Open(dir, po)
	if err != nil {
		return nil, fmt.Errorf("open report store %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// -------------------- API --------------------

// Put inserts a NEW entry.
func (s *Store) Put(seq uint64, payload []byte) error {
	rec := Record{State: StateNew, Payload: payload}
	return s.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

func (s *Store) Get(seq uint64) (Record, error) {
	val, closer, err := s.db.Get(keyFor(seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return Record{}, fmt.Errorf("%w: seq %d", ErrNotFound, seq)
	}
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()

	return decodeRecord(seq, val)
}

// UpdateState rewrites the header of an existing entry and stamps the
// attempt time. The payload is kept.
func (s *Store) UpdateState(seq uint64, state State, retries uint32) error {
	rec, err := s.Get(seq)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries = retries
	rec.LastAttempt = time.Now().UnixNano()
	return s.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

// Delete removes an entry, typically once ACKED.
func (s *Store) Delete(seq uint64) error {
	return s.db.Delete(keyFor(seq), pebble.Sync)
}

// LastSeq returns the highest stored sequence, or 0 for an empty store.
func (s *Store) LastSeq() (uint64, error) {
	iter, err := s.newIter()
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// -------------------- Scan --------------------

// ScanByState calls fn for every entry in state, in sequence order.
// fn must not write to the store.
func (s *Store) ScanByState(state State, fn func(rec Record) error) error {
	iter, err := s.newIter()
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		val := iter.Value()
		if len(val) == 0 || State(val[0]) != state {
			continue
		}

		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, val)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Pending collects NEW entries. The broadcaster uses it so it can update
// states while walking the result.
func (s *Store) Pending() ([]Record, error) {
	var out []Record
	err := s.ScanByState(StateNew, func(rec Record) error {
		out = append(out, rec)
		return nil
	})
	return out, err
}

// -------------------- Helpers --------------------

const keyPrefix = "report/"

func (s *Store) newIter() (*pebble.Iterator, error) {
	return s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
}

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf(keyPrefix+"%020d", seq))
}

func parseKey(b []byte) (uint64, error) {
	id, err := strconv.ParseUint(string(bytes.TrimPrefix(b, []byte(keyPrefix))), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: key %q", ErrInvalidRecord, b)
	}
	return id, nil
}
