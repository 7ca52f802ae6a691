package service

import (
	"sync/atomic"

	"cake"
)

// Stats counts lifecycle events. It is a cake.Observer and is safe for
// concurrent use.
type Stats struct {
	counts [cake.NumEvents]atomic.Int64
}

var eventIndex = cake.Events()

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) Observe(ev cake.Event, _ cake.Key) {
	if int(ev) < len(s.counts) {
		s.counts[ev].Add(1)
	}
}

func (s *Stats) Count(ev cake.Event) int64 {
	if int(ev) >= len(s.counts) {
		return 0
	}
	return s.counts[ev].Load()
}

// Live is the number of owner and proxy records currently allocated.
func (s *Stats) Live() int64 {
	owners := s.Count(cake.EventRecordCreated) - s.Count(cake.EventRecordReleased)
	proxies := s.Count(cake.EventProxyCreated) - s.Count(cake.EventProxyReleased)
	return owners + proxies
}

// Snapshot maps event names to counts, plus "live_records".
func (s *Stats) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(eventIndex)+1)
	for _, ev := range eventIndex {
		out[ev.String()] = s.Count(ev)
	}
	out[LiveRecordsKey] = s.Live()
	return out
}

const LiveRecordsKey = "live_records"
