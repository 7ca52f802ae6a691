package cake

import "sync/atomic"

// Event is a lifecycle transition reported to the Observer.
type Event uint8

const (
	EventRecordCreated Event = iota
	// EventObjectExpired: the last owner was released.
	EventObjectExpired
	// EventObjectDeleted: an owner forced deletion.
	EventObjectDeleted
	// EventObjectDestroyed: the destructor ran, after every pin was dropped.
	EventObjectDestroyed
	EventRecordReleased
	EventPromotionFailed
	EventLockFailed
	EventProxyCreated
	EventProxyRelocated
	EventProxySevered
	EventProxyReleased

	eventCount
)

// NumEvents is the number of distinct events.
const NumEvents = int(eventCount)

var eventNames = [...]string{
	EventRecordCreated:   "record_created",
	EventObjectExpired:   "object_expired",
	EventObjectDeleted:   "object_deleted",
	EventObjectDestroyed: "object_destroyed",
	EventRecordReleased:  "record_released",
	EventPromotionFailed: "promotion_failed",
	EventLockFailed:      "lock_failed",
	EventProxyCreated:    "proxy_created",
	EventProxyRelocated:  "proxy_relocated",
	EventProxySevered:    "proxy_severed",
	EventProxyReleased:   "proxy_released",
}

func (e Event) String() string {
	if e < eventCount {
		return eventNames[e]
	}
	return "unknown"
}

// Events lists every event in declaration order.
func Events() []Event {
	out := make([]Event, 0, eventCount)
	for e := Event(0); e < eventCount; e++ {
		out = append(out, e)
	}
	return out
}

// Observer receives lifecycle events. Observe is called synchronously
// from whichever goroutine caused the transition, so it must be cheap and
// safe for concurrent use.
type Observer interface {
	Observe(ev Event, key Key)
}

type ObserverFunc func(ev Event, key Key)

func (f ObserverFunc) Observe(ev Event, key Key) { f(ev, key) }

type multiObserver []Observer

func (m multiObserver) Observe(ev Event, key Key) {
	for _, o := range m {
		o.Observe(ev, key)
	}
}

// Observers fans events out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

type observerBox struct {
	o Observer
}

var observer atomic.Pointer[observerBox]

// SetObserver installs the process-wide observer. Passing nil disables
// reporting.
func SetObserver(o Observer) {
	if o == nil {
		observer.Store(nil)
		return
	}
	observer.Store(&observerBox{o: o})
}

func notify(ev Event, key Key) {
	if b := observer.Load(); b != nil {
		b.o.Observe(ev, key)
	}
}
