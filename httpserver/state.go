package httpserver

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ruteri/dexcom-browser-source/metrics"
)

// ServerState is the lifecycle state of the overlay listener.
type ServerState int32

const (
	StateStopped ServerState = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s ServerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "invalid"
	}
}

// StateChange describes one lifecycle transition. Err is set on
// Starting→Stopped when binding failed and on Stopping→Stopped when the grace
// period ran out and connections were closed forcibly.
type StateChange struct {
	From ServerState
	To   ServerState
	Err  error
	At   time.Time
}

// DefaultSubscriptionBuffer is the channel capacity used by Subscribe when the
// caller passes a non-positive size.
const DefaultSubscriptionBuffer = 16

// notifier fans transitions out to subscribers. Transitions are queued while
// the lifecycle lock is held and delivered by flush after it is released, so
// delivery order equals transition order and no send happens under that lock.
type notifier struct {
	log     *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending []StateChange
	subs    map[uint64]chan StateChange
	nextID  uint64

	// flushMu keeps concurrent flushes from reordering deliveries
	flushMu sync.Mutex
}

func newNotifier(log *slog.Logger, m *metrics.Metrics) *notifier {
	return &notifier{
		log:     log,
		metrics: m,
		subs:    make(map[uint64]chan StateChange),
	}
}

func (n *notifier) subscribe(buffer int) (<-chan StateChange, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}
	ch := make(chan StateChange, buffer)

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			// flushMu first: no delivery may be in flight on a closed channel
			n.flushMu.Lock()
			defer n.flushMu.Unlock()
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs, id)
			close(ch)
		})
	}
}

func (n *notifier) enqueue(change StateChange) {
	n.mu.Lock()
	n.pending = append(n.pending, change)
	n.mu.Unlock()
}

func (n *notifier) flush() {
	n.flushMu.Lock()
	defer n.flushMu.Unlock()

	for {
		n.mu.Lock()
		if len(n.pending) == 0 {
			n.mu.Unlock()
			return
		}
		change := n.pending[0]
		n.pending = n.pending[1:]
		subs := make([]chan StateChange, 0, len(n.subs))
		for _, ch := range n.subs {
			subs = append(subs, ch)
		}
		n.mu.Unlock()

		for _, ch := range subs {
			select {
			case ch <- change:
			default:
				n.log.Warn("Dropped lifecycle notification for slow subscriber", "from", change.From.String(), "to", change.To.String())
				n.metrics.NotificationDropped()
			}
		}
	}
}
