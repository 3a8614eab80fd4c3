package notify

import (
	"sync"
	"sync/atomic"
	"time"
)

type Kind string

const (
	KindInserted Kind = "inserted"
	KindDeleted  Kind = "deleted"
	KindUpdated  Kind = "updated"
	KindMoved    Kind = "moved"
)

type Entity string

const (
	EntityTracker  Entity = "tracker"
	EntityCategory Entity = "category"
	EntityRecord   Entity = "record"
)

// Change identifies one mutated entity. Record ids have the form
// "trackerID/day".
type Change struct {
	Kind   Kind   `json:"kind"`
	Entity Entity `json:"entity"`
	ID     string `json:"id"`
}

type Batch struct {
	Changes []Change  `json:"changes"`
	At      time.Time `json:"at"`
}

func RecordID(trackerID, day string) string {
	return trackerID + "/" + day
}

// Bus fans out change batches to subscribers. Delivery never blocks the
// publisher: a full subscriber buffer drops the batch and bumps Dropped.
type Bus struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	closed  bool
	dropped uint64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

type Subscription struct {
	bus  *Bus
	out  chan Batch
	once sync.Once
}

func (s *Subscription) C() <-chan Batch {
	return s.out
}

func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subs[s]; ok {
		delete(s.bus.subs, s)
		s.closeOut()
	}
}

func (s *Subscription) closeOut() {
	s.once.Do(func() { close(s.out) })
}

func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}
	sub := &Subscription{bus: b, out: make(chan Batch, buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.closeOut()
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

func (b *Bus) Publish(batch Batch) {
	if len(batch.Changes) == 0 {
		return
	}
	if batch.At.IsZero() {
		batch.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		select {
		case sub.out <- batch:
		default:
			atomic.AddUint64(&b.dropped, 1)
		}
	}
}

func (b *Bus) Dropped() uint64 {
	return atomic.LoadUint64(&b.dropped)
}

// Close closes every subscription channel. Publishing afterwards is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		sub.closeOut()
	}
}
