package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublishFansOutToEverySubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	a := bus.Subscribe(4)
	b := bus.Subscribe(4)

	bus.Publish(Batch{Changes: []Change{{Kind: KindInserted, Entity: EntityTracker, ID: "t1"}}})

	for _, sub := range []*Subscription{a, b} {
		got := waitBatch(t, sub.C(), time.Second)
		require.Len(t, got.Changes, 1)
		assert.Equal(t, "t1", got.Changes[0].ID)
		assert.False(t, got.At.IsZero())
	}
}

func TestPublishSkipsEmptyBatches(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	sub := bus.Subscribe(1)

	bus.Publish(Batch{})

	select {
	case got := <-sub.C():
		t.Fatalf("unexpected batch %+v", got)
	default:
	}
}

func TestPublishDropsWhenSubscriberIsSlow(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	_ = bus.Subscribe(1)

	for i := 0; i < 10; i++ {
		bus.Publish(Batch{Changes: []Change{{Kind: KindUpdated, Entity: EntityRecord, ID: RecordID("t1", "2026-02-09")}}})
	}
	assert.Equal(t, uint64(9), bus.Dropped())
}

func TestCloseClosesSubscriptions(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(1)
	bus.Close()

	_, ok := <-sub.C()
	assert.False(t, ok)

	late := bus.Subscribe(1)
	_, ok = <-late.C()
	assert.False(t, ok)

	// closing twice is harmless
	sub.Close()
	bus.Close()
}

func TestSubscriptionCloseDetaches(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	sub := bus.Subscribe(1)
	sub.Close()

	bus.Publish(Batch{Changes: []Change{{Kind: KindDeleted, Entity: EntityCategory, ID: "c1"}}})
	assert.Zero(t, bus.Dropped())
}

func TestConcurrentPublishers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	sub := bus.Subscribe(64)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(Batch{Changes: []Change{{Kind: KindInserted, Entity: EntityRecord, ID: "x"}}})
		}()
	}
	wg.Wait()
	assert.Len(t, sub.C(), 8)
}

func waitBatch(t *testing.T, ch <-chan Batch, timeout time.Duration) Batch {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for batch")
		return Batch{}
	}
}
