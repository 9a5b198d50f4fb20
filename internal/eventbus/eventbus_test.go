package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToMatchingChannel(t *testing.T) {
	b := New(8)
	defer b.Close()

	received := make(chan Event, 1)
	b.RegisterListener([]string{"PHYTRACKER_NEW_PHY"}, func(e Event) {
		received <- e
	})

	b.Publish(Event{Channel: "PHYTRACKER_NEW_PHY", Fields: map[string]any{"phy": "802.11"}})

	select {
	case e := <-received:
		require.Equal(t, "802.11", e.Fields["phy"])
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWildcardListenerReceivesEverything(t *testing.T) {
	b := New(8)
	defer b.Close()

	var mu sync.Mutex
	var seen []string
	b.RegisterListener([]string{WildcardChannel}, func(e Event) {
		mu.Lock()
		seen = append(seen, e.Channel)
		mu.Unlock()
	})

	b.Publish(Event{Channel: "A"})
	b.Publish(Event{Channel: "B"})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, time.Millisecond)
}

func TestListenerOnBothSpecificAndWildcardReceivesOnce(t *testing.T) {
	b := New(8)
	defer b.Close()

	count := make(chan struct{}, 8)
	b.RegisterListener([]string{"A", WildcardChannel}, func(e Event) {
		count <- struct{}{}
	})

	b.Publish(Event{Channel: "A"})

	require.Eventually(t, func() bool {
		return len(count) == 1
	}, time.Second, time.Millisecond)
}

func TestRemoveListenerStopsDelivery(t *testing.T) {
	b := New(8)
	defer b.Close()

	fired := make(chan struct{}, 1)
	id := b.RegisterListener([]string{"A"}, func(e Event) { fired <- struct{}{} })
	b.RemoveListener(id)

	b.Publish(Event{Channel: "A"})

	select {
	case <-fired:
		t.Fatal("listener should have been removed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFIFOOrderingPerPublisher(t *testing.T) {
	b := New(64)
	defer b.Close()

	var mu sync.Mutex
	var order []int
	b.RegisterListener([]string{"SEQ"}, func(e Event) {
		mu.Lock()
		order = append(order, e.Fields["n"].(int))
		mu.Unlock()
	})

	for i := 0; i < 20; i++ {
		b.Publish(Event{Channel: "SEQ", Fields: map[string]any{"n": i}})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 20
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		require.Equal(t, i, v)
	}
}

func TestPanickingListenerDoesNotStopDispatch(t *testing.T) {
	b := New(8)
	defer b.Close()

	b.RegisterListener([]string{"A"}, func(e Event) { panic("boom") })

	ok := make(chan struct{}, 1)
	b.RegisterListener([]string{"A"}, func(e Event) { ok <- struct{}{} })

	b.Publish(Event{Channel: "A"})

	select {
	case <-ok:
	case <-time.After(time.Second):
		t.Fatal("second listener never ran after first panicked")
	}
}
