package packetchain

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDedupMarksSecondFrameAsDuplicateWithSamePacketNo(t *testing.T) {
	chain := NewChain(2)
	defer chain.Shutdown()

	var mu sync.Mutex
	var handled []*Packet
	chain.RegisterHandler(StageTracker, func(p *Packet) {
		mu.Lock()
		handled = append(handled, p)
		mu.Unlock()
	})

	frame := []byte{1, 2, 3, 4}

	p1 := New()
	p1.Timestamp = time.Unix(1000, 0)
	chain.Submit(p1, frame)

	p2 := New()
	p2.Timestamp = time.Unix(1000, 10000)
	chain.Submit(p2, frame)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 2
	}, time.Second, time.Millisecond)

	require.False(t, p1.Duplicate)
	require.True(t, p2.Duplicate)
	require.Equal(t, p1.PacketNo, p2.PacketNo)
}

func TestZeroLengthFrameSkipsDedupButStillRunsStages(t *testing.T) {
	chain := NewChain(1)
	defer chain.Shutdown()

	ran := make(chan struct{}, 1)
	chain.RegisterHandler(StageTracker, func(p *Packet) { ran <- struct{}{} })

	p := New()
	chain.Submit(p, nil)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("stage never ran for zero-length frame")
	}
	require.Equal(t, uint32(0), p.Hash)
	require.False(t, p.Duplicate)
}

func TestDuplicateRoutesToSameWorkerAsOriginal(t *testing.T) {
	chain := NewChain(8)
	defer chain.Shutdown()

	workerIDs := make(chan int, 2)
	chain.RegisterHandler(StageTracker, func(p *Packet) {
		workerIDs <- p.assignedWorker
	})

	frame := []byte{9, 9, 9}
	p1 := New()
	chain.Submit(p1, frame)
	p2 := New()
	chain.Submit(p2, frame)

	w1 := <-workerIDs
	w2 := <-workerIDs
	require.Equal(t, w1, w2)
}

type fakeAlertRaiser struct {
	mu    sync.Mutex
	kinds []string
}

func (f *fakeAlertRaiser) AlertByHeader(kind, text string) {
	f.mu.Lock()
	f.kinds = append(f.kinds, kind)
	f.mu.Unlock()
}

func (f *fakeAlertRaiser) fired(kind string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func TestBackpressureDropsWhenWorkerQueueFull(t *testing.T) {
	block := make(chan struct{})
	alerts := &fakeAlertRaiser{}
	stats := NewStats()
	chain := NewChain(1, WithBacklogLimit(1), WithAlertRaiser(alerts), WithStats(stats))
	defer func() {
		close(block)
		chain.Shutdown()
	}()

	chain.RegisterHandler(StageTracker, func(p *Packet) {
		<-block
	})

	// The first packet occupies the worker goroutine (blocked in the
	// handler) and the second fills the size-1 backlog channel; a third
	// has nowhere to go and must be dropped with a PACKETLOST alert.
	chain.Submit(New(), nil)
	chain.Submit(New(), nil)
	chain.Submit(New(), nil)

	require.Eventually(t, func() bool {
		return alerts.fired("PACKETLOST")
	}, time.Second, time.Millisecond)
}

func TestStageOrderRunsPostcapBeforeEnqueue(t *testing.T) {
	chain := NewChain(1)
	defer chain.Shutdown()

	var order []string
	var mu sync.Mutex
	chain.RegisterHandler(StagePostcap, func(p *Packet) {
		mu.Lock()
		order = append(order, "postcap")
		mu.Unlock()
	})
	chain.RegisterHandler(StageClassifier, func(p *Packet) {
		mu.Lock()
		order = append(order, "classifier")
		mu.Unlock()
	})

	done := make(chan struct{})
	chain.RegisterHandler(StageLogging, func(p *Packet) { close(done) })

	chain.Submit(New(), nil)
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"postcap", "classifier"}, order)
}

func TestComponentsRoundTrip(t *testing.T) {
	p := New()
	p.SetComponent(ComponentLinkFrame, LinkFrame{DLT: 127, Data: []byte{1}})
	lf, ok := p.LinkFrame()
	require.True(t, ok)
	require.Equal(t, 127, lf.DLT)
	require.False(t, p.HasComponent(ComponentGPS))
}
