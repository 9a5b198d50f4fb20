package packetchain

import (
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kismetcore/kismet/internal/monitoring"
	"github.com/kismetcore/kismet/internal/rrd"
)

// AlertRaiser lets the chain report rate-limited backpressure conditions
// without importing the alert tracker directly.
type AlertRaiser interface {
	AlertByHeader(header, text string)
}

// Stats holds the RRDs the chain maintains: total rate, peak, dropped,
// duplicated, error, and queue-depth.
type Stats struct {
	Rate       *rrd.RRD
	Peak       *rrd.RRD
	Dropped    *rrd.RRD
	Duplicated *rrd.RRD
	Errors     *rrd.RRD
	QueueDepth *rrd.RRD
}

// NewStats builds a Stats with appropriately chosen aggregators per field.
func NewStats() *Stats {
	return &Stats{
		Rate:       rrd.New(rrd.DefaultAggregator{}),
		Peak:       rrd.New(rrd.ExtremeAggregator{}),
		Dropped:    rrd.New(rrd.DefaultAggregator{}),
		Duplicated: rrd.New(rrd.DefaultAggregator{}),
		Errors:     rrd.New(rrd.DefaultAggregator{}),
		QueueDepth: rrd.New(rrd.ExtremeAggregator{}),
	}
}

const (
	defaultBacklogLimit = 8192
	defaultLogWarning   = 4096
)

// Chain is the worker-pool packet pipeline: postcap runs synchronously on
// the publisher's goroutine, then the packet is assigned to one of n
// workers, each running the remaining stages in order while the dispatcher
// dedupes and routes.
type Chain struct {
	workers    []chan *Packet
	stages     atomic.Pointer[stageList]
	dedup      *dedupRing
	nextPacket atomic.Uint64

	backlogLimit int
	logWarning   int
	alerts       AlertRaiser
	stats        *Stats

	wg sync.WaitGroup
}

// Option configures a Chain at construction time.
type Option func(*Chain)

// WithAlertRaiser wires backpressure alerts into an AlertRaiser.
func WithAlertRaiser(a AlertRaiser) Option { return func(c *Chain) { c.alerts = a } }

// WithStats wires RRD bookkeeping into the chain.
func WithStats(s *Stats) Option { return func(c *Chain) { c.stats = s } }

// WithBacklogLimit overrides the default 8192 packet_backlog_limit.
func WithBacklogLimit(n int) Option { return func(c *Chain) { c.backlogLimit = n } }

// WithLogWarning overrides the default packet_log_warning threshold.
func WithLogWarning(n int) Option { return func(c *Chain) { c.logWarning = n } }

// NewChain starts n worker goroutines (n defaults to runtime concurrency
// when <= 0, per kismet_packet_threads) and returns a ready Chain.
func NewChain(n int, opts ...Option) *Chain {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	c := &Chain{
		dedup:        newDedupRing(),
		backlogLimit: defaultBacklogLimit,
		logWarning:   defaultLogWarning,
	}
	var empty stageList
	c.stages.Store(&empty)

	for _, opt := range opts {
		opt(c)
	}

	c.workers = make([]chan *Packet, n)
	for i := range c.workers {
		c.workers[i] = make(chan *Packet, c.backlogLimit)
		c.wg.Add(1)
		go c.runWorker(i)
	}
	return c
}

// RegisterHandler adds fn to the named stage. A worker loads the stage
// list each time it dequeues a packet, so a new registration applies to
// every packet dequeued after this call returns, including packets that
// were already queued; a packet whose stages are already running keeps
// the list it loaded (copy-on-write, no mid-packet hot swap).
func (c *Chain) RegisterHandler(kind StageKind, fn HandlerFunc) {
	for {
		old := c.stages.Load()
		next := old.clone()
		next[kind] = append(next[kind], fn)
		if c.stages.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Submit runs postcap synchronously, dedupes, assigns a worker, and
// enqueues pkt. frame is the raw link-layer bytes used for deduplication
// (pass nil for a zero-length/absent link frame).
func (c *Chain) Submit(pkt *Packet, frame []byte) {
	stages := c.stages.Load()
	stages.runPostcap(pkt)

	c.dedup.check(pkt, frame, func() uint64 { return c.nextPacket.Add(1) })
	if pkt.Duplicate && c.stats != nil {
		c.noteStat(c.stats.Duplicated)
	}

	worker := c.assignWorker(pkt)
	pkt.assignedWorker = worker

	select {
	case c.workers[worker] <- pkt:
		if c.stats != nil {
			c.noteStat(c.stats.Rate)
		}
		c.noteQueueDepth(worker)
	default:
		if c.stats != nil {
			c.noteStat(c.stats.Dropped)
		}
		if c.alerts != nil {
			c.alerts.AlertByHeader("PACKETLOST", "packet chain backlog exceeded, dropping packet")
		}
		monitoring.Logf("packetchain: dropping packet, worker %d backlog full", worker)
	}
}

func (c *Chain) assignWorker(pkt *Packet) int {
	n := len(c.workers)

	if pkt.Duplicate && pkt.OriginalRef != nil {
		return pkt.OriginalRef.assignedWorker % n
	}
	if pkt.AssignmentID != 0 {
		return int(pkt.AssignmentID % uint64(n))
	}
	return rand.Intn(n)
}

func (c *Chain) noteStat(r *rrd.RRD) {
	if r == nil {
		return
	}
	r.AddSample(1, time.Now().Unix())
}

func (c *Chain) noteQueueDepth(worker int) {
	if c.stats == nil || c.stats.QueueDepth == nil {
		return
	}
	depth := len(c.workers[worker])
	if depth >= c.logWarning && c.alerts != nil {
		c.alerts.AlertByHeader("PACKETQUEUE", "packet chain queue depth exceeds warning threshold")
	}
	c.stats.QueueDepth.AddSample(float64(depth), time.Now().Unix())
}

func (c *Chain) runWorker(idx int) {
	defer c.wg.Done()
	for pkt := range c.workers[idx] {
		if pkt == nil {
			return
		}
		stages := c.stages.Load()
		stages.run(pkt)
	}
}

// Shutdown sends a sentinel nil packet to every worker and joins them in
// order.
func (c *Chain) Shutdown() {
	for _, w := range c.workers {
		w <- nil
	}
	c.wg.Wait()
}

// AggregateSignal exposes the dedup ring's aggregate-signal lookup for
// callers that need to report a merged per-UUID signal view for a
// duplicated packet.
func (c *Chain) AggregateSignal(packetNo uint64) map[string]SignalInfo {
	return c.dedup.AggregateSignal(packetNo)
}
