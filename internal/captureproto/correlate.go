package captureproto

import "sync"

// ReportCallback is invoked exactly once when a reply matching a tracked
// command's seqno arrives.
type ReportCallback func(header Header, body map[int]any)

// trackedCommand correlates one outstanding request with the callback
// that should fire when its reply is received.
type trackedCommand struct {
	transactionID uint64
	seqno         uint16
	callback      ReportCallback
}

// Correlator tracks outstanding requests by seqno so replies (which only
// carry a seqno, not the original request) can be routed back to the
// caller that issued them.
type Correlator struct {
	mu      sync.Mutex
	nextTxn uint64
	pending map[uint16]*trackedCommand
}

// NewCorrelator constructs an empty Correlator.
func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[uint16]*trackedCommand)}
}

// Track registers cb to fire when a reply with the given seqno arrives,
// and returns the transaction id assigned to this request.
func (c *Correlator) Track(seqno uint16, cb ReportCallback) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextTxn++
	c.pending[seqno] = &trackedCommand{transactionID: c.nextTxn, seqno: seqno, callback: cb}
	return c.nextTxn
}

// Resolve finds the tracked command for seqno, removes it, and invokes
// its callback with header and body. It is a no-op if no command is
// pending for that seqno (a duplicate or unsolicited reply).
func (c *Correlator) Resolve(header Header, body map[int]any) {
	c.mu.Lock()
	tc, ok := c.pending[header.SeqnoOrCode]
	if ok {
		delete(c.pending, header.SeqnoOrCode)
	}
	c.mu.Unlock()

	if ok && tc.callback != nil {
		tc.callback(header, body)
	}
}

// Pending reports how many requests are still awaiting a reply.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Abandon removes seqno from tracking without invoking its callback, used
// when the connection that owned it is being torn down.
func (c *Correlator) Abandon(seqno uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, seqno)
}
