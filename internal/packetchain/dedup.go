package packetchain

import (
	"hash/crc32"
	"sync"
)

const dedupRingSize = 1024

type dedupEntry struct {
	valid    bool
	crc      uint32
	packetNo uint64
	original *Packet
}

// dedupRing is a fixed-size ring of recently seen frame checksums, used to
// detect the same frame arriving from more than one capture source (or
// retransmitted by a flaky capture helper).
type dedupRing struct {
	mu        sync.RWMutex
	entries   [dedupRingSize]dedupEntry
	pos       int
	signalAgg map[uint64]map[string]SignalInfo
}

func newDedupRing() *dedupRing {
	return &dedupRing{signalAgg: make(map[uint64]map[string]SignalInfo)}
}

// AggregateSignal returns the per-datasource-UUID merged signal readings
// collected for a duplicated packet number, or nil if none were merged.
func (d *dedupRing) AggregateSignal(packetNo uint64) map[string]SignalInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.signalAgg[packetNo]
}

func (d *dedupRing) mergeSignal(pkt *Packet) {
	uuid, hasUUID := pkt.Tag("datasource_uuid")
	sigAny, hasSig := pkt.Component(ComponentSignal)
	if !hasUUID || !hasSig {
		return
	}
	sig := sigAny.(SignalInfo)
	m, ok := d.signalAgg[pkt.PacketNo]
	if !ok {
		m = make(map[string]SignalInfo)
		d.signalAgg[pkt.PacketNo] = m
	}
	m[uuid] = sig
}

// check computes the CRC32 of frame and either marks pkt as a duplicate of
// a previously seen packet (copying its packet number and inheriting its
// link to the original), or assigns pkt a new monotonic packet number and
// inserts it into the ring, evicting the oldest entry.
func (d *dedupRing) check(pkt *Packet, frame []byte, nextPacketNo func() uint64) {
	if len(frame) == 0 {
		pkt.Hash = 0
		pkt.PacketNo = nextPacketNo()
		return
	}

	crc := crc32.ChecksumIEEE(frame)
	pkt.Hash = crc

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.entries {
		e := &d.entries[i]
		if e.valid && e.crc == crc {
			pkt.Duplicate = true
			pkt.PacketNo = e.packetNo
			pkt.OriginalRef = e.original
			pkt.CopyNonUniqueComponents(e.original)
			d.mergeSignal(pkt)
			return
		}
	}

	pkt.PacketNo = nextPacketNo()
	d.entries[d.pos] = dedupEntry{valid: true, crc: crc, packetNo: pkt.PacketNo, original: pkt}
	d.pos = (d.pos + 1) % dedupRingSize
}
