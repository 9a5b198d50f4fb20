package classfilter

import (
	"fmt"
	"net"

	"github.com/kismetcore/kismet/internal/eventbus"
	"github.com/kismetcore/kismet/internal/packetchain"
)

// Block names the address role a PacketMACFilter entry is evaluated
// against.
type Block string

const (
	BlockSource Block = "source"
	BlockDest   Block = "dest"
	BlockAny    Block = "any"
)

// PacketMACFilter is packet_filter_mac_addr: the same per-phy mac/bool
// structure as MACFilter, but one instance per filter block, so a
// request can independently filter on a packet's source, destination,
// or any address.
type PacketMACFilter struct {
	blocks map[Block]*MACFilter
}

// NewPacketMACFilter constructs a filter for source, dest, and any
// blocks.
func NewPacketMACFilter(id, description string, bus *eventbus.Bus) *PacketMACFilter {
	return &PacketMACFilter{
		blocks: map[Block]*MACFilter{
			BlockSource: NewMACFilter(id+".source", description, bus),
			BlockDest:   NewMACFilter(id+".dest", description, bus),
			BlockAny:    NewMACFilter(id+".any", description, bus),
		},
	}
}

// Close unsubscribes every block's filter from the event bus.
func (f *PacketMACFilter) Close() {
	for _, b := range f.blocks {
		b.Close()
	}
}

// Block returns the MACFilter backing a given block, or nil if block is
// unrecognized.
func (f *PacketMACFilter) Block(block Block) *MACFilter { return f.blocks[block] }

// FilterPacket reports whether info's addresses should be blocked: the
// any-block is checked against source, dest, and transmitter; the
// source- and dest-blocks are checked against their matching address
// only. A packet is blocked if any applicable block says so.
func (f *PacketMACFilter) FilterPacket(info packetchain.CommonInfo) bool {
	if b := f.blocks[BlockAny]; b != nil {
		for _, mac := range []net.HardwareAddr{info.Source, info.Dest, info.Transmitter} {
			if len(mac) == 0 {
				continue
			}
			if b.Filter(mac, phyName(info.PhyID)) {
				return true
			}
		}
	}
	if b := f.blocks[BlockSource]; b != nil && len(info.Source) > 0 {
		if b.Filter(info.Source, phyName(info.PhyID)) {
			return true
		}
	}
	if b := f.blocks[BlockDest]; b != nil && len(info.Dest) > 0 {
		if b.Filter(info.Dest, phyName(info.PhyID)) {
			return true
		}
	}
	return false
}

// phyName is a placeholder key until phy IDs are resolved to names by
// the caller; FilterPacket callers that know the phy's registered name
// should prefer calling Block(...).Filter directly with it.
func phyName(phyID int) string { return fmt.Sprintf("phy%d", phyID) }

// ApplySet validates and applies a set request against one block.
func (f *PacketMACFilter) ApplySet(block Block, req SetRequest, knownPhy bool) error {
	b, ok := f.blocks[block]
	if !ok {
		return fmt.Errorf("classfilter: unknown filter block %q", block)
	}
	return b.ApplySet(req, knownPhy)
}

// ApplyRemove validates and applies a remove request against one block.
func (f *PacketMACFilter) ApplyRemove(block Block, req RemoveRequest) error {
	b, ok := f.blocks[block]
	if !ok {
		return fmt.Errorf("classfilter: unknown filter block %q", block)
	}
	return b.ApplyRemove(req)
}
