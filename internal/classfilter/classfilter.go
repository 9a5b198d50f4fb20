// Package classfilter implements the MAC address allow/deny filters:
// class_filter_mac_addr (whole-device filtering keyed by phy) and
// packet_filter_mac_addr (per-packet filtering additionally keyed by
// which address in the frame is being matched). Filters act on "true"
// results — the default policy of true blocks, false passes.
package classfilter

import (
	"fmt"
	"net"
	"sync"

	"github.com/kismetcore/kismet/internal/eventbus"
	"github.com/kismetcore/kismet/internal/monitoring"
)

// NewPhyChannel is the eventbus channel publishing newly-registered phy
// names, used to migrate filter entries registered before their phy
// existed.
const NewPhyChannel = "NEW_PHY"

// macKey normalizes a net.HardwareAddr into a comparable map key.
func macKey(mac net.HardwareAddr) string { return mac.String() }

// MACFilter is class_filter_mac_addr: a per-phy-name map of mac -> bool
// plus a default policy, with entries registered against an unknown phy
// name held aside until that phy is announced on the event bus.
type MACFilter struct {
	mu sync.RWMutex

	id          string
	description string
	defaultVal  bool

	byPhy        map[string]map[string]bool
	byUnknownPhy map[string]map[string]bool

	bus    *eventbus.Bus
	listID eventbus.ListenerID
}

// NewMACFilter constructs a MACFilter subscribed to new-phy announcements
// on bus (bus may be nil in tests that don't need migration).
func NewMACFilter(id, description string, bus *eventbus.Bus) *MACFilter {
	f := &MACFilter{
		id:           id,
		description:  description,
		byPhy:        make(map[string]map[string]bool),
		byUnknownPhy: make(map[string]map[string]bool),
		bus:          bus,
	}
	if bus != nil {
		f.listID = bus.RegisterListener([]string{NewPhyChannel}, f.onNewPhy)
	}
	return f
}

// Close unsubscribes the filter from the event bus.
func (f *MACFilter) Close() {
	if f.bus != nil {
		f.bus.RemoveListener(f.listID)
	}
}

func (f *MACFilter) onNewPhy(evt eventbus.Event) {
	name, _ := evt.Fields["phyname"].(string)
	if name == "" {
		return
	}

	f.mu.Lock()
	pending, ok := f.byUnknownPhy[name]
	if ok {
		delete(f.byUnknownPhy, name)
		if f.byPhy[name] == nil {
			f.byPhy[name] = make(map[string]bool)
		}
		for mac, v := range pending {
			f.byPhy[name][mac] = v
		}
	}
	f.mu.Unlock()

	if ok {
		monitoring.Logf("classfilter: migrated %d entries for newly-seen phy %q into %s", len(pending), name, f.id)
	}
}

// SetDefault sets the filter's default policy (true blocks).
func (f *MACFilter) SetDefault(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultVal = v
}

// Default reports the filter's current default policy.
func (f *MACFilter) Default() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.defaultVal
}

// Filter reports whether mac should be blocked for the given phy name: an
// explicit per-mac entry wins, otherwise the default policy applies.
func (f *MACFilter) Filter(mac net.HardwareAddr, phyName string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if m, ok := f.byPhy[phyName]; ok {
		if v, ok := m[macKey(mac)]; ok {
			return v
		}
	}
	return f.defaultVal
}

// setOne records a single mac/phy/value entry, filing it under
// byUnknownPhy if phyName isn't registered with byPhy yet. known reports
// whether phyName is currently a recognized phy.
func (f *MACFilter) setOne(mac net.HardwareAddr, phyName string, value bool, known bool) {
	target := f.byPhy
	if !known {
		target = f.byUnknownPhy
	}
	if target[phyName] == nil {
		target[phyName] = make(map[string]bool)
	}
	target[phyName][macKey(mac)] = value
}

// SetFilter registers or overwrites a single mac/phy entry. knownPhy
// reports whether phyName is an already-seen phy; unknown phys are held
// in the migration-pending map.
func (f *MACFilter) SetFilter(mac net.HardwareAddr, phyName string, value bool, knownPhy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setOne(mac, phyName, value, knownPhy)
}

// RemoveFilter removes a single mac/phy entry from both the known and
// pending-migration maps.
func (f *MACFilter) RemoveFilter(mac net.HardwareAddr, phyName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.byPhy[phyName]; ok {
		delete(m, macKey(mac))
	}
	if m, ok := f.byUnknownPhy[phyName]; ok {
		delete(m, macKey(mac))
	}
}

// SetRequest is the REST-shaped payload for the set endpoint: either a
// map of mac -> bool, or a bare list of macs that all get the same
// value (per spec.md, "{filter: {mac: bool, ...}}" or "{filter: [mac,
// ...]}").
type SetRequest struct {
	PhyName string
	Entries map[string]bool
	MACs    []string
	Value   bool
}

// ApplySet validates every MAC in req before mutating anything: a single
// unparsable address rejects the whole request, leaving the filter
// unchanged.
func (f *MACFilter) ApplySet(req SetRequest, knownPhy bool) error {
	parsed := make(map[string]bool, len(req.Entries)+len(req.MACs))
	for raw, v := range req.Entries {
		mac, err := net.ParseMAC(raw)
		if err != nil {
			return fmt.Errorf("classfilter: invalid mac %q: %w", raw, err)
		}
		parsed[macKey(mac)] = v
	}
	for _, raw := range req.MACs {
		mac, err := net.ParseMAC(raw)
		if err != nil {
			return fmt.Errorf("classfilter: invalid mac %q: %w", raw, err)
		}
		parsed[macKey(mac)] = req.Value
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for macStr, v := range parsed {
		mac, _ := net.ParseMAC(macStr)
		f.setOne(mac, req.PhyName, v, knownPhy)
	}
	return nil
}

// RemoveRequest is the REST-shaped payload for the remove endpoint: a
// bare list of macs to drop for a phy.
type RemoveRequest struct {
	PhyName string
	MACs    []string
}

// ApplyRemove validates every MAC in req before removing anything.
func (f *MACFilter) ApplyRemove(req RemoveRequest) error {
	parsed := make([]net.HardwareAddr, 0, len(req.MACs))
	for _, raw := range req.MACs {
		mac, err := net.ParseMAC(raw)
		if err != nil {
			return fmt.Errorf("classfilter: invalid mac %q: %w", raw, err)
		}
		parsed = append(parsed, mac)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, mac := range parsed {
		if m, ok := f.byPhy[req.PhyName]; ok {
			delete(m, macKey(mac))
		}
		if m, ok := f.byUnknownPhy[req.PhyName]; ok {
			delete(m, macKey(mac))
		}
	}
	return nil
}
