package trackedelement

import (
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/kismetcore/kismet/internal/devicekey"
	"github.com/kismetcore/kismet/internal/entrytracker"
)

// Hook is invoked before or after serialization of the element reached by
// walking a resolved path.
type Hook func(path []entrytracker.FieldID) error

// Element is one typed value with a stable field id. Every domain record
// (device, SSID, alert, RRD bucket...) is built from a tree of Elements
// rooted in a KindMapString element.
type Element struct {
	mu sync.RWMutex

	id      entrytracker.FieldID
	kind    Kind
	tracker *entrytracker.Tracker

	// scalar storage: only the field matching kind is meaningful.
	i    int64
	u    uint64
	f    float64
	s    string
	b    []byte
	mac  net.HardwareAddr
	uid  uuid.UUID
	ip   net.IP
	dkey devicekey.Key

	// aggregate storage.
	children      map[any]*Element // keyed per Kind: FieldID, uint64, float64, uuid.UUID, devicekey.Key, or string (mac)
	order         []any            // insertion order of children keys, for stable/document-order serialization
	floatFloatMap map[float64]float64
	vec           []*Element
	vecFloat      []float64
	vecString     []string
	pair          [2]float64

	alias *Element

	renderAsVector bool // serialization-only flag on map kinds

	// dynamic/lazy children: reserved but not yet allocated.
	dynamic   bool
	allocated bool

	// set when this element is produced by Summarize(): the name this
	// element is renamed to in its summarized parent.
	renameAs string

	preHooks  []Hook
	postHooks []Hook
}

// New constructs a scalar or empty-aggregate element of the given kind,
// registered under id. Aggregates start empty; vector/map children are
// populated via the Set*/child accessors.
func New(tracker *entrytracker.Tracker, id entrytracker.FieldID, kind Kind) *Element {
	e := &Element{id: id, kind: kind, tracker: tracker}
	switch kind {
	case KindMapString, KindMapInt, KindMapFloat, KindMapMAC, KindMapUUID, KindMapHashkey, KindMapDeviceKey:
		e.children = make(map[any]*Element)
	case KindMapFloatFloat:
		e.floatFloatMap = make(map[float64]float64)
	}
	return e
}

// NewDynamic constructs a placeholder for a reserved-but-not-yet-allocated
// child: the id/description exist, but no storage is allocated until the
// first write. Readers see "absent" (IsAllocated() == false) until then.
func NewDynamic(tracker *entrytracker.Tracker, id entrytracker.FieldID, kind Kind) *Element {
	e := New(tracker, id, kind)
	e.dynamic = true
	e.allocated = false
	return e
}

// Materialize marks a dynamic element as allocated; called implicitly by
// any Set* call.
func (e *Element) materialize() {
	if e.dynamic && !e.allocated {
		e.allocated = true
	}
}

// ID returns the field id this element was registered under.
func (e *Element) ID() entrytracker.FieldID { return e.id }

// Kind returns the element's wire type.
func (e *Element) Kind() Kind { return e.kind }

// IsAllocated reports whether a dynamic element has been written at least
// once. Non-dynamic elements are always allocated.
func (e *Element) IsAllocated() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.dynamic || e.allocated
}

// RenderAsVector reports the map-serialize-as-vector flag.
func (e *Element) RenderAsVector() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.renderAsVector
}

// SetRenderAsVector sets the map-serialize-as-vector flag. Only meaningful
// on map-kind elements; internal map semantics are unaffected, only
// serialization.
func (e *Element) SetRenderAsVector(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderAsVector = v
}

// RenameAs returns the name this element should serialize under when it was
// produced via Summarize, or "" if unset.
func (e *Element) RenameAs() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.renameAs
}
