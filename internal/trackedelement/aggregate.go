package trackedelement

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kismetcore/kismet/internal/devicekey"
	"github.com/kismetcore/kismet/internal/entrytracker"
)

// resolveAlias follows a single-step alias indirection. Aliases are not
// created cyclically by construction, so one step is always sufficient.
func resolveAlias(e *Element) *Element {
	if e == nil {
		return nil
	}
	e.mu.RLock()
	k := e.kind
	target := e.alias
	e.mu.RUnlock()
	if k == KindAlias {
		return target
	}
	return e
}

// SetAlias turns e into a weak reference to target.
func (e *Element) SetAlias(target *Element) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kind = KindAlias
	e.alias = target
}

// GetField returns the child registered under fieldID in a KindMapString
// element (the fundamental field-id-keyed record map), following one alias
// step on the result.
func (e *Element) GetField(fieldID entrytracker.FieldID) (*Element, bool) {
	if e.kind != KindMapString {
		return nil, false
	}
	e.mu.RLock()
	child, ok := e.children[fieldID]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return resolveAlias(child), true
}

// SetField inserts or replaces the child registered under fieldID. Used both
// for eager construction and for materializing a reserved dynamic child on
// first write.
func (e *Element) SetField(fieldID entrytracker.FieldID, child *Element) error {
	if e.kind != KindMapString {
		return fmt.Errorf("trackedelement: SetField on non-map element (kind=%s)", e.kind)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.insertOrdered(fieldID, child)
	e.materialize()
	return nil
}

// insertOrdered records key's first-seen position in e.order. Caller must
// hold e.mu.
func (e *Element) insertOrdered(key any, child *Element) {
	if _, existed := e.children[key]; !existed {
		e.order = append(e.order, key)
	}
	e.children[key] = child
}

// ReserveField reserves a dynamic (lazily-allocated) child under fieldID,
// returning the placeholder. Readers see it as unallocated until the first
// SetField/coercive write touches it.
func (e *Element) ReserveField(fieldID entrytracker.FieldID, kind Kind) *Element {
	child := NewDynamic(e.tracker, fieldID, kind)
	e.mu.Lock()
	if e.children == nil {
		e.children = make(map[any]*Element)
	}
	e.insertOrdered(fieldID, child)
	e.mu.Unlock()
	return child
}

// Keys returns the field ids present in a KindMapString element, in
// insertion (document) order.
func (e *Element) Keys() []entrytracker.FieldID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]entrytracker.FieldID, 0, len(e.order))
	for _, k := range e.order {
		if id, ok := k.(entrytracker.FieldID); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// OrderedKeys returns the generic map keys (uint64 for int and hashkey
// maps, float64, mac-string, uuid.UUID, devicekey.Key) in insertion order,
// for the non-field-id-keyed map kinds.
func (e *Element) OrderedKeys() []any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]any, len(e.order))
	copy(out, e.order)
	return out
}

// --- vector<elem> ---

// Append adds a child to a KindVector element.
func (e *Element) Append(child *Element) error {
	if e.kind != KindVector {
		return fmt.Errorf("trackedelement: Append on non-vector element (kind=%s)", e.kind)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vec = append(e.vec, child)
	e.materialize()
	return nil
}

// At returns the i'th element of a KindVector, following one alias step.
func (e *Element) At(i int) (*Element, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if i < 0 || i >= len(e.vec) {
		return nil, false
	}
	return resolveAlias(e.vec[i]), true
}

// Len returns the number of children/entries in any aggregate kind.
func (e *Element) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch e.kind {
	case KindVector:
		return len(e.vec)
	case KindVectorFloat:
		return len(e.vecFloat)
	case KindVectorString:
		return len(e.vecString)
	case KindMapFloatFloat:
		return len(e.floatFloatMap)
	default:
		return len(e.children)
	}
}

// --- vector<f64> / vector<string> ---

func (e *Element) AppendFloat(v float64) error {
	if e.kind != KindVectorFloat {
		return fmt.Errorf("trackedelement: AppendFloat on kind %s", e.kind)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vecFloat = append(e.vecFloat, v)
	e.materialize()
	return nil
}

func (e *Element) FloatSlice() []float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]float64, len(e.vecFloat))
	copy(out, e.vecFloat)
	return out
}

func (e *Element) AppendString(v string) error {
	if e.kind != KindVectorString {
		return fmt.Errorf("trackedelement: AppendString on kind %s", e.kind)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vecString = append(e.vecString, v)
	e.materialize()
	return nil
}

func (e *Element) StringSlice() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.vecString))
	copy(out, e.vecString)
	return out
}

// --- pair<f64,f64> ---

func (e *Element) SetPair(a, b float64) error {
	if e.kind != KindPairFloat {
		return fmt.Errorf("trackedelement: SetPair on kind %s", e.kind)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pair = [2]float64{a, b}
	e.materialize()
	return nil
}

func (e *Element) Pair() (float64, float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pair[0], e.pair[1]
}

// --- generically-keyed elem maps (int/float/mac/uuid/hashkey/device_key) ---

// GetByIntKey looks up a child in a KindMapInt element by integer key.
func (e *Element) GetByIntKey(k int64) (*Element, bool) {
	return e.getGenericKey(KindMapInt, uint64(k))
}

func (e *Element) SetByIntKey(k int64, child *Element) error {
	return e.setGenericKey(KindMapInt, uint64(k), child)
}

// GetByFloatKey looks up a child in a KindMapFloat element by float key.
func (e *Element) GetByFloatKey(k float64) (*Element, bool) {
	return e.getGenericKey(KindMapFloat, k)
}

func (e *Element) SetByFloatKey(k float64, child *Element) error {
	return e.setGenericKey(KindMapFloat, k, child)
}

// GetByMAC looks up a child in a KindMapMAC element by MAC.
func (e *Element) GetByMAC(mac fmt.Stringer) (*Element, bool) {
	return e.getGenericKey(KindMapMAC, mac.String())
}

func (e *Element) SetByMAC(mac fmt.Stringer, child *Element) error {
	return e.setGenericKey(KindMapMAC, mac.String(), child)
}

// GetByUUID looks up a child in a KindMapUUID element.
func (e *Element) GetByUUID(u uuid.UUID) (*Element, bool) {
	return e.getGenericKey(KindMapUUID, u)
}

func (e *Element) SetByUUID(u uuid.UUID, child *Element) error {
	return e.setGenericKey(KindMapUUID, u, child)
}

// GetByHashkey looks up a child in a KindMapHashkey element.
func (e *Element) GetByHashkey(h uint64) (*Element, bool) {
	return e.getGenericKey(KindMapHashkey, h)
}

func (e *Element) SetByHashkey(h uint64, child *Element) error {
	return e.setGenericKey(KindMapHashkey, h, child)
}

// GetByDeviceKey looks up a child in a KindMapDeviceKey element.
func (e *Element) GetByDeviceKey(k devicekey.Key) (*Element, bool) {
	return e.getGenericKey(KindMapDeviceKey, k)
}

func (e *Element) SetByDeviceKey(k devicekey.Key, child *Element) error {
	return e.setGenericKey(KindMapDeviceKey, k, child)
}

func (e *Element) getGenericKey(expect Kind, key any) (*Element, bool) {
	if e.kind != expect {
		return nil, false
	}
	e.mu.RLock()
	child, ok := e.children[key]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return resolveAlias(child), true
}

func (e *Element) setGenericKey(expect Kind, key any, child *Element) error {
	if e.kind != expect {
		return fmt.Errorf("trackedelement: key-set on kind %s, expected %s", e.kind, expect)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.children == nil {
		e.children = make(map[any]*Element)
	}
	e.insertOrdered(key, child)
	e.materialize()
	return nil
}

// --- map<f64,f64> (not elem-valued) ---

func (e *Element) SetFloatFloat(k, v float64) error {
	if e.kind != KindMapFloatFloat {
		return fmt.Errorf("trackedelement: SetFloatFloat on kind %s", e.kind)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.floatFloatMap == nil {
		e.floatFloatMap = make(map[float64]float64)
	}
	e.floatFloatMap[k] = v
	e.materialize()
	return nil
}

func (e *Element) GetFloatFloat(k float64) (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.floatFloatMap[k]
	return v, ok
}

// FloatFloatMap returns a copy of the map<f64,f64> contents.
func (e *Element) FloatFloatMap() map[float64]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[float64]float64, len(e.floatFloatMap))
	for k, v := range e.floatFloatMap {
		out[k] = v
	}
	return out
}
