// Package entrytracker implements the process-wide field registry: the
// name<->id mapping, descriptions, and per-type serializers that every
// tracked element is registered against.
package entrytracker

import (
	"fmt"
	"sync"
)

// FieldID is a dense, monotonically assigned identifier for a registered
// field. Ids are stable for the lifetime of the process.
type FieldID int64

// Builder constructs a fresh element instance for a field. Used by
// RegisterAndGetField; kept as interface{} here to avoid an import cycle with
// the trackedelement package (which depends on entrytracker for ids).
type Builder func() interface{}

type fieldEntry struct {
	id          FieldID
	name        string
	description string
	typeTag     string
}

// Tracker is the field registry. A single process-wide instance is normally
// used (see Global), but the type itself carries no global state so tests can
// construct isolated instances.
type Tracker struct {
	mu        sync.RWMutex
	byName    map[string]*fieldEntry
	byID      map[FieldID]*fieldEntry
	nextID    FieldID
	serialize map[string]Serializer
}

// Serializer writes a rendering of an element tree for a given type tag.
// The writer and root are left as interface{} to keep this package free of
// a dependency on trackedelement.
type Serializer func(writer interface{}, root interface{}, renameMap map[string]string) error

// New creates an empty Tracker. Field id 0 is never assigned; ids start at 1.
func New() *Tracker {
	return &Tracker{
		byName:    make(map[string]*fieldEntry),
		byID:      make(map[FieldID]*fieldEntry),
		nextID:    1,
		serialize: make(map[string]Serializer),
	}
}

// RegisterField idempotently registers name with the given type tag and
// description, returning its field id. Re-registering an existing name with
// a different type tag is an error; re-registering with the same type tag
// returns the existing id.
func (t *Tracker) RegisterField(name string, typeTag string, description string) (FieldID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.byName[name]; ok {
		if e.typeTag != typeTag {
			return 0, fmt.Errorf("entrytracker: field %q already registered with type %q, cannot re-register as %q", name, e.typeTag, typeTag)
		}
		return e.id, nil
	}

	id := t.nextID
	t.nextID++
	e := &fieldEntry{id: id, name: name, description: description, typeTag: typeTag}
	t.byName[name] = e
	t.byID[id] = e
	return id, nil
}

// RegisterAndGetField registers name (idempotently, as RegisterField does)
// using the built instance's Go type as its type tag, then returns that
// instance. This is the common shortcut for callers that just want a fresh,
// registered element for a field without separately calling RegisterField
// and then constructing the element themselves.
func (t *Tracker) RegisterAndGetField(name string, builder Builder, description string) (interface{}, error) {
	instance := builder()
	typeTag := fmt.Sprintf("%T", instance)
	if _, err := t.RegisterField(name, typeTag, description); err != nil {
		return nil, err
	}
	return instance, nil
}

// GetFieldID returns the id registered for name, or 0, false if unregistered.
func (t *Tracker) GetFieldID(name string) (FieldID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byName[name]
	if !ok {
		return 0, false
	}
	return e.id, true
}

// GetFieldName returns the name registered for id, or "", false.
func (t *Tracker) GetFieldName(id FieldID) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byID[id]
	if !ok {
		return "", false
	}
	return e.name, true
}

// GetFieldDescription returns the description registered for id, or "", false.
func (t *Tracker) GetFieldDescription(id FieldID) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byID[id]
	if !ok {
		return "", false
	}
	return e.description, true
}

// GetFieldType returns the type tag registered for id, or "", false.
func (t *Tracker) GetFieldType(id FieldID) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byID[id]
	if !ok {
		return "", false
	}
	return e.typeTag, true
}

// RegisterSerializer installs a serializer for the given type tag (e.g.
// "json", "ek-json", "it-json"). Replaces any previous serializer for the
// same tag.
func (t *Tracker) RegisterSerializer(typeTag string, s Serializer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.serialize[typeTag] = s
}

// Serialize dispatches to the serializer registered for typeTag.
func (t *Tracker) Serialize(typeTag string, writer interface{}, root interface{}, renameMap map[string]string) error {
	t.mu.RLock()
	s, ok := t.serialize[typeTag]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("entrytracker: no serializer registered for type %q", typeTag)
	}
	return s(writer, root, renameMap)
}

var (
	globalOnce sync.Once
	global     *Tracker
)

// Global returns the process-wide Tracker singleton, constructing it on
// first use. Matches the Kismet pattern of a singleton entry tracker passed
// implicitly through the system; Go callers are expected to pass *Tracker
// explicitly where possible and fall back to Global only at wiring time.
func Global() *Tracker {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}
