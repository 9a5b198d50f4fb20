package trackedelement

import (
	"strings"

	"github.com/kismetcore/kismet/internal/entrytracker"
)

// ParsePath splits a "a/b/c" string path into field ids using tracker to
// resolve names. Returns an error if any segment is unregistered.
func ParsePath(tracker *entrytracker.Tracker, path string) ([]entrytracker.FieldID, error) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	ids := make([]entrytracker.FieldID, 0, len(segs))
	for _, s := range segs {
		if s == "" {
			continue
		}
		id, ok := tracker.GetFieldID(s)
		if !ok {
			return nil, &ErrCoerce{Kind: KindInvalid, Value: s}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetPath walks e by a list of field ids, descending through maps and
// aliases. When a mid-path node is a vector or a non-field-id-keyed map, the
// same remaining path is applied to every child and the results are
// flattened, in document (insertion) order.
func GetPath(e *Element, path []entrytracker.FieldID) []*Element {
	e = resolveAlias(e)
	if e == nil {
		return nil
	}
	if len(path) == 0 {
		return []*Element{e}
	}

	switch e.kind {
	case KindMapString:
		child, ok := e.GetField(path[0])
		if !ok {
			return nil
		}
		return GetPath(child, path[1:])

	case KindVector:
		e.mu.RLock()
		kids := make([]*Element, len(e.vec))
		copy(kids, e.vec)
		e.mu.RUnlock()
		var out []*Element
		for _, k := range kids {
			out = append(out, GetPath(k, path)...)
		}
		return out

	case KindMapInt, KindMapFloat, KindMapMAC, KindMapUUID, KindMapHashkey, KindMapDeviceKey:
		e.mu.RLock()
		kids := make([]*Element, 0, len(e.order))
		for _, key := range e.order {
			kids = append(kids, e.children[key])
		}
		e.mu.RUnlock()
		var out []*Element
		for _, k := range kids {
			out = append(out, GetPath(k, path)...)
		}
		return out

	default:
		// scalar / vector<f64> / vector<string> / pair / map<f64,f64>: no
		// further descent is possible.
		return nil
	}
}
