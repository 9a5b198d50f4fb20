package trackedelement

import "github.com/kismetcore/kismet/internal/entrytracker"

// SummaryItem names one field to project out of a tree, with an optional
// rename. An empty Rename defaults to the registered name of the final path
// segment.
type SummaryItem struct {
	Path   []entrytracker.FieldID
	Rename string
}

// Summarize materializes a new map-as-vector element containing only the
// requested paths out of root. Paths that don't resolve become a
// KindPlaceholder named after the final path segment (or the rename, if
// given) rather than being omitted, so JSON consumers see every requested
// key. Each placed element records the rename used, for serializers to pick
// up instead of its originally-registered name.
func Summarize(tracker *entrytracker.Tracker, root *Element, items []SummaryItem) *Element {
	out := New(tracker, 0, KindMapString)
	out.SetRenderAsVector(true)

	for _, item := range items {
		name := item.Rename
		if name == "" && len(item.Path) > 0 {
			if n, ok := tracker.GetFieldName(item.Path[len(item.Path)-1]); ok {
				name = n
			}
		}

		results := GetPath(root, item.Path)

		if len(results) == 0 {
			ph := New(tracker, 0, KindPlaceholder)
			ph.renameAs = name
			_ = out.SetField(syntheticKey(out), ph)
			continue
		}

		for _, r := range results {
			r.mu.Lock()
			r.renameAs = name
			r.mu.Unlock()
			_ = out.SetField(syntheticKey(out), r)
		}
	}

	return out
}

// syntheticKey hands out a monotonically increasing synthetic field id used
// purely as a map key inside a summarized (render-as-vector) container; the
// actual serialized name comes from each child's RenameAs.
func syntheticKey(out *Element) entrytracker.FieldID {
	out.mu.Lock()
	defer out.mu.Unlock()
	return entrytracker.FieldID(len(out.order) + 1)
}
