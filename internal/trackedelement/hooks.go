package trackedelement

import "github.com/kismetcore/kismet/internal/entrytracker"

// AddPreSerializeHook registers a hook invoked just before e (reached via
// some resolved path) is written by a serializer.
func (e *Element) AddPreSerializeHook(h Hook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.preHooks = append(e.preHooks, h)
}

// AddPostSerializeHook registers a hook invoked just after e is written.
func (e *Element) AddPostSerializeHook(h Hook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.postHooks = append(e.postHooks, h)
}

func (e *Element) runPreHooks(path []entrytracker.FieldID) {
	e.mu.RLock()
	hooks := e.preHooks
	e.mu.RUnlock()
	for _, h := range hooks {
		_ = h(path)
	}
}

func (e *Element) runPostHooks(path []entrytracker.FieldID) {
	e.mu.RLock()
	hooks := e.postHooks
	e.mu.RUnlock()
	for _, h := range hooks {
		_ = h(path)
	}
}
