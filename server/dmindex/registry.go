package dmindex

import "sync"

// Registry holds the index shared by the plugin's hooks, HTTP handlers and
// commands. It never starts or stops the indexes it holds; whoever installs an
// index owns its lifecycle.
type Registry struct {
	mu      sync.RWMutex
	current *Index
}

// Create builds a new index from source and installs it, replacing any
// previous one without stopping it.
func (r *Registry) Create(source Source, logger Logger) *Index {
	index := New(source, logger)
	r.Replace(index)
	return index
}

// Replace installs index and returns the one it replaced, if any.
func (r *Registry) Replace(index *Index) *Index {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.current
	r.current = index
	return previous
}

// Get returns the installed index.
func (r *Registry) Get() (*Index, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.current, r.current != nil
}
