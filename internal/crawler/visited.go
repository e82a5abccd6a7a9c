package crawler

import "sync"

// VisitedSet is an insertion-only set of canonical URLs shared by all
// workers of a crawl.
type VisitedSet struct {
	mu    sync.Mutex
	urls  map[string]struct{}
	order []string
}

// NewVisitedSet creates an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{
		urls: make(map[string]struct{}),
	}
}

// Add inserts key and reports whether it was absent. Exactly one of any
// number of concurrent callers with the same key gets true.
func (v *VisitedSet) Add(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.urls[key]; ok {
		return false
	}
	v.urls[key] = struct{}{}
	v.order = append(v.order, key)
	return true
}

// Contains reports whether key is in the set.
func (v *VisitedSet) Contains(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.urls[key]
	return ok
}

// Len returns the number of keys.
func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.urls)
}

// Keys returns the keys in insertion order.
func (v *VisitedSet) Keys() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.order...)
}
