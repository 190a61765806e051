// Package taskctx provides per-task typed key/value storage, for user code
// that would rather keep state in a shared map than thread it through a
// captured struct pointer across a task's resumes.
//
// A Store is scoped to a single Runtime and indexed by the task's slot
// index; it is only ever touched from the thread that owns that Runtime, so
// it takes no locks.
package taskctx

import "github.com/Torbatti/tardy/slot"

type entry struct {
	value      any
	propagated bool
}

// Store holds one key/value map per live task index.
type Store struct {
	tasks map[slot.Index]map[string]entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{tasks: make(map[slot.Index]map[string]entry)}
}

// Set assigns value to key within the task at i, optionally marking it
// propagated for Clone.
func (s *Store) Set(i slot.Index, key string, value any, propagated bool) {
	m, ok := s.tasks[i]
	if !ok {
		m = make(map[string]entry)
		s.tasks[i] = m
	}
	m[key] = entry{value: value, propagated: propagated}
}

// Get fetches key from the task at i.
func (s *Store) Get(i slot.Index, key string) (any, bool) {
	m, ok := s.tasks[i]
	if !ok {
		return nil, false
	}
	e, ok := m[key]
	return e.value, ok
}

// Delete removes key from the task at i.
func (s *Store) Delete(i slot.Index, key string) {
	if m, ok := s.tasks[i]; ok {
		delete(m, key)
	}
}

// IsPropagated reports whether key was set with propagated=true.
func (s *Store) IsPropagated(i slot.Index, key string) bool {
	m, ok := s.tasks[i]
	if !ok {
		return false
	}
	return m[key].propagated
}

// Keys returns every key currently set for the task at i.
func (s *Store) Keys(i slot.Index) []string {
	m := s.tasks[i]
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Clone copies every key marked propagated from src into a newly spawned
// task dst, mirroring the propagation-on-fork semantics a child task
// inherits from its parent.
func (s *Store) Clone(src, dst slot.Index) {
	srcMap, ok := s.tasks[src]
	if !ok {
		return
	}
	for k, e := range srcMap {
		if e.propagated {
			s.Set(dst, k, e.value, true)
		}
	}
}

// Release discards all state for the task at i. Call this once a task
// reaches StateDead so the map does not grow without bound across a long
// running Runtime.
func (s *Store) Release(i slot.Index) {
	delete(s.tasks, i)
}
