package fields

import (
	"sync"
)

// Store holds persistent log fields that are attached to every record
// emitted by the logger. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	fields map[string]any
}

var (
	defaultStore *Store
	defaultOnce  sync.Once
)

// NewStore returns an empty store independent of Default().
func NewStore() *Store {
	return &Store{
		fields: make(map[string]any),
	}
}

// Default returns the process-wide store, creating it on first use.
func Default() *Store {
	defaultOnce.Do(func() {
		defaultStore = NewStore()
	})
	return defaultStore
}

// Set inserts or overwrites key. The value is stored as given.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[key] = value
}

// Get reports false when key was never set or has been removed.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.fields[key]
	return v, ok
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fields, key)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fields)
}

// Snapshot returns a copy of all fields. Nested maps and slices are copied
// as well, so callers may mutate the result freely.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.fields))
	for k, v := range s.fields {
		out[k] = deepCopy(v)
	}
	return out
}

// Clear swaps in an empty map under the write lock, so readers see either
// every field or none.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields = make(map[string]any)
}

// SetMany converts every value with ToValue and applies the pairs in order.
// It panics if any value cannot be converted; nothing is applied in that case.
func (s *Store) SetMany(pairs ...Pair) {
	if err := s.TrySetMany(pairs...); err != nil {
		panic(err)
	}
}

// TrySetMany is SetMany returning the conversion error instead of panicking.
// Values are converted before the lock is taken; on error the store is
// left untouched.
func (s *Store) TrySetMany(pairs ...Pair) error {
	converted := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		v, err := ToValue(p.Value)
		if err != nil {
			return fieldError(p.Key, err)
		}
		converted = append(converted, Pair{Key: p.Key, Value: v})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range converted {
		s.fields[p.Key] = p.Value
	}
	return nil
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = deepCopy(inner)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = deepCopy(inner)
		}
		return s
	default:
		return v
	}
}

// Package-level helpers operating on Default().

func Set(key string, value any) { Default().Set(key, value) }

func Get(key string) (any, bool) { return Default().Get(key) }

func Snapshot() map[string]any { return Default().Snapshot() }

func Clear() { Default().Clear() }

func SetMany(pairs ...Pair) { Default().SetMany(pairs...) }
