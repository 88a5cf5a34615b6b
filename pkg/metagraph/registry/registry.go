package registry

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicate is returned by Register when the key is already present.
var ErrDuplicate = errors.New("registry: duplicate key")

// ErrNotFound is returned by Lookup when the key is absent.
var ErrNotFound = errors.New("registry: key not found")

// Registry is a thread-safe registry for values indexed by key.
// Keys are remembered in registration order, and a key can be registered
// only once, so Keys and Range are deterministic.
type Registry[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
	order   []K
}

// New creates a new empty registry.
func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		entries: make(map[K]V),
	}
}

// Register adds a value under key. Registering an existing key fails
// with ErrDuplicate and leaves the stored value unchanged.
func (r *Registry[K, V]) Register(key K, value V) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("%w: %v", ErrDuplicate, key)
	}
	r.entries[key] = value
	r.order = append(r.order, key)
	return nil
}

// MustRegister registers a value, panicking on error.
func (r *Registry[K, V]) MustRegister(key K, value V) {
	if err := r.Register(key, value); err != nil {
		panic(err)
	}
}

// Get returns the value for a key and whether it exists.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

// Lookup returns the value for a key, or an error wrapping ErrNotFound.
func (r *Registry[K, V]) Lookup(key K) (V, error) {
	v, ok := r.Get(key)
	if !ok {
		return v, fmt.Errorf("%w: %v", ErrNotFound, key)
	}
	return v, nil
}

// Has returns true if the key exists in the registry.
func (r *Registry[K, V]) Has(key K) bool {
	_, ok := r.Get(key)
	return ok
}

// Keys returns all keys in registration order.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]K, len(r.order))
	copy(keys, r.order)
	return keys
}

// Len returns the number of entries in the registry.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Range calls fn for each entry in registration order until fn returns false.
// It iterates over a snapshot, so fn may call Register.
func (r *Registry[K, V]) Range(fn func(K, V) bool) {
	r.mu.RLock()
	keys := make([]K, len(r.order))
	copy(keys, r.order)
	values := make([]V, len(keys))
	for i, k := range keys {
		values[i] = r.entries[k]
	}
	r.mu.RUnlock()

	for i, k := range keys {
		if !fn(k, values[i]) {
			return
		}
	}
}
