package kv

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// XMap is a KVS backed by a lock-free xsync map, for tables written from
// many goroutines at once.
type XMap[K comparable, V any] struct {
	m *xsync.MapOf[K, V]
}

func NewXMap[K comparable, V any]() *XMap[K, V] {
	return &XMap[K, V]{m: xsync.NewMapOf[K, V]()}
}

var _ KVS[string, any] = (*XMap[string, any])(nil)

// Get implements KVS
func (m *XMap[K, V]) Get(key K) (V, bool) {
	return m.m.Load(key)
}

// Set implements KVS
func (m *XMap[K, V]) Set(key K, value V) {
	m.m.Store(key, value)
}

// Upsert stores value and reports whether the key was new.
func (m *XMap[K, V]) Upsert(key K, value V) (inserted bool) {
	return m.UpsertFunc(key, value, nil)
}

// UpsertFunc is Upsert that stores merge(old, value) when the key already
// exists. A nil merge replaces the old value.
func (m *XMap[K, V]) UpsertFunc(key K, value V, merge func(old, value V) V) (inserted bool) {
	m.m.Compute(key, func(old V, loaded bool) (V, bool) {
		inserted = !loaded
		if loaded && merge != nil {
			return merge(old, value), false
		}
		return value, false
	})
	return inserted
}

func (m *XMap[K, V]) Range(f func(key K, value V) bool) {
	m.m.Range(f)
}

func (m *XMap[K, V]) Len() int {
	return m.m.Size()
}

func (m *XMap[K, V]) Close() error {
	m.m.Clear()
	return nil
}
