package kv_test

import (
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/royalcat/chorographer/kv"
)

func TestKVSImplementations(t *testing.T) {
	impls := map[string]kv.KVS[int64, string]{
		"map":       kv.NewMap[int64, string](),
		"mutex_map": kv.NewMutexMap[int64, string](),
		"xmap":      kv.NewXMap[int64, string](),
	}

	for name, m := range impls {
		t.Run(name, func(t *testing.T) {
			m.Set(1, "a")
			m.Set(2, "b")
			m.Set(1, "c")

			if v, ok := m.Get(1); !ok || v != "c" {
				t.Fatalf("expected c, got %q %v", v, ok)
			}
			if _, ok := m.Get(3); ok {
				t.Fatal("unexpected value for missing key")
			}
			if m.Len() != 2 {
				t.Fatalf("expected 2 entries, got %d", m.Len())
			}

			seen := 0
			m.Range(func(int64, string) bool {
				seen++
				return false
			})
			if seen != 1 {
				t.Fatalf("range must stop when callback returns false, saw %d", seen)
			}

			if err := m.Close(); err != nil {
				t.Fatal(err)
			}
			if m.Len() != 0 {
				t.Fatalf("expected empty map after close, got %d", m.Len())
			}
		})
	}
}

func TestXMapUpsert(t *testing.T) {
	m := kv.NewXMap[int64, int]()

	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range int64(100) {
				if m.Upsert(id, i) {
					mu.Lock()
					inserted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if inserted != 100 {
		t.Fatalf("expected 100 inserts, got %d", inserted)
	}
	if m.Len() != 100 {
		t.Fatalf("expected 100 entries, got %d", m.Len())
	}
}

func TestXMapUpsertFunc(t *testing.T) {
	m := kv.NewXMap[int64, [2]int]()
	keepFirst := func(old, value [2]int) [2]int {
		return [2]int{value[0], old[1]}
	}

	if !m.UpsertFunc(1, [2]int{1, 7}, keepFirst) {
		t.Fatal("expected first upsert to insert")
	}
	if m.UpsertFunc(1, [2]int{2, 0}, keepFirst) {
		t.Fatal("expected second upsert to update")
	}
	if v, _ := m.Get(1); v != [2]int{2, 7} {
		t.Fatalf("expected merged value [2 7], got %v", v)
	}

	m.UpsertFunc(1, [2]int{3, 0}, nil)
	if v, _ := m.Get(1); v != [2]int{3, 0} {
		t.Fatalf("expected nil merge to replace, got %v", v)
	}
}

func TestFixedPoint(t *testing.T) {
	p := orb.Point{47.5079055, -18.8791902}
	fp := kv.ToFixed(p)
	if fp != (kv.FixedPoint{475079055, -188791902}) {
		t.Fatalf("unexpected fixed point %v", fp)
	}
	back := fp.Point()
	if back != p {
		t.Fatalf("expected %v after round trip, got %v", p, back)
	}

	// values closer than half a grid step share a key
	if kv.ToFixed(orb.Point{47.50790551, -18.87919021}) != fp {
		t.Fatal("expected nearby point to snap to the same key")
	}
}
