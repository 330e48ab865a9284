package hopscotch

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var variants = []Variant{VariantHopscotch, VariantHybrid}

type hashCase struct {
	name string
	hash HashFunc[int]
}

var hashCases = []hashCase{
	{"identity", identityHash},
	{"mixed", mixHash},
	{"lumpy", lumpyHash},
}

func TestMap_Find(t *testing.T) {
	tests := []struct {
		name string
		keys []int
	}{
		{"one key", []int{1}},
		{"small, with one grow", list(0, 30, 1)},
		{"small, with multiple grows", list(0, 111, 1)},
		{"strided, with multiple grows", list(0, 5300, 53)},
		{"medium", list(0, 5000, 1)},
	}

	for _, variant := range variants {
		for _, hc := range hashCases {
			for _, tt := range tests {
				t.Run(fmt.Sprintf("%s/%s/%s", variant, hc.name, tt.name), func(t *testing.T) {
					m := newMap(variant, hc.hash)

					for _, k := range tt.keys {
						if err := m.Insert(k, k); err != nil {
							t.Fatalf("Map.Insert(%v) error: %v", k, err)
						}
					}

					gotLen := m.Len()
					if gotLen != len(tt.keys) {
						t.Errorf("Map.Len() = %d, want %d", gotLen, len(tt.keys))
					}

					for _, k := range tt.keys {
						gotV, gotOk := m.Find(k)
						if gotV != k || !gotOk {
							t.Errorf("Map.Find(%v) = %v, %v. want = %v, true", k, gotV, gotOk, k)
						}
					}

					notPresent := -1
					gotV, gotOk := m.Find(notPresent)
					if gotV != 0 || gotOk {
						t.Errorf("Map.Find(notPresent) = %v, %v. want = 0, false", gotV, gotOk)
					}
					if n := m.FindNode(notPresent); n != nil {
						t.Errorf("Map.FindNode(notPresent) = %v, want nil", n)
					}
				})
			}
		}
	}
}

func TestMap_Iterate(t *testing.T) {
	tests := []struct {
		name  string
		elems map[int]int
	}{
		{"empty", map[int]int{}},
		{
			"three elements",
			map[int]int{
				1:   2,
				8:   8,
				1e6: 1e10,
			},
		},
		{"one grow", mapOf(list(0, 40, 1))},
		{"many grows", mapOf(list(0, 2000, 3))},
	}

	for _, variant := range variants {
		for _, hc := range hashCases {
			for _, tt := range tests {
				t.Run(fmt.Sprintf("%s/%s/%s", variant, hc.name, tt.name), func(t *testing.T) {
					m := newMap(variant, hc.hash)
					for key, value := range tt.elems {
						if err := m.Insert(key, value); err != nil {
							t.Fatalf("Map.Insert() error: %v", err)
						}
					}

					got, err := keysAndValues(m)
					if err != nil {
						dumpTable(t, m)
						t.Fatal(err)
					}
					if diff := cmp.Diff(tt.elems, got); diff != "" {
						t.Errorf("First/Next result mismatch (-want +got):\n%s", diff)
					}

					ranged := make(map[int]int)
					m.Range(func(key, value int) bool {
						if _, ok := ranged[key]; ok {
							t.Errorf("Map.Range() key %v seen twice", key)
						}
						ranged[key] = value
						return true
					})
					if diff := cmp.Diff(tt.elems, ranged); diff != "" {
						t.Errorf("Map.Range() result mismatch (-want +got):\n%s", diff)
					}
				})
			}
		}
	}
}

func TestMap_IterateOrderMatchesRange(t *testing.T) {
	for _, variant := range variants {
		t.Run(string(variant), func(t *testing.T) {
			m := newMap(variant, lumpyHash)
			for _, k := range list(0, 300, 1) {
				if err := m.Insert(k, k); err != nil {
					t.Fatal(err)
				}
			}
			var viaNext, viaRange []int
			for n := m.First(); n != nil; n = m.Next(n) {
				viaNext = append(viaNext, n.Key())
			}
			m.Range(func(key, _ int) bool {
				viaRange = append(viaRange, key)
				return true
			})
			if diff := cmp.Diff(viaRange, viaNext); diff != "" {
				t.Errorf("iteration order mismatch (-Range +First/Next):\n%s", diff)
			}
		})
	}
}

func TestMap_RangeStop(t *testing.T) {
	for _, variant := range variants {
		m := newMap(variant, identityHash)
		for _, k := range list(0, 10, 1) {
			if err := m.Insert(k, k); err != nil {
				t.Fatal(err)
			}
		}
		calls := 0
		m.Range(func(key, value int) bool {
			calls++
			return calls < 2
		})
		if calls != 2 {
			t.Errorf("%s: Map.Range() made %d calls after returning false, want 2", variant, calls)
		}
	}
}

func TestMap_Remove(t *testing.T) {
	tests := []struct {
		name        string
		insert      int
		deleteFront int
		deleteBack  int
	}{
		{"small, delete one", 2, 1, 0},
		{"small, delete none after growing", 40, 0, 0},
		{"delete ten after growing", 510, 0, 10},
		{"delete half", 510, 255, 0},
		{"delete all after growing", 511, 256, 255},
	}

	for _, variant := range variants {
		for _, hc := range hashCases {
			for _, tt := range tests {
				t.Run(fmt.Sprintf("%s/%s/%s", variant, hc.name, tt.name), func(t *testing.T) {
					m := newMap(variant, hc.hash)
					want := make(map[int]int)

					for i := 0; i < tt.insert; i++ {
						if err := m.Insert(i, i); err != nil {
							t.Fatal(err)
						}
						want[i] = i
					}

					if m.Remove(-1) {
						t.Errorf("Map.Remove(-1) = true for a missing key")
					}

					for i := 0; i < tt.deleteFront; i++ {
						if !m.Remove(i) {
							t.Errorf("Map.Remove(%d) = false", i)
						}
						delete(want, i)
					}
					for i := tt.insert - tt.deleteBack; i < tt.insert; i++ {
						if !m.Remove(i) {
							t.Errorf("Map.Remove(%d) = false", i)
						}
						delete(want, i)
					}
					// second removal of the same key reports false
					if tt.deleteFront > 0 && m.Remove(0) {
						t.Errorf("Map.Remove(0) twice = true")
					}

					got, err := keysAndValues(m)
					if err != nil {
						t.Fatal(err)
					}
					if diff := cmp.Diff(want, got); diff != "" {
						dumpTable(t, m)
						t.Errorf("content mismatch (-want +got):\n%s", diff)
					}
					if m.Len() != len(want) {
						t.Errorf("Map.Len() = %v, want %v", m.Len(), len(want))
					}
					for k := range want {
						if v, ok := m.Find(k); !ok || v != k {
							t.Errorf("Map.Find(%d) = %v, %v after removals", k, v, ok)
						}
					}
					if err := checkInvariants(m); err != nil {
						t.Error(err)
					}
				})
			}
		}
	}
}

func TestMap_Update(t *testing.T) {
	for _, variant := range variants {
		for _, hc := range hashCases {
			t.Run(fmt.Sprintf("%s/%s", variant, hc.name), func(t *testing.T) {
				m := newMap(variant, hc.hash)
				keys := list(0, 300, 1)
				for _, k := range keys {
					if err := m.Insert(k, k); err != nil {
						t.Fatal(err)
					}
				}
				capBefore := m.Cap()
				for _, k := range keys {
					if err := m.Insert(k, -k); err != nil {
						t.Fatal(err)
					}
				}
				if m.Len() != len(keys) {
					t.Errorf("Map.Len() = %d after updates, want %d", m.Len(), len(keys))
				}
				if m.Cap() != capBefore {
					t.Errorf("Map.Cap() = %d after updates, want unchanged %d", m.Cap(), capBefore)
				}
				for _, k := range keys {
					if v, _ := m.Find(k); v != -k {
						t.Errorf("Map.Find(%d) = %d, want %d", k, v, -k)
					}
				}
			})
		}
	}
}

func TestMap_LoadFactor(t *testing.T) {
	for _, variant := range variants {
		for _, hc := range hashCases {
			t.Run(fmt.Sprintf("%s/%s", variant, hc.name), func(t *testing.T) {
				m := newMap(variant, hc.hash)
				for i := 0; i < 5000; i++ {
					if err := m.Insert(i*7, i); err != nil {
						t.Fatal(err)
					}
					if 2*m.Len() > m.Cap() {
						t.Fatalf("after %d inserts: load factor %d/%d above 0.5", i+1, m.Len(), m.Cap())
					}
				}
			})
		}
	}
}

func TestMap_GrowPreservesNodes(t *testing.T) {
	for _, variant := range variants {
		t.Run(string(variant), func(t *testing.T) {
			m := newMap(variant, lumpyHash)
			nodes := make(map[int]*Node[int, int])
			for _, k := range list(0, 26, 1) {
				if err := m.Insert(k, k*10); err != nil {
					t.Fatal(err)
				}
				nodes[k] = m.FindNode(k)
			}
			if m.Cap() != 53 {
				t.Fatalf("Map.Cap() = %d before growth, want 53", m.Cap())
			}
			// the 27th entry pushes the load factor past 0.5
			if err := m.Insert(26, 260); err != nil {
				t.Fatal(err)
			}
			if m.Cap() != 97 {
				t.Fatalf("Map.Cap() = %d after growth, want 97", m.Cap())
			}
			for k, n := range nodes {
				if got := m.FindNode(k); got != n {
					t.Errorf("Map.FindNode(%d) = %p after growth, want the same node %p", k, got, n)
				}
				if n.Value() != k*10 {
					t.Errorf("node %d value = %d, want %d", k, n.Value(), k*10)
				}
			}
			if s := m.Stats(); s.Grows != 1 {
				t.Errorf("Stats().Grows = %d, want 1", s.Grows)
			}
		})
	}
}

func TestMap_NextAfterRemove(t *testing.T) {
	for _, variant := range variants {
		m := newMap(variant, zeroHash)
		for _, k := range []int{1, 2, 3} {
			if err := m.Insert(k, k); err != nil {
				t.Fatal(err)
			}
		}
		n := m.FindNode(2)
		m.Remove(2)
		if got := m.Next(n); got != nil {
			t.Errorf("%s: Next(removed node) = %v, want nil", variant, got.Key())
		}
		if got := m.Next(nil); got != nil {
			t.Errorf("%s: Next(nil) = %v, want nil", variant, got.Key())
		}
	}
}

func TestMap_NoHashFunc(t *testing.T) {
	for _, variant := range variants {
		m, err := New[int, int](Config{Variant: variant}, Compare[int], nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		if err := m.Insert(1, 1); !errors.Is(err, ErrNoHashFunc) {
			t.Errorf("%s: Insert without hash = %v, want ErrNoHashFunc", variant, err)
		}
		if _, ok := m.Find(1); ok {
			t.Errorf("%s: Find without hash found a key", variant)
		}
		if m.Remove(1) {
			t.Errorf("%s: Remove without hash = true", variant)
		}
		if m.First() != nil || m.Len() != 0 {
			t.Errorf("%s: map without hash is not empty", variant)
		}
	}
}

func TestMap_RandomOps(t *testing.T) {
	for _, variant := range variants {
		for _, hc := range hashCases {
			t.Run(fmt.Sprintf("%s/%s", variant, hc.name), func(t *testing.T) {
				for rep := 0; rep < 20; rep++ {
					rng := rand.New(rand.NewSource(int64(rep)))
					vm := NewVmap(variant, 0, hc.hash)
					for i := 0; i < 2000; i++ {
						k := rng.Intn(400)
						switch rng.Intn(4) {
						case 0, 1:
							vm.Set(k, rng.Int())
						case 2:
							vm.Delete(k)
						case 3:
							vm.Get(k)
						}
						if i%250 == 0 {
							vm.Iterate()
						}
					}
					vm.Len()
					vm.Iterate()
				}
			})
		}
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantCap int
		wantErr error
	}{
		{"zero config", Config{}, 53, nil},
		{"hybrid", Config{Variant: VariantHybrid}, 53, nil},
		{"capacity hint", Config{InitialCapacity: 100}, 193, nil},
		{"capacity hint on a prime", Config{Variant: VariantHybrid, InitialCapacity: 389}, 389, nil},
		{"hint past max", Config{InitialCapacity: 1000, MaxCapacity: 500}, 0, ErrOutOfMemory},
		{"unknown variant", Config{Variant: "cuckoo"}, 0, ErrUnknownVariant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New[int, int](tt.cfg, Compare[int], nil, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if m.Cap() != tt.wantCap {
				t.Errorf("Map.Cap() = %d, want %d", m.Cap(), tt.wantCap)
			}
		})
	}
}

func TestMap_MaxCapacity(t *testing.T) {
	for _, variant := range variants {
		t.Run(string(variant), func(t *testing.T) {
			m, err := New[int, int](Config{Variant: variant, MaxCapacity: 97}, Compare[int], nil, nil)
			if err != nil {
				t.Fatal(err)
			}
			m.SetHashFunc(identityHash)
			var growErr error
			for i := 0; i < 49; i++ {
				if growErr = m.Insert(i, i); growErr != nil {
					if i != 48 {
						t.Fatalf("Insert(%d) failed early: %v", i, growErr)
					}
				}
			}
			if !errors.Is(growErr, ErrOutOfMemory) {
				t.Fatalf("Insert past max capacity = %v, want ErrOutOfMemory", growErr)
			}
			// the entry that tripped the failed growth is rolled back
			if m.Len() != 48 || m.Cap() != 97 {
				t.Errorf("Len, Cap = %d, %d; want 48, 97", m.Len(), m.Cap())
			}
			if _, ok := m.Find(48); ok {
				t.Errorf("Find(48) found the entry of a failed Insert")
			}
			for i := 0; i < 48; i++ {
				if v, ok := m.Find(i); !ok || v != i {
					t.Errorf("Find(%d) = %v, %v after failed growth", i, v, ok)
				}
			}
			if err := checkInvariants(m); err != nil {
				t.Error(err)
			}
		})
	}
}

// helpers

func newMap(variant Variant, hash HashFunc[int]) Map[int, int] {
	var m Map[int, int]
	switch variant {
	case VariantHybrid:
		m = NewHybrid[int, int](Compare[int], nil, nil)
	default:
		m = NewHopscotch[int, int](Compare[int], nil, nil)
	}
	m.SetHashFunc(hash)
	return m
}

func identityHash(k int) uint { return uint(k) }

func zeroHash(k int) uint { return 0 }

// mixHash is a multiplicative hash, closer to a real hash than identityHash.
func mixHash(k int) uint {
	x := uint64(k) * 0x9E3779B97F4A7C15
	return uint(x ^ x>>29)
}

// lumpyHash sends pairs of keys to the same home.
func lumpyHash(k int) uint { return uint(k &^ 1) }

// crowdedHash sends runs of eight keys to the same home, more than a
// neighbourhood holds. Only the hybrid variant can store them.
func crowdedHash(k int) uint { return uint(k / 8) }

func list(start, end, stride int) []int {
	var res []int
	for i := start; i < end; i += stride {
		res = append(res, i)
	}
	return res
}

func mapOf(keys []int) map[int]int {
	res := make(map[int]int, len(keys))
	for _, k := range keys {
		res[k] = k
	}
	return res
}

// keysAndValues walks m with First/Next and fails on a repeated key.
func keysAndValues(m Map[int, int]) (map[int]int, error) {
	res := make(map[int]int)
	for n := m.First(); n != nil; n = m.Next(n) {
		if _, ok := res[n.Key()]; ok {
			return nil, fmt.Errorf("First/Next visited key %v twice", n.Key())
		}
		res[n.Key()] = n.Value()
	}
	if len(res) != m.Len() {
		return nil, fmt.Errorf("First/Next visited %d keys, Len() = %d", len(res), m.Len())
	}
	return res, nil
}

// checkInvariants reaches into the implementation to verify neighbourhood
// and overflow placement, and that size matches the stored entries.
func checkInvariants(m Map[int, int]) error {
	var t *table[int, int]
	count := 0
	switch m := m.(type) {
	case *Hopscotch[int, int]:
		t = m.table
	case *Hybrid[int, int]:
		t = m.table
		if len(m.overflow) != len(t.slots) {
			return fmt.Errorf("overflow len %d, slots len %d", len(m.overflow), len(t.slots))
		}
		for i, b := range m.overflow {
			if b == nil {
				continue
			}
			if b.Len() == 0 {
				return fmt.Errorf("empty overflow bucket %d not released", i)
			}
			for j := 0; j < b.Len(); j++ {
				if h := t.home(b.At(j).key); h != i {
					return fmt.Errorf("key %v with home %d in overflow bucket %d", b.At(j).key, h, i)
				}
				count++
			}
		}
	default:
		return fmt.Errorf("unexpected map type %T", m)
	}
	for i, n := range t.slots {
		if n == nil {
			continue
		}
		count++
		if d := dist(t.home(n.key), i, len(t.slots)); d > neighbours {
			return fmt.Errorf("key %v at slot %d is %d slots from home", n.key, i, d)
		}
	}
	if count != t.size {
		return fmt.Errorf("stored %d entries, size %d", count, t.size)
	}
	if 2*t.size > len(t.slots) {
		return fmt.Errorf("load factor %d/%d above 0.5", t.size, len(t.slots))
	}
	return nil
}

func dumpTable(t *testing.T, m Map[int, int]) {
	t.Helper()
	var tb *table[int, int]
	switch m := m.(type) {
	case *Hopscotch[int, int]:
		tb = m.table
	case *Hybrid[int, int]:
		tb = m.table
		for i, b := range m.overflow {
			if b == nil {
				continue
			}
			var keys []int
			for j := 0; j < b.Len(); j++ {
				keys = append(keys, b.At(j).key)
			}
			t.Logf("overflow[%d]: %v", i, keys)
		}
	}
	for i, n := range tb.slots {
		if n != nil {
			t.Logf("slot[%d]: key %v home %d", i, n.key, tb.home(n.key))
		}
	}
}
