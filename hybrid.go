package hopscotch

import "github.com/thepudds/hopscotch/internal/vector"

// Hybrid is an open-addressed map that never displaces entries. A new entry
// takes the first empty slot in its neighbourhood; when the whole
// neighbourhood is occupied it goes to the overflow bucket of its home
// index instead.
type Hybrid[K, V any] struct {
	*table[K, V]

	// overflow is parallel to slots. Bucket i holds entries with home i
	// that found no free slot in the array window; it is nil until first
	// needed and again once emptied.
	overflow []*vector.Vector[*Node[K, V]]
}

var _ Map[string, int] = (*Hybrid[string, int])(nil)

// NewHybrid returns an empty map with the smallest listed capacity.
// destroyKey and destroyValue may be nil.
func NewHybrid[K, V any](compare CompareFunc[K], destroyKey DestroyFunc[K], destroyValue DestroyFunc[V]) *Hybrid[K, V] {
	m := &Hybrid[K, V]{table: defaultTable[K, V](VariantHybrid, compare, destroyKey, destroyValue)}
	m.resetOverflow()
	return m
}

func (m *Hybrid[K, V]) resetOverflow() {
	m.overflow = make([]*vector.Vector[*Node[K, V]], len(m.slots))
}

// overflowIndex returns the position of key in the overflow bucket of home,
// or -1.
func (m *Hybrid[K, V]) overflowIndex(home int, key K) int {
	b := m.overflow[home]
	if b == nil {
		return -1
	}
	return b.IndexFunc(func(n *Node[K, V]) bool {
		return m.compare(n.key, key) == 0
	})
}

func (m *Hybrid[K, V]) FindNode(key K) *Node[K, V] {
	if m.hash == nil {
		return nil
	}
	home := m.home(key)
	if i := m.findInWindow(home, key); i >= 0 {
		return m.slots[i]
	}
	if j := m.overflowIndex(home, key); j >= 0 {
		return m.overflow[home].At(j)
	}
	return nil
}

func (m *Hybrid[K, V]) Find(key K) (v V, ok bool) {
	if n := m.FindNode(key); n != nil {
		return n.value, true
	}
	return v, false
}

// Insert associates value with key. On error the map is left as it was.
func (m *Hybrid[K, V]) Insert(key K, value V) error {
	_, _, err := m.upsert(key, value, false)
	return err
}

func (m *Hybrid[K, V]) Replace(key K, value V) (old V, replaced bool, err error) {
	return m.upsert(key, value, true)
}

// upsert relies on FindNode for duplicate detection in both the array window
// and the overflow bucket; insertNode therefore never sees a present key.
func (m *Hybrid[K, V]) upsert(key K, value V, keepValue bool) (old V, replaced bool, err error) {
	if m.hash == nil {
		return old, false, ErrNoHashFunc
	}
	if n := m.FindNode(key); n != nil {
		return m.supersede(n, key, value, keepValue), true, nil
	}
	m.insertNode(&Node[K, V]{key: key, value: value})
	if m.overloaded() {
		if err := m.grow(reasonLoad); err != nil {
			m.unlink(key)
			return old, false, err
		}
	}
	return old, false, nil
}

func (m *Hybrid[K, V]) insertNode(n *Node[K, V]) {
	home := m.home(n.key)
	if i := m.freeInWindow(home); i >= 0 {
		m.slots[i] = n
	} else {
		b := m.overflow[home]
		if b == nil {
			b = vector.New[*Node[K, V]](1)
			m.overflow[home] = b
		}
		b.InsertLast(n)
	}
	m.size++
}

// grow rebuilds the map at the next capacity, reinserting array slot i and
// then overflow bucket i for each index in turn. On error the map is
// unchanged.
func (m *Hybrid[K, V]) grow(reason string) error {
	next, err := m.grown()
	if err != nil {
		return err
	}
	overflow, err := allocate[*vector.Vector[*Node[K, V]]](len(next.slots))
	if err != nil {
		return err
	}
	g := &Hybrid[K, V]{table: next, overflow: overflow}
	for i, n := range m.slots {
		if n != nil {
			g.insertNode(n)
		}
		if b := m.overflow[i]; b != nil {
			for j := 0; j < b.Len(); j++ {
				g.insertNode(b.At(j))
			}
			b.Destroy(nil)
		}
	}
	m.adopt(g.table, reason)
	m.overflow = g.overflow
	return nil
}

// unlink detaches the entry for key without destroying it. An overflow
// entry is replaced by the last one of its bucket.
func (m *Hybrid[K, V]) unlink(key K) *Node[K, V] {
	if m.hash == nil {
		return nil
	}
	home := m.home(key)
	if i := m.findInWindow(home, key); i >= 0 {
		n := m.slots[i]
		m.slots[i] = nil
		m.size--
		return n
	}
	j := m.overflowIndex(home, key)
	if j < 0 {
		return nil
	}
	b := m.overflow[home]
	n := b.At(j)
	b.SetAt(j, b.At(b.Len()-1))
	b.RemoveLast()
	if b.Len() == 0 {
		b.Destroy(nil)
		m.overflow[home] = nil
	}
	m.size--
	return n
}

func (m *Hybrid[K, V]) Remove(key K) bool {
	n := m.unlink(key)
	if n == nil {
		return false
	}
	m.release(n)
	return true
}

func (m *Hybrid[K, V]) First() *Node[K, V] {
	if n := m.scanFrom(0); n != nil {
		return n
	}
	return m.firstOverflowFrom(0)
}

// firstOverflowFrom returns the first entry of the first non-empty overflow
// bucket at home index i or later.
func (m *Hybrid[K, V]) firstOverflowFrom(i int) *Node[K, V] {
	for ; i < len(m.overflow); i++ {
		if b := m.overflow[i]; b != nil && b.Len() > 0 {
			return b.At(0)
		}
	}
	return nil
}

// Next locates n again by hashing its key: first in the array window, then
// in its home overflow bucket.
func (m *Hybrid[K, V]) Next(n *Node[K, V]) *Node[K, V] {
	if n == nil || m.hash == nil {
		return nil
	}
	home := m.home(n.key)
	if i := m.findInWindow(home, n.key); i >= 0 {
		if next := m.scanFrom(i + 1); next != nil {
			return next
		}
		return m.firstOverflowFrom(0)
	}
	j := m.overflowIndex(home, n.key)
	if j < 0 {
		return nil
	}
	if b := m.overflow[home]; j+1 < b.Len() {
		return b.At(j + 1)
	}
	return m.firstOverflowFrom(home + 1)
}

func (m *Hybrid[K, V]) Range(f func(key K, value V) bool) {
	for _, n := range m.slots {
		if n != nil && !f(n.key, n.value) {
			return
		}
	}
	for _, b := range m.overflow {
		if b == nil {
			continue
		}
		for j := 0; j < b.Len(); j++ {
			if n := b.At(j); !f(n.key, n.value) {
				return
			}
		}
	}
}

func (m *Hybrid[K, V]) Stats() Stats {
	s := m.stats
	for _, b := range m.overflow {
		if b != nil {
			s.OverflowBuckets++
			s.Overflow += b.Len()
		}
	}
	return s
}

func (m *Hybrid[K, V]) Destroy() {
	for i, n := range m.slots {
		if n != nil {
			m.release(n)
		}
		if b := m.overflow[i]; b != nil {
			b.Destroy(m.release)
		}
	}
	m.reset()
	m.resetOverflow()
}
