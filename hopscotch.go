package hopscotch

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Hopscotch is an open-addressed map using pure hopscotch hashing: every
// entry lives within neighbours slots of its home position. Insertion moves
// the nearest empty slot towards home by displacing entries that stay within
// their own neighbourhoods, and grows the table when that is impossible.
type Hopscotch[K, V any] struct {
	*table[K, V]
}

var _ Map[string, int] = (*Hopscotch[string, int])(nil)

// NewHopscotch returns an empty map with the smallest listed capacity.
// destroyKey and destroyValue may be nil.
func NewHopscotch[K, V any](compare CompareFunc[K], destroyKey DestroyFunc[K], destroyValue DestroyFunc[V]) *Hopscotch[K, V] {
	return &Hopscotch[K, V]{table: defaultTable[K, V](VariantHopscotch, compare, destroyKey, destroyValue)}
}

func (m *Hopscotch[K, V]) FindNode(key K) *Node[K, V] {
	if m.hash == nil {
		return nil
	}
	if i := m.findInWindow(m.home(key), key); i >= 0 {
		return m.slots[i]
	}
	return nil
}

func (m *Hopscotch[K, V]) Find(key K) (v V, ok bool) {
	if n := m.FindNode(key); n != nil {
		return n.value, true
	}
	return v, false
}

// Insert associates value with key. On error the map is left as it was.
func (m *Hopscotch[K, V]) Insert(key K, value V) error {
	_, _, err := m.upsert(key, value, false)
	return err
}

func (m *Hopscotch[K, V]) Replace(key K, value V) (old V, replaced bool, err error) {
	return m.upsert(key, value, true)
}

func (m *Hopscotch[K, V]) upsert(key K, value V, keepValue bool) (old V, replaced bool, err error) {
	if m.hash == nil {
		return old, false, ErrNoHashFunc
	}
	if n := m.FindNode(key); n != nil {
		return m.supersede(n, key, value, keepValue), true, nil
	}
	if err := m.insertNode(&Node[K, V]{key: key, value: value}); err != nil {
		return old, false, err
	}
	if m.overloaded() {
		if err := m.grow(reasonLoad); err != nil {
			m.unlink(key)
			return old, false, err
		}
	}
	return old, false, nil
}

// insertNode stores n, whose key must not be present. When displacement
// fails, it grows scratch copies of the table until n fits, and adopts the
// copy only then. On error the map keeps its capacity and entries.
func (m *Hopscotch[K, V]) insertNode(n *Node[K, V]) error {
	if m.place(n) {
		m.size++
		return nil
	}
	g := m
	for forced := 1; forced <= maxForcedGrowths && g.growthMovesHomes(n); forced++ {
		next, err := g.rebuilt()
		if err != nil {
			return err
		}
		next.stats.ForcedGrows++
		if next.place(n) {
			next.size++
			m.adopt(next.table, reasonDisplacement)
			return nil
		}
		g = next
	}
	m.logger.Warn("hopscotch: displacement exhausted",
		zap.Int("capacity", len(m.slots)),
		zap.Int("tried_capacity", len(g.slots)),
		zap.Int("size", m.size))
	return errors.Wrapf(ErrNeighbourhoodFull, "at capacity %d", len(m.slots))
}

// growthMovesHomes reports whether a larger table could give n or a stored
// entry another home or neighbourhood. Once every hash is below
// capacity-neighbours, homes equal hashes and no neighbourhood wraps, so
// growing changes nothing about where entries may live.
func (m *Hopscotch[K, V]) growthMovesHomes(n *Node[K, V]) bool {
	limit := uint(len(m.slots) - neighbours)
	if m.hash(n.key) >= limit {
		return true
	}
	for _, c := range m.slots {
		if c != nil && m.hash(c.key) >= limit {
			return true
		}
	}
	return false
}

// place finds an empty slot within n's neighbourhood and occupies it. It
// reports false if displacement got stuck; entries it already moved are
// still inside their neighbourhoods.
func (m *Hopscotch[K, V]) place(n *Node[K, V]) bool {
	capacity := len(m.slots)
	home := m.home(n.key)
	e := m.nearestFree(home)
	if e < 0 {
		return false
	}
	for dist(home, e, capacity) > neighbours {
		if e = m.displaceInto(e); e < 0 {
			return false
		}
	}
	m.slots[e] = n
	return true
}

// nearestFree linearly searches for the nearest empty slot at or after home.
func (m *Hopscotch[K, V]) nearestFree(home int) int {
	capacity := len(m.slots)
	for i := 0; i < capacity; i++ {
		idx := (home + i) % capacity
		if m.slots[idx] == nil {
			return idx
		}
	}
	return -1
}

// displaceInto fills the empty slot e with an entry from the neighbours slots
// behind it whose neighbourhood also covers e, farthest first. It returns the
// slot it vacated, or -1 if no entry can move.
func (m *Hopscotch[K, V]) displaceInto(e int) int {
	capacity := len(m.slots)
	for back := neighbours; back > 0; back-- {
		j := (e - back + capacity) % capacity
		c := m.slots[j]
		if c == nil {
			continue
		}
		if dist(m.home(c.key), e, capacity) <= neighbours {
			m.slots[e], m.slots[j] = c, nil
			m.stats.Displacements++
			return j
		}
	}
	return -1
}

// rebuilt returns a copy of m at the next capacity holding every entry.
// m itself is not modified.
func (m *Hopscotch[K, V]) rebuilt() (*Hopscotch[K, V], error) {
	next, err := m.grown()
	if err != nil {
		return nil, err
	}
	g := &Hopscotch[K, V]{table: next}
	for _, n := range m.slots {
		if n == nil {
			continue
		}
		if err := g.insertNode(n); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// grow rebuilds the map at the next capacity. On error the map is unchanged.
func (m *Hopscotch[K, V]) grow(reason string) error {
	g, err := m.rebuilt()
	if err != nil {
		return err
	}
	m.adopt(g.table, reason)
	return nil
}

// unlink detaches the entry for key without destroying it.
func (m *Hopscotch[K, V]) unlink(key K) *Node[K, V] {
	if m.hash == nil {
		return nil
	}
	i := m.findInWindow(m.home(key), key)
	if i < 0 {
		return nil
	}
	n := m.slots[i]
	m.slots[i] = nil
	m.size--
	return n
}

func (m *Hopscotch[K, V]) Remove(key K) bool {
	n := m.unlink(key)
	if n == nil {
		return false
	}
	m.release(n)
	return true
}

func (m *Hopscotch[K, V]) First() *Node[K, V] {
	return m.scanFrom(0)
}

// Next locates n again by hashing its key, so it needs no cursor state.
func (m *Hopscotch[K, V]) Next(n *Node[K, V]) *Node[K, V] {
	if n == nil || m.hash == nil {
		return nil
	}
	i := m.findInWindow(m.home(n.key), n.key)
	if i < 0 {
		return nil
	}
	return m.scanFrom(i + 1)
}

func (m *Hopscotch[K, V]) Range(f func(key K, value V) bool) {
	for _, n := range m.slots {
		if n != nil && !f(n.key, n.value) {
			return
		}
	}
}

func (m *Hopscotch[K, V]) Stats() Stats {
	return m.stats
}

func (m *Hopscotch[K, V]) Destroy() {
	for _, n := range m.slots {
		if n != nil {
			m.release(n)
		}
	}
	m.reset()
}
