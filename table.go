package hopscotch

import (
	"math"
	"reflect"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// neighbours is how far past its home position an array-resident entry may
// live. A neighbourhood is the neighbours+1 consecutive slots starting at home.
const neighbours = 3

// maxForcedGrowths bounds how often a single insertion may grow the pure
// variant because displacement found no candidate.
const maxForcedGrowths = 8

// maxSlotBytes bounds the bucket array of a map built with the default
// configuration.
const maxSlotBytes = 1 << 30

// DefaultMaxCapacity is the growth limit used when Config.MaxCapacity is zero:
// the number of slots that fit in maxSlotBytes.
const DefaultMaxCapacity = maxSlotBytes / int(unsafe.Sizeof(uintptr(0)))

// primeSizes lists the capacities the table steps through. Past the last
// entry, capacity doubles.
var primeSizes = []int{
	53, 97, 193, 389, 769, 1543, 3079, 6151, 12289, 24593, 49157, 98317, 196613, 393241,
	786433, 1572869, 3145739, 6291469, 12582917, 25165843, 50331653, 100663319, 201326611,
	402653189, 805306457, 1610612741,
}

const (
	reasonLoad         = "load factor"
	reasonDisplacement = "displacement failed"
)

// nextCapacity returns the first listed prime greater than capacity, or
// twice capacity once the list is exhausted. It returns 0 if doubling
// would overflow an int.
func nextCapacity(capacity int) int {
	for _, p := range primeSizes {
		if p > capacity {
			return p
		}
	}
	if capacity > math.MaxInt/2 {
		return 0
	}
	return capacity * 2
}

// initialCapacity returns the smallest capacity in the growth sequence that
// is at least hint.
func initialCapacity(hint int) int {
	capacity := primeSizes[0]
	for capacity < hint {
		next := nextCapacity(capacity)
		if next == 0 {
			return hint
		}
		capacity = next
	}
	return capacity
}

// dist is the forward distance from a to b on a ring of the given capacity.
func dist(a, b, capacity int) int {
	return ((b-a)%capacity + capacity) % capacity
}

// allocate makes a slice of n zero values, turning a runtime allocation
// panic into ErrOutOfMemory.
func allocate[T any](n int) (s []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			s = nil
			err = errors.Wrapf(ErrOutOfMemory, "allocating %d slots: %v", n, r)
		}
	}()
	return make([]T, n), nil
}

// table is the bucket array and the configuration both variants share.
// A nil slot is empty.
type table[K, V any] struct {
	slots []*Node[K, V]
	size  int

	compare      CompareFunc[K]
	hash         HashFunc[K]
	destroyKey   DestroyFunc[K]
	destroyValue DestroyFunc[V]

	initialCapacity int
	maxCapacity     int
	variant         Variant
	logger          *zap.Logger

	stats Stats
}

func defaultTable[K, V any](variant Variant, compare CompareFunc[K], destroyKey DestroyFunc[K], destroyValue DestroyFunc[V]) *table[K, V] {
	return &table[K, V]{
		slots:           make([]*Node[K, V], primeSizes[0]),
		compare:         compare,
		destroyKey:      destroyKey,
		destroyValue:    destroyValue,
		initialCapacity: primeSizes[0],
		maxCapacity:     DefaultMaxCapacity,
		variant:         variant,
		logger:          zap.NewNop(),
	}
}

func newTable[K, V any](cfg Config, compare CompareFunc[K], destroyKey DestroyFunc[K], destroyValue DestroyFunc[V]) (*table[K, V], error) {
	t := defaultTable[K, V](cfg.Variant, compare, destroyKey, destroyValue)
	if t.variant == "" {
		t.variant = VariantHopscotch
	}
	if cfg.MaxCapacity > 0 {
		t.maxCapacity = cfg.MaxCapacity
	}
	if cfg.Logger != nil {
		t.logger = cfg.Logger
	}

	capacity := initialCapacity(cfg.InitialCapacity)
	if capacity > t.maxCapacity {
		return nil, errors.Wrapf(ErrOutOfMemory, "initial capacity %d exceeds maximum %d", capacity, t.maxCapacity)
	}
	if capacity != len(t.slots) {
		slots, err := allocate[*Node[K, V]](capacity)
		if err != nil {
			return nil, err
		}
		t.slots = slots
	}
	t.initialCapacity = capacity
	return t, nil
}

// grown returns an empty table with the same configuration and the next
// capacity in the growth sequence. Its stats already count the growth.
func (t *table[K, V]) grown() (*table[K, V], error) {
	capacity := nextCapacity(len(t.slots))
	if capacity == 0 || capacity > t.maxCapacity {
		t.logger.Warn("hopscotch: growth limit reached",
			zap.String("variant", string(t.variant)),
			zap.Int("capacity", len(t.slots)),
			zap.Int("max_capacity", t.maxCapacity),
			zap.Int("size", t.size))
		return nil, errors.Wrapf(ErrOutOfMemory, "cannot grow past capacity %d (max %d)", len(t.slots), t.maxCapacity)
	}
	slots, err := allocate[*Node[K, V]](capacity)
	if err != nil {
		return nil, err
	}
	next := *t
	next.slots = slots
	next.size = 0
	next.stats.Grows++
	return &next, nil
}

// adopt takes over the storage of a table built by grown.
func (t *table[K, V]) adopt(next *table[K, V], reason string) {
	t.logger.Debug("hopscotch: grow",
		zap.String("variant", string(t.variant)),
		zap.String("reason", reason),
		zap.Int("old_capacity", len(t.slots)),
		zap.Int("new_capacity", len(next.slots)),
		zap.Int("size", next.size))
	t.slots = next.slots
	t.size = next.size
	t.stats = next.stats
}

func (t *table[K, V]) home(key K) int {
	return int(t.hash(key) % uint(len(t.slots)))
}

// findInWindow returns the index of the occupied slot in home's
// neighbourhood whose key equals key, or -1.
func (t *table[K, V]) findInWindow(home int, key K) int {
	capacity := len(t.slots)
	for i := 0; i <= neighbours; i++ {
		idx := (home + i) % capacity
		if n := t.slots[idx]; n != nil && t.compare(n.key, key) == 0 {
			return idx
		}
	}
	return -1
}

// freeInWindow returns the first empty slot in home's neighbourhood, or -1.
func (t *table[K, V]) freeInWindow(home int) int {
	capacity := len(t.slots)
	for i := 0; i <= neighbours; i++ {
		idx := (home + i) % capacity
		if t.slots[idx] == nil {
			return idx
		}
	}
	return -1
}

// scanFrom returns the first occupied slot at index i or later.
func (t *table[K, V]) scanFrom(i int) *Node[K, V] {
	for ; i < len(t.slots); i++ {
		if n := t.slots[i]; n != nil {
			return n
		}
	}
	return nil
}

func (t *table[K, V]) overloaded() bool {
	return 2*t.size > len(t.slots)
}

// supersede stores key and value in n. Unless keepValue is set, the old value
// goes to the value destructor. Old objects identical to their replacement
// are never destroyed.
func (t *table[K, V]) supersede(n *Node[K, V], key K, value V, keepValue bool) V {
	old := n.value
	if t.destroyKey != nil && !identical(n.key, key) {
		t.destroyKey(n.key)
	}
	if !keepValue && t.destroyValue != nil && !identical(old, value) {
		t.destroyValue(old)
	}
	n.key, n.value = key, value
	return old
}

func (t *table[K, V]) release(n *Node[K, V]) {
	if t.destroyKey != nil {
		t.destroyKey(n.key)
	}
	if t.destroyValue != nil {
		t.destroyValue(n.value)
	}
}

// reset drops every entry and returns to the initial capacity.
func (t *table[K, V]) reset() {
	t.slots = make([]*Node[K, V], t.initialCapacity)
	t.size = 0
}

func (t *table[K, V]) Len() int { return t.size }

func (t *table[K, V]) Cap() int { return len(t.slots) }

// SetHashFunc sets the hash function. It must be called before the first
// insertion, and not changed while the map holds entries.
func (t *table[K, V]) SetHashFunc(fn HashFunc[K]) { t.hash = fn }

func (t *table[K, V]) SetDestroyKey(fn DestroyFunc[K]) DestroyFunc[K] {
	old := t.destroyKey
	t.destroyKey = fn
	return old
}

func (t *table[K, V]) SetDestroyValue(fn DestroyFunc[V]) DestroyFunc[V] {
	old := t.destroyValue
	t.destroyValue = fn
	return old
}

// SetLogger replaces the logger used for growth events. A nil logger
// disables logging.
func (t *table[K, V]) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t.logger = logger
}

// identical reports whether a and b are the same object: the same address
// for reference kinds, equal values for other comparable types.
func identical(a, b any) (same bool) {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Ptr, reflect.UnsafePointer, reflect.Map, reflect.Chan, reflect.Func:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if !va.Type().Comparable() {
		return false
	}
	// interface fields can still hold incomparable values
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
