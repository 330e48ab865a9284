package hopscotch

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CompareFunc reports the ordering of two keys. Only equality (a result of 0)
// is used by the maps in this package.
type CompareFunc[K any] func(a, b K) int

// HashFunc maps a key to an unsigned integer. The home position of a key is
// its hash modulo the table capacity.
type HashFunc[K any] func(key K) uint

// DestroyFunc releases a key or value the map owns. A nil DestroyFunc means
// the map does not own that kind of object.
type DestroyFunc[T any] func(T)

// Node is a handle to a live entry. A Node keeps its key and value when the
// table displaces or grows, so a handle stays valid until its entry is removed.
type Node[K, V any] struct {
	key   K
	value V
}

// Key returns the key stored in n.
func (n *Node[K, V]) Key() K { return n.key }

// Value returns the value stored in n.
func (n *Node[K, V]) Value() V { return n.value }

// Map is the operation set shared by Hopscotch and Hybrid.
//
// A Map is not safe for concurrent use, and must not be mutated while an
// iteration via First/Next or Range is in progress.
type Map[K, V any] interface {
	// Len returns the number of live entries.
	Len() int
	// Cap returns the number of slots in the bucket array.
	Cap() int

	// Insert associates value with key. If an equal key is present, the
	// entry is updated in place and the superseded key and value are passed
	// to the destructors, unless they are identical to the new ones.
	Insert(key K, value V) error
	// Replace is like Insert, but hands a superseded value back to the
	// caller instead of destroying it.
	Replace(key K, value V) (old V, replaced bool, err error)
	// Remove deletes key, destroying its key and value. It reports whether
	// an entry was removed.
	Remove(key K) bool

	Find(key K) (V, bool)
	FindNode(key K) *Node[K, V]

	// First and Next enumerate every live entry exactly once. Next returns
	// nil after the last entry, or if n is no longer in the map.
	First() *Node[K, V]
	Next(n *Node[K, V]) *Node[K, V]
	Range(f func(key K, value V) bool)

	SetHashFunc(fn HashFunc[K])
	SetDestroyKey(fn DestroyFunc[K]) DestroyFunc[K]
	SetDestroyValue(fn DestroyFunc[V]) DestroyFunc[V]
	SetLogger(logger *zap.Logger)

	Stats() Stats

	// Destroy destroys every live key and value, then resets the map to an
	// empty table of the initial capacity.
	Destroy()
}

// Variant selects a collision resolution strategy.
type Variant string

const (
	// VariantHopscotch keeps every entry inside its neighbourhood by
	// displacing other entries, growing the table when that fails.
	VariantHopscotch Variant = "hopscotch"
	// VariantHybrid never displaces. Entries that find no free slot in their
	// neighbourhood go to an overflow bucket for their home index.
	VariantHybrid Variant = "hybrid"
)

// Config holds the construction parameters accepted by New.
type Config struct {
	Variant Variant `toml:"variant"`
	// InitialCapacity is a hint. The table starts at the smallest listed
	// prime that is at least InitialCapacity.
	InitialCapacity int `toml:"initial_capacity"`
	// MaxCapacity bounds growth. Zero means DefaultMaxCapacity.
	MaxCapacity int `toml:"max_capacity"`

	Logger *zap.Logger `toml:"-"`
}

// Stats reports counters about the internal layout.
type Stats struct {
	Grows         int
	ForcedGrows   int
	Displacements int
	// Overflow is the number of entries held in overflow buckets.
	Overflow int
	// OverflowBuckets is the number of non-nil overflow buckets.
	OverflowBuckets int
}

// New returns a map of the variant named by cfg. The hash function must be
// set with SetHashFunc before the first Insert.
func New[K, V any](cfg Config, compare CompareFunc[K], destroyKey DestroyFunc[K], destroyValue DestroyFunc[V]) (Map[K, V], error) {
	t, err := newTable[K, V](cfg, compare, destroyKey, destroyValue)
	if err != nil {
		return nil, err
	}
	switch cfg.Variant {
	case VariantHopscotch, "":
		return &Hopscotch[K, V]{table: t}, nil
	case VariantHybrid:
		h := &Hybrid[K, V]{table: t}
		h.resetOverflow()
		return h, nil
	default:
		return nil, errors.Wrapf(ErrUnknownVariant, "variant %q", cfg.Variant)
	}
}
