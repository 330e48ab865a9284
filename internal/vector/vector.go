// Package vector provides a small growable sequence addressed by index.
// It makes no promise about order beyond what callers do with SetAt.
package vector

import "golang.org/x/exp/slices"

type Vector[T any] struct {
	elems []T
}

// New returns an empty Vector with room for capacity elements.
func New[T any](capacity int) *Vector[T] {
	return &Vector[T]{elems: slices.Grow([]T(nil), capacity)}
}

func (v *Vector[T]) Len() int { return len(v.elems) }

func (v *Vector[T]) At(i int) T { return v.elems[i] }

func (v *Vector[T]) SetAt(i int, x T) { v.elems[i] = x }

func (v *Vector[T]) InsertLast(x T) {
	v.elems = append(v.elems, x)
}

// RemoveLast drops the last element. It is a no-op on an empty Vector.
func (v *Vector[T]) RemoveLast() {
	n := len(v.elems)
	if n == 0 {
		return
	}
	var zero T
	v.elems[n-1] = zero
	v.elems = v.elems[:n-1]
}

// IndexFunc returns the index of the first element satisfying f, or -1.
func (v *Vector[T]) IndexFunc(f func(T) bool) int {
	return slices.IndexFunc(v.elems, f)
}

// Destroy calls visit, if non-nil, on every element in index order and then
// releases the storage.
func (v *Vector[T]) Destroy(visit func(T)) {
	if visit != nil {
		for _, x := range v.elems {
			visit(x)
		}
	}
	v.elems = nil
}
