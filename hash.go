package hopscotch

import (
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/constraints"
)

// HashString is djb2: simple, fast, and good enough for most string keys.
func HashString(s string) uint {
	h := uint(5381)
	for i := 0; i < len(s); i++ {
		h = (h << 5) + h + uint(s[i]) // h*33 + c
	}
	return h
}

// HashStringXX hashes s with xxhash64. It spreads keys with long shared
// prefixes better than HashString.
func HashStringXX(s string) uint {
	return uint(xxhash.Sum64String(s))
}

// HashInt is the identity hash.
func HashInt[T constraints.Integer](v T) uint {
	return uint(v)
}

// HashPointer hashes a pointer by its address.
func HashPointer[T any](p *T) uint {
	return uint(uintptr(unsafe.Pointer(p)))
}

// Compare orders a and b, returning -1, 0 or 1.
func Compare[T constraints.Ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ComparePointer orders pointers by address, so only identical pointers
// compare equal.
func ComparePointer[T any](a, b *T) int {
	return Compare(uintptr(unsafe.Pointer(a)), uintptr(unsafe.Pointer(b)))
}
