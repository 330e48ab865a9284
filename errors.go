package hopscotch

import "github.com/pkg/errors"

var (
	// ErrOutOfMemory is returned when growth would exceed the configured
	// maximum capacity or the runtime refuses the allocation.
	ErrOutOfMemory = errors.New("hopscotch: out of memory")

	// ErrNeighbourhoodFull is returned by the pure variant when repeated
	// growth could not bring a free slot into a key's neighbourhood.
	ErrNeighbourhoodFull = errors.New("hopscotch: no free slot within neighbourhood")

	// ErrNoHashFunc is returned by Insert and Replace before SetHashFunc.
	ErrNoHashFunc = errors.New("hopscotch: hash function not set")

	// ErrUnknownVariant is returned by New for a Config.Variant it does not know.
	ErrUnknownVariant = errors.New("hopscotch: unknown variant")
)
