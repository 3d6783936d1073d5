// Package seglist provides segregated-fits heap space allocation over a
// single growable byte arena. Free and allocated blocks carry boundary
// tags at both ends; free blocks are threaded through one of 22 size-class
// lists. The package is NOT goroutine-safe: exactly one mutation may be in
// flight at a time, and callers needing concurrent access must serialize
// externally (see mpool).
package seglist

const (
	// System constants
	WordSize          = 8            // boundary tag width in bytes
	Overhead          = 2 * WordSize // header plus footer of a block
	MinBlockSize      = 32           // header + footer + two free-list links
	ChunkSize         = 1 << 16      // 64KB default arena extension
	BucketCount       = 22           // number of segregated size classes
	FineClassMax      = 256          // spans below this get one bucket per 16 bytes
	SmallDirectMax    = 64           // spans at or below this grow the arena by their exact size
	DefaultArenaLimit = 1 << 30      // 1GB arena ceiling when none is given

	// nullRef terminates free lists. Offset 0 always holds the prologue,
	// so no free block can ever start there.
	nullRef = 0
)

// Ptr is an arena-relative payload offset handed out by Allocate. Offsets
// stay valid across arena growth, unlike views of the backing bytes. The
// zero Ptr is never a valid payload.
type Ptr uint64

// Heap is a segregated-fits allocator over one growable arena
type Heap struct {
	arena   *Arena
	buckets [BucketCount]uint64 // free-list heads as block offsets, nullRef when empty
	used    uint64              // total span of allocated blocks
}
