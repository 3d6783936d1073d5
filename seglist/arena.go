package seglist

import "encoding/binary"

// Arena is the single contiguous byte range the heap manages. It grows
// monotonically at the high end and never returns space to the caller.
type Arena struct {
	buf   []byte
	limit uint64
}

// NewArena creates an empty arena that may grow up to limit bytes
func NewArena(limit uint64) *Arena {
	return &Arena{limit: limit}
}

// Size returns the current length of the managed range
func (a *Arena) Size() uint64 {
	return uint64(len(a.buf))
}

// Limit returns the arena's growth ceiling
func (a *Arena) Limit() uint64 {
	return a.limit
}

// Grow appends delta bytes of zeroed space to the high end of the managed
// range and returns the offset where the new region starts. Growth past
// the configured limit fails; the arena is left unchanged.
func (a *Arena) Grow(delta uint64) (uint64, error) {
	if delta == 0 || delta > a.limit || a.Size() > a.limit-delta {
		return 0, ErrNoSpaceAvailable
	}
	old := a.Size()
	a.buf = append(a.buf, make([]byte, delta)...)
	return old, nil
}

// word reads the 8-byte word at off
func (a *Arena) word(off uint64) uint64 {
	return binary.LittleEndian.Uint64(a.buf[off : off+WordSize])
}

// setWord writes the 8-byte word at off
func (a *Arena) setWord(off, v uint64) {
	binary.LittleEndian.PutUint64(a.buf[off:off+WordSize], v)
}

// Bytes returns a view of the n bytes starting at off. The view aliases
// the backing range and is invalidated by the next Grow.
func (a *Arena) Bytes(off, n uint64) []byte {
	return a.buf[off : off+n]
}
