package seglist

// NewHeap establishes the arena with its initial chunk: an allocated
// prologue at the low end, a single free block spanning the remainder,
// and the epilogue terminator at the high end. limit bounds total arena
// growth; 0 selects DefaultArenaLimit.
func NewHeap(limit uint64) (*Heap, error) {
	if limit == 0 {
		limit = DefaultArenaLimit
	}
	h := &Heap{arena: NewArena(limit)}
	if _, err := h.arena.Grow(ChunkSize); err != nil {
		Error("Failed to create initial %d byte chunk: %v", ChunkSize, err)
		return nil, err
	}

	// The prologue is a header-only allocated block, so the first real
	// block always has an allocated predecessor to test during coalescing.
	h.arena.setWord(0, packTag(WordSize, true))

	init := uint64(WordSize)
	h.setBlock(init, ChunkSize-Overhead, false)
	h.fileBlock(init)
	h.setEpilogue(init + h.blockSize(init))

	Debug("Created heap: %d byte chunk, arena limit %d", ChunkSize, limit)
	return h, nil
}

// Allocate returns a payload offset with room for at least size bytes.
// The payload is 8-aligned. Allocation never partially succeeds: on any
// error the heap is unchanged.
func (h *Heap) Allocate(size uint64) (Ptr, error) {
	Debug("Allocating %d bytes", size)
	if size == 0 {
		return 0, ErrZeroSize
	}
	if size > h.arena.Limit() {
		Error("Requested size %d exceeds arena limit %d", size, h.arena.Limit())
		return 0, ErrSizeTooLarge
	}

	needed := (size + Overhead + 7) &^ 7
	if needed < MinBlockSize {
		needed = MinBlockSize
	}

	if off, ok := h.findFit(needed); ok {
		return h.place(off, needed), nil
	}

	// Nothing filed fits. Small requests grow the arena by exactly their
	// span; place consumes the fresh block whole, so there is nothing
	// left over to merge.
	if needed <= SmallDirectMax {
		off, err := h.extendHeap(needed, false)
		if err != nil {
			Error("Arena growth by %d failed: %v", needed, err)
			return 0, err
		}
		return h.place(off, needed), nil
	}

	grow := needed
	if grow < ChunkSize {
		grow = ChunkSize
	}
	off, err := h.extendHeap(grow, true)
	if err != nil {
		Error("Arena growth by %d failed: %v", grow, err)
		return 0, err
	}
	return h.place(off, needed), nil
}

// findFit scans buckets from the request's own class upward, first fit
// within each list. Lists are unordered beyond LIFO recency, so this is
// first-fit, not best-fit.
func (h *Heap) findFit(needed uint64) (uint64, bool) {
	for idx := bucketFor(needed); idx < BucketCount; idx++ {
		for off := h.buckets[idx]; off != nullRef; off = h.nextFree(off) {
			if h.blockSize(off) >= needed {
				return off, true
			}
		}
	}
	return 0, false
}

// place carves an allocated block of exactly needed bytes out of the free
// block at off. The remainder is split off and refiled when it can stand
// on its own; a sub-minimum splinter stays inside the allocated block.
func (h *Heap) place(off, needed uint64) Ptr {
	size := h.blockSize(off)
	h.unfileBlock(off)
	if size-needed >= MinBlockSize {
		h.setBlock(off, needed, true)
		rem := off + needed
		h.setBlock(rem, size-needed, false)
		h.fileBlock(rem)
		h.used += needed
	} else {
		h.setBlock(off, size, true)
		h.used += size
	}
	return Ptr(off + WordSize)
}

// extendHeap grows the arena by delta bytes. The old epilogue header
// becomes the new free block's header and a fresh epilogue is written at
// the new high end. With merge set, the new block is coalesced with the
// predecessor that used to sit against the epilogue.
func (h *Heap) extendHeap(delta uint64, merge bool) (uint64, error) {
	old, err := h.arena.Grow(delta)
	if err != nil {
		return 0, err
	}
	off := old - WordSize
	h.setBlock(off, delta, false)
	h.setEpilogue(off + delta)
	h.fileBlock(off)
	if merge {
		off = h.coalesce(off)
	}
	Debug("Extended arena by %d bytes, free block at offset %d", delta, off)
	return off, nil
}

// Free releases the block owning payload offset p, files it, and merges
// it with any free neighbor. Offsets that did not come from Allocate, or
// were already freed, are rejected rather than corrupting the arena.
func (h *Heap) Free(p Ptr) error {
	Debug("Freeing payload at offset %d", uint64(p))
	off, err := h.blockOf(p)
	if err != nil {
		Error("Rejected free of offset %d: %v", uint64(p), err)
		return err
	}
	size := h.blockSize(off)
	h.setBlock(off, size, false)
	h.fileBlock(off)
	h.coalesce(off)
	h.used -= size
	return nil
}

// blockOf validates a payload offset and returns its block start. A valid
// payload is 8-aligned, inside the arena, and owned by an allocated block
// whose boundary tags agree.
func (h *Heap) blockOf(p Ptr) (uint64, error) {
	off := uint64(p)
	if off%WordSize != 0 || off < Overhead || off+WordSize >= h.arena.Size() {
		return 0, ErrInvalidAddress
	}
	b := off - WordSize
	size := h.blockSize(b)
	if !h.blockAllocated(b) || size < MinBlockSize || b+size+WordSize > h.arena.Size() {
		return 0, ErrInvalidAddress
	}
	if h.arena.word(b) != h.arena.word(b+size-WordSize) {
		return 0, ErrInvalidAddress
	}
	return b, nil
}

// coalesce merges the free block at off with free immediate neighbors,
// identified through their boundary tags: the previous block via the
// footer just below off, the next via the header just past the span. The
// prologue and epilogue are permanently allocated, so both lookups always
// land on a real tag. Returns the start of the resulting block.
func (h *Heap) coalesce(off uint64) uint64 {
	size := h.blockSize(off)
	prevTag := h.arena.word(off - WordSize)
	nextOff := off + size
	prevFree := prevTag&allocBit == 0
	nextFree := !h.blockAllocated(nextOff)

	switch {
	case !prevFree && !nextFree:
		return off

	case !prevFree && nextFree:
		nextSize := h.blockSize(nextOff)
		h.unfileBlock(nextOff)
		h.unfileBlock(off)
		h.setBlock(off, size+nextSize, false)
		h.fileBlock(off)
		return off

	case prevFree && !nextFree:
		prevSize := prevTag &^ 7
		prevOff := off - prevSize
		h.unfileBlock(prevOff)
		h.unfileBlock(off)
		h.setBlock(prevOff, prevSize+size, false)
		h.fileBlock(prevOff)
		return prevOff

	default:
		prevSize := prevTag &^ 7
		prevOff := off - prevSize
		nextSize := h.blockSize(nextOff)
		h.unfileBlock(prevOff)
		h.unfileBlock(nextOff)
		h.unfileBlock(off)
		h.setBlock(prevOff, prevSize+size+nextSize, false)
		h.fileBlock(prevOff)
		return prevOff
	}
}

// Reallocate moves the payload at p into a freshly allocated span of size
// bytes, copying min(old payload, size) bytes. On allocation failure the
// old block stays live and the error is returned.
func (h *Heap) Reallocate(p Ptr, size uint64) (Ptr, error) {
	old, err := h.blockOf(p)
	if err != nil {
		Error("Rejected reallocate of offset %d: %v", uint64(p), err)
		return 0, err
	}
	oldPayload := h.blockSize(old) - Overhead

	newP, err := h.Allocate(size)
	if err != nil {
		Error("Reallocate of offset %d to %d bytes failed: %v", uint64(p), size, err)
		return 0, err
	}

	n := oldPayload
	if size < n {
		n = size
	}
	copy(h.arena.Bytes(uint64(newP), n), h.arena.Bytes(uint64(p), n))
	if err := h.Free(p); err != nil {
		return 0, err
	}
	return newP, nil
}

// Payload returns the writable payload span for p, at least as long as the
// size passed to Allocate. The view aliases the arena and is invalidated
// by the next arena growth; the Ptr itself stays valid.
func (h *Heap) Payload(p Ptr) ([]byte, error) {
	off, err := h.blockOf(p)
	if err != nil {
		return nil, err
	}
	return h.arena.Bytes(uint64(p), h.blockSize(off)-Overhead), nil
}

// UsedSize returns the total span of allocated blocks
func (h *Heap) UsedSize() uint64 {
	return h.used
}

// ArenaSize returns the current size of the managed range
func (h *Heap) ArenaSize() uint64 {
	return h.arena.Size()
}
