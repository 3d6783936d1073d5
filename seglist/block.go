package seglist

// A block's header and footer are identical boundary tags: the span length
// is a multiple of 8, so the low bit carries the allocated flag. The
// interior of a free block holds its two bucket links right after the
// header; for an allocated block that interior is client payload.

const allocBit = 1

func packTag(size uint64, allocated bool) uint64 {
	if allocated {
		return size | allocBit
	}
	return size
}

// blockSize returns the total span of the block starting at off,
// including both of its tags
func (h *Heap) blockSize(off uint64) uint64 {
	return h.arena.word(off) &^ 7
}

// blockAllocated reports whether the block starting at off is allocated
func (h *Heap) blockAllocated(off uint64) bool {
	return h.arena.word(off)&allocBit != 0
}

// setBlock writes header and footer together, so no later operation can
// observe a block with disagreeing tags
func (h *Heap) setBlock(off, size uint64, allocated bool) {
	tag := packTag(size, allocated)
	h.arena.setWord(off, tag)
	h.arena.setWord(off+size-WordSize, tag)
}

// setEpilogue writes the zero-size allocated terminator at off
func (h *Heap) setEpilogue(off uint64) {
	h.arena.setWord(off, packTag(0, true))
}

func (h *Heap) nextFree(off uint64) uint64 {
	return h.arena.word(off + WordSize)
}

func (h *Heap) prevFree(off uint64) uint64 {
	return h.arena.word(off + 2*WordSize)
}

func (h *Heap) setNextFree(off, next uint64) {
	h.arena.setWord(off+WordSize, next)
}

func (h *Heap) setPrevFree(off, prev uint64) {
	h.arena.setWord(off+2*WordSize, prev)
}
