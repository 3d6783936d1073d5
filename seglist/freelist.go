package seglist

// fileBlock inserts the free block at off at the head of its size bucket.
// LIFO order: the most recently freed or split block is offered first.
func (h *Heap) fileBlock(off uint64) {
	idx := bucketFor(h.blockSize(off))
	head := h.buckets[idx]
	h.setPrevFree(off, nullRef)
	h.setNextFree(off, head)
	if head != nullRef {
		h.setPrevFree(head, off)
	}
	h.buckets[idx] = off
}

// unfileBlock removes a filed block from its bucket. The block's size must
// not have been mutated since it was filed, or the head update lands on
// the wrong bucket.
func (h *Heap) unfileBlock(off uint64) {
	idx := bucketFor(h.blockSize(off))
	prev := h.prevFree(off)
	next := h.nextFree(off)
	switch {
	case prev == nullRef && next == nullRef:
		// sole member
		h.buckets[idx] = nullRef
	case prev == nullRef:
		// head of list
		h.buckets[idx] = next
		h.setPrevFree(next, nullRef)
	case next == nullRef:
		// tail of list
		h.setNextFree(prev, nullRef)
	default:
		h.setNextFree(prev, next)
		h.setPrevFree(next, prev)
	}
}
