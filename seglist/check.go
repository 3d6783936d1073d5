package seglist

import (
	"errors"
	"fmt"
)

// CheckConsistency walks every block from prologue to epilogue and then
// every bucket, verifying boundary-tag agreement, alignment, coalescing
// completeness, and that every filed block is free and filed under its own
// size class. Violations are reported, never repaired. The walk is
// O(arena size); keep it off the allocation fast path.
func (h *Heap) CheckConsistency(verbose bool) error {
	var problems []error
	report := func(format string, v ...interface{}) {
		err := fmt.Errorf(format, v...)
		Error("%v", err)
		problems = append(problems, err)
	}

	if verbose {
		Info("Heap walk: arena %d bytes, %d allocated", h.arena.Size(), h.used)
	}
	if h.arena.word(0) != packTag(WordSize, true) {
		report("bad prologue tag %#x", h.arena.word(0))
	}

	end := h.arena.Size() - WordSize
	prevWasFree := false
	off := uint64(WordSize)
	for off < end {
		size := h.blockSize(off)
		if verbose {
			h.printBlock(off)
		}
		if size == 0 {
			report("zero-size block at offset %d before the epilogue", off)
			break
		}
		if size%WordSize != 0 || size < MinBlockSize {
			report("block at offset %d has bad span %d", off, size)
			break
		}
		if off+size > end {
			report("block at offset %d overruns the epilogue", off)
			break
		}
		if h.arena.word(off) != h.arena.word(off+size-WordSize) {
			report("block at offset %d: header %#x does not match footer %#x",
				off, h.arena.word(off), h.arena.word(off+size-WordSize))
		}
		free := !h.blockAllocated(off)
		if free && prevWasFree {
			report("adjacent free blocks at offset %d", off)
		}
		prevWasFree = free
		off += size
	}
	if off != end {
		report("heap walk stopped at offset %d, epilogue expected at %d", off, end)
	} else if h.arena.word(end) != packTag(0, true) {
		report("bad epilogue tag %#x at offset %d", h.arena.word(end), end)
	}

	for idx := 0; idx < BucketCount; idx++ {
		prev := uint64(nullRef)
		for b := h.buckets[idx]; b != nullRef; b = h.nextFree(b) {
			if b+MinBlockSize > end {
				report("bucket %d links to offset %d outside the arena", idx, b)
				break
			}
			if h.blockAllocated(b) {
				report("bucket %d holds allocated block at offset %d", idx, b)
			}
			if got := bucketFor(h.blockSize(b)); got != idx {
				report("bucket %d holds block at offset %d that belongs in bucket %d", idx, b, got)
			}
			if h.prevFree(b) != prev {
				report("bucket %d: back link of block at offset %d does not round-trip", idx, b)
			}
			prev = b
		}
	}

	return errors.Join(problems...)
}

// printBlock dumps one block's boundary tags
func (h *Heap) printBlock(off uint64) {
	size := h.blockSize(off)
	if size == 0 {
		Info("%8d: EOL", off)
		return
	}
	if off+size > h.arena.Size() {
		Info("%8d: header [%d:%c] footer out of range", off, size, tagChar(h.blockAllocated(off)))
		return
	}
	ftr := h.arena.word(off + size - WordSize)
	Info("%8d: header [%d:%c] footer [%d:%c]",
		off, size, tagChar(h.blockAllocated(off)), ftr&^7, tagChar(ftr&allocBit != 0))
}

func tagChar(allocated bool) byte {
	if allocated {
		return 'a'
	}
	return 'f'
}
