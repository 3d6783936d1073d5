package seglist

import "math/bits"

// bucketFor maps a block span to its size class. Spans below 256 bytes
// each get a dedicated bucket per 16-byte step, since small-object reuse
// dominates typical workloads. Larger spans are classed by power-of-two
// magnitude, with everything from 32KB up folded into the last bucket.
// Filing and searching must both go through this function, otherwise a
// filed block becomes unreachable.
func bucketFor(size uint64) int {
	if size < FineClassMax {
		return int((size - MinBlockSize) / 16)
	}
	class := bits.Len64(size) - 1 - 5 // floor(log2(size)) - 5
	if class < 10 {
		return class + 11
	}
	return BucketCount - 1
}
