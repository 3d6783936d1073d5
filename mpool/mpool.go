// Package mpool provides a recycling memory pool layered on the seglist
// heap. The pool pre-allocates blocks in three size bands and serves
// repeat requests from them, falling through to the heap on a miss. A
// single mutex serializes every heap access, which makes the pool the
// synchronization boundary for the otherwise single-threaded heap.
package mpool

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/shenjiangwei/sfAllocator/seglist"
)

const (
	KB = 1024

	SmallPoolSize  = 256 // small band entries (16B-256B)
	MediumPoolSize = 64  // medium band entries (256B-4KB)
	LargePoolSize  = 16  // large band entries (4KB-64KB)

	smallBandMax  = 256
	mediumBandMax = 4 * KB
	largeBandMax  = 64 * KB
)

// PoolStats represents memory pool statistics
type PoolStats struct {
	TotalAllocations uint64
	PoolHits         uint64
	PoolMisses       uint64
	TotalFrees       uint64
	PoolFreeHits     uint64
	PoolFreeMisses   uint64
}

// MemoryPool represents a memory pool structure
type MemoryPool struct {
	smallBlocks  []seglist.Ptr
	mediumBlocks []seglist.Ptr
	largeBlocks  []seglist.Ptr
	smallSizes   []uint64
	mediumSizes  []uint64
	largeSizes   []uint64
	smallUsed    []bool
	mediumUsed   []bool
	largeUsed    []bool
	mu           sync.Mutex
	heap         *seglist.Heap
	stats        PoolStats
}

// NewMemoryPool creates a new memory pool over heap
func NewMemoryPool(heap *seglist.Heap) (*MemoryPool, error) {
	pool := &MemoryPool{
		smallBlocks:  make([]seglist.Ptr, SmallPoolSize),
		mediumBlocks: make([]seglist.Ptr, MediumPoolSize),
		largeBlocks:  make([]seglist.Ptr, LargePoolSize),
		smallSizes:   make([]uint64, SmallPoolSize),
		mediumSizes:  make([]uint64, MediumPoolSize),
		largeSizes:   make([]uint64, LargePoolSize),
		smallUsed:    make([]bool, SmallPoolSize),
		mediumUsed:   make([]bool, MediumPoolSize),
		largeUsed:    make([]bool, LargePoolSize),
		heap:         heap,
	}

	// Pre-allocate small blocks (16B-256B)
	for i := 0; i < SmallPoolSize; i++ {
		size := uint64(rand.Intn(smallBandMax-16) + 16)
		p, err := heap.Allocate(size)
		if err != nil {
			return nil, fmt.Errorf("failed to pre-allocate small block: %v", err)
		}
		pool.smallBlocks[i] = p
		pool.smallSizes[i] = size
	}

	// Pre-allocate medium blocks (256B-4KB)
	for i := 0; i < MediumPoolSize; i++ {
		size := uint64(rand.Intn(mediumBandMax-smallBandMax) + smallBandMax)
		p, err := heap.Allocate(size)
		if err != nil {
			return nil, fmt.Errorf("failed to pre-allocate medium block: %v", err)
		}
		pool.mediumBlocks[i] = p
		pool.mediumSizes[i] = size
	}

	// Pre-allocate large blocks (4KB-64KB)
	for i := 0; i < LargePoolSize; i++ {
		size := uint64(rand.Intn(largeBandMax-mediumBandMax) + mediumBandMax)
		p, err := heap.Allocate(size)
		if err != nil {
			return nil, fmt.Errorf("failed to pre-allocate large block: %v", err)
		}
		pool.largeBlocks[i] = p
		pool.largeSizes[i] = size
	}

	return pool, nil
}

// Allocate serves a request from the pool, falling through to the heap
// when no pooled block fits
func (p *MemoryPool) Allocate(size uint64) (seglist.Ptr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.TotalAllocations++

	switch {
	case size <= smallBandMax:
		for i := range p.smallBlocks {
			if !p.smallUsed[i] && p.smallSizes[i] >= size {
				p.smallUsed[i] = true
				p.stats.PoolHits++
				return p.smallBlocks[i], nil
			}
		}
	case size <= mediumBandMax:
		for i := range p.mediumBlocks {
			if !p.mediumUsed[i] && p.mediumSizes[i] >= size {
				p.mediumUsed[i] = true
				p.stats.PoolHits++
				return p.mediumBlocks[i], nil
			}
		}
	case size <= largeBandMax:
		for i := range p.largeBlocks {
			if !p.largeUsed[i] && p.largeSizes[i] >= size {
				p.largeUsed[i] = true
				p.stats.PoolHits++
				return p.largeBlocks[i], nil
			}
		}
	}

	p.stats.PoolMisses++
	return p.heap.Allocate(size)
}

// Free returns a block to the pool, or to the heap when the block was
// never pooled. size must be the size originally requested.
func (p *MemoryPool) Free(ptr seglist.Ptr, size uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.TotalFrees++

	switch {
	case size <= smallBandMax:
		for i := range p.smallBlocks {
			if p.smallBlocks[i] == ptr {
				p.smallUsed[i] = false
				p.stats.PoolFreeHits++
				return nil
			}
		}
	case size <= mediumBandMax:
		for i := range p.mediumBlocks {
			if p.mediumBlocks[i] == ptr {
				p.mediumUsed[i] = false
				p.stats.PoolFreeHits++
				return nil
			}
		}
	case size <= largeBandMax:
		for i := range p.largeBlocks {
			if p.largeBlocks[i] == ptr {
				p.largeUsed[i] = false
				p.stats.PoolFreeHits++
				return nil
			}
		}
	}

	p.stats.PoolFreeMisses++
	return p.heap.Free(ptr)
}

// Reallocate moves a block to a new size through the pool: a fresh block
// is taken, the payload copied, and the old block returned. oldSize must
// be the size originally requested for ptr.
func (p *MemoryPool) Reallocate(ptr seglist.Ptr, oldSize, size uint64) (seglist.Ptr, error) {
	newPtr, err := p.Allocate(size)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	src, err := p.heap.Payload(ptr)
	if err == nil {
		var dst []byte
		dst, err = p.heap.Payload(newPtr)
		if err == nil {
			n := oldSize
			if size < n {
				n = size
			}
			copy(dst[:n], src[:n])
		}
	}
	p.mu.Unlock()
	if err != nil {
		p.Free(newPtr, size)
		return 0, err
	}

	if err := p.Free(ptr, oldSize); err != nil {
		return 0, err
	}
	return newPtr, nil
}

// Stats returns a snapshot of the pool counters
func (p *MemoryPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// CheckConsistency audits the underlying heap
func (p *MemoryPool) CheckConsistency(verbose bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heap.CheckConsistency(verbose)
}

// Close closes the memory pool and releases all pre-allocated blocks
func (p *MemoryPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.smallBlocks {
		if err := p.heap.Free(p.smallBlocks[i]); err != nil {
			return fmt.Errorf("failed to free small block: %v", err)
		}
	}
	for i := range p.mediumBlocks {
		if err := p.heap.Free(p.mediumBlocks[i]); err != nil {
			return fmt.Errorf("failed to free medium block: %v", err)
		}
	}
	for i := range p.largeBlocks {
		if err := p.heap.Free(p.largeBlocks[i]); err != nil {
			return fmt.Errorf("failed to free large block: %v", err)
		}
	}

	fmt.Printf("\nMemory Pool Statistics:\n")
	fmt.Printf("Total Allocations: %d\n", p.stats.TotalAllocations)
	if p.stats.TotalAllocations > 0 {
		fmt.Printf("Pool Hits: %d (%.2f%%)\n", p.stats.PoolHits, float64(p.stats.PoolHits)/float64(p.stats.TotalAllocations)*100)
		fmt.Printf("Pool Misses: %d (%.2f%%)\n", p.stats.PoolMisses, float64(p.stats.PoolMisses)/float64(p.stats.TotalAllocations)*100)
	}
	fmt.Printf("Total Frees: %d\n", p.stats.TotalFrees)
	if p.stats.TotalFrees > 0 {
		fmt.Printf("Pool Free Hits: %d (%.2f%%)\n", p.stats.PoolFreeHits, float64(p.stats.PoolFreeHits)/float64(p.stats.TotalFrees)*100)
		fmt.Printf("Pool Free Misses: %d (%.2f%%)\n", p.stats.PoolFreeMisses, float64(p.stats.PoolFreeMisses)/float64(p.stats.TotalFrees)*100)
	}

	return nil
}
