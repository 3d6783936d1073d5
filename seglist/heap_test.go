package seglist

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeap(t *testing.T) {
	t.Run("Fresh heap passes audit", func(t *testing.T) {
		h, err := NewHeap(0)
		require.NoError(t, err)
		require.NoError(t, h.CheckConsistency(false))
		require.Equal(t, uint64(0), h.UsedSize())
		require.Equal(t, uint64(ChunkSize), h.ArenaSize())
	})

	t.Run("Allocate returns aligned payload", func(t *testing.T) {
		h, err := NewHeap(0)
		require.NoError(t, err)

		p, err := h.Allocate(100)
		require.NoError(t, err)
		require.NotEqual(t, Ptr(0), p)
		require.Zero(t, uint64(p)%WordSize)
		require.NoError(t, h.CheckConsistency(false))

		for _, size := range []uint64{1, 7, 8, 9, 63, 100, 4096, 70000} {
			p, err := h.Allocate(size)
			require.NoError(t, err)
			require.Zero(t, uint64(p)%WordSize, "size %d", size)
		}
		require.NoError(t, h.CheckConsistency(false))
	})

	t.Run("Zero-size request is rejected", func(t *testing.T) {
		h, err := NewHeap(0)
		require.NoError(t, err)
		_, err = h.Allocate(0)
		require.ErrorIs(t, err, ErrZeroSize)
		require.NoError(t, h.CheckConsistency(false))
	})

	t.Run("Payload capacity is writable", func(t *testing.T) {
		h, err := NewHeap(0)
		require.NoError(t, err)

		a, err := h.Allocate(100)
		require.NoError(t, err)
		b, err := h.Allocate(100)
		require.NoError(t, err)

		pa, err := h.Payload(a)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(pa), 100)
		for i := range pa {
			pa[i] = 0xAB
		}
		pb, err := h.Payload(b)
		require.NoError(t, err)
		for i := range pb {
			pb[i] = 0xCD
		}

		pa, err = h.Payload(a)
		require.NoError(t, err)
		for i := range pa {
			require.Equal(t, byte(0xAB), pa[i])
		}
		require.NoError(t, h.CheckConsistency(false))
	})

	t.Run("Freed space is reused before growth", func(t *testing.T) {
		h, err := NewHeap(0)
		require.NoError(t, err)

		a1, err := h.Allocate(40)
		require.NoError(t, err)
		_, err = h.Allocate(40)
		require.NoError(t, err)

		arenaBefore := h.ArenaSize()
		require.NoError(t, h.Free(a1))

		a3, err := h.Allocate(40)
		require.NoError(t, err)
		require.Equal(t, a1, a3)
		require.Equal(t, arenaBefore, h.ArenaSize())
		require.NoError(t, h.CheckConsistency(false))
	})

	t.Run("Round-trip keeps invariants", func(t *testing.T) {
		h, err := NewHeap(0)
		require.NoError(t, err)
		for _, size := range []uint64{16, 40, 248, 264, 1000, 5000} {
			p, err := h.Allocate(size)
			require.NoError(t, err)
			require.NoError(t, h.CheckConsistency(false))
			require.NoError(t, h.Free(p))
			require.NoError(t, h.CheckConsistency(false))
			p2, err := h.Allocate(size)
			require.NoError(t, err)
			require.Zero(t, uint64(p2)%WordSize)
			require.NoError(t, h.CheckConsistency(false))
		}
	})

	t.Run("Coalescing merges exactly the freed pair", func(t *testing.T) {
		h, err := NewHeap(0)
		require.NoError(t, err)

		a, err := h.Allocate(512)
		require.NoError(t, err)
		b, err := h.Allocate(512)
		require.NoError(t, err)
		c, err := h.Allocate(512)
		require.NoError(t, err)

		pc, err := h.Payload(c)
		require.NoError(t, err)
		for i := range pc {
			pc[i] = 0x5A
		}

		// middle first, then its lower neighbor
		require.NoError(t, h.Free(b))
		require.NoError(t, h.CheckConsistency(false))
		require.NoError(t, h.Free(a))
		require.NoError(t, h.CheckConsistency(false))

		// the merged pair spans from a's block to the edge of c's
		merged := uint64(a) - WordSize
		require.False(t, h.blockAllocated(merged))
		require.Equal(t, uint64(c)-WordSize-merged, h.blockSize(merged))

		// the still-allocated neighbor is untouched
		pc, err = h.Payload(c)
		require.NoError(t, err)
		for i := range pc {
			require.Equal(t, byte(0x5A), pc[i])
		}

		// a request sized for the pair lands on the merged block
		p, err := h.Allocate(1000)
		require.NoError(t, err)
		require.Equal(t, a, p)
		require.NoError(t, h.CheckConsistency(false))
	})

	t.Run("Coalesce then grow satisfies a larger request", func(t *testing.T) {
		h, err := NewHeap(0)
		require.NoError(t, err)

		before, err := h.Allocate(100)
		require.NoError(t, err)
		p, err := h.Allocate(1000)
		require.NoError(t, err)
		after, err := h.Allocate(100)
		require.NoError(t, err)

		pb, err := h.Payload(before)
		require.NoError(t, err)
		for i := range pb {
			pb[i] = 0x11
		}
		pf, err := h.Payload(after)
		require.NoError(t, err)
		for i := range pf {
			pf[i] = 0x22
		}

		require.NoError(t, h.Free(p))
		_, err = h.Allocate(2000)
		require.NoError(t, err)
		_, err = h.Allocate(200000) // past the current arena, forces growth
		require.NoError(t, err)
		require.NoError(t, h.CheckConsistency(false))

		pb, err = h.Payload(before)
		require.NoError(t, err)
		for i := range pb {
			require.Equal(t, byte(0x11), pb[i])
		}
		pf, err = h.Payload(after)
		require.NoError(t, err)
		for i := range pf {
			require.Equal(t, byte(0x22), pf[i])
		}
	})

	t.Run("Filing and search agree across the class boundary", func(t *testing.T) {
		h, err := NewHeap(0)
		require.NoError(t, err)

		// spans 248 and 264 sit on either side of the fine/coarse boundary
		a, err := h.Allocate(232)
		require.NoError(t, err)
		_, err = h.Allocate(64) // guard against coalescing
		require.NoError(t, err)
		b, err := h.Allocate(248)
		require.NoError(t, err)
		_, err = h.Allocate(64)
		require.NoError(t, err)

		require.NoError(t, h.Free(a))
		require.NoError(t, h.Free(b))

		a2, err := h.Allocate(232)
		require.NoError(t, err)
		require.Equal(t, a, a2)
		b2, err := h.Allocate(248)
		require.NoError(t, err)
		require.Equal(t, b, b2)
		require.NoError(t, h.CheckConsistency(false))
	})

	t.Run("Small requests grow the arena by their exact span", func(t *testing.T) {
		h, err := NewHeap(0)
		require.NoError(t, err)

		// consume the initial free block whole
		_, err = h.Allocate(ChunkSize - Overhead - Overhead)
		require.NoError(t, err)
		require.Equal(t, uint64(ChunkSize), h.ArenaSize())

		p, err := h.Allocate(8)
		require.NoError(t, err)
		require.Equal(t, uint64(ChunkSize+MinBlockSize), h.ArenaSize())
		require.NoError(t, h.CheckConsistency(false))
		require.NoError(t, h.Free(p))
		require.NoError(t, h.CheckConsistency(false))
	})

	t.Run("Invalid free is rejected", func(t *testing.T) {
		h, err := NewHeap(0)
		require.NoError(t, err)
		p, err := h.Allocate(64)
		require.NoError(t, err)

		require.ErrorIs(t, h.Free(0), ErrInvalidAddress)
		require.ErrorIs(t, h.Free(p+1), ErrInvalidAddress)
		require.ErrorIs(t, h.Free(Ptr(h.ArenaSize()+1024)), ErrInvalidAddress)

		require.NoError(t, h.Free(p))
		require.ErrorIs(t, h.Free(p), ErrInvalidAddress) // double free
		require.NoError(t, h.CheckConsistency(false))
	})

	t.Run("Exhaustion is reported and final", func(t *testing.T) {
		h, err := NewHeap(ChunkSize)
		require.NoError(t, err)

		_, err = h.Allocate(ChunkSize + 1)
		require.ErrorIs(t, err, ErrSizeTooLarge)

		p, err := h.Allocate(60000)
		require.NoError(t, err)
		_, err = h.Allocate(60000)
		require.ErrorIs(t, err, ErrNoSpaceAvailable)
		require.NoError(t, h.CheckConsistency(false))

		// freeing makes the space allocatable again
		require.NoError(t, h.Free(p))
		_, err = h.Allocate(60000)
		require.NoError(t, err)
	})

	t.Run("Init fails when the limit is below one chunk", func(t *testing.T) {
		_, err := NewHeap(1000)
		require.ErrorIs(t, err, ErrNoSpaceAvailable)
	})
}

func TestReallocate(t *testing.T) {
	h, err := NewHeap(0)
	require.NoError(t, err)

	p, err := h.Allocate(64)
	require.NoError(t, err)
	pl, err := h.Payload(p)
	require.NoError(t, err)
	for i := range pl {
		pl[i] = byte(i)
	}

	grown, err := h.Reallocate(p, 256)
	require.NoError(t, err)
	pl, err = h.Payload(grown)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(pl), 256)
	for i := 0; i < 64; i++ {
		require.Equal(t, byte(i), pl[i])
	}
	require.ErrorIs(t, h.Free(p), ErrInvalidAddress) // the old block is gone
	require.NoError(t, h.CheckConsistency(false))

	shrunk, err := h.Reallocate(grown, 16)
	require.NoError(t, err)
	pl, err = h.Payload(shrunk)
	require.NoError(t, err)
	for i := 0; i < 16; i++ {
		require.Equal(t, byte(i), pl[i])
	}
	require.NoError(t, h.CheckConsistency(false))

	// failure leaves the old block live
	_, err = h.Reallocate(shrunk, 2*DefaultArenaLimit)
	require.ErrorIs(t, err, ErrSizeTooLarge)
	require.NoError(t, h.Free(shrunk))

	_, err = h.Reallocate(Ptr(12345), 64)
	require.ErrorIs(t, err, ErrInvalidAddress)
	require.NoError(t, h.CheckConsistency(false))
}

func TestHeapRandomized(t *testing.T) {
	h, err := NewHeap(0)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	live := make([]Ptr, 0, 1024)
	for op := 0; op < 4000; op++ {
		if len(live) == 0 || rng.Float64() < 0.6 {
			size := uint64(rng.Intn(8*1024) + 1)
			p, err := h.Allocate(size)
			require.NoError(t, err)
			live = append(live, p)
		} else {
			idx := rng.Intn(len(live))
			require.NoError(t, h.Free(live[idx]))
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
		}
		if op%500 == 0 {
			require.NoError(t, h.CheckConsistency(false))
		}
	}
	require.NoError(t, h.CheckConsistency(false))

	for _, p := range live {
		require.NoError(t, h.Free(p))
	}
	require.NoError(t, h.CheckConsistency(false))
	require.Equal(t, uint64(0), h.UsedSize())

	// with everything freed, coalescing leaves one block spanning the arena
	require.Equal(t, h.ArenaSize()-Overhead, h.blockSize(WordSize))
}

func BenchmarkAllocate(b *testing.B) {
	sizes := []uint64{16, 64, 256, 1024, 4096}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Size_%dB", size), func(b *testing.B) {
			h, err := NewHeap(0)
			if err != nil {
				b.Fatalf("Failed to create heap: %v", err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				p, err := h.Allocate(size)
				if err != nil {
					b.Fatalf("Failed to allocate %d bytes: %v", size, err)
				}
				if err := h.Free(p); err != nil {
					b.Fatalf("Failed to free: %v", err)
				}
			}
		})
	}
}
