package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shenjiangwei/sfAllocator/seglist"
)

const (
	ArenaLimit    = 256 * 1024 * 1024 // 256MB
	MinRequest    = 16
	MaxRequest    = 2 * 1024
	MaxOps        = 200000
	AuditEvery    = 50000
	TestIteration = 3
)

// TestResult stores test iteration results
type TestResult struct {
	Iteration     int
	TotalAllocs   uint64
	TotalFrees    uint64
	LiveBlocks    int
	UsedSize      uint64
	ArenaSize     uint64
	TotalDuration time.Duration
}

// runTest replays a random allocate/free trace against a fresh heap. The
// heap is single-threaded, so the trace runs on one goroutine; concurrent
// users go through mpool or rpc instead.
func runTest(iteration int) (TestResult, error) {
	heap, err := seglist.NewHeap(ArenaLimit)
	if err != nil {
		return TestResult{}, err
	}
	live := make([]seglist.Ptr, 0, 4096)

	var allocs, frees uint64
	startTime := time.Now()

	for ops := 0; ops < MaxOps; ops++ {
		if len(live) == 0 || rand.Float64() < 0.7 {
			size := uint64(rand.Int63n(MaxRequest-MinRequest+1) + MinRequest)
			p, err := heap.Allocate(size)
			if err != nil {
				return TestResult{}, fmt.Errorf("allocate %d failed after %d ops: %v", size, ops, err)
			}
			live = append(live, p)
			allocs++
		} else {
			idx := rand.Intn(len(live))
			p := live[idx]
			if err := heap.Free(p); err != nil {
				return TestResult{}, fmt.Errorf("free of offset %d failed after %d ops: %v", uint64(p), ops, err)
			}
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
			frees++
		}

		if ops > 0 && ops%AuditEvery == 0 {
			if err := heap.CheckConsistency(false); err != nil {
				return TestResult{}, fmt.Errorf("consistency audit failed after %d ops: %v", ops, err)
			}
		}
	}

	if err := heap.CheckConsistency(false); err != nil {
		return TestResult{}, fmt.Errorf("final consistency audit failed: %v", err)
	}
	duration := time.Since(startTime)

	return TestResult{
		Iteration:     iteration,
		TotalAllocs:   allocs,
		TotalFrees:    frees,
		LiveBlocks:    len(live),
		UsedSize:      heap.UsedSize(),
		ArenaSize:     heap.ArenaSize(),
		TotalDuration: duration,
	}, nil
}

func main() {
	rand.Seed(time.Now().UnixNano())

	fmt.Printf("Starting heap allocation test with %d iterations\n", TestIteration)
	fmt.Println("Arena limit:", humanize.IBytes(ArenaLimit))
	fmt.Println("Request sizes:", humanize.IBytes(MinRequest), "-", humanize.IBytes(MaxRequest))
	fmt.Println()

	var results []TestResult
	for i := 0; i < TestIteration; i++ {
		fmt.Printf("Running iteration %d...\n", i+1)
		result, err := runTest(i + 1)
		if err != nil {
			seglist.Fatal("Iteration %d failed: %v", i+1, err)
		}
		results = append(results, result)

		utilization := float64(result.UsedSize) / float64(result.ArenaSize) * 100
		fmt.Printf("Iteration %d results:\n", i+1)
		fmt.Printf("  Total allocations: %d\n", result.TotalAllocs)
		fmt.Printf("  Total frees: %d\n", result.TotalFrees)
		fmt.Printf("  Live blocks: %d\n", result.LiveBlocks)
		fmt.Printf("  Used: %s\n", humanize.IBytes(result.UsedSize))
		fmt.Printf("  Arena: %s\n", humanize.IBytes(result.ArenaSize))
		fmt.Printf("  Utilization: %.2f%%\n", utilization)
		fmt.Printf("  Duration: %v\n", result.TotalDuration)
		fmt.Println()
	}

	var avgUtil, avgArena, avgDuration float64
	for _, r := range results {
		avgUtil += float64(r.UsedSize) / float64(r.ArenaSize) * 100
		avgArena += float64(r.ArenaSize)
		avgDuration += r.TotalDuration.Seconds()
	}
	avgUtil /= float64(len(results))
	avgArena /= float64(len(results))
	avgDuration /= float64(len(results))

	fmt.Println("Average results:")
	fmt.Printf("  Average utilization: %.2f%%\n", avgUtil)
	fmt.Printf("  Average arena size: %s\n", humanize.IBytes(uint64(avgArena)))
	fmt.Printf("  Average duration: %.2f seconds\n", avgDuration)
}
