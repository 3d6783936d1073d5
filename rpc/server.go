package rpc

import (
	"fmt"
	"net"
	"net/rpc"
	"sync"

	"github.com/shenjiangwei/sfAllocator/mpool"
	"github.com/shenjiangwei/sfAllocator/seglist"
)

// Server exposes a pooled heap over net/rpc
type Server struct {
	pool *mpool.MemoryPool
	heap *seglist.Heap
	mu   sync.Mutex
}

// AllocRequest represents an allocation request
type AllocRequest struct {
	Size uint64
}

// AllocResponse represents an allocation response
type AllocResponse struct {
	Start uint64
	Error string
}

// FreeRequest represents a free request
type FreeRequest struct {
	Start uint64
	Size  uint64
}

// FreeResponse represents a free response
type FreeResponse struct {
	Error string
}

// ReallocRequest represents a reallocation request
type ReallocRequest struct {
	Start   uint64
	OldSize uint64
	Size    uint64
}

// ReallocResponse represents a reallocation response
type ReallocResponse struct {
	Start uint64
	Error string
}

// CheckRequest represents a consistency audit request
type CheckRequest struct {
	Verbose bool
}

// CheckResponse represents a consistency audit response
type CheckResponse struct {
	Error string
}

// NewServer creates a new heap server
func NewServer() (*Server, error) {
	heap, err := seglist.NewHeap(0)
	if err != nil {
		return nil, fmt.Errorf("failed to create heap: %v", err)
	}
	pool, err := mpool.NewMemoryPool(heap)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory pool: %v", err)
	}

	server := &Server{
		pool: pool,
		heap: heap,
	}

	rpc.Register(server)
	return server, nil
}

// Start starts the server on the specified address
func (s *Server) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to start server: %v", err)
	}
	defer listener.Close()

	fmt.Printf("Server listening on %s\n", address)

	for {
		conn, err := listener.Accept()
		if err != nil {
			fmt.Printf("Failed to accept connection: %v\n", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

func (s *Server) Allocate(req *AllocRequest, resp *AllocResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, err := s.pool.Allocate(req.Size)
	if err != nil {
		resp.Error = err.Error()
		return nil
	}

	resp.Start = uint64(start)
	return nil
}

func (s *Server) Free(req *FreeRequest, resp *FreeResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pool.Free(seglist.Ptr(req.Start), req.Size); err != nil {
		resp.Error = err.Error()
	}
	return nil
}

func (s *Server) Reallocate(req *ReallocRequest, resp *ReallocResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, err := s.pool.Reallocate(seglist.Ptr(req.Start), req.OldSize, req.Size)
	if err != nil {
		resp.Error = err.Error()
		return nil
	}

	resp.Start = uint64(start)
	return nil
}

func (s *Server) Check(req *CheckRequest, resp *CheckResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pool.CheckConsistency(req.Verbose); err != nil {
		resp.Error = err.Error()
	}
	return nil
}

// UsedSize returns the total span of allocated blocks
func (s *Server) UsedSize() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heap.UsedSize()
}

// ArenaSize returns the current size of the managed range
func (s *Server) ArenaSize() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heap.ArenaSize()
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pool.Close()
}
