package rpc

import (
	"fmt"
	"net/rpc"
	"sync"
)

// Client represents a heap service client
type Client struct {
	id        int
	client    *rpc.Client
	allocated map[uint64]uint64 // start -> requested size
	mu        sync.Mutex
}

// NewClient creates a new heap service client
func NewClient(id int, address string) (*Client, error) {
	client, err := rpc.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %v", err)
	}

	return &Client{
		id:        id,
		client:    client,
		allocated: make(map[uint64]uint64),
	}, nil
}

// Allocate allocates space through the server
func (c *Client) Allocate(size uint64) (uint64, error) {
	req := &AllocRequest{Size: size}
	resp := &AllocResponse{}

	err := c.client.Call("Server.Allocate", req, resp)
	if err != nil {
		return 0, fmt.Errorf("RPC call failed: %v", err)
	}

	if resp.Error != "" {
		return 0, fmt.Errorf("server error: %s", resp.Error)
	}

	c.mu.Lock()
	c.allocated[resp.Start] = size
	c.mu.Unlock()

	return resp.Start, nil
}

// Free frees space through the server
func (c *Client) Free(start uint64, size uint64) error {
	req := &FreeRequest{Start: start, Size: size}
	resp := &FreeResponse{}

	err := c.client.Call("Server.Free", req, resp)
	if err != nil {
		return fmt.Errorf("RPC call failed: %v", err)
	}

	if resp.Error != "" {
		return fmt.Errorf("server error: %s", resp.Error)
	}

	c.mu.Lock()
	delete(c.allocated, start)
	c.mu.Unlock()

	return nil
}

// Reallocate resizes an allocation through the server
func (c *Client) Reallocate(start uint64, size uint64) (uint64, error) {
	c.mu.Lock()
	oldSize, ok := c.allocated[start]
	c.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("client %d does not own allocation at %d", c.id, start)
	}

	req := &ReallocRequest{Start: start, OldSize: oldSize, Size: size}
	resp := &ReallocResponse{}

	err := c.client.Call("Server.Reallocate", req, resp)
	if err != nil {
		return 0, fmt.Errorf("RPC call failed: %v", err)
	}

	if resp.Error != "" {
		return 0, fmt.Errorf("server error: %s", resp.Error)
	}

	c.mu.Lock()
	delete(c.allocated, start)
	c.allocated[resp.Start] = size
	c.mu.Unlock()

	return resp.Start, nil
}

// Check runs a consistency audit on the server's heap
func (c *Client) Check(verbose bool) error {
	req := &CheckRequest{Verbose: verbose}
	resp := &CheckResponse{}

	err := c.client.Call("Server.Check", req, resp)
	if err != nil {
		return fmt.Errorf("RPC call failed: %v", err)
	}

	if resp.Error != "" {
		return fmt.Errorf("server error: %s", resp.Error)
	}
	return nil
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.client.Close()
}
