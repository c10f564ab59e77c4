package interceptors

import (
	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"google.golang.org/grpc"
)

type chainEntry[T any] struct {
	id          string
	priority    int
	interceptor T
}

// Chain is an ordered set of named interceptors. Entries are kept sorted by priority, lowest first;
// the first entry is the outermost interceptor of the committed chain. Entries sharing a priority
// keep the order they were added in, and adding an entry never reorders existing ones.
// None of the operations are concurrency-safe.
type Chain[T any] struct {
	entries []chainEntry[T]
}

func (c *Chain[T]) index(id string) int {
	for i := range c.entries {
		if c.entries[i].id == id {
			return i
		}
	}
	return -1
}

func (c *Chain[T]) insertAt(i int, e chainEntry[T]) {
	c.entries = append(c.entries, chainEntry[T]{})
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = e
}

// Exists reports whether an interceptor with id is part of the chain.
func (c *Chain[T]) Exists(id string) bool {
	return c.index(id) >= 0
}

// Push adds an interceptor after every entry whose priority is lower or equal.
// Returns false if an item with the specified ID already exists.
// Push("c", 5, <inter>)
//
//	Before: a(0) -> b(10)
//	After: a(0) -> c(5) -> b(10)
func (c *Chain[T]) Push(id string, priority int, inter T) bool {
	if c.Exists(id) {
		return false
	}

	i := len(c.entries)
	for i > 0 && c.entries[i-1].priority > priority {
		i--
	}
	c.insertAt(i, chainEntry[T]{id: id, priority: priority, interceptor: inter})

	return true
}

// InsertAfter inserts an interceptor right after afterID, sharing its priority.
// InsertAfter("a", "c", <inter>)
//
//	Before: a -> b
//	After: a -> c -> b
func (c *Chain[T]) InsertAfter(afterID, id string, inter T) bool {
	if c.Exists(id) {
		return false
	}
	ref := c.index(afterID)
	if ref < 0 {
		return false
	}

	c.insertAt(ref+1, chainEntry[T]{id: id, priority: c.entries[ref].priority, interceptor: inter})

	return true
}

// InsertBefore inserts an interceptor right before beforeID, sharing its priority.
// InsertBefore("b", "c", <inter>)
//
//	Before: a -> b
//	After: a -> c -> b
func (c *Chain[T]) InsertBefore(beforeID, id string, inter T) bool {
	if c.Exists(id) {
		return false
	}
	ref := c.index(beforeID)
	if ref < 0 {
		return false
	}

	c.insertAt(ref, chainEntry[T]{id: id, priority: c.entries[ref].priority, interceptor: inter})

	return true
}

// Replace swaps the interceptor registered under id, keeping its position.
func (c *Chain[T]) Replace(id string, inter T) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.entries[i].interceptor = inter
	return true
}

// Delete removes the specified interceptor from the chain.
func (c *Chain[T]) Delete(id string) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	return true
}

// IDs returns the interceptor ids, outermost first.
func (c *Chain[T]) IDs() []string {
	ids := make([]string, len(c.entries))
	for i, e := range c.entries {
		ids[i] = e.id
	}
	return ids
}

// Interceptors returns the interceptors, outermost first.
func (c *Chain[T]) Interceptors() []T {
	out := make([]T, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.interceptor
	}
	return out
}

// UnaryServerInterceptorChain builds a chain of grpc.UnaryServerInterceptor's.
type UnaryServerInterceptorChain struct {
	Chain[grpc.UnaryServerInterceptor]
}

// StreamServerInterceptorChain builds a chain of grpc.StreamServerInterceptor's.
type StreamServerInterceptorChain struct {
	Chain[grpc.StreamServerInterceptor]
}

// UnaryClientInterceptorChain builds a chain of grpc.UnaryClientInterceptor's.
type UnaryClientInterceptorChain struct {
	Chain[grpc.UnaryClientInterceptor]
}

// StreamClientInterceptorChain builds a chain of grpc.StreamClientInterceptor's.
type StreamClientInterceptorChain struct {
	Chain[grpc.StreamClientInterceptor]
}

// Commit folds the chain into a single interceptor.
func (c *UnaryServerInterceptorChain) Commit() grpc.UnaryServerInterceptor {
	return grpcmiddleware.ChainUnaryServer(c.Interceptors()...)
}

// Commit folds the chain into a single interceptor.
func (c *StreamServerInterceptorChain) Commit() grpc.StreamServerInterceptor {
	return grpcmiddleware.ChainStreamServer(c.Interceptors()...)
}

// Commit folds the chain into a single interceptor.
func (c *UnaryClientInterceptorChain) Commit() grpc.UnaryClientInterceptor {
	return grpcmiddleware.ChainUnaryClient(c.Interceptors()...)
}

// Commit folds the chain into a single interceptor.
func (c *StreamClientInterceptorChain) Commit() grpc.StreamClientInterceptor {
	return grpcmiddleware.ChainStreamClient(c.Interceptors()...)
}

func NewUnaryServerInterceptorChain() *UnaryServerInterceptorChain {
	return &UnaryServerInterceptorChain{}
}

func NewStreamServerInterceptorChain() *StreamServerInterceptorChain {
	return &StreamServerInterceptorChain{}
}

func NewUnaryClientInterceptorChain() *UnaryClientInterceptorChain {
	return &UnaryClientInterceptorChain{}
}

func NewStreamClientInterceptorChain() *StreamClientInterceptorChain {
	return &StreamClientInterceptorChain{}
}
