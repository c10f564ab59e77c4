// Package idgen generates the trace and request ids stamped on calls. Ids are unique within a process
// with high probability and are not suitable for anything security related.
package idgen

import (
	"math/rand/v2"
	"strconv"
	"sync/atomic"
)

const (
	seedMin = 1_000_000_000
	seedMax = 10_000_000_000

	suffixMin = 100
	suffixMax = 999
)

// Generator hands out monotonically increasing trace and request sequence numbers.
type Generator struct {
	traceSeq   atomic.Uint64
	requestSeq atomic.Uint64
}

// New returns a generator whose counters start at randomly chosen values in [1e9, 1e10).
func New() *Generator {
	return NewSeeded(randomSeed(), randomSeed())
}

// NewSeeded returns a generator whose first trace sequence is traceSeed+1 and first request id requestSeed+1.
func NewSeeded(traceSeed, requestSeed uint64) *Generator {
	g := &Generator{}
	g.traceSeq.Store(traceSeed)
	g.requestSeq.Store(requestSeed)
	return g
}

// NextTraceID returns "<sequence>-<random 100..999>".
func (g *Generator) NextTraceID() string {
	seq := g.traceSeq.Add(1)
	suffix := suffixMin + rand.IntN(suffixMax-suffixMin+1) //nolint:gosec
	return strconv.FormatUint(seq, 10) + "-" + strconv.Itoa(suffix)
}

// NextRequestID returns the next request sequence number.
func (g *Generator) NextRequestID() uint64 {
	return g.requestSeq.Add(1)
}

func randomSeed() uint64 {
	return seedMin + rand.Uint64N(seedMax-seedMin) //nolint:gosec
}

var defaultGenerator = New()

// NextTraceID returns a trace id from the process-wide generator.
func NextTraceID() string { return defaultGenerator.NextTraceID() }

// NextRequestID returns a request id from the process-wide generator.
func NextRequestID() uint64 { return defaultGenerator.NextRequestID() }
