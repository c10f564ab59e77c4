// Package streaming holds the per-call state machines behind the client-streaming and bidirectional
// calls. They are transport-agnostic: handlers feed them inbound events and act on what they return.
package streaming

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc/status"

	rpcerrors "github.com/rainbow-me/rpc-interceptors/grpc/errors"
)

// DefaultChunkCeiling is the largest value a single chunk may carry.
const DefaultChunkCeiling int64 = 1_000_000

const (
	SummaryMessage       = "Client streaming finished."
	ClientCancelledError = "Client cancelled request"
)

// AccumulatorState is the lifecycle stage of an Accumulator.
type AccumulatorState int32

const (
	Accumulating AccumulatorState = iota
	ClosedSuccess
	ClosedError
)

func (s AccumulatorState) String() string {
	switch s {
	case Accumulating:
		return "accumulating"
	case ClosedSuccess:
		return "closed_success"
	case ClosedError:
		return "closed_error"
	default:
		return fmt.Sprintf("AccumulatorState(%d)", int32(s))
	}
}

// Summary is the single response of a successful client-streaming call.
type Summary struct {
	Count   int64
	Total   int64
	Average float64
	Message string
}

// Accumulator sums the numbers of a client stream. Once it closes, every later event is ignored.
type Accumulator struct {
	ceiling int64

	state atomic.Int32

	mu    sync.Mutex
	count int64
	total int64
}

// NewAccumulator returns an accumulator rejecting chunks above ceiling. A non-positive ceiling means
// DefaultChunkCeiling.
func NewAccumulator(ceiling int64) *Accumulator {
	if ceiling <= 0 {
		ceiling = DefaultChunkCeiling
	}
	return &Accumulator{ceiling: ceiling}
}

// State returns the current lifecycle stage.
func (a *Accumulator) State() AccumulatorState {
	return AccumulatorState(a.state.Load())
}

// Add folds n into the running totals. It returns the terminal status when n is rejected; the
// accumulator is then closed and later calls to Add return nil without effect.
func (a *Accumulator) Add(n int64) *status.Status {
	if a.State() != Accumulating {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.State() != Accumulating {
		return nil
	}

	if n > a.ceiling {
		a.state.Store(int32(ClosedError))
		return rpcerrors.InvalidArgument("number", fmt.Sprintf("Number too large: %d", n))
	}
	if (n > 0 && a.total > math.MaxInt64-n) || (n < 0 && a.total < math.MinInt64-n) {
		a.state.Store(int32(ClosedError))
		return rpcerrors.InvalidArgument("number", fmt.Sprintf("Number would cause overflow: %d", n))
	}

	a.count++
	a.total += n

	return nil
}

// Abort closes the accumulator after an upstream failure. It returns the CANCELLED status the call
// ends with, or nil when the accumulator had already closed.
func (a *Accumulator) Abort() *status.Status {
	if !a.state.CompareAndSwap(int32(Accumulating), int32(ClosedError)) {
		return nil
	}
	return rpcerrors.Cancelled(ClientCancelledError)
}

// Finish closes the accumulator at the end of the inbound stream and returns the summary. ok is
// false when the accumulator had already closed, in which case no summary may be sent.
func (a *Accumulator) Finish() (Summary, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.state.CompareAndSwap(int32(Accumulating), int32(ClosedSuccess)) {
		return Summary{}, false
	}

	var avg float64
	if a.count > 0 {
		avg = float64(a.total) / float64(a.count)
	}

	return Summary{
		Count:   a.count,
		Total:   a.total,
		Average: avg,
		Message: SummaryMessage,
	}, true
}
