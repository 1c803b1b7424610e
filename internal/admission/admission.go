// Package admission turns an observed queue depth into a traffic admission verdict.
package admission

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ginkida/queue-probe/internal/inspector"
)

// HeadroomFactor is the fraction of the maximum queue length below which
// traffic is still admitted. The remaining 20% is kept as buffer.
const HeadroomFactor = 0.8

// ErrSourcePanic marks a queue source that panicked instead of returning.
var ErrSourcePanic = errors.New("queue source panicked")

// Verdict is the outcome of a single admission check.
type Verdict struct {
	Admit     bool
	Depth     int     // observed depth; zero when Err is set
	Max       int     // configured maximum
	Threshold float64 // HeadroomFactor * Max
	Err       error   // inspection failure, if any
}

// StatusCode maps the verdict to the health endpoint's HTTP status.
func (v Verdict) StatusCode() int {
	if v.Admit {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

// Evaluator decides whether the backing server can take more traffic.
// It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	source         inspector.QueueSource
	maxQueueLength int
}

// NewEvaluator creates an evaluator over source with the given maximum queue length.
func NewEvaluator(source inspector.QueueSource, maxQueueLength int) *Evaluator {
	return &Evaluator{source: source, maxQueueLength: maxQueueLength}
}

// Evaluate inspects the queue once. Any inspection failure rejects,
// including a panic in the source.
func (e *Evaluator) Evaluate(ctx context.Context) Verdict {
	v := Verdict{
		Max:       e.maxQueueLength,
		Threshold: Threshold(e.maxQueueLength),
	}
	depth, err := e.inspect(ctx)
	if err != nil {
		v.Err = err
		return v
	}
	v.Depth = depth
	v.Admit = Admits(depth, e.maxQueueLength)
	return v
}

func (e *Evaluator) inspect(ctx context.Context) (depth int, err error) {
	defer func() {
		if r := recover(); r != nil {
			depth, err = 0, fmt.Errorf("%w: %v", ErrSourcePanic, r)
		}
	}()
	return e.source.Inspect(ctx)
}

// CanTakeMoreTraffic reports whether the queue currently has headroom.
func (e *Evaluator) CanTakeMoreTraffic(ctx context.Context) bool {
	return e.Evaluate(ctx).Admit
}

// Threshold returns the depth at and above which traffic is rejected.
func Threshold(maxQueueLength int) float64 {
	return float64(maxQueueLength) * HeadroomFactor
}

// Admits reports whether depth is strictly below the threshold for maxQueueLength.
func Admits(depth, maxQueueLength int) bool {
	return float64(depth) < Threshold(maxQueueLength)
}
