package oracle

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/governedloop/core/pkg/errs"
	"github.com/governedloop/core/pkg/ports"
)

// NewSandboxBreaker wraps sandbox behind a circuit breaker that opens
// when a suite's sandbox port repeatedly errors, matching the §7
// infrastructure-error taxonomy ("retryable with backoff... escalates
// after a bounded number of attempts") — a bound gobreaker enforces for
// us instead of hand-rolled retry counting.
func NewSandboxBreaker(sandbox ports.Sandbox) *SandboxBreaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "oracle-sandbox",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &SandboxBreaker{sandbox: sandbox, cb: cb}
}

// SandboxBreaker is a ports.Sandbox that trips open after repeated
// consecutive sandbox failures rather than hammering a dead runtime.
type SandboxBreaker struct {
	sandbox ports.Sandbox
	cb      *gobreaker.CircuitBreaker
}

func (b *SandboxBreaker) Run(ctx context.Context, req ports.SandboxRunRequest) (ports.SandboxRunResult, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.sandbox.Run(ctx, req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return ports.SandboxRunResult{}, &errs.InfrastructureError{Port: "Sandbox", Err: err}
		}
		return ports.SandboxRunResult{}, err
	}
	return out.(ports.SandboxRunResult), nil
}
