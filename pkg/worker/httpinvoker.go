package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/governedloop/core/pkg/errs"
	"github.com/governedloop/core/pkg/ports"
)

// HTTPInvoker is the default ports.WorkerInvoker adapter (§3.13: "the
// default adapter is an HTTP callout"). It POSTs the deterministic
// context bundle as JSON and expects back a candidate content hash or
// a reported failure.
type HTTPInvoker struct {
	endpoint string
	client   *http.Client
}

// NewHTTPInvoker wires an HTTPInvoker against a worker's callout
// endpoint.
func NewHTTPInvoker(endpoint string, client *http.Client) *HTTPInvoker {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &HTTPInvoker{endpoint: endpoint, client: client}
}

type invokeRequestBody struct {
	IterationID string             `json:"iteration_id"`
	ContextRefs []ports.ContextRef `json:"context_refs"`
}

type invokeResponseBody struct {
	CandidateContentHash string `json:"candidate_content_hash"`
	Summary               string `json:"summary"`
	Failed                bool   `json:"failed"`
	FailureReason         string `json:"failure_reason"`
}

// Invoke implements ports.WorkerInvoker.
func (h *HTTPInvoker) Invoke(ctx context.Context, req ports.WorkerInvokeRequest) (ports.WorkerInvokeResult, error) {
	body, err := json.Marshal(invokeRequestBody{IterationID: req.IterationID, ContextRefs: req.ContextRefs})
	if err != nil {
		return ports.WorkerInvokeResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.WorkerInvokeResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return ports.WorkerInvokeResult{}, &errs.InfrastructureError{Port: "WorkerInvoker", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ports.WorkerInvokeResult{}, &errs.InfrastructureError{Port: "WorkerInvoker", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return ports.WorkerInvokeResult{}, &errs.InfrastructureError{
			Port: "WorkerInvoker",
			Err:  fmt.Errorf("worker returned status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var out invokeResponseBody
	if err := json.Unmarshal(respBody, &out); err != nil {
		return ports.WorkerInvokeResult{}, &errs.InfrastructureError{Port: "WorkerInvoker", Err: err}
	}

	return ports.WorkerInvokeResult{
		CandidateContentHash: out.CandidateContentHash,
		Summary:              out.Summary,
		Failed:               out.Failed,
		FailureReason:        out.FailureReason,
	}, nil
}

// NewBreakerInvoker wraps invoker behind a circuit breaker that opens
// after repeated consecutive call failures, the same §7
// infrastructure-error taxonomy pkg/oracle.NewSandboxBreaker enforces
// for the sandbox port.
func NewBreakerInvoker(invoker ports.WorkerInvoker) *BreakerInvoker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "worker-invoker",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &BreakerInvoker{invoker: invoker, cb: cb}
}

// BreakerInvoker is a ports.WorkerInvoker that trips open after
// repeated consecutive invocation failures rather than hammering a
// dead external worker.
type BreakerInvoker struct {
	invoker ports.WorkerInvoker
	cb      *gobreaker.CircuitBreaker
}

func (b *BreakerInvoker) Invoke(ctx context.Context, req ports.WorkerInvokeRequest) (ports.WorkerInvokeResult, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.invoker.Invoke(ctx, req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return ports.WorkerInvokeResult{}, &errs.InfrastructureError{Port: "WorkerInvoker", Err: err}
		}
		return ports.WorkerInvokeResult{}, err
	}
	return out.(ports.WorkerInvokeResult), nil
}
