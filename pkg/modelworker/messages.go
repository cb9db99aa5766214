// Package modelworker implements the C8 cross-process model worker
// protocol: logical message shapes, worker lifecycle states, a transport
// abstraction so the protocol logic stays collaborator-agnostic, and a resilient
// client. Grounded on api/pkg/pubsub/nats.go's Request/QueueRequest
// request-reply shape and api/pkg/scheduler/queue.go's bounded-queue
// batching.
package modelworker

import (
	"time"

	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/streamtype"
)

// InitRequest starts a worker against one model.
type InitRequest struct {
	WorkerID string        `json:"worker_id"`
	ModelID  string        `json:"model_id"`
	Device   string        `json:"device"`
	Batch    int           `json:"batch"`
	Timeout  time.Duration `json:"timeout"`
}

// ReadyResponse answers InitRequest.
type ReadyResponse struct {
	Status string `json:"status"`
}

// InferRequest carries a tensor inline or by shared-memory reference
//; exactly one of
// Tensor/TensorRef is set.
type InferRequest struct {
	RequestID string                    `json:"request_id"`
	Tensor    *streamtype.RuntimeData   `json:"-"`
	TensorRef string                    `json:"tensor_ref,omitempty"`
	Params    map[string]any            `json:"params,omitempty"`
}

// InferResult answers a successful InferRequest.
type InferResult struct {
	RequestID string                  `json:"request_id"`
	Tensor    *streamtype.RuntimeData `json:"-"`
	TensorRef string                  `json:"tensor_ref,omitempty"`
	Metrics   map[string]float64      `json:"metrics,omitempty"`
}

// InferError answers a failed InferRequest with a typed kind.
type InferError struct {
	RequestID string           `json:"request_id"`
	Kind      corepipeerr.Kind `json:"kind"`
	Message   string           `json:"message"`
}

func (e *InferError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// HealthResponse answers HealthCheck.
type HealthResponse struct {
	State       WorkerState `json:"state"`
	CurrentLoad int         `json:"current_load"`
	QueueDepth  int         `json:"queue_depth"`
}

// StatusResponse answers Status.
type StatusResponse struct {
	WorkerID        string      `json:"worker_id"`
	ModelID         string      `json:"model_id"`
	State           WorkerState `json:"state"`
	TotalRequests   int64       `json:"total_requests"`
	TotalErrors     int64       `json:"total_errors"`
	UptimeSeconds   float64     `json:"uptime_seconds"`
}

// CloseResponse answers a graceful-shutdown Close request.
type CloseResponse struct {
	Status string `json:"status"`
}
