package modelworker

import (
	"context"
	"encoding/json"

	"github.com/helixml/corepipe/pkg/corepipeerr"
)

// HandlerFunc answers one request subject with a raw reply payload.
type HandlerFunc func(payload []byte) ([]byte, error)

// LoopbackTransport dispatches directly to in-process handlers keyed by
// subject, the reference Transport used when a worker runs embedded in
// the same process as its caller (no real wire format needed).
type LoopbackTransport struct {
	handlers map[string]HandlerFunc
}

// NewLoopbackTransport wires a Worker's Init/Infer/HealthCheck/Status/Close
// methods onto fixed subject names.
func NewLoopbackTransport(w *Worker) *LoopbackTransport {
	t := &LoopbackTransport{handlers: make(map[string]HandlerFunc)}
	t.handlers["init"] = func(payload []byte) ([]byte, error) {
		var req InitRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		resp, err := w.Init(req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	}
	t.handlers["infer"] = func(payload []byte) ([]byte, error) {
		var wire wireInferRequest
		if err := json.Unmarshal(payload, &wire); err != nil {
			return nil, err
		}
		req, err := wire.toRequest()
		if err != nil {
			return nil, err
		}
		result, inferErr := w.Infer(req)
		if inferErr != nil {
			return json.Marshal(inferErr)
		}
		wireResult, err := newWireInferResult(result)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wireResult)
	}
	t.handlers["health"] = func([]byte) ([]byte, error) {
		return json.Marshal(w.HealthCheck())
	}
	t.handlers["status"] = func([]byte) ([]byte, error) {
		return json.Marshal(w.Status())
	}
	t.handlers["close"] = func([]byte) ([]byte, error) {
		return json.Marshal(w.Close())
	}
	return t
}

func (t *LoopbackTransport) Request(_ context.Context, subject string, payload []byte) ([]byte, error) {
	h, ok := t.handlers[subject]
	if !ok {
		return nil, corepipeerr.New(corepipeerr.KindWorkerTransport, "loopback transport has no handler for subject "+subject)
	}
	return h(payload)
}
