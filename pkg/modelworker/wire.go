package modelworker

import (
	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/streamtype"
)

// wireInferRequest is InferRequest's JSON-transportable shape: a tensor
// carried inline crosses as a streamtype.DataBuffer (whose []byte fields
// already round-trip through encoding/json's base64 default), matching
// wire format rather than a bespoke encoding.
type wireInferRequest struct {
	RequestID string              `json:"request_id"`
	Tensor    *streamtype.DataBuffer `json:"tensor,omitempty"`
	TensorRef string              `json:"tensor_ref,omitempty"`
	Params    map[string]any      `json:"params,omitempty"`
}

func newWireInferRequest(req InferRequest) (*wireInferRequest, error) {
	wire := &wireInferRequest{RequestID: req.RequestID, TensorRef: req.TensorRef, Params: req.Params}
	if req.Tensor != nil {
		buf, err := streamtype.ToProto(req.Tensor)
		if err != nil {
			return nil, corepipeerr.Wrap(corepipeerr.KindInternal, err, "failed to serialize infer request tensor")
		}
		wire.Tensor = buf
	}
	return wire, nil
}

func (w *wireInferRequest) toRequest() (InferRequest, error) {
	req := InferRequest{RequestID: w.RequestID, TensorRef: w.TensorRef, Params: w.Params}
	if w.Tensor != nil {
		rd, err := streamtype.ToRuntime(w.Tensor)
		if err != nil {
			return req, err
		}
		req.Tensor = rd
	}
	return req, nil
}

type wireInferResult struct {
	RequestID string                 `json:"request_id"`
	Tensor    *streamtype.DataBuffer `json:"tensor,omitempty"`
	TensorRef string                 `json:"tensor_ref,omitempty"`
	Metrics   map[string]float64     `json:"metrics,omitempty"`
}

func newWireInferResult(result *InferResult) (*wireInferResult, error) {
	wire := &wireInferResult{RequestID: result.RequestID, TensorRef: result.TensorRef, Metrics: result.Metrics}
	if result.Tensor != nil {
		buf, err := streamtype.ToProto(result.Tensor)
		if err != nil {
			return nil, corepipeerr.Wrap(corepipeerr.KindInternal, err, "failed to serialize infer result tensor")
		}
		wire.Tensor = buf
	}
	return wire, nil
}

func (w *wireInferResult) toResult() (*InferResult, error) {
	result := &InferResult{RequestID: w.RequestID, TensorRef: w.TensorRef, Metrics: w.Metrics}
	if w.Tensor != nil {
		rd, err := streamtype.ToRuntime(w.Tensor)
		if err != nil {
			return nil, err
		}
		result.Tensor = rd
	}
	return result, nil
}
