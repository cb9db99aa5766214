package modelworker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/helixml/corepipe/pkg/corepipeerr"
)

// ClientConfig bounds the resilient client's retry behavior.
type ClientConfig struct {
	Attempts     uint
	InitialDelay time.Duration
}

// DefaultClientConfig picks a conservative retry posture for worker-facing
// clients: few attempts, short initial backoff.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{Attempts: 3, InitialDelay: 100 * time.Millisecond}
}

// Client is the resilient caller side of the model worker protocol: transport
// failures retry with bounded attempts and exponential backoff; a typed
// InferError surfaced by the worker (validation, model-side execution)
// is not retried since retrying a non-transient failure would only
// repeat it.
type Client struct {
	transport Transport
	cfg       ClientConfig
}

func NewClient(t Transport, cfg ClientConfig) *Client {
	return &Client{transport: t, cfg: cfg}
}

func (c *Client) Init(ctx context.Context, req InitRequest) (*ReadyResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	raw, err := c.requestWithRetry(ctx, "init", payload)
	if err != nil {
		return nil, err
	}
	var resp ReadyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Infer retries transport failures; a well-formed InferError reply from
// the worker is returned as-is without retry.
func (c *Client) Infer(ctx context.Context, req InferRequest) (*InferResult, error) {
	wire, err := newWireInferRequest(req)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}

	raw, err := c.requestWithRetry(ctx, "infer", payload)
	if err != nil {
		return nil, err
	}

	var probe map[string]any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, corepipeerr.Wrap(corepipeerr.KindInternal, err, "malformed infer reply")
	}
	if _, isError := probe["kind"]; isError {
		var infErr InferError
		if err := json.Unmarshal(raw, &infErr); err != nil {
			return nil, err
		}
		return nil, &infErr
	}

	var wireResult wireInferResult
	if err := json.Unmarshal(raw, &wireResult); err != nil {
		return nil, err
	}
	return wireResult.toResult()
}

func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	raw, err := c.requestWithRetry(ctx, "health", nil)
	if err != nil {
		return nil, err
	}
	var resp HealthResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	raw, err := c.requestWithRetry(ctx, "status", nil)
	if err != nil {
		return nil, err
	}
	var resp StatusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Close(ctx context.Context) (*CloseResponse, error) {
	raw, err := c.requestWithRetry(ctx, "close", nil)
	if err != nil {
		return nil, err
	}
	var resp CloseResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) requestWithRetry(ctx context.Context, subject string, payload []byte) ([]byte, error) {
	return retry.DoWithData(
		func() ([]byte, error) {
			return c.transport.Request(ctx, subject, payload)
		},
		retry.Context(ctx),
		retry.Attempts(c.cfg.Attempts),
		retry.Delay(c.cfg.InitialDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}
