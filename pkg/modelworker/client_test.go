package modelworker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type flakyTransport struct {
	failures int32
	calls    atomic.Int32
}

func (f *flakyTransport) Request(_ context.Context, subject string, payload []byte) ([]byte, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return nil, errors.New("transient transport failure")
	}
	return []byte(`{"status":"ready"}`), nil
}

func TestClientRetriesTransientTransportFailures(t *testing.T) {
	transport := &flakyTransport{failures: 2}
	client := NewClient(transport, ClientConfig{Attempts: 5, InitialDelay: time.Millisecond})

	resp, err := client.Init(context.Background(), InitRequest{WorkerID: "w1"})
	require.NoError(t, err)
	require.Equal(t, "ready", resp.Status)
	require.Equal(t, int32(3), transport.calls.Load())
}

func TestClientGivesUpAfterBoundedAttempts(t *testing.T) {
	transport := &flakyTransport{failures: 100}
	client := NewClient(transport, ClientConfig{Attempts: 3, InitialDelay: time.Millisecond})

	_, err := client.Init(context.Background(), InitRequest{WorkerID: "w1"})
	require.Error(t, err)
	require.Equal(t, int32(3), transport.calls.Load())
}

type alwaysErrorTransport struct{}

func (alwaysErrorTransport) Request(_ context.Context, subject string, payload []byte) ([]byte, error) {
	return nil, errors.New("down")
}

func TestClientRespectsContextCancellation(t *testing.T) {
	client := NewClient(alwaysErrorTransport{}, ClientConfig{Attempts: 10, InitialDelay: 20 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.Init(ctx, InitRequest{WorkerID: "w1"})
	require.Error(t, err)
}
