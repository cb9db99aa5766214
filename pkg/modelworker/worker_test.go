package modelworker

import (
	"testing"
	"time"

	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/streamtype"
	"github.com/stretchr/testify/require"
)

func echoInfer(tensors []*streamtype.RuntimeData, params []map[string]any) ([]*streamtype.RuntimeData, error) {
	return tensors, nil
}

func newReadyWorker(t *testing.T, batch int, timeout time.Duration, infer InferFunc) *Worker {
	t.Helper()
	w := New("w1", "model-a", "cpu", batch, timeout, infer)
	_, err := w.Init(InitRequest{WorkerID: "w1", ModelID: "model-a", Device: "cpu", Batch: batch, Timeout: timeout})
	require.NoError(t, err)
	return w
}

func TestWorkerInitTransitionsStartingToReady(t *testing.T) {
	w := New("w1", "model-a", "cpu", 2, 50*time.Millisecond, echoInfer)
	require.Equal(t, StateStarting, w.state.Load().(WorkerState))
	resp, err := w.Init(InitRequest{WorkerID: "w1", ModelID: "model-a", Device: "cpu", Batch: 2, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	require.Equal(t, "ready", resp.Status)
	require.Equal(t, StateReady, w.state.Load().(WorkerState))
}

func TestWorkerDoubleInitRejected(t *testing.T) {
	w := newReadyWorker(t, 2, 50*time.Millisecond, echoInfer)
	_, err := w.Init(InitRequest{WorkerID: "w1"})
	require.Error(t, err)
}

func TestWorkerBatchDispatchesOnCount(t *testing.T) {
	w := newReadyWorker(t, 2, time.Hour, echoInfer)
	defer w.Close()

	results := make(chan *InferResult, 2)
	for i := 0; i < 2; i++ {
		i := i
		go func() {
			rd, _ := streamtype.NewText([]byte("x"), "utf-8", "en", nil)
			res, infErr := w.Infer(InferRequest{RequestID: string(rune('a' + i)), Tensor: rd})
			require.Nil(t, infErr)
			results <- res
		}()
	}
	for i := 0; i < 2; i++ {
		select {
		case <-results:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for batched infer result")
		}
	}
}

func TestWorkerBatchDispatchesOnTimeout(t *testing.T) {
	w := newReadyWorker(t, 10, 30*time.Millisecond, echoInfer)
	defer w.Close()

	rd, _ := streamtype.NewText([]byte("solo"), "utf-8", "en", nil)
	res, infErr := w.Infer(InferRequest{RequestID: "only-one", Tensor: rd})
	require.Nil(t, infErr)
	require.Equal(t, "only-one", res.RequestID)
}

func TestWorkerQueueFullRejectsFast(t *testing.T) {
	block := make(chan struct{})
	blocking := func(tensors []*streamtype.RuntimeData, params []map[string]any) ([]*streamtype.RuntimeData, error) {
		<-block
		return tensors, nil
	}
	w := newReadyWorker(t, 1, time.Hour, blocking)
	defer func() { close(block); w.Close() }()

	rd, _ := streamtype.NewText([]byte("x"), "utf-8", "en", nil)
	// the first request is taken out of the queue into the blocked batch;
	// the next queueCap requests then fill the queue.
	go w.Infer(InferRequest{RequestID: "in-flight", Tensor: rd})
	time.Sleep(20 * time.Millisecond)
	for i := 0; i < w.queueCap; i++ {
		go w.Infer(InferRequest{RequestID: "filler", Tensor: rd})
	}
	time.Sleep(50 * time.Millisecond)

	_, infErr := w.Infer(InferRequest{RequestID: "overflow", Tensor: rd})
	require.NotNil(t, infErr)
	require.Equal(t, corepipeerr.KindResourceLimit, infErr.Kind)
}

func TestWorkerRejectsInferAfterClose(t *testing.T) {
	w := newReadyWorker(t, 2, 20*time.Millisecond, echoInfer)
	w.Close()
	rd, _ := streamtype.NewText([]byte("x"), "utf-8", "en", nil)
	_, infErr := w.Infer(InferRequest{RequestID: "too-late", Tensor: rd})
	require.NotNil(t, infErr)
}

func TestWorkerCloseIsIdempotent(t *testing.T) {
	w := newReadyWorker(t, 2, 20*time.Millisecond, echoInfer)
	require.NotPanics(t, func() {
		w.Close()
		w.Close()
	})
	require.Equal(t, StateTerminated, w.state.Load().(WorkerState))
}

func TestWorkerInferErrorPropagatesKind(t *testing.T) {
	failing := func(tensors []*streamtype.RuntimeData, params []map[string]any) ([]*streamtype.RuntimeData, error) {
		return nil, corepipeerr.New(corepipeerr.KindNodeExecution, "boom")
	}
	w := newReadyWorker(t, 1, time.Hour, failing)
	defer w.Close()

	rd, _ := streamtype.NewText([]byte("x"), "utf-8", "en", nil)
	_, infErr := w.Infer(InferRequest{RequestID: "r1", Tensor: rd})
	require.NotNil(t, infErr)
	require.Equal(t, corepipeerr.KindNodeExecution, infErr.Kind)
}

func TestValidateTransitionRejectsSkippingReady(t *testing.T) {
	err := validateTransition(StateStarting, StateBusy)
	require.Error(t, err)
}

func TestValidateTransitionAllowsReadyBusyReady(t *testing.T) {
	require.NoError(t, validateTransition(StateReady, StateBusy))
	require.NoError(t, validateTransition(StateBusy, StateReady))
}
