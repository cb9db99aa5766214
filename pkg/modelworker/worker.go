package modelworker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/streamtype"
	"github.com/rs/zerolog/log"
)

// InferFunc is the underlying model call a Worker dispatches batched
// requests to. It receives every tensor accumulated in one batch and
// returns one result (or error) per input, in the same order.
type InferFunc func(tensors []*streamtype.RuntimeData, params []map[string]any) ([]*streamtype.RuntimeData, error)

type pendingInfer struct {
	req    InferRequest
	result chan inferOutcome
}

type inferOutcome struct {
	out *InferResult
	err *InferError
}

// Worker owns exactly one model and serves batched inference requests
//. Requests arriving while Busy queue up to a bounded depth;
// beyond that they fail fast with a resource-limit error.
type Worker struct {
	id      string
	modelID string
	device  string
	batch   int
	timeout time.Duration
	infer   InferFunc

	state atomic.Value // WorkerState

	mu        sync.Mutex
	queue     []*pendingInfer
	queueCap  int
	busyCount atomic.Int64

	totalRequests atomic.Int64
	totalErrors   atomic.Int64
	started       time.Time

	wake     chan struct{}
	done     chan struct{}
	closeOnce sync.Once
}

// New constructs a Worker in the Starting state; call Init to transition
// to Ready and start its batching loop.
func New(id, modelID, device string, batchSize int, timeout time.Duration, infer InferFunc) *Worker {
	w := &Worker{
		id: id, modelID: modelID, device: device,
		batch: batchSize, timeout: timeout, infer: infer,
		queueCap: batchSize * 8,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	w.state.Store(StateStarting)
	return w
}

func (w *Worker) Init(req InitRequest) (*ReadyResponse, error) {
	if err := validateTransition(w.state.Load().(WorkerState), StateReady); err != nil {
		return nil, err
	}
	w.id = req.WorkerID
	w.modelID = req.ModelID
	w.device = req.Device
	if req.Batch > 0 {
		w.batch = req.Batch
	}
	if req.Timeout > 0 {
		w.timeout = req.Timeout
	}
	w.started = time.Now()
	w.state.Store(StateReady)
	go w.batchLoop()
	return &ReadyResponse{Status: "ready"}, nil
}

// Infer enqueues a request and blocks until its batch has been dispatched
// and a result (or error) is available.
func (w *Worker) Infer(req InferRequest) (*InferResult, *InferError) {
	state := w.state.Load().(WorkerState)
	if state == StateStopping || state == StateTerminated {
		return nil, &InferError{RequestID: req.RequestID, Kind: corepipeerr.KindWorkerTransport, Message: "worker is not accepting requests"}
	}

	pending := &pendingInfer{req: req, result: make(chan inferOutcome, 1)}
	w.mu.Lock()
	if len(w.queue) >= w.queueCap {
		w.mu.Unlock()
		w.totalErrors.Add(1)
		return nil, &InferError{RequestID: req.RequestID, Kind: corepipeerr.KindResourceLimit, Message: "worker queue is full"}
	}
	w.queue = append(w.queue, pending)
	w.mu.Unlock()
	w.totalRequests.Add(1)

	select {
	case w.wake <- struct{}{}:
	default:
	}

	outcome := <-pending.result
	return outcome.out, outcome.err
}

func (w *Worker) HealthCheck() *HealthResponse {
	w.mu.Lock()
	depth := len(w.queue)
	w.mu.Unlock()
	return &HealthResponse{
		State:       w.state.Load().(WorkerState),
		CurrentLoad: int(w.busyCount.Load()),
		QueueDepth:  depth,
	}
}

func (w *Worker) Status() *StatusResponse {
	return &StatusResponse{
		WorkerID:      w.id,
		ModelID:       w.modelID,
		State:         w.state.Load().(WorkerState),
		TotalRequests: w.totalRequests.Load(),
		TotalErrors:   w.totalErrors.Load(),
		UptimeSeconds: time.Since(w.started).Seconds(),
	}
}

func (w *Worker) Close() *CloseResponse {
	w.closeOnce.Do(func() {
		w.state.Store(StateStopping)
		close(w.done)
		w.state.Store(StateTerminated)
	})
	return &CloseResponse{Status: "closed"}
}

// batchLoop accumulates requests until either batch size is reached or
// timeout elapses since the oldest pending request, then dispatches one
// call to infer, demultiplexing results by request_id.
func (w *Worker) batchLoop() {
	timer := time.NewTimer(w.timeout)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}
	timerArmed := false

	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
			w.mu.Lock()
			ready := len(w.queue) >= w.batch
			w.mu.Unlock()
			if ready {
				w.dispatchBatch()
				continue
			}
			if !timerArmed {
				timer.Reset(w.timeout)
				timerArmed = true
			}
		case <-timer.C:
			timerArmed = false
			w.dispatchBatch()
		}
	}
}

func (w *Worker) dispatchBatch() {
	w.mu.Lock()
	if len(w.queue) == 0 {
		w.mu.Unlock()
		return
	}
	n := w.batch
	if n > len(w.queue) || n <= 0 {
		n = len(w.queue)
	}
	batch := w.queue[:n]
	w.queue = w.queue[n:]
	w.mu.Unlock()

	w.state.Store(StateBusy)
	w.busyCount.Add(1)
	defer func() {
		w.busyCount.Add(-1)
		if w.state.Load().(WorkerState) == StateBusy {
			w.state.Store(StateReady)
		}
	}()

	tensors := make([]*streamtype.RuntimeData, len(batch))
	params := make([]map[string]any, len(batch))
	for i, p := range batch {
		tensors[i] = p.req.Tensor
		params[i] = p.req.Params
	}

	results, err := w.infer(tensors, params)
	if err != nil {
		w.totalErrors.Add(1)
		for _, p := range batch {
			p.result <- inferOutcome{err: &InferError{RequestID: p.req.RequestID, Kind: corepipeerr.KindNodeExecution, Message: err.Error()}}
		}
		return
	}
	if len(results) != len(batch) {
		log.Warn().Int("expected", len(batch)).Int("got", len(results)).Msg("model worker infer returned a mismatched result count")
	}
	for i, p := range batch {
		if i >= len(results) {
			p.result <- inferOutcome{err: &InferError{RequestID: p.req.RequestID, Kind: corepipeerr.KindInternal, Message: "no result produced for this request"}}
			continue
		}
		p.result <- inferOutcome{out: &InferResult{RequestID: p.req.RequestID, Tensor: results[i]}}
	}
}
