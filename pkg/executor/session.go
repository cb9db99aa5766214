package executor

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/manifest"
	"github.com/helixml/corepipe/pkg/streamtype"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// SessionMetrics accumulates per-session counters: chunks rejected by a
// full node queue and sink outputs discarded by a full output channel are
// counted, not fatal; TotalItemsProcessed counts each admitted chunk's
// items once, from the output of the node the chunk was sent to.
type SessionMetrics struct {
	TotalChunks         atomic.Int64
	TotalItemsProcessed atomic.Int64
	DroppedChunks       atomic.Int64
	Errors              atomic.Int64
}

// CloseSummary is returned by Close. A session does not close itself when
// idle: StreamConfig.IdleTimeout is not acted on here, and IdleFor only
// reports the idle time to the caller.
type CloseSummary struct {
	SessionID   string
	TotalChunks int64
	TotalTimeMs int64
}

type pendingBatch struct {
	arrived time.Time
	parts   map[string]*streamtype.RuntimeData
}

// Session is one streaming pipeline run:
// manifest snapshot, per-node last-sequence counters, per-node bounded
// queues, and a batching window for multi-input nodes.
type Session struct {
	ID       string
	manifest *manifest.Manifest
	graph    *graph
	built    map[string]*instantiated
	config   StreamConfig

	lastSeq *xsync.MapOf[string, uint64]
	queues  *xsync.MapOf[string, *nodeQueue]
	nodeMu  *xsync.MapOf[string, *sync.Mutex]
	batches *xsync.MapOf[string, map[uint64]*pendingBatch]
	batchMu *xsync.MapOf[string, *sync.Mutex]

	out      chan *streamtype.DataChunk
	errs     chan error
	metrics  SessionMetrics
	start    time.Time
	closed   atomic.Bool
	closeMu  sync.Mutex
	lastSeen atomic.Int64 // unix nanos of the last accepted chunk, for idle detection
}

// NewSession validates the manifest, builds the graph, instantiates every
// node, and prepares per-node queues. The caller must eventually call
// Close.
func NewSession(e *Executor, m *manifest.Manifest, config StreamConfig) (*Session, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	g, err := buildGraph(m)
	if err != nil {
		return nil, err
	}
	built, err := e.instantiateAll(m)
	if err != nil {
		cleanupAll(built)
		return nil, err
	}

	s := &Session{
		ID:       uuid.NewString(),
		manifest: m,
		graph:    g,
		built:    built,
		config:   config,
		lastSeq:  xsync.NewMapOf[string, uint64](),
		queues:   xsync.NewMapOf[string, *nodeQueue](),
		nodeMu:   xsync.NewMapOf[string, *sync.Mutex](),
		batches:  xsync.NewMapOf[string, map[uint64]*pendingBatch](),
		batchMu:  xsync.NewMapOf[string, *sync.Mutex](),
		out:      make(chan *streamtype.DataChunk, config.QueueCapacity),
		errs:     make(chan error, config.QueueCapacity),
		start:    time.Now(),
	}
	for _, n := range m.Nodes {
		s.queues.Store(n.ID, newNodeQueue(config.QueueCapacity))
		s.nodeMu.Store(n.ID, &sync.Mutex{})
	}
	s.lastSeen.Store(time.Now().UnixNano())
	return s, nil
}

// Outputs returns the channel sink chunks are delivered on.
func (s *Session) Outputs() <-chan *streamtype.DataChunk { return s.out }

// Errors returns the channel non-fatal and fatal errors are delivered on.
func (s *Session) Errors() <-chan error { return s.errs }

// Metrics returns a snapshot of the session's counters.
func (s *Session) Metrics() SessionMetrics { return s.metrics }

// IdleFor reports how long it has been since the last accepted chunk.
func (s *Session) IdleFor() time.Duration {
	return time.Since(time.Unix(0, s.lastSeen.Load()))
}

// SendChunk validates and admits a chunk addressed at chunk.NodeID, then
// drives that node's processing and downstream routing synchronously.
func (s *Session) SendChunk(chunk *streamtype.DataChunk) error {
	if s.closed.Load() {
		return corepipeerr.New(corepipeerr.KindValidation, "session is closed").WithContext("session_id", s.ID)
	}
	if err := chunk.Validate(); err != nil {
		return err
	}
	inst, ok := s.built[chunk.NodeID]
	if !ok {
		return corepipeerr.New(corepipeerr.KindValidation, "chunk targets unknown node").WithNode(chunk.NodeID)
	}

	if err := s.checkSequence(chunk.NodeID, chunk.Sequence); err != nil {
		s.fatal(err)
		return err
	}

	if err := validateChunkTypes(inst.desc, chunk); err != nil {
		s.fatal(err)
		return err
	}

	q, _ := s.queues.Load(chunk.NodeID)
	if err := q.Push(chunk, s.config.Backpressure); err != nil {
		s.metrics.DroppedChunks.Add(1)
		return err
	}
	s.lastSeen.Store(time.Now().UnixNano())
	s.metrics.TotalChunks.Add(1)

	return s.drain(chunk.NodeID)
}

func validateChunkTypes(desc manifest.Node, chunk *streamtype.DataChunk) error {
	if chunk.Buffer != nil {
		return streamtype.ValidateChunk(desc.ID, desc.InputTypes, chunk.Buffer.DataType())
	}
	return streamtype.ValidateNamedChunk(desc.ID, nil, desc.InputTypes, chunk.NamedBuffers)
}

func (s *Session) checkSequence(nodeID string, seq uint64) error {
	prev, existed := s.lastSeq.Load(nodeID)
	if existed && seq <= prev {
		if s.config.SkipSequenceGaps {
			return nil
		}
		return corepipeerr.New(corepipeerr.KindValidation,
			"sequence regression or duplicate on node "+nodeID).
			WithNode(nodeID)
	}
	s.lastSeq.Store(nodeID, seq)
	return nil
}

// drain pops every chunk currently queued for nodeID, runs it through the
// node (serialized per node via nodeMu), and routes the result onward.
func (s *Session) drain(nodeID string) error {
	mu, _ := s.nodeMu.Load(nodeID)
	mu.Lock()
	defer mu.Unlock()

	q, _ := s.queues.Load(nodeID)
	inst := s.built[nodeID]

	for _, chunk := range q.PopAll() {
		inputs := map[string]*streamtype.RuntimeData{}
		if chunk.Buffer != nil {
			inputs[""] = chunk.Buffer
		} else {
			for k, v := range chunk.NamedBuffers {
				inputs[k] = v
			}
		}

		outputs, err := inst.node.Process(inputs)
		if err != nil {
			wrapped := corepipeerr.Wrap(corepipeerr.KindNodeExecution, err, "streaming node process failed").WithNode(nodeID)
			s.fatal(wrapped)
			return wrapped
		}
		if count, itemErr := itemCountOf(singleOutput(outputs)); itemErr == nil {
			s.metrics.TotalItemsProcessed.Add(int64(count))
		}

		if err := s.route(nodeID, chunk.Sequence, chunk.TimestampMs, outputs); err != nil {
			return err
		}
	}
	return nil
}

func itemCountOf(rd *streamtype.RuntimeData) (int, error) {
	if rd == nil {
		return 0, corepipeerr.New(corepipeerr.KindInternal, "nil output")
	}
	return rd.ItemCount()
}

// route dispatches a node's output to every downstream node, or to the
// client output channel when the node is a sink.
func (s *Session) route(fromID string, seq uint64, timestampMs int64, outputs map[string]*streamtype.RuntimeData) error {
	out := singleOutput(outputs)
	if out == nil {
		return nil
	}

	if s.graph.isSink(fromID) {
		select {
		case s.out <- &streamtype.DataChunk{NodeID: fromID, Buffer: out, Sequence: seq, TimestampMs: timestampMs}:
		default:
			s.metrics.DroppedChunks.Add(1)
		}
	}

	downstream := s.graph.outgoing[fromID]
	if len(downstream) == 0 {
		return nil
	}

	var wg conc.WaitGroup
	errCh := make(chan error, len(downstream))
	for _, nextID := range downstream {
		nextID := nextID
		wg.Go(func() {
			if err := s.deliver(fromID, nextID, seq, timestampMs, out); err != nil {
				errCh <- err
			}
		})
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		return err
	}
	return nil
}

// deliver hands a buffer from fromID to nextID, either directly (single
// upstream source) or into a per-sequence batch (multiple upstream
// sources) that completes once every named part has arrived or the batch
// timeout elapses.
func (s *Session) deliver(fromID, nextID string, seq uint64, timestampMs int64, data *streamtype.RuntimeData) error {
	if len(s.graph.incoming[nextID]) <= 1 {
		return s.runDownstream(nextID, seq, timestampMs, map[string]*streamtype.RuntimeData{"": data})
	}

	batchMu, _ := s.batchMu.LoadOrStore(nextID, &sync.Mutex{})
	batches, _ := s.batches.LoadOrStore(nextID, map[uint64]*pendingBatch{})
	var complete map[string]*streamtype.RuntimeData

	batchMu.Lock()
	b, ok := batches[seq]
	if !ok {
		b = &pendingBatch{arrived: time.Now(), parts: map[string]*streamtype.RuntimeData{}}
		batches[seq] = b
	}
	b.parts[fromID] = data
	if len(b.parts) >= len(s.graph.incoming[nextID]) {
		complete = b.parts
		delete(batches, seq)
	}
	batchMu.Unlock()

	if complete == nil {
		go s.expireBatchAfterTimeout(nextID, seq)
		return nil
	}
	return s.runDownstream(nextID, seq, timestampMs, complete)
}

func (s *Session) expireBatchAfterTimeout(nodeID string, seq uint64) {
	timeout := s.config.BatchTimeout
	if timeout <= 0 {
		return
	}
	time.Sleep(timeout)

	batchMu, ok := s.batchMu.Load(nodeID)
	if !ok {
		return
	}
	batchMu.Lock()
	batches, _ := s.batches.Load(nodeID)
	b, ok := batches[seq]
	if ok && time.Since(b.arrived) >= timeout {
		delete(batches, seq)
		batchMu.Unlock()
		s.fatal(corepipeerr.New(corepipeerr.KindValidation,
			"batch window closed with an incomplete set of named inputs").
			WithNode(nodeID).
			WithContext("sequence", strconv.FormatUint(seq, 10)))
		return
	}
	batchMu.Unlock()
}

func (s *Session) runDownstream(nodeID string, seq uint64, timestampMs int64, inputs map[string]*streamtype.RuntimeData) error {
	inst := s.built[nodeID]
	if err := validateNamedInputs(inst.desc, inputs); err != nil {
		s.fatal(err)
		return err
	}

	mu, _ := s.nodeMu.Load(nodeID)
	mu.Lock()
	outputs, err := inst.node.Process(inputs)
	mu.Unlock()
	if err != nil {
		wrapped := corepipeerr.Wrap(corepipeerr.KindNodeExecution, err, "streaming node process failed").WithNode(nodeID)
		s.fatal(wrapped)
		return wrapped
	}
	return s.route(nodeID, seq, timestampMs, outputs)
}

func validateNamedInputs(desc manifest.Node, inputs map[string]*streamtype.RuntimeData) error {
	if len(inputs) == 1 {
		if buf, ok := inputs[""]; ok {
			return streamtype.ValidateChunk(desc.ID, desc.InputTypes, buf.DataType())
		}
	}
	return streamtype.ValidateNamedChunk(desc.ID, nil, desc.InputTypes, inputs)
}

func (s *Session) fatal(err error) {
	if s.closed.Load() {
		return
	}
	s.metrics.Errors.Add(1)
	select {
	case s.errs <- err:
	default:
		log.Warn().Err(err).Str("session_id", s.ID).Msg("session error channel full, dropping error")
	}
}

// Close marks the session closed, cleans up its nodes, closes the output
// and error channels and returns a summary; it does not wait for SendChunk
// calls that are still running. A second call is a no-op that returns a
// summary with the same session id and chunk count rather than an error
// that would invalidate the first call's result.
func (s *Session) Close() *CloseSummary {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if !s.closed.CompareAndSwap(false, true) {
		return s.summary()
	}
	cleanupAll(s.built)
	close(s.out)
	close(s.errs)
	return s.summary()
}

func (s *Session) summary() *CloseSummary {
	return &CloseSummary{
		SessionID:   s.ID,
		TotalChunks: s.metrics.TotalChunks.Load(),
		TotalTimeMs: time.Since(s.start).Milliseconds(),
	}
}

