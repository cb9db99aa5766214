package ffi

import (
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/executor"
	"github.com/helixml/corepipe/pkg/manifest"
	"github.com/helixml/corepipe/pkg/noderegistry"
	"github.com/helixml/corepipe/pkg/scripthost"
	"github.com/helixml/corepipe/pkg/streamtype"
)

// Host wires the C10 entry points into a goja.Runtime. One Host owns its
// session registries (streaming and unary); callers typically keep a Host alive for the lifetime
// of the embedding process.
type Host struct {
	exec     *executor.Executor
	sessions *SessionRegistry
	unary    *unarySessionRegistry
}

// NewHost builds a Host running manifests against registry (pass
// noderegistry.Default to use the process-wide table).
func NewHost(registry *noderegistry.Registry) *Host {
	return &Host{exec: executor.New(registry), sessions: NewSessionRegistry(), unary: newUnarySessionRegistry()}
}

// Install registers execute_pipeline, execute_pipeline_with_session, and
// create_stream_session as globals on rt.
func (h *Host) Install(rt *goja.Runtime) error {
	if err := installConstructors(rt); err != nil {
		return err
	}
	if err := rt.Set("execute_pipeline", h.executePipeline(rt)); err != nil {
		return err
	}
	if err := rt.Set("execute_pipeline_with_session", h.executePipelineWithSession(rt)); err != nil {
		return err
	}
	if err := rt.Set("create_stream_session", h.createStreamSession(rt)); err != nil {
		return err
	}
	return nil
}

func (h *Host) executePipeline(rt *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		m, inputs, err := parseManifestAndInputs(rt, call)
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}
		outputs, err := h.exec.Execute(m, inputs)
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}
		return outputsToJS(rt, outputs)
	}
}

// executePipelineWithSession runs m's nodes under session_id's resident
// node set: the first call for a session id instantiates the nodes and
// keeps them alive, so a node that accumulates state in Process (a
// running total, a loaded handle) observes that state on every later call
// sharing the same session_id, unlike plain execute_pipeline.
func (h *Host) executePipelineWithSession(rt *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 3 {
			panic(rt.ToValue("execute_pipeline_with_session requires (manifest_json, inputs, session_id)"))
		}
		m, inputs, err := parseManifestAndInputs(rt, call)
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}
		sessionID := call.Arguments[2].String()
		if err := ValidateSessionID(sessionID); err != nil {
			panic(rt.ToValue(err.Error()))
		}

		sess, err := h.unary.getOrCreate(sessionID, h.exec, m)
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}

		outputs, err := sess.Execute(inputs)
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}
		return outputsToJS(rt, outputs)
	}
}

func (h *Host) createStreamSession(rt *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(rt.ToValue("create_stream_session requires a manifest_json argument"))
		}
		m, err := parseManifest(call.Arguments[0])
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}

		sess, err := executor.NewSession(h.exec, m, executor.DefaultStreamConfig())
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}
		if err := h.sessions.Put(sess.ID, sess); err != nil {
			sess.Close()
			panic(rt.ToValue(err.Error()))
		}

		return newStreamHandle(rt, sess, h.sessions).toObject()
	}
}

// streamHandle wraps one executor.Session as a goja object with
// send_input(RuntimeData), recv_output() -> RuntimeData?, close().
type streamHandle struct {
	rt       *goja.Runtime
	session  *executor.Session
	registry *SessionRegistry
	seq      atomic.Uint64
}

func newStreamHandle(rt *goja.Runtime, s *executor.Session, reg *SessionRegistry) *streamHandle {
	return &streamHandle{rt: rt, session: s, registry: reg}
}

func (h *streamHandle) toObject() *goja.Object {
	obj := h.rt.NewObject()
	obj.Set("id", h.session.ID)
	obj.Set("send_input", h.sendInput)
	obj.Set("recv_output", h.recvOutput)
	obj.Set("close", h.close)
	return obj
}

func (h *streamHandle) sendInput(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) < 1 {
		panic(h.rt.ToValue("send_input requires a RuntimeData handle"))
	}
	rd, err := scripthost.FromJS(h.rt, call.Arguments[0])
	if err != nil {
		panic(h.rt.ToValue(err.Error()))
	}
	nodeID := ""
	if len(call.Arguments) >= 2 {
		nodeID = call.Arguments[1].String()
	}
	chunk := &streamtype.DataChunk{
		NodeID:      nodeID,
		Buffer:      rd,
		Sequence:    h.seq.Add(1) - 1,
		TimestampMs: time.Now().UnixMilli(),
	}
	if err := h.session.SendChunk(chunk); err != nil {
		panic(h.rt.ToValue(err.Error()))
	}
	return goja.Undefined()
}

func (h *streamHandle) recvOutput(call goja.FunctionCall) goja.Value {
	select {
	case chunk, ok := <-h.session.Outputs():
		if !ok {
			return goja.Null()
		}
		v, err := scripthost.ToJS(h.rt, chunk.Buffer)
		if err != nil {
			panic(h.rt.ToValue(err.Error()))
		}
		return v
	default:
		return goja.Null()
	}
}

func (h *streamHandle) close(call goja.FunctionCall) goja.Value {
	summary := h.session.Close()
	h.registry.Remove(h.session.ID)
	return h.rt.ToValue(map[string]any{
		"session_id":    summary.SessionID,
		"total_chunks":  summary.TotalChunks,
		"total_time_ms": summary.TotalTimeMs,
	})
}

func parseManifest(v goja.Value) (*manifest.Manifest, error) {
	raw := v.String()
	m, err := manifest.ParseJSON([]byte(raw))
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseManifestAndInputs(rt *goja.Runtime, call goja.FunctionCall) (*manifest.Manifest, map[string]*streamtype.RuntimeData, error) {
	if len(call.Arguments) < 2 {
		return nil, nil, corepipeerr.New(corepipeerr.KindValidation, "expected (manifest_json, inputs)")
	}
	m, err := parseManifest(call.Arguments[0])
	if err != nil {
		return nil, nil, err
	}

	inputsObj := call.Arguments[1].ToObject(rt)
	inputs := make(map[string]*streamtype.RuntimeData)
	for _, key := range inputsObj.Keys() {
		rd, err := scripthost.FromJS(rt, inputsObj.Get(key))
		if err != nil {
			return nil, nil, corepipeerr.Wrap(corepipeerr.KindValidation, err, "invalid input for node "+key)
		}
		inputs[key] = rd
	}
	return m, inputs, nil
}

func outputsToJS(rt *goja.Runtime, outputs map[string]*streamtype.RuntimeData) goja.Value {
	obj := rt.NewObject()
	for nodeID, rd := range outputs {
		v, err := scripthost.ToJS(rt, rd)
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}
		obj.Set(nodeID, v)
	}
	return obj
}
