package scripthost

import (
	"encoding/json"

	"github.com/dop251/goja"
	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/modelregistry"
	"github.com/helixml/corepipe/pkg/noderegistry"
	"github.com/helixml/corepipe/pkg/streamtype"
)

// NodeType is the manifest node_type a scripted node declares; its params
// carry the actual user script rather than the registry dispatching by
// script identity, since params is the only opaque per-node payload the
// C3 manifest model carries.
const NodeType = "ScriptedNode"

// nodeParams is the decoded shape of a ScriptedNode's manifest params.
type nodeParams struct {
	Source string          `json:"source"`
	Config json.RawMessage `json:"config"`
}

// Node adapts a user-supplied JavaScript module to the C4 Node contract
//: Initialize loads the module and calls its initialize(config),
// Process marshals inputs in, calls process(inputs), marshals the result
// back out, Cleanup calls cleanup() if the script defines one.
type Node struct {
	pool     *Pool
	registry *modelregistry.Registry
	rt       *goja.Runtime
}

// NewFactory returns a noderegistry.Factory bound to pool, so every
// scripted node instance acquires its own runtime from the shared pool
// for its lifetime.
// registry may be nil for scripted nodes that never call get_or_load.
func NewFactory(pool *Pool, registry *modelregistry.Registry) noderegistry.Factory {
	return func(string) (noderegistry.Node, error) {
		return &Node{pool: pool, registry: registry}, nil
	}
}

func (n *Node) Initialize(config string) error {
	var params nodeParams
	if err := json.Unmarshal([]byte(config), &params); err != nil {
		return corepipeerr.Wrap(corepipeerr.KindValidation, err, "invalid scripted node params")
	}
	if params.Source == "" {
		return corepipeerr.New(corepipeerr.KindValidation, "scripted node params missing source")
	}

	n.rt = n.pool.Acquire()
	installGetOrLoad(n.rt, n.registry)
	if _, err := n.rt.RunString(params.Source); err != nil {
		n.pool.Release(n.rt)
		n.rt = nil
		return corepipeerr.Wrap(corepipeerr.KindNodeExecution, err, "failed to load scripted node source")
	}

	initFn, ok := goja.AssertFunction(n.rt.Get("initialize"))
	if !ok {
		return nil
	}
	var cfgVal goja.Value = goja.Undefined()
	if len(params.Config) > 0 {
		var cfg any
		if err := json.Unmarshal(params.Config, &cfg); err != nil {
			return corepipeerr.Wrap(corepipeerr.KindValidation, err, "invalid scripted node config")
		}
		cfgVal = n.rt.ToValue(cfg)
	}
	if _, err := initFn(goja.Undefined(), cfgVal); err != nil {
		return corepipeerr.Wrap(corepipeerr.KindNodeExecution, err, "scripted node initialize() failed")
	}
	return nil
}

func (n *Node) Process(inputs map[string]*streamtype.RuntimeData) (map[string]*streamtype.RuntimeData, error) {
	processFn, ok := goja.AssertFunction(n.rt.Get("process"))
	if !ok {
		return nil, corepipeerr.New(corepipeerr.KindNodeExecution, "scripted node does not define process()")
	}

	jsInputs := n.rt.NewObject()
	for port, rd := range inputs {
		v, err := toJS(n.rt, rd)
		if err != nil {
			return nil, err
		}
		jsInputs.Set(port, v)
	}

	result, err := processFn(goja.Undefined(), jsInputs)
	if err != nil {
		return nil, corepipeerr.Wrap(corepipeerr.KindNodeExecution, err, "scripted node process() failed")
	}

	// a process() may return either a single buffer-shaped object or an
	// object keyed by output port name; distinguish by the presence of a
	// "type" field recognized by fromJS.
	resultObj := result.ToObject(n.rt)
	if typeVal := resultObj.Get("type"); typeVal != nil && !goja.IsUndefined(typeVal) {
		rd, err := fromJS(n.rt, result)
		if err != nil {
			return nil, err
		}
		return map[string]*streamtype.RuntimeData{"": rd}, nil
	}

	out := make(map[string]*streamtype.RuntimeData, len(resultObj.Keys()))
	for _, key := range resultObj.Keys() {
		rd, err := fromJS(n.rt, resultObj.Get(key))
		if err != nil {
			return nil, err
		}
		out[key] = rd
	}
	return out, nil
}

func (n *Node) Cleanup() error {
	defer func() {
		if n.rt != nil {
			n.pool.Release(n.rt)
			n.rt = nil
		}
	}()
	if n.rt == nil {
		return nil
	}
	cleanupFn, ok := goja.AssertFunction(n.rt.Get("cleanup"))
	if !ok {
		return nil
	}
	if _, err := cleanupFn(goja.Undefined()); err != nil {
		return corepipeerr.Wrap(corepipeerr.KindNodeExecution, err, "scripted node cleanup() failed")
	}
	return nil
}
