// Package noderegistry implements the process-wide key→constructor table
// (C4). It is a global with an explicit lifecycle :
// Register happens once during startup (typically from node-package
// init()), lookups happen for the life of the process, and there is no
// teardown — tests that need isolation use a private Registry instance
// instead of the package-level default.
package noderegistry

import (
	"fmt"
	"sync"

	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/manifest"
	"github.com/helixml/corepipe/pkg/streamtype"
)

// Node is the C4 contract every node implementation satisfies, including
// the scripted-node adapter from C6. All three operations are synchronous
// from the executor's perspective: async work, if any, is the
// node's internal concern.
type Node interface {
	Initialize(config string) error
	Process(inputs map[string]*streamtype.RuntimeData) (map[string]*streamtype.RuntimeData, error)
	Cleanup() error
}

// Factory constructs a Node from a manifest node descriptor's opaque
// params string. Factories are side-effect-free: model acquisition
// happens inside Initialize, not here.
type Factory func(params string) (Node, error)

// Entry pairs a factory with the capability set it declares.
type Entry struct {
	Factory      Factory
	Capabilities manifest.NodeCapabilities
}

// Registry is a key→constructor table. The zero value is ready to use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry constructs an empty, private registry — use this in tests
// instead of mutating the process-wide Default.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds a factory for nodeType. Registering the same type twice
// is a programmer error and panics: process-wide dispatch tables
// populated at init time should fail fast on a duplicate registration.
func (r *Registry) Register(nodeType string, factory Factory, caps manifest.NodeCapabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = make(map[string]Entry)
	}
	if _, exists := r.entries[nodeType]; exists {
		panic(fmt.Sprintf("noderegistry: node type %q already registered", nodeType))
	}
	r.entries[nodeType] = Entry{Factory: factory, Capabilities: caps}
}

// Lookup returns the entry for nodeType.
func (r *Registry) Lookup(nodeType string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[nodeType]
	return e, ok
}

// Build looks up nodeType and invokes its factory with params.
func (r *Registry) Build(nodeType, params string) (Node, manifest.NodeCapabilities, error) {
	entry, ok := r.Lookup(nodeType)
	if !ok {
		return nil, manifest.NodeCapabilities{}, corepipeerr.New(corepipeerr.KindValidation, fmt.Sprintf("unknown node type %q", nodeType))
	}
	node, err := entry.Factory(params)
	if err != nil {
		return nil, manifest.NodeCapabilities{}, corepipeerr.Wrap(corepipeerr.KindValidation, err, fmt.Sprintf("failed to construct node type %q", nodeType))
	}
	return node, entry.Capabilities, nil
}

// Default is the process-wide registry node packages register into from
// their init() functions, a process-wide dispatch table populated at
// package load time.
var Default = NewRegistry()

// Register adds a factory to the default process-wide registry.
func Register(nodeType string, factory Factory, caps manifest.NodeCapabilities) {
	Default.Register(nodeType, factory, caps)
}
