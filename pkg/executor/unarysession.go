package executor

import (
	"sync"

	"github.com/helixml/corepipe/pkg/manifest"
	"github.com/helixml/corepipe/pkg/streamtype"
)

// UnarySession pins one manifest's instantiated node set in memory across
// repeated unary calls, so a node's internal state (a loaded model handle,
// a running total, whatever Initialize set up) survives from one call to
// the next instead of being torn down and rebuilt every time. This is the
// state-locality behavior execute_pipeline_with_session promises that
// plain Execute deliberately does not provide.
type UnarySession struct {
	mu    sync.Mutex
	g     *graph
	built map[string]*instantiated
	m     *manifest.Manifest
}

// NewUnarySession validates m, builds its graph, and instantiates its
// nodes once. The returned session's nodes stay resident until Close.
func NewUnarySession(e *Executor, m *manifest.Manifest) (*UnarySession, error) {
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
	return &UnarySession{g: g, built: built, m: m}, nil
}

// Execute runs inputs through the session's already-instantiated nodes.
// Calls on the same session serialize: a session models one caller
// replaying state-dependent calls, not a pool of concurrent workers.
func (s *UnarySession) Execute(inputs map[string]*streamtype.RuntimeData) (map[string]*streamtype.RuntimeData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return runGraph(s.g, s.built, s.m, inputs)
}

// Close tears down the session's node set. The session must not be used
// afterward.
func (s *UnarySession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleanupAll(s.built)
}
