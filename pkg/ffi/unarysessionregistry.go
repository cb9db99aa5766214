package ffi

import (
	"sync"

	"github.com/helixml/corepipe/pkg/executor"
	"github.com/helixml/corepipe/pkg/manifest"
)

// unarySessionRegistry namespaces the node-state-carrying sessions
// execute_pipeline_with_session reuses across calls, keyed by the
// caller-supplied session id. This is a separate namespace from
// SessionRegistry's streaming sessions: the two entry points never share
// an id's underlying state.
type unarySessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*executor.UnarySession
}

func newUnarySessionRegistry() *unarySessionRegistry {
	return &unarySessionRegistry{sessions: make(map[string]*executor.UnarySession)}
}

// getOrCreate returns the resident session for id, building and storing
// one against m on first use. Later calls ignore m and reuse whatever
// node set was instantiated the first time, since the whole point is
// that node state persists regardless of what the caller passes next.
func (r *unarySessionRegistry) getOrCreate(id string, e *executor.Executor, m *manifest.Manifest) (*executor.UnarySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[id]; ok {
		return sess, nil
	}
	sess, err := executor.NewUnarySession(e, m)
	if err != nil {
		return nil, err
	}
	r.sessions[id] = sess
	return sess, nil
}

// Remove tears down and forgets the session for id, if any.
func (r *unarySessionRegistry) Remove(id string) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		sess.Close()
	}
}
