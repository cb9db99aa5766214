// Package ffi implements the zero-copy FFI surface: the embedding goja
// runtime host gets three entry points
// (execute_pipeline, execute_pipeline_with_session, create_stream_session)
// registered as Go-backed goja host functions, exposing typed RuntimeData
// handles with ArrayBuffer-backed zero-copy getters.
package ffi

import (
	"regexp"
	"sync"

	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/executor"
)

// sessionIDPattern constrains ids to a safe character set and length: an
// enforced format rather than trusting caller-supplied strings.
var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// ValidateSessionID enforces the character-set/length check
// before a session id is used to key the registry.
func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return corepipeerr.New(corepipeerr.KindValidation, "invalid session id")
	}
	return nil
}

// SessionRegistry namespaces live streaming sessions (create_stream_session)
// by validated id so a stream handle's close() call can find and evict its
// own entry. execute_pipeline_with_session's node-state locality uses a
// separate registry — see unarySessionRegistry — since the two entry
// points never share an id's underlying state.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*executor.Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*executor.Session)}
}

func (r *SessionRegistry) Put(id string, s *executor.Session) error {
	if err := ValidateSessionID(id); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = s
	return nil
}

func (r *SessionRegistry) Get(id string) (*executor.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, corepipeerr.New(corepipeerr.KindValidation, "unknown session id")
	}
	return s, nil
}

func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}
