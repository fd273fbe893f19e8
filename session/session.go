// Package session holds the in-process conversational and research
// state AgentController reads and mutates on every turn (spec §4.9).
// It is the substitute for the external ChatStore collaborator, which
// is out of scope for this module (spec §1).
package session

import (
	"sync"
	"time"

	"github.com/brunobiangulo/acctplan"
)

// entry pairs a Session with its own lock, so turns on different
// sessions never contend with each other (spec §5's "keyed per
// session" concurrency requirement).
type entry struct {
	mu      sync.Mutex
	session *acctplan.Session
}

// Memory is a concurrency-safe registry of sessions, keyed by id.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

// New returns an empty session registry.
func New() *Memory {
	return &Memory{sessions: make(map[string]*entry)}
}

// GetOrCreate returns the session for id, creating an idle one if none
// exists yet.
func (m *Memory) GetOrCreate(id, userID string) *acctplan.Session {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return e.session
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok = m.sessions[id]; ok {
		return e.session
	}
	e = &entry{session: &acctplan.Session{
		SessionID:  id,
		UserID:     userID,
		AgentState: acctplan.StateIdle,
	}}
	m.sessions[id] = e
	return e.session
}

// Get returns the session for id, or (nil, false) if unknown.
func (m *Memory) Get(id string) (*acctplan.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// WithLock runs fn with the named session's per-session lock held,
// serializing concurrent turns against the same session without
// blocking turns on other sessions. fn receives nil if the session is
// unknown.
func (m *Memory) WithLock(id string, fn func(s *acctplan.Session)) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		fn(nil)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.session)
}

// AppendMessage records a conversational turn on the session.
func (m *Memory) AppendMessage(id, role, content string) {
	m.WithLock(id, func(s *acctplan.Session) {
		if s == nil {
			return
		}
		s.Messages = append(s.Messages, acctplan.Message{
			Role:      role,
			Content:   content,
			Timestamp: time.Now().UTC(),
		})
	})
}

// Delete removes a session entirely.
func (m *Memory) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len returns the number of tracked sessions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
