package api

import (
	"sync"

	"github.com/tanuki0/tanuki/internal/agent"
)

// DefaultSession is the session used when a request names none.
const DefaultSession = "default"

// AgentFactory creates a fresh conversation agent for a new session.
type AgentFactory func() *agent.Agent

// sessionManager maps session IDs to conversation agents. Agents
// are created lazily on first use and live for the server lifetime.
type sessionManager struct {
	factory AgentFactory

	mu     sync.Mutex
	agents map[string]*agent.Agent
}

func newSessionManager(factory AgentFactory) *sessionManager {
	return &sessionManager{
		factory: factory,
		agents:  make(map[string]*agent.Agent),
	}
}

func normalizeSession(id string) string {
	if id == "" {
		return DefaultSession
	}
	return id
}

// get returns the session's agent, creating it when new.
func (sm *sessionManager) get(id string) (string, *agent.Agent) {
	id = normalizeSession(id)

	sm.mu.Lock()
	defer sm.mu.Unlock()

	a, ok := sm.agents[id]
	if !ok {
		a = sm.factory()
		sm.agents[id] = a
	}
	return id, a
}

// lookup returns the session's agent without creating one.
func (sm *sessionManager) lookup(id string) (*agent.Agent, bool) {
	id = normalizeSession(id)

	sm.mu.Lock()
	defer sm.mu.Unlock()

	a, ok := sm.agents[id]
	return a, ok
}

// count returns the number of live sessions.
func (sm *sessionManager) count() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.agents)
}
