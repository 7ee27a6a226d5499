package voice

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionMeta is what the HTTP API mints before the websocket attaches.
type SessionMeta struct {
	ID        string
	CreatedAt time.Time
}

// Manager tracks minted sessions and their live state machines.
type Manager struct {
	mu    sync.Mutex
	metas map[string]SessionMeta
	live  map[string]*Session
}

func NewManager() *Manager {
	return &Manager{
		metas: make(map[string]SessionMeta),
		live:  make(map[string]*Session),
	}
}

// Mint registers a new session id ahead of the websocket connection.
func (m *Manager) Mint() SessionMeta {
	meta := SessionMeta{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	m.mu.Lock()
	m.metas[meta.ID] = meta
	m.mu.Unlock()
	return meta
}

func (m *Manager) Known(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.metas[id]
	return ok
}

// Attach installs the live session, closing any previous connection's state
// machine for the same id.
func (m *Manager) Attach(id string, s *Session) (replaced bool) {
	m.mu.Lock()
	old := m.live[id]
	m.live[id] = s
	m.mu.Unlock()
	if old != nil {
		old.Close()
		replaced = true
	}
	gaugeSessionsActive.Inc()
	return
}

func (m *Manager) Detach(id string, s *Session) {
	m.mu.Lock()
	if m.live[id] == s {
		delete(m.live, id)
	}
	m.mu.Unlock()
	gaugeSessionsActive.Dec()
}

func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live[id]
}
