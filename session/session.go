// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/quantumquest/network"
)

// Session is one live connection. UserID stays empty until the client
// authenticates; GameSessionID links the connection to a stored game session.
type Session struct {
	ID            string
	Conn          network.Connection
	UserID        string
	GameSessionID string
	RoomID        string
	Data          map[string]interface{}
	CreatedAt     time.Time
	LastActive    time.Time
	mutex         sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
		Data:       make(map[string]interface{}),
	}
}

func (s *Session) Set(key string, value interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Data[key] = value
}

func (s *Session) Get(key string) interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.Data[key]
}

// Bind attaches an authenticated user.
func (s *Session) Bind(userID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.UserID = userID
}

// User returns the bound user id, if any.
func (s *Session) User() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.UserID
}

// SetGameSession links the connection to a stored game session.
func (s *Session) SetGameSession(id string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.GameSessionID = id
}

// GameSession returns the linked game session id, falling back to the
// connection id.
func (s *Session) GameSession() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.GameSessionID != "" {
		return s.GameSessionID
	}
	return s.ID
}

func (s *Session) Touch() {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
}

func (s *Session) Send(msgID uint16, data []byte) error {
	s.Touch()
	return s.Conn.Send(msgID, data)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager tracks live sessions.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) GetByUserID(userID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.User() == userID {
			result = append(result, session)
		}
	}
	return result
}

// All returns a snapshot of every session.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
