package sessions

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"wowserver/internal/logger"
)

type Role int

const (
	RoleUser Role = iota + 1
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	}
	return "none"
}

// Session is the authenticated principal of one connection. It is passed by value
// into every operation that needs to check who is calling.
type Session struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Account   string    `json:"account"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// HasRole reports whether the session grants r. Admins hold the user role too.
func (s Session) HasRole(r Role) bool {
	if s.ID == "" {
		return false
	}
	return s.Role >= r
}

type Manager struct {
	mu       sync.RWMutex
	byClient map[string]Session
}

var singleton *Manager
var once sync.Once

func Instance() *Manager {
	once.Do(func() { singleton = NewManager() })
	return singleton
}

func NewManager() *Manager {
	return &Manager{byClient: map[string]Session{}}
}

// Open starts a session for the connection, replacing any session it already held.
func (m *Manager) Open(clientID, account string, isAdmin bool) Session {
	role := RoleUser
	if isAdmin {
		role = RoleAdmin
	}
	s := Session{ID: uuid.NewString(), ClientID: clientID, Account: account, Role: role, CreatedAt: time.Now()}

	m.mu.Lock()
	prev, replaced := m.byClient[clientID]
	m.byClient[clientID] = s
	m.mu.Unlock()

	fields := logrus.Fields{"client_id": clientID, "account": account, "role": role.String(), "session": s.ID}
	if replaced {
		fields["replaced"] = prev.Account
	}
	logger.Account().WithFields(fields).Info("session opened")
	return s
}

// Get returns the connection's session; the zero Session grants no role.
func (m *Manager) Get(clientID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byClient[clientID]
	return s, ok
}

func (m *Manager) Close(clientID string) bool {
	m.mu.Lock()
	s, ok := m.byClient[clientID]
	delete(m.byClient, clientID)
	m.mu.Unlock()
	if ok {
		logger.Account().WithFields(logrus.Fields{"client_id": clientID, "account": s.Account, "session": s.ID}).Info("session closed")
	}
	return ok
}

// RemoveClient drops whatever the disconnected client was holding.
func (m *Manager) RemoveClient(clientID string) { m.Close(clientID) }

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byClient)
}
