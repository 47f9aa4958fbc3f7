package session

import (
	"sync"

	"github.com/maaaruch/tg-awards-bot/internal/domain"
	"github.com/maaaruch/tg-awards-bot/internal/voting"
)

// InputKind names the free-text answer the bot is waiting for.
type InputKind int

const (
	InputNone InputKind = iota
	InputCategoryDescription
	InputCategoryName
	InputNomineeName
)

// Session is per-user UI state that does not outlive the process.
type Session struct {
	mu sync.Mutex

	ballot     *voting.Ballot
	categories []domain.CategoryWithNominees

	waiting  InputKind
	targetID int64
}

func (s *Session) Ballot() *voting.Ballot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ballot
}

func (s *Session) SetBallot(b *voting.Ballot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ballot = b
}

// SetCategories keeps the listing last shown by /vote so buttons can be
// redrawn without another fetch.
func (s *Session) SetCategories(cats []domain.CategoryWithNominees) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = cats
}

func (s *Session) Category(id int64) (domain.CategoryWithNominees, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return domain.CategoryWithNominees{}, false
}

// Await records that the next plain message answers kind for targetID.
func (s *Session) Await(kind InputKind, targetID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiting, s.targetID = kind, targetID
}

// TakeInput returns the pending input step and clears it.
func (s *Session) TakeInput() (InputKind, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind, id := s.waiting, s.targetID
	s.waiting, s.targetID = InputNone, 0
	return kind, id
}

type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[int64]*Session),
	}
}

func (m *Manager) Get(userID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[userID]
	if s == nil {
		s = &Session{}
		m.sessions[userID] = s
	}
	return s
}

// Reset forgets everything held for the user.
func (m *Manager) Reset(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}
