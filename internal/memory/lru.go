package memory

import (
	"container/list"
	"context"
	"sync"

	"ragchat/internal/models"
)

const defaultMaxSessions = 1024

type session struct {
	mu    sync.Mutex
	id    string
	turns []models.Turn
}

// LRUStore keeps histories in process memory. The number of sessions is
// bounded; the least recently used session is dropped first.
type LRUStore struct {
	capacity    int
	maxSessions int

	mu       sync.Mutex
	sessions map[string]*list.Element
	recency  *list.List // front is most recently used
}

func NewLRUStore(capacity, maxSessions int) *LRUStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	return &LRUStore{
		capacity:    capacity,
		maxSessions: maxSessions,
		sessions:    make(map[string]*list.Element),
		recency:     list.New(),
	}
}

// touch returns the session, creating it if needed, and marks it as most recently used.
func (s *LRUStore) touch(sessionID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.sessions[sessionID]; ok {
		s.recency.MoveToFront(elem)
		return elem.Value.(*session)
	}
	for s.recency.Len() >= s.maxSessions {
		oldest := s.recency.Back()
		s.recency.Remove(oldest)
		delete(s.sessions, oldest.Value.(*session).id)
	}
	se := &session{id: sessionID, turns: make([]models.Turn, 0, s.capacity)}
	s.sessions[sessionID] = s.recency.PushFront(se)
	return se
}

// History never fails.
func (s *LRUStore) History(_ context.Context, sessionID string) ([]models.Turn, error) {
	se := s.touch(sessionID)
	se.mu.Lock()
	defer se.mu.Unlock()
	out := make([]models.Turn, len(se.turns))
	copy(out, se.turns)
	return out, nil
}

func (s *LRUStore) Append(_ context.Context, sessionID string, turns ...models.Turn) error {
	if err := validate(turns); err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}
	if len(turns) > s.capacity {
		turns = turns[len(turns)-s.capacity:]
	}
	se := s.touch(sessionID)
	se.mu.Lock()
	defer se.mu.Unlock()
	if over := len(se.turns) + len(turns) - s.capacity; over > 0 {
		// shift left in place so the backing array never grows
		n := copy(se.turns, se.turns[over:])
		se.turns = se.turns[:n]
	}
	se.turns = append(se.turns, turns...)
	return nil
}

func (s *LRUStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if elem, ok := s.sessions[sessionID]; ok {
		s.recency.Remove(elem)
		delete(s.sessions, sessionID)
	}
	return nil
}

// Len reports how many sessions are currently held.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recency.Len()
}

func (s *LRUStore) Close() error {
	s.mu.Lock()
	s.sessions = make(map[string]*list.Element)
	s.recency.Init()
	s.mu.Unlock()
	return nil
}
