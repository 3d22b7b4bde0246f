package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"geodash/internal/dataprocessing"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Session is a snapshot of one dashboard session.
type Session struct {
	ID          string                 `json:"session_id"`
	CreatedAt   time.Time              `json:"created_at"`
	LastSeen    time.Time              `json:"last_seen"`
	Filename    string                 `json:"filename,omitempty"`
	Fingerprint string                 `json:"fingerprint,omitempty"`
	Version     int                    `json:"version"`
	Result      *dataprocessing.Result `json:"-"`
}

// HasResult reports whether an upload has succeeded in this session.
func (s *Session) HasResult() bool {
	return s != nil && s.Result != nil
}

// Store persists sessions
type Store interface {
	Create() (*Session, error)
	Get(id string) (*Session, error)
	SetResult(id, filename, fingerprint string, result *dataprocessing.Result) (*Session, error)
	Delete(id string) error
	Sweep(now time.Time) int
	Len() int
}

// MemoryStore is an in-memory implementation of Store
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates a store that expires sessions idle for longer than
// ttl. A non-positive ttl keeps sessions until they are deleted.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a new empty session
func (s *MemoryStore) Create() (*Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	now := s.now()
	sess := &Session{ID: id.String(), CreatedAt: now, LastSeen: now}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess

	sessCopy := *sess
	return &sessCopy, nil
}

// Get returns a copy of the session and marks it as seen
func (s *MemoryStore) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || s.expired(sess, s.now()) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sess.LastSeen = s.now()

	sessCopy := *sess
	return &sessCopy, nil
}

// SetResult replaces the session result and bumps its version
func (s *MemoryStore) SetResult(id, filename, fingerprint string, result *dataprocessing.Result) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || s.expired(sess, s.now()) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sess.Result = result
	sess.Filename = filename
	sess.Fingerprint = fingerprint
	sess.Version++
	sess.LastSeen = s.now()

	sessCopy := *sess
	return &sessCopy, nil
}

// Delete ends a session
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

// Sweep removes sessions idle for longer than the ttl and returns how many
// were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.LastSeen) > s.ttl
}
