package store

import (
	"context"
	"sync"

	"github.com/mikey/scan-insights/internal/core"
	"go.uber.org/zap"
)

// userState holds the suppression sets for one user
type userState struct {
	dismissed map[string]struct{}
	seenTypes map[string]struct{}
	riskLevel core.RiskLevel
}

// MemoryStore is an in-memory implementation of the DismissalRepository
// interface. State does not survive a restart; it is the default for
// tests and the CLI.
type MemoryStore struct {
	users  map[string]*userState
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewMemoryStore creates a new in-memory dismissal store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*userState),
		logger: logger,
	}
}

func (s *MemoryStore) user(userID string) *userState {
	u, ok := s.users[userID]
	if !ok {
		u = &userState{
			dismissed: make(map[string]struct{}),
			seenTypes: make(map[string]struct{}),
		}
		s.users[userID] = u
	}
	return u
}

// IsDismissed reports whether the user dismissed the given alert id
func (s *MemoryStore) IsDismissed(ctx context.Context, userID, alertID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return false, nil
	}
	_, dismissed := u.dismissed[alertID]
	return dismissed, nil
}

// MarkDismissed records a dismissal; repeats are no-ops
func (s *MemoryStore) MarkDismissed(ctx context.Context, userID, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user(userID).dismissed[alertID] = struct{}{}
	return nil
}

// HasSeenScamType reports whether the user was already notified about
// the given normalized scam type
func (s *MemoryStore) HasSeenScamType(ctx context.Context, userID, normalizedType string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return false, nil
	}
	_, seen := u.seenTypes[normalizedType]
	return seen, nil
}

// MarkScamTypeSeen records a scam type as seen; the set only grows
func (s *MemoryStore) MarkScamTypeSeen(ctx context.Context, userID, normalizedType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user(userID).seenTypes[normalizedType] = struct{}{}
	return nil
}

// LastRiskLevel returns the stored level, or "" when none was recorded
func (s *MemoryStore) LastRiskLevel(ctx context.Context, userID string) (core.RiskLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return "", nil
	}
	return u.riskLevel, nil
}

// SetLastRiskLevel stores the current risk level
func (s *MemoryStore) SetLastRiskLevel(ctx context.Context, userID string, level core.RiskLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user(userID).riskLevel = level
	return nil
}
