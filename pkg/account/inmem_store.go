package account

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore implements Store using in-memory storage
type InMemoryStore struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]User
	byEmail map[string]uuid.UUID
}

// NewInMemoryStore creates a new in-memory user store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:   make(map[uuid.UUID]User),
		byEmail: make(map[string]uuid.UUID),
	}
}

// CreateUser creates a new user
func (s *InMemoryStore) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeEmail(params.Email)
	if _, taken := s.byEmail[key]; taken {
		return User{}, ErrEmailTaken
	}

	now := time.Now().UTC()
	user := User{
		ID:             uuid.New(),
		Email:          strings.TrimSpace(params.Email),
		Name:           params.Name,
		CreatedAt:      now,
		LastModifiedAt: now,
	}

	s.users[user.ID] = user
	s.byEmail[key] = user.ID
	return user, nil
}

// GetUser gets a user by ID
func (s *InMemoryStore) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

// FindByEmail finds a user by email
func (s *InMemoryStore) FindByEmail(ctx context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return s.users[id], nil
}

// UpdateEmail changes a user's email
func (s *InMemoryStore) UpdateEmail(ctx context.Context, id uuid.UUID, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}

	key := normalizeEmail(email)
	if owner, taken := s.byEmail[key]; taken && owner != id {
		return User{}, ErrEmailTaken
	}

	delete(s.byEmail, normalizeEmail(user.Email))
	user.Email = strings.TrimSpace(email)
	user.LastModifiedAt = time.Now().UTC()
	s.users[id] = user
	s.byEmail[key] = id
	return user, nil
}
