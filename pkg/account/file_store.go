package account

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

const usersDataFile = "users.json"

// fileUserData represents the users stored in the file
type fileUserData struct {
	Users map[uuid.UUID]User `json:"users"` // keyed by user ID
}

// FileStore implements Store on top of InMemoryStore, writing every change to
// users.json under dataDir.
type FileStore struct {
	dataDir string
	mem     *InMemoryStore
	mutex   sync.Mutex
}

// NewFileStore creates a new file-based user store
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &FileStore{
		dataDir: dataDir,
		mem:     NewInMemoryStore(),
	}

	if err := store.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return store, nil
}

func (s *FileStore) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	user, err := s.mem.CreateUser(ctx, params)
	if err != nil {
		return User{}, err
	}

	if err := s.save(); err != nil {
		// Rollback
		s.mem.mu.Lock()
		delete(s.mem.users, user.ID)
		delete(s.mem.byEmail, normalizeEmail(user.Email))
		s.mem.mu.Unlock()
		return User{}, fmt.Errorf("failed to save: %w", err)
	}
	return user, nil
}

func (s *FileStore) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return s.mem.GetUser(ctx, id)
}

func (s *FileStore) FindByEmail(ctx context.Context, email string) (User, error) {
	return s.mem.FindByEmail(ctx, email)
}

func (s *FileStore) UpdateEmail(ctx context.Context, id uuid.UUID, email string) (User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	previous, err := s.mem.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}

	user, err := s.mem.UpdateEmail(ctx, id, email)
	if err != nil {
		return User{}, err
	}

	if err := s.save(); err != nil {
		// Rollback
		s.mem.mu.Lock()
		delete(s.mem.byEmail, normalizeEmail(user.Email))
		s.mem.users[id] = previous
		s.mem.byEmail[normalizeEmail(previous.Email)] = id
		s.mem.mu.Unlock()
		return User{}, fmt.Errorf("failed to save: %w", err)
	}
	return user, nil
}

// load reads users from file
func (s *FileStore) load() error {
	filePath := filepath.Join(s.dataDir, usersDataFile)

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	// If file is empty, start with empty data
	if len(data) == 0 {
		return nil
	}

	var stored fileUserData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	for id, user := range stored.Users {
		s.mem.users[id] = user
		s.mem.byEmail[normalizeEmail(user.Email)] = id
	}
	return nil
}

// save writes users to file atomically
func (s *FileStore) save() error {
	s.mem.mu.RLock()
	data, err := json.MarshalIndent(fileUserData{Users: s.mem.users}, "", "  ")
	s.mem.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temp file first
	tempFile := filepath.Join(s.dataDir, usersDataFile+".tmp")
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Atomic rename
	finalFile := filepath.Join(s.dataDir, usersDataFile)
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
