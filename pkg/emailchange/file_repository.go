package emailchange

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const emailChangeDataFile = "email_change_requests.json"

// FileEmailChangeRepository stores requests in a JSON file under dataDir
type FileEmailChangeRepository struct {
	dataDir string
	index   *requestIndex
	lookup  AccountLookup
	mutex   sync.RWMutex
}

// emailChangeData is the structure of the JSON file
type emailChangeData struct {
	Requests []*EmailChangeRequest `json:"requests"`
}

// NewFileEmailChangeRepository creates a new file-based repository, loading any existing data
func NewFileEmailChangeRepository(dataDir string, lookup AccountLookup) (*FileEmailChangeRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileEmailChangeRepository{
		dataDir: dataDir,
		index:   newRequestIndex(),
		lookup:  lookup,
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

func (r *FileEmailChangeRepository) FindBySelector(ctx context.Context, selector string) (*EmailChangeRequest, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	request, ok := r.index.get(selector)
	if !ok {
		return nil, ErrRequestNotFound
	}
	return request, nil
}

func (r *FileEmailChangeRepository) FindByAccount(ctx context.Context, accountIdentifier string) (*EmailChangeRequest, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	request, ok := r.index.getByAccount(accountIdentifier)
	if !ok {
		return nil, ErrRequestNotFound
	}
	return request, nil
}

func (r *FileEmailChangeRepository) FindByOldEmailSelector(ctx context.Context, selector string) (*EmailChangeRequest, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	request, ok := r.index.getByOldSelector(selector)
	if !ok {
		return nil, ErrRequestNotFound
	}
	return request, nil
}

func (r *FileEmailChangeRepository) Save(ctx context.Context, request *EmailChangeRequest) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.index.put(request)
	if err := r.save(); err != nil {
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *FileEmailChangeRepository) Delete(ctx context.Context, request *EmailChangeRequest) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.index.remove(request.Selector) {
		return nil
	}
	return r.save()
}

func (r *FileEmailChangeRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var removed int64
	for _, selector := range r.index.expiredAt(cutoff) {
		if r.index.remove(selector) {
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}

	if err := r.save(); err != nil {
		return 0, err
	}
	return removed, nil
}

func (r *FileEmailChangeRepository) CountExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return int64(len(r.index.expiredAt(cutoff))), nil
}

func (r *FileEmailChangeRepository) GetAccount(ctx context.Context, request *EmailChangeRequest) (Account, error) {
	return lookupAccount(ctx, r.lookup, request)
}

// load reads the requests from file
func (r *FileEmailChangeRepository) load() error {
	filePath := filepath.Join(r.dataDir, emailChangeDataFile)

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	// If file is empty, start with an empty index
	if len(data) == 0 {
		return nil
	}

	var stored emailChangeData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	for _, request := range stored.Requests {
		r.index.put(request)
	}
	return nil
}

// save writes the requests to file atomically
func (r *FileEmailChangeRepository) save() error {
	jsonData, err := json.MarshalIndent(emailChangeData{Requests: r.index.all()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temp file first
	tempFile := filepath.Join(r.dataDir, emailChangeDataFile+".tmp")
	if err := os.WriteFile(tempFile, jsonData, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Atomic rename
	finalFile := filepath.Join(r.dataDir, emailChangeDataFile)
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
