package emailchange

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// InMemEmailChangeRepository keeps requests in memory. Useful for tests and single instance setups.
type InMemEmailChangeRepository struct {
	index  *requestIndex
	lookup AccountLookup
	mu     sync.Mutex
}

// NewInMemEmailChangeRepository creates a new in-memory repository
func NewInMemEmailChangeRepository(lookup AccountLookup) *InMemEmailChangeRepository {
	return &InMemEmailChangeRepository{
		index:  newRequestIndex(),
		lookup: lookup,
	}
}

func (r *InMemEmailChangeRepository) FindBySelector(ctx context.Context, selector string) (*EmailChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.index.get(selector)
	if !ok {
		slog.Debug("Email change request not found", "selector", selector)
		return nil, ErrRequestNotFound
	}
	return request, nil
}

func (r *InMemEmailChangeRepository) FindByAccount(ctx context.Context, accountIdentifier string) (*EmailChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.index.getByAccount(accountIdentifier)
	if !ok {
		return nil, ErrRequestNotFound
	}
	return request, nil
}

func (r *InMemEmailChangeRepository) FindByOldEmailSelector(ctx context.Context, selector string) (*EmailChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.index.getByOldSelector(selector)
	if !ok {
		return nil, ErrRequestNotFound
	}
	return request, nil
}

func (r *InMemEmailChangeRepository) Save(ctx context.Context, request *EmailChangeRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.index.put(request)
	slog.Debug("Email change request saved", "account", request.AccountIdentifier, "attempts", request.Attempts)
	return nil
}

func (r *InMemEmailChangeRepository) Delete(ctx context.Context, request *EmailChangeRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.index.remove(request.Selector)
	return nil
}

func (r *InMemEmailChangeRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for _, selector := range r.index.expiredAt(cutoff) {
		if r.index.remove(selector) {
			removed++
		}
	}
	return removed, nil
}

func (r *InMemEmailChangeRepository) CountExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return int64(len(r.index.expiredAt(cutoff))), nil
}

func (r *InMemEmailChangeRepository) GetAccount(ctx context.Context, request *EmailChangeRequest) (Account, error) {
	return lookupAccount(ctx, r.lookup, request)
}
