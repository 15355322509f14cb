package emailchange

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Purger removes expired requests. It backs the scheduled purge job.
type Purger struct {
	repo EmailChangeRepository
	now  func() time.Time
}

// NewPurger creates a new purger
func NewPurger(repo EmailChangeRepository) *Purger {
	return &Purger{repo: repo, now: time.Now}
}

// CountExpired counts every expired request
func (p *Purger) CountExpired(ctx context.Context) (int64, error) {
	return p.CountExpiredOlderThan(ctx, 0)
}

// RemoveExpired deletes every expired request
func (p *Purger) RemoveExpired(ctx context.Context) (int64, error) {
	return p.RemoveExpiredOlderThan(ctx, 0)
}

// CountExpiredOlderThan counts requests that expired more than age ago
func (p *Purger) CountExpiredOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	count, err := p.repo.CountExpired(ctx, p.cutoff(age))
	if err != nil {
		return 0, fmt.Errorf("failed to count expired email change requests: %w", err)
	}
	return count, nil
}

// RemoveExpiredOlderThan deletes requests that expired more than age ago
func (p *Purger) RemoveExpiredOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := p.cutoff(age)
	removed, err := p.repo.DeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to remove expired email change requests: %w", err)
	}
	slog.Info("Purged expired email change requests", "removed", removed, "cutoff", cutoff)
	return removed, nil
}

func (p *Purger) cutoff(age time.Duration) time.Time {
	if age < 0 {
		age = 0
	}
	return p.now().Add(-age)
}
