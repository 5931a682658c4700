package repository

import (
	"context"
	"sync"

	"recruitpipe/console/internal/audit/domain"
)

// Repository defines persistence for audit events.
type Repository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	List(ctx context.Context, limit int) ([]*domain.AuditLog, error)
}

const defaultCapacity = 256

// MemoryRepository keeps the most recent events in a bounded ring.
type MemoryRepository struct {
	mu       sync.Mutex
	entries  []*domain.AuditLog
	capacity int
}

// NewMemoryRepository returns a ring holding at most capacity events (256 when capacity <= 0).
func NewMemoryRepository(capacity int) *MemoryRepository {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &MemoryRepository{capacity: capacity}
}

func (r *MemoryRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := *entry
	r.entries = append(r.entries, &e)
	if over := len(r.entries) - r.capacity; over > 0 {
		r.entries = append([]*domain.AuditLog(nil), r.entries[over:]...)
	}
	return nil
}

// List returns up to limit events, newest first. limit <= 0 returns all.
func (r *MemoryRepository) List(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*domain.AuditLog, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		e := *r.entries[i]
		out = append(out, &e)
	}
	return out, nil
}
