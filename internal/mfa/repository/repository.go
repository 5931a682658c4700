package repository

import (
	"context"
	"sync"
	"time"

	"recruitpipe/console/internal/mfa/domain"
)

// Repository defines persistence for step-up challenges; one live challenge per email.
type Repository interface {
	Put(ctx context.Context, c *domain.Challenge) error
	GetByEmail(ctx context.Context, email string) (*domain.Challenge, error)
	Delete(ctx context.Context, email string) error
}

// DefaultChallengeTTL is the default step-up challenge expiry (e.g. 10 minutes).
const DefaultChallengeTTL = 10 * time.Minute

// MemoryRepository keeps challenges in process memory.
type MemoryRepository struct {
	mu sync.Mutex
	m  map[string]*domain.Challenge
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]*domain.Challenge)}
}

// Put stores c, replacing any earlier challenge for the same email.
func (r *MemoryRepository) Put(ctx context.Context, c *domain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.m[c.Email] = &cp
	return nil
}

// GetByEmail returns the challenge for email, or (nil, nil).
func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[email]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, email)
	return nil
}
