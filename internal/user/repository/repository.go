package repository

import (
	"context"
	"errors"
	"sync"

	"recruitpipe/console/internal/user/domain"
)

// ErrEmailTaken is returned by Create when the email already belongs to a user.
var ErrEmailTaken = errors.New("email already registered")

// Repository defines persistence for users. Lookups return (nil, nil) when not found.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
}

// MemoryRepository keeps users in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.User), byEmail: make(map[string]string)}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[email]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	c := *u
	r.byID[u.ID] = &c
	r.byEmail[u.Email] = u.ID
	return nil
}

// Update replaces the stored user with the same ID. Email changes re-index the user.
func (r *MemoryRepository) Update(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.byID[u.ID]
	if !ok {
		return errors.New("user not found")
	}
	if prev.Email != u.Email {
		if _, taken := r.byEmail[u.Email]; taken {
			return ErrEmailTaken
		}
		delete(r.byEmail, prev.Email)
		r.byEmail[u.Email] = u.ID
	}
	c := *u
	r.byID[u.ID] = &c
	return nil
}
