// Package store is the credential store: the single owner of the current session record,
// kept in memory and mirrored into a persisted slot.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"recruitpipe/console/internal/session/domain"
	"recruitpipe/console/internal/session/repository"
)

var (
	// ErrInvalidRecord is returned when saving a record without an identity token.
	ErrInvalidRecord = errors.New("session record has no identity token")
	// ErrNoSession is returned by Update when no session exists.
	ErrNoSession = errors.New("no active session")
)

// Store holds the current session. All reads hand out copies.
type Store struct {
	mu      sync.RWMutex
	slot    repository.Slot
	current *domain.SessionRecord
	logger  *slog.Logger
}

// New returns an empty store backed by slot. Call Restore to load a persisted session.
func New(slot repository.Slot, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{slot: slot, logger: logger}
}

// Restore loads the persisted session. An unreadable or malformed payload is cleared from the
// slot and reported as None.
func (s *Store) Restore(ctx context.Context) domain.Current {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.slot.Read(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "session slot unreadable; starting logged out", "error", err)
		s.current = nil
		return domain.None{}
	}
	cur := domain.Decode(raw)
	switch c := cur.(type) {
	case domain.Active:
		rec := c.Record
		s.current = &rec
	default:
		s.current = nil
		if len(raw) > 0 {
			s.logger.WarnContext(ctx, "discarding malformed persisted session")
			if err := s.slot.Clear(ctx); err != nil {
				s.logger.WarnContext(ctx, "failed to clear malformed session", "error", err)
			}
		}
	}
	return cur
}

// Current returns Active with a copy of the record, or None.
func (s *Store) Current() domain.Current {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.None{}
	}
	return domain.Active{Record: *s.current}
}

// Record returns a copy of the current record, or nil when logged out.
func (s *Store) Record() *domain.SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Save persists rec and makes it current. On slot failure the previous state is kept.
func (s *Store) Save(ctx context.Context, rec *domain.SessionRecord) error {
	if !rec.Valid() {
		return ErrInvalidRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx, rec.Clone())
}

// Update applies fn to a copy of the current record and persists the result.
func (s *Store) Update(ctx context.Context, fn func(rec *domain.SessionRecord)) (*domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrNoSession
	}
	next := s.current.Clone()
	fn(next)
	if !next.Valid() {
		return nil, ErrInvalidRecord
	}
	if err := s.persistLocked(ctx, next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (s *Store) persistLocked(ctx context.Context, rec *domain.SessionRecord) error {
	raw, err := domain.Encode(rec)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := s.slot.Write(ctx, raw); err != nil {
		return fmt.Errorf("writing session slot: %w", err)
	}
	s.current = rec
	return nil
}

// Clear drops the session. The in-memory record is always removed; a slot error is returned
// but does not resurrect the session.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	if err := s.slot.Clear(ctx); err != nil {
		return fmt.Errorf("clearing session slot: %w", err)
	}
	return nil
}

// Close releases the slot. The store reports None afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	return s.slot.Close()
}
