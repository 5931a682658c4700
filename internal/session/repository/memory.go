package repository

import (
	"context"
	"sync"
)

// MemorySlot keeps the serialized session in process memory. It is the tab-scoped store:
// the session is gone when the process exits.
type MemorySlot struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

var _ Slot = (*MemorySlot)(nil)

// NewMemorySlot returns an empty in-memory slot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

func (s *MemorySlot) Read(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSlotClosed
	}
	if s.data == nil {
		return nil, nil
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out, nil
}

func (s *MemorySlot) Write(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSlotClosed
	}
	s.data = append([]byte(nil), payload...)
	return nil
}

func (s *MemorySlot) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSlotClosed
	}
	s.data = nil
	return nil
}

func (s *MemorySlot) Close() error {
	s.mu.Lock()
	s.closed = true
	s.data = nil
	s.mu.Unlock()
	return nil
}
