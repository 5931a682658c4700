// Package repository holds the persisted session slot: a single key-value cell that
// survives for the lifetime of the tab (memory) or of the user's workstation profile (bbolt).
package repository

import (
	"context"
	"errors"
)

// ErrSlotClosed is returned by operations on a slot after Close.
var ErrSlotClosed = errors.New("session slot closed")

// Slot is the persisted session boundary. Read returns (nil, nil) when the slot is empty.
type Slot interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, payload []byte) error
	Clear(ctx context.Context) error
	Close() error
}
