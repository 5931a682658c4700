package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	sessionBucket = []byte("session")
	currentKey    = []byte("current")
)

// BoltSlot persists the serialized session in a single bbolt bucket/key.
type BoltSlot struct {
	db *bbolt.DB
}

var _ Slot = (*BoltSlot)(nil)

// NewBoltSlot wraps an open bbolt database.
func NewBoltSlot(db *bbolt.DB) *BoltSlot {
	return &BoltSlot{db: db}
}

// OpenBoltSlot opens (creating if needed) the bbolt file at path with owner-only permissions.
func OpenBoltSlot(path string) (*BoltSlot, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening session slot %s: %w", path, err)
	}
	return NewBoltSlot(db), nil
}

func (s *BoltSlot) Read(ctx context.Context) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(sessionBucket)
		if b == nil {
			return nil
		}
		if v := b.Get(currentKey); v != nil {
			// bbolt values are only valid inside the transaction.
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return nil, ErrSlotClosed
	}
	return out, err
}

func (s *BoltSlot) Write(ctx context.Context, payload []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(sessionBucket)
		if err != nil {
			return err
		}
		return b.Put(currentKey, payload)
	})
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return ErrSlotClosed
	}
	return err
}

func (s *BoltSlot) Clear(ctx context.Context) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(sessionBucket)
		if b == nil {
			return nil
		}
		return b.Delete(currentKey)
	})
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return ErrSlotClosed
	}
	return err
}

// Close closes the underlying bbolt database.
func (s *BoltSlot) Close() error {
	return s.db.Close()
}
