package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBoltSlot(t *testing.T) (*BoltSlot, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.db")
	s, err := OpenBoltSlot(path)
	require.NoError(t, err)
	return s, path
}

func TestSlots(t *testing.T) {
	bolt, _ := newTestBoltSlot(t)
	slots := map[string]Slot{
		"memory": NewMemorySlot(),
		"bbolt":  bolt,
	}
	ctx := context.Background()

	for name, slot := range slots {
		t.Run(name, func(t *testing.T) {
			defer slot.Close()

			got, err := slot.Read(ctx)
			require.NoError(t, err)
			assert.Nil(t, got, "fresh slot should be empty")

			require.NoError(t, slot.Write(ctx, []byte(`{"identityToken":"a"}`)))
			got, err = slot.Read(ctx)
			require.NoError(t, err)
			assert.Equal(t, `{"identityToken":"a"}`, string(got))

			require.NoError(t, slot.Write(ctx, []byte(`{"identityToken":"b"}`)))
			got, err = slot.Read(ctx)
			require.NoError(t, err)
			assert.Equal(t, `{"identityToken":"b"}`, string(got))

			require.NoError(t, slot.Clear(ctx))
			got, err = slot.Read(ctx)
			require.NoError(t, err)
			assert.Nil(t, got)

			// Clearing an empty slot is a no-op.
			require.NoError(t, slot.Clear(ctx))
		})
	}
}

func TestMemorySlot_ReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySlot()
	require.NoError(t, s.Write(ctx, []byte("abc")))

	got, err := s.Read(ctx)
	require.NoError(t, err)
	got[0] = 'x'

	again, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestSlots_ClosedReturnsError(t *testing.T) {
	ctx := context.Background()
	mem := NewMemorySlot()
	require.NoError(t, mem.Close())
	_, err := mem.Read(ctx)
	assert.ErrorIs(t, err, ErrSlotClosed)
	assert.ErrorIs(t, mem.Write(ctx, []byte("x")), ErrSlotClosed)

	bolt, _ := newTestBoltSlot(t)
	require.NoError(t, bolt.Close())
	_, err = bolt.Read(ctx)
	assert.ErrorIs(t, err, ErrSlotClosed)
	assert.ErrorIs(t, bolt.Clear(ctx), ErrSlotClosed)
}

func TestBoltSlot_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	s, path := newTestBoltSlot(t)
	require.NoError(t, s.Write(ctx, []byte("persisted")))
	require.NoError(t, s.Close())

	reopened, err := OpenBoltSlot(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(got))
}
