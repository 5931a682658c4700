package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruitpipe/console/internal/audit/domain"
	auditrepo "recruitpipe/console/internal/audit/repository"
)

type failingRepo struct{}

func (failingRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	return errors.New("disk full")
}

func (failingRepo) List(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	return nil, nil
}

func TestLogger_LogEvent(t *testing.T) {
	var buf bytes.Buffer
	repo := auditrepo.NewMemoryRepository(0)
	l := NewLogger(repo, slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx := context.Background()

	l.LogEvent(ctx, domain.ActionLoginSuccess, "ava@example.com", "role=admin")

	entries, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, domain.ActionLoginSuccess, e.Action)
	assert.Equal(t, "ava@example.com", e.Subject)
	assert.Equal(t, "role=admin", e.Detail)
	assert.False(t, e.CreatedAt.IsZero())
	assert.Contains(t, buf.String(), `"action":"login_success"`)
}

func TestLogger_RepoFailureIsSwallowed(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(failingRepo{}, slog.New(slog.NewJSONHandler(&buf, nil)))
	assert.NotPanics(t, func() {
		l.LogEvent(context.Background(), domain.ActionLogout, "", "")
	})
	assert.Contains(t, buf.String(), "disk full")
}

func TestLogger_NilRepo(t *testing.T) {
	l := NewLogger(nil, nil)
	assert.NotPanics(t, func() {
		l.LogEvent(context.Background(), domain.ActionLogout, "", "")
	})
}

func TestMemoryRepository_RingNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := auditrepo.NewMemoryRepository(2)
	for _, a := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, &domain.AuditLog{Action: a}))
	}
	entries, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].Action)
	assert.Equal(t, "b", entries[1].Action)

	one, err := repo.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}
