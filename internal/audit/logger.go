// Package audit records session lifecycle events. Recording is best-effort and never
// affects the operation that triggered it.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"recruitpipe/console/internal/audit/domain"
	auditrepo "recruitpipe/console/internal/audit/repository"
)

// AuditLogger writes a single audit event.
type AuditLogger interface {
	LogEvent(ctx context.Context, action, subject, detail string)
}

// Logger implements AuditLogger on top of a repository and a structured logger.
type Logger struct {
	repo   auditrepo.Repository
	logger *slog.Logger
	nowF   func() time.Time
}

// NewLogger returns an AuditLogger. repo may be nil (log only); logger nil uses slog.Default.
func NewLogger(repo auditrepo.Repository, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{repo: repo, logger: logger, nowF: func() time.Time { return time.Now().UTC() }}
}

// LogEvent records one event. Errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, action, subject, detail string) {
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		Action:    action,
		Subject:   subject,
		Detail:    detail,
		CreatedAt: l.nowF(),
	}
	l.logger.InfoContext(ctx, "audit",
		"event_id", entry.ID,
		"action", action,
		"subject", subject,
		"detail", detail,
	)
	if l.repo == nil {
		return
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.logger.WarnContext(ctx, "audit: failed to store event", "action", action, "error", err)
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) LogEvent(context.Context, string, string, string) {}
