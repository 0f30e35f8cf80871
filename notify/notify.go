// Package notify delivers outcome messages to tenants. Delivery is
// fire-and-forget: the pipeline never fails a job because a
// notification could not be sent.
package notify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tank-bohr/baza/id"
)

// Notifier sends a multi-line message to a tenant.
type Notifier interface {
	Notify(ctx context.Context, tenantID id.TenantID, lines ...string)
}

// Logger is a Notifier that writes messages to a structured logger.
// The default for development and tests.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a log-backed notifier.
func NewLogger(l *slog.Logger) *Logger {
	if l == nil {
		l = slog.Default()
	}
	return &Logger{logger: l}
}

// Notify writes the message as one info record.
func (n *Logger) Notify(_ context.Context, tenantID id.TenantID, lines ...string) {
	n.logger.Info("notification",
		slog.String("tenant_id", tenantID.String()),
		slog.String("message", strings.Join(lines, " ")),
	)
}

// Discard is a Notifier that drops everything.
type Discard struct{}

// Notify does nothing.
func (Discard) Notify(context.Context, id.TenantID, ...string) {}
