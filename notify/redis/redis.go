// Package redis implements notify.Notifier on a Redis stream. Each
// tenant gets its own stream; the HTTP front end tails it to render the
// inbox. Entries are capped and delivery is rate-limited, because a
// misbehaving run must not flood Redis.
package redis

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/tank-bohr/baza/id"
)

// Notifier appends notifications to per-tenant Redis streams.
type Notifier struct {
	client  *redis.Client
	logger  *slog.Logger
	limiter *rate.Limiter
	maxLen  int64
	prefix  string
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// WithRate caps notifications per second. Zero disables the cap.
func WithRate(perSecond float64) Option {
	return func(n *Notifier) {
		if perSecond > 0 {
			n.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithMaxLen caps the stream length (approximate trimming).
func WithMaxLen(n64 int64) Option {
	return func(n *Notifier) { n.maxLen = n64 }
}

// WithPrefix sets the stream key prefix. Default "baza:notify:".
func WithPrefix(p string) Option {
	return func(n *Notifier) { n.prefix = p }
}

// New creates a Notifier on top of an existing Redis client. The caller
// owns the client lifecycle.
func New(client *redis.Client, opts ...Option) *Notifier {
	n := &Notifier{
		client: client,
		logger: slog.Default(),
		maxLen: 1000,
		prefix: "baza:notify:",
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify appends one entry to the tenant's stream. Failures are logged,
// never returned: notification is fire-and-forget by contract.
func (n *Notifier) Notify(ctx context.Context, tenantID id.TenantID, lines ...string) {
	if n.limiter != nil && !n.limiter.Allow() {
		n.logger.Warn("notification dropped by rate limiter",
			slog.String("tenant_id", tenantID.String()),
		)
		return
	}

	key := n.prefix + tenantID.String()
	err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: n.maxLen,
		Approx: true,
		Values: map[string]any{
			"message": strings.Join(lines, "\n"),
			"sent_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		n.logger.Error("notification delivery failed",
			slog.String("tenant_id", tenantID.String()),
			slog.String("stream", key),
			slog.String("error", err.Error()),
		)
	}
}
