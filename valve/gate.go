package valve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/id"
)

var (
	nameRe  = regexp.MustCompile(`^[a-z0-9]+$`)
	badgeRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// Gate runs bodies through valves. It is stateless apart from its store
// and safe for concurrent use.
type Gate struct {
	store    Store
	logger   *slog.Logger
	waitStep time.Duration
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) GateOption {
	return func(g *Gate) { g.logger = l }
}

// WithWaitStep sets the polling interval a losing caller sleeps between
// reads while the winner's body is still running.
func WithWaitStep(d time.Duration) GateOption {
	return func(g *Gate) { g.waitStep = d }
}

// NewGate creates a Gate on top of the given store.
func NewGate(store Store, opts ...GateOption) *Gate {
	g := &Gate{
		store:    store,
		logger:   slog.Default(),
		waitStep: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enter executes body at most once per (tenant, name, badge) key and
// returns the cached result to every caller.
//
// The first caller to insert the key wins and runs body; its result is
// persisted and permanent. Losing callers never run their body: they
// block — bounded only by the winner's runtime — until the result is
// visible, then return it. When the winner's body fails, the row is
// rolled back, the winner's error propagates unchanged to its own
// caller, and the next caller to arrive becomes the new winner.
func Enter[T any](ctx context.Context, g *Gate, tenantID id.TenantID, name, badge, why string, body func() (T, error)) (T, error) {
	var zero T

	if name == "" || !nameRe.MatchString(name) {
		return zero, baza.ErrInvalidName
	}
	if badge == "" || !badgeRe.MatchString(badge) {
		return zero, baza.ErrInvalidBadge
	}

	for {
		v := &Valve{
			Entity:   baza.NewEntity(),
			ID:       id.NewValveID(),
			TenantID: tenantID,
			Name:     name,
			Badge:    badge,
			Why:      why,
		}

		err := g.store.CreateValve(ctx, v)
		switch {
		case err == nil:
			return run(ctx, g, v, body)
		case errors.Is(err, baza.ErrValveExists):
			cached, ok, waitErr := g.wait(ctx, tenantID, name, badge)
			if waitErr != nil {
				return zero, waitErr
			}
			if !ok {
				// The winner rolled back; race for the key again.
				continue
			}
			return decode[T](cached)
		default:
			return zero, fmt.Errorf("baza/valve: enter %s/%s: %w", name, badge, err)
		}
	}
}

// run executes the winning caller's body and persists its result. The
// row is removed on any failure — including a panic — so the valve
// never retains a half-written entry.
func run[T any](ctx context.Context, g *Gate, v *Valve, body func() (T, error)) (T, error) {
	var zero T
	committed := false

	defer func() {
		if committed {
			return
		}
		if rmErr := g.store.RemoveValve(context.WithoutCancel(ctx), v.ID); rmErr != nil {
			g.logger.Error("valve rollback failed",
				slog.String("valve_id", v.ID.String()),
				slog.String("name", v.Name),
				slog.String("badge", v.Badge),
				slog.String("error", rmErr.Error()),
			)
		}
	}()

	result, err := body()
	if err != nil {
		return zero, err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return zero, fmt.Errorf("baza/valve: encode result for %s/%s: %w", v.Name, v.Badge, err)
	}
	if err := g.store.ResolveValve(ctx, v.ID, data); err != nil {
		return zero, fmt.Errorf("baza/valve: resolve %s/%s: %w", v.Name, v.Badge, err)
	}

	committed = true
	return result, nil
}

// List returns the tenant's valves, newest first, with per-valve counts
// of jobs sharing the name.
func (g *Gate) List(ctx context.Context, tenantID id.TenantID) ([]*Valve, error) {
	return g.store.ListValves(ctx, tenantID)
}

// Delete removes a valve by ID. Administrative; the next Enter for the
// key runs its body again.
func (g *Gate) Delete(ctx context.Context, tenantID id.TenantID, valveID id.ValveID) error {
	return g.store.DeleteValve(ctx, tenantID, valveID)
}

// wait polls for the key until it is resolved. Returns ok=false when
// the row disappeared, meaning the winner rolled back.
func (g *Gate) wait(ctx context.Context, tenantID id.TenantID, name, badge string) ([]byte, bool, error) {
	for {
		v, err := g.store.GetValve(ctx, tenantID, name, badge)
		switch {
		case errors.Is(err, baza.ErrValveNotFound):
			return nil, false, nil
		case err != nil:
			return nil, false, fmt.Errorf("baza/valve: wait %s/%s: %w", name, badge, err)
		case v.Resolved:
			return v.Result, true, nil
		}

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(g.waitStep):
		}
	}
}

func decode[T any](data []byte) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("baza/valve: decode cached result: %w", err)
	}
	return out, nil
}
