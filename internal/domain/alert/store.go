package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the alert rule and history persistence contract (spec §4.7).
// Exactly one unresolved History may exist per Fingerprint; implementations
// MUST enforce that (a partial unique index in Postgres, a map key in the
// in-memory store).
type Store interface {
	ListRules(ctx context.Context) ([]*Rule, error)
	ListEnabledRules(ctx context.Context) ([]*Rule, error)
	GetRule(ctx context.Context, id uuid.UUID) (*Rule, error)
	CreateRule(ctx context.Context, r *Rule) error
	UpdateRule(ctx context.Context, r *Rule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error

	// OpenHistoryFor returns the unresolved History row for fp, or nil if
	// none exists.
	OpenHistoryFor(ctx context.Context, fp Fingerprint) (*History, error)
	CreateHistory(ctx context.Context, h *History) error
	ResolveHistory(ctx context.Context, id uuid.UUID, resolvedAt time.Time) error
	AcknowledgeHistory(ctx context.Context, id uuid.UUID, by string, at time.Time) error

	ListOpenHistory(ctx context.Context) ([]*History, error)
	ListHistory(ctx context.Context, deviceID *uuid.UUID, limit int) ([]*History, error)

	// DeleteResolvedBefore removes resolved alert_history rows with
	// resolved_at older than cutoff (spec §4.10 retention) and returns the
	// count deleted.
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
