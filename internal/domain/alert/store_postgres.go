package alert

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	platformerrors "github.com/fleetwatch/monitor/internal/platform/errors"
)

// PostgresStore is the production Store backed by Postgres via sqlx.
// Rule.Condition is never persisted directly; it is re-derived from
// Expression via ParseCondition on every read, so a hand-edited row can
// never smuggle in a condition shape the parser wouldn't accept.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open *sqlx.DB as a Store.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

type ruleRow struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Expression  string    `db:"expression"`
	Severity    string    `db:"severity"`
	Enabled     bool      `db:"enabled"`
	ScopeKind   string    `db:"scope_kind"`
	ScopeValue  string    `db:"scope_value"`
}

func (row ruleRow) toRule() (*Rule, error) {
	cond, err := ParseCondition(row.Expression)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", row.ID, err)
	}
	return &Rule{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Expression:  row.Expression,
		Condition:   cond,
		Severity:    Severity(row.Severity),
		Enabled:     row.Enabled,
		ScopeKind:   ScopeKind(row.ScopeKind),
		ScopeValue:  row.ScopeValue,
	}, nil
}

const ruleColumns = `id, name, description, expression, severity, enabled, scope_kind, scope_value`

func (s *PostgresStore) ListRules(ctx context.Context) ([]*Rule, error) {
	var rows []ruleRow
	query := fmt.Sprintf(`SELECT %s FROM alert_rules ORDER BY name`, ruleColumns)
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, wrapDBErr("list alert rules", err)
	}
	return rowsToRules(rows)
}

func (s *PostgresStore) ListEnabledRules(ctx context.Context) ([]*Rule, error) {
	var rows []ruleRow
	query := fmt.Sprintf(`SELECT %s FROM alert_rules WHERE enabled ORDER BY name`, ruleColumns)
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, wrapDBErr("list enabled alert rules", err)
	}
	return rowsToRules(rows)
}

func rowsToRules(rows []ruleRow) ([]*Rule, error) {
	out := make([]*Rule, 0, len(rows))
	for _, row := range rows {
		r, err := row.toRule()
		if err != nil {
			// An unparsable stored expression drops that one rule from the
			// listing instead of failing every rule with it.
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *PostgresStore) GetRule(ctx context.Context, id uuid.UUID) (*Rule, error) {
	var row ruleRow
	query := fmt.Sprintf(`SELECT %s FROM alert_rules WHERE id = $1`, ruleColumns)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, platformerrors.New(platformerrors.KindValidation, "alert_rule_not_found", fmt.Sprintf("alert rule %s not found", id))
		}
		return nil, wrapDBErr("get alert rule", err)
	}
	return row.toRule()
}

func (s *PostgresStore) CreateRule(ctx context.Context, r *Rule) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	row := ruleRow{
		ID: r.ID, Name: r.Name, Description: r.Description, Expression: r.Expression,
		Severity: string(r.Severity), Enabled: r.Enabled,
		ScopeKind: string(r.ScopeKind), ScopeValue: r.ScopeValue,
	}
	const query = `
		INSERT INTO alert_rules (id, name, description, expression, severity, enabled, scope_kind, scope_value)
		VALUES (:id, :name, :description, :expression, :severity, :enabled, :scope_kind, :scope_value)`
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return wrapDBErr("create alert rule", err)
	}
	return nil
}

func (s *PostgresStore) UpdateRule(ctx context.Context, r *Rule) error {
	row := ruleRow{
		ID: r.ID, Name: r.Name, Description: r.Description, Expression: r.Expression,
		Severity: string(r.Severity), Enabled: r.Enabled,
		ScopeKind: string(r.ScopeKind), ScopeValue: r.ScopeValue,
	}
	const query = `
		UPDATE alert_rules SET name = :name, description = :description, expression = :expression,
			severity = :severity, enabled = :enabled, scope_kind = :scope_kind, scope_value = :scope_value
		WHERE id = :id`
	res, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return wrapDBErr("update alert rule", err)
	}
	return requireRowsAffected(res, "alert_rule", r.ID.String())
}

func (s *PostgresStore) DeleteRule(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr("delete alert rule", err)
	}
	return requireRowsAffected(res, "alert_rule", id.String())
}

const historyColumns = `id, rule_id, device_id, interface_id, severity, message, value_snapshot,
	triggered_at, resolved_at, acknowledged_at, acknowledged_by, isp_provider, fault_class`

func (s *PostgresStore) OpenHistoryFor(ctx context.Context, fp Fingerprint) (*History, error) {
	var h History
	query := fmt.Sprintf(`SELECT %s FROM alert_history
		WHERE device_id = $1 AND resolved_at IS NULL
		AND rule_id IS NOT DISTINCT FROM $2 AND interface_id IS NOT DISTINCT FROM $3`, historyColumns)
	err := s.db.GetContext(ctx, &h, query, fp.DeviceID, fp.RuleID, fp.InterfaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapDBErr("get open alert history", err)
	}
	return &h, nil
}

func (s *PostgresStore) CreateHistory(ctx context.Context, h *History) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	const query = `
		INSERT INTO alert_history (id, rule_id, device_id, interface_id, severity, message,
			value_snapshot, triggered_at, resolved_at, acknowledged_at, acknowledged_by,
			isp_provider, fault_class)
		VALUES (:id, :rule_id, :device_id, :interface_id, :severity, :message,
			:value_snapshot, :triggered_at, :resolved_at, :acknowledged_at, :acknowledged_by,
			:isp_provider, :fault_class)`
	if _, err := s.db.NamedExecContext(ctx, query, h); err != nil {
		return wrapDBErr("create alert history", err)
	}
	return nil
}

func (s *PostgresStore) ResolveHistory(ctx context.Context, id uuid.UUID, resolvedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE alert_history SET resolved_at = $2 WHERE id = $1`, id, resolvedAt)
	if err != nil {
		return wrapDBErr("resolve alert history", err)
	}
	return requireRowsAffected(res, "alert_history", id.String())
}

func (s *PostgresStore) AcknowledgeHistory(ctx context.Context, id uuid.UUID, by string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alert_history SET acknowledged_at = $2, acknowledged_by = $3 WHERE id = $1`, id, at, by)
	if err != nil {
		return wrapDBErr("acknowledge alert history", err)
	}
	return requireRowsAffected(res, "alert_history", id.String())
}

func (s *PostgresStore) ListOpenHistory(ctx context.Context) ([]*History, error) {
	var out []*History
	query := fmt.Sprintf(`SELECT %s FROM alert_history WHERE resolved_at IS NULL ORDER BY triggered_at`, historyColumns)
	if err := s.db.SelectContext(ctx, &out, query); err != nil {
		return nil, wrapDBErr("list open alert history", err)
	}
	return out, nil
}

func (s *PostgresStore) ListHistory(ctx context.Context, deviceID *uuid.UUID, limit int) ([]*History, error) {
	query := fmt.Sprintf(`SELECT %s FROM alert_history WHERE 1=1`, historyColumns)
	args := map[string]any{}
	if deviceID != nil {
		query += ` AND device_id = :device_id`
		args["device_id"] = *deviceID
	}
	query += ` ORDER BY triggered_at DESC`
	if limit > 0 {
		query += ` LIMIT :limit`
		args["limit"] = limit
	}
	named, namedArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, wrapDBErr("build alert history query", err)
	}
	named = s.db.Rebind(named)

	var out []*History
	if err := s.db.SelectContext(ctx, &out, named, namedArgs...); err != nil {
		return nil, wrapDBErr("list alert history", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alert_history WHERE resolved_at IS NOT NULL AND resolved_at < $1`, cutoff)
	if err != nil {
		return 0, wrapDBErr("delete old alert history", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapDBErr("read rows affected", err)
	}
	return n, nil
}

func requireRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBErr("read rows affected", err)
	}
	if n == 0 {
		return platformerrors.New(platformerrors.KindValidation, entity+"_not_found", fmt.Sprintf("%s %s not found", entity, id))
	}
	return nil
}

func wrapDBErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return platformerrors.Wrap(platformerrors.KindTransientIO, "db_error", op, err)
}
