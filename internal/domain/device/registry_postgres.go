package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	platformerrors "github.com/fleetwatch/monitor/internal/platform/errors"
)

// PostgresRegistry is the production Registry backed by Postgres via sqlx.
type PostgresRegistry struct {
	db *sqlx.DB
}

// NewPostgresRegistry wraps an open *sqlx.DB as a Registry.
func NewPostgresRegistry(db *sqlx.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

var _ Registry = (*PostgresRegistry)(nil)
var _ transactionalRegistry = (*PostgresRegistry)(nil)

const deviceColumns = `
	id, ip, hostname, vendor, model, device_type, device_subtype, branch_id,
	enabled, snmp_version, ssh_port, ssh_user,
	down_since, is_flapping, flap_count, flapping_since, last_check, last_rtt_ms,
	credential_error`

func (r *PostgresRegistry) ListEnabled(ctx context.Context) ([]*Device, error) {
	var out []*Device
	query := fmt.Sprintf(`SELECT %s FROM devices WHERE enabled ORDER BY ip`, deviceColumns)
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, wrapDBErr("list enabled devices", err)
	}
	return out, nil
}

func (r *PostgresRegistry) List(ctx context.Context, f Filter) ([]*Device, error) {
	query := fmt.Sprintf(`SELECT %s FROM devices WHERE 1=1`, deviceColumns)
	args := map[string]any{}
	if f.BranchID != nil {
		query += ` AND branch_id = :branch_id`
		args["branch_id"] = *f.BranchID
	}
	if f.DeviceType != "" {
		query += ` AND device_type = :device_type`
		args["device_type"] = f.DeviceType
	}
	query += ` ORDER BY ip`

	named, namedArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, wrapDBErr("build device list query", err)
	}
	named = r.db.Rebind(named)

	var out []*Device
	if err := r.db.SelectContext(ctx, &out, named, namedArgs...); err != nil {
		return nil, wrapDBErr("list devices", err)
	}
	return applyStatusFilter(out, f), nil
}

func (r *PostgresRegistry) Get(ctx context.Context, id uuid.UUID) (*Device, error) {
	query := fmt.Sprintf(`SELECT %s FROM devices WHERE id = $1`, deviceColumns)
	var d Device
	if err := r.db.GetContext(ctx, &d, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, platformerrors.New(platformerrors.KindValidation, "device_not_found", fmt.Sprintf("device %s not found", id))
		}
		return nil, wrapDBErr("get device", err)
	}
	return &d, nil
}

func (r *PostgresRegistry) GetByIP(ctx context.Context, ip string) ([]*Device, error) {
	query := fmt.Sprintf(`SELECT %s FROM devices WHERE ip = $1 ORDER BY hostname`, deviceColumns)
	var out []*Device
	if err := r.db.SelectContext(ctx, &out, query, ip); err != nil {
		return nil, wrapDBErr("get devices by ip", err)
	}
	return out, nil
}

func (r *PostgresRegistry) Create(ctx context.Context, d *Device) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	const query = `
		INSERT INTO devices (id, ip, hostname, vendor, model, device_type, device_subtype,
			branch_id, enabled, snmp_version, ssh_port, ssh_user)
		VALUES (:id, :ip, :hostname, :vendor, :model, :device_type, :device_subtype,
			:branch_id, :enabled, :snmp_version, :ssh_port, :ssh_user)`
	if _, err := r.db.NamedExecContext(ctx, query, d); err != nil {
		return wrapDBErr("create device", err)
	}
	return nil
}

func (r *PostgresRegistry) CreateBatch(ctx context.Context, devices []*Device) error {
	if len(devices) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapDBErr("begin bulk import transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `
		INSERT INTO devices (id, ip, hostname, vendor, model, device_type, device_subtype,
			branch_id, enabled, snmp_version, ssh_port, ssh_user)
		VALUES (:id, :ip, :hostname, :vendor, :model, :device_type, :device_subtype,
			:branch_id, :enabled, :snmp_version, :ssh_port, :ssh_user)`
	for _, d := range devices {
		if _, err := tx.NamedExecContext(ctx, query, d); err != nil {
			return wrapDBErr("bulk import device", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapDBErr("commit bulk import", err)
	}
	return nil
}

func (r *PostgresRegistry) Update(ctx context.Context, d *Device) error {
	const query = `
		UPDATE devices SET
			ip = :ip, hostname = :hostname, vendor = :vendor, model = :model,
			device_type = :device_type, device_subtype = :device_subtype,
			branch_id = :branch_id, enabled = :enabled, snmp_version = :snmp_version,
			ssh_port = :ssh_port, ssh_user = :ssh_user
		WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, d)
	if err != nil {
		return wrapDBErr("update device", err)
	}
	return requireRowsAffected(res, "device", d.ID.String())
}

func (r *PostgresRegistry) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr("delete device", err)
	}
	return requireRowsAffected(res, "device", id.String())
}

func (r *PostgresRegistry) ItemsForDevice(ctx context.Context, deviceID uuid.UUID) ([]*MonitoringItem, error) {
	var out []*MonitoringItem
	query := `SELECT id, device_id, oid, name, interval_seconds, value_type, COALESCE(units, '') AS units, enabled
		FROM monitoring_items WHERE device_id = $1 AND enabled`
	if err := r.db.SelectContext(ctx, &out, query, deviceID); err != nil {
		return nil, wrapDBErr("list monitoring items", err)
	}
	return out, nil
}

func (r *PostgresRegistry) CredentialForDevice(ctx context.Context, deviceID uuid.UUID) (*SNMPCredential, error) {
	var c SNMPCredential
	query := `SELECT device_id, version, community_encrypted, username, auth_protocol,
			auth_encrypted, priv_protocol, priv_encrypted, port
		FROM snmp_credentials WHERE device_id = $1`
	if err := r.db.GetContext(ctx, &c, query, deviceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapDBErr("get snmp credential", err)
	}
	return &c, nil
}

func (r *PostgresRegistry) UpsertCredential(ctx context.Context, cred *SNMPCredential) error {
	const query = `
		INSERT INTO snmp_credentials (device_id, version, community_encrypted, username, auth_protocol,
			auth_encrypted, priv_protocol, priv_encrypted, port)
		VALUES (:device_id, :version, :community_encrypted, :username, :auth_protocol,
			:auth_encrypted, :priv_protocol, :priv_encrypted, :port)
		ON CONFLICT (device_id) DO UPDATE SET
			version = EXCLUDED.version,
			community_encrypted = EXCLUDED.community_encrypted,
			username = EXCLUDED.username,
			auth_protocol = EXCLUDED.auth_protocol,
			auth_encrypted = EXCLUDED.auth_encrypted,
			priv_protocol = EXCLUDED.priv_protocol,
			priv_encrypted = EXCLUDED.priv_encrypted,
			port = EXCLUDED.port`
	if _, err := r.db.NamedExecContext(ctx, query, cred); err != nil {
		return wrapDBErr("upsert snmp credential", err)
	}
	return nil
}

func (r *PostgresRegistry) InterfacesForDevice(ctx context.Context, deviceID uuid.UUID) ([]*Interface, error) {
	var out []*Interface
	query := `SELECT id, device_id, if_index, if_name, if_alias, if_type, admin_status, oper_status,
			speed, mtu, classification, isp_provider, is_critical
		FROM interfaces WHERE device_id = $1 ORDER BY if_name`
	if err := r.db.SelectContext(ctx, &out, query, deviceID); err != nil {
		return nil, wrapDBErr("list interfaces", err)
	}
	return out, nil
}

func (r *PostgresRegistry) UpsertInterfaces(ctx context.Context, deviceID uuid.UUID, ifaces []*Interface) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapDBErr("begin interface upsert", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `
		INSERT INTO interfaces (id, device_id, if_index, if_name, if_alias, if_type, admin_status,
			oper_status, speed, mtu, classification, isp_provider, is_critical)
		VALUES (:id, :device_id, :if_index, :if_name, :if_alias, :if_type, :admin_status,
			:oper_status, :speed, :mtu, :classification, :isp_provider, :is_critical)
		ON CONFLICT (device_id, if_name) DO UPDATE SET
			if_alias = EXCLUDED.if_alias,
			if_type = EXCLUDED.if_type,
			admin_status = EXCLUDED.admin_status,
			oper_status = EXCLUDED.oper_status,
			speed = EXCLUDED.speed,
			mtu = EXCLUDED.mtu,
			classification = EXCLUDED.classification,
			isp_provider = EXCLUDED.isp_provider,
			is_critical = EXCLUDED.is_critical`
	for _, iface := range ifaces {
		iface.DeviceID = deviceID
		if iface.ID == uuid.Nil {
			iface.ID = uuid.New()
		}
		if _, err := tx.NamedExecContext(ctx, query, iface); err != nil {
			return wrapDBErr("upsert interface", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapDBErr("commit interface upsert", err)
	}
	return nil
}

func (r *PostgresRegistry) ListBranches(ctx context.Context) ([]*Branch, error) {
	var out []*Branch
	if err := r.db.SelectContext(ctx, &out, `SELECT id, name, region FROM branches ORDER BY name`); err != nil {
		return nil, wrapDBErr("list branches", err)
	}
	return out, nil
}

func (r *PostgresRegistry) GetBranch(ctx context.Context, id uuid.UUID) (*Branch, error) {
	var b Branch
	if err := r.db.GetContext(ctx, &b, `SELECT id, name, region FROM branches WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, platformerrors.New(platformerrors.KindValidation, "branch_not_found", fmt.Sprintf("branch %s not found", id))
		}
		return nil, wrapDBErr("get branch", err)
	}
	return &b, nil
}

func (r *PostgresRegistry) CreateBranch(ctx context.Context, b *Branch) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	const query = `INSERT INTO branches (id, name, display_name, region, branch_code)
		VALUES (:id, :name, :display_name, :region, :branch_code)`
	if _, err := r.db.NamedExecContext(ctx, query, b); err != nil {
		return wrapDBErr("create branch", err)
	}
	return nil
}

func (r *PostgresRegistry) DeleteBranch(ctx context.Context, id uuid.UUID, cascade bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapDBErr("begin branch delete", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if cascade {
		if _, err := tx.ExecContext(ctx, `UPDATE devices SET branch_id = NULL WHERE branch_id = $1`, id); err != nil {
			return wrapDBErr("detach devices from branch", err)
		}
	} else {
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT count(*) FROM devices WHERE branch_id = $1`, id); err != nil {
			return wrapDBErr("count branch devices", err)
		}
		if count > 0 {
			return platformerrors.New(platformerrors.KindInvariant, "branch_has_devices",
				fmt.Sprintf("branch %s still has %d devices attached", id, count))
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM branches WHERE id = $1`, id); err != nil {
		return wrapDBErr("delete branch", err)
	}
	return wrapDBErr("commit branch delete", tx.Commit())
}

// ApplyProbeResult persists the status-engine fields for one device. Callers
// serialize calls per device id; this single UPDATE is otherwise atomic.
func (r *PostgresRegistry) ApplyProbeResult(ctx context.Context, id uuid.UUID, d *Device) error {
	const query = `
		UPDATE devices SET
			down_since = :down_since,
			is_flapping = :is_flapping,
			flap_count = :flap_count,
			flapping_since = :flapping_since,
			last_check = :last_check,
			last_rtt_ms = :last_rtt_ms,
			credential_error = :credential_error
		WHERE id = :id`
	d.ID = id
	res, err := r.db.NamedExecContext(ctx, query, d)
	if err != nil {
		return wrapDBErr("apply probe result", err)
	}
	return requireRowsAffected(res, "device", id.String())
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
