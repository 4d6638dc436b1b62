package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rtrvrtg/contact-form-connect/internal/connector"
	"github.com/rtrvrtg/contact-form-connect/internal/core"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Postgres is a core.Store backed by PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps a pool. Call EnsureSchema before first use.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Ping implements Pinger.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func notFound(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", what, id, err)
}

const connectorColumns = `id, label, service_name, endpoint, username, password`

func scanConnector(row pgx.Row) (connector.Entity, error) {
	var (
		id                           pgtype.UUID
		e                            connector.Entity
		endpoint, username, password pgtype.Text
	)
	if err := row.Scan(&id, &e.Label, &e.ServiceName, &endpoint, &username, &password); err != nil {
		return connector.Entity{}, err
	}
	e.ID = core.PgUUIDToString(id)
	e.Endpoint = core.PgTextToString(endpoint)
	e.Username = core.PgTextToString(username)
	e.Password = core.PgTextToString(password)
	return e, nil
}

func (p *Postgres) ListConnectors(ctx context.Context) ([]connector.Entity, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+connectorColumns+` FROM connectors ORDER BY label, id`)
	if err != nil {
		return nil, fmt.Errorf("list connectors: %w", err)
	}
	defer rows.Close()

	var out []connector.Entity
	for rows.Next() {
		e, err := scanConnector(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connector: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) GetConnector(ctx context.Context, id string) (connector.Entity, error) {
	e, err := scanConnector(p.pool.QueryRow(ctx,
		`SELECT `+connectorColumns+` FROM connectors WHERE id = $1`, core.ToPgUUID(id)))
	if err != nil {
		return connector.Entity{}, notFound(err, "connector", id)
	}
	return e, nil
}

func (p *Postgres) SaveConnector(ctx context.Context, e connector.Entity) (connector.Entity, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	id := core.ToPgUUID(e.ID)
	if !id.Valid {
		return connector.Entity{}, fmt.Errorf("connector %s: %w", e.ID, core.ErrNotFound)
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO connectors (id, label, service_name, endpoint, username, password)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			label = EXCLUDED.label,
			service_name = EXCLUDED.service_name,
			endpoint = EXCLUDED.endpoint,
			username = EXCLUDED.username,
			password = EXCLUDED.password,
			updated_at = now()`,
		id, e.Label, e.ServiceName,
		core.ToPgText(e.Endpoint), core.ToPgText(e.Username), core.ToPgText(e.Password),
	)
	if err != nil {
		return connector.Entity{}, fmt.Errorf("save connector: %w", err)
	}
	return e, nil
}

func (p *Postgres) DeleteConnector(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM connectors WHERE id = $1`, core.ToPgUUID(id))
	if err != nil {
		return fmt.Errorf("delete connector: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("connector %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (p *Postgres) GetForm(ctx context.Context, id string) (connector.Form, error) {
	var f connector.Form
	err := p.pool.QueryRow(ctx, `SELECT id, label, fields FROM forms WHERE id = $1`, id).
		Scan(&f.ID, &f.Label, &f.Fields)
	if err != nil {
		return connector.Form{}, notFound(err, "form", id)
	}
	return f, nil
}

func (p *Postgres) SaveForm(ctx context.Context, f connector.Form) error {
	fields := f.Fields
	if fields == nil {
		fields = []connector.FormField{}
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO forms (id, label, fields) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			label = EXCLUDED.label,
			fields = EXCLUDED.fields,
			updated_at = now()`,
		f.ID, f.Label, fields,
	)
	if err != nil {
		return fmt.Errorf("save form: %w", err)
	}
	return nil
}

const bindingColumns = `form_id, connector_id, settings, enabled, updated_at`

func scanBinding(row pgx.Row) (core.Binding, error) {
	var (
		b  core.Binding
		id pgtype.UUID
	)
	if err := row.Scan(&b.FormID, &id, &b.Settings, &b.Enabled, &b.UpdatedAt); err != nil {
		return core.Binding{}, err
	}
	b.ConnectorID = core.PgUUIDToString(id)
	return b, nil
}

func (p *Postgres) ListBindings(ctx context.Context, formID string) ([]core.Binding, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+bindingColumns+` FROM form_connectors WHERE form_id = $1 ORDER BY connector_id`, formID)
	if err != nil {
		return nil, fmt.Errorf("list bindings: %w", err)
	}
	defer rows.Close()

	var out []core.Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *Postgres) GetBinding(ctx context.Context, formID, connectorID string) (core.Binding, error) {
	b, err := scanBinding(p.pool.QueryRow(ctx,
		`SELECT `+bindingColumns+` FROM form_connectors WHERE form_id = $1 AND connector_id = $2`,
		formID, core.ToPgUUID(connectorID)))
	if err != nil {
		return core.Binding{}, notFound(err, "binding", formID+"/"+connectorID)
	}
	return b, nil
}

func (p *Postgres) SaveBinding(ctx context.Context, b core.Binding) error {
	settings := b.Settings
	if settings == nil {
		settings = connector.Settings{}
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO form_connectors (form_id, connector_id, settings, enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (form_id, connector_id) DO UPDATE SET
			settings = EXCLUDED.settings,
			enabled = EXCLUDED.enabled,
			updated_at = now()`,
		b.FormID, core.ToPgUUID(b.ConnectorID), settings, b.Enabled,
	)
	if err != nil {
		return fmt.Errorf("save binding: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteBinding(ctx context.Context, formID, connectorID string) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM form_connectors WHERE form_id = $1 AND connector_id = $2`,
		formID, core.ToPgUUID(connectorID))
	if err != nil {
		return fmt.Errorf("delete binding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("binding %s/%s: %w", formID, connectorID, core.ErrNotFound)
	}
	return nil
}

const deliveryColumns = `id, form_id, connector_id, message, status, attempts, last_error, created_at, updated_at, delivered_at`

func scanDelivery(row pgx.Row) (core.Delivery, error) {
	var (
		d               core.Delivery
		id, connectorID pgtype.UUID
		status          string
		lastError       pgtype.Text
		deliveredAt     pgtype.Timestamptz
	)
	err := row.Scan(&id, &d.FormID, &connectorID, &d.Message, &status, &d.Attempts,
		&lastError, &d.CreatedAt, &d.UpdatedAt, &deliveredAt)
	if err != nil {
		return core.Delivery{}, err
	}
	d.ID = core.PgUUIDToString(id)
	d.ConnectorID = core.PgUUIDToString(connectorID)
	d.Status = core.DeliveryStatus(status)
	d.LastError = core.PgTextToString(lastError)
	d.DeliveredAt = core.PgTimestamptzToTime(deliveredAt)
	return d, nil
}

func collectDeliveries(rows pgx.Rows) ([]core.Delivery, error) {
	defer rows.Close()

	var out []core.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func insertDelivery(ctx context.Context, db DBTX, d core.Delivery) error {
	_, err := db.Exec(ctx, `
		INSERT INTO deliveries (id, form_id, connector_id, message, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		core.ToPgUUID(d.ID), d.FormID, core.ToPgUUID(d.ConnectorID), d.Message,
		string(d.Status), d.Attempts, d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (p *Postgres) EnqueueDeliveries(ctx context.Context, ds []core.Delivery) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, d := range ds {
		if err := insertDelivery(ctx, tx, d); err != nil {
			return fmt.Errorf("insert delivery %s: %w", d.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (p *Postgres) ClaimDeliveries(ctx context.Context, limit int) ([]core.Delivery, error) {
	rows, err := p.pool.Query(ctx, `
		UPDATE deliveries SET status = 'running', updated_at = now()
		WHERE id IN (
			SELECT id FROM deliveries
			WHERE status = 'pending'
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+deliveryColumns, limit)
	if err != nil {
		return nil, fmt.Errorf("claim deliveries: %w", err)
	}

	out, err := collectDeliveries(rows)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (p *Postgres) FinishDelivery(ctx context.Context, d core.Delivery) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE deliveries
		SET status = $2, attempts = $3, last_error = $4, delivered_at = $5, updated_at = now()
		WHERE id = $1`,
		core.ToPgUUID(d.ID), string(d.Status), d.Attempts,
		core.ToPgText(d.LastError), core.ToPgTimestamptz(d.DeliveredAt),
	)
	if err != nil {
		return fmt.Errorf("finish delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delivery %s: %w", d.ID, core.ErrNotFound)
	}
	return nil
}

func (p *Postgres) RequeueRunning(ctx context.Context) (int, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE deliveries SET status = 'pending', updated_at = now() WHERE status = 'running'`)
	if err != nil {
		return 0, fmt.Errorf("requeue running: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListDeliveries returns the newest deliveries first. An empty status
// matches every delivery.
func (p *Postgres) ListDeliveries(ctx context.Context, status core.DeliveryStatus, limit int) ([]core.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries`
	var args []any
	if status != "" {
		args = append(args, string(status))
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return collectDeliveries(rows)
}

func (p *Postgres) GetDelivery(ctx context.Context, id string) (core.Delivery, error) {
	d, err := scanDelivery(p.pool.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, core.ToPgUUID(id)))
	if err != nil {
		return core.Delivery{}, notFound(err, "delivery", id)
	}
	return d, nil
}

func (p *Postgres) PurgeDeliveries(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM deliveries
		WHERE status IN ('delivered', 'failed') AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge deliveries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
