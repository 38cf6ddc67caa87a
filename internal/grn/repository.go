package grn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-grn/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	conn db.DBTX
}

// WithTx wraps callback in a read-committed transaction. Status writes are guarded by row
// locks and compare-and-set updates rather than by the isolation level.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context) error {
		return fn(ctx, &txRepo{conn: db.Conn(ctx, r.pool)})
	})
	return mapPgError(err)
}

const grnColumns = `id, grn_no, po_no, supplier_id, status, receipt_date, notes, rejection_reason,
	version, created_by, created_at, updated_at`

const itemColumns = `id, grn_id, line_no, item_code, item_name, warehouse_id, warehouse_name, batch_no,
	po_qty, received_qty, accepted_qty, rejected_qty, qc_checks, notes, updated_at`

const auditColumns = `id, grn_id, action, status_from, status_to, reason, actor_id, actor_name, created_at`

// GetGRN loads the GRN with its items and audit log.
func (r *Repository) GetGRN(ctx context.Context, id int64) (GRN, error) {
	conn := db.Conn(ctx, r.pool)
	g, err := scanGRN(conn.QueryRow(ctx, `SELECT `+grnColumns+` FROM grns WHERE id=$1`, id))
	if err != nil {
		return GRN{}, err
	}
	if g.Items, err = listItems(ctx, conn, id); err != nil {
		return GRN{}, err
	}
	if g.Logs, err = listAudit(ctx, conn, id); err != nil {
		return GRN{}, err
	}
	return g, nil
}

// ListAuditEntries returns the audit entries of an existing GRN.
func (r *Repository) ListAuditEntries(ctx context.Context, grnID int64) ([]AuditEntry, error) {
	conn := db.Conn(ctx, r.pool)
	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM grns WHERE id=$1)`, grnID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	return listAudit(ctx, conn, grnID)
}

// ListApprovedSince returns headers of GRNs approved at or after since.
func (r *Repository) ListApprovedSince(ctx context.Context, since time.Time) ([]GRN, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+grnColumns+` FROM grns
WHERE status=$1 AND updated_at >= $2 ORDER BY updated_at, id`, string(StatusApproved), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GRN
	for rows.Next() {
		g, err := scanGRN(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (t *txRepo) NextNumber(ctx context.Context, at time.Time) (string, error) {
	var seq int64
	if err := t.conn.QueryRow(ctx, `SELECT nextval('grn_no_seq')`).Scan(&seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("GRN-%s-%06d", at.Format("200601"), seq), nil
}

func (t *txRepo) InsertGRN(ctx context.Context, g GRN) (int64, error) {
	var id int64
	err := t.conn.QueryRow(ctx, `INSERT INTO grns
(grn_no, po_no, supplier_id, status, receipt_date, notes, version, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`,
		g.Number, g.PONumber, g.SupplierID, string(g.Status), g.ReceiptDate, g.Notes, g.Version,
		g.CreatedBy, g.CreatedAt, g.UpdatedAt).Scan(&id)
	return id, err
}

func (t *txRepo) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := t.conn.QueryRow(ctx, `INSERT INTO grn_items
(grn_id, line_no, item_code, item_name, warehouse_id, warehouse_name, batch_no, po_qty, received_qty,
 accepted_qty, rejected_qty, qc_checks, notes, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING id`,
		item.GRNID, item.LineNo, item.ItemCode, item.ItemName, item.WarehouseID, item.WarehouseName, item.BatchNo,
		item.POQty, item.ReceivedQty, item.AcceptedQty, item.RejectedQty, qcChecksOrEmpty(item.QCChecks),
		item.Notes, item.UpdatedAt).Scan(&id)
	return id, err
}

func (t *txRepo) LockGRN(ctx context.Context, id int64) (GRN, error) {
	g, err := scanGRN(t.conn.QueryRow(ctx, `SELECT `+grnColumns+` FROM grns WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return GRN{}, err
	}
	if g.Items, err = listItems(ctx, t.conn, id); err != nil {
		return GRN{}, err
	}
	return g, nil
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, from, to Status, rejectionReason *string, at time.Time) error {
	tag, err := t.conn.Exec(ctx, `UPDATE grns
SET status=$3, rejection_reason=$4, version=version+1, updated_at=$5
WHERE id=$1 AND status=$2`, id, string(from), string(to), rejectionReason, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: grn %d is no longer %s", ErrInvalidState, id, from)
	}
	return nil
}

func (t *txRepo) UpdateItemInspection(ctx context.Context, item Item) error {
	tag, err := t.conn.Exec(ctx, `UPDATE grn_items
SET accepted_qty=$3, rejected_qty=$4, qc_checks=$5, notes=$6, updated_at=$7
WHERE id=$1 AND grn_id=$2`,
		item.ID, item.GRNID, item.AcceptedQty, item.RejectedQty, qcChecksOrEmpty(item.QCChecks), item.Notes, item.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertAuditEntry(ctx context.Context, entry AuditEntry) (int64, error) {
	var id int64
	err := t.conn.QueryRow(ctx, `INSERT INTO grn_audit_entries
(grn_id, action, status_from, status_to, reason, actor_id, actor_name, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`,
		entry.GRNID, string(entry.Action), string(entry.StatusFrom), string(entry.StatusTo), entry.Reason,
		entry.ActorID, entry.ActorName, entry.CreatedAt).Scan(&id)
	return id, err
}

func (t *txRepo) ListAuditEntries(ctx context.Context, grnID int64) ([]AuditEntry, error) {
	return listAudit(ctx, t.conn, grnID)
}

func (t *txRepo) CountAuditEntries(ctx context.Context, grnID int64) (int, error) {
	var n int
	err := t.conn.QueryRow(ctx, `SELECT COUNT(*) FROM grn_audit_entries WHERE grn_id=$1`, grnID).Scan(&n)
	return n, err
}

func (t *txRepo) DeleteGRN(ctx context.Context, id int64) error {
	tag, err := t.conn.Exec(ctx, `DELETE FROM grns WHERE id=$1 AND status=$2`, id, string(StatusPending))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanGRN(row pgx.Row) (GRN, error) {
	var g GRN
	var status string
	var rejection *string
	err := row.Scan(&g.ID, &g.Number, &g.PONumber, &g.SupplierID, &status, &g.ReceiptDate, &g.Notes,
		&rejection, &g.Version, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GRN{}, ErrNotFound
		}
		return GRN{}, err
	}
	g.Status = Status(status)
	if rejection != nil {
		g.RejectionReason = *rejection
	}
	return g, nil
}

func listItems(ctx context.Context, conn db.DBTX, grnID int64) ([]Item, error) {
	rows, err := conn.Query(ctx, `SELECT `+itemColumns+` FROM grn_items WHERE grn_id=$1 ORDER BY line_no, id`, grnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.GRNID, &item.LineNo, &item.ItemCode, &item.ItemName, &item.WarehouseID,
			&item.WarehouseName, &item.BatchNo, &item.POQty, &item.ReceivedQty, &item.AcceptedQty, &item.RejectedQty,
			&item.QCChecks, &item.Notes, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func listAudit(ctx context.Context, conn db.DBTX, grnID int64) ([]AuditEntry, error) {
	rows, err := conn.Query(ctx, `SELECT `+auditColumns+` FROM grn_audit_entries WHERE grn_id=$1 ORDER BY created_at, id`, grnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var action, from, to string
		if err := rows.Scan(&e.ID, &e.GRNID, &action, &from, &to, &e.Reason, &e.ActorID, &e.ActorName, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action, e.StatusFrom, e.StatusTo = Action(action), Status(from), Status(to)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func qcChecksOrEmpty(checks map[string]QCCheck) map[string]QCCheck {
	if checks == nil {
		return map[string]QCCheck{}
	}
	return checks
}

// mapPgError turns lock and serialization failures into ErrConcurrentUpdate.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", ErrConcurrentUpdate, pgErr.Message)
		}
	}
	return err
}
