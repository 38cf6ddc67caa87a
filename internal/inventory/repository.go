package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-grn/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetBalanceForUpdate(ctx context.Context, key StockKey) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	InsertMovement(ctx context.Context, mv Movement) (int64, error)
}

type txRepository struct {
	conn db.DBTX
}

// WithTx runs fn in a read-committed transaction, joining the caller's transaction if the
// context already carries one.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context) error {
		return fn(ctx, &txRepository{conn: db.Conn(ctx, r.pool)})
	})
}

const balanceColumns = `item_code, warehouse_id, batch_no, qty, updated_at`

const movementColumns = `id, code, tx_type, item_code, warehouse_id, batch_no, qty, balance_qty,
	ref_module, COALESCE(ref_id::text, ''), reference, note, actor_id, posted_at`

// GetBalance reads the balance without locking.
func (r *Repository) GetBalance(ctx context.Context, key StockKey) (Balance, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+balanceColumns+` FROM inventory_balances
WHERE item_code=$1 AND warehouse_id=$2 AND batch_no=$3`, key.ItemCode, key.WarehouseID, key.BatchNo)
	return scanBalance(row)
}

// GetStockCard lists movements for one bucket in posting order.
func (r *Repository) GetStockCard(ctx context.Context, filter StockCardFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+movementColumns+` FROM inventory_movements
WHERE item_code=$1 AND warehouse_id=$2 AND batch_no=$3
  AND ($4::timestamptz IS NULL OR posted_at >= $4)
  AND ($5::timestamptz IS NULL OR posted_at <= $5)
ORDER BY posted_at, id
LIMIT $6`, filter.ItemCode, filter.WarehouseID, filter.BatchNo, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	return collectMovements(rows)
}

// ListMovementsByReference returns the movements posted for one document.
func (r *Repository) ListMovementsByReference(ctx context.Context, refModule, reference string) ([]Movement, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+movementColumns+` FROM inventory_movements
WHERE ref_module=$1 AND reference=$2 ORDER BY id`, refModule, reference)
	if err != nil {
		return nil, err
	}
	return collectMovements(rows)
}

// GetBalanceForUpdate locks the bucket row, creating it at zero first so that concurrent
// first receipts into the same bucket serialise on the same row.
func (r *txRepository) GetBalanceForUpdate(ctx context.Context, key StockKey) (Balance, error) {
	if _, err := r.conn.Exec(ctx, `INSERT INTO inventory_balances (item_code, warehouse_id, batch_no, qty)
VALUES ($1, $2, $3, 0) ON CONFLICT (item_code, warehouse_id, batch_no) DO NOTHING`,
		key.ItemCode, key.WarehouseID, key.BatchNo); err != nil {
		return Balance{}, err
	}
	row := r.conn.QueryRow(ctx, `SELECT `+balanceColumns+` FROM inventory_balances
WHERE item_code=$1 AND warehouse_id=$2 AND batch_no=$3 FOR UPDATE`, key.ItemCode, key.WarehouseID, key.BatchNo)
	bal, err := scanBalance(row)
	if errors.Is(err, ErrBalanceNotFound) {
		return Balance{StockKey: key}, err
	}
	return bal, err
}

func (r *txRepository) UpsertBalance(ctx context.Context, balance Balance) error {
	_, err := r.conn.Exec(ctx, `INSERT INTO inventory_balances (item_code, warehouse_id, batch_no, qty, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (item_code, warehouse_id, batch_no) DO UPDATE SET qty = EXCLUDED.qty, updated_at = EXCLUDED.updated_at`,
		balance.ItemCode, balance.WarehouseID, balance.BatchNo, balance.Qty, balance.UpdatedAt)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	var refID *uuid.UUID
	if mv.RefID != "" {
		parsed, err := uuid.Parse(mv.RefID)
		if err != nil {
			return 0, err
		}
		refID = &parsed
	}
	var id int64
	err := r.conn.QueryRow(ctx, `INSERT INTO inventory_movements
(code, tx_type, item_code, warehouse_id, batch_no, qty, balance_qty, ref_module, ref_id, reference, note, actor_id, posted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id`,
		mv.Code, string(mv.Type), mv.ItemCode, mv.WarehouseID, mv.BatchNo, mv.Qty, mv.BalanceQty,
		mv.RefModule, refID, mv.Reference, mv.Note, mv.ActorID, mv.PostedAt).Scan(&id)
	return id, err
}

func scanBalance(row pgx.Row) (Balance, error) {
	var bal Balance
	if err := row.Scan(&bal.ItemCode, &bal.WarehouseID, &bal.BatchNo, &bal.Qty, &bal.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return bal, nil
}

func collectMovements(rows pgx.Rows) ([]Movement, error) {
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var mv Movement
		var txType string
		if err := rows.Scan(&mv.ID, &mv.Code, &txType, &mv.ItemCode, &mv.WarehouseID, &mv.BatchNo,
			&mv.Qty, &mv.BalanceQty, &mv.RefModule, &mv.RefID, &mv.Reference, &mv.Note, &mv.ActorID, &mv.PostedAt); err != nil {
			return nil, err
		}
		mv.Type = TransactionType(txType)
		out = append(out, mv)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
