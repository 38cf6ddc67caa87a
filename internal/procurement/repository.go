package procurement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-grn/internal/platform/db"
)

// Repository provides PostgreSQL backed purchase order lookups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetPurchaseOrder loads a PO with its lines by number.
func (r *Repository) GetPurchaseOrder(ctx context.Context, poNo string) (PurchaseOrder, error) {
	conn := db.Conn(ctx, r.pool)
	var po PurchaseOrder
	var status string
	err := conn.QueryRow(ctx, `SELECT id, po_no, supplier_id, status FROM purchase_orders WHERE po_no=$1`, poNo).
		Scan(&po.ID, &po.Number, &po.SupplierID, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, fmt.Errorf("procurement: load po %s: %w", poNo, err)
	}
	po.Status = POStatus(status)

	rows, err := conn.Query(ctx, `SELECT line_no, item_code, qty, uom FROM purchase_order_lines WHERE po_id=$1 ORDER BY line_no`, po.ID)
	if err != nil {
		return PurchaseOrder{}, fmt.Errorf("procurement: load po lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var line POLine
		if err := rows.Scan(&line.LineNo, &line.ItemCode, &line.Qty, &line.UOM); err != nil {
			return PurchaseOrder{}, err
		}
		po.Lines = append(po.Lines, line)
	}
	return po, rows.Err()
}
