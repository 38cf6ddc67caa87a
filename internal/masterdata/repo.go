package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-grn/internal/platform/db"
)

// Repository reads master data from PostgreSQL, inside the caller's transaction when ctx
// carries one.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetItem loads an item by code.
func (r *Repository) GetItem(ctx context.Context, code string) (Item, error) {
	var item Item
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT code, name, uom FROM items WHERE code=$1`, code).
		Scan(&item.Code, &item.Name, &item.UOM)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	return item, err
}

// GetWarehouse loads a warehouse by id.
func (r *Repository) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	var wh Warehouse
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT id, code, name, is_active FROM warehouses WHERE id=$1`, id).
		Scan(&wh.ID, &wh.Code, &wh.Name, &wh.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Warehouse{}, ErrWarehouseNotFound
	}
	return wh, err
}
