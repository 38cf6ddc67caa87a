package masterdata

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Source is the authoritative master data store.
type Source interface {
	GetItem(ctx context.Context, code string) (Item, error)
	GetWarehouse(ctx context.Context, id int64) (Warehouse, error)
}

// Directory serves item and warehouse lookups through the cache, collapsing concurrent misses.
type Directory struct {
	source Source
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
}

// NewDirectory constructs a Directory. cache may be nil.
func NewDirectory(source Source, cache *Cache, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{source: source, cache: cache, logger: logger}
}

// Item resolves an item by code.
func (d *Directory) Item(ctx context.Context, code string) (Item, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Item{}, ErrItemNotFound
	}
	var item Item
	err := d.fetch(ctx, itemKey(code), &item, func(ctx context.Context) (any, error) {
		return d.source.GetItem(ctx, code)
	})
	return item, err
}

// Warehouse resolves a warehouse by id.
func (d *Directory) Warehouse(ctx context.Context, id int64) (Warehouse, error) {
	if id <= 0 {
		return Warehouse{}, ErrWarehouseNotFound
	}
	var wh Warehouse
	err := d.fetch(ctx, warehouseKey(id), &wh, func(ctx context.Context) (any, error) {
		return d.source.GetWarehouse(ctx, id)
	})
	return wh, err
}

// ActiveWarehouse resolves a warehouse that can receive stock. It reads the source directly,
// joining the transaction carried by ctx, so a deactivation is seen before the cache expires.
func (d *Directory) ActiveWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	if id <= 0 {
		return Warehouse{}, ErrWarehouseNotFound
	}
	wh, err := d.source.GetWarehouse(ctx, id)
	if err != nil {
		return Warehouse{}, err
	}
	if !wh.IsActive {
		return Warehouse{}, ErrWarehouseInactive
	}
	return wh, nil
}

// ItemName returns the display name, falling back to the code when the lookup fails.
func (d *Directory) ItemName(ctx context.Context, code string) string {
	item, err := d.Item(ctx, code)
	if err != nil {
		if !errors.Is(err, ErrItemNotFound) {
			d.logger.Warn("masterdata item lookup", slog.String("item_code", code), slog.Any("error", err))
		}
		return code
	}
	return item.Name
}

// WarehouseName returns the display name, or an empty string when the warehouse is unknown.
func (d *Directory) WarehouseName(ctx context.Context, id int64) string {
	wh, err := d.Warehouse(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrWarehouseNotFound) {
			d.logger.Warn("masterdata warehouse lookup", slog.Int64("warehouse_id", id), slog.Any("error", err))
		}
		return ""
	}
	return wh.Name
}

// Forget drops cached entries for a warehouse, e.g. after a rename.
func (d *Directory) Forget(ctx context.Context, warehouseIDs ...int64) error {
	keys := make([]string, 0, len(warehouseIDs))
	for _, id := range warehouseIDs {
		keys = append(keys, warehouseKey(id))
	}
	return d.cache.Invalidate(ctx, keys...)
}

func (d *Directory) fetch(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	// shared by every waiter on key; each waiter still honours its own ctx below
	loadCtx := context.WithoutCancel(ctx)
	ch := d.group.DoChan(key, func() (any, error) {
		var raw json.RawMessage
		if err := d.cache.FetchJSON(loadCtx, key, &raw, loader); err != nil {
			return nil, err
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return roundTrip(res.Val, dest)
	}
}

func itemKey(code string) string {
	return "masterdata:item:" + code
}

func warehouseKey(id int64) string {
	return "masterdata:warehouse:" + strconv.FormatInt(id, 10)
}
