// Package masterdata resolves item and warehouse reference data for display and validation.
package masterdata

import "errors"

// Item is the catalogue entry for a stock item.
type Item struct {
	Code string `json:"code"`
	Name string `json:"name"`
	UOM  string `json:"uom"`
}

// Warehouse is a physical stock location.
type Warehouse struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

var (
	// ErrItemNotFound indicates an unknown item code.
	ErrItemNotFound = errors.New("masterdata: item not found")
	// ErrWarehouseNotFound indicates an unknown warehouse id.
	ErrWarehouseNotFound = errors.New("masterdata: warehouse not found")
	// ErrWarehouseInactive indicates a warehouse that no longer accepts stock.
	ErrWarehouseInactive = errors.New("masterdata: warehouse inactive")
)
