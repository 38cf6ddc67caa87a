package grn

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ApprovedLine describes one stock posting made at approval.
type ApprovedLine struct {
	ItemID      int64           `json:"item_id"`
	ItemCode    string          `json:"item_code"`
	WarehouseID int64           `json:"warehouse_id"`
	BatchNo     string          `json:"batch_no,omitempty"`
	Qty         decimal.Decimal `json:"qty"`
}

// ApprovedEvent is emitted after an inventory approval has committed.
type ApprovedEvent struct {
	GRNID      int64          `json:"grn_id"`
	Number     string         `json:"grn_no"`
	PONumber   string         `json:"po_no"`
	SupplierID int64          `json:"supplier_id"`
	ApprovedAt time.Time      `json:"approved_at"`
	ActorID    string         `json:"actor_id"`
	Lines      []ApprovedLine `json:"lines"`
}

// IntegrationHandler receives GRN domain events for downstream processing.
type IntegrationHandler interface {
	HandleGRNApproved(ctx context.Context, evt ApprovedEvent) error
}
