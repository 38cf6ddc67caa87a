package grn

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/odyssey-erp/odyssey-grn/internal/inventory"
	"github.com/odyssey-erp/odyssey-grn/internal/shared"
)

// RefModule tags ledger movements posted by goods receipts.
const RefModule = "GRN"

// InventoryAdapter adapts the inventory.Service to the LedgerPort required by the GRN service.
type InventoryAdapter struct {
	service *inventory.Service
}

// NewInventoryAdapter creates a new inventory adapter.
func NewInventoryAdapter(service *inventory.Service) *InventoryAdapter {
	return &InventoryAdapter{service: service}
}

// PostReceipt posts all lines as one receipt keyed by the GRN number.
func (a *InventoryAdapter) PostReceipt(ctx context.Context, reference string, actor shared.Actor, postings []StockPosting) error {
	if a.service == nil {
		return fmt.Errorf("inventory service not initialized")
	}
	byKey := make(map[string]StockPosting, len(postings))
	input := inventory.ReceiptInput{
		RefModule: RefModule,
		Reference: reference,
		ActorID:   actor.ID,
		Note:      "GRN " + reference,
		Lines:     make([]inventory.ReceiptLine, 0, len(postings)),
	}
	for _, p := range postings {
		key := LineKey(p.ItemID)
		byKey[key] = p
		input.Lines = append(input.Lines, inventory.ReceiptLine{
			LineKey:     key,
			ItemCode:    p.ItemCode,
			WarehouseID: p.WarehouseID,
			BatchNo:     p.BatchNo,
			Qty:         p.Qty,
		})
	}

	_, err := a.service.PostReceipt(ctx, input)
	if err == nil {
		return nil
	}
	var lineErr *inventory.LineError
	if errors.As(err, &lineErr) {
		p := byKey[lineErr.Line.LineKey]
		return &PostingError{ItemID: p.ItemID, ItemCode: p.ItemCode, WarehouseID: p.WarehouseID, Err: lineErr.Err}
	}
	return fmt.Errorf("post stock receipt: %w", err)
}

// LineKey is the ledger line key of a GRN item.
func LineKey(itemID int64) string {
	return strconv.FormatInt(itemID, 10)
}
