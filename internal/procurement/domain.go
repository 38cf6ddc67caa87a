package procurement

import (
	"errors"

	"github.com/shopspring/decimal"
)

// POStatus is the purchase order lifecycle status.
type POStatus string

const (
	POStatusDraft     POStatus = "DRAFT"
	POStatusApproval  POStatus = "APPROVAL"
	POStatusApproved  POStatus = "APPROVED"
	POStatusClosed    POStatus = "CLOSED"
	POStatusCancelled POStatus = "CANCELLED"
)

// PurchaseOrder is the read model of a purchase order used for goods receipt.
type PurchaseOrder struct {
	ID         int64
	Number     string
	SupplierID int64
	Status     POStatus
	Lines      []POLine
}

// POLine represents an ordered item.
type POLine struct {
	LineNo   int
	ItemCode string
	Qty      decimal.Decimal
	UOM      string
}

// OrderedQty sums the ordered quantity of itemCode over all PO lines.
func (po PurchaseOrder) OrderedQty(itemCode string) (decimal.Decimal, bool) {
	total := decimal.Zero
	found := false
	for _, line := range po.Lines {
		if line.ItemCode == itemCode {
			total = total.Add(line.Qty)
			found = true
		}
	}
	return total, found
}

var (
	// ErrNotFound indicates the purchase order does not exist.
	ErrNotFound = errors.New("procurement: purchase order not found")
	// ErrNotReceivable indicates the purchase order cannot accept receipts in its status.
	ErrNotReceivable = errors.New("procurement: purchase order not open for receipt")
)
