// Package grn implements the goods receipt note workflow: receipt, per-item inspection,
// two-stage approval and the stock posting that happens once a receipt is approved.
package grn

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle status of a goods receipt note.
type Status string

const (
	StatusPending                   Status = "pending"
	StatusInspecting                Status = "inspecting"
	StatusAwaitingInventoryApproval Status = "awaiting_inventory_approval"
	StatusApproved                  Status = "approved"
	StatusRejected                  Status = "rejected"
	StatusSentBack                  Status = "sent_back"
)

// ItemStatus is the display status of a receipt line, derived from its quantities.
type ItemStatus string

const (
	ItemStatusPending           ItemStatus = "pending"
	ItemStatusAccepted          ItemStatus = "accepted"
	ItemStatusRejected          ItemStatus = "rejected"
	ItemStatusPartiallyAccepted ItemStatus = "partially_accepted"
)

// QCCheck is the outcome of one named quality check.
type QCCheck struct {
	Passed bool   `json:"passed"`
	Label  string `json:"label"`
}

// GRN is a goods receipt note with its lines and audit trail.
type GRN struct {
	ID          int64
	Number      string
	PONumber    string
	SupplierID  int64
	Status      Status
	ReceiptDate time.Time
	Notes       string
	// RejectionReason is set only while Status is rejected.
	RejectionReason string
	Version         int64
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Items           []Item
	Logs            []AuditEntry
}

// Item returns the line with the given id.
func (g GRN) Item(id int64) (Item, bool) {
	for _, item := range g.Items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

// Item is one received line of a GRN.
type Item struct {
	ID            int64
	GRNID         int64
	LineNo        int
	ItemCode      string
	ItemName      string
	WarehouseID   int64
	WarehouseName string
	BatchNo       string
	POQty         decimal.Decimal
	ReceivedQty   decimal.Decimal
	AcceptedQty   decimal.Decimal
	RejectedQty   decimal.Decimal
	QCChecks      map[string]QCCheck
	Notes         string
	UpdatedAt     time.Time
}

// Status derives the display status from the line quantities.
func (i Item) Status() ItemStatus {
	return DeriveItemStatus(i.AcceptedQty, i.RejectedQty, i.ReceivedQty)
}

// AuditEntry records one successful status transition.
type AuditEntry struct {
	ID         int64
	GRNID      int64
	Action     Action
	StatusFrom Status
	StatusTo   Status
	Reason     string
	ActorID    string
	ActorName  string
	CreatedAt  time.Time
}

// CreateInput describes a receipt recorded against a purchase order.
type CreateInput struct {
	PONumber    string
	ReceiptDate time.Time
	Notes       string
	Lines       []CreateLine
}

// CreateLine is one physically received line.
type CreateLine struct {
	ItemCode    string
	WarehouseID int64
	BatchNo     string
	ReceivedQty decimal.Decimal
}

// StockPosting is the stock increase sent to the item ledger for an accepted line.
type StockPosting struct {
	ItemID      int64
	ItemCode    string
	WarehouseID int64
	BatchNo     string
	Qty         decimal.Decimal
	Reference   string
}
