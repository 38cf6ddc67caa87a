package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates supported inventory movements.
type TransactionType string

const (
	// TransactionTypeReceipt represents an inbound movement from a goods receipt.
	TransactionTypeReceipt TransactionType = "RECEIPT"
)

// StockKey identifies one ledger bucket.
type StockKey struct {
	ItemCode    string
	WarehouseID int64
	BatchNo     string
}

// Balance summarises stock held in a warehouse for an item batch.
type Balance struct {
	StockKey
	Qty       decimal.Decimal
	UpdatedAt time.Time
}

// Movement is one stock card line. Movements are never updated once written.
type Movement struct {
	ID         int64
	Code       string
	Type       TransactionType
	StockKey
	Qty        decimal.Decimal
	BalanceQty decimal.Decimal
	RefModule  string
	RefID      string
	Reference  string
	Note       string
	ActorID    string
	PostedAt   time.Time
}

// ReceiptLine is one stock increase requested by a receipt.
type ReceiptLine struct {
	// LineKey distinguishes lines of the same receipt, e.g. the receipt line id.
	LineKey     string
	ItemCode    string
	WarehouseID int64
	BatchNo     string
	Qty         decimal.Decimal
}

// ReceiptInput posts all lines of a document atomically.
type ReceiptInput struct {
	RefModule string
	// Reference is the human-facing document number, e.g. the GRN number.
	Reference string
	ActorID   string
	Note      string
	Lines     []ReceiptLine
}

// StockCardFilter filters card entries.
type StockCardFilter struct {
	StockKey
	From  time.Time
	To    time.Time
	Limit int
}

var (
	// ErrInvalidQuantity indicates a non-positive receipt quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrWarehouseRequired indicates a line without warehouse.
	ErrWarehouseRequired = errors.New("inventory: warehouse required")
	// ErrItemRequired indicates a line without item code.
	ErrItemRequired = errors.New("inventory: item code required")
	// ErrReferenceRequired indicates a receipt without document reference.
	ErrReferenceRequired = errors.New("inventory: reference required")
	// ErrDuplicatePosting indicates the line was already posted for this reference.
	ErrDuplicatePosting = errors.New("inventory: line already posted")
	// ErrBalanceNotFound indicates missing balance row.
	ErrBalanceNotFound = errors.New("inventory: balance not found")
)

// LineError reports which receipt line failed.
type LineError struct {
	Line ReceiptLine
	Err  error
}

func (e *LineError) Error() string {
	return "inventory: post " + e.Line.ItemCode + " line " + e.Line.LineKey + ": " + e.Err.Error()
}

func (e *LineError) Unwrap() error { return e.Err }
