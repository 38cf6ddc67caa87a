package grn

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the GRN or item does not exist.
	ErrNotFound = errors.New("grn: not found")
	// ErrInvalidState indicates the operation has no edge from the current status.
	ErrInvalidState = errors.New("grn: invalid state")
	// ErrInvalidQuantity indicates accepted/rejected quantities violate the receipt bounds.
	ErrInvalidQuantity = errors.New("grn: invalid quantity")
	// ErrMissingReason indicates reject or send back without a reason.
	ErrMissingReason = errors.New("grn: reason required")
	// ErrPostingFailure indicates the item ledger refused a stock posting.
	ErrPostingFailure = errors.New("grn: stock posting failed")
	// ErrMissingActor indicates the caller did not identify who acts.
	ErrMissingActor = errors.New("grn: actor required")
	// ErrUnresolvedWarehouse indicates an accepted line without a usable warehouse.
	ErrUnresolvedWarehouse = errors.New("grn: warehouse unresolved")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("grn: validation failed")
	// ErrConcurrentUpdate indicates another operation on the same GRN won the race.
	ErrConcurrentUpdate = errors.New("grn: concurrent update")
)

// StateError reports an operation attempted from a status without a matching edge.
type StateError struct {
	Op   string
	From Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("grn: cannot %s from %s", e.Op, e.From)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// QuantityError identifies the line whose quantities are invalid.
type QuantityError struct {
	ItemID   int64
	ItemCode string
	Accepted decimal.Decimal
	Rejected decimal.Decimal
	Received decimal.Decimal
	Reason   string
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("grn: item %d (%s): %s (accepted %s, rejected %s, received %s)",
		e.ItemID, e.ItemCode, e.Reason, e.Accepted, e.Rejected, e.Received)
}

func (e *QuantityError) Unwrap() error { return ErrInvalidQuantity }

// WarehouseError identifies an accepted line whose warehouse cannot receive stock.
type WarehouseError struct {
	ItemID      int64
	ItemCode    string
	WarehouseID int64
	Err         error
}

func (e *WarehouseError) Error() string {
	return fmt.Sprintf("grn: item %d (%s): warehouse %d: %v", e.ItemID, e.ItemCode, e.WarehouseID, e.Err)
}

func (e *WarehouseError) Unwrap() []error { return []error{ErrUnresolvedWarehouse, e.Err} }

// PostingError identifies the line the item ledger refused.
type PostingError struct {
	ItemID      int64
	ItemCode    string
	WarehouseID int64
	Err         error
}

func (e *PostingError) Error() string {
	return fmt.Sprintf("grn: post item %d (%s) to warehouse %d: %v", e.ItemID, e.ItemCode, e.WarehouseID, e.Err)
}

func (e *PostingError) Unwrap() []error { return []error{ErrPostingFailure, e.Err} }

// ErrorKind classifies err for metrics and problem responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrConcurrentUpdate):
		return "concurrent_update"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrMissingReason):
		return "missing_reason"
	case errors.Is(err, ErrMissingActor):
		return "missing_actor"
	case errors.Is(err, ErrUnresolvedWarehouse):
		return "unresolved_warehouse"
	case errors.Is(err, ErrPostingFailure):
		return "posting_failure"
	case errors.Is(err, ErrValidation):
		return "validation"
	}
	return "internal"
}

// errorDetails returns the offending line and warehouse for problem responses.
func errorDetails(err error) map[string]any {
	var qe *QuantityError
	if errors.As(err, &qe) {
		return map[string]any{"item_id": qe.ItemID, "item_code": qe.ItemCode}
	}
	var we *WarehouseError
	if errors.As(err, &we) {
		return map[string]any{"item_id": we.ItemID, "item_code": we.ItemCode, "warehouse_id": we.WarehouseID}
	}
	var pe *PostingError
	if errors.As(err, &pe) {
		return map[string]any{"item_id": pe.ItemID, "item_code": pe.ItemCode, "warehouse_id": pe.WarehouseID}
	}
	var se *StateError
	if errors.As(err, &se) {
		return map[string]any{"status": string(se.From), "operation": se.Op}
	}
	return nil
}
