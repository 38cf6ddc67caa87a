package grn

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InspectionInput is the operator's result for one line. Nil QCChecks or Notes keep the
// values already recorded.
type InspectionInput struct {
	AcceptedQty decimal.Decimal
	RejectedQty decimal.Decimal
	QCChecks    map[string]QCCheck
	Notes       *string
}

// DeriveItemStatus computes the display status of a line.
func DeriveItemStatus(accepted, rejected, received decimal.Decimal) ItemStatus {
	switch {
	case accepted.IsZero() && rejected.IsZero():
		return ItemStatusPending
	case accepted.Equal(received):
		return ItemStatusAccepted
	case accepted.IsZero() && rejected.IsPositive():
		return ItemStatusRejected
	default:
		return ItemStatusPartiallyAccepted
	}
}

// ValidateQuantities checks 0 <= accepted, 0 <= rejected and accepted+rejected <= received.
func ValidateQuantities(item Item, accepted, rejected decimal.Decimal) error {
	qe := &QuantityError{
		ItemID:   item.ID,
		ItemCode: item.ItemCode,
		Accepted: accepted,
		Rejected: rejected,
		Received: item.ReceivedQty,
	}
	switch {
	case accepted.IsNegative():
		qe.Reason = "accepted quantity is negative"
	case rejected.IsNegative():
		qe.Reason = "rejected quantity is negative"
	case accepted.Add(rejected).GreaterThan(item.ReceivedQty):
		qe.Reason = "accepted plus rejected exceeds received"
	default:
		return nil
	}
	return qe
}

// ApplyInspection validates input against item and returns the updated line. item is not
// modified when validation fails.
func ApplyInspection(item Item, input InspectionInput) (Item, error) {
	if err := ValidateQuantities(item, input.AcceptedQty, input.RejectedQty); err != nil {
		return item, err
	}
	item.AcceptedQty = input.AcceptedQty
	item.RejectedQty = input.RejectedQty
	if input.QCChecks != nil {
		checks := make(map[string]QCCheck, len(input.QCChecks))
		for name, check := range input.QCChecks {
			checks[name] = check
		}
		item.QCChecks = checks
	}
	if input.Notes != nil {
		item.Notes = *input.Notes
	}
	return item, nil
}

// readyForInventory checks every line against the quantity bounds and that something was
// accepted.
func readyForInventory(items []Item) error {
	accepted := false
	for _, item := range items {
		if err := ValidateQuantities(item, item.AcceptedQty, item.RejectedQty); err != nil {
			return err
		}
		if item.AcceptedQty.IsPositive() {
			accepted = true
		}
	}
	if !accepted {
		return fmt.Errorf("%w: no item has an accepted quantity", ErrInvalidQuantity)
	}
	return nil
}
