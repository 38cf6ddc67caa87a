package grn

import (
	"time"

	"github.com/shopspring/decimal"
)

type createRequest struct {
	PONumber    string              `json:"po_no" validate:"required,max=64"`
	ReceiptDate string              `json:"receipt_date" validate:"omitempty,datetime=2006-01-02"`
	Notes       string              `json:"notes" validate:"max=2000"`
	Lines       []createLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type createLineRequest struct {
	ItemCode    string          `json:"item_code" validate:"required,max=64"`
	WarehouseID int64           `json:"warehouse_id" validate:"gte=0"`
	BatchNo     string          `json:"batch_no" validate:"max=64"`
	ReceivedQty decimal.Decimal `json:"received_qty"`
}

func (r createRequest) toInput() CreateInput {
	input := CreateInput{PONumber: r.PONumber, Notes: r.Notes}
	if r.ReceiptDate != "" {
		input.ReceiptDate, _ = time.Parse("2006-01-02", r.ReceiptDate)
	}
	for _, line := range r.Lines {
		input.Lines = append(input.Lines, CreateLine{
			ItemCode:    line.ItemCode,
			WarehouseID: line.WarehouseID,
			BatchNo:     line.BatchNo,
			ReceivedQty: line.ReceivedQty,
		})
	}
	return input
}

type inspectRequest struct {
	AcceptedQty decimal.Decimal    `json:"accepted_qty"`
	RejectedQty decimal.Decimal    `json:"rejected_qty"`
	QCChecks    map[string]QCCheck `json:"qc_checks,omitempty" validate:"omitempty,dive,keys,required,max=64,endkeys"`
	Notes       *string            `json:"notes,omitempty"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

type itemResponse struct {
	ID            int64              `json:"id"`
	LineNo        int                `json:"line_no"`
	ItemCode      string             `json:"item_code"`
	ItemName      string             `json:"item_name"`
	WarehouseID   int64              `json:"warehouse_id"`
	WarehouseName string             `json:"warehouse_name"`
	BatchNo       string             `json:"batch_no,omitempty"`
	POQty         decimal.Decimal    `json:"po_qty"`
	ReceivedQty   decimal.Decimal    `json:"received_qty"`
	AcceptedQty   decimal.Decimal    `json:"accepted_qty"`
	RejectedQty   decimal.Decimal    `json:"rejected_qty"`
	ItemStatus    ItemStatus         `json:"item_status"`
	QCChecks      map[string]QCCheck `json:"qc_checks"`
	Notes         string             `json:"notes,omitempty"`
}

type auditResponse struct {
	ID          int64     `json:"id"`
	Action      Action    `json:"action"`
	ActionLabel string    `json:"action_label"`
	StatusFrom  Status    `json:"status_from"`
	StatusTo    Status    `json:"status_to"`
	Reason      string    `json:"reason,omitempty"`
	ActorID     string    `json:"actor_id"`
	ActorName   string    `json:"actor_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type grnResponse struct {
	ID              int64           `json:"id"`
	Number          string          `json:"grn_no"`
	PONumber        string          `json:"po_no"`
	SupplierID      int64           `json:"supplier_id"`
	Status          Status          `json:"status"`
	ReceiptDate     string          `json:"receipt_date"`
	Notes           string          `json:"notes,omitempty"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
	Version         int64           `json:"version"`
	CreatedBy       string          `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []itemResponse  `json:"items"`
	Logs            []auditResponse `json:"logs"`
}

func toItemResponse(item Item) itemResponse {
	checks := item.QCChecks
	if checks == nil {
		checks = map[string]QCCheck{}
	}
	return itemResponse{
		ID:            item.ID,
		LineNo:        item.LineNo,
		ItemCode:      item.ItemCode,
		ItemName:      item.ItemName,
		WarehouseID:   item.WarehouseID,
		WarehouseName: item.WarehouseName,
		BatchNo:       item.BatchNo,
		POQty:         item.POQty,
		ReceivedQty:   item.ReceivedQty,
		AcceptedQty:   item.AcceptedQty,
		RejectedQty:   item.RejectedQty,
		ItemStatus:    item.Status(),
		QCChecks:      checks,
		Notes:         item.Notes,
	}
}

func toAuditResponses(entries []AuditEntry) []auditResponse {
	out := make([]auditResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditResponse{
			ID:          e.ID,
			Action:      e.Action,
			ActionLabel: e.Action.Label(),
			StatusFrom:  e.StatusFrom,
			StatusTo:    e.StatusTo,
			Reason:      e.Reason,
			ActorID:     e.ActorID,
			ActorName:   e.ActorName,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}

func toGRNResponse(g GRN) grnResponse {
	resp := grnResponse{
		ID:          g.ID,
		Number:      g.Number,
		PONumber:    g.PONumber,
		SupplierID:  g.SupplierID,
		Status:      g.Status,
		ReceiptDate: g.ReceiptDate.Format("2006-01-02"),
		Notes:       g.Notes,
		Version:     g.Version,
		CreatedBy:   g.CreatedBy,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
		Items:       make([]itemResponse, 0, len(g.Items)),
		Logs:        toAuditResponses(g.Logs),
	}
	if g.Status == StatusRejected {
		reason := g.RejectionReason
		resp.RejectionReason = &reason
	}
	for _, item := range g.Items {
		resp.Items = append(resp.Items, toItemResponse(item))
	}
	return resp
}
