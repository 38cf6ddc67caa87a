package grn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-grn/internal/masterdata"
	"github.com/odyssey-erp/odyssey-grn/internal/procurement"
	"github.com/odyssey-erp/odyssey-grn/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetGRN(ctx context.Context, id int64) (GRN, error)
	ListAuditEntries(ctx context.Context, grnID int64) ([]AuditEntry, error)
	ListApprovedSince(ctx context.Context, since time.Time) ([]GRN, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	NextNumber(ctx context.Context, at time.Time) (string, error)
	InsertGRN(ctx context.Context, g GRN) (int64, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	// LockGRN loads the GRN with its items and holds a row lock until the transaction ends.
	LockGRN(ctx context.Context, id int64) (GRN, error)
	// UpdateStatus writes the new status only if the stored status still equals from.
	UpdateStatus(ctx context.Context, id int64, from, to Status, rejectionReason *string, at time.Time) error
	UpdateItemInspection(ctx context.Context, item Item) error
	InsertAuditEntry(ctx context.Context, entry AuditEntry) (int64, error)
	ListAuditEntries(ctx context.Context, grnID int64) ([]AuditEntry, error)
	CountAuditEntries(ctx context.Context, grnID int64) (int, error)
	DeleteGRN(ctx context.Context, id int64) error
}

// PurchaseOrderPort resolves the purchase order a receipt is recorded against.
type PurchaseOrderPort interface {
	ReceivablePurchaseOrder(ctx context.Context, poNo string) (procurement.PurchaseOrder, error)
}

// DirectoryPort resolves master data names and warehouses.
type DirectoryPort interface {
	ItemName(ctx context.Context, code string) string
	WarehouseName(ctx context.Context, id int64) string
	ActiveWarehouse(ctx context.Context, id int64) (masterdata.Warehouse, error)
}

// LedgerPort posts stock increases. Implementations must join the transaction carried by ctx
// and post either every line or none.
type LedgerPort interface {
	PostReceipt(ctx context.Context, reference string, actor shared.Actor, postings []StockPosting) error
}

// LockPort serialises operations on one GRN across processes.
type LockPort interface {
	Acquire(ctx context.Context, key string) (func(context.Context), error)
}

// MetricsPort records workflow outcomes.
type MetricsPort interface {
	ObserveTransition(action, to string)
	ObserveFailure(action, kind string)
	ObserveStockPostings(n int)
}

// Service is the approval coordinator. It is the only writer of GRN status, item
// quantities and audit entries.
type Service struct {
	repo        RepositoryPort
	ledger      LedgerPort
	orders      PurchaseOrderPort
	directory   DirectoryPort
	locker      LockPort
	metrics     MetricsPort
	integration IntegrationHandler
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs the GRN service.
func NewService(repo RepositoryPort, ledger LedgerPort, orders PurchaseOrderPort, directory DirectoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		ledger:    ledger,
		orders:    orders,
		directory: directory,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetLocker enables the distributed per-GRN lock.
func (s *Service) SetLocker(l LockPort) {
	s.locker = l
}

// SetMetrics sets the workflow metrics sink.
func (s *Service) SetMetrics(m MetricsPort) {
	s.metrics = m
}

// SetIntegrationHandler sets the receiver of post-approval events.
func (s *Service) SetIntegrationHandler(h IntegrationHandler) {
	s.integration = h
}

// CreateGRN records a receipt against an approved purchase order in status pending.
func (s *Service) CreateGRN(ctx context.Context, actor shared.Actor, input CreateInput) (GRN, error) {
	if err := validateActor(actor); err != nil {
		return GRN{}, err
	}
	if len(input.Lines) == 0 {
		return GRN{}, fmt.Errorf("%w: at least one line required", ErrValidation)
	}
	po, err := s.orders.ReceivablePurchaseOrder(ctx, input.PONumber)
	if err != nil {
		if errors.Is(err, procurement.ErrNotFound) || errors.Is(err, procurement.ErrNotReceivable) {
			return GRN{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return GRN{}, err
	}

	now := s.now()
	g := GRN{
		PONumber:    po.Number,
		SupplierID:  po.SupplierID,
		Status:      StatusPending,
		ReceiptDate: input.ReceiptDate,
		Notes:       strings.TrimSpace(input.Notes),
		Version:     1,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if g.ReceiptDate.IsZero() {
		g.ReceiptDate = now
	}
	for i, line := range input.Lines {
		code := strings.TrimSpace(line.ItemCode)
		ordered, ok := po.OrderedQty(code)
		if !ok {
			return GRN{}, fmt.Errorf("%w: item %q is not on purchase order %s", ErrValidation, code, po.Number)
		}
		if !line.ReceivedQty.IsPositive() {
			return GRN{}, &QuantityError{ItemCode: code, Received: line.ReceivedQty, Reason: "received quantity must be positive"}
		}
		if line.WarehouseID < 0 {
			return GRN{}, fmt.Errorf("%w: line %d warehouse", ErrValidation, i+1)
		}
		item := Item{
			LineNo:      i + 1,
			ItemCode:    code,
			ItemName:    s.directory.ItemName(ctx, code),
			WarehouseID: line.WarehouseID,
			BatchNo:     strings.TrimSpace(line.BatchNo),
			POQty:       ordered,
			ReceivedQty: line.ReceivedQty,
			QCChecks:    map[string]QCCheck{},
			UpdatedAt:   now,
		}
		if line.WarehouseID > 0 {
			item.WarehouseName = s.directory.WarehouseName(ctx, line.WarehouseID)
		}
		g.Items = append(g.Items, item)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx, now)
		if err != nil {
			return err
		}
		g.Number = number
		id, err := tx.InsertGRN(ctx, g)
		if err != nil {
			return err
		}
		g.ID = id
		for i := range g.Items {
			g.Items[i].GRNID = id
			itemID, err := tx.InsertItem(ctx, g.Items[i])
			if err != nil {
				return err
			}
			g.Items[i].ID = itemID
		}
		return nil
	})
	if err != nil {
		return GRN{}, err
	}
	s.logger.Info("grn created",
		slog.Int64("grn_id", g.ID),
		slog.String("grn_no", g.Number),
		slog.String("po_no", g.PONumber),
		slog.Int("items", len(g.Items)),
		slog.String("actor_id", actor.ID))
	return g, nil
}

// GetGRN returns the GRN with items and audit log.
func (s *Service) GetGRN(ctx context.Context, id int64) (GRN, error) {
	return s.repo.GetGRN(ctx, id)
}

// ListAuditLog returns the audit entries of a GRN in chronological order.
func (s *Service) ListAuditLog(ctx context.Context, id int64) ([]AuditEntry, error) {
	return s.repo.ListAuditEntries(ctx, id)
}

// DeleteGRN removes a GRN that is still pending and has never transitioned.
func (s *Service) DeleteGRN(ctx context.Context, id int64, actor shared.Actor) error {
	if err := validateActor(actor); err != nil {
		return err
	}
	release, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer release(context.WithoutCancel(ctx))

	var number string
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		g, err := tx.LockGRN(ctx, id)
		if err != nil {
			return err
		}
		if g.Status != StatusPending {
			return &StateError{Op: "delete", From: g.Status}
		}
		entries, err := tx.CountAuditEntries(ctx, id)
		if err != nil {
			return err
		}
		if entries > 0 {
			return &StateError{Op: "delete", From: g.Status}
		}
		number = g.Number
		return tx.DeleteGRN(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("grn deleted", slog.Int64("grn_id", id), slog.String("grn_no", number), slog.String("actor_id", actor.ID))
	return nil
}

// StartInspection moves a pending or sent back GRN into inspection.
func (s *Service) StartInspection(ctx context.Context, id int64, actor shared.Actor) (GRN, error) {
	return s.transition(ctx, id, actor, ActionStartInspection, "", nil)
}

// SubmitForInventoryApproval hands an inspected GRN to the inventory team.
func (s *Service) SubmitForInventoryApproval(ctx context.Context, id int64, actor shared.Actor) (GRN, error) {
	return s.transition(ctx, id, actor, ActionSubmitForInventory, "", func(_ context.Context, g GRN) error {
		return readyForInventory(g.Items)
	})
}

// Reject terminates the GRN with a reason.
func (s *Service) Reject(ctx context.Context, id int64, actor shared.Actor, reason string) (GRN, error) {
	return s.transition(ctx, id, actor, ActionReject, reason, nil)
}

// SendBack returns the GRN from inventory review to inspection. Inspection results are kept.
func (s *Service) SendBack(ctx context.Context, id int64, actor shared.Actor, reason string) (GRN, error) {
	return s.transition(ctx, id, actor, ActionSendBack, reason, nil)
}

// InventoryApprove approves the GRN and posts stock for every accepted line in the same
// transaction.
func (s *Service) InventoryApprove(ctx context.Context, id int64, actor shared.Actor) (GRN, error) {
	var posted []StockPosting
	g, err := s.transition(ctx, id, actor, ActionInventoryApprove, "", func(ctx context.Context, g GRN) error {
		postings, err := s.postStock(ctx, g, actor)
		posted = postings
		return err
	})
	if err != nil {
		return GRN{}, err
	}
	if s.metrics != nil {
		s.metrics.ObserveStockPostings(len(posted))
	}
	s.publishApproved(ctx, g, actor, posted)
	return g, nil
}

// RecordItemInspection stores the inspection result of one line of a GRN under inspection.
func (s *Service) RecordItemInspection(ctx context.Context, grnID, itemID int64, actor shared.Actor, input InspectionInput) (Item, error) {
	if err := validateActor(actor); err != nil {
		return Item{}, err
	}
	release, err := s.lock(ctx, grnID)
	if err != nil {
		return Item{}, err
	}
	defer release(context.WithoutCancel(ctx))

	var updated Item
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		g, err := tx.LockGRN(ctx, grnID)
		if err != nil {
			return err
		}
		if g.Status != StatusInspecting {
			return &StateError{Op: "record inspection", From: g.Status}
		}
		item, ok := g.Item(itemID)
		if !ok {
			return fmt.Errorf("%w: item %d on grn %d", ErrNotFound, itemID, grnID)
		}
		updated, err = ApplyInspection(item, input)
		if err != nil {
			return err
		}
		updated.UpdatedAt = s.now()
		return tx.UpdateItemInspection(ctx, updated)
	})
	if err != nil {
		s.observeFailure("record_inspection", err)
		return Item{}, err
	}
	s.logger.Info("grn item inspected",
		slog.Int64("grn_id", grnID),
		slog.Int64("item_id", itemID),
		slog.String("accepted_qty", updated.AcceptedQty.String()),
		slog.String("rejected_qty", updated.RejectedQty.String()),
		slog.String("item_status", string(updated.Status())),
		slog.String("actor_id", actor.ID))
	return updated, nil
}

type transitionGuard func(ctx context.Context, g GRN) error

func (s *Service) transition(ctx context.Context, id int64, actor shared.Actor, action Action, reason string, guard transitionGuard) (GRN, error) {
	g, err := s.applyTransition(ctx, id, actor, action, reason, guard)
	if err != nil {
		s.observeFailure(string(action), err)
		return GRN{}, err
	}
	return g, nil
}

func (s *Service) applyTransition(ctx context.Context, id int64, actor shared.Actor, action Action, reason string, guard transitionGuard) (GRN, error) {
	if err := validateActor(actor); err != nil {
		return GRN{}, err
	}
	reason = strings.TrimSpace(reason)
	if action.RequiresReason() && reason == "" {
		return GRN{}, ErrMissingReason
	}
	release, err := s.lock(ctx, id)
	if err != nil {
		return GRN{}, err
	}
	defer release(context.WithoutCancel(ctx))

	var from, to Status
	var updated GRN
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		g, err := tx.LockGRN(ctx, id)
		if err != nil {
			return err
		}
		from = g.Status
		to, err = Transition(from, action)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(ctx, g); err != nil {
				return err
			}
		}
		now := s.now()
		var rejection *string
		if to == StatusRejected {
			rejection = &reason
		}
		if err := tx.UpdateStatus(ctx, id, from, to, rejection, now); err != nil {
			return err
		}
		_, err = tx.InsertAuditEntry(ctx, AuditEntry{
			GRNID:      id,
			Action:     action,
			StatusFrom: from,
			StatusTo:   to,
			Reason:     reason,
			ActorID:    actor.ID,
			ActorName:  actor.Name,
			CreatedAt:  now,
		})
		if err != nil {
			return err
		}
		if updated, err = tx.LockGRN(ctx, id); err != nil {
			return err
		}
		updated.Logs, err = tx.ListAuditEntries(ctx, id)
		return err
	})
	if err != nil {
		return GRN{}, err
	}

	if s.metrics != nil {
		s.metrics.ObserveTransition(string(action), string(to))
	}
	s.logger.Info("grn transition",
		slog.Int64("grn_id", id),
		slog.String("action", string(action)),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("actor_id", actor.ID))
	return updated, nil
}

func (s *Service) postStock(ctx context.Context, g GRN, actor shared.Actor) ([]StockPosting, error) {
	if s.ledger == nil {
		return nil, errors.New("grn: item ledger not configured")
	}
	if err := readyForInventory(g.Items); err != nil {
		return nil, err
	}
	postings := make([]StockPosting, 0, len(g.Items))
	for _, item := range g.Items {
		if !item.AcceptedQty.IsPositive() {
			continue
		}
		if _, err := s.directory.ActiveWarehouse(ctx, item.WarehouseID); err != nil {
			if errors.Is(err, masterdata.ErrWarehouseNotFound) || errors.Is(err, masterdata.ErrWarehouseInactive) {
				return nil, &WarehouseError{ItemID: item.ID, ItemCode: item.ItemCode, WarehouseID: item.WarehouseID, Err: err}
			}
			return nil, err
		}
		postings = append(postings, StockPosting{
			ItemID:      item.ID,
			ItemCode:    item.ItemCode,
			WarehouseID: item.WarehouseID,
			BatchNo:     item.BatchNo,
			Qty:         item.AcceptedQty,
			Reference:   g.Number,
		})
	}
	if err := s.ledger.PostReceipt(ctx, g.Number, actor, postings); err != nil {
		var pe *PostingError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &PostingError{Err: err}
	}
	return postings, nil
}

func (s *Service) publishApproved(ctx context.Context, g GRN, actor shared.Actor, posted []StockPosting) {
	if s.integration == nil {
		return
	}
	evt := ApprovedEvent{
		GRNID:      g.ID,
		Number:     g.Number,
		PONumber:   g.PONumber,
		SupplierID: g.SupplierID,
		ApprovedAt: g.UpdatedAt,
		ActorID:    actor.ID,
	}
	for _, p := range posted {
		evt.Lines = append(evt.Lines, ApprovedLine{
			ItemID:      p.ItemID,
			ItemCode:    p.ItemCode,
			WarehouseID: p.WarehouseID,
			BatchNo:     p.BatchNo,
			Qty:         p.Qty,
		})
	}
	if err := s.integration.HandleGRNApproved(ctx, evt); err != nil {
		s.logger.Warn("grn approved event not delivered",
			slog.Int64("grn_id", g.ID),
			slog.String("grn_no", g.Number),
			slog.Any("error", err))
	}
}

func (s *Service) lock(ctx context.Context, id int64) (func(context.Context), error) {
	if s.locker == nil {
		return func(context.Context) {}, nil
	}
	release, err := s.locker.Acquire(ctx, shared.GRNLockKey(id))
	if err != nil {
		if errors.Is(err, shared.ErrLockNotObtained) {
			return nil, fmt.Errorf("%w: grn %d is locked", ErrConcurrentUpdate, id)
		}
		return nil, err
	}
	return release, nil
}

func (s *Service) observeFailure(action string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveFailure(action, ErrorKind(err))
	}
}

func validateActor(actor shared.Actor) error {
	if strings.TrimSpace(actor.ID) == "" {
		return ErrMissingActor
	}
	return nil
}
