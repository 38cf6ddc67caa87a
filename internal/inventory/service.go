package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-grn/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBalance(ctx context.Context, key StockKey) (Balance, error)
	GetStockCard(ctx context.Context, filter StockCardFilter) ([]Movement, error)
	ListMovementsByReference(ctx context.Context, refModule, reference string) ([]Movement, error)
}

// IdempotencyPort guards against posting the same receipt line twice.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// Service is the item ledger: the authoritative stock quantity per item, warehouse and batch.
type Service struct {
	repo        RepositoryPort
	idempotency IdempotencyPort
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service. idem may be nil.
func NewService(repo RepositoryPort, idem IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, idempotency: idem, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// PostReceipt increases stock for every line, all or nothing. When the caller's context
// carries a database transaction the postings join it.
func (s *Service) PostReceipt(ctx context.Context, input ReceiptInput) ([]Movement, error) {
	if input.Reference == "" {
		return nil, ErrReferenceRequired
	}
	for _, line := range input.Lines {
		if err := validateLine(line); err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
	}
	now := s.now()
	movements := make([]Movement, 0, len(input.Lines))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, line := range input.Lines {
			mv, err := s.postLine(ctx, tx, input, line, now)
			if err != nil {
				return &LineError{Line: line, Err: err}
			}
			movements = append(movements, mv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock receipt posted",
		slog.String("ref_module", input.RefModule),
		slog.String("reference", input.Reference),
		slog.Int("lines", len(movements)))
	return movements, nil
}

func (s *Service) postLine(ctx context.Context, tx TxRepository, input ReceiptInput, line ReceiptLine, now time.Time) (Movement, error) {
	code := movementCode(input.Reference, line)
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, code, "inventory"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Movement{}, ErrDuplicatePosting
			}
			return Movement{}, err
		}
	}
	key := StockKey{ItemCode: line.ItemCode, WarehouseID: line.WarehouseID, BatchNo: line.BatchNo}
	balance, err := tx.GetBalanceForUpdate(ctx, key)
	if err != nil && !errors.Is(err, ErrBalanceNotFound) {
		return Movement{}, err
	}
	if errors.Is(err, ErrBalanceNotFound) {
		balance = Balance{StockKey: key}
	}
	balance.Qty = balance.Qty.Add(line.Qty)
	balance.UpdatedAt = now

	mv := Movement{
		Code:       code,
		Type:       TransactionTypeReceipt,
		StockKey:   key,
		Qty:        line.Qty,
		BalanceQty: balance.Qty,
		RefModule:  input.RefModule,
		RefID:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(code)).String(),
		Reference:  input.Reference,
		Note:       input.Note,
		ActorID:    input.ActorID,
		PostedAt:   now,
	}
	id, err := tx.InsertMovement(ctx, mv)
	if err != nil {
		return Movement{}, err
	}
	mv.ID = id
	if err := tx.UpsertBalance(ctx, balance); err != nil {
		return Movement{}, err
	}
	return mv, nil
}

// GetBalance returns the current balance; a missing bucket reads as zero.
func (s *Service) GetBalance(ctx context.Context, key StockKey) (Balance, error) {
	if key.ItemCode == "" {
		return Balance{}, ErrItemRequired
	}
	if key.WarehouseID == 0 {
		return Balance{}, ErrWarehouseRequired
	}
	bal, err := s.repo.GetBalance(ctx, key)
	if errors.Is(err, ErrBalanceNotFound) {
		return Balance{StockKey: key}, nil
	}
	return bal, err
}

// GetStockCard lists stock card entries.
func (s *Service) GetStockCard(ctx context.Context, filter StockCardFilter) ([]Movement, error) {
	if filter.ItemCode == "" {
		return nil, ErrItemRequired
	}
	if filter.WarehouseID == 0 {
		return nil, ErrWarehouseRequired
	}
	return s.repo.GetStockCard(ctx, filter)
}

// MovementsForReference lists every movement posted for a document.
func (s *Service) MovementsForReference(ctx context.Context, refModule, reference string) ([]Movement, error) {
	if reference == "" {
		return nil, ErrReferenceRequired
	}
	return s.repo.ListMovementsByReference(ctx, refModule, reference)
}

func validateLine(line ReceiptLine) error {
	switch {
	case line.ItemCode == "":
		return ErrItemRequired
	case line.WarehouseID == 0:
		return ErrWarehouseRequired
	case !line.Qty.IsPositive():
		return ErrInvalidQuantity
	}
	return nil
}

func movementCode(reference string, line ReceiptLine) string {
	if line.LineKey == "" {
		return fmt.Sprintf("%s:%s:%d:%s", reference, line.ItemCode, line.WarehouseID, line.BatchNo)
	}
	return MovementCode(reference, line.LineKey)
}

// MovementCode is the unique code of the movement posted for a keyed receipt line.
func MovementCode(reference, lineKey string) string {
	return reference + ":" + lineKey
}
