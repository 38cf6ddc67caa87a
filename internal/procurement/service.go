package procurement

import (
	"context"
	"fmt"
	"strings"
)

// RepositoryPort abstracts purchase order reads.
type RepositoryPort interface {
	GetPurchaseOrder(ctx context.Context, poNo string) (PurchaseOrder, error)
}

// Service exposes purchase order lookups to other modules.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the procurement service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ReceivablePurchaseOrder returns the PO if goods can be received against it.
func (s *Service) ReceivablePurchaseOrder(ctx context.Context, poNo string) (PurchaseOrder, error) {
	poNo = strings.TrimSpace(poNo)
	if poNo == "" {
		return PurchaseOrder{}, ErrNotFound
	}
	po, err := s.repo.GetPurchaseOrder(ctx, poNo)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Status != POStatusApproved {
		return PurchaseOrder{}, fmt.Errorf("%w: %s is %s", ErrNotReceivable, po.Number, po.Status)
	}
	return po, nil
}
