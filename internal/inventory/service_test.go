package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-grn/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	balances  map[StockKey]Balance
	movements []Movement
	nextID    int64
	failOn    string
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{balances: make(map[StockKey]Balance)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	balances := make(map[StockKey]Balance, len(r.balances))
	for k, v := range r.balances {
		balances[k] = v
	}
	movements := append([]Movement(nil), r.movements...)
	nextID := r.nextID
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.balances, r.movements, r.nextID = balances, movements, nextID
		return err
	}
	return nil
}

func (r *memoryRepo) GetBalance(_ context.Context, key StockKey) (Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bal, ok := r.balances[key]
	if !ok {
		return Balance{}, ErrBalanceNotFound
	}
	return bal, nil
}

func (r *memoryRepo) GetStockCard(_ context.Context, filter StockCardFilter) ([]Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Movement
	for _, mv := range r.movements {
		if mv.StockKey == filter.StockKey {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListMovementsByReference(_ context.Context, refModule, reference string) ([]Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Movement
	for _, mv := range r.movements {
		if mv.RefModule == refModule && mv.Reference == reference {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetBalanceForUpdate(_ context.Context, key StockKey) (Balance, error) {
	if bal, ok := tx.repo.balances[key]; ok {
		return bal, nil
	}
	return Balance{StockKey: key}, ErrBalanceNotFound
}

func (tx *memoryTx) UpsertBalance(_ context.Context, balance Balance) error {
	tx.repo.balances[balance.StockKey] = balance
	return nil
}

func (tx *memoryTx) InsertMovement(_ context.Context, mv Movement) (int64, error) {
	if tx.repo.failOn != "" && mv.ItemCode == tx.repo.failOn {
		return 0, errors.New("disk full")
	}
	tx.repo.nextID++
	mv.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, mv)
	return mv.ID, nil
}

type memoryIdempotency struct {
	keys map[string]struct{}
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	if m.keys == nil {
		m.keys = make(map[string]struct{})
	}
	k := module + "|" + key
	if _, ok := m.keys[k]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[k] = struct{}{}
	return nil
}

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPostReceiptAccumulatesBalance(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	movements, err := svc.PostReceipt(ctx, ReceiptInput{
		RefModule: "GRN",
		Reference: "GRN-202601-000001",
		ActorID:   "u-1",
		Lines: []ReceiptLine{
			{LineKey: "1", ItemCode: "BOLT", WarehouseID: 1, Qty: qty("8")},
			{LineKey: "2", ItemCode: "BOLT", WarehouseID: 1, Qty: qty("2.5")},
		},
	})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	require.True(t, movements[1].BalanceQty.Equal(qty("10.5")))
	require.NotEmpty(t, movements[0].RefID)

	bal, err := svc.GetBalance(ctx, StockKey{ItemCode: "BOLT", WarehouseID: 1})
	require.NoError(t, err)
	require.True(t, bal.Qty.Equal(qty("10.5")))
}

func TestPostReceiptSeparatesBatches(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.PostReceipt(ctx, ReceiptInput{RefModule: "GRN", Reference: "R1", Lines: []ReceiptLine{
		{LineKey: "1", ItemCode: "PAINT", WarehouseID: 2, BatchNo: "B1", Qty: qty("3")},
		{LineKey: "2", ItemCode: "PAINT", WarehouseID: 2, BatchNo: "B2", Qty: qty("4")},
	}})
	require.NoError(t, err)

	b1, err := svc.GetBalance(ctx, StockKey{ItemCode: "PAINT", WarehouseID: 2, BatchNo: "B1"})
	require.NoError(t, err)
	require.True(t, b1.Qty.Equal(qty("3")))
	card, err := svc.GetStockCard(ctx, StockCardFilter{StockKey: StockKey{ItemCode: "PAINT", WarehouseID: 2, BatchNo: "B2"}})
	require.NoError(t, err)
	require.Len(t, card, 1)
}

func TestPostReceiptRejectsInvalidLineBeforeWriting(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.PostReceipt(context.Background(), ReceiptInput{RefModule: "GRN", Reference: "R1", Lines: []ReceiptLine{
		{LineKey: "1", ItemCode: "BOLT", WarehouseID: 1, Qty: qty("1")},
		{LineKey: "2", ItemCode: "BOLT", WarehouseID: 0, Qty: qty("1")},
	}})
	require.ErrorIs(t, err, ErrWarehouseRequired)
	var lineErr *LineError
	require.ErrorAs(t, err, &lineErr)
	require.Equal(t, "2", lineErr.Line.LineKey)
	require.Empty(t, repo.movements)

	_, err = svc.PostReceipt(context.Background(), ReceiptInput{RefModule: "GRN", Reference: "R1", Lines: []ReceiptLine{
		{LineKey: "1", ItemCode: "BOLT", WarehouseID: 1, Qty: decimal.Zero},
	}})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.PostReceipt(context.Background(), ReceiptInput{RefModule: "GRN"})
	require.ErrorIs(t, err, ErrReferenceRequired)
}

func TestPostReceiptIsAllOrNothing(t *testing.T) {
	repo := newMemoryRepo()
	repo.failOn = "NUT"
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.PostReceipt(ctx, ReceiptInput{RefModule: "GRN", Reference: "R1", Lines: []ReceiptLine{
		{LineKey: "1", ItemCode: "BOLT", WarehouseID: 1, Qty: qty("5")},
		{LineKey: "2", ItemCode: "NUT", WarehouseID: 1, Qty: qty("5")},
	}})
	require.Error(t, err)

	bal, err := svc.GetBalance(ctx, StockKey{ItemCode: "BOLT", WarehouseID: 1})
	require.NoError(t, err)
	require.True(t, bal.Qty.IsZero())
	require.Empty(t, repo.movements)
}

func TestPostReceiptDuplicateLine(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &memoryIdempotency{}, nil)
	ctx := context.Background()
	input := ReceiptInput{RefModule: "GRN", Reference: "R1", Lines: []ReceiptLine{
		{LineKey: "1", ItemCode: "BOLT", WarehouseID: 1, Qty: qty("5")},
	}}

	_, err := svc.PostReceipt(ctx, input)
	require.NoError(t, err)
	_, err = svc.PostReceipt(ctx, input)
	require.ErrorIs(t, err, ErrDuplicatePosting)

	bal, err := svc.GetBalance(ctx, StockKey{ItemCode: "BOLT", WarehouseID: 1})
	require.NoError(t, err)
	require.True(t, bal.Qty.Equal(qty("5")))
}

func TestMovementsForReference(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.PostReceipt(ctx, ReceiptInput{RefModule: "GRN", Reference: "R1", Lines: []ReceiptLine{
		{LineKey: "1", ItemCode: "BOLT", WarehouseID: 1, Qty: qty("5")},
	}})
	require.NoError(t, err)
	_, err = svc.PostReceipt(ctx, ReceiptInput{RefModule: "GRN", Reference: "R2", Lines: []ReceiptLine{
		{LineKey: "1", ItemCode: "BOLT", WarehouseID: 1, Qty: qty("1")},
	}})
	require.NoError(t, err)

	mvs, err := svc.MovementsForReference(ctx, "GRN", "R1")
	require.NoError(t, err)
	require.Len(t, mvs, 1)
	require.True(t, mvs[0].Qty.Equal(qty("5")))

	_, err = svc.MovementsForReference(ctx, "GRN", "")
	require.ErrorIs(t, err, ErrReferenceRequired)
}
