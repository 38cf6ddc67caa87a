package grn

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-grn/internal/masterdata"
	"github.com/odyssey-erp/odyssey-grn/internal/procurement"
	"github.com/odyssey-erp/odyssey-grn/internal/shared"
)

type memoryStore struct {
	mu          sync.Mutex
	grns        map[int64]GRN
	audit       []AuditEntry
	postings    []StockPosting
	nextID      int64
	nextItemID  int64
	nextAuditID int64
	seq         int64
}

type memoryTx struct {
	store *memoryStore
}

func newMemoryStore() *memoryStore {
	return &memoryStore{grns: make(map[int64]GRN)}
}

func copyGRN(g GRN) GRN {
	out := g
	out.Items = make([]Item, len(g.Items))
	for i, item := range g.Items {
		out.Items[i] = item
		if item.QCChecks != nil {
			out.Items[i].QCChecks = make(map[string]QCCheck, len(item.QCChecks))
			for k, v := range item.QCChecks {
				out.Items[i].QCChecks[k] = v
			}
		}
	}
	out.Logs = nil
	return out
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[int64]GRN, len(s.grns))
	for id, g := range s.grns {
		snapshot[id] = copyGRN(g)
	}
	audit := append([]AuditEntry(nil), s.audit...)
	postings := append([]StockPosting(nil), s.postings...)
	nextID, nextItemID, nextAuditID, seq := s.nextID, s.nextItemID, s.nextAuditID, s.seq
	if err := fn(ctx, &memoryTx{store: s}); err != nil {
		s.grns, s.audit, s.postings = snapshot, audit, postings
		s.nextID, s.nextItemID, s.nextAuditID, s.seq = nextID, nextItemID, nextAuditID, seq
		return err
	}
	return nil
}

func (s *memoryStore) logsFor(id int64) []AuditEntry {
	var out []AuditEntry
	for _, e := range s.audit {
		if e.GRNID == id {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *memoryStore) GetGRN(_ context.Context, id int64) (GRN, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grns[id]
	if !ok {
		return GRN{}, ErrNotFound
	}
	out := copyGRN(g)
	out.Logs = s.logsFor(id)
	return out, nil
}

func (s *memoryStore) ListAuditEntries(_ context.Context, grnID int64) ([]AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grns[grnID]; !ok {
		return nil, ErrNotFound
	}
	return s.logsFor(grnID), nil
}

func (s *memoryStore) ListApprovedSince(_ context.Context, since time.Time) ([]GRN, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []GRN
	for _, g := range s.grns {
		if g.Status == StatusApproved && !g.UpdatedAt.Before(since) {
			out = append(out, copyGRN(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) postingsFor(reference string) []StockPosting {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []StockPosting
	for _, p := range s.postings {
		if p.Reference == reference {
			out = append(out, p)
		}
	}
	return out
}

func (s *memoryStore) auditCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audit)
}

func (t *memoryTx) NextNumber(_ context.Context, at time.Time) (string, error) {
	t.store.seq++
	return fmt.Sprintf("GRN-%s-%06d", at.Format("200601"), t.store.seq), nil
}

func (t *memoryTx) InsertGRN(_ context.Context, g GRN) (int64, error) {
	t.store.nextID++
	g.ID = t.store.nextID
	g.Items = nil
	g.Logs = nil
	t.store.grns[g.ID] = g
	return g.ID, nil
}

func (t *memoryTx) InsertItem(_ context.Context, item Item) (int64, error) {
	g, ok := t.store.grns[item.GRNID]
	if !ok {
		return 0, ErrNotFound
	}
	t.store.nextItemID++
	item.ID = t.store.nextItemID
	g.Items = append(g.Items, item)
	t.store.grns[g.ID] = g
	return item.ID, nil
}

func (t *memoryTx) LockGRN(_ context.Context, id int64) (GRN, error) {
	g, ok := t.store.grns[id]
	if !ok {
		return GRN{}, ErrNotFound
	}
	return copyGRN(g), nil
}

func (t *memoryTx) UpdateStatus(_ context.Context, id int64, from, to Status, rejectionReason *string, at time.Time) error {
	g, ok := t.store.grns[id]
	if !ok {
		return ErrNotFound
	}
	if g.Status != from {
		return fmt.Errorf("%w: grn %d is no longer %s", ErrInvalidState, id, from)
	}
	g.Status = to
	g.RejectionReason = ""
	if rejectionReason != nil {
		g.RejectionReason = *rejectionReason
	}
	g.Version++
	g.UpdatedAt = at
	t.store.grns[id] = g
	return nil
}

func (t *memoryTx) UpdateItemInspection(_ context.Context, item Item) error {
	g, ok := t.store.grns[item.GRNID]
	if !ok {
		return ErrNotFound
	}
	for i := range g.Items {
		if g.Items[i].ID == item.ID {
			g.Items[i] = item
			t.store.grns[g.ID] = g
			return nil
		}
	}
	return ErrNotFound
}

func (t *memoryTx) InsertAuditEntry(_ context.Context, entry AuditEntry) (int64, error) {
	t.store.nextAuditID++
	entry.ID = t.store.nextAuditID
	t.store.audit = append(t.store.audit, entry)
	return entry.ID, nil
}

func (t *memoryTx) ListAuditEntries(_ context.Context, grnID int64) ([]AuditEntry, error) {
	return t.store.logsFor(grnID), nil
}

func (t *memoryTx) CountAuditEntries(_ context.Context, grnID int64) (int, error) {
	n := 0
	for _, e := range t.store.audit {
		if e.GRNID == grnID {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) DeleteGRN(_ context.Context, id int64) error {
	if _, ok := t.store.grns[id]; !ok {
		return ErrNotFound
	}
	delete(t.store.grns, id)
	return nil
}

// memoryLedger writes into the store so postings share the store transaction.
type memoryLedger struct {
	store  *memoryStore
	failOn string
	calls  int
}

func (l *memoryLedger) PostReceipt(_ context.Context, reference string, _ shared.Actor, postings []StockPosting) error {
	l.calls++
	for _, p := range postings {
		if p.ItemCode == l.failOn {
			return &PostingError{ItemID: p.ItemID, ItemCode: p.ItemCode, WarehouseID: p.WarehouseID, Err: errors.New("ledger unavailable")}
		}
		if p.Reference != reference {
			return fmt.Errorf("reference mismatch %s != %s", p.Reference, reference)
		}
		l.store.postings = append(l.store.postings, p)
	}
	return nil
}

type memoryOrders struct {
	orders map[string]procurement.PurchaseOrder
}

func (m memoryOrders) ReceivablePurchaseOrder(_ context.Context, poNo string) (procurement.PurchaseOrder, error) {
	po, ok := m.orders[poNo]
	if !ok {
		return procurement.PurchaseOrder{}, procurement.ErrNotFound
	}
	if po.Status != procurement.POStatusApproved {
		return procurement.PurchaseOrder{}, procurement.ErrNotReceivable
	}
	return po, nil
}

type memoryDirectory struct {
	items      map[string]string
	warehouses map[int64]masterdata.Warehouse
}

func (d memoryDirectory) ItemName(_ context.Context, code string) string {
	if name, ok := d.items[code]; ok {
		return name
	}
	return code
}

func (d memoryDirectory) WarehouseName(_ context.Context, id int64) string {
	return d.warehouses[id].Name
}

func (d memoryDirectory) ActiveWarehouse(_ context.Context, id int64) (masterdata.Warehouse, error) {
	wh, ok := d.warehouses[id]
	if !ok {
		return masterdata.Warehouse{}, masterdata.ErrWarehouseNotFound
	}
	if !wh.IsActive {
		return masterdata.Warehouse{}, masterdata.ErrWarehouseInactive
	}
	return wh, nil
}

type memoryMetrics struct {
	mu          sync.Mutex
	transitions map[string]int
	failures    map[string]int
	postings    int
}

func newMemoryMetrics() *memoryMetrics {
	return &memoryMetrics{transitions: map[string]int{}, failures: map[string]int{}}
}

func (m *memoryMetrics) ObserveTransition(action, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[action+"->"+to]++
}

func (m *memoryMetrics) ObserveFailure(action, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[action+":"+kind]++
}

func (m *memoryMetrics) ObserveStockPostings(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postings += n
}

type memoryIntegration struct {
	mu     sync.Mutex
	events []ApprovedEvent
	err    error
}

func (m *memoryIntegration) HandleGRNApproved(_ context.Context, evt ApprovedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, evt)
	return nil
}

type fixture struct {
	store       *memoryStore
	ledger      *memoryLedger
	metrics     *memoryMetrics
	integration *memoryIntegration
	svc         *Service
}

var (
	inspector = shared.Actor{ID: "u-inspector", Name: "Ina Inspector", Permissions: []string{"grn.view", "grn.inspect"}}
	keeper    = shared.Actor{ID: "u-keeper", Name: "Kai Keeper", Permissions: []string{"grn.view", "grn.inventory"}}
	receiver  = shared.Actor{ID: "u-receiver", Name: "Rei Receiver", Permissions: []string{"grn.view", "grn.receive"}}
)

func newFixture() *fixture {
	store := newMemoryStore()
	ledger := &memoryLedger{store: store}
	orders := memoryOrders{orders: map[string]procurement.PurchaseOrder{
		"PO-100": {ID: 1, Number: "PO-100", SupplierID: 77, Status: procurement.POStatusApproved, Lines: []procurement.POLine{
			{LineNo: 1, ItemCode: "BOLT", Qty: decimal.NewFromInt(12), UOM: "PCS"},
			{LineNo: 2, ItemCode: "NUT", Qty: decimal.NewFromInt(5), UOM: "PCS"},
		}},
		"PO-DRAFT": {ID: 2, Number: "PO-DRAFT", SupplierID: 77, Status: procurement.POStatusDraft},
	}}
	directory := memoryDirectory{
		items: map[string]string{"BOLT": "Hex bolt M8", "NUT": "Hex nut M8"},
		warehouses: map[int64]masterdata.Warehouse{
			1: {ID: 1, Code: "WH-A", Name: "Main warehouse", IsActive: true},
			2: {ID: 2, Code: "WH-OLD", Name: "Old annex", IsActive: false},
		},
	}
	svc := NewService(store, ledger, orders, directory, nil)
	clock := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	svc.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	metrics := newMemoryMetrics()
	integration := &memoryIntegration{}
	svc.SetMetrics(metrics)
	svc.SetIntegrationHandler(integration)
	return &fixture{store: store, ledger: ledger, metrics: metrics, integration: integration, svc: svc}
}

func qty(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func (f *fixture) create(lines ...CreateLine) (GRN, error) {
	return f.svc.CreateGRN(context.Background(), receiver, CreateInput{PONumber: "PO-100", Lines: lines})
}

func line(code string, warehouseID int64, received string) CreateLine {
	return CreateLine{ItemCode: code, WarehouseID: warehouseID, ReceivedQty: qty(received)}
}
