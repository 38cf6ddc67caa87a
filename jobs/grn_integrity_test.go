package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-grn/internal/grn"
	"github.com/odyssey-erp/odyssey-grn/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-grn/internal/jobs"
)

type stubGRNs struct {
	grns    map[int64]grn.GRN
	listErr error
	since   time.Time
}

func (s *stubGRNs) GetGRN(_ context.Context, id int64) (grn.GRN, error) {
	g, ok := s.grns[id]
	if !ok {
		return grn.GRN{}, grn.ErrNotFound
	}
	return g, nil
}

func (s *stubGRNs) ListApprovedSince(_ context.Context, since time.Time) ([]grn.GRN, error) {
	s.since = since
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []grn.GRN
	for _, g := range s.grns {
		if g.Status == grn.StatusApproved {
			out = append(out, grn.GRN{ID: g.ID, Number: g.Number, Status: g.Status})
		}
	}
	return out, nil
}

type stubLedger struct {
	movements map[string][]inventory.Movement
	err       error
}

func (s *stubLedger) MovementsForReference(_ context.Context, refModule, reference string) ([]inventory.Movement, error) {
	if s.err != nil {
		return nil, s.err
	}
	if refModule != grn.RefModule {
		return nil, nil
	}
	return s.movements[reference], nil
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func approvedGRN() grn.GRN {
	return grn.GRN{
		ID:     7,
		Number: "GRN-202603-000007",
		Status: grn.StatusApproved,
		Items: []grn.Item{
			{ID: 70, ItemCode: "BOLT", WarehouseID: 1, ReceivedQty: dec("10"), AcceptedQty: dec("7"), RejectedQty: dec("3")},
			{ID: 71, ItemCode: "NUT", WarehouseID: 1, BatchNo: "B1", ReceivedQty: dec("5"), AcceptedQty: dec("5")},
			{ID: 72, ItemCode: "WASHER", WarehouseID: 0, ReceivedQty: dec("4"), RejectedQty: dec("4")},
		},
	}
}

func receipt(g grn.GRN, itemID int64, code string, warehouseID int64, batch, qty string) inventory.Movement {
	return inventory.Movement{
		Code:      inventory.MovementCode(g.Number, grn.LineKey(itemID)),
		Type:      inventory.TransactionTypeReceipt,
		StockKey:  inventory.StockKey{ItemCode: code, WarehouseID: warehouseID, BatchNo: batch},
		Qty:       dec(qty),
		RefModule: grn.RefModule,
		Reference: g.Number,
	}
}

func newJob(grns *stubGRNs, ledger *stubLedger) *IntegrityJob {
	job := NewIntegrityJob(grns, ledger, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()), 3)
	job.clock = func() time.Time { return time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC) }
	return job
}

func TestIntegrityCheckConsistentLedger(t *testing.T) {
	g := approvedGRN()
	ledger := &stubLedger{movements: map[string][]inventory.Movement{g.Number: {
		receipt(g, 70, "BOLT", 1, "", "7"),
		receipt(g, 71, "NUT", 1, "B1", "5.0000"),
	}}}
	job := newJob(&stubGRNs{}, ledger)

	mismatches, err := job.Check(context.Background(), g)
	require.NoError(t, err)
	require.Empty(t, mismatches)
}

func TestIntegrityCheckReportsEveryKind(t *testing.T) {
	g := approvedGRN()
	g.Items = append(g.Items, grn.Item{ID: 73, ItemCode: "PIN", WarehouseID: 1, ReceivedQty: dec("2"), AcceptedQty: dec("2")})
	stray := receipt(g, 99, "BOLT", 1, "", "1")
	ledger := &stubLedger{movements: map[string][]inventory.Movement{g.Number: {
		receipt(g, 70, "BOLT", 1, "", "6"),
		receipt(g, 71, "NUT", 2, "B1", "5"),
		stray,
	}}}
	job := newJob(&stubGRNs{}, ledger)

	mismatches, err := job.Check(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, mismatches, 4)
	kinds := map[string]Mismatch{}
	for _, m := range mismatches {
		kinds[m.Kind] = m
	}
	require.True(t, kinds[MismatchQuantity].Actual.Equal(dec("6")))
	require.Equal(t, int64(71), kinds[MismatchLocation].ItemID)
	require.Equal(t, int64(73), kinds[MismatchMissing].ItemID)
	require.Equal(t, stray.Code, kinds[MismatchUnexpected].Code)
}

func TestIntegrityCheckRequiresApprovedStatus(t *testing.T) {
	g := approvedGRN()
	g.Status = grn.StatusAwaitingInventoryApproval
	mismatches, err := newJob(&stubGRNs{}, &stubLedger{}).Check(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	require.Equal(t, MismatchStatus, mismatches[0].Kind)
}

func TestHandleApproved(t *testing.T) {
	g := approvedGRN()
	grns := &stubGRNs{grns: map[int64]grn.GRN{g.ID: g}}
	job := newJob(grns, &stubLedger{movements: map[string][]inventory.Movement{}})

	task, err := NewGRNApprovedTask(grn.ApprovedEvent{GRNID: g.ID, Number: g.Number})
	require.NoError(t, err)
	require.Equal(t, TaskGRNApproved, task.Type())
	require.NoError(t, job.HandleApproved(context.Background(), task))

	missing, err := NewGRNApprovedTask(grn.ApprovedEvent{GRNID: 404})
	require.NoError(t, err)
	require.ErrorIs(t, job.HandleApproved(context.Background(), missing), asynq.SkipRetry)

	require.ErrorIs(t, job.HandleApproved(context.Background(), asynq.NewTask(TaskGRNApproved, []byte("{"))), asynq.SkipRetry)
}

func TestHandleApprovedPropagatesLedgerErrors(t *testing.T) {
	g := approvedGRN()
	boom := errors.New("ledger down")
	job := newJob(&stubGRNs{grns: map[int64]grn.GRN{g.ID: g}}, &stubLedger{err: boom})

	payload, err := json.Marshal(grn.ApprovedEvent{GRNID: g.ID, Number: g.Number})
	require.NoError(t, err)
	require.ErrorIs(t, job.HandleApproved(context.Background(), asynq.NewTask(TaskGRNApproved, payload)), boom)
}

func TestHandleScanUsesTrailingWindow(t *testing.T) {
	g := approvedGRN()
	pending := grn.GRN{ID: 8, Number: "GRN-202603-000008", Status: grn.StatusPending}
	grns := &stubGRNs{grns: map[int64]grn.GRN{g.ID: g, pending.ID: pending}}
	job := newJob(grns, &stubLedger{movements: map[string][]inventory.Movement{g.Number: {
		receipt(g, 70, "BOLT", 1, "", "7"),
		receipt(g, 71, "NUT", 1, "B1", "5"),
	}}})

	task, err := NewGRNIntegrityScanTask(0)
	require.NoError(t, err)
	require.NoError(t, job.HandleScan(context.Background(), task))
	require.Equal(t, time.Date(2026, 3, 7, 2, 0, 0, 0, time.UTC), grns.since)

	task, err = NewGRNIntegrityScanTask(30)
	require.NoError(t, err)
	require.NoError(t, job.HandleScan(context.Background(), task))
	require.Equal(t, time.Date(2026, 2, 8, 2, 0, 0, 0, time.UTC), grns.since)
}

func TestHandleScanCollectsErrors(t *testing.T) {
	g := approvedGRN()
	boom := errors.New("ledger down")
	job := newJob(&stubGRNs{grns: map[int64]grn.GRN{g.ID: g}}, &stubLedger{err: boom})
	require.ErrorIs(t, job.HandleScan(context.Background(), asynq.NewTask(TaskGRNIntegrityScan, nil)), boom)

	listErr := errors.New("db down")
	job = newJob(&stubGRNs{listErr: listErr}, &stubLedger{})
	require.ErrorIs(t, job.HandleScan(context.Background(), asynq.NewTask(TaskGRNIntegrityScan, nil)), listErr)
}
