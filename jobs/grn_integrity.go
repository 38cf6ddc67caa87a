package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-grn/internal/grn"
	"github.com/odyssey-erp/odyssey-grn/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-grn/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Mismatch kinds reported by the integrity check.
const (
	MismatchStatus     = "status"
	MismatchMissing    = "missing_movement"
	MismatchQuantity   = "quantity"
	MismatchLocation   = "location"
	MismatchUnexpected = "unexpected_movement"
)

// GRNReader loads GRNs for verification.
type GRNReader interface {
	GetGRN(ctx context.Context, id int64) (grn.GRN, error)
	ListApprovedSince(ctx context.Context, since time.Time) ([]grn.GRN, error)
}

// LedgerReader lists the movements posted for a document.
type LedgerReader interface {
	MovementsForReference(ctx context.Context, refModule, reference string) ([]inventory.Movement, error)
}

// Mismatch is one disagreement between a GRN and the item ledger.
type Mismatch struct {
	GRNID    int64
	Number   string
	ItemID   int64
	ItemCode string
	Code     string
	Kind     string
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

// IntegrityJob checks that every approved GRN has exactly one receipt movement per accepted
// item, carrying the accepted quantity into the item's warehouse and batch.
type IntegrityJob struct {
	GRNs    GRNReader
	Ledger  LedgerReader
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Days    int
	clock   func() time.Time
}

// NewIntegrityJob wires dependencies for the GRN integrity handlers.
func NewIntegrityJob(grns GRNReader, ledger LedgerReader, logger *slog.Logger, metrics *jobmetrics.Metrics, days int) *IntegrityJob {
	return &IntegrityJob{
		GRNs:    grns,
		Ledger:  ledger,
		Logger:  logger,
		Metrics: metrics,
		Days:    days,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Check compares one GRN against its ledger movements.
func (j *IntegrityJob) Check(ctx context.Context, g grn.GRN) ([]Mismatch, error) {
	if g.Status != grn.StatusApproved {
		return []Mismatch{{GRNID: g.ID, Number: g.Number, Kind: MismatchStatus}}, nil
	}
	movements, err := j.Ledger.MovementsForReference(ctx, grn.RefModule, g.Number)
	if err != nil {
		return nil, fmt.Errorf("list movements for %s: %w", g.Number, err)
	}
	byCode := make(map[string]inventory.Movement, len(movements))
	for _, m := range movements {
		if m.Type == inventory.TransactionTypeReceipt {
			byCode[m.Code] = m
		}
	}

	var out []Mismatch
	for _, item := range g.Items {
		if !item.AcceptedQty.IsPositive() {
			continue
		}
		code := inventory.MovementCode(g.Number, grn.LineKey(item.ID))
		base := Mismatch{GRNID: g.ID, Number: g.Number, ItemID: item.ID, ItemCode: item.ItemCode, Code: code, Expected: item.AcceptedQty}
		m, ok := byCode[code]
		if !ok {
			base.Kind = MismatchMissing
			out = append(out, base)
			continue
		}
		delete(byCode, code)
		base.Actual = m.Qty
		switch {
		case !m.Qty.Equal(item.AcceptedQty):
			base.Kind = MismatchQuantity
		case m.ItemCode != item.ItemCode || m.WarehouseID != item.WarehouseID || m.BatchNo != item.BatchNo:
			base.Kind = MismatchLocation
		default:
			continue
		}
		out = append(out, base)
	}

	leftover := make([]string, 0, len(byCode))
	for code := range byCode {
		leftover = append(leftover, code)
	}
	sort.Strings(leftover)
	for _, code := range leftover {
		m := byCode[code]
		out = append(out, Mismatch{GRNID: g.ID, Number: g.Number, ItemCode: m.ItemCode, Code: code, Kind: MismatchUnexpected, Actual: m.Qty})
	}
	return out, nil
}

// HandleApproved verifies a GRN right after its approval was committed.
func (j *IntegrityJob) HandleApproved(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil {
		return errors.New("grn integrity: handler not configured")
	}
	var evt grn.ApprovedEvent
	if err := json.Unmarshal(t.Payload(), &evt); err != nil || evt.GRNID <= 0 {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskGRNApproved)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger(TaskGRNApproved).With(slog.Int64("grn_id", evt.GRNID), slog.String("grn_no", evt.Number))
	g, err := j.GRNs.GetGRN(ctx, evt.GRNID)
	if errors.Is(err, grn.ErrNotFound) {
		logger.Warn("approved grn not found")
		return fmt.Errorf("grn %d: %w", evt.GRNID, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	mismatches, err := j.Check(ctx, g)
	if err != nil {
		return err
	}
	j.report(logger, mismatches)
	logger.Info("grn approval verified", slog.Int("lines", len(evt.Lines)), slog.Int("mismatches", len(mismatches)))
	return nil
}

// HandleScan verifies every GRN approved within the trailing window.
func (j *IntegrityJob) HandleScan(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil {
		return errors.New("grn integrity: handler not configured")
	}
	var payload IntegrityScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	days := payload.Days
	if days <= 0 {
		days = j.Days
	}
	if days <= 0 {
		days = 7
	}

	start := j.now()
	tracker := j.metrics().Track(TaskGRNIntegrityScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	logger := j.logger(TaskGRNIntegrityScan).With(slog.Int("days", days))
	logger.Info("starting grn integrity scan")

	headers, err := j.GRNs.ListApprovedSince(ctx, start.AddDate(0, 0, -days))
	if err != nil {
		logger.Error("list approved grns", slog.Any("error", err))
		return err
	}
	var (
		total int
		errs  []error
	)
	for _, h := range headers {
		if err := ctx.Err(); err != nil {
			return err
		}
		g, err := j.GRNs.GetGRN(ctx, h.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("load grn %d: %w", h.ID, err))
			continue
		}
		mismatches, err := j.Check(ctx, g)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		j.report(logger, mismatches)
		total += len(mismatches)
	}

	logger.Info("completed grn integrity scan",
		slog.Int("grns", len(headers)),
		slog.Int("mismatches", total),
		slog.Int("errors", len(errs)),
		slog.Duration("duration", time.Since(start)),
	)
	return errors.Join(errs...)
}

func (j *IntegrityJob) report(logger *slog.Logger, mismatches []Mismatch) {
	for _, m := range mismatches {
		logger.Warn("grn ledger mismatch",
			slog.Int64("grn_id", m.GRNID),
			slog.String("grn_no", m.Number),
			slog.Int64("item_id", m.ItemID),
			slog.String("item_code", m.ItemCode),
			slog.String("movement_code", m.Code),
			slog.String("kind", m.Kind),
			slog.String("expected", m.Expected.String()),
			slog.String("actual", m.Actual.String()),
		)
		j.metrics().AddMismatches(m.Kind, 1)
	}
}

func (j *IntegrityJob) logger(job string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}

func (j *IntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *IntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
