package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-grn/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-grn/internal/rbac"
	"github.com/odyssey-erp/odyssey-grn/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermInventoryView))
		r.Get("/balances", h.handleBalance)
		r.Get("/stock-card", h.handleStockCard)
	})
}

var errorMappings = []httpx.Mapping{
	{Target: ErrItemRequired, Status: http.StatusBadRequest, Title: "Bad Request", Kind: "validation"},
	{Target: ErrWarehouseRequired, Status: http.StatusBadRequest, Title: "Bad Request", Kind: "validation"},
}

type balanceResponse struct {
	ItemCode    string    `json:"item_code"`
	WarehouseID int64     `json:"warehouse_id"`
	BatchNo     string    `json:"batch_no"`
	Qty         string    `json:"qty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

type movementResponse struct {
	ID         int64     `json:"id"`
	Code       string    `json:"code"`
	Type       string    `json:"type"`
	Qty        string    `json:"qty"`
	BalanceQty string    `json:"balance_qty"`
	RefModule  string    `json:"ref_module"`
	Reference  string    `json:"reference"`
	Note       string    `json:"note,omitempty"`
	ActorID    string    `json:"actor_id"`
	PostedAt   time.Time `json:"posted_at"`
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	key, err := parseStockKey(r)
	if err != nil {
		httpx.RespondError(w, err, errorMappings...)
		return
	}
	bal, err := h.service.GetBalance(r.Context(), key)
	if err != nil {
		h.logger.Error("get balance", slog.Any("error", err))
		httpx.RespondError(w, err, errorMappings...)
		return
	}
	httpx.JSON(w, http.StatusOK, balanceResponse{
		ItemCode:    bal.ItemCode,
		WarehouseID: bal.WarehouseID,
		BatchNo:     bal.BatchNo,
		Qty:         bal.Qty.String(),
		UpdatedAt:   bal.UpdatedAt,
	})
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	key, err := parseStockKey(r)
	if err != nil {
		httpx.RespondError(w, err, errorMappings...)
		return
	}
	filter := StockCardFilter{StockKey: key, Limit: 500}
	q := r.URL.Query()
	if from := q.Get("from"); from != "" {
		if filter.From, err = time.Parse("2006-01-02", from); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid from date")
			return
		}
	}
	if to := q.Get("to"); to != "" {
		if filter.To, err = time.Parse("2006-01-02", to); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid to date")
			return
		}
		// end of day
		filter.To = filter.To.Add(24*time.Hour - time.Nanosecond)
	}
	entries, err := h.service.GetStockCard(r.Context(), filter)
	if err != nil {
		h.logger.Error("get stock card", slog.Any("error", err))
		httpx.RespondError(w, err, errorMappings...)
		return
	}
	out := make([]movementResponse, 0, len(entries))
	for _, mv := range entries {
		out = append(out, movementResponse{
			ID:         mv.ID,
			Code:       mv.Code,
			Type:       string(mv.Type),
			Qty:        mv.Qty.String(),
			BalanceQty: mv.BalanceQty.String(),
			RefModule:  mv.RefModule,
			Reference:  mv.Reference,
			Note:       mv.Note,
			ActorID:    mv.ActorID,
			PostedAt:   mv.PostedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out})
}

func parseStockKey(r *http.Request) (StockKey, error) {
	q := r.URL.Query()
	key := StockKey{ItemCode: q.Get("item_code"), BatchNo: q.Get("batch_no")}
	if raw := q.Get("warehouse_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return StockKey{}, errors.Join(httpx.ErrBadRequest, ErrWarehouseRequired)
		}
		key.WarehouseID = id
	}
	return key, nil
}
