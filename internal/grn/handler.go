package grn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-grn/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-grn/internal/rbac"
	"github.com/odyssey-erp/odyssey-grn/internal/shared"
)

// Handler wires HTTP endpoints for the GRN workflow.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs the GRN handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers GRN routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermGRNView))
		r.Get("/{id}", h.handleGet)
		r.Get("/{id}/logs", h.handleLogs)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermGRNReceive))
		r.Post("/", h.handleCreate)
		r.Delete("/{id}", h.handleDelete)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermGRNInspect))
		r.Post("/{id}/start-inspection", h.handleStartInspection)
		r.Post("/{id}/items/{itemID}/inspect", h.handleInspect)
		r.Post("/{id}/submit", h.handleSubmit)
	})
	r.With(h.rbac.RequireAny(shared.PermGRNInspect, shared.PermGRNInventory)).Post("/{id}/reject", h.handleReject)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermGRNInventory))
		r.Post("/{id}/send-back", h.handleSendBack)
		r.Post("/{id}/inventory-approve", h.handleInventoryApprove)
	})
}

var errorMappings = []httpx.Mapping{
	{Target: ErrNotFound, Status: http.StatusNotFound, Title: "Not Found", Kind: "not_found"},
	{Target: ErrInvalidState, Status: http.StatusConflict, Title: "Invalid State", Kind: "invalid_state"},
	{Target: ErrConcurrentUpdate, Status: http.StatusConflict, Title: "Conflict", Kind: "concurrent_update"},
	{Target: ErrMissingActor, Status: http.StatusUnauthorized, Title: "Unauthorized", Kind: "missing_actor"},
	{Target: ErrInvalidQuantity, Status: http.StatusUnprocessableEntity, Title: "Invalid Quantity", Kind: "invalid_quantity"},
	{Target: ErrMissingReason, Status: http.StatusUnprocessableEntity, Title: "Missing Reason", Kind: "missing_reason"},
	{Target: ErrUnresolvedWarehouse, Status: http.StatusUnprocessableEntity, Title: "Unresolved Warehouse", Kind: "unresolved_warehouse"},
	{Target: ErrPostingFailure, Status: http.StatusBadGateway, Title: "Stock Posting Failed", Kind: "posting_failure"},
	{Target: ErrValidation, Status: http.StatusUnprocessableEntity, Title: "Validation Failed", Kind: "validation"},
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.validate(req); err != nil {
		h.respondError(w, r, err)
		return
	}
	g, err := h.service.CreateGRN(r.Context(), actorFrom(r), req.toInput())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toGRNResponse(g))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	g, err := h.service.GetGRN(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toGRNResponse(g))
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	entries, err := h.service.ListAuditLog(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"logs": toAuditResponses(entries)})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteGRN(r.Context(), id, actorFrom(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStartInspection(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.StartInspection)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.SubmitForInventoryApproval)
}

func (h *Handler) handleInventoryApprove(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.InventoryApprove)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.handleReasonTransition(w, r, h.service.Reject)
}

func (h *Handler) handleSendBack(w http.ResponseWriter, r *http.Request) {
	h.handleReasonTransition(w, r, h.service.SendBack)
}

func (h *Handler) handleInspect(w http.ResponseWriter, r *http.Request) {
	grnID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := h.pathID(w, r, "itemID")
	if !ok {
		return
	}
	var req inspectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.validate(req); err != nil {
		h.respondError(w, r, err)
		return
	}
	item, err := h.service.RecordItemInspection(r.Context(), grnID, itemID, actorFrom(r), InspectionInput{
		AcceptedQty: req.AcceptedQty,
		RejectedQty: req.RejectedQty,
		QCChecks:    req.QCChecks,
		Notes:       req.Notes,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

type transitionFunc func(ctx context.Context, id int64, actor shared.Actor) (GRN, error)

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	g, err := fn(r.Context(), id, actorFrom(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toGRNResponse(g))
}

type reasonTransitionFunc func(ctx context.Context, id int64, actor shared.Actor, reason string) (GRN, error)

func (h *Handler) handleReasonTransition(w http.ResponseWriter, r *http.Request, fn reasonTransitionFunc) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			h.respondError(w, r, err)
			return
		}
		if err := h.validate(req); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	g, err := fn(r.Context(), id, actorFrom(r), req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toGRNResponse(g))
}

func (h *Handler) validate(v any) error {
	err := h.validator.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fieldErr := range verrs {
		fields = append(fields, fieldErr.Namespace()+" "+fieldErr.Tag())
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, ", "))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := ErrorKind(err)
	if (kind == "internal" && !errors.Is(err, httpx.ErrBadRequest)) || kind == "posting_failure" {
		h.logger.Error("grn request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondErrorWith(w, err, errorDetails(err), errorMappings...)
}

func actorFrom(r *http.Request) shared.Actor {
	actor, _ := shared.ActorFromContext(r.Context())
	return actor
}
