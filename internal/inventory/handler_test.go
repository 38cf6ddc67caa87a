package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-grn/internal/rbac"
	"github.com/odyssey-erp/odyssey-grn/internal/shared"
)

func newHandlerRouter(t *testing.T, svc *Service, perms ...string) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			actor := shared.Actor{ID: "u-1", Permissions: perms}
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), actor)))
		})
	})
	r.Route("/inventory", NewHandler(nil, svc, rbac.Middleware{}).MountRoutes)
	return r
}

func TestHandlerBalanceAndStockCard(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	_, err := svc.PostReceipt(context.Background(), ReceiptInput{
		RefModule: "grn",
		Reference: "GRN-202603-000001",
		Lines:     []ReceiptLine{{LineKey: "1", ItemCode: "BOLT", WarehouseID: 2, Qty: decimal.RequireFromString("7")}},
	})
	require.NoError(t, err)
	h := newHandlerRouter(t, svc, shared.PermInventoryView)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/balances?item_code=BOLT&warehouse_id=2", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var bal balanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bal))
	require.Equal(t, "7", bal.Qty)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/stock-card?item_code=BOLT&warehouse_id=2", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var card struct {
		Entries []movementResponse `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	require.Len(t, card.Entries, 1)
	require.Equal(t, "GRN-202603-000001:1", card.Entries[0].Code)
}

func TestHandlerRejectsBadQueries(t *testing.T) {
	h := newHandlerRouter(t, NewService(newMemoryRepo(), nil, nil), shared.PermInventoryView)

	for _, path := range []string{
		"/inventory/balances?warehouse_id=2",
		"/inventory/balances?item_code=BOLT&warehouse_id=x",
		"/inventory/stock-card?item_code=BOLT&warehouse_id=2&from=03-01-2026",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, path)
	}

	denied := newHandlerRouter(t, NewService(newMemoryRepo(), nil, nil), shared.PermGRNView)
	rec := httptest.NewRecorder()
	denied.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/balances?item_code=BOLT&warehouse_id=2", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
}
