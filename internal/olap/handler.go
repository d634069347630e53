package olap

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pulse-erp/fulfillment/internal/httpx"
)

type Handler struct {
	Store Store
}

func (h *Handler) Register(r *chi.Mux) {
	r.Get("/sales/hourly", h.salesHourly)
	r.Get("/inventory/low-stock", h.lowStock)
	r.Get("/ar/overdue", h.overdueAR)
	r.Get("/orders/daily", h.dailyOrders)
}

// windowParam parses an integer query param and clamps it to [1, max].
func windowParam(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func (h *Handler) salesHourly(w http.ResponseWriter, r *http.Request) {
	hours := windowParam(r, "hours", 24, 168)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Store.SalesHourly(ctx, hours)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, httpx.KindInternal, "query hourly sales")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"hours": hours, "buckets": rows})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Store.LowStock(ctx)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, httpx.KindInternal, "query low stock")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (h *Handler) overdueAR(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Store.OverdueAR(ctx)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, httpx.KindInternal, "query overdue receivables")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"customers": rows})
}

func (h *Handler) dailyOrders(w http.ResponseWriter, r *http.Request) {
	days := windowParam(r, "days", 30, 365)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Store.DailyOrders(ctx, days)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, httpx.KindInternal, "query daily orders")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"days": days, "buckets": rows})
}
