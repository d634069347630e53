package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pulse-erp/fulfillment/internal/httpx"
	"github.com/pulse-erp/fulfillment/internal/inventory"
)

type Handler struct {
	Repo        *Repo
	Coordinator *Coordinator
}

func (h *Handler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Patch("/orders/{id}", h.updateStatus)
}

type createOrderReq struct {
	CustomerID string      `json:"customer_id"`
	Items      []ItemInput `json:"items"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "invalid json")
		return
	}
	if req.CustomerID == "" || len(req.Items) == 0 {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "customer_id and at least one item are required")
		return
	}
	for _, it := range req.Items {
		if it.SKU == "" || it.Qty <= 0 || it.Price.IsNegative() {
			httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "each item needs a sku, positive qty and non-negative price")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Repo.CreateOrder(ctx, req.CustomerID, req.Items)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Repo.ListOrders(ctx)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Repo.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}

type statusUpdateReq struct {
	Status Status `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "invalid json")
		return
	}
	if !ValidStatus(req.Status) {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "unknown status")
		return
	}

	// place fans out to inventory; give the saga room beyond a single call
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.Coordinator.Transition(ctx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	// transitions on the coordinator return the order without items
	if o.Items == nil {
		if full, err := h.Repo.GetOrder(ctx, o.ID); err == nil {
			o = full
		}
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}

func writeOrderError(w http.ResponseWriter, err error) {
	var transition *InvalidTransitionError
	var insufficient *inventory.InsufficientStockError
	switch {
	case errors.As(err, &transition):
		httpx.WriteError(w, http.StatusConflict, httpx.KindInvalidTransition, transition.Error())
	case errors.As(err, &insufficient):
		httpx.WriteError(w, http.StatusConflict, httpx.KindInsufficientStock, err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.KindNotFound, err.Error())
	case errors.Is(err, inventory.ErrNotFound):
		httpx.WriteError(w, http.StatusConflict, httpx.KindNotFound, err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, httpx.KindInternal, err.Error())
	}
}
