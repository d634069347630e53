package billing

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pulse-erp/fulfillment/internal/httpx"
)

type Handler struct {
	Service *Service
}

func (h *Handler) Register(r *chi.Mux) {
	r.Get("/billing/invoices", h.list)
	r.Get("/billing/invoices/{id}", h.get)
	r.Post("/billing/invoices/{id}/pay", h.pay)
	r.Post("/billing/invoices/{id}/cancel", h.cancel)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Service.Store.ListInvoices(ctx, r.URL.Query().Get("order_id"))
	if err != nil {
		writeBillingError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	inv, err := h.Service.Store.GetInvoice(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeBillingError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, inv)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	inv, err := h.Service.MarkPaid(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeBillingError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, inv)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	inv, err := h.Service.Cancel(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeBillingError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, inv)
}

func writeBillingError(w http.ResponseWriter, err error) {
	var invalid *InvalidStateError
	switch {
	case errors.As(err, &invalid):
		httpx.WriteError(w, http.StatusConflict, httpx.KindInvalidState, invalid.Error())
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.KindNotFound, err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, httpx.KindInternal, err.Error())
	}
}
