package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/pulse-erp/fulfillment/internal/httpx"
)

type Handler struct {
	Service *Service
}

func (h *Handler) Register(r *chi.Mux) {
	r.Get("/inventory", h.list)
	r.Post("/inventory", h.upsertProduct)
	r.Get("/inventory/{sku}", h.get)
	r.Patch("/inventory/{sku}/adjust-stock", h.adjustStock)
	r.Post("/inventory/{sku}/reserve", h.reserve)
	r.Post("/inventory/{sku}/release", h.release)
}

type upsertProductReq struct {
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	QtyOnHand    int             `json:"qty_on_hand"`
	ReservedQty  int             `json:"reserved_qty"`
	ReorderPoint int             `json:"reorder_point"`
}

type recordResp struct {
	SKU          string    `json:"sku"`
	QtyOnHand    int       `json:"qty_on_hand"`
	ReservedQty  int       `json:"reserved_qty"`
	ReorderPoint int       `json:"reorder_point"`
	AvailableQty int       `json:"available_qty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toRecordResp(rec Record) recordResp {
	return recordResp{
		SKU:          rec.SKU,
		QtyOnHand:    rec.QtyOnHand,
		ReservedQty:  rec.ReservedQty,
		ReorderPoint: rec.ReorderPoint,
		AvailableQty: rec.Available(),
		UpdatedAt:    rec.UpdatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.Service.List(ctx)
	if err != nil {
		writeStockError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) upsertProduct(w http.ResponseWriter, r *http.Request) {
	var req upsertProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "invalid json")
		return
	}
	if req.SKU == "" || req.Name == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "sku and name are required")
		return
	}
	if req.Price.IsNegative() {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "price must be non-negative")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, rec, err := h.Service.UpsertProduct(ctx,
		Product{SKU: req.SKU, Name: req.Name, Description: req.Description, Price: req.Price},
		Record{SKU: req.SKU, QtyOnHand: req.QtyOnHand, ReservedQty: req.ReservedQty, ReorderPoint: req.ReorderPoint},
	)
	if err != nil {
		writeStockError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, ProductStock{Product: p, Inventory: &rec})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rec, err := h.Service.Get(ctx, chi.URLParam(r, "sku"))
	if err != nil {
		writeStockError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toRecordResp(rec))
}

type adjustStockReq struct {
	Adjustment int `json:"adjustment"`
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Service.AdjustStock(ctx, chi.URLParam(r, "sku"), req.Adjustment)
	if err != nil {
		writeStockError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toRecordResp(rec))
}

type reserveReq struct {
	OrderID string `json:"order_id"`
	Qty     int    `json:"qty"`
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "invalid json")
		return
	}
	if req.OrderID == "" || req.Qty <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "order_id and positive qty are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Service.Reserve(ctx, chi.URLParam(r, "sku"), req.OrderID, req.Qty)
	if err != nil {
		writeStockError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toRecordResp(rec))
}

type releaseReq struct {
	OrderID string `json:"order_id"`
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	var req releaseReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "invalid json")
		return
	}
	if req.OrderID == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.KindValidation, "order_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Service.Release(ctx, chi.URLParam(r, "sku"), req.OrderID)
	if err != nil {
		writeStockError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toRecordResp(rec))
}

func writeStockError(w http.ResponseWriter, err error) {
	var insufficient *InsufficientStockError
	var negative *NegativeStockError
	switch {
	case errors.As(err, &insufficient):
		httpx.WriteError(w, http.StatusConflict, httpx.KindInsufficientStock, insufficient.Error())
	case errors.As(err, &negative):
		httpx.WriteError(w, http.StatusUnprocessableEntity, httpx.KindNegativeStock, negative.Error())
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.KindNotFound, err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, httpx.KindInternal, err.Error())
	}
}
