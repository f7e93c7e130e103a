package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"
)

type orderService interface {
	Place(ctx context.Context, req orders.PlaceRequest) (*orders.Placement, error)
	ApplyStatus(ctx context.Context, req orders.StatusChange) (*orders.Transition, error)
	GetOrder(ctx context.Context, id int64) (*orders.OrderDetail, error)
	GetOrderByNumber(ctx context.Context, number string) (*orders.OrderDetail, error)
	ListProducts(ctx context.Context) ([]orders.Product, error)
}

type OrdersHandler struct {
	Orders orderService
	Idem   *redisx.Idempotency // optional
	Cache  *redisx.StatusCache // optional
	Log    *slog.Logger

	reads singleflight.Group
}

type PlaceOrderReq struct {
	Items         []orders.ItemInput `json:"items"`
	PaymentMethod string             `json:"payment_method"`
	Customer      orders.Customer    `json:"customer"`
	Shipping      orders.Shipping    `json:"shipping"`
}

type PlaceOrderResp struct {
	Order      orders.Order       `json:"order"`
	Items      []orders.OrderItem `json:"items"`
	Warnings   []string           `json:"warnings,omitempty"`
	Idempotent bool               `json:"idempotent"`
}

type ChangeStatusReq struct {
	Status         string `json:"status"`
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.placeOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Patch("/orders/{id}/status", h.changeStatus)
	r.Get("/orders/by-number/{number}", h.getOrderByNumber)
	r.Get("/products", h.listProducts)
}

func (h *OrdersHandler) log() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid json"})
		return
	}
	ctx := r.Context()

	in := orders.PlaceRequest{
		Items:         req.Items,
		PaymentMethod: req.PaymentMethod,
		Customer:      req.Customer,
		Shipping:      req.Shipping,
	}
	if id, ok := IdentityFrom(ctx); ok {
		in.UserID = id.UserID
		if in.Customer.Email == "" {
			in.Customer.Email = id.Email
		}
		if in.Customer.Name == "" {
			in.Customer.Name = id.Name
		}
	}

	// The key is claimed before placing so concurrent retries place once.
	idemKey := r.Header.Get("Idempotency-Key")
	claimed := false
	if idemKey != "" && h.Idem != nil {
		idemKey = in.UserID + ":" + idemKey
		orderID, done, err := h.Idem.Claim(ctx, idemKey)
		switch {
		case errors.Is(err, redisx.ErrIdempotencyPending):
			writeError(w, r, h.log(), err)
			return
		case err != nil:
			h.log().WarnContext(ctx, "idempotency claim failed", "error", err)
		case done:
			d, err := h.Orders.GetOrder(ctx, orderID)
			if err != nil {
				writeError(w, r, h.log(), err)
				return
			}
			writeJSON(w, http.StatusOK, PlaceOrderResp{Order: d.Order, Items: d.Items, Idempotent: true})
			return
		default:
			claimed = true
		}
	}

	p, err := h.Orders.Place(ctx, in)
	ictx := context.WithoutCancel(ctx)
	if err != nil {
		if claimed {
			if ferr := h.Idem.Forget(ictx, idemKey); ferr != nil {
				h.log().WarnContext(ctx, "idempotency release failed", "error", ferr)
			}
		}
		writeError(w, r, h.log(), err)
		return
	}
	if claimed {
		if err := h.Idem.Remember(ictx, idemKey, p.Order.ID); err != nil {
			h.log().WarnContext(ctx, "idempotency store failed", "order_id", p.Order.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusCreated, PlaceOrderResp{Order: p.Order, Items: p.Items, Warnings: p.Warnings})
}

func orderIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad order id", orders.ErrInvalidRequest)
	}
	return id, nil
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	// concurrent reads of one order share a single store round trip
	v, err, _ := h.reads.Do(strconv.FormatInt(id, 10), func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 3*time.Second)
		defer cancel()
		return h.Orders.GetOrder(ctx, id)
	})
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, v.(*orders.OrderDetail))
}

func (h *OrdersHandler) getOrderByNumber(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	d, err := h.Orders.GetOrderByNumber(ctx, chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) cache
	if h.Cache != nil {
		cs, err := h.Cache.Get(ctx, id)
		if err == nil {
			writeJSON(w, http.StatusOK, cs)
			return
		}
		if !errors.Is(err, redisx.ErrCacheMiss) {
			h.log().WarnContext(ctx, "status cache read failed", "order_id", id, "error", err)
		}
	}

	// 2) fallback to the store
	d, err := h.Orders.GetOrder(ctx, id)
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	cs := redisx.CachedStatus{OrderID: id, Status: string(d.Order.Status), UpdatedAt: d.Order.UpdatedAt}
	if h.Cache != nil {
		_ = h.Cache.Put(ctx, id, cs.Status, cs.UpdatedAt)
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *OrdersHandler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	var req ChangeStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	t, err := h.Orders.ApplyStatus(ctx, orders.StatusChange{
		OrderID:        id,
		Status:         req.Status,
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Orders.ListProducts(ctx)
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}
