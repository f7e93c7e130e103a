package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
)

type errorResp struct {
	Error     string `json:"error"`
	ProductID int64  `json:"product_id,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the order error taxonomy onto HTTP. Unexpected faults are
// logged and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var stock *orders.InsufficientStockError
	switch {
	case errors.As(err, &stock):
		available := stock.Available
		writeJSON(w, http.StatusConflict, errorResp{
			Error:     "insufficient stock",
			ProductID: stock.ProductID,
			Requested: stock.Requested,
			Available: &available,
		})
	case errors.Is(err, orders.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
	case errors.Is(err, orders.ErrProductNotFound), errors.Is(err, orders.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorResp{Error: err.Error()})
	case errors.Is(err, orders.ErrInvalidStatus):
		writeJSON(w, http.StatusUnprocessableEntity, errorResp{Error: err.Error()})
	case errors.Is(err, orders.ErrTransitionInProgress), errors.Is(err, orders.ErrVersionConflict),
		errors.Is(err, redisx.ErrIdempotencyPending):
		writeJSON(w, http.StatusConflict, errorResp{Error: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		log.WarnContext(r.Context(), "request timed out", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusGatewayTimeout, errorResp{Error: "timeout"})
	default:
		log.ErrorContext(r.Context(), "internal error", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: "internal error"})
	}
}
