package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/go-stock/internal/httpx"
	"github.com/diewo77/go-stock/internal/services"
	"github.com/diewo77/go-stock/internal/validation"
	"go.uber.org/zap"
)

// retryAfterSeconds is sent with 503 responses for busy storage.
const retryAfterSeconds = 1

// writeError maps the service error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var (
		ise *services.InsufficientStockError
		ite *services.IllegalTransitionError
	)
	switch {
	case errors.Is(err, httpx.ErrBadJSON):
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
	case errors.As(err, &ise):
		httpx.JSONError(w, http.StatusUnprocessableEntity, "insufficient_stock", map[string]any{
			"message":      ise.Error(),
			"product_id":   ise.ProductID,
			"product_name": ise.ProductName,
			"available":    ise.Available,
			"requested":    ise.Requested,
		})
	case errors.As(err, &ite):
		httpx.JSONError(w, http.StatusConflict, "illegal_transition", map[string]string{
			"from": string(ite.From),
			"to":   string(ite.To),
		})
	case errors.Is(err, services.ErrAlreadyFulfilled):
		httpx.JSONError(w, http.StatusConflict, "already_fulfilled", err.Error())
	case errors.Is(err, services.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, services.ErrInvalidInput):
		httpx.JSONError(w, http.StatusUnprocessableEntity, "invalid_input", err.Error())
	case errors.Is(err, services.ErrConflict):
		httpx.JSONError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, services.ErrStorageBusy):
		log.Warn("storage busy", zap.Error(err))
		httpx.Busy(w, retryAfterSeconds, "storage_busy")
	default:
		log.Error("request failed", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "storage_failure", nil)
	}
}

func writeViolations(w http.ResponseWriter, v validation.Violations) {
	httpx.JSONError(w, http.StatusUnprocessableEntity, "invalid_input", v)
}
