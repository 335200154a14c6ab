package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/spreadapi/internal/domain"
)

// ExchangeService lists exchange reference data.
type ExchangeService interface {
	Exchanges(ctx context.Context) ([]domain.Exchange, error)
}

// ExchangeHandler serves GET /exchanges.
type ExchangeHandler struct {
	exchanges ExchangeService
	logger    *slog.Logger
}

// NewExchangeHandler creates an ExchangeHandler.
func NewExchangeHandler(exchanges ExchangeService, logger *slog.Logger) *ExchangeHandler {
	return &ExchangeHandler{exchanges: exchanges, logger: logger}
}

// ListExchanges returns every known exchange ordered by id.
// GET /exchanges
func (h *ExchangeHandler) ListExchanges(w http.ResponseWriter, r *http.Request) {
	list, err := h.exchanges.Exchanges(r.Context())
	if err != nil {
		writeFailure(w, r, h.logger, err, "exchange not found")
		return
	}
	if list == nil {
		list = []domain.Exchange{}
	}
	writeJSON(w, http.StatusOK, list)
}
