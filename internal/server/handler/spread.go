package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/spreadapi/internal/domain"
)

// SpreadService defines the methods that the spread handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type SpreadService interface {
	List(ctx context.Context, q domain.SpreadQuery) (domain.SpreadPage, error)
	Get(ctx context.Context, id string) (domain.Spread, error)
	Create(ctx context.Context, in domain.SpreadInput) (domain.Spread, error)
	Update(ctx context.Context, id string, patch domain.SpreadPatch) (domain.Spread, error)
	Delete(ctx context.Context, id string) error
}

// SpreadHandler serves the /spreads resource.
type SpreadHandler struct {
	spreads SpreadService
	logger  *slog.Logger
}

// NewSpreadHandler creates a SpreadHandler with the given service and logger.
func NewSpreadHandler(spreads SpreadService, logger *slog.Logger) *SpreadHandler {
	return &SpreadHandler{spreads: spreads, logger: logger}
}

// listSpreadsResponse wraps one page with its window and the total match count.
type listSpreadsResponse struct {
	Spreads []domain.Spread `json:"spreads"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

const spreadNotFound = "spread not found"

// ListSpreads returns a filtered, sorted page of spreads.
// GET /spreads?base=ETH&exchanges=okx,binance&sort_by=liquidity&order_by=desc&limit=20
func (h *SpreadHandler) ListSpreads(w http.ResponseWriter, r *http.Request) {
	q, err := parseSpreadQuery(r.URL.Query())
	if err != nil {
		writeFailure(w, r, h.logger, err, spreadNotFound)
		return
	}

	page, err := h.spreads.List(r.Context(), q)
	if err != nil {
		writeFailure(w, r, h.logger, err, spreadNotFound)
		return
	}

	items := page.Items
	if items == nil {
		items = []domain.Spread{}
	}
	writeJSON(w, http.StatusOK, listSpreadsResponse{
		Spreads: items,
		Total:   page.Total,
		Limit:   q.Limit,
		Offset:  q.Offset,
	})
}

// GetSpread returns a single spread.
// GET /spreads/{id}
func (h *SpreadHandler) GetSpread(w http.ResponseWriter, r *http.Request) {
	sp, err := h.spreads.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeFailure(w, r, h.logger, err, spreadNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// CreateSpread stores a new spread and returns it with its assigned id.
// POST /spreads
func (h *SpreadHandler) CreateSpread(w http.ResponseWriter, r *http.Request) {
	var in domain.SpreadInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeFailure(w, r, h.logger, err, spreadNotFound)
		return
	}

	sp, err := h.spreads.Create(r.Context(), in)
	if err != nil {
		writeFailure(w, r, h.logger, err, spreadNotFound)
		return
	}
	w.Header().Set("Location", "/spreads/"+sp.ID)
	writeJSON(w, http.StatusCreated, sp)
}

// UpdateSpread applies the fields present in the body.
// PUT /spreads/{id}
func (h *SpreadHandler) UpdateSpread(w http.ResponseWriter, r *http.Request) {
	var patch domain.SpreadPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeFailure(w, r, h.logger, err, spreadNotFound)
		return
	}

	sp, err := h.spreads.Update(r.Context(), pathParam(r, "id"), patch)
	if err != nil {
		writeFailure(w, r, h.logger, err, spreadNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// DeleteSpread removes a spread.
// DELETE /spreads/{id}
func (h *SpreadHandler) DeleteSpread(w http.ResponseWriter, r *http.Request) {
	if err := h.spreads.Delete(r.Context(), pathParam(r, "id")); err != nil {
		writeFailure(w, r, h.logger, err, spreadNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
