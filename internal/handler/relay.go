package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/maribelle/backoffice/internal/domain"
	"github.com/maribelle/backoffice/internal/relay"
)

// PickupPointSearcher is the carrier surface the relay handler needs.
type PickupPointSearcher interface {
	SearchPickupPoints(ctx context.Context, params relay.SearchParams) ([]relay.PickupPoint, error)
}

// RelayHandler proxies pickup point searches to Mondial Relay so the merchant
// private key never reaches the browser.
type RelayHandler struct {
	carrier  PickupPointSearcher
	logger   *slog.Logger
	validate *validator.Validate
}

// NewRelayHandler creates a new relay handler.
func NewRelayHandler(carrier PickupPointSearcher, logger *slog.Logger) (*RelayHandler, error) {
	if carrier == nil {
		return nil, errors.New("carrier client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RelayHandler{
		carrier:  carrier,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

type searchPickupPointsRequest struct {
	PostalCode string `json:"postalCode" validate:"required,min=4,max=10"`
	Country    string `json:"country" validate:"omitempty,iso3166_1_alpha2"`
	Limit      int    `json:"limit" validate:"omitempty,min=1,max=30"`
}

type searchPickupPointsResponse struct {
	Success bool                `json:"success"`
	Points  []relay.PickupPoint `json:"points"`
}

// Search handles POST /shipping/pickup-points
func (h *RelayHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchPickupPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("relay.search", "Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		ErrorResponse(w, r, domain.Invalid("relay.search", "postalCode is required"))
		return
	}

	points, err := h.carrier.SearchPickupPoints(r.Context(), relay.SearchParams{
		PostalCode: req.PostalCode,
		Country:    req.Country,
		Limit:      req.Limit,
	})
	if err != nil {
		var carrierErr *relay.CarrierError
		if errors.As(err, &carrierErr) {
			ErrorResponse(w, r, domain.Upstream(err, "relay.search",
				"Carrier rejected the search with code "+carrierErr.Code))
			return
		}
		h.logger.Error("pickup point search failed", "postal_code", req.PostalCode, "error", err)
		ErrorResponse(w, r, domain.Upstream(err, "relay.search", "Carrier request failed"))
		return
	}

	JSON(w, http.StatusOK, searchPickupPointsResponse{Success: true, Points: points})
}
