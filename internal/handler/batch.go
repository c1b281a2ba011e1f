package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/maribelle/backoffice/internal/domain"
	"github.com/maribelle/backoffice/internal/middleware"
	"github.com/maribelle/backoffice/internal/service"
	"github.com/maribelle/backoffice/internal/telemetry"
)

// BatchHandler exposes delivery batch validation over HTTP.
type BatchHandler struct {
	service  service.BatchValidationService
	logger   *slog.Logger
	validate *validator.Validate
}

// NewBatchHandler creates a new batch handler.
func NewBatchHandler(svc service.BatchValidationService, logger *slog.Logger) (*BatchHandler, error) {
	if svc == nil {
		return nil, errors.New("batch validation service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchHandler{
		service:  svc,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

type validateBatchRequest struct {
	BatchID string `json:"batchId" validate:"required,uuid"`
}

type validateBatchResponse struct {
	Success         bool   `json:"success"`
	BatchID         string `json:"batchId"`
	OrderID         string `json:"woocommerceOrderId"`
	OrderNumber     string `json:"orderNumber,omitempty"`
	Subtotal        string `json:"subtotal"`
	ShippingCost    string `json:"shippingCost"`
	Total           string `json:"total"`
	PaymentRequired bool   `json:"paymentRequired"`
	// Null, not omitted, when no payment is due: the frontend branches on
	// these keys being present.
	PaymentIntentID *string `json:"paymentIntentId"`
	ClientSecret    *string `json:"clientSecret"`
}

// Validate handles POST /delivery-batches/validate
func (h *BatchHandler) Validate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetAuthUser(r.Context())
	if !ok {
		ErrorResponse(w, r, domain.Unauthorized("batch.validate", "Unauthorized"))
		return
	}

	var req validateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("batch.validate", "Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		ErrorResponse(w, r, domain.Invalid("batch.validate", "batchId must be a valid UUID"))
		return
	}

	result, err := h.service.ValidateBatch(r.Context(), user, req.BatchID)
	if err != nil {
		code := domain.ErrorCode(err)
		if m := telemetry.Business; m != nil {
			m.BatchValidationFail.WithLabelValues(code).Inc()
		}
		if code == domain.EINTERNAL || code == domain.EUPSTREAM {
			h.logger.Error("batch validation failed",
				"batch_id", req.BatchID, "user_id", user.ID,
				"op", domain.ErrorOp(err), "error", err)
		}
		ErrorResponse(w, r, err)
		return
	}

	resp := validateBatchResponse{
		Success:         true,
		BatchID:         result.BatchID,
		OrderID:         result.WooCommerceOrderID,
		OrderNumber:     result.OrderNumber,
		Subtotal:        result.Subtotal.StringFixed(2),
		ShippingCost:    result.ShippingCost.StringFixed(2),
		Total:           result.Total.StringFixed(2),
		PaymentRequired: result.PaymentRequired,
	}
	if result.PaymentRequired {
		resp.PaymentIntentID = &result.PaymentIntentID
		resp.ClientSecret = &result.ClientSecret
	}
	JSON(w, http.StatusOK, resp)
}

type pendingItem struct {
	ProductID  int64  `json:"productId"`
	Quantity   int32  `json:"quantity"`
	TotalPrice string `json:"totalPrice"`
}

type pendingBatchResponse struct {
	Success      bool          `json:"success"`
	BatchID      string        `json:"batchId"`
	Status       string        `json:"status"`
	Items        []pendingItem `json:"items"`
	Subtotal     string        `json:"subtotal"`
	ShippingCost string        `json:"shippingCost"`
	Total        string        `json:"total"`
}

// Pending handles GET /delivery-batches/pending
func (h *BatchHandler) Pending(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetAuthUser(r.Context())
	if !ok {
		ErrorResponse(w, r, domain.Unauthorized("batch.pending", "Unauthorized"))
		return
	}

	view, err := h.service.PendingBatch(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	items := make([]pendingItem, 0, len(view.Items))
	for _, it := range view.Items {
		items = append(items, pendingItem{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			TotalPrice: it.TotalPrice.StringFixed(2),
		})
	}

	JSON(w, http.StatusOK, pendingBatchResponse{
		Success:      true,
		BatchID:      view.Batch.IDString(),
		Status:       view.Batch.Status,
		Items:        items,
		Subtotal:     view.Totals.Subtotal.StringFixed(2),
		ShippingCost: view.Totals.ShippingCost.StringFixed(2),
		Total:        view.Totals.Total.StringFixed(2),
	})
}
