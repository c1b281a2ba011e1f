package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/maribelle/backoffice/internal/commerce"
	"github.com/maribelle/backoffice/internal/domain"
)

// OrderStatusUpdater is the commerce surface the admin handler needs.
type OrderStatusUpdater interface {
	UpdateOrderStatus(ctx context.Context, orderID, status string) (*commerce.Order, error)
}

// AdminHandler exposes operational endpoints guarded by the admin token.
type AdminHandler struct {
	orders   OrderStatusUpdater
	logger   *slog.Logger
	validate *validator.Validate
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(orders OrderStatusUpdater, logger *slog.Logger) (*AdminHandler, error) {
	if orders == nil {
		return nil, errors.New("order client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		orders:   orders,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing on-hold completed cancelled refunded"`
}

type updateOrderStatusResponse struct {
	Success bool   `json:"success"`
	OrderID int64  `json:"orderId"`
	Status  string `json:"status"`
}

// UpdateOrderStatus handles PUT /admin/orders/{id}/status
func (h *AdminHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")
	if orderID == "" {
		ErrorResponse(w, r, domain.Invalid("admin.order_status", "Order id is required"))
		return
	}

	var req updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("admin.order_status", "Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		ErrorResponse(w, r, domain.Invalid("admin.order_status", "status must be a valid WooCommerce order status"))
		return
	}

	order, err := h.orders.UpdateOrderStatus(r.Context(), orderID, req.Status)
	if err != nil {
		var remote *commerce.RemoteError
		if errors.As(err, &remote) {
			ErrorResponse(w, r, &domain.Error{
				Code:    domain.EUPSTREAM,
				Message: remote.Body,
				Op:      "admin.order_status",
				Err:     err,
			})
			return
		}
		h.logger.Error("order status update failed", "order_id", orderID, "error", err)
		ErrorResponse(w, r, domain.Upstream(err, "admin.order_status", "Order backend request failed"))
		return
	}

	h.logger.Info("order status updated", "order_id", orderID, "status", order.Status)
	JSON(w, http.StatusOK, updateOrderStatusResponse{
		Success: true,
		OrderID: order.ID,
		Status:  order.Status,
	})
}
