package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/maribelle/backoffice/internal/domain"
	"github.com/maribelle/backoffice/internal/middleware"
	"github.com/maribelle/backoffice/internal/service"
)

// mockBatchService implements service.BatchValidationService
type mockBatchService struct {
	result *service.ValidationResult
	view   *service.PendingBatchView
	err    error

	gotUser    domain.AuthUser
	gotBatchID string
	called     bool
}

func (m *mockBatchService) ValidateBatch(ctx context.Context, user domain.AuthUser, batchID string) (*service.ValidationResult, error) {
	m.called = true
	m.gotUser = user
	m.gotBatchID = batchID
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockBatchService) PendingBatch(ctx context.Context, user domain.AuthUser) (*service.PendingBatchView, error) {
	m.called = true
	m.gotUser = user
	if m.err != nil {
		return nil, m.err
	}
	return m.view, nil
}

// stubVerifier accepts a single token
type stubVerifier struct {
	token string
	user  domain.AuthUser
}

func (v *stubVerifier) GetUser(ctx context.Context, token string) (*domain.AuthUser, error) {
	if token != v.token {
		return nil, domain.Unauthorized("auth.get_user", "Unauthorized")
	}
	u := v.user
	return &u, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newValidateServer mounts the handler behind the auth middleware, the way
// the server wires it.
func newValidateServer(t *testing.T, svc *mockBatchService) http.Handler {
	t.Helper()
	h, err := NewBatchHandler(svc, discardLogger())
	if err != nil {
		t.Fatalf("NewBatchHandler: %v", err)
	}
	verifier := &stubVerifier{
		token: "valid-token",
		user:  domain.AuthUser{ID: "6ba7b810-9dad-11d1-80b4-00c04fd430c8", Email: "claire@example.fr"},
	}
	return middleware.Authenticate(verifier, discardLogger())(http.HandlerFunc(h.Validate))
}

func TestBatchValidate_Success(t *testing.T) {
	svc := &mockBatchService{
		result: &service.ValidationResult{
			BatchID:            "6ba7b811-9dad-11d1-80b4-00c04fd430c8",
			WooCommerceOrderID: "4521",
			OrderNumber:        "4521",
			Subtotal:           decimal.RequireFromString("45.00"),
			ShippingCost:       decimal.RequireFromString("5.90"),
			Total:              decimal.RequireFromString("50.90"),
			PaymentRequired:    true,
			PaymentIntentID:    "pi_123",
			ClientSecret:       "pi_123_secret_456",
		},
	}
	server := newValidateServer(t, svc)

	body := `{"batchId":"6ba7b811-9dad-11d1-80b4-00c04fd430c8"}`
	req := httptest.NewRequest(http.MethodPost, "/delivery-batches/validate", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()

	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success         bool   `json:"success"`
		OrderID         string `json:"woocommerceOrderId"`
		Total           string `json:"total"`
		PaymentRequired bool   `json:"paymentRequired"`
		ClientSecret    string `json:"clientSecret"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.OrderID != "4521" || resp.Total != "50.90" {
		t.Errorf("response = %+v", resp)
	}
	if !resp.PaymentRequired || resp.ClientSecret == "" {
		t.Error("payment fields missing from response")
	}
	if svc.gotUser.Email != "claire@example.fr" {
		t.Errorf("service got user %+v", svc.gotUser)
	}
}

func TestBatchValidate_NoPayment_NullFields(t *testing.T) {
	svc := &mockBatchService{
		result: &service.ValidationResult{
			BatchID:            "6ba7b811-9dad-11d1-80b4-00c04fd430c8",
			WooCommerceOrderID: "4522",
			Subtotal:           decimal.RequireFromString("45.00"),
			ShippingCost:       decimal.Zero,
			Total:              decimal.RequireFromString("45.00"),
			PaymentRequired:    false,
		},
	}
	server := newValidateServer(t, svc)

	body := `{"batchId":"6ba7b811-9dad-11d1-80b4-00c04fd430c8"}`
	req := httptest.NewRequest(http.MethodPost, "/delivery-batches/validate", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()

	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// The keys are present but null when nothing is owed
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"paymentIntentId", "clientSecret"} {
		val, ok := raw[key]
		if !ok {
			t.Errorf("%s missing from response", key)
			continue
		}
		if string(val) != "null" {
			t.Errorf("%s = %s, want null", key, val)
		}
	}
}

func TestBatchValidate_MissingToken(t *testing.T) {
	svc := &mockBatchService{}
	server := newValidateServer(t, svc)

	body := `{"batchId":"6ba7b811-9dad-11d1-80b4-00c04fd430c8"}`
	req := httptest.NewRequest(http.MethodPost, "/delivery-batches/validate", strings.NewReader(body))
	rec := httptest.NewRecorder()

	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	// No token means nothing downstream runs
	if svc.called {
		t.Error("service must not be called without a token")
	}
}

func TestBatchValidate_BadToken(t *testing.T) {
	svc := &mockBatchService{}
	server := newValidateServer(t, svc)

	body := `{"batchId":"6ba7b811-9dad-11d1-80b4-00c04fd430c8"}`
	req := httptest.NewRequest(http.MethodPost, "/delivery-batches/validate", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()

	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if svc.called {
		t.Error("service must not be called with a rejected token")
	}
}

func TestBatchValidate_InvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing batch id", `{}`},
		{"malformed uuid", `{"batchId":"nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBatchService{}
			server := newValidateServer(t, svc)

			req := httptest.NewRequest(http.MethodPost, "/delivery-batches/validate", strings.NewReader(tt.body))
			req.Header.Set("Authorization", "Bearer valid-token")
			rec := httptest.NewRecorder()

			server.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if svc.called {
				t.Error("service must not be called for an invalid body")
			}
		})
	}
}

func TestBatchValidate_ServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", service.ErrBatchNotFound, http.StatusNotFound, domain.ENOTFOUND},
		{"empty batch", service.ErrEmptyBatch, http.StatusBadRequest, domain.EINVALID},
		{"claimed", service.ErrBatchClaimed, http.StatusConflict, domain.ECONFLICT},
		{"upstream", &domain.Error{Code: domain.EUPSTREAM, Message: "store said no"}, http.StatusBadGateway, domain.EUPSTREAM},
		{"payment", &domain.Error{Code: domain.EPAYMENT, Message: "card setup failed"}, http.StatusPaymentRequired, domain.EPAYMENT},
		{"internal", errors.New("plain error"), http.StatusInternalServerError, domain.EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBatchService{err: tt.err}
			server := newValidateServer(t, svc)

			body := `{"batchId":"6ba7b811-9dad-11d1-80b4-00c04fd430c8"}`
			req := httptest.NewRequest(http.MethodPost, "/delivery-batches/validate", strings.NewReader(body))
			req.Header.Set("Authorization", "Bearer valid-token")
			rec := httptest.NewRecorder()

			server.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var resp struct {
				Success bool   `json:"success"`
				Code    string `json:"code"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Success {
				t.Error("success = true, want false")
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestBatchPending(t *testing.T) {
	svc := &mockBatchService{
		view: &service.PendingBatchView{
			Batch: &domain.DeliveryBatch{Status: domain.BatchStatusPending},
			Items: nil,
			Totals: service.Totals{
				Subtotal:     decimal.RequireFromString("19.99"),
				ShippingCost: decimal.RequireFromString("4.90"),
				Total:        decimal.RequireFromString("24.89"),
			},
		},
	}
	h, err := NewBatchHandler(svc, discardLogger())
	if err != nil {
		t.Fatalf("NewBatchHandler: %v", err)
	}
	verifier := &stubVerifier{token: "valid-token", user: domain.AuthUser{ID: "u1"}}
	server := middleware.Authenticate(verifier, discardLogger())(http.HandlerFunc(h.Pending))

	req := httptest.NewRequest(http.MethodGet, "/delivery-batches/pending", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()

	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Total string `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != "24.89" {
		t.Errorf("total = %s, want 24.89", resp.Total)
	}
}
