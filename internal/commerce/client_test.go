package commerce

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	var gotAuth, gotPath, gotMethod string
	var gotBody CreateOrderRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotMethod = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":4521,"number":"4521","status":"processing","total":"50.90","currency":"EUR"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "ck_test", "cs_test")
	order, err := c.CreateOrder(context.Background(), CreateOrderRequest{
		Status:   "processing",
		Currency: "EUR",
		LineItems: []LineItem{
			{ProductID: 101, Quantity: 2, Total: "30.00"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(4521), order.ID)
	assert.Equal(t, "4521", order.Number)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/wp-json/wc/v3/orders", gotPath)
	expectedAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("ck_test:cs_test"))
	assert.Equal(t, expectedAuth, gotAuth)
	assert.Equal(t, int64(101), gotBody.LineItems[0].ProductID)
}

func TestUpdateOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/wp-json/wc/v3/orders/3310", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":3310,"status":"processing"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "ck_test", "cs_test")
	order, err := c.UpdateOrder(context.Background(), "3310", UpdateOrderRequest{Status: "processing"})

	require.NoError(t, err)
	assert.Equal(t, int64(3310), order.ID)
}

func TestUpdateOrderStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var body UpdateOrderRequest
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "completed", body.Status)
		assert.NotContains(t, string(raw), "set_paid")
		_, _ = w.Write([]byte(`{"id":3310,"status":"completed"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "ck_test", "cs_test")
	order, err := c.UpdateOrderStatus(context.Background(), "3310", "completed")

	require.NoError(t, err)
	assert.Equal(t, "completed", order.Status)
}

func TestRemoteError_BodyVerbatim(t *testing.T) {
	upstream := `{"code":"woocommerce_rest_invalid_product_id","message":"Invalid product ID.","data":{"status":400}}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(upstream))
	}))
	defer server.Close()

	c := NewClient(server.URL, "ck_test", "cs_test")
	_, err := c.CreateOrder(context.Background(), CreateOrderRequest{})

	require.Error(t, err)
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusBadRequest, remote.StatusCode)
	assert.Equal(t, upstream, remote.Body)
}

func TestClient_TrimsTrailingSlash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/orders/1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", "ck", "cs")
	_, err := c.GetOrder(context.Background(), "1")
	require.NoError(t, err)
}
