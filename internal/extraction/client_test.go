package extraction_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapexpense/internal/expense"
	"snapexpense/internal/extraction"
)

func TestExtractParsesModelResponse(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "data:image/jpeg;base64,abc", body["image"])

		json.NewEncoder(w).Encode(extraction.Result{
			Merchant: "Cafe Milano",
			Date:     "2026-08-14",
			Subtotal: 40,
			Tax:      4,
			Total:    44,
			Category: expense.CategoryRestaurant,
		})
	}))
	defer server.Close()

	c := extraction.NewClient(server.URL, "test-key", 5*time.Second, nil)
	result := c.Extract(context.Background(), "data:image/jpeg;base64,abc")

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "Cafe Milano", result.Merchant)
	assert.Equal(t, "2026-08-14", result.Date)
	assert.Equal(t, 44.0, result.Total)
	assert.Equal(t, expense.CategoryRestaurant, result.Category)
}

func TestExtractFallsBackWithoutCredentials(t *testing.T) {
	c := extraction.NewClient("", "", 5*time.Second, nil)
	result := c.Extract(context.Background(), "data:image/jpeg;base64,abc")

	assert.Empty(t, result.Merchant)
	assert.Equal(t, time.Now().Format("2006-01-02"), result.Date)
	assert.Zero(t, result.Total)
	assert.Equal(t, expense.CategoryMiscellaneous, result.Category)
}

func TestExtractFallsBackOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := extraction.NewClient(server.URL, "test-key", 5*time.Second, nil)
	result := c.Extract(context.Background(), "data:image/jpeg;base64,abc")

	assert.Equal(t, expense.CategoryMiscellaneous, result.Category)
	assert.Empty(t, result.Merchant)
}

func TestExtractFallsBackOnMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	c := extraction.NewClient(server.URL, "test-key", 5*time.Second, nil)
	result := c.Extract(context.Background(), "data:image/jpeg;base64,abc")

	assert.Equal(t, expense.CategoryMiscellaneous, result.Category)
}

func TestExtractFallsBackOnUnreachableHost(t *testing.T) {
	c := extraction.NewClient("http://127.0.0.1:1", "test-key", time.Second, nil)
	result := c.Extract(context.Background(), "data:image/jpeg;base64,abc")

	assert.Equal(t, expense.CategoryMiscellaneous, result.Category)
}

func TestExtractSanitizesModelOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(extraction.Result{
			Merchant: "Cafe",
			Date:     "last tuesday",
			Subtotal: -10,
			Tax:      -1,
			Total:    -11,
			Category: "Snacks",
		})
	}))
	defer server.Close()

	c := extraction.NewClient(server.URL, "test-key", 5*time.Second, nil)
	result := c.Extract(context.Background(), "data:image/jpeg;base64,abc")

	assert.Equal(t, "Cafe", result.Merchant)
	assert.Equal(t, time.Now().Format("2006-01-02"), result.Date)
	assert.Zero(t, result.Subtotal)
	assert.Zero(t, result.Tax)
	assert.Zero(t, result.Total)
	assert.Equal(t, expense.CategoryMiscellaneous, result.Category)
}
