// Package extraction calls the external multimodal model that reads
// receipt images. The contract is non-throwing: every failure mode
// (missing credential, network error, malformed response) yields the
// fallback result instead of an error the caller must handle.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"snapexpense/internal/expense"
)

// Result is the structured extraction of one receipt image.
type Result struct {
	Merchant string  `json:"merchant"`
	Date     string  `json:"date"`
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
	Category string  `json:"category"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// Extract sends the compressed data-URI image to the model and returns the
// structured fields, or the fallback result on any failure.
func (c *Client) Extract(ctx context.Context, imageDataURI string) Result {
	if c.baseURL == "" || c.apiKey == "" {
		c.logger.Warn("extraction skipped, no credential configured")
		return Fallback()
	}

	payload, err := json.Marshal(map[string]string{"image": imageDataURI})
	if err != nil {
		return Fallback()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		c.logger.Error("extraction request build failed", "error", err)
		return Fallback()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("extraction request failed", "error", err)
		return Fallback()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("extraction returned non-200", "status", resp.StatusCode)
		return Fallback()
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Error("extraction response malformed", "error", err)
		return Fallback()
	}

	return sanitize(result)
}

// Fallback is the defined shape for failed extractions: empty merchant,
// today's date, zero amounts, Miscellaneous.
func Fallback() Result {
	return Result{
		Date:     time.Now().Format("2006-01-02"),
		Category: expense.CategoryMiscellaneous,
	}
}

// sanitize coerces model output back into the contract: valid category,
// parseable date, non-negative amounts.
func sanitize(r Result) Result {
	if !expense.ValidCategory(r.Category) {
		r.Category = expense.CategoryMiscellaneous
	}
	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		r.Date = time.Now().Format("2006-01-02")
	}
	if r.Subtotal < 0 {
		r.Subtotal = 0
	}
	if r.Tax < 0 {
		r.Tax = 0
	}
	if r.Total < 0 {
		r.Total = 0
	}
	return r
}
