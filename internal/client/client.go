// Package client calls the RSI gateway over HTTP for the presentation
// layers.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rsi-lens/internal/domain"
)

// APIError is a non-2xx gateway response.
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Details)
	}
	return e.Message
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 45 * time.Second},
	}
}

// LiveRSI fetches the latest reading for symbol.
func (c *Client) LiveRSI(ctx context.Context, symbol string) (*domain.LiveRSIResult, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var out domain.LiveRSIResult
	if err := c.get(ctx, "/api/rsi", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HistoricalRSI fetches readings between start and end (YYYY-MM-DD, inclusive).
func (c *Client) HistoricalRSI(ctx context.Context, symbol, start, end string) (*domain.RSISeries, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("startDate", start)
	q.Set("endDate", end)

	var out domain.RSISeries
	if err := c.get(ctx, "/api/historical-rsi", q, &out); err != nil {
		return nil, err
	}
	if out.Points == nil {
		out.Points = []domain.RSIPoint{}
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	var payload struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Details = payload.Details
		return apiErr
	}
	apiErr.Message = fmt.Sprintf("Request failed with status %d", status)
	apiErr.Details = strings.TrimSpace(string(body))
	return apiErr
}
