package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rsi-lens/internal/apperror"
	"rsi-lens/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const AlphaVantageBaseURL = "https://www.alphavantage.co/query"

// FetchOptions tweaks a single RSI query.
type FetchOptions struct {
	// Realtime forwards the configured entitlement (if any) with the query.
	Realtime bool
}

// AlphaVantageProvider fetches technical indicator series from Alpha Vantage.
type AlphaVantageProvider struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	entitlement string
	tracer      trace.Tracer
	limiter     *RateLimiter
}

// NewAlphaVantageProvider creates a provider bound to apiKey. The free tier
// allows 5 requests per minute, which is the default when requestsPerMin <= 0.
func NewAlphaVantageProvider(tracer trace.Tracer, apiKey, baseURL, entitlement string, requestsPerMin int) *AlphaVantageProvider {
	if baseURL == "" {
		baseURL = AlphaVantageBaseURL
	}
	if requestsPerMin <= 0 {
		requestsPerMin = 5
	}
	return &AlphaVantageProvider{
		client:      &http.Client{Timeout: 30 * time.Second},
		baseURL:     baseURL,
		apiKey:      apiKey,
		entitlement: entitlement,
		tracer:      tracer,
		limiter:     NewPerMinuteLimiter(requestsPerMin),
	}
}

// Configured reports whether an API key was supplied.
func (p *AlphaVantageProvider) Configured() bool {
	return p.apiKey != ""
}

// Entitlement is forwarded on realtime queries when non-empty.
func (p *AlphaVantageProvider) Entitlement() string {
	return p.entitlement
}

func MissingAPIKeyError() *apperror.Error {
	return apperror.Configuration("Alpha Vantage API key is not configured")
}

type avMetaData struct {
	Symbol        string `json:"1: Symbol"`
	LastRefreshed string `json:"3: Last Refreshed"`
	TimeZone      string `json:"7: Time Zone"`
}

type avRSIEntry struct {
	RSI json.RawMessage `json:"RSI"`
}

type avRSIResponse struct {
	ErrorMessage string                `json:"Error Message"`
	Note         string                `json:"Note"`
	Information  string                `json:"Information"`
	MetaData     *avMetaData           `json:"Meta Data"`
	Series       map[string]avRSIEntry `json:"Technical Analysis: RSI"`
}

// FetchRSI requests the daily 14-period close-price RSI series for symbol.
func (p *AlphaVantageProvider) FetchRSI(ctx context.Context, symbol string, opts FetchOptions) (*domain.IndicatorPayload, error) {
	ctx, span := p.tracer.Start(ctx, "alphavantage.fetch-rsi")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol), attribute.Bool("realtime", opts.Realtime))

	if p.apiKey == "" {
		return nil, MissingAPIKeyError()
	}

	queryURL := p.buildURL(symbol, opts)
	log.Printf("Fetching RSI data for %s: %s", symbol, redactAPIKey(queryURL, p.apiKey))

	body, err := p.doRequest(ctx, queryURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}

	payload, err := parseRSIResponse(symbol, body)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("series.length", len(payload.Series)))
	return payload, nil
}

func (p *AlphaVantageProvider) buildURL(symbol string, opts FetchOptions) string {
	q := url.Values{}
	q.Set("function", domain.IndicatorFunction)
	q.Set("symbol", symbol)
	q.Set("interval", domain.IndicatorInterval)
	q.Set("time_period", strconv.Itoa(domain.IndicatorPeriod))
	q.Set("series_type", domain.IndicatorSeries)
	if opts.Realtime && p.entitlement != "" {
		q.Set("entitlement", p.entitlement)
	}
	q.Set("apikey", p.apiKey)
	return p.baseURL + "?" + q.Encode()
}

func (p *AlphaVantageProvider) doRequest(ctx context.Context, queryURL string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, apperror.ProviderTransport(0, "Failed to fetch RSI data", "rate limit wait: "+err.Error(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, apperror.Internal("Failed to fetch RSI data", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperror.ProviderTransport(0, "Failed to fetch RSI data", redactAPIKey(err.Error(), p.apiKey), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("Alpha Vantage response not OK: %s", resp.Status)
		return nil, apperror.ProviderTransport(
			resp.StatusCode,
			fmt.Sprintf("Failed to fetch RSI data: %s", resp.Status),
			string(body),
			nil,
		)
	}
	if err != nil {
		return nil, apperror.ProviderTransport(resp.StatusCode, "Failed to fetch RSI data", err.Error(), err)
	}
	return body, nil
}

// parseRSIResponse decodes a provider body and classifies provider-reported
// failures. Missing sections are left empty for the caller to judge.
func parseRSIResponse(symbol string, body []byte) (*domain.IndicatorPayload, error) {
	var raw avRSIResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperror.Internal("Failed to fetch RSI data", fmt.Errorf("parse rsi response: %w", err))
	}

	if raw.ErrorMessage != "" {
		log.Printf("Alpha Vantage API error for %s: %s", symbol, raw.ErrorMessage)
		return nil, apperror.ProviderData(raw.ErrorMessage)
	}
	// Information carries the same throttling notice as Note on newer accounts.
	if note := firstNonEmpty(raw.Note, raw.Information); note != "" && raw.Series == nil {
		log.Printf("Alpha Vantage API note for %s: %s", symbol, note)
		return nil, apperror.RateLimit(note)
	}

	payload := &domain.IndicatorPayload{Symbol: symbol}
	if raw.MetaData != nil {
		payload.HasMeta = true
		payload.LastRefreshed = strings.TrimSpace(raw.MetaData.LastRefreshed)
		payload.TimeZone = raw.MetaData.TimeZone
	}
	if raw.Series != nil {
		payload.Series = make(map[string]string, len(raw.Series))
		for date, entry := range raw.Series {
			payload.Series[date] = rawNumberString(entry.RSI)
		}
	}
	return payload, nil
}

// rawNumberString accepts both the documented quoted form ("55.5") and a bare
// JSON number.
func rawNumberString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func redactAPIKey(s, key string) string {
	if key == "" {
		return s
	}
	return strings.ReplaceAll(s, key, "HIDDEN")
}
