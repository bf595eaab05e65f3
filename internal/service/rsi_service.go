package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"rsi-lens/internal/apperror"
	"rsi-lens/internal/domain"
	"rsi-lens/internal/provider"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultRSICacheTTL = 5 * time.Minute

// RSIProvider fetches the raw indicator series for a symbol.
type RSIProvider interface {
	FetchRSI(ctx context.Context, symbol string, opts provider.FetchOptions) (*domain.IndicatorPayload, error)
	Configured() bool
	Entitlement() string
}

// LookupRecorder persists metadata about served lookups.
type LookupRecorder interface {
	RecordLookup(ctx context.Context, lookup domain.Lookup) error
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RSIService turns provider payloads into live readings and date-filtered
// series. Redis and the recorder are optional.
type RSIService struct {
	tracer   trace.Tracer
	provider RSIProvider
	redis    RedisClient
	recorder LookupRecorder
	cacheTTL time.Duration
}

func NewRSIService(
	tracer trace.Tracer,
	provider RSIProvider,
	redisClient RedisClient,
	recorder LookupRecorder,
	cacheTTL time.Duration,
) *RSIService {
	if cacheTTL <= 0 {
		cacheTTL = defaultRSICacheTTL
	}
	return &RSIService{
		tracer:   tracer,
		provider: provider,
		redis:    redisClient,
		recorder: recorder,
		cacheTTL: cacheTTL,
	}
}

// GetLiveRSI returns the reading for the most recent date in the series.
func (s *RSIService) GetLiveRSI(ctx context.Context, symbol string) (*domain.LiveRSIResult, error) {
	ctx, span := s.tracer.Start(ctx, "rsi-service.get-live-rsi")
	defer span.End()

	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, apperror.Validation("Stock symbol is required")
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	payload, err := s.payload(ctx, symbol, provider.FetchOptions{Realtime: true})
	if err != nil {
		return nil, err
	}

	if !payload.HasMeta {
		return nil, apperror.MissingData("No Meta Data available", "The API response did not contain Meta Data")
	}
	if payload.LastRefreshed == "" {
		return nil, apperror.MissingData("No Last Refreshed date available", "The API response did not contain a Last Refreshed date")
	}
	if payload.Series == nil {
		return nil, apperror.MissingData("No RSI data available", "The API response did not contain RSI data")
	}

	latestKey, ok := latestDateKey(payload.Series)
	if !ok {
		return nil, apperror.MissingData("No RSI data available", "The API response contained no dates")
	}

	value, err := parseRSIValue(payload.Series[latestKey])
	if err != nil {
		log.Printf("Invalid RSI value for %s on %s: %q", symbol, latestKey, payload.Series[latestKey])
		return nil, apperror.MalformedValue("Invalid RSI data", "The API returned an invalid RSI value")
	}

	result := &domain.LiveRSIResult{
		Symbol:    symbol,
		RSI:       value,
		Timestamp: payload.LastRefreshed,
	}
	s.record(ctx, domain.Lookup{Symbol: symbol, Mode: domain.LookupModeLive, Points: 1})
	return result, nil
}

// GetHistoricalRSI returns the points within rng (inclusive), newest first.
// A range with Start after End yields an empty series.
func (s *RSIService) GetHistoricalRSI(ctx context.Context, symbol string, rng domain.QueryRange) (*domain.RSISeries, error) {
	ctx, span := s.tracer.Start(ctx, "rsi-service.get-historical-rsi")
	defer span.End()

	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, apperror.Validation("Missing required parameters: symbol, startDate, endDate")
	}
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.String("range.start", rng.Start.Format(domain.DateLayout)),
		attribute.String("range.end", rng.End.Format(domain.DateLayout)),
	)

	payload, err := s.payload(ctx, symbol, provider.FetchOptions{})
	if err != nil {
		return nil, err
	}
	if payload.Series == nil {
		return nil, apperror.MissingData("No RSI data available", "The API response did not contain RSI data")
	}

	series := filterSeries(symbol, payload.Series, rng)
	span.SetAttributes(attribute.Int("points", len(series.Points)), attribute.Int("skipped", series.Skipped))

	start, end := rng.Start, rng.End
	s.record(ctx, domain.Lookup{
		Symbol:     symbol,
		Mode:       domain.LookupModeHistorical,
		RangeStart: &start,
		RangeEnd:   &end,
		Points:     len(series.Points),
	})
	return series, nil
}

// CacheEnabled reports whether payloads are cached in Redis.
func (s *RSIService) CacheEnabled() bool {
	return s.redis != nil
}

// WarmCache refreshes the cached daily payload for symbol. Without a cache
// it does nothing, so no provider quota is spent.
func (s *RSIService) WarmCache(ctx context.Context, symbol string) error {
	ctx, span := s.tracer.Start(ctx, "rsi-service.warm-cache")
	defer span.End()

	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return apperror.Validation("Stock symbol is required")
	}
	if s.redis == nil {
		return nil
	}

	payload, err := s.provider.FetchRSI(ctx, symbol, provider.FetchOptions{})
	if err != nil {
		return fmt.Errorf("warm cache for %s: %w", symbol, err)
	}
	if err := s.setPayloadCache(ctx, cacheKey(symbol, ""), payload); err != nil {
		return fmt.Errorf("cache rsi payload for %s: %w", symbol, err)
	}
	log.Printf("Warmed RSI cache for %s (%d dates)", symbol, len(payload.Series))
	return nil
}

// payload returns the cached provider payload or fetches and caches a fresh one.
// A provider without an API key fails before the cache is consulted.
func (s *RSIService) payload(ctx context.Context, symbol string, opts provider.FetchOptions) (*domain.IndicatorPayload, error) {
	if !s.provider.Configured() {
		return nil, provider.MissingAPIKeyError()
	}
	var entitlement string
	if opts.Realtime {
		entitlement = s.provider.Entitlement()
	}
	key := cacheKey(symbol, entitlement)
	if s.redis != nil {
		cached, err := s.getPayloadCache(ctx, key)
		if err != nil {
			log.Printf("redis cache read error: %v", err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	payload, err := s.provider.FetchRSI(ctx, symbol, opts)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if err := s.setPayloadCache(ctx, key, payload); err != nil {
			log.Printf("redis cache write error for %s: %v", symbol, err)
		}
	}
	return payload, nil
}

func (s *RSIService) record(ctx context.Context, lookup domain.Lookup) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordLookup(ctx, lookup); err != nil {
		log.Printf("record %s lookup for %s: %v", lookup.Mode, lookup.Symbol, err)
	}
}

// cacheKey is suffixed with the entitlement only when one is forwarded, so
// live and daily lookups share an entry for identical upstream queries.
func cacheKey(symbol, entitlement string) string {
	key := fmt.Sprintf("rsi:%s:%d:%s:%s", domain.IndicatorInterval, domain.IndicatorPeriod, domain.IndicatorSeries, symbol)
	if entitlement != "" {
		key += ":" + entitlement
	}
	return key
}

func (s *RSIService) setPayloadCache(ctx context.Context, key string, payload *domain.IndicatorPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, s.cacheTTL).Err()
}

func (s *RSIService) getPayloadCache(ctx context.Context, key string) (*domain.IndicatorPayload, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var payload domain.IndicatorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// latestDateKey picks the series key with the greatest calendar date.
// Keys that do not parse as dates are ignored.
func latestDateKey(series map[string]string) (string, bool) {
	var (
		bestKey  string
		bestDate time.Time
		found    bool
	)
	for key := range series {
		d, err := domain.ParseDate(key)
		if err != nil {
			log.Printf("Skipping RSI entry with unparseable date %q", key)
			continue
		}
		if !found || d.After(bestDate) || (d.Equal(bestDate) && key < bestKey) {
			bestKey, bestDate, found = key, d, true
		}
	}
	return bestKey, found
}

type datedEntry struct {
	key   string
	point domain.RSIPoint
}

func filterSeries(symbol string, series map[string]string, rng domain.QueryRange) *domain.RSISeries {
	entries := make([]datedEntry, 0, len(series))
	skipped := 0
	for key, raw := range series {
		d, err := domain.ParseDate(key)
		if err != nil {
			log.Printf("Skipping RSI entry for %s with unparseable date %q", symbol, key)
			continue
		}
		if !rng.Contains(d) {
			continue
		}
		value, err := parseRSIValue(raw)
		if err != nil {
			log.Printf("Warning: skipping non-numeric RSI value for %s on %s: %q", symbol, key, raw)
			skipped++
			continue
		}
		entries = append(entries, datedEntry{key: key, point: domain.RSIPoint{Date: domain.TruncateDay(d), RSI: value}})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].point.Date.Equal(entries[j].point.Date) {
			return entries[i].point.Date.After(entries[j].point.Date)
		}
		return entries[i].key < entries[j].key
	})

	points := make([]domain.RSIPoint, 0, len(entries))
	for _, e := range entries {
		// two keys on the same calendar day keep the first after sorting
		if n := len(points); n > 0 && points[n-1].Date.Equal(e.point.Date) {
			continue
		}
		points = append(points, e.point)
	}

	return &domain.RSISeries{Symbol: symbol, Points: points, Skipped: skipped}
}

func parseRSIValue(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("rsi value %q is not finite", raw)
	}
	return v, nil
}
