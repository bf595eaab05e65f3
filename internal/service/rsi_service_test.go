package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"rsi-lens/internal/apperror"
	"rsi-lens/internal/domain"
	"rsi-lens/internal/provider"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return d
}

func samplePayload() *domain.IndicatorPayload {
	return &domain.IndicatorPayload{
		Symbol:        "IBM",
		HasMeta:       true,
		LastRefreshed: "2024-01-12",
		Series: map[string]string{
			"2024-01-09": "40.1000",
			"2024-01-10": "60.0000",
			"2024-01-11": "55.5000",
			"2024-01-12": "57.2500",
		},
	}
}

func TestGetLiveRSIPicksLatestDate(t *testing.T) {
	t.Parallel()

	p := &stubProvider{payload: samplePayload()}
	recorder := &stubRecorder{}
	svc := NewRSIService(testTracer, p, nil, recorder, 0)

	got, err := svc.GetLiveRSI(context.Background(), " ibm ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Symbol != "IBM" || got.RSI != 57.25 || got.Timestamp != "2024-01-12" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if p.calls != 1 || p.lastSymbol != "IBM" || !p.lastOpts.Realtime {
		t.Fatalf("unexpected provider call: %+v", p)
	}
	if len(recorder.lookups) != 1 || recorder.lookups[0].Mode != domain.LookupModeLive {
		t.Fatalf("expected one live lookup recorded, got %+v", recorder.lookups)
	}
}

func TestGetLiveRSITimestampVerbatim(t *testing.T) {
	t.Parallel()

	p := &stubProvider{payload: &domain.IndicatorPayload{
		HasMeta:       true,
		LastRefreshed: "2024-01-11 16:00:00",
		Series:        map[string]string{"2024-01-11": "55.5"},
	}}
	svc := NewRSIService(testTracer, p, nil, nil, 0)

	got, err := svc.GetLiveRSI(context.Background(), "IBM")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RSI != 55.5 || got.Timestamp != "2024-01-11 16:00:00" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestGetLiveRSIBlankSymbol(t *testing.T) {
	t.Parallel()

	p := &stubProvider{payload: samplePayload()}
	svc := NewRSIService(testTracer, p, nil, nil, 0)

	_, err := svc.GetLiveRSI(context.Background(), "   ")
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if p.calls != 0 {
		t.Fatalf("expected no provider call, got %d", p.calls)
	}
}

func TestGetLiveRSIMissingData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload *domain.IndicatorPayload
		message string
		details string
	}{
		{
			name:    "no meta",
			payload: &domain.IndicatorPayload{Series: map[string]string{"2024-01-11": "50"}},
			message: "No Meta Data available",
			details: "The API response did not contain Meta Data",
		},
		{
			name:    "no last refreshed",
			payload: &domain.IndicatorPayload{HasMeta: true, Series: map[string]string{"2024-01-11": "50"}},
			message: "No Last Refreshed date available",
			details: "The API response did not contain a Last Refreshed date",
		},
		{
			name:    "no series",
			payload: &domain.IndicatorPayload{HasMeta: true, LastRefreshed: "2024-01-11"},
			message: "No RSI data available",
			details: "The API response did not contain RSI data",
		},
		{
			name:    "empty series",
			payload: &domain.IndicatorPayload{HasMeta: true, LastRefreshed: "2024-01-11", Series: map[string]string{}},
			message: "No RSI data available",
			details: "The API response contained no dates",
		},
		{
			name:    "only bad dates",
			payload: &domain.IndicatorPayload{HasMeta: true, LastRefreshed: "2024-01-11", Series: map[string]string{"yesterday": "50"}},
			message: "No RSI data available",
			details: "The API response contained no dates",
		},
	}

	for _, tc := range tests {
		svc := NewRSIService(testTracer, &stubProvider{payload: tc.payload}, nil, nil, 0)
		_, err := svc.GetLiveRSI(context.Background(), "IBM")
		appErr, ok := apperror.As(err)
		if !ok || appErr.Kind != apperror.KindMissingData {
			t.Fatalf("%s: expected missing data error, got %v", tc.name, err)
		}
		if appErr.Message != tc.message || appErr.Details != tc.details {
			t.Fatalf("%s: unexpected error %+v", tc.name, appErr)
		}
		if appErr.HTTPStatus() != 404 {
			t.Fatalf("%s: expected 404, got %d", tc.name, appErr.HTTPStatus())
		}
	}
}

func TestGetLiveRSIMalformedValue(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"abc", "", "NaN"} {
		p := &stubProvider{payload: &domain.IndicatorPayload{
			HasMeta:       true,
			LastRefreshed: "2024-01-11",
			Series:        map[string]string{"2024-01-11": raw, "2024-01-10": "50"},
		}}
		svc := NewRSIService(testTracer, p, nil, nil, 0)

		_, err := svc.GetLiveRSI(context.Background(), "IBM")
		appErr, ok := apperror.As(err)
		if !ok || appErr.Kind != apperror.KindMalformedValue {
			t.Fatalf("%q: expected malformed value error, got %v", raw, err)
		}
		if appErr.Message != "Invalid RSI data" || appErr.HTTPStatus() != 500 {
			t.Fatalf("%q: unexpected error %+v", raw, appErr)
		}
	}
}

func TestGetLiveRSIPropagatesProviderErrors(t *testing.T) {
	t.Parallel()

	p := &stubProvider{err: apperror.RateLimit("Thank you for using Alpha Vantage!")}
	svc := NewRSIService(testTracer, p, nil, nil, 0)

	_, err := svc.GetLiveRSI(context.Background(), "IBM")
	if !apperror.IsKind(err, apperror.KindRateLimit) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestGetHistoricalRSIInclusiveDescending(t *testing.T) {
	t.Parallel()

	p := &stubProvider{payload: samplePayload()}
	recorder := &stubRecorder{}
	svc := NewRSIService(testTracer, p, nil, recorder, 0)

	rng := domain.QueryRange{Start: mustDate(t, "2024-01-10"), End: mustDate(t, "2024-01-11")}
	got, err := svc.GetHistoricalRSI(context.Background(), "ibm", rng)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Symbol != "IBM" || len(got.Points) != 2 {
		t.Fatalf("unexpected series: %+v", got)
	}
	if got.Points[0].DateString() != "2024-01-11" || got.Points[0].RSI != 55.5 {
		t.Fatalf("unexpected first point: %+v", got.Points[0])
	}
	if got.Points[1].DateString() != "2024-01-10" || got.Points[1].RSI != 60 {
		t.Fatalf("unexpected second point: %+v", got.Points[1])
	}
	if p.lastOpts.Realtime {
		t.Fatal("historical lookups should not request realtime data")
	}
	if len(recorder.lookups) != 1 || recorder.lookups[0].Points != 2 || recorder.lookups[0].RangeStart == nil {
		t.Fatalf("unexpected recorded lookup: %+v", recorder.lookups)
	}
}

func TestGetHistoricalRSIInvertedRangeIsEmpty(t *testing.T) {
	t.Parallel()

	svc := NewRSIService(testTracer, &stubProvider{payload: samplePayload()}, nil, nil, 0)

	rng := domain.QueryRange{Start: mustDate(t, "2024-01-12"), End: mustDate(t, "2024-01-09")}
	got, err := svc.GetHistoricalRSI(context.Background(), "IBM", rng)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Points == nil || len(got.Points) != 0 {
		t.Fatalf("expected empty non-nil points, got %+v", got.Points)
	}

	data, _ := json.Marshal(got)
	if string(data) != `{"symbol":"IBM","data":[]}` {
		t.Fatalf("unexpected json: %s", data)
	}
}

func TestGetHistoricalRSISkipsBadEntries(t *testing.T) {
	t.Parallel()

	p := &stubProvider{payload: &domain.IndicatorPayload{
		Series: map[string]string{
			"2024-01-12":          "57.25",
			"2024-01-11":          "n/a",
			"2024-01-10 16:00:00": "60",
			"not-a-date":          "10",
			"2023-12-31":          "bogus",
		},
	}}
	svc := NewRSIService(testTracer, p, nil, nil, 0)

	rng := domain.QueryRange{Start: mustDate(t, "2024-01-01"), End: mustDate(t, "2024-01-31")}
	got, err := svc.GetHistoricalRSI(context.Background(), "IBM", rng)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Points) != 2 {
		t.Fatalf("expected 2 points, got %+v", got.Points)
	}
	if got.Points[0].DateString() != "2024-01-12" || got.Points[1].DateString() != "2024-01-10" {
		t.Fatalf("unexpected order: %+v", got.Points)
	}
	if got.Skipped != 1 {
		t.Fatalf("expected 1 skipped in range, got %d", got.Skipped)
	}
}

func TestGetHistoricalRSIStrictlyDescending(t *testing.T) {
	t.Parallel()

	series := make(map[string]string)
	start := mustDate(t, "2023-01-01")
	for i := 0; i < 200; i++ {
		series[start.AddDate(0, 0, i).Format(domain.DateLayout)] = "50"
	}
	series["2023-03-01 10:00:00"] = "51"

	svc := NewRSIService(testTracer, &stubProvider{payload: &domain.IndicatorPayload{Series: series}}, nil, nil, 0)
	rng := domain.QueryRange{Start: start, End: start.AddDate(1, 0, 0)}
	got, err := svc.GetHistoricalRSI(context.Background(), "IBM", rng)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Points) != 200 {
		t.Fatalf("expected 200 points, got %d", len(got.Points))
	}
	for i := 1; i < len(got.Points); i++ {
		if !got.Points[i-1].Date.After(got.Points[i].Date) {
			t.Fatalf("points not strictly descending at %d: %v then %v", i, got.Points[i-1].Date, got.Points[i].Date)
		}
	}
}

func TestGetHistoricalRSIMissingSeries(t *testing.T) {
	t.Parallel()

	svc := NewRSIService(testTracer, &stubProvider{payload: &domain.IndicatorPayload{HasMeta: true}}, nil, nil, 0)
	rng := domain.QueryRange{Start: mustDate(t, "2024-01-01"), End: mustDate(t, "2024-01-31")}

	_, err := svc.GetHistoricalRSI(context.Background(), "IBM", rng)
	if !apperror.IsKind(err, apperror.KindMissingData) {
		t.Fatalf("expected missing data error, got %v", err)
	}
}

func TestRSIServiceUsesCache(t *testing.T) {
	t.Parallel()

	cache := newFakeRedis()
	data, _ := json.Marshal(samplePayload())
	_ = cache.Set(context.Background(), "rsi:daily:14:close:IBM", data, 0)

	p := &stubProvider{err: errors.New("should not be called")}
	svc := NewRSIService(testTracer, p, cache, nil, time.Minute)

	rng := domain.QueryRange{Start: mustDate(t, "2024-01-12"), End: mustDate(t, "2024-01-12")}
	got, err := svc.GetHistoricalRSI(context.Background(), "IBM", rng)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Points) != 1 || got.Points[0].RSI != 57.25 {
		t.Fatalf("unexpected series: %+v", got)
	}
	if p.calls != 0 {
		t.Fatalf("expected cache hit, got %d provider calls", p.calls)
	}
}

func TestRSIServiceCachesFreshPayload(t *testing.T) {
	t.Parallel()

	cache := newFakeRedis()
	p := &stubProvider{payload: samplePayload(), entitlement: "realtime"}
	svc := NewRSIService(testTracer, p, cache, nil, time.Minute)

	if _, err := svc.GetLiveRSI(context.Background(), "IBM"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cache.data["rsi:daily:14:close:IBM:realtime"]; !ok {
		t.Fatalf("expected realtime payload cached, got keys %v", cache.data)
	}
	if _, err := svc.GetLiveRSI(context.Background(), "IBM"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("expected one provider call, got %d", p.calls)
	}
}

func TestRSIServiceIgnoresCacheFailures(t *testing.T) {
	t.Parallel()

	cache := newFakeRedis()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	p := &stubProvider{payload: samplePayload()}
	svc := NewRSIService(testTracer, p, cache, nil, time.Minute)

	if _, err := svc.GetLiveRSI(context.Background(), "IBM"); err != nil {
		t.Fatalf("cache failures should not fail lookups: %v", err)
	}
}

func TestRSIServiceDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	cache := newFakeRedis()
	p := &stubProvider{err: apperror.ProviderData("Invalid API call.")}
	svc := NewRSIService(testTracer, p, cache, nil, time.Minute)

	if _, err := svc.GetLiveRSI(context.Background(), "BAD"); err == nil {
		t.Fatal("expected error")
	}
	if len(cache.data) != 0 {
		t.Fatalf("expected nothing cached, got %v", cache.data)
	}
}

func TestRecorderFailureDoesNotFailLookup(t *testing.T) {
	t.Parallel()

	recorder := &stubRecorder{err: errors.New("db down")}
	svc := NewRSIService(testTracer, &stubProvider{payload: samplePayload()}, nil, recorder, 0)

	if _, err := svc.GetLiveRSI(context.Background(), "IBM"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWarmCache(t *testing.T) {
	t.Parallel()

	cache := newFakeRedis()
	p := &stubProvider{payload: samplePayload()}
	svc := NewRSIService(testTracer, p, cache, nil, time.Minute)

	if err := svc.WarmCache(context.Background(), "ibm"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cache.data["rsi:daily:14:close:IBM"]; !ok {
		t.Fatalf("expected daily payload cached, got keys %v", cache.data)
	}

	p.err = errors.New("upstream down")
	if err := svc.WarmCache(context.Background(), "IBM"); err == nil {
		t.Fatal("expected warm error")
	}
}

type stubProvider struct {
	payload      *domain.IndicatorPayload
	err          error
	unconfigured bool
	entitlement  string

	calls      int
	lastSymbol string
	lastOpts   provider.FetchOptions
}

func (s *stubProvider) FetchRSI(ctx context.Context, symbol string, opts provider.FetchOptions) (*domain.IndicatorPayload, error) {
	s.calls++
	s.lastSymbol = symbol
	s.lastOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.payload, nil
}

func (s *stubProvider) Configured() bool    { return !s.unconfigured }
func (s *stubProvider) Entitlement() string { return s.entitlement }

type stubRecorder struct {
	lookups []domain.Lookup
	err     error
}

func (s *stubRecorder) RecordLookup(ctx context.Context, lookup domain.Lookup) error {
	s.lookups = append(s.lookups, lookup)
	return s.err
}

type fakeRedis struct {
	data   map[string][]byte
	setErr error
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]byte)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = append([]byte(nil), v...)
	case string:
		f.data[key] = []byte(v)
	default:
		bytes, _ := json.Marshal(v)
		f.data[key] = bytes
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(string(v), nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func TestWarmCacheWithoutRedisSkipsProvider(t *testing.T) {
	t.Parallel()

	p := &stubProvider{payload: samplePayload()}
	svc := NewRSIService(testTracer, p, nil, nil, 0)

	for i := 0; i < 3; i++ {
		if err := svc.WarmCache(context.Background(), "IBM"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if p.calls != 0 {
		t.Fatalf("expected no provider calls without a cache, got %d", p.calls)
	}
	if svc.CacheEnabled() {
		t.Fatal("expected cache disabled")
	}
}

func TestMissingAPIKeyFailsBeforeCache(t *testing.T) {
	t.Parallel()

	cache := newFakeRedis()
	data, _ := json.Marshal(samplePayload())
	_ = cache.Set(context.Background(), "rsi:daily:14:close:IBM", data, 0)

	p := &stubProvider{payload: samplePayload(), unconfigured: true}
	svc := NewRSIService(testTracer, p, cache, nil, time.Minute)

	_, err := svc.GetLiveRSI(context.Background(), "IBM")
	if !apperror.IsKind(err, apperror.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	rng := domain.QueryRange{Start: mustDate(t, "2024-01-01"), End: mustDate(t, "2024-01-12")}
	_, err = svc.GetHistoricalRSI(context.Background(), "IBM", rng)
	if !apperror.IsKind(err, apperror.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if p.calls != 0 {
		t.Fatalf("expected no provider calls, got %d", p.calls)
	}
}

func TestLiveLookupUsesWarmedEntryWithoutEntitlement(t *testing.T) {
	t.Parallel()

	cache := newFakeRedis()
	p := &stubProvider{payload: samplePayload()}
	svc := NewRSIService(testTracer, p, cache, nil, time.Minute)

	if err := svc.WarmCache(context.Background(), "IBM"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.GetLiveRSI(context.Background(), "IBM"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("expected live lookup served from warmed cache, got %d provider calls", p.calls)
	}
	if len(cache.data) != 1 {
		t.Fatalf("expected a single shared cache entry, got %v", cache.data)
	}
}
