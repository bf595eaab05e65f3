package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used by the provider and the API.
const DateLayout = "2006-01-02"

// Fixed indicator parameters sent with every provider query.
const (
	IndicatorFunction = "RSI"
	IndicatorInterval = "daily"
	IndicatorPeriod   = 14
	IndicatorSeries   = "close"
)

// RSI zone boundaries.
const (
	OverboughtLevel = 70.0
	OversoldLevel   = 30.0
)

// RSIPoint is a single dated RSI reading.
type RSIPoint struct {
	Date time.Time `json:"-"`
	RSI  float64   `json:"rsi"`
}

// DateString returns the point's date as YYYY-MM-DD.
func (p RSIPoint) DateString() string {
	return p.Date.Format(DateLayout)
}

type rsiPointJSON struct {
	Date string  `json:"date"`
	RSI  float64 `json:"rsi"`
}

func (p RSIPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(rsiPointJSON{Date: p.DateString(), RSI: p.RSI})
}

func (p *RSIPoint) UnmarshalJSON(data []byte) error {
	var raw rsiPointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d, err := ParseDate(raw.Date)
	if err != nil {
		return err
	}
	p.Date = d
	p.RSI = raw.RSI
	return nil
}

// RSISeries is an RSI time series for one symbol, newest first.
type RSISeries struct {
	Symbol  string     `json:"symbol"`
	Points  []RSIPoint `json:"data"`
	Skipped int        `json:"skipped,omitempty"`
}

// LiveRSIResult is the most recent RSI reading for a symbol.
type LiveRSIResult struct {
	Symbol    string  `json:"symbol"`
	RSI       float64 `json:"rsi"`
	Timestamp string  `json:"timestamp"`
}

// QueryRange is an inclusive calendar-date range. Start after End is allowed
// and simply matches nothing.
type QueryRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether d falls within the range, ignoring time of day.
func (r QueryRange) Contains(d time.Time) bool {
	day := TruncateDay(d)
	return !day.Before(TruncateDay(r.Start)) && !day.After(TruncateDay(r.End))
}

// IndicatorPayload is the provider response reduced to the fields we use.
type IndicatorPayload struct {
	Symbol        string            `json:"symbol"`
	HasMeta       bool              `json:"has_meta"`
	LastRefreshed string            `json:"last_refreshed"`
	TimeZone      string            `json:"time_zone,omitempty"`
	Series        map[string]string `json:"series"`
}

// LookupMode identifies which gateway endpoint served a lookup.
type LookupMode string

const (
	LookupModeLive       LookupMode = "live"
	LookupModeHistorical LookupMode = "historical"
)

// Lookup is a record of one successful gateway query.
type Lookup struct {
	ID         int64      `json:"id"`
	Symbol     string     `json:"symbol"`
	Mode       LookupMode `json:"mode"`
	RangeStart *time.Time `json:"range_start,omitempty"`
	RangeEnd   *time.Time `json:"range_end,omitempty"`
	Points     int        `json:"points"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Zone classifies an RSI value against the conventional 70/30 bands.
type Zone string

const (
	ZoneOverbought Zone = "overbought"
	ZoneOversold   Zone = "oversold"
	ZoneNeutral    Zone = "neutral"
)

func ClassifyRSI(v float64) Zone {
	switch {
	case v >= OverboughtLevel:
		return ZoneOverbought
	case v <= OversoldLevel:
		return ZoneOversold
	default:
		return ZoneNeutral
	}
}

// ParseDate parses a YYYY-MM-DD date. A trailing time component separated by
// a space is ignored, so provider timestamps such as "2024-01-12 16:00:01"
// also parse.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// TruncateDay drops the time-of-day component, keeping the calendar date.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
