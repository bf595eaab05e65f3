package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-12")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Equal(time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date: %v", d)
	}

	d, err = ParseDate("2024-01-12 16:00:01")
	if err != nil {
		t.Fatalf("timestamp with time component should parse: %v", err)
	}
	if d.Day() != 12 || d.Hour() != 0 {
		t.Fatalf("expected calendar date only, got %v", d)
	}

	if _, err := ParseDate("01/12/2024"); err == nil {
		t.Fatal("expected error for non ISO date")
	}
	if _, err := ParseDate(""); err == nil {
		t.Fatal("expected error for empty date")
	}
}

func TestQueryRangeContainsInclusive(t *testing.T) {
	rng := QueryRange{
		Start: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
	}
	cases := map[string]bool{
		"2024-01-09": false,
		"2024-01-10": true,
		"2024-01-11": true,
		"2024-01-12": false,
	}
	for s, want := range cases {
		d, _ := ParseDate(s)
		if got := rng.Contains(d); got != want {
			t.Fatalf("%s: expected %v, got %v", s, want, got)
		}
	}

	late := time.Date(2024, 1, 11, 23, 59, 0, 0, time.UTC)
	if !rng.Contains(late) {
		t.Fatal("time of day should be ignored")
	}
}

func TestQueryRangeInverted(t *testing.T) {
	rng := QueryRange{
		Start: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	d, _ := ParseDate("2024-01-15")
	if rng.Contains(d) {
		t.Fatal("inverted range should match nothing")
	}
}

func TestClassifyRSI(t *testing.T) {
	tests := map[float64]Zone{
		85:   ZoneOverbought,
		70:   ZoneOverbought,
		69.9: ZoneNeutral,
		50:   ZoneNeutral,
		30:   ZoneOversold,
		12.5: ZoneOversold,
	}
	for v, want := range tests {
		if got := ClassifyRSI(v); got != want {
			t.Fatalf("%.1f expected %s, got %s", v, want, got)
		}
	}
}

func TestRSIPointJSON(t *testing.T) {
	p := RSIPoint{Date: time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), RSI: 55.5}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"date":"2024-01-11","rsi":55.5}` {
		t.Fatalf("unexpected json: %s", data)
	}

	var decoded RSIPoint
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Date.Equal(p.Date) || decoded.RSI != p.RSI {
		t.Fatalf("unexpected point: %+v", decoded)
	}
}

func TestNormalizeSymbol(t *testing.T) {
	if got := NormalizeSymbol("  aapl "); got != "AAPL" {
		t.Fatalf("expected AAPL, got %q", got)
	}
}
