package advisor

import (
	"strings"
	"testing"
	"time"

	"rsi-lens/internal/domain"
)

func TestBuildLivePrompt(t *testing.T) {
	prompt := BuildLivePrompt(domain.LiveRSIResult{Symbol: "IBM", RSI: 72.345, Timestamp: "2024-01-12 16:00:01"})
	for _, want := range []string{"Symbol: IBM", "Latest RSI: 72.35 (overbought)", "Last refreshed: 2024-01-12 16:00:01"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected %q in prompt:\n%s", want, prompt)
		}
	}
}

func TestBuildSeriesPromptIsChronological(t *testing.T) {
	series := &domain.RSISeries{Symbol: "IBM", Points: []domain.RSIPoint{
		{Date: time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), RSI: 61.2},
		{Date: time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), RSI: 60.1},
	}}
	prompt := BuildSeriesPrompt(series)
	older := strings.Index(prompt, "2024-01-11: 60.10")
	newer := strings.Index(prompt, "2024-01-12: 61.20")
	if older < 0 || newer < 0 || older > newer {
		t.Fatalf("expected oldest reading first:\n%s", prompt)
	}
	if strings.Contains(prompt, "omitted") {
		t.Fatal("nothing should be omitted for a short series")
	}
}

func TestBuildSeriesPromptCapsReadings(t *testing.T) {
	points := make([]domain.RSIPoint, 0, 40)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		points = append(points, domain.RSIPoint{Date: start.AddDate(0, 0, -i), RSI: 50})
	}
	prompt := BuildSeriesPrompt(&domain.RSISeries{Symbol: "IBM", Points: points})
	if !strings.Contains(prompt, "(10 older readings omitted)") {
		t.Fatalf("expected omitted count in prompt:\n%s", prompt)
	}
}

func TestSystemPromptConventions(t *testing.T) {
	if !strings.Contains(systemPrompt, "at or above 70 is overbought") {
		t.Fatal("expected overbought convention in system prompt")
	}
}
