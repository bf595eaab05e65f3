package chart

import (
	"bytes"
	"testing"
	"time"

	"rsi-lens/internal/domain"
)

func TestRenderRSIRequiresTwoPoints(t *testing.T) {
	if _, err := RenderRSI(nil); err != ErrNotEnoughPoints {
		t.Fatalf("expected ErrNotEnoughPoints for nil series, got %v", err)
	}
	one := &domain.RSISeries{Symbol: "IBM", Points: []domain.RSIPoint{{Date: time.Now(), RSI: 50}}}
	if _, err := RenderRSI(one); err != ErrNotEnoughPoints {
		t.Fatalf("expected ErrNotEnoughPoints for one point, got %v", err)
	}
}

func TestRenderRSIProducesPNG(t *testing.T) {
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	points := make([]domain.RSIPoint, 20)
	for i := range points {
		points[i] = domain.RSIPoint{Date: start.AddDate(0, 0, -i), RSI: 25 + float64(i)*2.5}
	}

	img, err := RenderRSI(&domain.RSISeries{Symbol: "IBM", Points: points})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(img, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatalf("expected png output, got % x", img[:8])
	}
}
