package advisor

import (
	"fmt"
	"strings"

	"rsi-lens/internal/domain"
	"rsi-lens/internal/export"
)

// seriesContextPoints caps how many readings go into a series prompt.
const seriesContextPoints = 30

const systemPrompt = `You are a technical analysis assistant. You interpret 14-period daily RSI readings computed from closing prices.

Conventions:
- RSI at or above 70 is overbought. RSI at or below 30 is oversold. Anything between is neutral.
- Divergence between momentum and recent direction is worth pointing out.

Rules:
- Only use the readings provided. Never fabricate prices or other indicators.
- Express uncertainty when the readings are mixed.
- Keep it to three or four sentences. You are talking via a chat app or a terminal.
- Do not add financial advice disclaimers. The user understands this is informational.`

// BuildLivePrompt describes one live reading.
func BuildLivePrompt(r domain.LiveRSIResult) string {
	return fmt.Sprintf(
		"Symbol: %s\nLatest RSI: %s (%s)\nLast refreshed: %s\n\nInterpret this reading.",
		r.Symbol, export.FormatRSI(r.RSI), domain.ClassifyRSI(r.RSI), r.Timestamp,
	)
}

// BuildSeriesPrompt lists the most recent readings oldest first so the model
// reads them in chronological order.
func BuildSeriesPrompt(s *domain.RSISeries) string {
	points := export.Visible(s.Points, seriesContextPoints)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Symbol: %s\nDaily RSI readings (oldest first):\n", s.Symbol))
	for i := len(points) - 1; i >= 0; i-- {
		p := points[i]
		sb.WriteString(fmt.Sprintf("  %s: %s\n", p.DateString(), export.FormatRSI(p.RSI)))
	}
	if len(s.Points) > len(points) {
		sb.WriteString(fmt.Sprintf("(%d older readings omitted)\n", len(s.Points)-len(points)))
	}
	sb.WriteString("\nDescribe the momentum trend across these readings.")
	return sb.String()
}
