package chart

import (
	"errors"
	"fmt"

	"rsi-lens/internal/domain"

	charts "github.com/vicanso/go-charts/v2"
)

var ErrNotEnoughPoints = errors.New("not enough data points")

// RenderRSI draws series oldest to newest on a fixed 0-100 axis with the
// 70/30 zone boundaries as flat guide lines, and returns a PNG.
func RenderRSI(series *domain.RSISeries) ([]byte, error) {
	if series == nil || len(series.Points) < 2 {
		return nil, ErrNotEnoughPoints
	}

	n := len(series.Points)
	values := make([]float64, n)
	overbought := make([]float64, n)
	oversold := make([]float64, n)
	labels := make([]string, n)
	for i, p := range series.Points {
		// points arrive newest first
		j := n - 1 - i
		values[j] = p.RSI
		overbought[j] = domain.OverboughtLevel
		oversold[j] = domain.OversoldLevel
		labels[j] = p.Date.Format("01-02")
	}

	split := 10
	if n <= 30 {
		split = n / 3
		if split < 2 {
			split = 2
		}
	}

	yMin, yMax := 0.0, 100.0
	title := fmt.Sprintf("%s • RSI(%d) • %s", series.Symbol, domain.IndicatorPeriod, domain.IndicatorInterval)
	subtitle := fmt.Sprintf("%s to %s", series.Points[n-1].DateString(), series.Points[0].DateString())

	painter, err := charts.LineRender(
		[][]float64{values, overbought, oversold},
		charts.TitleTextOptionFunc(title, subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			BoundaryGap: charts.FalseFlag(),
			SplitNumber: split,
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: []string{"RSI", "Overbought (70)", "Oversold (30)"},
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(900),
		charts.HeightOptionFunc(500),
	)
	if err != nil {
		return nil, fmt.Errorf("render rsi chart: %w", err)
	}

	buf, err := painter.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode rsi chart: %w", err)
	}
	return buf, nil
}
