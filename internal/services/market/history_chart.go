package market

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/marketdesk/internal/models"
)

// RenderHistoryChart renders a PNG line chart of closing prices.
func RenderHistoryChart(history *models.PriceHistory) ([]byte, error) {
	if history == nil || len(history.Candles) < 2 {
		n := 0
		if history != nil {
			n = len(history.Candles)
		}
		return nil, fmt.Errorf("%w: need at least 2 candles, got %d", models.ErrValidation, n)
	}

	xValues := make([]time.Time, len(history.Candles))
	closeY := make([]float64, len(history.Candles))
	for i, c := range history.Candles {
		xValues[i] = c.Date
		closeY[i] = c.Close
	}

	closeSeries := chart.TimeSeries{
		Name: history.Symbol + " Close",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"),
			FillColor:   drawing.ColorFromHex("2563eb").WithAlpha(40),
			StrokeWidth: 2,
		},
		XValues: xValues,
		YValues: closeY,
	}

	smaSeries := &chart.SMASeries{
		Name: "Moving Average",
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex("9ca3af"),
			StrokeWidth:     1.5,
			StrokeDashArray: []float64{5.0, 3.0},
		},
		InnerSeries: closeSeries,
	}

	dateFormat := "Jan 02"
	if history.Interval == "1m" || history.Interval == "5m" || history.Interval == "15m" || history.Interval == "30m" || history.Interval == "1h" {
		dateFormat = "Jan 02 15:04"
	}

	currency := history.Currency
	if currency == "" {
		currency = "USD"
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s (%s, %s)", history.Symbol, history.Range, history.Interval),
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format(dateFormat)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Name: currency,
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.2f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			closeSeries,
			smaSeries,
		},
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
