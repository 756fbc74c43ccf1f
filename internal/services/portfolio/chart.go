package portfolio

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/marketdesk/internal/models"
)

var allocationPalette = []string{"2563eb", "16a34a", "f59e0b", "dc2626", "7c3aed", "0891b2", "db2777", "65a30d"}

// RenderAllocationChart renders a PNG bar chart of position weights, plus
// cash when the portfolio holds any, from the last valuation.
func RenderAllocationChart(p *models.Portfolio) ([]byte, error) {
	if p == nil || p.TotalValue <= 0 {
		return nil, fmt.Errorf("%w: portfolio has no value to chart", models.ErrValidation)
	}

	bars := make([]chart.Value, 0, len(p.Positions)+1)
	for i, pos := range p.Positions {
		bars = append(bars, chart.Value{
			Label: pos.Symbol,
			Value: pos.Weight,
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex(allocationPalette[i%len(allocationPalette)]),
				StrokeColor: drawing.ColorFromHex(allocationPalette[i%len(allocationPalette)]),
			},
		})
	}
	if p.CashBalance > 0 {
		bars = append(bars, chart.Value{
			Label: "Cash",
			Value: p.CashBalance / p.TotalValue * 100,
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex("9ca3af"),
				StrokeColor: drawing.ColorFromHex("9ca3af"),
			},
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: portfolio has no positions", models.ErrValidation)
	}

	graph := chart.BarChart{
		Title:  p.Name + " Allocation",
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		BarWidth: 60,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f%%", f)
				}
				return ""
			},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
