package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/Rhymond/go-money"

	"github.com/bobmcallan/marketdesk/internal/models"
)

// formatMoney displays a portfolio amount. Portfolios carry no currency
// and are shown in USD.
func formatMoney(v float64) string {
	return formatAmount(v, money.USD)
}

// formatAmount displays v in the given ISO currency. Pence-quoted listings
// ("GBp") are converted to pounds; unknown codes fall back to a plain suffix.
func formatAmount(v float64, code string) string {
	if code == "GBp" {
		v, code = v/100, money.GBP
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = money.USD
	}
	cur := money.GetCurrency(code)
	if cur == nil {
		return fmt.Sprintf("%.2f %s", v, code)
	}
	minor := math.Round(v * math.Pow10(cur.Fraction))
	return money.New(int64(minor), code).Display()
}

func formatSignedMoney(v float64) string {
	if v >= 0 {
		return "+" + formatMoney(v)
	}
	return formatMoney(v)
}

func formatSignedPct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeQuotes(w io.Writer, quotes []*models.Quote) {
	if len(quotes) == 0 {
		fmt.Fprintln(w, "No quotes.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "SYMBOL\tPRICE\tCHANGE\tCHANGE %\tVOLUME\tNAME")
	for _, q := range quotes {
		fmt.Fprintf(tw, "%s\t%s\t%+.2f\t%s\t%d\t%s\n",
			q.Symbol, formatAmount(q.Price, q.Currency), q.Change, formatSignedPct(q.ChangePct), q.Volume, q.Name)
	}
	tw.Flush()
}

func writeHistory(w io.Writer, h *models.PriceHistory) {
	fmt.Fprintf(w, "%s %s/%s, %d candles\n\n", h.Symbol, h.Range, h.Interval, len(h.Candles))
	tw := newTable(w)
	fmt.Fprintln(tw, "DATE\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME")
	for _, c := range h.Candles {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%d\n",
			c.Date.Format("2006-01-02 15:04"), c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	tw.Flush()
}

func writeTechnicals(w io.Writer, t *models.Technicals) {
	fmt.Fprintf(w, "%s as of %s (%d candles)\n\n", t.Symbol, t.AsOf.Format("2006-01-02"), t.Candles)
	tw := newTable(w)
	fmt.Fprintf(tw, "Price\t%.2f\n", t.Price)
	fmt.Fprintf(tw, "SMA 20 / 50 / 200\t%.2f / %.2f / %.2f\n", t.SMA20, t.SMA50, t.SMA200)
	fmt.Fprintf(tw, "EMA 12 / 26\t%.2f / %.2f\n", t.EMA12, t.EMA26)
	fmt.Fprintf(tw, "RSI 14\t%.1f (%s)\n", t.RSI14, t.RSISignal)
	fmt.Fprintf(tw, "MACD\t%.3f signal %.3f hist %.3f\n", t.MACD, t.MACDSignal, t.MACDHistogram)
	fmt.Fprintf(tw, "ATR 14\t%.2f\n", t.ATR14)
	fmt.Fprintf(tw, "52w range\t%.2f - %.2f\n", t.Low52Week, t.High52Week)
	fmt.Fprintf(tw, "Volume\t%.2fx (%s)\n", t.VolumeRatio, t.VolumeSignal)
	fmt.Fprintf(tw, "Crossover\t%s\n", t.Crossover)
	fmt.Fprintf(tw, "Trend\t%s\n", t.Trend)
	tw.Flush()
}

func writePortfolioList(w io.Writer, list []*models.Portfolio) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No portfolios.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tPOSITIONS\tVALUE\tRETURN")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			p.ID, p.Name, len(p.Positions), formatMoney(p.TotalValue), formatSignedPct(p.TotalReturnPct))
	}
	tw.Flush()
}

func writePortfolio(w io.Writer, p *models.Portfolio) {
	fmt.Fprintf(w, "%s (%s)\n", p.Name, p.ID)
	if p.Description != "" {
		fmt.Fprintf(w, "%s\n", p.Description)
	}
	fmt.Fprintf(w, "Total Value:  %s\n", formatMoney(p.TotalValue))
	fmt.Fprintf(w, "Cash:         %s\n", formatMoney(p.CashBalance))
	fmt.Fprintf(w, "Total Return: %s (%s)\n", formatSignedMoney(p.TotalReturn), formatSignedPct(p.TotalReturnPct))
	fmt.Fprintf(w, "Day Change:   %s (%s)\n\n", formatSignedMoney(p.DayChange), formatSignedPct(p.DayChangePct))

	if len(p.Positions) == 0 {
		fmt.Fprintln(w, "No positions.")
	} else {
		tw := newTable(w)
		fmt.Fprintln(tw, "SYMBOL\tQTY\tAVG COST\tPRICE\tVALUE\tP&L\tWEIGHT")
		for _, pos := range p.Positions {
			fmt.Fprintf(tw, "%s\t%g\t%.2f\t%.2f\t%s\t%s (%s)\t%.1f%%\n",
				pos.Symbol, pos.Quantity, pos.AverageCost, pos.CurrentPrice, formatMoney(pos.MarketValue),
				formatSignedMoney(pos.UnrealizedPnL), formatSignedPct(pos.UnrealizedPnLPct), pos.Weight)
		}
		tw.Flush()
	}

	if len(p.Alerts) > 0 {
		fmt.Fprintln(w, "\nAlerts:")
		for _, a := range p.Alerts {
			state := "pending"
			if a.IsTriggered {
				state = "triggered"
			}
			fmt.Fprintf(w, "  %s  %s [%s]\n", a.ID, describeAlert(*a), state)
		}
	}
}

func describeAlert(a models.PortfolioAlert) string {
	subject := string(a.Type.Kind)
	if a.Type.Symbol != "" {
		subject += " " + a.Type.Symbol
	}
	return fmt.Sprintf("%s %s %g", subject, strings.ReplaceAll(string(a.Condition), "_", " "), a.TargetValue)
}

func writeTriggered(w io.Writer, fired []models.PortfolioAlert) {
	if len(fired) == 0 {
		fmt.Fprintln(w, "No alerts triggered.")
		return
	}
	for _, a := range fired {
		fmt.Fprintf(w, "TRIGGERED %s: %s (current %.2f)\n", a.ID, describeAlert(a), a.CurrentValue)
	}
}
