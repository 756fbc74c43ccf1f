package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	historyRange    string
	historyInterval string
	historyPNG      string
	screenerCount   int
)

var quoteCmd = &cobra.Command{
	Use:   "quote SYMBOL...",
	Short: "Show current quotes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		quotes, err := c.GetQuotes(cmd.Context(), args)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), quotes, func(w io.Writer) { writeQuotes(w, quotes) })
	},
}

var historyCmd = &cobra.Command{
	Use:   "history SYMBOL",
	Short: "Show price history",
	Long: `Show daily or intraday candles for a symbol.

Examples:
  marketdesk history AAPL
  marketdesk history AAPL --range 1y --interval 1wk
  marketdesk history AAPL --png aapl.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if historyPNG != "" {
			img, err := c.GetHistoryChart(cmd.Context(), args[0], historyRange, historyInterval)
			if err != nil {
				return err
			}
			if err := os.WriteFile(historyPNG, img, 0o644); err != nil {
				return fmt.Errorf("write chart: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chart written to %s (%d bytes)\n", historyPNG, len(img))
			return nil
		}
		h, err := c.GetHistory(cmd.Context(), args[0], historyRange, historyInterval)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), h, func(w io.Writer) { writeHistory(w, h) })
	},
}

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Show the major indices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		o, err := c.GetMarketOverview(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), o, func(w io.Writer) { writeQuotes(w, o.Indices) })
	},
}

var screenerCmd = &cobra.Command{
	Use:   "screener ID",
	Short: "Run a predefined screener (day_gainers, day_losers, most_actives)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		r, err := c.GetScreener(cmd.Context(), args[0], screenerCount)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), r, func(w io.Writer) {
			fmt.Fprintf(w, "%s: %d of %d\n\n", r.ID, len(r.Quotes), r.Total)
			writeQuotes(w, r.Quotes)
		})
	},
}

var technicalsCmd = &cobra.Command{
	Use:   "technicals SYMBOL",
	Short: "Show moving averages, RSI, MACD and trend from a year of daily candles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		t, err := c.GetTechnicals(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), t, func(w io.Writer) { writeTechnicals(w, t) })
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyRange, "range", "", "Range (1d, 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, 10y, ytd, max)")
	historyCmd.Flags().StringVar(&historyInterval, "interval", "", "Candle interval (1m, 5m, 15m, 30m, 1h, 1d, 1wk, 1mo)")
	historyCmd.Flags().StringVar(&historyPNG, "png", "", "Write a PNG chart to this file instead of printing candles")
	screenerCmd.Flags().IntVar(&screenerCount, "count", 0, "Number of results (1-100, default 25)")

	rootCmd.AddCommand(quoteCmd, historyCmd, overviewCmd, screenerCmd, technicalsCmd)
}
