package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/marketdesk/internal/models"
)

var (
	portfolioDescription string
	alertSymbol          string
)

var portfolioCmd = &cobra.Command{
	Use:     "portfolio",
	Aliases: []string{"pf"},
	Short:   "Manage portfolios, positions, cash and alerts",
}

var portfolioCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create an empty portfolio",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		p, err := c.CreatePortfolio(cmd.Context(), args[0], portfolioDescription)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), p, func(w io.Writer) {
			fmt.Fprintf(w, "Created portfolio %s (%s)\n", p.Name, p.ID)
		})
	},
}

var portfolioListCmd = &cobra.Command{
	Use:   "list",
	Short: "List portfolios",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		list, err := c.ListPortfolios(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), list, func(w io.Writer) { writePortfolioList(w, list) })
	},
}

var portfolioShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a freshly valued portfolio",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		p, err := c.GetPortfolio(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return renderPortfolio(cmd, p)
	},
}

var portfolioAddCmd = &cobra.Command{
	Use:   "add ID SYMBOL QUANTITY PRICE",
	Short: "Buy into a position",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty, price, err := parseTrade(args[2], args[3])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		p, err := c.AddPosition(cmd.Context(), args[0], args[1], qty, price)
		if err != nil {
			return err
		}
		return renderPortfolio(cmd, p)
	},
}

var portfolioSellCmd = &cobra.Command{
	Use:   "sell ID SYMBOL QUANTITY PRICE",
	Short: "Sell part or all of a position",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty, price, err := parseTrade(args[2], args[3])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		p, err := c.SellPosition(cmd.Context(), args[0], args[1], qty, price)
		if err != nil {
			return err
		}
		return renderPortfolio(cmd, p)
	},
}

var portfolioCashCmd = &cobra.Command{
	Use:   "cash ID AMOUNT",
	Short: "Deposit (positive) or withdraw (negative) cash",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[1], err)
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		p, err := c.AdjustCash(cmd.Context(), args[0], amount)
		if err != nil {
			return err
		}
		return renderPortfolio(cmd, p)
	},
}

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Manage portfolio alerts",
}

var alertAddCmd = &cobra.Command{
	Use:   "add ID KIND CONDITION TARGET",
	Short: "Add an alert",
	Long: `Add an alert to a portfolio.

KIND is one of price, portfolio_value, position_weight, day_change, total_return.
CONDITION is one of above, below, percent_change.
price and position_weight alerts need --symbol.

Examples:
  marketdesk portfolio alert add P1 portfolio_value above 100000
  marketdesk portfolio alert add P1 price below 140 --symbol AAPL`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			return fmt.Errorf("invalid target %q: %w", args[3], err)
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		alertType := models.AlertType{Kind: models.AlertKind(args[1]), Symbol: alertSymbol}
		a, err := c.AddAlert(cmd.Context(), args[0], alertType, models.AlertCondition(args[2]), target)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), a, func(w io.Writer) {
			fmt.Fprintf(w, "Added alert %s: %s\n", a.ID, describeAlert(*a))
		})
	},
}

var alertCheckCmd = &cobra.Command{
	Use:   "check ID",
	Short: "Evaluate alerts against current values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		fired, err := c.CheckAlerts(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), fired, func(w io.Writer) { writeTriggered(w, fired) })
	},
}

func renderPortfolio(cmd *cobra.Command, p *models.Portfolio) error {
	return render(cmd.OutOrStdout(), p, func(w io.Writer) { writePortfolio(w, p) })
}

func parseTrade(qtyArg, priceArg string) (float64, float64, error) {
	qty, err := strconv.ParseFloat(qtyArg, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid quantity %q: %w", qtyArg, err)
	}
	price, err := strconv.ParseFloat(priceArg, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid price %q: %w", priceArg, err)
	}
	return qty, price, nil
}

func init() {
	portfolioCreateCmd.Flags().StringVar(&portfolioDescription, "description", "", "Portfolio description")
	alertAddCmd.Flags().StringVar(&alertSymbol, "symbol", "", "Symbol for price and position_weight alerts")

	alertCmd.AddCommand(alertAddCmd, alertCheckCmd)
	portfolioCmd.AddCommand(portfolioCreateCmd, portfolioListCmd, portfolioShowCmd,
		portfolioAddCmd, portfolioSellCmd, portfolioCashCmd, alertCmd)
	rootCmd.AddCommand(portfolioCmd)
}
