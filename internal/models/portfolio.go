package models

import "time"

// TransactionType classifies a trade or cash event.
type TransactionType string

const (
	TransactionBuy            TransactionType = "buy"
	TransactionSell           TransactionType = "sell"
	TransactionDividend       TransactionType = "dividend"
	TransactionSplit          TransactionType = "split"
	TransactionCashDeposit    TransactionType = "cash_deposit"
	TransactionCashWithdrawal TransactionType = "cash_withdrawal"
)

// Transaction is an immutable record of one trade or cash event.
type Transaction struct {
	ID        string          `json:"id"`
	Type      TransactionType `json:"type"`
	Symbol    string          `json:"symbol,omitempty"`
	Quantity  float64         `json:"quantity"`
	Price     float64         `json:"price"`
	Amount    float64         `json:"amount"` // price × quantity
	Fees      float64         `json:"fees"`
	Timestamp time.Time       `json:"timestamp"`
	Notes     string          `json:"notes,omitempty"`
}

// Position is an open holding of one symbol inside a portfolio.
type Position struct {
	ID               string        `json:"id"`
	Symbol           string        `json:"symbol"`
	Quantity         float64       `json:"quantity"`
	AverageCost      float64       `json:"average_cost"`
	CurrentPrice     float64       `json:"current_price"`
	MarketValue      float64       `json:"market_value"`
	UnrealizedPnL    float64       `json:"unrealized_pnl"`
	UnrealizedPnLPct float64       `json:"unrealized_pnl_percent"`
	DayChange        float64       `json:"day_change"`
	DayChangePct     float64       `json:"day_change_percent"` // mirrors the quote's change percent
	Weight           float64       `json:"weight"`             // market value as % of portfolio total value
	FirstBought      time.Time     `json:"first_bought"`
	LastUpdated      time.Time     `json:"last_updated"`
	Transactions     []Transaction `json:"transactions"`
}

// CostBasis returns quantity × average cost.
func (p *Position) CostBasis() float64 {
	return p.Quantity * p.AverageCost
}

// Portfolio is a named set of positions plus cash.
type Portfolio struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Positions      []*Position       `json:"positions"`
	CashBalance    float64           `json:"cash_balance"`
	CashLedger     []Transaction     `json:"cash_ledger,omitempty"`
	TotalValue     float64           `json:"total_value"`
	TotalReturn    float64           `json:"total_return"`
	TotalReturnPct float64           `json:"total_return_percent"`
	DayChange      float64           `json:"day_change"`
	DayChangePct   float64           `json:"day_change_percent"`
	Alerts         []*PortfolioAlert `json:"alerts"`
}

// FindPosition returns the open position for symbol, or nil.
func (p *Portfolio) FindPosition(symbol string) *Position {
	for _, pos := range p.Positions {
		if pos.Symbol == symbol {
			return pos
		}
	}
	return nil
}

// Symbols returns the distinct position symbols in position order.
func (p *Portfolio) Symbols() []string {
	seen := make(map[string]bool, len(p.Positions))
	symbols := make([]string, 0, len(p.Positions))
	for _, pos := range p.Positions {
		if seen[pos.Symbol] {
			continue
		}
		seen[pos.Symbol] = true
		symbols = append(symbols, pos.Symbol)
	}
	return symbols
}

// Clone returns a deep copy, safe to hand out after the store lock is released.
func (p *Portfolio) Clone() *Portfolio {
	out := *p
	out.Positions = make([]*Position, len(p.Positions))
	for i, pos := range p.Positions {
		cp := *pos
		cp.Transactions = append([]Transaction(nil), pos.Transactions...)
		out.Positions[i] = &cp
	}
	out.CashLedger = append([]Transaction(nil), p.CashLedger...)
	out.Alerts = make([]*PortfolioAlert, len(p.Alerts))
	for i, a := range p.Alerts {
		cp := a.Clone()
		out.Alerts[i] = &cp
	}
	return &out
}
