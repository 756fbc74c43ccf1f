package portfolio

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/bobmcallan/marketdesk/internal/models"
)

// quantityEpsilon absorbs float residue when a sell closes a position.
const quantityEpsilon = 1e-9

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func validateTrade(symbol string, quantity, price float64) error {
	if symbol == "" {
		return fmt.Errorf("%w: symbol is required", models.ErrValidation)
	}
	if !(quantity > 0) || math.IsInf(quantity, 0) {
		return fmt.Errorf("%w: quantity must be positive", models.ErrValidation)
	}
	if !(price > 0) || math.IsInf(price, 0) {
		return fmt.Errorf("%w: price must be positive", models.ErrValidation)
	}
	return nil
}

// AddPosition records a buy. An existing position for the symbol is merged
// by volume-weighted average cost; otherwise a new position is opened.
func (s *Service) AddPosition(ctx context.Context, portfolioID, symbol string, quantity, price float64) error {
	symbol = normalizeSymbol(symbol)
	if err := validateTrade(symbol, quantity, price); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.lookup(portfolioID)
	if err != nil {
		return err
	}

	now := s.now()
	txn := models.Transaction{
		ID:        s.newID(),
		Type:      models.TransactionBuy,
		Symbol:    symbol,
		Quantity:  quantity,
		Price:     price,
		Amount:    price * quantity,
		Timestamp: now,
	}

	if pos := p.FindPosition(symbol); pos != nil {
		total := pos.Quantity + quantity
		pos.AverageCost = (pos.AverageCost*pos.Quantity + price*quantity) / total
		pos.Quantity = total
		pos.Transactions = append(pos.Transactions, txn)
		pos.LastUpdated = now
	} else {
		p.Positions = append(p.Positions, &models.Position{
			ID:           s.newID(),
			Symbol:       symbol,
			Quantity:     quantity,
			AverageCost:  price,
			CurrentPrice: price,
			MarketValue:  price * quantity,
			FirstBought:  now,
			LastUpdated:  now,
			Transactions: []models.Transaction{txn},
		})
	}
	p.UpdatedAt = now

	s.logger.Info().Str("portfolio_id", portfolioID).Str("symbol", symbol).
		Float64("quantity", quantity).Float64("price", price).Msg("Position added")
	return nil
}

// SellPosition reduces a position, leaving its average cost unchanged.
// Selling the whole quantity closes the position.
func (s *Service) SellPosition(ctx context.Context, portfolioID, symbol string, quantity, price float64) error {
	symbol = normalizeSymbol(symbol)
	if err := validateTrade(symbol, quantity, price); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.lookup(portfolioID)
	if err != nil {
		return err
	}

	idx := -1
	for i, pos := range p.Positions {
		if pos.Symbol == symbol {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: no position for %s in portfolio %s", models.ErrDataNotFound, symbol, portfolioID)
	}

	pos := p.Positions[idx]
	if quantity > pos.Quantity+quantityEpsilon {
		return fmt.Errorf("%w: cannot sell %g %s, only %g held", models.ErrValidation, quantity, symbol, pos.Quantity)
	}

	now := s.now()
	pos.Transactions = append(pos.Transactions, models.Transaction{
		ID:        s.newID(),
		Type:      models.TransactionSell,
		Symbol:    symbol,
		Quantity:  quantity,
		Price:     price,
		Amount:    price * quantity,
		Timestamp: now,
	})
	pos.Quantity -= quantity
	pos.LastUpdated = now

	if pos.Quantity <= quantityEpsilon {
		p.Positions = append(p.Positions[:idx], p.Positions[idx+1:]...)
		s.logger.Info().Str("portfolio_id", portfolioID).Str("symbol", symbol).Msg("Position closed")
	}
	p.UpdatedAt = now

	return nil
}

// AdjustCash deposits a positive amount or withdraws a negative one.
// Withdrawing more than the balance fails with ErrValidation.
func (s *Service) AdjustCash(ctx context.Context, portfolioID string, amount float64) error {
	if amount == 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: cash amount must be non-zero", models.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.lookup(portfolioID)
	if err != nil {
		return err
	}

	txnType := models.TransactionCashDeposit
	if amount < 0 {
		if -amount > p.CashBalance+quantityEpsilon {
			return fmt.Errorf("%w: withdrawal of %.2f exceeds cash balance %.2f", models.ErrValidation, -amount, p.CashBalance)
		}
		txnType = models.TransactionCashWithdrawal
	}

	now := s.now()
	abs := math.Abs(amount)
	p.CashLedger = append(p.CashLedger, models.Transaction{
		ID:        s.newID(),
		Type:      txnType,
		Quantity:  abs,
		Price:     1,
		Amount:    abs,
		Timestamp: now,
	})
	p.CashBalance += amount
	p.UpdatedAt = now

	s.logger.Info().Str("portfolio_id", portfolioID).Float64("amount", amount).Float64("balance", p.CashBalance).Msg("Cash adjusted")
	return nil
}
