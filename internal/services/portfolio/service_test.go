package portfolio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/marketdesk/internal/common"
	"github.com/bobmcallan/marketdesk/internal/models"
)

func approxEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

// --- mock quote source ---

type mockQuoteSource struct {
	mu     sync.Mutex
	quotes map[string]*models.Quote
	errs   map[string]error
	calls  map[string]int
}

func newMockQuoteSource() *mockQuoteSource {
	return &mockQuoteSource{
		quotes: make(map[string]*models.Quote),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (m *mockQuoteSource) set(symbol string, price, change, changePct float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[symbol] = &models.Quote{Symbol: symbol, Price: price, Change: change, ChangePct: changePct}
}

func (m *mockQuoteSource) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[symbol]++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.errs[symbol]; ok {
		return nil, err
	}
	q, ok := m.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrDataNotFound, symbol)
	}
	cp := *q
	return &cp, nil
}

type fixture struct {
	svc    *Service
	quotes *mockQuoteSource
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		quotes: newMockQuoteSource(),
		now:    time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC),
	}
	f.svc = NewService(f.quotes, common.NewSilentLogger())
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) create(t *testing.T, name string) string {
	t.Helper()
	id, err := f.svc.CreatePortfolio(context.Background(), name, "")
	require.NoError(t, err)
	return id
}

// stored returns the live portfolio without revaluing it.
func (f *fixture) stored(t *testing.T, id string) *models.Portfolio {
	t.Helper()
	f.svc.mu.RLock()
	defer f.svc.mu.RUnlock()
	p, err := f.svc.lookup(id)
	require.NoError(t, err)
	return p.Clone()
}

// --- portfolio lifecycle ---

func TestCreatePortfolio_ValidatesName(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreatePortfolio(context.Background(), "   ", "desc")
	assert.ErrorIs(t, err, models.ErrValidation)

	id, err := f.svc.CreatePortfolio(context.Background(), " Growth ", " long term ")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	p := f.stored(t, id)
	assert.Equal(t, "Growth", p.Name)
	assert.Equal(t, "long term", p.Description)
	assert.Equal(t, f.now, p.CreatedAt)
	assert.Empty(t, p.Positions)
}

func TestGetPortfolio_MissingIsDataNotFoundWithoutPlaceholder(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetPortfolio(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, models.ErrDataNotFound)

	list, err := f.svc.ListPortfolios(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list, "no placeholder created")
}

func TestListPortfolios_CreationOrder(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "A")
	b := f.create(t, "B")
	c := f.create(t, "C")

	require.NoError(t, f.svc.DeletePortfolio(context.Background(), b))

	list, err := f.svc.ListPortfolios(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a, list[0].ID)
	assert.Equal(t, c, list[1].ID)

	assert.ErrorIs(t, f.svc.DeletePortfolio(context.Background(), b), models.ErrDataNotFound)
}

func TestGetPortfolio_ReturnsSnapshot(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "P")
	f.quotes.set("AAPL", 100, 0, 0)
	require.NoError(t, f.svc.AddPosition(context.Background(), id, "AAPL", 1, 100))

	p, err := f.svc.GetPortfolio(context.Background(), id)
	require.NoError(t, err)
	p.Positions[0].Quantity = 999
	p.Name = "mutated"

	again := f.stored(t, id)
	assert.Equal(t, 1.0, again.Positions[0].Quantity)
	assert.Equal(t, "P", again.Name)
}

// --- add position ---

func TestAddPosition_WeightedAverageScenario(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "P")
	ctx := context.Background()

	require.NoError(t, f.svc.AddPosition(ctx, id, "AAPL", 100, 150.0))
	require.NoError(t, f.svc.AddPosition(ctx, id, "AAPL", 50, 180.0))

	p := f.stored(t, id)
	require.Len(t, p.Positions, 1)
	pos := p.Positions[0]
	assert.Equal(t, 150.0, pos.Quantity)
	assert.True(t, approxEqual(pos.AverageCost, 160.0, 1e-9), "average cost %.6f", pos.AverageCost)
	require.Len(t, pos.Transactions, 2)
	assert.Equal(t, models.TransactionBuy, pos.Transactions[0].Type)
	assert.Equal(t, 15000.0, pos.Transactions[0].Amount)
	assert.Equal(t, 9000.0, pos.Transactions[1].Amount)
}

func TestAddPosition_OrderIndependentWithoutSells(t *testing.T) {
	buys := []struct{ qty, price float64 }{{10, 100}, {25, 140}, {5, 90}, {60, 120.5}}
	orders := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {2, 0, 3, 1}, {1, 3, 0, 2}}

	var wantQty, wantCost float64
	for _, b := range buys {
		wantQty += b.qty
		wantCost += b.qty * b.price
	}

	for _, order := range orders {
		f := newFixture(t)
		id := f.create(t, "P")
		for _, i := range order {
			require.NoError(t, f.svc.AddPosition(context.Background(), id, "MSFT", buys[i].qty, buys[i].price))
		}
		pos := f.stored(t, id).Positions[0]
		assert.Equal(t, wantQty, pos.Quantity, "order %v", order)
		assert.True(t, approxEqual(pos.AverageCost, wantCost/wantQty, 1e-9), "order %v: got %.9f want %.9f", order, pos.AverageCost, wantCost/wantQty)
	}
}

func TestAddPosition_NewPositionFields(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "P")

	require.NoError(t, f.svc.AddPosition(context.Background(), id, " aapl ", 10, 150))

	pos := f.stored(t, id).Positions[0]
	assert.Equal(t, "AAPL", pos.Symbol)
	assert.Equal(t, 150.0, pos.AverageCost)
	assert.Equal(t, 1500.0, pos.MarketValue)
	assert.Equal(t, f.now, pos.FirstBought)
	assert.NotEmpty(t, pos.ID)
}

func TestAddPosition_FirstBoughtNeverUpdated(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "P")
	first := f.now

	require.NoError(t, f.svc.AddPosition(context.Background(), id, "AAPL", 1, 100))
	f.now = f.now.Add(48 * time.Hour)
	require.NoError(t, f.svc.AddPosition(context.Background(), id, "AAPL", 1, 110))

	pos := f.stored(t, id).Positions[0]
	assert.Equal(t, first, pos.FirstBought)
	assert.Equal(t, f.now, pos.LastUpdated)
}

func TestAddPosition_Errors(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "P")
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.AddPosition(ctx, "missing", "AAPL", 1, 1), models.ErrDataNotFound)
	assert.ErrorIs(t, f.svc.AddPosition(ctx, id, "", 1, 1), models.ErrValidation)
	assert.ErrorIs(t, f.svc.AddPosition(ctx, id, "AAPL", 0, 1), models.ErrValidation)
	assert.ErrorIs(t, f.svc.AddPosition(ctx, id, "AAPL", -3, 1), models.ErrValidation)
	assert.ErrorIs(t, f.svc.AddPosition(ctx, id, "AAPL", 1, 0), models.ErrValidation)
	assert.ErrorIs(t, f.svc.AddPosition(ctx, id, "AAPL", math.NaN(), 1), models.ErrValidation)
}

// --- sell and cash ---

func TestSellPosition_ReducesQuantityKeepsAverage(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "P")
	ctx := context.Background()
	require.NoError(t, f.svc.AddPosition(ctx, id, "AAPL", 10, 150))

	require.NoError(t, f.svc.SellPosition(ctx, id, "AAPL", 4, 170))

	pos := f.stored(t, id).Positions[0]
	assert.Equal(t, 6.0, pos.Quantity)
	assert.Equal(t, 150.0, pos.AverageCost)
	require.Len(t, pos.Transactions, 2)
	assert.Equal(t, models.TransactionSell, pos.Transactions[1].Type)
	assert.Equal(t, 680.0, pos.Transactions[1].Amount)
}

func TestSellPosition_FullSellClosesPosition(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "P")
	ctx := context.Background()
	require.NoError(t, f.svc.AddPosition(ctx, id, "AAPL", 10, 150))
	require.NoError(t, f.svc.AddPosition(ctx, id, "MSFT", 5, 300))

	require.NoError(t, f.svc.SellPosition(ctx, id, "AAPL", 10, 160))

	p := f.stored(t, id)
	require.Len(t, p.Positions, 1)
	assert.Equal(t, "MSFT", p.Positions[0].Symbol)
}

func TestSellPosition_Errors(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "P")
	ctx := context.Background()
	require.NoError(t, f.svc.AddPosition(ctx, id, "AAPL", 10, 150))

	assert.ErrorIs(t, f.svc.SellPosition(ctx, id, "AAPL", 11, 150), models.ErrValidation)
	assert.ErrorIs(t, f.svc.SellPosition(ctx, id, "TSLA", 1, 150), models.ErrDataNotFound)
	assert.ErrorIs(t, f.svc.SellPosition(ctx, "missing", "AAPL", 1, 150), models.ErrDataNotFound)
	assert.Equal(t, 10.0, f.stored(t, id).Positions[0].Quantity)
}

func TestAdjustCash_DepositAndWithdraw(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "P")
	ctx := context.Background()

	require.NoError(t, f.svc.AdjustCash(ctx, id, 1000))
	require.NoError(t, f.svc.AdjustCash(ctx, id, -250))
	assert.ErrorIs(t, f.svc.AdjustCash(ctx, id, -5000), models.ErrValidation)
	assert.ErrorIs(t, f.svc.AdjustCash(ctx, id, 0), models.ErrValidation)
	assert.ErrorIs(t, f.svc.AdjustCash(ctx, "missing", 10), models.ErrDataNotFound)

	p := f.stored(t, id)
	assert.Equal(t, 750.0, p.CashBalance)
	require.Len(t, p.CashLedger, 2)
	assert.Equal(t, models.TransactionCashDeposit, p.CashLedger[0].Type)
	assert.Equal(t, models.TransactionCashWithdrawal, p.CashLedger[1].Type)
	assert.Equal(t, 250.0, p.CashLedger[1].Amount)
}

// --- valuation ---

func TestUpdatePortfolioValues_SinglePositionScenario(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "P")
	require.NoError(t, f.svc.AddPosition(context.Background(), id, "AAPL", 10, 150))
	f.quotes.set("AAPL", 165, 5, 3.1)

	f.now = f.now.Add(time.Hour)
	require.NoError(t, f.svc.UpdatePortfolioValues(context.Background(), id))

	p := f.stored(t, id)
	pos := p.Positions[0]
	assert.Equal(t, 165.0, pos.CurrentPrice)
	assert.Equal(t, 1650.0, pos.MarketValue)
	assert.Equal(t, 150.0, pos.UnrealizedPnL)
	assert.True(t, approxEqual(pos.UnrealizedPnLPct, 10.0, 1e-9))
	assert.Equal(t, 50.0, pos.DayChange)
	assert.Equal(t, 3.1, pos.DayChangePct, "mirrors the quote")
	assert.True(t, approxEqual(pos.Weight, 100.0, 1e-9))
	assert.Equal(t, f.now, pos.LastUpdated)

	assert.Equal(t, 1650.0, p.TotalValue)
	assert.Equal(t, 150.0, p.TotalReturn)
	assert.True(t, approxEqual(p.TotalReturnPct, 10.0, 1e-9))
	assert.Equal(t, 50.0, p.DayChange)
	assert.True(t, approxEqual(p.DayChangePct, 50.0/1600.0*100, 1e-9))
	assert.Equal(t, f.now, p.UpdatedAt)
}

func TestUpdatePortfolioValues_CashExcludedFromReturn(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "P")
	ctx := context.Background()
	require.NoError(t, f.svc.AdjustCash(ctx, id, 500))
	require.NoError(t, f.svc.AddPosition(ctx, id, "AAPL", 10, 100))
	f.quotes.set("AAPL", 110, 1, 0.9)

	require.NoError(t, f.svc.UpdatePortfolioValues(ctx, id))

	p := f.stored(t, id)
	assert.Equal(t, 1600.0, p.TotalValue)
	assert.Equal(t, 100.0, p.TotalReturn)
	assert.True(t, approxEqual(p.TotalReturnPct, 10.0, 1e-9))
	assert.True(t, approxEqual(p.Positions[0].Weight, 1100.0/1600.0*100, 1e-9))
}

func TestUpdatePortfolioValues_Idempotent(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "P")
	ctx := context.Background()
	require.NoError(t, f.svc.AdjustCash(ctx, id, 250))
	require.NoError(t, f.svc.AddPosition(ctx, id, "AAPL", 10, 150))
	require.NoError(t, f.svc.AddPosition(ctx, id, "MSFT", 3, 410))
	f.quotes.set("AAPL", 165, 5, 3.1)
	f.quotes.set("MSFT", 400, -2, -0.5)

	require.NoError(t, f.svc.UpdatePortfolioValues(ctx, id))
	first := f.stored(t, id)
	require.NoError(t, f.svc.UpdatePortfolioValues(ctx, id))
	second := f.stored(t, id)

	assert.Equal(t, first.TotalValue, second.TotalValue)
	assert.Equal(t, first.TotalReturn, second.TotalReturn)
	assert.Equal(t, first.TotalReturnPct, second.TotalReturnPct)
	assert.Equal(t, first.DayChange, second.DayChange)
	assert.Equal(t, first.DayChangePct, second.DayChangePct)
	for i := range first.Positions {
		assert.Equal(t, first.Positions[i].Weight, second.Positions[i].Weight)
		assert.Equal(t, first.Positions[i].MarketValue, second.Positions[i].MarketValue)
	}
}

func TestUpdatePortfolioValues_WeightsSum(t *testing.T) {
	tests := []struct {
		name string
		cash float64
	}{
		{"no cash", 0},
		{"with cash", 1234.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := f.create(t, "P")
			ctx := context.Background()
			if tt.cash > 0 {
				require.NoError(t, f.svc.AdjustCash(ctx, id, tt.cash))
			}
			for i, sym := range []string{"AAPL", "MSFT", "GOOG", "AMZN"} {
				require.NoError(t, f.svc.AddPosition(ctx, id, sym, float64(3+i), 100+float64(i)*37))
				f.quotes.set(sym, 90+float64(i)*41, 1, 1)
			}

			require.NoError(t, f.svc.UpdatePortfolioValues(ctx, id))

			var sum float64
			for _, pos := range f.stored(t, id).Positions {
				sum += pos.Weight
			}
			assert.LessOrEqual(t, sum, 100.0+1e-9)
			if tt.cash == 0 {
				assert.True(t, approxEqual(sum, 100.0, 1e-9), "sum %.12f", sum)
			} else {
				assert.Less(t, sum, 100.0)
			}
		})
	}
}

func TestUpdatePortfolioValues_FailedQuoteKeepsPreviousValues(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "P")
	ctx := context.Background()
	require.NoError(t, f.svc.AddPosition(ctx, id, "AAPL", 10, 150))
	require.NoError(t, f.svc.AddPosition(ctx, id, "MSFT", 2, 400))
	f.quotes.set("AAPL", 160, 1, 0.6)
	f.quotes.set("MSFT", 420, 2, 0.5)
	require.NoError(t, f.svc.UpdatePortfolioValues(ctx, id))

	f.quotes.set("AAPL", 170, 10, 6.2)
	f.quotes.errs["MSFT"] = fmt.Errorf("%w: upstream down", models.ErrNetwork)
	require.NoError(t, f.svc.UpdatePortfolioValues(ctx, id))

	p := f.stored(t, id)
	aapl, msft := p.FindPosition("AAPL"), p.FindPosition("MSFT")
	assert.Equal(t, 170.0, aapl.CurrentPrice)
	assert.Equal(t, 420.0, msft.CurrentPrice, "stale data retained")
	assert.Equal(t, 840.0, msft.MarketValue)
	assert.Equal(t, 1700.0+840.0, p.TotalValue)
}

func TestUpdatePortfolioValues_MissingPortfolio(t *testing.T) {
	f := newFixture(t)
	err := f.svc.UpdatePortfolioValues(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrDataNotFound)
}

func TestUpdatePortfolioValues_EmptyPortfolio(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "P")
	require.NoError(t, f.svc.UpdatePortfolioValues(context.Background(), id))

	p := f.stored(t, id)
	assert.Equal(t, 0.0, p.TotalValue)
	assert.Equal(t, 0.0, p.TotalReturnPct)
	assert.Equal(t, 0.0, p.DayChangePct)
}

func TestUpdatePortfolioValues_OneQuotePerDistinctSymbol(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "P")
	ctx := context.Background()
	require.NoError(t, f.svc.AddPosition(ctx, id, "AAPL", 1, 100))
	require.NoError(t, f.svc.AddPosition(ctx, id, "AAPL", 1, 120))
	f.quotes.set("AAPL", 110, 0, 0)

	require.NoError(t, f.svc.UpdatePortfolioValues(ctx, id))
	assert.Equal(t, 1, f.quotes.calls["AAPL"])
}

func TestGetPortfolio_RefreshesUnlessDisabled(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "P")
	ctx := context.Background()
	require.NoError(t, f.svc.AddPosition(ctx, id, "AAPL", 10, 150))
	f.quotes.set("AAPL", 165, 5, 3.1)

	p, err := f.svc.GetPortfolio(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1650.0, p.TotalValue)

	f.svc.SetRefreshOnGet(false)
	f.quotes.set("AAPL", 200, 0, 0)
	p, err = f.svc.GetPortfolio(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1650.0, p.TotalValue)
}

func TestGetPortfolio_CancelledCallerStillRevalues(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "P")
	require.NoError(t, f.svc.AddPosition(context.Background(), id, "AAPL", 10, 150))
	require.NoError(t, f.svc.AddPosition(context.Background(), id, "MSFT", 5, 300))
	f.quotes.set("AAPL", 165, 5, 3.1)
	f.quotes.set("MSFT", 310, 2, 0.6)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := f.svc.GetPortfolio(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 165.0, p.FindPosition("AAPL").CurrentPrice)
	assert.Equal(t, 310.0, p.FindPosition("MSFT").CurrentPrice)
	assert.Equal(t, 1650.0+1550.0, p.TotalValue)
}

func TestUpdatePortfolioValues_ConcurrentCallers(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "P")
	ctx := context.Background()
	require.NoError(t, f.svc.AddPosition(ctx, id, "AAPL", 10, 150))
	f.quotes.set("AAPL", 165, 5, 3.1)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.UpdatePortfolioValues(ctx, id))
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.ListPortfolios(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1650.0, f.stored(t, id).TotalValue)
}
