package trades

import (
	"context"

	"tradewatch/internal/ledger"
	"tradewatch/internal/models"

	"github.com/shopspring/decimal"
)

// Position is a BUY trade with quantity left to sell.
type Position struct {
	TradeID   uint    `json:"trade_id"`
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int64   `json:"quantity"`
	Sold      int64   `json:"sold_quantity"`
	Remaining int64   `json:"remaining_quantity"`
}

// Summary aggregates a user's realized results and open positions.
type Summary struct {
	TotalSells      int64           `json:"total_sells"`
	ProfitableSells int64           `json:"profitable_sells"`
	WinRate         float64         `json:"win_rate"`
	RealizedProfit  decimal.Decimal `json:"realized_profit"`
	OpenPositions   []Position      `json:"open_positions"`
	PendingAlerts   int             `json:"pending_alerts"`
}

// Summary computes realized profit from the actor's SELL trades against
// their BUY prices, and lists BUY trades that still have quantity left.
func (s *Service) Summary(ctx context.Context, actor *models.User) (*Summary, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	all, err := s.store.TradesByUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	buys := make(map[uint]*models.Trade)
	for i := range all {
		if all[i].Action == models.ActionBuy {
			buys[all[i].ID] = &all[i]
		}
	}

	sum := &Summary{RealizedProfit: decimal.Zero, OpenPositions: []Position{}}
	for i := range all {
		t := &all[i]
		switch t.Action {
		case models.ActionSell:
			profit := decimal.NewFromFloat(t.Profit)
			if t.BuyTradeID != nil {
				if buy, ok := buys[*t.BuyTradeID]; ok {
					profit = ledger.ProfitLoss(buy.Price, t.Price, t.Quantity)
				}
			}
			sum.TotalSells++
			if profit.IsPositive() {
				sum.ProfitableSells++
			}
			sum.RealizedProfit = sum.RealizedProfit.Add(profit)
		case models.ActionBuy:
			if t.RemainingQuantity() > 0 {
				sum.OpenPositions = append(sum.OpenPositions, Position{
					TradeID:   t.ID,
					Ticker:    t.Ticker,
					Name:      t.DisplayName(),
					Price:     t.Price,
					Quantity:  t.Quantity,
					Sold:      t.SoldQuantity,
					Remaining: t.RemainingQuantity(),
				})
			}
		case models.ActionWatch:
			sum.PendingAlerts++
		}
	}

	if sum.TotalSells > 0 {
		sum.WinRate = float64(sum.ProfitableSells) / float64(sum.TotalSells)
	}
	return sum, nil
}
