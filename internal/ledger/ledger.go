// Package ledger applies sells against open BUY positions.
//
// It is pure: nothing here touches storage. The caller persists the returned
// SELL trade and the updated BUY trade together.
package ledger

import (
	"fmt"
	"time"

	"tradewatch/internal/models"

	"github.com/shopspring/decimal"
)

// SellResult is the outcome of applying a sell to a BUY trade.
type SellResult struct {
	SellTrade  *models.Trade   `json:"sell_trade"`
	BuyTrade   *models.Trade   `json:"buy_trade"`
	ProfitLoss decimal.Decimal `json:"profit_loss"`
	Remaining  int64           `json:"remaining_quantity"`
}

// ApplySell validates a sell of quantity units at price against buy and
// returns the new SELL trade together with a copy of buy whose sold quantity
// has been incremented. buy itself is never modified; on error nothing is
// returned.
func ApplySell(buy *models.Trade, price float64, quantity int64, at time.Time) (*SellResult, error) {
	if buy == nil {
		return nil, fmt.Errorf("buy trade is required: %w", models.ErrInvalidArgument)
	}
	if buy.Action != models.ActionBuy {
		return nil, fmt.Errorf("trade %d is a %s trade, only BUY trades can be sold: %w", buy.ID, buy.Action, models.ErrInvalidArgument)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("sell quantity must be positive, got %d: %w", quantity, models.ErrInvalidArgument)
	}
	if price <= 0 {
		return nil, fmt.Errorf("sell price must be positive, got %v: %w", price, models.ErrInvalidArgument)
	}
	remaining := buy.RemainingQuantity()
	if quantity > remaining {
		return nil, fmt.Errorf("sell quantity %d exceeds remaining amount %d: %w", quantity, remaining, models.ErrInvalidArgument)
	}

	profit := ProfitLoss(buy.Price, price, quantity)

	updated := *buy
	updated.User = nil
	updated.SoldQuantity += quantity

	buyID := buy.ID
	sell := &models.Trade{
		UserID:     buy.UserID,
		Ticker:     buy.Ticker,
		Name:       buy.DisplayName(),
		Price:      price,
		Quantity:   quantity,
		Action:     models.ActionSell,
		TradeDate:  at,
		BuyTradeID: &buyID,
		Profit:     profit.InexactFloat64(),
	}

	return &SellResult{
		SellTrade:  sell,
		BuyTrade:   &updated,
		ProfitLoss: profit,
		Remaining:  updated.RemainingQuantity(),
	}, nil
}

// ProfitLoss is (sellPrice - buyPrice) * quantity in decimal arithmetic.
func ProfitLoss(buyPrice, sellPrice float64, quantity int64) decimal.Decimal {
	return decimal.NewFromFloat(sellPrice).
		Sub(decimal.NewFromFloat(buyPrice)).
		Mul(decimal.NewFromInt(quantity))
}
