package trades

import (
	"context"
	"fmt"

	"tradewatch/internal/database"
	"tradewatch/internal/ledger"
	"tradewatch/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SellRequest is the input of SellTrade. RequestKey makes the call safe to
// retry: a key that already produced a sell returns that sell again.
type SellRequest struct {
	BuyTradeID uint    `json:"buy_trade_id"`
	Price      float64 `json:"price"`
	Quantity   int64   `json:"quantity"`
	RequestKey string  `json:"request_key,omitempty"`
}

// SellResult is what SellTrade returns.
type SellResult struct {
	ledger.SellResult
	RequestKey string `json:"request_key"`
	Replayed   bool   `json:"replayed"`
}

// SellTrade sells part or all of one of the actor's BUY positions. The new
// SELL row, the BUY row's sold quantity and the request key are written in a
// single transaction.
func (s *Service) SellTrade(ctx context.Context, actor *models.User, req SellRequest) (*SellResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	key := req.RequestKey
	if key == "" {
		key = uuid.NewString()
	}

	var result *SellResult
	err := s.store.Transaction(ctx, func(tx *database.Store) error {
		if req.RequestKey != "" {
			prior, err := replay(ctx, tx, actor, req)
			if err != nil || prior != nil {
				result = prior
				return err
			}
		}

		// Read inside the transaction so a concurrent sell cannot spend the
		// same remaining quantity.
		buy, err := tx.GetTrade(ctx, req.BuyTradeID)
		if err != nil {
			return fmt.Errorf("buy trade %d: %w", req.BuyTradeID, err)
		}
		if !buy.OwnedBy(actor) {
			return fmt.Errorf("trade %d belongs to another user: %w", buy.ID, models.ErrUnauthorized)
		}

		applied, err := ledger.ApplySell(buy, req.Price, req.Quantity, s.now())
		if err != nil {
			return err
		}

		if err := tx.CreateTrade(ctx, applied.SellTrade); err != nil {
			return err
		}
		if err := tx.SaveTrade(ctx, applied.BuyTrade); err != nil {
			return err
		}
		if err := tx.CreateSellRequest(ctx, &models.SellRequest{RequestKey: key, SellTradeID: applied.SellTrade.ID}); err != nil {
			return err
		}

		result = &SellResult{SellResult: *applied, RequestKey: key}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Replayed {
		s.logger.Info("Replayed sell request", zap.String("request_key", key), zap.Uint("sell_trade_id", result.SellTrade.ID))
		return result, nil
	}

	s.logger.Info("Recorded sell",
		zap.Uint("buy_trade_id", req.BuyTradeID),
		zap.Uint("sell_trade_id", result.SellTrade.ID),
		zap.Uint("user_id", actor.ID),
		zap.Float64("price", req.Price),
		zap.Int64("quantity", req.Quantity),
		zap.String("profit_loss", result.ProfitLoss.String()),
		zap.Int64("remaining", result.Remaining),
	)
	return result, nil
}

// replay rebuilds the result of a sell already committed under the request
// key, or returns nil when the key is unused. A key reused for a different
// sell is a conflict.
func replay(ctx context.Context, tx *database.Store, actor *models.User, req SellRequest) (*SellResult, error) {
	key := req.RequestKey
	prior, err := tx.FindSellRequest(ctx, key)
	if err != nil || prior == nil {
		return nil, err
	}

	sell, err := tx.GetTrade(ctx, prior.SellTradeID)
	if err != nil {
		return nil, fmt.Errorf("sell request %q: %w", key, err)
	}
	if !sell.OwnedBy(actor) {
		return nil, fmt.Errorf("sell request %q belongs to another user: %w", key, models.ErrUnauthorized)
	}
	if sell.BuyTradeID == nil {
		return nil, fmt.Errorf("sell trade %d has no buy trade: %w", sell.ID, models.ErrStorage)
	}
	if *sell.BuyTradeID != req.BuyTradeID || sell.Price != req.Price || sell.Quantity != req.Quantity {
		return nil, fmt.Errorf("sell request %q was already used for %d of trade %d at %v: %w",
			key, sell.Quantity, *sell.BuyTradeID, sell.Price, models.ErrConflict)
	}
	buy, err := tx.GetTrade(ctx, *sell.BuyTradeID)
	if err != nil {
		return nil, fmt.Errorf("buy trade %d: %w", *sell.BuyTradeID, err)
	}

	return &SellResult{
		SellResult: ledger.SellResult{
			SellTrade:  sell,
			BuyTrade:   buy,
			ProfitLoss: ledger.ProfitLoss(buy.Price, sell.Price, sell.Quantity),
			Remaining:  buy.RemainingQuantity(),
		},
		RequestKey: key,
		Replayed:   true,
	}, nil
}
