package database

import (
	"context"
	"errors"
	"fmt"

	"tradewatch/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the trade and user repository. A Store handed to a Transaction
// callback is bound to that transaction.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Transaction runs fn inside a database transaction. The transaction commits
// when fn returns nil and rolls back when fn returns an error or panics.
// fn must only use the Store it is given.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// classify maps a gorm error onto the shared error kinds.
func classify(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", msg, models.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w: %w", msg, models.ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w: %w", msg, models.ErrStorage, err)
	}
}

// --- trades ---

// CreateTrade inserts a new trade and fills in its ID.
func (s *Store) CreateTrade(ctx context.Context, trade *models.Trade) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(trade).Error; err != nil {
		return classify(err, "create %s trade", trade.Action)
	}
	return nil
}

// SaveTrade writes every column of an existing trade.
func (s *Store) SaveTrade(ctx context.Context, trade *models.Trade) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(trade).Error; err != nil {
		return classify(err, "save trade %d", trade.ID)
	}
	return nil
}

// GetTrade loads a trade by id.
func (s *Store) GetTrade(ctx context.Context, id uint) (*models.Trade, error) {
	var trade models.Trade
	if err := s.db.WithContext(ctx).First(&trade, id).Error; err != nil {
		return nil, classify(err, "get trade %d", id)
	}
	return &trade, nil
}

// TradesByUser lists a user's trades, newest first, optionally restricted to
// the given actions.
func (s *Store) TradesByUser(ctx context.Context, userID uint, actions ...models.Action) ([]models.Trade, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(actions) > 0 {
		q = q.Where("action IN ?", actions)
	}

	var trades []models.Trade
	if err := q.Order("trade_date desc, id desc").Find(&trades).Error; err != nil {
		return nil, classify(err, "list trades for user %d", userID)
	}
	return trades, nil
}

// SellsForBuy lists the SELL trades closing against a BUY trade.
func (s *Store) SellsForBuy(ctx context.Context, buyTradeID uint) ([]models.Trade, error) {
	var sells []models.Trade
	err := s.db.WithContext(ctx).
		Where("action = ? AND buy_trade_id = ?", models.ActionSell, buyTradeID).
		Order("id").
		Find(&sells).Error
	if err != nil {
		return nil, classify(err, "list sells for trade %d", buyTradeID)
	}
	return sells, nil
}

// DeleteTrade permanently removes a trade. Deleting a missing row reports
// ErrNotFound, so two resolvers racing on one alert cannot both succeed.
func (s *Store) DeleteTrade(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Trade{}, id)
	if res.Error != nil {
		return classify(res.Error, "delete trade %d", id)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete trade %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// AlertsToCheck returns every WATCH trade with a non-zero target whose owner
// exists, with the owner preloaded. Dangling owner references, including the
// zero id, are dropped by the inner join.
func (s *Store) AlertsToCheck(ctx context.Context) ([]models.Trade, error) {
	var alerts []models.Trade
	err := s.db.WithContext(ctx).
		Joins("JOIN users ON users.id = trades.user_id").
		Where("trades.action = ?", models.ActionWatch).
		Where("trades.target_price IS NOT NULL AND trades.target_price <> 0").
		Preload("User").
		Order("trades.id").
		Find(&alerts).Error
	if err != nil {
		return nil, classify(err, "query alerts to check")
	}
	return alerts, nil
}

// --- users ---

// CreateUser inserts a new user. A taken username reports ErrConflict.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	existing, err := s.GetUserByUsername(ctx, user.Username)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	if existing != nil {
		return fmt.Errorf("username %q is already taken: %w", user.Username, models.ErrConflict)
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return classify(err, "create user %q", user.Username)
	}
	return nil
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, classify(err, "get user %d", id)
	}
	return &user, nil
}

// GetUserByUsername loads a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, classify(err, "get user %q", username)
	}
	return &user, nil
}

// SaveUser writes every column of an existing user.
func (s *Store) SaveUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return classify(err, "save user %d", user.ID)
	}
	return nil
}

// --- sell requests ---

// FindSellRequest looks up a committed sell by request key. It returns nil
// without error when the key has not been used.
func (s *Store) FindSellRequest(ctx context.Context, key string) (*models.SellRequest, error) {
	var req models.SellRequest
	res := s.db.WithContext(ctx).Where("request_key = ?", key).Limit(1).Find(&req)
	if res.Error != nil {
		return nil, classify(res.Error, "find sell request %q", key)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &req, nil
}

// CreateSellRequest records the sell trade produced for a request key.
func (s *Store) CreateSellRequest(ctx context.Context, req *models.SellRequest) error {
	if err := s.db.WithContext(ctx).Create(req).Error; err != nil {
		return classify(err, "create sell request %q", req.RequestKey)
	}
	return nil
}
