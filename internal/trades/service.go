package trades

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tradewatch/internal/database"
	"tradewatch/internal/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Service implements the trade, alert and user operations. Every operation
// on user data takes the acting user explicitly; callers resolve it from
// their own authentication layer.
type Service struct {
	store            *database.Store
	logger           *zap.Logger
	defaultThreshold float64
	now              func() time.Time
}

// NewService creates a new Service. defaultThreshold is stamped on alerts
// created without one; a non-positive value means models.DefaultNotificationThreshold.
func NewService(store *database.Store, logger *zap.Logger, defaultThreshold float64) *Service {
	if defaultThreshold <= 0 {
		defaultThreshold = models.DefaultNotificationThreshold
	}
	return &Service{
		store:            store,
		logger:           logger.Named("trades"),
		defaultThreshold: defaultThreshold,
		now:              time.Now,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), models.ErrInvalidArgument)
}

func requireActor(actor *models.User) error {
	if actor == nil || actor.ID == 0 {
		return fmt.Errorf("acting user is required: %w", models.ErrUnauthorized)
	}
	return nil
}

// --- users ---

// RegisterUser creates a user with a bcrypt hashed password.
func (s *Service) RegisterUser(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, invalid("username is required")
	}
	if strings.TrimSpace(password) == "" {
		return nil, invalid("password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{Username: username, PasswordHash: string(hash), Role: models.RoleUser}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("Registered user", zap.Uint("user_id", user.ID), zap.String("username", username))
	return user, nil
}

// SetNotificationHandle stores the messaging handle mentioned by the
// actor's alerts.
func (s *Service) SetNotificationHandle(ctx context.Context, actor *models.User, handle string) (*models.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, invalid("notification handle is required")
	}
	return s.updateHandle(ctx, actor, handle)
}

// ClearNotificationHandle removes the actor's messaging handle; later alerts
// are sent without a mention.
func (s *Service) ClearNotificationHandle(ctx context.Context, actor *models.User) (*models.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.updateHandle(ctx, actor, "")
}

func (s *Service) updateHandle(ctx context.Context, actor *models.User, handle string) (*models.User, error) {
	user, err := s.store.GetUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	user.NotificationHandle = handle
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// --- trades ---

// NewTrade is the input of AddTrade.
type NewTrade struct {
	Ticker     string        `json:"ticker"`
	Name       string        `json:"name"`
	Price      float64       `json:"price"`
	Quantity   int64         `json:"quantity"`
	Action     models.Action `json:"action"`
	BuyTradeID *uint         `json:"buy_trade_id,omitempty"`
	RequestKey string        `json:"request_key,omitempty"`
}

// AddTrade records a BUY trade. A SELL is accepted only against an existing
// BUY trade and goes through SellTrade, so its returned trade is the new
// SELL row.
func (s *Service) AddTrade(ctx context.Context, actor *models.User, in NewTrade) (*models.Trade, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	action := models.Action(strings.ToUpper(string(in.Action)))
	if action == "" {
		action = models.ActionBuy
	}

	switch action {
	case models.ActionBuy:
	case models.ActionSell:
		if in.BuyTradeID == nil {
			return nil, invalid("a SELL trade must reference the BUY trade it reduces")
		}
		res, err := s.SellTrade(ctx, actor, SellRequest{
			BuyTradeID: *in.BuyTradeID,
			Price:      in.Price,
			Quantity:   in.Quantity,
			RequestKey: in.RequestKey,
		})
		if err != nil {
			return nil, err
		}
		return res.SellTrade, nil
	case models.ActionWatch:
		return nil, invalid("use AddAlert to create WATCH alerts")
	default:
		return nil, invalid("unknown action %q", in.Action)
	}

	ticker := strings.TrimSpace(in.Ticker)
	if ticker == "" {
		return nil, invalid("ticker is required")
	}
	if in.Price <= 0 {
		return nil, invalid("price must be positive, got %v", in.Price)
	}
	if in.Quantity <= 0 {
		return nil, invalid("quantity must be positive, got %d", in.Quantity)
	}

	trade := &models.Trade{
		UserID:    actor.ID,
		Ticker:    ticker,
		Name:      defaultName(in.Name, ticker),
		Price:     in.Price,
		Quantity:  in.Quantity,
		Action:    models.ActionBuy,
		TradeDate: s.now(),
	}
	if err := s.store.CreateTrade(ctx, trade); err != nil {
		return nil, err
	}

	s.logger.Info("Recorded trade",
		zap.Uint("trade_id", trade.ID),
		zap.Uint("user_id", actor.ID),
		zap.String("ticker", ticker),
		zap.Float64("price", in.Price),
		zap.Int64("quantity", in.Quantity),
	)
	return trade, nil
}

// TradesForUser lists every trade and alert owned by the actor.
func (s *Service) TradesForUser(ctx context.Context, actor *models.User) ([]models.Trade, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.store.TradesByUser(ctx, actor.ID)
}

// DeleteTrade permanently removes one of the actor's trades. Deleting a SELL
// gives its quantity back to the BUY trade; deleting a BUY also removes the
// SELL trades recorded against it.
func (s *Service) DeleteTrade(ctx context.Context, id uint, actor *models.User) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	err := s.store.Transaction(ctx, func(tx *database.Store) error {
		trade, err := tx.GetTrade(ctx, id)
		if err != nil {
			return err
		}
		if !trade.OwnedBy(actor) {
			return fmt.Errorf("trade %d belongs to another user: %w", id, models.ErrUnauthorized)
		}

		switch trade.Action {
		case models.ActionSell:
			if trade.BuyTradeID != nil {
				if err := restoreSold(ctx, tx, *trade.BuyTradeID, trade.Quantity); err != nil {
					return err
				}
			}
		case models.ActionBuy:
			sells, err := tx.SellsForBuy(ctx, trade.ID)
			if err != nil {
				return err
			}
			for _, sell := range sells {
				if err := tx.DeleteTrade(ctx, sell.ID); err != nil {
					return err
				}
			}
		}
		return tx.DeleteTrade(ctx, trade.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Deleted trade", zap.Uint("trade_id", id), zap.Uint("user_id", actor.ID))
	return nil
}

// restoreSold undoes a sell on its BUY trade. A BUY that is already gone is
// left alone.
func restoreSold(ctx context.Context, tx *database.Store, buyID uint, quantity int64) error {
	buy, err := tx.GetTrade(ctx, buyID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	buy.SoldQuantity -= quantity
	if buy.SoldQuantity < 0 {
		buy.SoldQuantity = 0
	}
	return tx.SaveTrade(ctx, buy)
}

// --- alerts ---

// NewAlert is the input of AddAlert.
type NewAlert struct {
	Ticker                string   `json:"ticker"`
	Name                  string   `json:"name"`
	TargetPrice           float64  `json:"target_price"`
	NotificationThreshold *float64 `json:"notification_threshold,omitempty"`
}

// AddAlert registers a WATCH alert. The threshold is fixed at creation: an
// alert created without one stores the current default.
func (s *Service) AddAlert(ctx context.Context, actor *models.User, in NewAlert) (*models.Trade, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ticker := strings.TrimSpace(in.Ticker)
	if ticker == "" {
		return nil, invalid("ticker is required")
	}
	if in.TargetPrice <= 0 {
		return nil, invalid("target price must be positive, got %v", in.TargetPrice)
	}

	threshold := s.defaultThreshold
	if in.NotificationThreshold != nil {
		if *in.NotificationThreshold < 0 {
			return nil, invalid("notification threshold must not be negative, got %v", *in.NotificationThreshold)
		}
		threshold = *in.NotificationThreshold
	}
	target := in.TargetPrice

	alert := &models.Trade{
		UserID:                actor.ID,
		Ticker:                ticker,
		Name:                  defaultName(in.Name, ticker),
		Price:                 0,
		Quantity:              0,
		Action:                models.ActionWatch,
		TradeDate:             s.now(),
		TargetPrice:           &target,
		NotificationThreshold: &threshold,
	}
	if err := s.store.CreateTrade(ctx, alert); err != nil {
		return nil, err
	}

	s.logger.Info("Registered alert",
		zap.Uint("alert_id", alert.ID),
		zap.Uint("user_id", actor.ID),
		zap.String("ticker", ticker),
		zap.Float64("target", target),
		zap.Float64("threshold", threshold),
	)
	return alert, nil
}

// AlertsForUser lists the actor's pending WATCH alerts.
func (s *Service) AlertsForUser(ctx context.Context, actor *models.User) ([]models.Trade, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.store.TradesByUser(ctx, actor.ID, models.ActionWatch)
}

func defaultName(name, ticker string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return ticker
}
