package models

import "time"

// Action tags what a trade row represents.
type Action string

const (
	ActionBuy   Action = "BUY"
	ActionSell  Action = "SELL"
	ActionWatch Action = "WATCH"
)

// DefaultNotificationThreshold is the distance from target used for alerts
// that were stored without a threshold of their own.
const DefaultNotificationThreshold = 5.0

// Trade is a BUY or SELL record, or a WATCH alert.
//
// WATCH rows always have zero price and quantity and only carry the target and
// threshold. SELL rows point at the BUY they reduce through BuyTradeID; the
// cumulative sold quantity lives on the BUY row. Rows are hard deleted.
type Trade struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      *User     `json:"-"`
	Ticker    string    `gorm:"not null;index" json:"ticker"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Quantity  int64     `json:"quantity"`
	Action    Action    `gorm:"size:8;not null;index" json:"action"`
	TradeDate time.Time `json:"trade_date"`

	TargetPrice           *float64 `json:"target_price,omitempty"`
	NotificationThreshold *float64 `json:"notification_threshold,omitempty"`

	BuyTradeID   *uint   `gorm:"index" json:"buy_trade_id,omitempty"`
	SoldQuantity int64   `json:"sold_quantity"`
	Profit       float64 `json:"profit,omitempty"` // realized, SELL rows only

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RemainingQuantity is the part of a BUY position that has not been sold.
func (t *Trade) RemainingQuantity() int64 {
	return t.Quantity - t.SoldQuantity
}

// OwnedBy reports whether the trade belongs to the given user.
func (t *Trade) OwnedBy(u *User) bool {
	return u != nil && t.UserID == u.ID
}

// Threshold returns the alert's notification distance, falling back to
// DefaultNotificationThreshold for rows stored without one.
func (t *Trade) Threshold() float64 {
	if t.NotificationThreshold == nil {
		return DefaultNotificationThreshold
	}
	return *t.NotificationThreshold
}

// DisplayName is the name shown in notifications.
func (t *Trade) DisplayName() string {
	if t.Name == "" {
		return t.Ticker
	}
	return t.Name
}

// SellRequest records a committed sell under a caller supplied key so a
// retried request is answered with the original result.
type SellRequest struct {
	ID          uint      `gorm:"primaryKey"`
	RequestKey  string    `gorm:"uniqueIndex;not null"`
	SellTradeID uint      `gorm:"not null"`
	CreatedAt   time.Time
}
