package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrade_Threshold(t *testing.T) {
	explicit := 2.5
	zero := 0.0

	assert.Equal(t, DefaultNotificationThreshold, (&Trade{}).Threshold())
	assert.Equal(t, 2.5, (&Trade{NotificationThreshold: &explicit}).Threshold())
	assert.Equal(t, 0.0, (&Trade{NotificationThreshold: &zero}).Threshold())
}

func TestTrade_RemainingQuantity(t *testing.T) {
	trade := Trade{Quantity: 10, SoldQuantity: 3}
	assert.Equal(t, int64(7), trade.RemainingQuantity())
}

func TestTrade_OwnedBy(t *testing.T) {
	trade := Trade{UserID: 7}
	assert.True(t, trade.OwnedBy(&User{ID: 7}))
	assert.False(t, trade.OwnedBy(&User{ID: 8}))
	assert.False(t, trade.OwnedBy(nil))
}

func TestTrade_DisplayName(t *testing.T) {
	assert.Equal(t, "7203.T", (&Trade{Ticker: "7203.T"}).DisplayName())
	assert.Equal(t, "Toyota", (&Trade{Ticker: "7203.T", Name: "Toyota"}).DisplayName())
}

func TestErrorKindsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("sell trade 4: %w", ErrNotFound)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrUnauthorized))
}
