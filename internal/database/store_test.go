package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tradewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// setupStore opens a fresh SQLite file in the test's temp dir.
func setupStore(t *testing.T) *Store {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewStore(db)
}

func ptr[T any](v T) *T { return &v }

func createUser(t *testing.T, s *Store, name string) *models.User {
	u := &models.User{Username: name, PasswordHash: "x", Role: models.RoleUser}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestStore_TradeCRUD(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	u := createUser(t, s, "alice")

	trade := &models.Trade{UserID: u.ID, Ticker: "AAPL", Name: "Apple", Price: 100, Quantity: 10, Action: models.ActionBuy, TradeDate: time.Now()}
	require.NoError(t, s.CreateTrade(ctx, trade))
	assert.NotZero(t, trade.ID)

	got, err := s.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, "Apple", got.Name)
	assert.Equal(t, int64(10), got.Quantity)

	got.SoldQuantity = 4
	require.NoError(t, s.SaveTrade(ctx, got))
	reloaded, err := s.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), reloaded.SoldQuantity)

	require.NoError(t, s.DeleteTrade(ctx, trade.ID))
	_, err = s.GetTrade(ctx, trade.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	err = s.DeleteTrade(ctx, trade.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound), "second delete must not succeed")
}

func TestStore_TradesByUser(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")

	require.NoError(t, s.CreateTrade(ctx, &models.Trade{UserID: alice.ID, Ticker: "AAPL", Action: models.ActionBuy, Price: 1, Quantity: 1}))
	require.NoError(t, s.CreateTrade(ctx, &models.Trade{UserID: alice.ID, Ticker: "MSFT", Action: models.ActionWatch, TargetPrice: ptr(300.0)}))
	require.NoError(t, s.CreateTrade(ctx, &models.Trade{UserID: bob.ID, Ticker: "TSLA", Action: models.ActionBuy, Price: 1, Quantity: 1}))

	all, err := s.TradesByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	watches, err := s.TradesByUser(ctx, alice.ID, models.ActionWatch)
	require.NoError(t, err)
	require.Len(t, watches, 1)
	assert.Equal(t, "MSFT", watches[0].Ticker)
}

func TestStore_AlertsToCheck(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	alice := createUser(t, s, "alice")
	alice.NotificationHandle = "1234"
	require.NoError(t, s.SaveUser(ctx, alice))

	due := &models.Trade{UserID: alice.ID, Ticker: "7203.T", Action: models.ActionWatch, TargetPrice: ptr(2500.0), NotificationThreshold: ptr(5.0)}
	require.NoError(t, s.CreateTrade(ctx, due))

	// None of these may reach dispatch.
	require.NoError(t, s.CreateTrade(ctx, &models.Trade{UserID: alice.ID, Ticker: "NOTARGET", Action: models.ActionWatch}))
	require.NoError(t, s.CreateTrade(ctx, &models.Trade{UserID: alice.ID, Ticker: "ZERO", Action: models.ActionWatch, TargetPrice: ptr(0.0)}))
	require.NoError(t, s.CreateTrade(ctx, &models.Trade{UserID: 999, Ticker: "DANGLING", Action: models.ActionWatch, TargetPrice: ptr(10.0)}))
	require.NoError(t, s.CreateTrade(ctx, &models.Trade{UserID: 0, Ticker: "SENTINEL", Action: models.ActionWatch, TargetPrice: ptr(10.0)}))
	require.NoError(t, s.CreateTrade(ctx, &models.Trade{UserID: alice.ID, Ticker: "BUYROW", Action: models.ActionBuy, Price: 10, Quantity: 1, TargetPrice: ptr(10.0)}))

	alerts, err := s.AlertsToCheck(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, due.ID, alerts[0].ID)
	require.NotNil(t, alerts[0].User)
	assert.Equal(t, "1234", alerts[0].User.NotificationHandle)
}

func TestStore_TransactionRollback(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	u := createUser(t, s, "alice")

	buy := &models.Trade{UserID: u.ID, Ticker: "AAPL", Action: models.ActionBuy, Price: 100, Quantity: 10}
	require.NoError(t, s.CreateTrade(ctx, buy))

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx *Store) error {
		sell := &models.Trade{UserID: u.ID, Ticker: "AAPL", Action: models.ActionSell, Price: 120, Quantity: 4, BuyTradeID: &buy.ID}
		if err := tx.CreateTrade(ctx, sell); err != nil {
			return err
		}
		buy.SoldQuantity = 4
		if err := tx.SaveTrade(ctx, buy); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	reloaded, err := s.GetTrade(ctx, buy.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), reloaded.SoldQuantity)

	sells, err := s.SellsForBuy(ctx, buy.ID)
	require.NoError(t, err)
	assert.Empty(t, sells)
}

func TestStore_Users(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	alice := createUser(t, s, "alice")

	err := s.CreateUser(ctx, &models.User{Username: "alice", PasswordHash: "y"})
	assert.True(t, errors.Is(err, models.ErrConflict))

	got, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = s.GetUser(ctx, 42)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	// The unique index backs up the lookup.
	err = s.db.WithContext(ctx).Create(&models.User{Username: "alice", PasswordHash: "z"}).Error
	assert.True(t, errors.Is(classify(err, "create user"), models.ErrConflict), "got %v", err)
}

func TestStore_SellRequests(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	req, err := s.FindSellRequest(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, req)

	require.NoError(t, s.CreateSellRequest(ctx, &models.SellRequest{RequestKey: "abc", SellTradeID: 3}))
	req, err = s.FindSellRequest(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, uint(3), req.SellTradeID)
}

func TestStore_MissingRowsAreNotLogged(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.DebugLevel)
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), zap.New(core))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	s := NewStore(db)

	req, err := s.FindSellRequest(ctx, "unused")
	require.NoError(t, err)
	assert.Nil(t, req)
	_, err = s.GetTrade(ctx, 404)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	assert.Zero(t, logs.FilterMessageSnippet("record not found").Len())

	// Real query errors still reach zap.
	_ = s.db.WithContext(ctx).Exec("SELECT * FROM no_such_table").Error
	assert.NotZero(t, logs.FilterMessageSnippet("no_such_table").Len())
}
