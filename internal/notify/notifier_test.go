package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tradewatch/internal/config"
	"tradewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWebhook_Send(t *testing.T) {
	t.Run("MentionsRecipient", func(t *testing.T) {
		// Arrange
		var got webhookPayload
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		wh := NewWebhook(&config.Notifier{WebhookURL: server.URL, Timeout: 5}, zap.NewNop())

		// Act
		err := wh.Send(context.Background(), "<@42> Toyota hit 2500", "42")

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, "<@42> Toyota hit 2500", got.Content)
		assert.Equal(t, []string{"42"}, got.AllowedMentions.Users)
	})

	t.Run("NoRecipient", func(t *testing.T) {
		var got webhookPayload
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		wh := NewWebhook(&config.Notifier{WebhookURL: server.URL, Timeout: 5}, zap.NewNop())

		assert.NoError(t, wh.Send(context.Background(), "AAPL hit 190", ""))
		assert.Empty(t, got.AllowedMentions.Users)
	})

	t.Run("ErrorStatus", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message": "Unknown Webhook"}`))
		}))
		defer server.Close()

		wh := NewWebhook(&config.Notifier{WebhookURL: server.URL, Timeout: 5}, zap.NewNop())

		err := wh.Send(context.Background(), "hello", "")

		assert.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrUpstreamDelivery))
		assert.Contains(t, err.Error(), "Unknown Webhook")
	})

	t.Run("Unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		wh := NewWebhook(&config.Notifier{WebhookURL: url, Timeout: 1}, zap.NewNop())

		err := wh.Send(context.Background(), "hello", "")
		assert.True(t, errors.Is(err, models.ErrUpstreamDelivery))
	})
}

func TestNew(t *testing.T) {
	log := zap.NewNop()

	_, isLog := New(&config.Notifier{DryRun: true, WebhookURL: "http://x"}, log).(*LogNotifier)
	assert.True(t, isLog)

	_, isLog = New(&config.Notifier{}, log).(*LogNotifier)
	assert.True(t, isLog)

	_, isWebhook := New(&config.Notifier{WebhookURL: "http://x"}, log).(*Webhook)
	assert.True(t, isWebhook)

	assert.NoError(t, NewLogNotifier(log).Send(context.Background(), "msg", ""))
}
