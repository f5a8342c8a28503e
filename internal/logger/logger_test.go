package logger

import (
	"testing"

	"tradewatch/internal/config"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	t.Run("JSONDebug", func(t *testing.T) {
		log, err := NewLogger(config.Logger{Level: "debug", Format: "json"})
		assert.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("DefaultLevel", func(t *testing.T) {
		log, err := NewLogger(config.Logger{})
		assert.NoError(t, err)
		assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
		assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		_, err := NewLogger(config.Logger{Level: "loud"})
		assert.Error(t, err)
	})
}
