package logger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/product-catalog/internal/logger"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := logger.New(logger.Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNew_ValidLevels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", ""} {
		l, err := logger.New(logger.Config{Level: lvl, DevMode: true})
		require.NoError(t, err, "level %q", lvl)
		assert.NotNil(t, l)
	}
}

func TestWithContext_NoPanic(t *testing.T) {
	l, err := logger.New(logger.Config{Level: "debug", DevMode: true})
	require.NoError(t, err)

	ctx := logger.ContextWithRequestID(context.Background(), "req-1")
	ctx = logger.ContextWithUserID(ctx, 42)

	l.WithContext(ctx).Named("test").Info("hello")
	l.WithContext(context.Background()).Warn("no fields")
	l.Sync()
}
