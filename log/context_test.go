package log_test

import (
	"context"
	"testing"

	"github.com/GitDataAI/git-inner/log"
	"github.com/GitDataAI/git-inner/log/mocks"
	"github.com/stretchr/testify/require"
)

func TestContextLogger(t *testing.T) {
	t.Run("adds logger to context", func(t *testing.T) {
		customLogger := &mocks.FakeLogger{}
		ctx := context.Background()
		newCtx := log.ToContext(ctx, customLogger)

		logger := log.FromContext(newCtx)
		require.Equal(t, customLogger, logger, "context should contain provided logger")

		originalLogger := log.FromContext(ctx)
		require.NotEqual(t, customLogger, originalLogger, "original context should not be modified")
	})

	t.Run("returns a noop logger if none was injected", func(t *testing.T) {
		ctx := context.Background()
		logger := log.FromContext(ctx)
		require.Equal(t, log.Noop{}, logger, "should return the noop logger")
	})
}
