package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("returns embedded logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		ctx := WithLogger(context.Background(), logger)

		FromContext(ctx).Info("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("falls back to default logger", func(t *testing.T) {
		require.Same(t, slog.Default(), FromContext(context.Background()))
	})
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	ctx, logger := With(ctx, "node", "A")
	logger.Info("first")
	FromContext(ctx).Info("second")

	out := buf.String()
	assert.Contains(t, out, "msg=first node=A")
	assert.Contains(t, out, "msg=second node=A")
}
