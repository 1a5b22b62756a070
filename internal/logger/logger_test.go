package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		env       string
		level     string
		wantErr   bool
		wantLevel zapcore.Level
	}{
		{name: "prod defaults to info", env: "prod", wantLevel: zapcore.InfoLevel},
		{name: "empty env behaves like prod", env: "", wantLevel: zapcore.InfoLevel},
		{name: "dev defaults to debug", env: "dev", wantLevel: zapcore.DebugLevel},
		{name: "level override", env: "prod", level: "warn", wantLevel: zapcore.WarnLevel},
		{name: "unknown env", env: "staging", wantErr: true},
		{name: "invalid level", env: "prod", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLogger(tt.env, tt.level)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.wantLevel))
			assert.False(t, l.Core().Enabled(tt.wantLevel-1))
		})
	}
}

func TestFromContext(t *testing.T) {
	t.Run("returns nop without logger", func(t *testing.T) {
		l := FromContext(context.Background(), nil)
		require.NotNil(t, l)
		assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))
	})

	t.Run("returns fallback without logger", func(t *testing.T) {
		fallback := zap.NewExample()
		assert.Same(t, fallback, FromContext(context.Background(), fallback))
	})

	t.Run("returns stored logger", func(t *testing.T) {
		stored := zap.NewExample()
		ctx := ContextWithLogger(context.Background(), stored)
		assert.Same(t, stored, FromContext(ctx, zap.NewNop()))
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	// "芯片" is 6 bytes; cutting at 4 must not split the second rune.
	assert.Equal(t, "芯...", Truncate("芯片", 4))
	assert.Equal(t, "unchanged", Truncate("unchanged", 0))
}
