package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_LevelParsing(t *testing.T) {
	l := New("debug")
	assert.True(t, l.Enabled(context.Background(), slog.LevelDebug))

	l = New("warn")
	assert.False(t, l.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, l.Enabled(context.Background(), slog.LevelWarn))
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	l := New("loud")
	assert.True(t, l.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, l.Enabled(context.Background(), slog.LevelDebug))
}

func TestDiscard_OnlyErrorsEnabled(t *testing.T) {
	l := Discard()
	assert.False(t, l.Enabled(context.Background(), slog.LevelWarn))
}
