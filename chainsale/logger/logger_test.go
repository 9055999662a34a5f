package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCustomHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandlerWithWriter(&buf, "", slog.LevelInfo))

	log.Info("Market operation completed", slog.String("type", "market"), slog.Int("deck", 3))
	assert.Contains(t, buf.String(), "[ChainSale]")
	assert.Contains(t, buf.String(), "[MKT] Market operation completed")
	assert.Contains(t, buf.String(), "deck=3")
	assert.NotContains(t, buf.String(), "type=market")

	buf.Reset()
	log.Error("Query failed", slog.String("type", "db"), slog.Any("error", errors.New("timeout")))
	assert.Contains(t, buf.String(), "ERROR")
	assert.Contains(t, buf.String(), "[DB]")
	assert.Contains(t, buf.String(), ": timeout")
}

func TestCustomHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandlerWithWriter(&buf, "Test", slog.LevelWarn))

	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.With(slog.String("component", "api")).Warn("shown")
	assert.Contains(t, buf.String(), "[Test]")
	assert.Contains(t, buf.String(), "component=api")
}
