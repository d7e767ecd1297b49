package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewFromZap(zap.New(core)).With("auction_id", "a1")

	log.Debug("dropped")
	log.Info("Bid accepted", "amount", "1050")
	log.Warn("Version conflict, retrying")

	entries := logs.All()
	assert.Equal(t, 2, len(entries))
	check.Equal(t, "Bid accepted", entries[0].Message)
	check.Equal(t, "a1", entries[0].ContextMap()["auction_id"])
	check.Equal(t, "1050", entries[0].ContextMap()["amount"])
	check.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestNewWithConfigFallsBackToInfo(t *testing.T) {
	log := NewWithConfig(Options{Level: "chatty"})
	z, ok := log.(*ZapLogger)
	assert.True(t, ok)
	check.False(t, z.logger.Desugar().Core().Enabled(zapcore.DebugLevel))
	check.True(t, z.logger.Desugar().Core().Enabled(zapcore.InfoLevel))
}
