package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func productionLogger(buf *bytes.Buffer) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig("production")),
		zapcore.AddSync(buf),
		zapcore.DebugLevel,
	)
	return zap.New(core)
}

// Production entries are single JSON objects carrying timestamp, level and message
func TestProperty_ProductionLogsAreStructured(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every entry decodes with the expected keys", prop.ForAll(
		func(message string, level zapcore.Level) bool {
			var buf bytes.Buffer
			logger := productionLogger(&buf)

			if ce := logger.Check(level, message); ce != nil {
				ce.Write(zap.String("order_id", "o-1"))
			}

			var entry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Logf("FAIL: not json: %q", buf.String())
				return false
			}

			for _, key := range []string{"timestamp", "level", "message", "order_id"} {
				if _, ok := entry[key]; !ok {
					t.Logf("FAIL: missing key %q in %v", key, entry)
					return false
				}
			}
			return entry["message"] == message && entry["level"] == level.String()
		},
		gen.AnyString(),
		gen.OneConstOf(zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestErrorFieldIsRendered(t *testing.T) {
	var buf bytes.Buffer
	productionLogger(&buf).Error("Order commit failed", zap.Error(errors.New("connection reset")))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "connection reset", entry["error"])
}

func TestNewRespectsLevel(t *testing.T) {
	logger, err := New("production", "warn")
	require.NoError(t, err)
	defer logger.Sync()

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := New("development", "chatty")
	require.NoError(t, err)
	defer logger.Sync()

	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestDevelopmentUsesConsoleKeys(t *testing.T) {
	cfg := encoderConfig("development")
	assert.Equal(t, "M", cfg.MessageKey)
	assert.Equal(t, "T", cfg.TimeKey)
}
