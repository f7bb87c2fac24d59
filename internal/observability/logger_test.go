// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/trackerprobe/internal/config"
)

// syncBuffer is a goroutine safe bytes.Buffer usable as a zapcore.WriteSyncer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Sync() error { return nil }

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

var _ zapcore.WriteSyncer = (*syncBuffer)(nil)

func TestInitialize(t *testing.T) {
	t.Run("console logger with colors", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		out := &syncBuffer{}

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "probe",
			Colors:      config.ColorConfig{Info: "blue"},
		}, out)
		GetLogger().Named("runner").Info("scenario passed")
		Sync()

		output := out.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "scenario passed")
		assert.Contains(t, output, "probe.runner.")
		assert.Contains(t, output, colorBlue, "configured color should win")
		assert.Contains(t, output, colorReset)
	})

	t.Run("blank colors fall back to defaults", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		out := &syncBuffer{}

		Initialize(config.LoggerConfig{Level: "info", Format: "console"}, out)
		GetLogger().Warn("slow poll")

		assert.Contains(t, out.String(), colorYellow+"WARN"+colorReset)
	})

	t.Run("json logger", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		out := &syncBuffer{}

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, out)
		GetLogger().Warn("selector not found", zap.String("selector", "div.bg-red-50"))
		Sync()

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(out.Bytes(), &entry), "log output should be valid JSON")
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "selector not found", entry["msg"])
		assert.Equal(t, "div.bg-red-50", entry["selector"])
	})

	t.Run("level filtering", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		out := &syncBuffer{}

		Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, out)
		GetLogger().Info("hidden")
		GetLogger().Error("shown")

		assert.NotContains(t, out.String(), "hidden")
		assert.Contains(t, out.String(), "shown")
	})

	t.Run("writes to a rotated log file", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		logFile := filepath.Join(t.TempDir(), "probe.log")

		Initialize(config.LoggerConfig{Level: "debug", Format: "console", LogFile: logFile, MaxSize: 1}, &syncBuffer{})
		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"This should go to the file."`)
	})

	t.Run("only initializes once", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		out := &syncBuffer{}

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"}, out)
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "Second"}, out)
		second := GetLogger()

		assert.Same(t, first, second)
		second.Info("test")
		assert.Contains(t, out.String(), "First")
		assert.NotContains(t, out.String(), "Second")
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("fallback before initialization", func(t *testing.T) {
		ResetForTest()
		require.NotNil(t, GetLogger())
	})

	t.Run("global logger after initialization", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		Initialize(config.LoggerConfig{Level: "info", Format: "json"}, &syncBuffer{})
		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}
