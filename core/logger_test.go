package core

import (
	"bytes"
	"context"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_KeyValueArgs(t *testing.T) {
	mem := &MemoryLogWriter{}
	logger := NewTeeLogger(NewLogger(nil), mem).With(map[string]interface{}{"service": "azure_tts"})

	logger.Info("synthesized", "voice", "es-ES-ElviraNeural", "bytes", 1024)
	logger.Warnf("retry %d of %d", 2, 3)

	entries := mem.Entries()
	require.Len(t, entries, 2)

	assert.Equal(t, "INFO", entries[0].Level)
	assert.Equal(t, "synthesized", entries[0].Message)
	assert.Equal(t, map[string]interface{}{
		"service": "azure_tts",
		"voice":   "es-ES-ElviraNeural",
		"bytes":   1024,
	}, entries[0].Attrs)

	assert.Equal(t, "WARN", entries[1].Level)
	assert.Equal(t, "retry 2 of 3", entries[1].Message)
	assert.Equal(t, map[string]interface{}{"service": "azure_tts"}, entries[1].Attrs)
}

func TestLogger_WithDoesNotLeak(t *testing.T) {
	mem := &MemoryLogWriter{}
	base := NewTeeLogger(NewLogger(nil), mem)

	base.With(map[string]interface{}{"request_id": "abc"}).Info("child")
	base.Info("parent")

	entries := mem.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "abc", entries[0].Attrs["request_id"])
	assert.NotContains(t, entries[1].Attrs, "request_id")
}

func TestConsoleLogger_FiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(&buf, "WARN")

	logger.Info("hidden")
	logger.Error("shown", "code", 502)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[ERROR] shown | code=502")
}

func TestProductionLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewProductionLogger(&buf, "INFO").With(map[string]interface{}{"component": "serve"})

	logger.Debug("dropped")
	logger.Info("listening", "addr", ":3000")

	var line map[string]interface{}
	require.NoError(t, sonic.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "listening", line["message"])
	assert.Equal(t, ":3000", line["addr"])
	assert.Equal(t, "serve", line["component"])
}

func TestLoggerFromContext(t *testing.T) {
	assert.Same(t, GetLogger(), LoggerFromContext(context.Background()))

	mem := &MemoryLogWriter{}
	reqLogger := NewTeeLogger(NewLogger(nil), mem)
	ctx := ContextWithRequestLogger(context.Background(), reqLogger)
	LoggerFromContext(ctx).Info("scoped")

	require.Len(t, mem.Entries(), 1)
	assert.Equal(t, "scoped", mem.Entries()[0].Message)
}
