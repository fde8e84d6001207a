package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureJSON(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Init(Config{Level: level, Format: "json", Output: &buf})
	t.Cleanup(func() { Init(Config{}) })
	return &buf
}

func TestInitRespectsLevel(t *testing.T) {
	buf := captureJSON(t, "warn")

	Info().Msg("hidden")
	Warn().Str("job_id", "j1").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "j1", entry["job_id"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	buf := captureJSON(t, "info")

	Ctx(context.Background()).Info().Msg("global")
	assert.Contains(t, buf.String(), "global")

	buf.Reset()
	ctx := WithContext(context.Background(), Logger().With().Str("worker", "w1").Logger())
	Ctx(ctx).Info().Msg("scoped")
	assert.Contains(t, buf.String(), `"worker":"w1"`)
}

func TestWatermillAdapter(t *testing.T) {
	buf := captureJSON(t, "debug")

	adapter := NewWatermillAdapter().With(watermill.LogFields{"topic": "embed"})
	adapter.Error("handler failed", errors.New("boom"), watermill.LogFields{"uuid": "m1"})

	out := buf.String()
	assert.Contains(t, out, `"topic":"embed"`)
	assert.Contains(t, out, `"uuid":"m1"`)
	assert.Contains(t, out, "boom")
}
