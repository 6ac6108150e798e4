package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorHandlerFormatsAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewColorHandler(&buf, slog.LevelInfo, true))

	logger.With("run", "r1").WithGroup("pool").Info("caller released", "vu", 3, "err", "http 500")
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "[INFO]: caller released")
	assert.Contains(t, out, " run=r1")
	assert.Contains(t, out, " pool.vu=3")
	assert.Contains(t, out, ` pool.err="http 500"`)
	assert.NotContains(t, out, "hidden")
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
