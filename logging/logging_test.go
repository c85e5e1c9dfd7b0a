package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kava-labs/body-rewrite-proxy/logging"
)

func TestUnitTestNewReturnsErrorForUnknownLevel(t *testing.T) {
	_, err := logging.New("whisper")

	assert.NotNil(t, err)
}

func TestUnitTestNewWithWriterWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer

	logger, err := logging.NewWithWriter("INFO", &buf)
	require.NoError(t, err)

	logger.Info().Str("product_id", "123").Msg("hello")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "123", line["product_id"])
	assert.Equal(t, "info", line["level"])
}

func TestUnitTestNewWithWriterFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer

	logger, err := logging.NewWithWriter("ERROR", &buf)
	require.NoError(t, err)

	logger.Debug().Msg("hidden")
	logger.Info().Msg("hidden too")
	assert.Zero(t, buf.Len())

	logger.Error().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestUnitTestLoggersKeepIndependentLevels(t *testing.T) {
	var quiet, chatty bytes.Buffer

	quietLogger, err := logging.NewWithWriter("ERROR", &quiet)
	require.NoError(t, err)
	chattyLogger, err := logging.NewWithWriter("TRACE", &chatty)
	require.NoError(t, err)

	quietLogger.Trace().Msg("dropped")
	chattyLogger.Trace().Msg("kept")

	assert.Zero(t, quiet.Len())
	assert.Contains(t, chatty.String(), "kept")
}
