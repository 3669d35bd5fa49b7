package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("commerce-api", Options{Level: "debug", Format: "json", Output: &buf})

	logger.WithField("auction_id", "a1").Debug("bid placed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "bid placed", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "commerce-api", entry["app"])
	assert.Equal(t, "a1", entry["auction_id"])
}

func TestNewLogger_Defaults(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("commerce-api", Options{Level: "nonsense", Output: &buf})

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	logger.Info("shown")
	assert.Contains(t, buf.String(), "app=commerce-api")
}
