package logging

import (
	"testing"

	"checkout-service/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	logger, err := New(config.LogConfig{Level: "debug", Encoding: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = New(config.LogConfig{Level: "warn", Encoding: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))

	_, err = New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
