package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInit_DevelopmentHonorsLevel(t *testing.T) {
	require.NoError(t, Init("development", "debug"))
	assert.True(t, Get().Core().Enabled(zap.DebugLevel))
}

func TestInit_ProductionFiltersDebug(t *testing.T) {
	require.NoError(t, Init("production", "info"))
	assert.False(t, Get().Core().Enabled(zap.DebugLevel))
	assert.True(t, Get().Core().Enabled(zap.InfoLevel))
}

func TestInit_BadLevelFallsBack(t *testing.T) {
	require.NoError(t, Init("development", "loud"))
	assert.True(t, Get().Core().Enabled(zap.InfoLevel))
}

func TestGet_BeforeInitIsNoop(t *testing.T) {
	globalLogger = nil
	assert.NotNil(t, Get())

	require.NoError(t, Init("development", "info"))
	assert.NotEqual(t, zap.NewNop(), Get())
}

func TestSync_SafeWithoutInit(t *testing.T) {
	globalLogger = nil
	Sync()

	require.NoError(t, Init("development", "info"))
	Sync()
}
