package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeJSON(t *testing.T) {
	require.NoError(t, Initialize(true))
	assert.True(t, JSONOutput)
	assert.NotNil(t, Logger)

	// Must not panic
	Logger.Infow("test entry", "key", "value")
}

func TestInitializeConsole(t *testing.T) {
	require.NoError(t, Initialize(false))
	assert.False(t, JSONOutput)

	Named("scheduler").Infow("named entry", "job_id", "SJ_test")
}

func TestDefaultLoggerIsUsableBeforeInitialize(t *testing.T) {
	// The package-level logger must never be nil
	assert.NotNil(t, Logger)
	Logger.Debugw("no-op before init")
}
