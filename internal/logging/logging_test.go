package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewRejectsBadFormat(t *testing.T) {
	_, err := New(Config{Format: "xml"})
	assert.Error(t, err)

	logger, err := New(Config{Level: "debug", Format: "console", Fields: map[string]string{"service": "authflow"}})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestMaskIdentifier(t *testing.T) {
	assert.Equal(t, "a***@b.com", MaskIdentifier("alice@b.com"))
	assert.Equal(t, "***4567", MaskIdentifier("+15551234567"))
	assert.Equal(t, "***", MaskIdentifier("123"))
	assert.Equal(t, "", MaskIdentifier(""))
}
