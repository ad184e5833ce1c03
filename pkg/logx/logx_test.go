package logx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("test-component")
	require.NotNil(t, logger)
	assert.Equal(t, "test-component", logger.Component())
}

func TestWithComponent(t *testing.T) {
	base := NewLogger("base")
	derived := base.WithComponent("derived")

	assert.Equal(t, "base", base.Component())
	assert.Equal(t, "derived", derived.Component())
}

func TestSetDebugDomainFiltering(t *testing.T) {
	defer SetDebug(false, nil)

	SetDebug(true, nil)
	assert.True(t, debugEnabledFor("anything"))

	SetDebug(true, []string{"slack", "inference"})
	assert.True(t, debugEnabledFor("slack"))
	assert.True(t, debugEnabledFor("inference"))
	assert.False(t, debugEnabledFor("logproc"))

	SetDebug(false, nil)
	assert.False(t, debugEnabledFor("slack"))
}

func TestErrorfReturnsError(t *testing.T) {
	err := Errorf("download failed: %w", errors.New("timeout"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "download failed")
	assert.Contains(t, err.Error(), "timeout")
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "no-op"))

	inner := errors.New("connection refused")
	err := Wrap(inner, "slack post")
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "slack post: connection refused", err.Error())
}
