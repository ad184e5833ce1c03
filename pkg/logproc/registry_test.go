package logproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsPatternWithoutCaptureGroup(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register("INSTALL", `(?i)running step install`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoCaptureGroup)
	assert.Equal(t, 0, reg.Len())
}

func TestRegisterRejectsInvalidPattern(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register("INSTALL", `running step ([unclosed`)
	require.Error(t, err)
	assert.Equal(t, 0, reg.Len())
}

func TestMatchFirstRuleWins(t *testing.T) {
	lineA := "Running step deploy-cluster"

	// Specific rule registered first: the specific label wins.
	reg := NewRegistry()
	require.NoError(t, reg.Register("INSTALL", `(?i)running step (.*\b(install|deploy)[\w-]+)`))
	require.NoError(t, reg.Register("ANY", `(?i)running step ([\w-]+)`))

	label, _, ok := reg.Match(lineA)
	require.True(t, ok)
	assert.Equal(t, "INSTALL", label)

	// Same rules in the opposite order: the catch-all shadows the
	// specific rule. Ordering is the caller's contract, not a registry
	// concern.
	reversed := NewRegistry()
	require.NoError(t, reversed.Register("ANY", `(?i)running step ([\w-]+)`))
	require.NoError(t, reversed.Register("INSTALL", `(?i)running step (.*\b(install|deploy)[\w-]+)`))

	label, _, ok = reversed.Match(lineA)
	require.True(t, ok)
	assert.Equal(t, "ANY", label)
}

func TestMatchExtractsStepName(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("INSTALL", `(?i)running step (.*deploy.*)`))

	label, step, ok := reg.Match("Running step deploy-x")
	require.True(t, ok)
	assert.Equal(t, "INSTALL", label)
	assert.Equal(t, "deploy-x", step)

	_, _, ok = reg.Match("some unrelated line")
	assert.False(t, ok)
}

func TestMatchNegativeLookahead(t *testing.T) {
	// The production workload rule excludes install/deploy/orion steps via
	// negative lookahead; this is why patterns are regexp2, not RE2.
	reg := NewRegistry()
	require.NoError(t, reg.Register("WORKLOAD", `(?i)running step ((?!.*\b(install|deploy|orion)\w*)[\w-]+)`))

	label, step, ok := reg.Match("Running step run-tests")
	require.True(t, ok)
	assert.Equal(t, "WORKLOAD", label)
	assert.Equal(t, "run-tests", step)

	_, _, ok = reg.Match("Running step deploy-cluster")
	assert.False(t, ok)

	_, _, ok = reg.Match("Running step run-orion-check")
	assert.False(t, ok)
}
