package domain

import (
	"errors"
	"fmt"
	"testing"

	crdb "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileErrorIs(t *testing.T) {
	err := NewError(KindTimeout, "compilation timed out", nil)
	wrapped := fmt.Errorf("handler: %w", err)

	assert.ErrorIs(t, wrapped, ErrTimeout)
	assert.NotErrorIs(t, wrapped, ErrCompilationFailed)

	var ce *CompileError
	require.True(t, errors.As(wrapped, &ce))
	assert.Equal(t, KindTimeout, ce.Kind)
}

func TestCompileErrorPublicKind(t *testing.T) {
	assert.Equal(t, KindCompilationFailed, NewError(KindArtifactNotFound, "no output", nil).Public())
	assert.Equal(t, KindTimeout, NewError(KindTimeout, "slow", nil).Public())
	assert.Equal(t, KindInvalidInput, NewError(KindInvalidInput, "empty", nil).Public())
	assert.Equal(t, KindServiceUnavailable, NewError(KindSandboxAllocation, "disk full", nil).Public())
	assert.Equal(t, KindServiceUnavailable, NewError(KindSandboxWrite, "disk full", nil).Public())
}

func TestNewErrorCarriesHint(t *testing.T) {
	cause := crdb.WithHint(crdb.New("deadline exceeded"), "try a smaller document")
	ce := NewError(KindTimeout, "compilation timed out", cause)

	assert.Equal(t, "try a smaller document", ce.Hint)
	assert.Contains(t, ce.Error(), "deadline exceeded")
	assert.Equal(t, "compilation timed out", ce.Message)
}

func TestAsCompileError(t *testing.T) {
	assert.Nil(t, AsCompileError(nil))

	raw := errors.New("exec: permission denied")
	ce := AsCompileError(raw)
	require.NotNil(t, ce)
	assert.Equal(t, KindCompilationFailed, ce.Kind)
	assert.NotContains(t, ce.Message, "permission denied")

	orig := NewError(KindSandboxWrite, "could not stage document", raw)
	assert.Same(t, orig, AsCompileError(fmt.Errorf("x: %w", orig)))
}
