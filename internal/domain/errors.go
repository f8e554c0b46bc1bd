package domain

import (
	"github.com/cockroachdb/errors"
)

// Kind classifies a failed compilation so the HTTP layer can pick a status
// code without looking at messages.
type Kind string

const (
	KindInvalidInput       Kind = "invalid_input"
	KindServiceUnavailable Kind = "service_unavailable"
	KindSandboxAllocation  Kind = "sandbox_allocation"
	KindSandboxWrite       Kind = "sandbox_write"
	KindTimeout            Kind = "timeout"
	KindCompilationFailed  Kind = "compilation_failed"
	KindArtifactNotFound   Kind = "artifact_not_found"
)

// Sentinels for errors.Is checks against a *CompileError of the same kind.
var (
	ErrInvalidInput       = errors.New(string(KindInvalidInput))
	ErrServiceUnavailable = errors.New(string(KindServiceUnavailable))
	ErrSandboxAllocation  = errors.New(string(KindSandboxAllocation))
	ErrSandboxWrite       = errors.New(string(KindSandboxWrite))
	ErrTimeout            = errors.New(string(KindTimeout))
	ErrCompilationFailed  = errors.New(string(KindCompilationFailed))
	ErrArtifactNotFound   = errors.New(string(KindArtifactNotFound))
)

var sentinels = map[Kind]error{
	KindInvalidInput:       ErrInvalidInput,
	KindServiceUnavailable: ErrServiceUnavailable,
	KindSandboxAllocation:  ErrSandboxAllocation,
	KindSandboxWrite:       ErrSandboxWrite,
	KindTimeout:            ErrTimeout,
	KindCompilationFailed:  ErrCompilationFailed,
	KindArtifactNotFound:   ErrArtifactNotFound,
}

// CompileError is the only error type that leaves the compiler. Message is
// safe to show to a user; Err carries the underlying cause for logs.
type CompileError struct {
	Kind    Kind
	Message string
	Hint    string
	Err     error
}

func (e *CompileError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *CompileError) Unwrap() error { return e.Err }

func (e *CompileError) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// Public is the kind exposed to callers. Sandbox problems are service
// failures to them, and a missing artifact after a clean exit reads as an
// ordinary compilation failure.
func (e *CompileError) Public() Kind {
	switch e.Kind {
	case KindArtifactNotFound:
		return KindCompilationFailed
	case KindSandboxAllocation, KindSandboxWrite:
		return KindServiceUnavailable
	}
	return e.Kind
}

// NewError builds a CompileError. The hint, if any, is taken from hints
// attached to cause with errors.WithHint.
func NewError(kind Kind, message string, cause error) *CompileError {
	ce := &CompileError{Kind: kind, Message: message, Err: cause}
	if cause != nil {
		ce.Hint = errors.FlattenHints(cause)
	}
	return ce
}

// AsCompileError extracts a *CompileError from err, wrapping anything else
// as a compilation failure so no raw error escapes.
func AsCompileError(err error) *CompileError {
	if err == nil {
		return nil
	}
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce
	}
	return NewError(KindCompilationFailed, "document compilation failed", err)
}
