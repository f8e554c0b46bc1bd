package usecase

import (
	"context"
	"time"
)

// EngineFiles names the fixed files an engine reads and writes inside a
// workspace.
type EngineFiles struct {
	Source string
	Output string
	Log    string
	// Signature, when set, is the prefix every valid artifact starts with.
	Signature   string
	ContentType string
	Filename    string
}

// PassResult is the outcome of one engine invocation that ran to completion.
// A non-zero ExitCode is a document problem, not an engine problem.
type PassResult struct {
	ExitCode int
	Stderr   string
}

// Engine runs an external typesetter inside a workspace. Run must stop the
// engine (and anything it spawned) when ctx is done and return ctx.Err()
// wrapped. Errors other than that mean the engine could not be run at all.
type Engine interface {
	Name() string
	Files() EngineFiles
	// Passes is how many times the engine must run for cross references to
	// settle.
	Passes() int
	Run(ctx context.Context, workspace string, pass int) (PassResult, error)
	// Check verifies the toolchain is reachable without compiling anything.
	Check(ctx context.Context) error
}

const (
	DefaultTimeout         = 30 * time.Second
	DefaultMaxSourceBytes  = 1 << 20
	DefaultDiagnosticLines = 10
	DefaultHealthTimeout   = 5 * time.Second
)
