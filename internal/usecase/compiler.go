package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"resume-compiler/internal/domain"
	"resume-compiler/internal/sandbox"
)

type CompilerOptions struct {
	Timeout         time.Duration
	MaxSourceBytes  int
	DiagnosticLines int
	Logger          *slog.Logger
}

// Compiler turns markup into a document by running an Engine inside a fresh
// sandbox per call. It keeps no state between calls.
type Compiler struct {
	engine    Engine
	sandboxes *sandbox.Manager
	timeout   time.Duration
	maxSource int
	maxLines  int
	log       *slog.Logger
}

func NewCompiler(engine Engine, sandboxes *sandbox.Manager, opts CompilerOptions) *Compiler {
	c := &Compiler{
		engine:    engine,
		sandboxes: sandboxes,
		timeout:   opts.Timeout,
		maxSource: opts.MaxSourceBytes,
		maxLines:  opts.DiagnosticLines,
		log:       opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxSource <= 0 {
		c.maxSource = DefaultMaxSourceBytes
	}
	if c.maxLines <= 0 {
		c.maxLines = DefaultDiagnosticLines
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

func (c *Compiler) EngineName() string { return c.engine.Name() }

// Compile runs the engine over source and returns the artifact. Every error
// is a *domain.CompileError. The workspace is always scheduled for removal
// before Compile returns.
func (c *Compiler) Compile(ctx context.Context, source string) (*domain.Result, error) {
	job := &domain.CompilationJob{
		Engine:    c.engine.Name(),
		Source:    source,
		Status:    domain.StatusCreated,
		CreatedAt: time.Now(),
	}

	res, err := c.run(ctx, job)
	job.Duration = time.Since(job.CreatedAt)
	if err != nil {
		ce := domain.AsCompileError(err)
		job.Status = domain.StatusFailed
		c.log.Warn("compile failed",
			"job_id", job.ID,
			"engine", job.Engine,
			"kind", ce.Kind,
			"passes", job.Passes,
			"duration", job.Duration,
			"error", ce.Err,
		)
		return nil, ce
	}

	job.Status = domain.StatusSucceeded
	res.Duration = job.Duration
	c.log.Info("compile succeeded",
		"job_id", job.ID,
		"engine", job.Engine,
		"passes", job.Passes,
		"bytes", len(res.Artifact),
		"duration", job.Duration,
	)
	return res, nil
}

func (c *Compiler) run(ctx context.Context, job *domain.CompilationJob) (*domain.Result, error) {
	if strings.TrimSpace(job.Source) == "" {
		return nil, domain.NewError(domain.KindInvalidInput, "document source is empty", nil)
	}
	if len(job.Source) > c.maxSource {
		return nil, domain.NewError(domain.KindInvalidInput,
			fmt.Sprintf("document source exceeds %d bytes", c.maxSource), nil)
	}

	id, ws, err := c.sandboxes.Allocate()
	if err != nil {
		return nil, err
	}
	job.ID, job.Workspace = id, ws
	defer c.sandboxes.ScheduleRelease(ws)

	files := c.engine.Files()
	if err := c.sandboxes.WriteInput(ws, files.Source, job.Source); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	job.Status = domain.StatusCompiling
	passes := c.engine.Passes()
	if passes < 1 {
		passes = 1
	}
	for pass := 1; pass <= passes; pass++ {
		job.Passes = pass
		pr, err := c.engine.Run(runCtx, ws, pass)
		// A pass that finished cleanly counts even if the deadline passed
		// right after it.
		if err != nil || pr.ExitCode != 0 {
			if cerr := c.interrupted(ctx, runCtx, pass); cerr != nil {
				return nil, cerr
			}
		}
		if err != nil {
			var ce *domain.CompileError
			if errors.As(err, &ce) {
				return nil, ce
			}
			return nil, domain.NewError(domain.KindCompilationFailed, "the typesetting engine could not be run",
				errors.Wrapf(err, "pass %d", pass))
		}
		if pr.ExitCode != 0 {
			job.Diagnostics = c.diagnose(ws, files, pr)
			return nil, domain.NewError(domain.KindCompilationFailed, job.Diagnostics,
				errors.Newf("%s pass %d exited with status %d", c.engine.Name(), pass, pr.ExitCode))
		}
	}

	artifact, err := c.sandboxes.ReadOutput(ws, files.Output)
	if err != nil {
		return nil, err
	}
	if files.Signature != "" && !bytes.HasPrefix(artifact, []byte(files.Signature)) {
		return nil, domain.NewError(domain.KindArtifactNotFound, "the engine produced no document",
			errors.Newf("%s does not start with %q (len=%d)", files.Output, files.Signature, len(artifact)))
	}
	job.Artifact = artifact

	return &domain.Result{
		JobID:       job.ID,
		Artifact:    artifact,
		ContentType: files.ContentType,
		Filename:    files.Filename,
		Passes:      job.Passes,
	}, nil
}

// interrupted reports a timeout or caller cancellation after a failed pass.
// The budget covers all passes together, so a timeout in pass 1 skips pass 2.
func (c *Compiler) interrupted(parent, runCtx context.Context, pass int) error {
	if runCtx.Err() == nil {
		return nil
	}
	if parent.Err() != nil {
		return domain.NewError(domain.KindServiceUnavailable, "compilation was interrupted",
			errors.Wrapf(parent.Err(), "pass %d", pass))
	}
	cause := errors.WithHint(
		errors.Wrapf(runCtx.Err(), "pass %d exceeded %s", pass, c.timeout),
		"try a smaller or simpler document",
	)
	return domain.NewError(domain.KindTimeout,
		fmt.Sprintf("compilation did not finish within %s", c.timeout), cause)
}

func (c *Compiler) diagnose(ws string, files EngineFiles, pr PassResult) string {
	if files.Log != "" {
		if d := ExtractDiagnostics(c.sandboxes.ReadDiagnostics(ws, files.Log), c.maxLines); d != "" {
			return d
		}
	}
	if d := TailLines(pr.Stderr, c.maxLines); d != "" {
		return d
	}
	return fmt.Sprintf("%s exited with status %d", c.engine.Name(), pr.ExitCode)
}

// Health checks the engine toolchain without allocating a sandbox.
func (c *Compiler) Health(ctx context.Context) domain.Health {
	ctx, cancel := context.WithTimeout(ctx, DefaultHealthTimeout)
	defer cancel()

	h := domain.Health{Status: domain.HealthOK, Engine: c.engine.Name()}
	if err := c.engine.Check(ctx); err != nil {
		c.log.Warn("engine health check failed", "engine", c.engine.Name(), "error", err)
		h.Status = domain.HealthUnavailable
		h.Detail = domain.AsCompileError(err).Message
	}
	return h
}
