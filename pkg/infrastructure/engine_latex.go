package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"

	"resume-compiler/internal/domain"
	"resume-compiler/internal/usecase"
)

var (
	execLookPath = exec.LookPath
	killTree     = killProcessTree
)

const (
	defaultLatexBinary = "pdflatex"
	latexJobName       = "resume"
	outputCap          = 64 << 10
	// waitDelay bounds how long Wait blocks on pipes held open by stray
	// children after the engine itself has exited or been killed.
	waitDelay = 2 * time.Second
)

// LatexEngine runs pdflatex (or a compatible binary) as a child process in
// its own process group so a timeout can kill everything it started.
type LatexEngine struct {
	binary    string
	extraArgs []string
	log       *slog.Logger
}

// NewLatexEngine parses extraArgs with shell quoting rules, e.g.
// `-synctex=0 "-output-format=pdf"`.
func NewLatexEngine(binary, extraArgs string, log *slog.Logger) (*LatexEngine, error) {
	if binary == "" {
		binary = defaultLatexBinary
	}
	if log == nil {
		log = slog.Default()
	}
	args, err := shellquote.Split(extraArgs)
	if err != nil {
		return nil, errors.Wrapf(err, "parse latex extra args %q", extraArgs)
	}
	return &LatexEngine{binary: binary, extraArgs: args, log: log}, nil
}

func (e *LatexEngine) Name() string { return "latex" }

func (e *LatexEngine) Passes() int { return 2 }

func (e *LatexEngine) Files() usecase.EngineFiles {
	return usecase.EngineFiles{
		Source:      latexJobName + ".tex",
		Output:      latexJobName + ".pdf",
		Log:         latexJobName + ".log",
		Signature:   "%PDF",
		ContentType: "application/pdf",
		Filename:    "resume.pdf",
	}
}

func (e *LatexEngine) args() []string {
	args := []string{
		"-interaction=nonstopmode",
		"-halt-on-error",
		"-file-line-error",
		"-no-shell-escape",
		"-jobname=" + latexJobName,
	}
	args = append(args, e.extraArgs...)
	return append(args, e.Files().Source)
}

func (e *LatexEngine) resolve() (string, error) {
	path, err := execLookPath(e.binary)
	if err != nil {
		return "", domain.NewError(domain.KindServiceUnavailable,
			fmt.Sprintf("%s is not available", e.binary), errors.Wrap(err, "look up latex binary"))
	}
	return path, nil
}

func (e *LatexEngine) command(ctx context.Context, path, dir string, args ...string) (*exec.Cmd, *tailBuffer, *tailBuffer) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	// openout_any=p keeps \openout inside the working directory.
	cmd.Env = append(os.Environ(), "openout_any=p", "shell_escape=f")
	configureProcessGroup(cmd)
	// Cancel runs before Wait reaps the engine, so its pid (and group id)
	// cannot have been reused by another job yet.
	cmd.Cancel = func() error {
		if err := killTree(cmd); err != nil {
			e.log.Warn("latex: could not kill process group", "pid", cmd.Process.Pid, "error", err)
			return err
		}
		return nil
	}
	cmd.WaitDelay = waitDelay

	stdout, stderr := newTailBuffer(outputCap), newTailBuffer(outputCap)
	cmd.Stdout, cmd.Stderr = stdout, stderr
	return cmd, stdout, stderr
}

// Run executes one pass inside workspace. A non-zero exit is reported in the
// PassResult; err is only set when the engine could not run or was killed.
func (e *LatexEngine) Run(ctx context.Context, workspace string, pass int) (usecase.PassResult, error) {
	path, err := e.resolve()
	if err != nil {
		return usecase.PassResult{}, err
	}

	cmd, stdout, stderr := e.command(ctx, path, workspace, e.args()...)
	start := time.Now()
	err = cmd.Run()
	// The group outlives its leader, so helpers left behind by a clean exit
	// are still reachable here.
	if kerr := killTree(cmd); kerr != nil {
		e.log.Warn("latex: could not kill leftover processes", "pass", pass, "error", kerr)
	}
	e.log.Debug("latex pass finished", "pass", pass, "workspace", workspace, "duration", time.Since(start), "error", err)

	if ctx.Err() != nil {
		return usecase.PassResult{}, errors.Wrapf(ctx.Err(), "latex pass %d killed", pass)
	}

	out := stderr.String()
	if strings.TrimSpace(out) == "" {
		// TeX reports most problems on stdout.
		out = stdout.String()
	}

	// A leftover child holding the pipes open does not make a successful
	// pass fail.
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		e.log.Debug("latex: pass left processes holding its output", "pass", pass)
		err = nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return usecase.PassResult{ExitCode: exitErr.ExitCode(), Stderr: out}, nil
	}
	if err != nil {
		return usecase.PassResult{}, errors.Wrapf(err, "run %s", e.binary)
	}
	return usecase.PassResult{Stderr: out}, nil
}

// Check resolves the binary and asks it for its version.
func (e *LatexEngine) Check(ctx context.Context) error {
	path, err := e.resolve()
	if err != nil {
		return err
	}
	cmd, _, _ := e.command(ctx, path, os.TempDir(), "--version")
	if err := cmd.Run(); err != nil {
		return domain.NewError(domain.KindServiceUnavailable,
			fmt.Sprintf("%s did not respond", e.binary), errors.Wrapf(err, "%s --version", path))
	}
	return nil
}
