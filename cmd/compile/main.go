package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/urfave/cli/v3"

	"resume-compiler/internal/config"
	"resume-compiler/internal/domain"
	"resume-compiler/internal/logger"
	"resume-compiler/internal/sandbox"
	"resume-compiler/internal/usecase"
	infra "resume-compiler/pkg/infrastructure"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envFlag := &cli.StringFlag{Name: "env", Usage: "environment file", Value: ".env"}
	engineFlag := &cli.StringFlag{Name: "engine", Usage: "latex or html (default: by file extension, then COMPILE_ENGINE)"}

	app := &cli.Command{
		Name:  "compile",
		Usage: "compile resume markup to PDF without the HTTP server",
		Commands: []*cli.Command{
			{
				Name:      "build",
				Usage:     "compile a local file",
				ArgsUsage: "<source file>",
				Flags: []cli.Flag{
					envFlag,
					engineFlag,
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output path (default: source name with .pdf)"},
					&cli.DurationFlag{Name: "timeout", Usage: "overall compile budget (default: COMPILE_TIMEOUT)"},
				},
				Action: buildAction,
			},
			{
				Name:   "check",
				Usage:  "report whether the engine can be run",
				Flags:  []cli.Flag{envFlag, engineFlag},
				Action: checkAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if ce, ok := asCompileError(err); ok && ce.Hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", ce.Hint)
		}
		os.Exit(1)
	}
}

type setup struct {
	compiler  *usecase.Compiler
	sandboxes *sandbox.Manager
}

func newSetup(cmd *cli.Command, engine string, timeout time.Duration) (*setup, error) {
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if engine == "" {
		engine = cfg.Engine
	}
	if timeout <= 0 {
		timeout = cfg.CompileTimeout
	}
	log := logger.NewWithWriter(os.Stderr, logger.Config{Level: cfg.LogLevel, Format: "text"})

	var e usecase.Engine
	switch engine {
	case "latex":
		e, err = infra.NewLatexEngine(cfg.LatexBinary, cfg.LatexExtraArgs, log)
		if err != nil {
			return nil, errors.Wrap(err, "configure latex engine")
		}
	case "html":
		e = infra.NewChromedpEngine(cfg.ChromePath, cfg.Stylesheet, log)
	default:
		return nil, errors.Newf("unknown engine %q", engine)
	}

	// No point keeping workspaces around for a one-shot run.
	sandboxes, err := sandbox.New(cfg.TempDir, 0, log)
	if err != nil {
		return nil, errors.Wrap(err, "prepare sandbox root")
	}
	c := usecase.NewCompiler(e, sandboxes, usecase.CompilerOptions{
		Timeout:        timeout,
		MaxSourceBytes: cfg.MaxSourceBytes,
		Logger:         log,
	})
	return &setup{compiler: c, sandboxes: sandboxes}, nil
}

// engineFor picks an engine from the flag, falling back to the extension.
func engineFor(flag, path string) string {
	if flag != "" {
		return flag
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return "html"
	case ".tex", ".latex":
		return "latex"
	}
	return ""
}

func buildAction(ctx context.Context, cmd *cli.Command) error {
	in := cmd.Args().First()
	if in == "" {
		return errors.New("a source file is required")
	}
	src, err := os.ReadFile(in)
	if err != nil {
		return errors.Wrap(err, "read source")
	}

	s, err := newSetup(cmd, engineFor(cmd.String("engine"), in), cmd.Duration("timeout"))
	if err != nil {
		return err
	}
	defer s.sandboxes.FlushAll()

	res, err := s.compiler.Compile(ctx, string(src))
	if err != nil {
		return err
	}

	out := cmd.String("out")
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + ".pdf"
	}
	if err := os.WriteFile(out, res.Artifact, 0o644); err != nil {
		return errors.Wrap(err, "write output")
	}
	slog.Info("compiled", "job_id", res.JobID, "out", out, "bytes", len(res.Artifact),
		"passes", res.Passes, "duration", res.Duration)
	fmt.Println(out)
	return nil
}

func checkAction(ctx context.Context, cmd *cli.Command) error {
	s, err := newSetup(cmd, cmd.String("engine"), 0)
	if err != nil {
		return err
	}
	h := s.compiler.Health(ctx)
	fmt.Printf("%s: %s", h.Engine, h.Status)
	if h.Detail != "" {
		fmt.Printf(" (%s)", h.Detail)
	}
	fmt.Println()
	if h.Status != domain.HealthOK {
		return errors.Newf("engine %s is unavailable", h.Engine)
	}
	return nil
}

func asCompileError(err error) (*domain.CompileError, bool) {
	var ce *domain.CompileError
	ok := errors.As(err, &ce)
	return ce, ok
}
