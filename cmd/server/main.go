package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	httpadapter "resume-compiler/internal/adapter/http"
	"resume-compiler/internal/breaker"
	"resume-compiler/internal/config"
	"resume-compiler/internal/domain"
	"resume-compiler/internal/logger"
	"resume-compiler/internal/sandbox"
	"resume-compiler/internal/usecase"
	infra "resume-compiler/pkg/infrastructure"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	sandboxes, err := sandbox.New(cfg.TempDir, cfg.CleanupDelay, log)
	if err != nil {
		return errors.Wrap(err, "prepare sandbox root")
	}

	latex, err := infra.NewLatexEngine(cfg.LatexBinary, cfg.LatexExtraArgs, log)
	if err != nil {
		return errors.Wrap(err, "configure latex engine")
	}
	html := infra.NewChromedpEngine(cfg.ChromePath, cfg.Stylesheet, log)

	opts := usecase.CompilerOptions{
		Timeout:        cfg.CompileTimeout,
		MaxSourceBytes: cfg.MaxSourceBytes,
		Logger:         log,
	}
	engines := map[string]httpadapter.Compiler{}
	breakers := map[string]*breaker.Breaker{}
	for _, e := range []usecase.Engine{latex, html} {
		engines[e.Name()] = usecase.NewCompiler(e, sandboxes, opts)
		breakers[e.Name()] = breaker.New()
	}

	h := httpadapter.NewHandler(httpadapter.Options{
		Engines:       engines,
		DefaultEngine: cfg.Engine,
		Breakers:      breakers,
		MaxConcurrent: cfg.MaxConcurrentJobs,
		Logger:        log,
	})

	// An unavailable engine at startup is not fatal; its breaker stays open
	// until a health check passes.
	for name, compiler := range engines {
		checkCtx, cancel := context.WithTimeout(context.Background(), usecase.DefaultHealthTimeout)
		health := compiler.Health(checkCtx)
		cancel()
		if health.Status != domain.HealthOK {
			breakers[name].Trip(health.Detail)
			log.Warn("engine unavailable", "engine", name, "default", name == cfg.Engine, "detail", health.Detail)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:               "resume-compiler",
		ErrorHandler:          httpadapter.ErrorHandler,
		BodyLimit:             cfg.MaxSourceBytes + 64<<10,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.CompileTimeout + 10*time.Second,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	h.Register(app)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "engine", cfg.Engine, "temp_dir", sandboxes.Base())
		errCh <- app.Listen(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		sandboxes.FlushAll()
		return errors.Wrap(err, "server failed")
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	if err := app.ShutdownWithTimeout(cfg.CompileTimeout + 5*time.Second); err != nil {
		log.Error("server shutdown", "error", err)
	}
	sandboxes.FlushAll()
	log.Info("server stopped")
	return nil
}
