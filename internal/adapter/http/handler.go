package http

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/semaphore"

	"resume-compiler/internal/breaker"
	"resume-compiler/internal/domain"
	"resume-compiler/internal/model"
)

// Compiler is what the handler needs from usecase.Compiler.
type Compiler interface {
	Compile(ctx context.Context, source string) (*domain.Result, error)
	Health(ctx context.Context) domain.Health
}

type Options struct {
	// Engines maps engine names ("latex", "html") to compilers.
	Engines       map[string]Compiler
	DefaultEngine string
	// Breakers holds one breaker per engine name; engines without one get a
	// fresh closed breaker.
	Breakers      map[string]*breaker.Breaker
	// MaxConcurrent bounds in-flight compiles; 0 means no bound.
	MaxConcurrent int
	Logger        *slog.Logger
}

type Handler struct {
	engines       map[string]Compiler
	defaultEngine string
	breakers      map[string]*breaker.Breaker
	slots         *semaphore.Weighted
	log           *slog.Logger
}

func NewHandler(opts Options) *Handler {
	h := &Handler{
		engines:       opts.Engines,
		defaultEngine: opts.DefaultEngine,
		breakers:      make(map[string]*breaker.Breaker, len(opts.Engines)),
		log:           opts.Logger,
	}
	for name := range opts.Engines {
		b := opts.Breakers[name]
		if b == nil {
			b = breaker.New()
		}
		h.breakers[name] = b
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	if opts.MaxConcurrent > 0 {
		h.slots = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	return h
}

func (h *Handler) Register(app *fiber.App) {
	app.Post("/compile", h.Compile)
	app.Get("/health", h.Health)
	app.Post("/health/reset", h.ResetBreaker)
}

// Compile accepts either a JSON CompileRequest or the raw markup as a
// text/plain (or application/x-latex, text/html) body with ?engine=.
func (h *Handler) Compile(c *fiber.Ctx) error {
	req, err := h.parse(c)
	if err != nil {
		return h.fail(c, domain.NewError(domain.KindInvalidInput, "invalid request body", err))
	}
	if err := model.ValidateFilename(req.Filename); err != nil {
		return h.fail(c, domain.NewError(domain.KindInvalidInput, "invalid filename", err))
	}

	name := req.Engine
	if name == "" {
		name = h.defaultEngine
	}
	compiler, ok := h.engines[name]
	if !ok {
		return h.fail(c, domain.NewError(domain.KindInvalidInput, fmt.Sprintf("unknown engine %q", name), nil))
	}

	brk := h.breakers[name]
	if !brk.Allow() {
		return h.fail(c, domain.NewError(domain.KindServiceUnavailable,
			"the compilation service is temporarily unavailable", nil))
	}

	if h.slots != nil {
		if !h.slots.TryAcquire(1) {
			c.Set(fiber.HeaderRetryAfter, "1")
			return h.fail(c, domain.NewError(domain.KindServiceUnavailable,
				"too many documents are being compiled, try again shortly", nil))
		}
		defer h.slots.Release(1)
	}

	res, err := compiler.Compile(c.UserContext(), req.Source)
	if err != nil {
		ce := domain.AsCompileError(err)
		if ce.Kind == domain.KindServiceUnavailable && !isInterrupted(ce) {
			brk.Trip(ce.Message)
			h.log.Error("breaker opened", "engine", name, "reason", ce.Message)
		}
		return h.fail(c, ce)
	}

	filename := res.Filename
	if req.Filename != "" {
		filename = req.Filename
	}
	c.Set(fiber.HeaderContentType, res.ContentType)
	c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.Set("X-Job-ID", res.JobID)
	return c.Status(fiber.StatusOK).Send(res.Artifact)
}

func (h *Handler) parse(c *fiber.Ctx) (*model.CompileRequest, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(string(c.Request().Header.ContentType()), ";")[0]))
	switch ct {
	case "text/plain", "application/x-latex", "application/x-tex", "text/x-tex", "text/html":
		engine := c.Query("engine")
		if engine == "" && ct == "text/html" {
			engine = "html"
		}
		return &model.CompileRequest{Source: string(c.Body()), Engine: engine, Filename: c.Query("filename")}, nil
	default:
		return model.ParseCompileRequest(c.Body())
	}
}

// Health reports engine reachability and drives the breaker: a failing check
// opens it, a passing check closes it.
func (h *Handler) Health(c *fiber.Ctx) error {
	name := c.Query("engine", h.defaultEngine)
	compiler, ok := h.engines[name]
	if !ok {
		return h.fail(c, domain.NewError(domain.KindInvalidInput, fmt.Sprintf("unknown engine %q", name), nil))
	}

	brk := h.breakers[name]
	health := compiler.Health(c.UserContext())
	if health.Status == domain.HealthOK {
		if brk.Reset() {
			h.log.Info("breaker closed by health check", "engine", name)
		}
	} else {
		brk.Trip(health.Detail)
	}

	status := fiber.StatusOK
	if health.Status != domain.HealthOK {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"status":  health.Status,
		"engine":  health.Engine,
		"detail":  health.Detail,
		"breaker": brk.Snapshot(),
	})
}

// ResetBreaker closes the breaker of ?engine= by hand, e.g. after the
// engine was reinstalled. Without ?engine= every breaker is closed.
func (h *Handler) ResetBreaker(c *fiber.Ctx) error {
	names := make([]string, 0, len(h.breakers))
	if name := c.Query("engine"); name != "" {
		if _, ok := h.breakers[name]; !ok {
			return h.fail(c, domain.NewError(domain.KindInvalidInput, fmt.Sprintf("unknown engine %q", name), nil))
		}
		names = append(names, name)
	} else {
		for name := range h.breakers {
			names = append(names, name)
		}
	}

	snapshots := make(map[string]breaker.Snapshot, len(names))
	for _, name := range names {
		b := h.breakers[name]
		if b.Reset() {
			h.log.Info("breaker closed manually", "engine", name)
		}
		snapshots[name] = b.Snapshot()
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"breakers": snapshots})
}
