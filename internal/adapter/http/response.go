package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"resume-compiler/internal/domain"
	"resume-compiler/internal/model"
)

// statusFor maps the caller-visible kind to an HTTP status.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidInput:
		return fiber.StatusBadRequest
	case domain.KindServiceUnavailable, domain.KindSandboxAllocation, domain.KindSandboxWrite, domain.KindTimeout:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *Handler) fail(c *fiber.Ctx, ce *domain.CompileError) error {
	kind := ce.Public()
	status := statusFor(kind)
	if status >= fiber.StatusInternalServerError {
		h.log.Warn("compile request failed", "kind", ce.Kind, "status", status, "error", ce)
	}
	return c.Status(status).JSON(model.CompileFailure{Error: model.FailureDetail{
		Kind:    string(kind),
		Message: ce.Message,
		Hint:    ce.Hint,
	}})
}

// isInterrupted tells a caller-side cancellation apart from an engine that
// cannot be reached; only the latter should open the breaker.
func isInterrupted(ce *domain.CompileError) bool {
	return errors.Is(ce, context.Canceled) || errors.Is(ce, context.DeadlineExceeded)
}

// ErrorHandler renders fiber's own errors (404, 405, body too large) in the
// same shape as compile failures.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "an unexpected error occurred"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	kind := domain.KindCompilationFailed
	if code < fiber.StatusInternalServerError {
		kind = domain.KindInvalidInput
	}
	return c.Status(code).JSON(model.CompileFailure{Error: model.FailureDetail{Kind: string(kind), Message: msg}})
}
