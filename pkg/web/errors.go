package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
	"github.com/ruleflowhq/ruleflow/pkg/bulk"
	"github.com/ruleflowhq/ruleflow/pkg/engine"
	"github.com/ruleflowhq/ruleflow/pkg/persistence"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleError maps engine, bulk, and persistence errors to problem responses.
func handleError(c fiber.Ctx, err error) error {
	switch {
	case engine.IsValidationError(err) || bulk.IsValidationError(err):
		return badRequest(c, err.Error())

	case bulk.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsRuleAlreadyExists(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("rule_already_exists").
			WithDetail("rule already exists")

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsRuleNotFound(err):
		return notFound(c, "rule not found")

	case persistence.IsTransactionNotFound(err):
		return notFound(c, "transaction not found")

	default:
		return internalError(c, err)
	}
}
