package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
	"github.com/hrflow/hrflow/pkg/services"
	"github.com/moogar0880/problems"
)

// decidedProblem is the 409 body of a lost decision race: it carries the action's final state.
type decidedProblem struct {
	*problems.Problem

	Action *models.PendingAction `json:"action"`
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func unauthorized(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(401).
		WithInstance(c.Path()).
		WithType("unauthorized").
		WithDetail(detail)

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	var decided *persistence.AlreadyDecidedError

	switch {
	case errors.As(err, &decided):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("already_decided").
			WithDetail(decided.Error())

		return c.Status(fiber.StatusConflict).JSON(decidedProblem{Problem: problem, Action: decided.Action})

	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsForbiddenError(err):
		problem := problems.NewStatusProblem(403).
			WithInstance(c.Path()).
			WithType("forbidden").
			WithDetail(err.Error())

		return c.Status(fiber.StatusForbidden).JSON(problem)

	case services.IsNotFoundError(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType(notFoundType(err)).
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	default:
		// Log unexpected errors but don't expose details
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}

func notFoundType(err error) string {
	switch {
	case persistence.IsWorkflowNotFound(err):
		return "workflow_not_found"
	case persistence.IsInstanceNotFound(err):
		return "instance_not_found"
	case persistence.IsPendingActionNotFound(err):
		return "pending_action_not_found"
	case errors.Is(err, services.ErrNoMatchingDefinition):
		return "no_matching_workflow"
	default:
		return "not_found"
	}
}
