// Package web provides HTTP handlers and REST API endpoints for the approval
// workflow engine.
package web

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/stagio/stagio/pkg/engine"
	"github.com/stagio/stagio/pkg/models"
	"github.com/stagio/stagio/pkg/persistence"
	"github.com/stagio/stagio/pkg/services"
)

// HealthChecker is implemented by infrastructure components the health
// endpoint should probe, such as the notification queue.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type APIHandlers struct {
	engine      *engine.Engine
	decisions   *services.Decision
	persistence persistence.Persistence
	validator   *validator.Validate
	checkers    map[string]HealthChecker
}

func NewAPIHandlers(
	engine *engine.Engine,
	decisions *services.Decision,
	persistence persistence.Persistence,
	validator *validator.Validate,
	checkers map[string]HealthChecker,
) *APIHandlers {
	return &APIHandlers{
		engine:      engine,
		decisions:   decisions,
		persistence: persistence,
		validator:   validator,
		checkers:    checkers,
	}
}

func (h *APIHandlers) CreateInstance(c fiber.Ctx) error {
	var req CreateInstanceRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.engine.CreateInstance(
		c.Context(),
		req.WorkflowID,
		models.ResourceType(req.ResourceType),
		req.ResourceID,
		req.CreatedBy,
	)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(instance)
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	instance, err := h.persistence.InstanceRepository().InstanceByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	step, approvals, err := h.engine.GetCurrentStep(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(InstanceResponse{
		Instance:    instance,
		CurrentStep: step,
		Approvals:   approvals,
	})
}

func (h *APIHandlers) GetInstanceHistory(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	if _, err := h.persistence.InstanceRepository().InstanceByID(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	history, err := h.persistence.HistoryRepository().HistoryByInstance(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"instance_id": id,
		"history":     history,
	})
}

func (h *APIHandlers) ApproveRequest(c fiber.Ctx) error {
	return h.decide(c, h.decisions.Approve)
}

func (h *APIHandlers) RejectRequest(c fiber.Ctx) error {
	return h.decide(c, h.decisions.Reject)
}

func (h *APIHandlers) decide(
	c fiber.Ctx,
	apply func(ctx context.Context, approvalID, approverID string, comments *string) (*models.Approval, error),
) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Approval ID is required")
	}

	var req DecisionRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	approval, err := apply(c.Context(), id, req.ApproverID, req.Comments)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(approval)
}

func (h *APIHandlers) CommentRequest(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Approval ID is required")
	}

	var req CommentRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	approval, err := h.decisions.AddComment(c.Context(), id, req.PrincipalID, req.Comments)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(approval)
}

func (h *APIHandlers) GetPendingApprovals(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Principal ID is required")
	}

	approvals, err := h.decisions.ListPendingFor(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"principal_id": id,
		"approvals":    approvals,
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.persistence.WorkflowRepository().Workflows(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.persistence.WorkflowRepository().WorkflowByID(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	checkers := fiber.Map{}
	healthy := true

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		checkers["persistence"] = err.Error()
		healthy = false
	} else {
		checkers["persistence"] = "ok"
	}

	for name, checker := range h.checkers {
		if err := checker.HealthCheck(c.Context()); err != nil {
			checkers[name] = err.Error()
			healthy = false
		} else {
			checkers[name] = "ok"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK

	if !healthy {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":   status,
		"checkers": checkers,
	})
}
