// Package web provides HTTP handlers and REST API endpoints for workflows, instances and approvals.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/hrflow/hrflow/pkg/engine"
	"github.com/hrflow/hrflow/pkg/graph"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/persistence"
	"github.com/hrflow/hrflow/pkg/services"
)

type APIHandlers struct {
	workflows *services.Workflows
	instances *services.Instances
	pending   *services.PendingActions
	decisions *services.Decisions
	engine    *engine.Engine
	validator *validator.Validate
}

func NewAPIHandlers(
	workflows *services.Workflows,
	instances *services.Instances,
	pending *services.PendingActions,
	decisions *services.Decisions,
	engine *engine.Engine,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflows: workflows,
		instances: instances,
		pending:   pending,
		decisions: decisions,
		engine:    engine,
		validator: validator,
	}
}

// Register mounts every route under router; /api routes require an identity.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)

	api := router.Group("/api", RequireIdentity)

	w := api.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Post("/preview", h.PreviewWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Patch("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)

	i := api.Group("/instances")
	i.Get("/", h.GetInstances)
	i.Post("/", h.TriggerInstance)
	i.Get("/:id", h.GetInstance)
	i.Get("/:id/audit", h.GetInstanceAudit)
	i.Post("/:id/cancel", h.CancelInstance)

	api.Post("/events", h.TriggerEvent)

	p := api.Group("/pending-actions")
	p.Get("/", h.GetPendingActions)
	p.Post("/:id/decision", h.DecidePendingAction)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.workflows.HealthCheck(c.Context())

	status := "unhealthy"
	message := "hrflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "hrflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	var status *models.WorkflowStatus

	if s := c.Query("status"); s != "" {
		ws := models.WorkflowStatus(s)
		status = &ws
	}

	workflows, err := h.workflows.List(c.Context(), identity(c).TenantID, status)
	if err != nil {
		return handleServiceError(c, err)
	}

	summaries := make([]models.WorkflowSummary, 0, len(workflows))
	for _, w := range workflows {
		summaries = append(summaries, w.Summary())
	}

	return c.JSON(WorkflowListResponse{Workflows: summaries})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflows.Get(c.Context(), identity(c).TenantID, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	g, err := graph.Decode(req.Graph)
	if err != nil {
		return badRequest(c, err.Error())
	}

	id := identity(c)

	created, err := h.workflows.Create(c.Context(), services.CreateWorkflowRequest{
		TenantID:    id.TenantID,
		ActorID:     id.UserID,
		Name:        req.Name,
		Description: req.Description,
		Graph:       g,
		Status:      models.WorkflowStatus(req.Status),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	update := services.UpdateWorkflowRequest{
		TenantID:    identity(c).TenantID,
		ID:          c.Params("id"),
		Name:        req.Name,
		Description: req.Description,
	}

	if len(req.Graph) > 0 {
		g, err := graph.Decode(req.Graph)
		if err != nil {
			return badRequest(c, err.Error())
		}

		update.Graph = g
	}

	if req.Status != nil {
		status := models.WorkflowStatus(*req.Status)
		update.Status = &status
	}

	updated, err := h.workflows.Update(c.Context(), update)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.workflows.Delete(c.Context(), identity(c).TenantID, c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PreviewWorkflow(c fiber.Ctx) error {
	var req PreviewRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	g, err := graph.Decode(req.Graph)
	if err != nil {
		return badRequest(c, err.Error())
	}

	preview, err := h.engine.Preview(c.Context(), g, req.Payload)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(preview)
}

func (h *APIHandlers) GetInstances(c fiber.Ctx) error {
	opts := persistence.ListInstancesOptions{DefinitionID: c.Query("definition_id")}

	if s := c.Query("status"); s != "" {
		status := models.InstanceStatus(s)
		opts.Status = &status
	}

	instances, err := h.instances.List(c.Context(), identity(c).TenantID, opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(InstanceListResponse{Instances: instances})
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	instance, err := h.instances.Get(c.Context(), identity(c).TenantID, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) GetInstanceAudit(c fiber.Ctx) error {
	records, err := h.instances.Audit(c.Context(), identity(c).TenantID, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"audit": records})
}

func (h *APIHandlers) TriggerInstance(c fiber.Ctx) error {
	var req TriggerInstanceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	id := identity(c)
	trigger := services.TriggerRequest{
		TenantID:     id.TenantID,
		ActorID:      id.UserID,
		DefinitionID: req.DefinitionID,
		Name:         req.Name,
		Payload:      req.Payload,
	}

	if len(req.Graph) > 0 {
		g, err := graph.Decode(req.Graph)
		if err != nil {
			return badRequest(c, err.Error())
		}

		trigger.Graph = g
	}

	instance, err := h.instances.Trigger(c.Context(), trigger)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(instance)
}

func (h *APIHandlers) TriggerEvent(c fiber.Ctx) error {
	var req TriggerEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	id := identity(c)

	instances, err := h.instances.TriggerEvent(c.Context(), id.TenantID, id.UserID, req.EventType, req.Payload)
	if err != nil {
		return handleServiceError(c, err)
	}

	resp := TriggerEventResponse{InstanceIDs: make([]string, 0, len(instances))}
	for _, instance := range instances {
		resp.InstanceIDs = append(resp.InstanceIDs, instance.ID)
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *APIHandlers) CancelInstance(c fiber.Ctx) error {
	var req CancelInstanceRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	id := identity(c)

	instance, err := h.instances.Cancel(c.Context(), id.TenantID, id.UserID, c.Params("id"), req.Reason)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) GetPendingActions(c fiber.Ctx) error {
	id := identity(c)

	actions, err := h.pending.ListFor(c.Context(), id.TenantID, id.UserID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(PendingActionListResponse{PendingActions: actions})
}

func (h *APIHandlers) DecidePendingAction(c fiber.Ctx) error {
	var req DecisionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	id := identity(c)

	instance, err := h.decisions.Decide(c.Context(), services.DecideRequest{
		TenantID: id.TenantID,
		ActorID:  id.UserID,
		ActionID: c.Params("id"),
		Decision: models.Decision(req.Decision),
		Reason:   req.Reason,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(instance)
}
