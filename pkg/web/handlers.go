// Package web provides the HTTP handlers for rule management, execution
// history, and bulk automation endpoints.
package web

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/ruleflowhq/ruleflow/pkg/bulk"
	"github.com/ruleflowhq/ruleflow/pkg/engine"
	"github.com/ruleflowhq/ruleflow/pkg/models"
	"github.com/ruleflowhq/ruleflow/pkg/registry"
)

type APIHandlers struct {
	engine    *engine.Engine
	executor  *bulk.Executor
	registry  *registry.Registry
	validator *validator.Validate
}

func NewAPIHandlers(
	engine *engine.Engine,
	executor *bulk.Executor,
	registry *registry.Registry,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:    engine,
		executor:  executor,
		registry:  registry,
		validator: validator,
	}
}

func (h *APIHandlers) GetRules(c fiber.Ctx) error {
	rules, err := h.engine.List(c.Context())
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(rules)
}

func (h *APIHandlers) GetRule(c fiber.Ctx) error {
	rule, err := h.engine.Rule(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(rule)
}

func (h *APIHandlers) CreateRule(c fiber.Ctx) error {
	var req CreateRuleRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	rule := &models.WorkflowRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Enabled:     true,
		Trigger:     req.Trigger,
		Conditions:  req.Conditions,
		Actions:     req.Actions,
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := h.engine.Register(c.Context(), rule); err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(rule)
}

func (h *APIHandlers) DeleteRule(c fiber.Ctx) error {
	if err := h.engine.Remove(c.Context(), c.Params("id")); err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) EnableRule(c fiber.Ctx) error {
	return h.setRuleEnabled(c, true)
}

func (h *APIHandlers) DisableRule(c fiber.Ctx) error {
	return h.setRuleEnabled(c, false)
}

func (h *APIHandlers) setRuleEnabled(c fiber.Ctx, enabled bool) error {
	id := c.Params("id")

	var err error
	if enabled {
		err = h.engine.Enable(c.Context(), id)
	} else {
		err = h.engine.Disable(c.Context(), id)
	}

	if err != nil {
		return handleError(c, err)
	}

	rule, err := h.engine.Rule(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(rule)
}

func (h *APIHandlers) GetActionKinds(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"kinds": h.registry.AvailableKinds()})
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit: "+limitStr)
		}

		limit = parsed
	}

	executions, err := h.engine.History().GetExecutionHistory(c.Context(), limit)
	if err != nil {
		return handleError(c, err)
	}

	if limit <= 0 {
		limit = len(executions)
	}

	return c.JSON(ExecutionHistoryResponse{Executions: executions, Limit: limit})
}

func (h *APIHandlers) GetExecutionStats(c fiber.Ctx) error {
	stats, err := h.engine.History().GetExecutionStats(c.Context())
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(stats)
}

func (h *APIHandlers) DryRun(c fiber.Ctx) error {
	req, err := h.parseBulkRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.executor.DryRun(
		c.Context(), c.Params("id"), req.Records, bulk.FieldPatch(req.Patch))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(result)
}

// Execute runs a rollback-safe bulk transaction. The returned transaction
// carries the outcome either way: completed, or rolled back with the reason.
func (h *APIHandlers) Execute(c fiber.Ctx) error {
	req, err := h.parseBulkRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	transaction, err := h.executor.ExecuteWithRollback(
		c.Context(), c.Params("id"), req.Records, bulk.FieldPatch(req.Patch))
	if err != nil && transaction == nil {
		return handleError(c, err)
	}

	status := fiber.StatusOK
	if transaction.Status == models.TransactionStatusRolledBack {
		status = fiber.StatusUnprocessableEntity
	}

	return c.Status(status).JSON(transaction)
}

func (h *APIHandlers) RollbackTransaction(c fiber.Ctx) error {
	reverted, err := h.executor.RollbackTransaction(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(fiber.Map{"transaction_id": c.Params("id"), "reverted": reverted})
}

func (h *APIHandlers) GetTransaction(c fiber.Ctx) error {
	transaction, err := h.executor.Transaction(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(transaction)
}

func (h *APIHandlers) parseBulkRequest(c fiber.Ctx) (*BulkRequest, error) {
	var req BulkRequest
	if err := c.Bind().Body(&req); err != nil {
		return nil, err
	}

	if err := h.validator.Struct(&req); err != nil {
		return nil, err
	}

	return &req, nil
}
