package web

import "github.com/gofiber/fiber/v3"

// RegisterRoutes mounts all API endpoints on the app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	rules := app.Group("/rules")
	rules.Get("/", h.GetRules)
	rules.Post("/", h.CreateRule)
	rules.Get("/:id", h.GetRule)
	rules.Delete("/:id", h.DeleteRule)
	rules.Post("/:id/enable", h.EnableRule)
	rules.Post("/:id/disable", h.DisableRule)

	app.Get("/actions", h.GetActionKinds)

	executions := app.Group("/executions")
	executions.Get("/", h.GetExecutions)
	executions.Get("/stats", h.GetExecutionStats)

	automations := app.Group("/automations")
	automations.Post("/:id/dry-run", h.DryRun)
	automations.Post("/:id/execute", h.Execute)

	transactions := app.Group("/transactions")
	transactions.Get("/:id", h.GetTransaction)
	transactions.Post("/:id/rollback", h.RollbackTransaction)
}
