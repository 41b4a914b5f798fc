package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/stripe-billing/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.RequireAdmin)
	adminGroup.Get("/billing/webhooks", h.admin.HandleWebhookEvents)
	adminGroup.Get("/billing/metrics", h.admin.HandleBillingMetrics)
}
