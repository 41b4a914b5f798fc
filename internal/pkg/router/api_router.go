package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/stripe-billing/app/controllers"
	"github.com/ManuelReschke/stripe-billing/internal/pkg/middleware"
)

type ApiRouter struct {
	billing *controllers.BillingController
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", cors.New(), limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")
	v1.Get("/billing/status", middleware.RequireAuth, h.billing.HandleBillingStatus)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{
		billing: controllers.NewBillingController(deps.Billing, deps.Bus, deps.Repos.WebhookEvent),
	}
}
