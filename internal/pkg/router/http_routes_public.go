package router

import (
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Stripe posts here without cookies, so it stays outside the csrf group.
	app.Post("/stripe-webhook", h.billing.HandleStripeWebhook)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect(billingHome)
	})
}
